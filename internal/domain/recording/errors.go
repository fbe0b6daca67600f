package recording

import "fmt"

// StorageKind classifies a persistence failure.
type StorageKind int

const (
	StorageCorrupt StorageKind = iota + 1
	StorageReadFailed
	StorageWriteFailed
)

func (k StorageKind) String() string {
	switch k {
	case StorageCorrupt:
		return "corrupt"
	case StorageReadFailed:
		return "read_failed"
	case StorageWriteFailed:
		return "write_failed"
	default:
		return "unknown"
	}
}

// StorageError reports a failed read or write of key.
type StorageError struct {
	Kind StorageKind
	Key  string
	Err  error
}

func (e *StorageError) Error() string {
	msg := fmt.Sprintf("storage %s %s", e.Kind, e.Key)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) UserMessage() string {
	if e.Kind == StorageWriteFailed {
		return "Your note could not be saved. Please try again."
	}
	return "Saved notes could not be loaded. Please try again."
}
