package clinical

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed or missing input caught before any
// network call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

// Invalid builds a ValidationError for field.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func (e *ValidationError) UserMessage() string {
	if e.Field == "" {
		return "Please check your input: " + e.Reason + "."
	}
	return fmt.Sprintf("Please check %s: %s.", e.Field, e.Reason)
}
