package recording

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// ListKey holds the JSON-encoded list of recordings.
	ListKey = "@recordings"
	// NotesKeyPrefix prefixes the per-recording formatted notes key.
	NotesKeyPrefix = "@formattedNotes_"

	titlePrefix = "Note "
)

// Recording is one transcribed voice note.
type Recording struct {
	Title          string  `json:"title"`
	Transcription  string  `json:"transcription"`
	FileURI        string  `json:"fileUri"`
	CreatedAt      string  `json:"createdAt"`
	FormattedNotes *string `json:"formattedNotes,omitempty"`
}

// List is the persisted recordings in creation order.
type List []Recording

// NotesKey returns the storage key for the formatted notes of title.
func NotesKey(title string) string {
	return NotesKeyPrefix + title
}

// Title returns the display title for the n-th recording (1-based).
func Title(n int) string {
	return fmt.Sprintf("%s%d", titlePrefix, n)
}

// titleNumber extracts N from "Note N".
func titleNumber(title string) (int, bool) {
	rest, ok := strings.CutPrefix(title, titlePrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// Timestamp formats t the way CreatedAt is stored.
func Timestamp(t time.Time) string {
	return t.Local().Format(time.RFC3339)
}

// CopyText is what gets copied for sharing: the formatted notes when they
// exist, otherwise the raw transcription.
func (r Recording) CopyText() string {
	if r.FormattedNotes != nil && *r.FormattedNotes != "" {
		return *r.FormattedNotes
	}
	return r.Transcription
}

// HasNotes reports whether formatted notes are attached.
func (r Recording) HasNotes() bool {
	return r.FormattedNotes != nil && *r.FormattedNotes != ""
}
