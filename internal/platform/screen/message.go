package screen

import (
	"context"
	"errors"
)

// GenericMessage is shown for errors that carry no user message.
const GenericMessage = "Something went wrong. Please try again."

// UserMessager is implemented by errors that know how to describe
// themselves to a clinician without leaking internal detail.
type UserMessager interface {
	UserMessage() string
}

// MessageFor returns the text to show for err.
func MessageFor(err error) string {
	if err == nil {
		return ""
	}
	var um UserMessager
	if errors.As(err, &um) {
		return um.UserMessage()
	}
	if errors.Is(err, context.Canceled) {
		return "The request was cancelled."
	}
	return GenericMessage
}
