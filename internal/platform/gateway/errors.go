package gateway

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Kind classifies a failure talking to the language-model API.
type Kind int

const (
	KindNetwork Kind = iota + 1
	KindAuth
	KindRateLimit
	KindInvalidResponse
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuth:
		return "auth"
	case KindRateLimit:
		return "rate_limit"
	case KindInvalidResponse:
		return "invalid_response"
	default:
		return "unknown"
	}
}

// GatewayError is the single error type returned by Client. Callers decide
// on retries and user messaging from Kind.
type GatewayError struct {
	Kind       Kind
	Op         string
	StatusCode int
	Err        error
}

func (e *GatewayError) Error() string {
	msg := fmt.Sprintf("gateway %s: %s", e.Op, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status=%d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GatewayError) Unwrap() error { return e.Err }

// IsKind reports whether err is a GatewayError of kind k.
func IsKind(err error, k Kind) bool {
	var ge *GatewayError
	return errors.As(err, &ge) && ge.Kind == k
}

// ErrMissingCredential is wrapped in a KindAuth error when no API key is
// configured.
var ErrMissingCredential = errors.New("no API credential configured")

// kindForStatus maps a non-2xx status to an error kind.
func kindForStatus(status int) Kind {
	switch {
	case status == 401 || status == 403:
		return KindAuth
	case status == 429:
		return KindRateLimit
	case status == 408 || status >= 500:
		return KindNetwork
	default:
		return KindInvalidResponse
	}
}

// UserMessage is the text shown to a clinician. It never includes the
// upstream response body.
func (e *GatewayError) UserMessage() string {
	switch e.Kind {
	case KindNetwork:
		return "Could not reach the assistant service. Check your connection and try again."
	case KindAuth:
		return "The assistant service is not configured correctly. Contact your administrator."
	case KindRateLimit:
		return "The assistant service is busy. Please wait a moment and try again."
	default:
		return "The assistant service returned an unexpected response. Please try again."
	}
}

// LogFailure records a failed call. Auth failures are configuration
// problems and log at error level; the rest are transient and log at warn.
func LogFailure(logger zerolog.Logger, err error, op string) {
	if IsKind(err, KindAuth) {
		logger.Error().Err(err).Str("op", op).Str("problem", "configuration").Msg("assistant service rejected credentials")
		return
	}
	logger.Warn().Err(err).Str("op", op).Msg("assistant request failed")
}
