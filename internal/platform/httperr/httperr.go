// Package httperr translates domain errors into echo HTTP errors whose
// message is safe to show a user.
package httperr

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinassist/clinassist/internal/domain/clinical"
	"github.com/clinassist/clinassist/internal/platform/gateway"
	"github.com/clinassist/clinassist/internal/platform/screen"
)

// StatusFor returns the HTTP status for err.
func StatusFor(err error) int {
	var ve *clinical.ValidationError
	var ge *gateway.GatewayError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &ge):
		if ge.Kind == gateway.KindRateLimit {
			return http.StatusTooManyRequests
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// From wraps err as an *echo.HTTPError. The internal error is kept as the
// HTTPError's Internal field for logging only.
func From(err error) *echo.HTTPError {
	he := echo.NewHTTPError(StatusFor(err), screen.MessageFor(err))
	he.Internal = err
	return he
}
