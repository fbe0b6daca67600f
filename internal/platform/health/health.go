// Package health serves the liveness endpoint.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const checkTimeout = 5 * time.Second

// Check is one named dependency check.
type Check struct {
	Name string
	Run  func(ctx context.Context) error
	// Details is optional extra data included in the response.
	Details func() interface{}
}

type result struct {
	Status  string      `json:"status"`
	Error   string      `json:"error,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// Handler runs every check and answers 200 when all pass, 503 otherwise.
func Handler(checks ...Check) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), checkTimeout)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]result, len(checks))
		for _, chk := range checks {
			r := result{Status: "healthy"}
			if err := chk.Run(ctx); err != nil {
				r.Status = "unhealthy"
				r.Error = err.Error()
				status = http.StatusServiceUnavailable
			}
			if chk.Details != nil {
				r.Details = chk.Details()
			}
			results[chk.Name] = r
		}

		overall := "healthy"
		if status != http.StatusOK {
			overall = "unhealthy"
		}
		return c.JSON(status, map[string]interface{}{
			"status": overall,
			"checks": results,
		})
	}
}
