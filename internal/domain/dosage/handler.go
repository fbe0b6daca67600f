package dosage

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinassist/clinassist/internal/platform/httperr"
)

// Handler serves the dosage route.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/dosage/calculate", h.Calculate)
}

func (h *Handler) Calculate(c echo.Context) error {
	var form Form
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req, err := form.Request()
	if err != nil {
		return httperr.From(err)
	}
	res, err := h.svc.Calculate(c.Request().Context(), req)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, res)
}
