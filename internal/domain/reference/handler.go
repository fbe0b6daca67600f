package reference

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinassist/clinassist/internal/domain/clinical"
	"github.com/clinassist/clinassist/internal/platform/httperr"
)

// Handler serves the clinical reference route.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/reference/query", h.Query)
}

type queryRequest struct {
	Query   string               `json:"query"`
	Patient clinical.PatientForm `json:"patient"`
}

type queryResponse struct {
	Response string `json:"response"`
}

func (h *Handler) Query(c echo.Context) error {
	var req queryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	patient, err := req.Patient.Parse()
	if err != nil {
		return httperr.From(err)
	}
	answer, err := h.svc.Query(c.Request().Context(), clinical.ClinicalQuery{Query: req.Query, Patient: patient})
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, queryResponse{Response: answer})
}
