package recording

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/clinassist/clinassist/internal/platform/audio"
	"github.com/clinassist/clinassist/internal/platform/httperr"
	"github.com/clinassist/clinassist/internal/platform/screen"
	"github.com/clinassist/clinassist/pkg/pagination"
)

// Handler serves the /recordings routes.
type Handler struct {
	svc   *Service
	audio *audio.FileStore
}

func NewHandler(svc *Service, files *audio.FileStore) *Handler {
	return &Handler{svc: svc, audio: files}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/recordings", h.ListRecordings)
	api.POST("/recordings", h.CreateRecording)
	api.GET("/recordings/orphans", h.ListOrphans)
	api.DELETE("/recordings/orphans", h.PruneOrphans)
	api.GET("/recordings/:index", h.GetRecording)
	api.POST("/recordings/:index/reformat", h.ReformatRecording)
	api.DELETE("/recordings/:index", h.DeleteRecording)
}

type createResponse struct {
	Index     int       `json:"index"`
	Recording Recording `json:"recording"`
}

// CreateRecording stores the uploaded audio and transcribes it. The audio is
// removed again when transcription fails.
func (h *Handler) CreateRecording(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to open uploaded file")
	}
	defer src.Close()

	ctx := c.Request().Context()
	saved, err := h.audio.Save(ctx, file.Filename, file.Header.Get(echo.HeaderContentType), src)
	if err != nil {
		switch {
		case errors.Is(err, audio.ErrFileTooLarge):
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
		case errors.Is(err, audio.ErrInvalidContentType):
			return echo.NewHTTPError(http.StatusUnsupportedMediaType, err.Error())
		case errors.Is(err, audio.ErrEmptyFile):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to store audio")
		}
	}

	rec, index, err := h.svc.Transcribe(ctx, saved.URI)
	if err != nil {
		_ = h.audio.Remove(saved.URI)
		return httperr.From(err)
	}
	return c.JSON(http.StatusCreated, createResponse{Index: index, Recording: rec})
}

func (h *Handler) ListRecordings(c echo.Context) error {
	pg := pagination.FromContext(c)
	list, err := h.svc.List(c.Request().Context())
	if err != nil {
		return httperr.From(err)
	}
	resp := pagination.NewResponse(pagination.Slice(list, pg), len(list), pg.Limit, pg.Offset)
	resp.Links = pg.Links(c.Path(), len(list))
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetRecording(c echo.Context) error {
	index, err := indexParam(c)
	if err != nil {
		return err
	}
	rec, err := h.svc.Get(c.Request().Context(), index)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, rec)
}

// ReformatRecording returns formatted notes for a recording. Notes that were
// produced but could not be cached come back with saved=false.
func (h *Handler) ReformatRecording(c echo.Context) error {
	index, err := indexParam(c)
	if err != nil {
		return err
	}
	res, err := h.svc.Reformat(c.Request().Context(), index)
	if err != nil {
		var se *StorageError
		if res.Notes != "" && errors.As(err, &se) {
			// Notes were produced but not cached.
			return c.JSON(http.StatusOK, reformatResponse{ReformatResult: res, Message: screen.MessageFor(err)})
		}
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, reformatResponse{ReformatResult: res})
}

type reformatResponse struct {
	ReformatResult
	Message string `json:"message,omitempty"`
}

func (h *Handler) DeleteRecording(c echo.Context) error {
	index, err := indexParam(c)
	if err != nil {
		return err
	}
	if _, err := h.svc.Delete(c.Request().Context(), index); err != nil {
		return httperr.From(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListOrphans(c echo.Context) error {
	titles, err := h.svc.Orphans(c.Request().Context())
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, map[string][]string{"titles": titles})
}

// PruneOrphans deletes notes entries whose recording no longer exists.
func (h *Handler) PruneOrphans(c echo.Context) error {
	titles, err := h.svc.PruneOrphans(c.Request().Context())
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, map[string][]string{"pruned": titles})
}

func indexParam(c echo.Context) (int, error) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid index")
	}
	return index, nil
}
