package recording

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/clinassist/clinassist/internal/platform/audio"
	"github.com/clinassist/clinassist/internal/platform/gateway"
)

func newTestHandler(t *testing.T) (*Handler, *testDeps, *echo.Echo) {
	t.Helper()
	d := newTestDeps()
	files, err := audio.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return NewHandler(d.svc, files), d, echo.New()
}

func uploadRequest(t *testing.T, fileName, contentType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="`+fileName+`"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write(data)
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	return req
}

func indexContext(e *echo.Echo, req *http.Request, rec *httptest.ResponseRecorder, index string) echo.Context {
	c := e.NewContext(req, rec)
	c.SetParamNames("index")
	c.SetParamValues(index)
	return c
}

func TestHandler_CreateRecording(t *testing.T) {
	h, d, e := newTestHandler(t)
	rec := httptest.NewRecorder()
	c := e.NewContext(uploadRequest(t, "visit.m4a", "audio/m4a", []byte("audio-bytes")), rec)

	if err := h.CreateRecording(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var body createResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Recording.Title != "Note 1" || body.Index != 0 {
		t.Errorf("unexpected body %+v", body)
	}
	if len(d.transcriber.calls) != 1 || d.transcriber.calls[0] != body.Recording.FileURI {
		t.Errorf("expected transcriber to receive the stored file URI, got %v", d.transcriber.calls)
	}
}

func TestHandler_CreateRecording_TranscriptionFails(t *testing.T) {
	h, d, e := newTestHandler(t)
	d.transcriber.err = &gateway.GatewayError{Kind: gateway.KindRateLimit, StatusCode: 429}
	rec := httptest.NewRecorder()
	c := e.NewContext(uploadRequest(t, "visit.m4a", "audio/m4a", []byte("audio-bytes")), rec)

	err := h.CreateRecording(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %v", err)
	}
	entries, _ := os.ReadDir(h.audio.Dir())
	if len(entries) != 0 {
		t.Errorf("expected uploaded audio to be removed, found %d files", len(entries))
	}
}

func TestHandler_CreateRecording_NotAudio(t *testing.T) {
	h, _, e := newTestHandler(t)
	rec := httptest.NewRecorder()
	c := e.NewContext(uploadRequest(t, "scan.pdf", "application/pdf", []byte("%PDF")), rec)

	err := h.CreateRecording(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnsupportedMediaType {
		t.Errorf("expected 415, got %v", err)
	}
}

func TestHandler_CreateRecording_MissingFile(t *testing.T) {
	h, _, e := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	if err := h.CreateRecording(c); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestHandler_ListRecordings(t *testing.T) {
	h, d, e := newTestHandler(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, _, _ = d.svc.Transcribe(ctx, "file:///tmp/a.m4a")
	}

	req := httptest.NewRequest(http.MethodGet, "/?limit=2", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h.ListRecordings(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Data    []Recording `json:"data"`
		Total   int         `json:"total"`
		HasMore bool        `json:"has_more"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Data) != 2 || body.Total != 3 || !body.HasMore {
		t.Errorf("unexpected page %+v", body)
	}
}

func TestHandler_GetRecording(t *testing.T) {
	h, d, e := newTestHandler(t)
	_, _, _ = d.svc.Transcribe(context.Background(), "file:///tmp/a.m4a")

	rec := httptest.NewRecorder()
	c := indexContext(e, httptest.NewRequest(http.MethodGet, "/", nil), rec, "0")
	if err := h.GetRecording(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_GetRecording_BadIndex(t *testing.T) {
	h, _, e := newTestHandler(t)
	for _, idx := range []string{"abc", "-1", "7"} {
		c := indexContext(e, httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder(), idx)
		err := h.GetRecording(c)
		he, ok := err.(*echo.HTTPError)
		if !ok || he.Code != http.StatusBadRequest {
			t.Errorf("index %q: expected 400, got %v", idx, err)
		}
	}
}

func TestHandler_ReformatRecording(t *testing.T) {
	h, d, e := newTestHandler(t)
	_, _, _ = d.svc.Transcribe(context.Background(), "file:///tmp/a.m4a")

	for i, wantCached := range []bool{false, true} {
		rec := httptest.NewRecorder()
		c := indexContext(e, httptest.NewRequest(http.MethodPost, "/", nil), rec, "0")
		if err := h.ReformatRecording(c); err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
		var body ReformatResult
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if body.Cached != wantCached || body.Notes != d.completer.reply {
			t.Errorf("call %d: unexpected body %+v", i, body)
		}
	}
}

func TestHandler_ReformatRecording_Upstream(t *testing.T) {
	h, d, e := newTestHandler(t)
	_, _, _ = d.svc.Transcribe(context.Background(), "file:///tmp/a.m4a")
	d.completer.err = &gateway.GatewayError{Kind: gateway.KindNetwork}

	c := indexContext(e, httptest.NewRequest(http.MethodPost, "/", nil), httptest.NewRecorder(), "0")
	err := h.ReformatRecording(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %v", err)
	}
}

func TestHandler_ReformatRecording_SaveFailedKeepsNotes(t *testing.T) {
	h, d, e := newTestHandler(t)
	ctx := context.Background()
	if _, _, err := d.svc.Transcribe(ctx, "file:///tmp/a.m4a"); err != nil {
		t.Fatal(err)
	}
	d.kv.setFailures(false, true)

	rec := httptest.NewRecorder()
	c := indexContext(e, httptest.NewRequest(http.MethodPost, "/", nil), rec, "0")
	if err := h.ReformatRecording(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Notes   string `json:"formattedNotes"`
		Saved   bool   `json:"saved"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Notes != d.completer.reply || body.Saved || body.Message == "" {
		t.Errorf("unexpected body %+v", body)
	}

	d.kv.setFailures(false, false)
	if _, ok, _ := d.store.LoadFormattedNotes(ctx, "Note 1"); ok {
		t.Error("expected nothing cached after the failed write")
	}
}

func TestHandler_DeleteRecording(t *testing.T) {
	h, d, e := newTestHandler(t)
	_, _, _ = d.svc.Transcribe(context.Background(), "file:///tmp/a.m4a")

	rec := httptest.NewRecorder()
	c := indexContext(e, httptest.NewRequest(http.MethodDelete, "/", nil), rec, "0")
	if err := h.DeleteRecording(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	list, _ := d.svc.List(context.Background())
	if len(list) != 0 {
		t.Errorf("expected empty list, got %d", len(list))
	}
}

func TestHandler_ListOrphans(t *testing.T) {
	h, d, e := newTestHandler(t)
	ctx := context.Background()
	_, _, _ = d.svc.Transcribe(ctx, "file:///tmp/a.m4a")
	_, _ = d.svc.Reformat(ctx, 0)
	_, _ = d.svc.Delete(ctx, 0)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	if err := h.ListOrphans(c); err != nil {
		t.Fatal(err)
	}
	var body map[string][]string
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if len(body["titles"]) != 1 || body["titles"][0] != "Note 1" {
		t.Errorf("unexpected orphans %v", body)
	}
}

func TestHandler_PruneOrphans(t *testing.T) {
	h, d, e := newTestHandler(t)
	ctx := context.Background()
	_, _, _ = d.svc.Transcribe(ctx, "file:///tmp/a.m4a")
	_, _ = d.svc.Reformat(ctx, 0)
	_, _ = d.svc.Delete(ctx, 0)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), rec)
	if err := h.PruneOrphans(c); err != nil {
		t.Fatal(err)
	}
	var body map[string][]string
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if len(body["pruned"]) != 1 || body["pruned"][0] != "Note 1" {
		t.Errorf("unexpected pruned titles %v", body)
	}
	if titles, _ := d.svc.Orphans(ctx); len(titles) != 0 {
		t.Errorf("expected no orphans after prune, got %v", titles)
	}
}
