package recording

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinassist/clinassist/internal/domain/clinical"
	"github.com/clinassist/clinassist/internal/platform/gateway"
)

func TestService_Transcribe(t *testing.T) {
	d := newTestDeps()
	ctx := context.Background()

	rec, idx, err := d.svc.Transcribe(ctx, "file:///tmp/a.m4a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Title != "Note 1" || idx != 0 {
		t.Errorf("expected Note 1 at 0, got %q at %d", rec.Title, idx)
	}
	if rec.Transcription != d.transcriber.text {
		t.Errorf("unexpected transcription %q", rec.Transcription)
	}
	if rec.FileURI != "file:///tmp/a.m4a" {
		t.Errorf("unexpected file uri %q", rec.FileURI)
	}
	if _, err := time.Parse(time.RFC3339, rec.CreatedAt); err != nil {
		t.Errorf("CreatedAt %q is not RFC3339: %v", rec.CreatedAt, err)
	}
	if rec.FormattedNotes != nil {
		t.Error("expected no formatted notes on a fresh recording")
	}

	list, _ := d.svc.List(ctx)
	if len(list) != 1 {
		t.Errorf("expected 1 persisted recording, got %d", len(list))
	}
}

func TestService_Transcribe_FailureStoresNothing(t *testing.T) {
	d := newTestDeps()
	d.transcriber.err = &gateway.GatewayError{Kind: gateway.KindNetwork, Op: "transcription"}
	ctx := context.Background()

	if _, _, err := d.svc.Transcribe(ctx, "file:///tmp/a.m4a"); !gateway.IsKind(err, gateway.KindNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	list, _ := d.svc.List(ctx)
	if len(list) != 0 {
		t.Errorf("expected nothing persisted, got %d recordings", len(list))
	}
}

func TestService_Transcribe_RequiresFile(t *testing.T) {
	d := newTestDeps()
	if _, _, err := d.svc.Transcribe(context.Background(), "  "); !clinical.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
	if len(d.transcriber.calls) != 0 {
		t.Error("expected no transcription call")
	}
}

func TestService_Reformat_CachesResult(t *testing.T) {
	d := newTestDeps()
	ctx := context.Background()
	if _, _, err := d.svc.Transcribe(ctx, "file:///tmp/a.m4a"); err != nil {
		t.Fatal(err)
	}

	res, err := d.svc.Reformat(ctx, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Cached || !res.Saved || res.Notes != d.completer.reply {
		t.Errorf("unexpected first result %+v", res)
	}
	call := d.completer.calls[0]
	if call.system != "" {
		t.Errorf("expected a single user message, got system prompt %q", call.system)
	}
	if call.model != DefaultReformatModel || call.temperature != DefaultTemperature {
		t.Errorf("unexpected model settings %+v", call)
	}

	d.completer.reply = "something else"
	res, err = d.svc.Reformat(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Cached || res.Notes != "## Subjective\n- mild headache" {
		t.Errorf("expected cached notes verbatim, got %+v", res)
	}
	if d.completer.callCount() != 1 {
		t.Errorf("expected exactly one model call, got %d", d.completer.callCount())
	}

	rec, err := d.svc.Get(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !rec.HasNotes() || *rec.FormattedNotes != "## Subjective\n- mild headache" {
		t.Errorf("expected notes attached on Get, got %+v", rec.FormattedNotes)
	}
}

func TestService_Reformat_GatewayFailure(t *testing.T) {
	d := newTestDeps()
	ctx := context.Background()
	_, _, _ = d.svc.Transcribe(ctx, "file:///tmp/a.m4a")
	d.completer.err = &gateway.GatewayError{Kind: gateway.KindRateLimit, StatusCode: 429}

	if _, err := d.svc.Reformat(ctx, 0); !gateway.IsKind(err, gateway.KindRateLimit) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if _, ok, _ := d.store.LoadFormattedNotes(ctx, "Note 1"); ok {
		t.Error("expected no notes persisted after a failed reformat")
	}
}

func TestService_Reformat_WriteFailureIsReported(t *testing.T) {
	d := newTestDeps()
	ctx := context.Background()
	_, _, _ = d.svc.Transcribe(ctx, "file:///tmp/a.m4a")
	d.kv.setFailures(false, true)

	res, err := d.svc.Reformat(ctx, 0)
	var se *StorageError
	if !errors.As(err, &se) || se.Kind != StorageWriteFailed {
		t.Fatalf("expected write failure, got %v", err)
	}
	if res.Notes != d.completer.reply {
		t.Errorf("expected notes returned alongside the error, got %q", res.Notes)
	}
}

func TestService_Reformat_EmptyTranscription(t *testing.T) {
	d := newTestDeps()
	d.transcriber.text = ""
	ctx := context.Background()
	_, _, _ = d.svc.Transcribe(ctx, "file:///tmp/silence.m4a")

	if _, err := d.svc.Reformat(ctx, 0); !clinical.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
	if d.completer.callCount() != 0 {
		t.Error("expected no model call for an empty transcription")
	}
}

func TestService_Get_OutOfRange(t *testing.T) {
	d := newTestDeps()
	if _, err := d.svc.Get(context.Background(), 0); !clinical.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestService_DeleteAndOrphans(t *testing.T) {
	d := newTestDeps()
	ctx := context.Background()
	_, _, _ = d.svc.Transcribe(ctx, "file:///tmp/a.m4a")
	_, _, _ = d.svc.Transcribe(ctx, "file:///tmp/b.m4a")
	if _, err := d.svc.Reformat(ctx, 0); err != nil {
		t.Fatal(err)
	}

	rec, err := d.svc.Delete(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Title != "Note 1" {
		t.Errorf("expected Note 1 deleted, got %q", rec.Title)
	}
	orphans, err := d.svc.Orphans(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(orphans) != 1 || orphans[0] != "Note 1" {
		t.Errorf("expected [Note 1], got %v", orphans)
	}
}

func TestService_Reformat_ZeroTemperaturePassesThrough(t *testing.T) {
	d := newTestDeps()
	d.svc = NewService(d.store, d.transcriber, d.completer, Options{Temperature: 0}, zerolog.Nop())
	ctx := context.Background()
	if _, _, err := d.svc.Transcribe(ctx, "file:///tmp/a.m4a"); err != nil {
		t.Fatal(err)
	}
	if _, err := d.svc.Reformat(ctx, 0); err != nil {
		t.Fatal(err)
	}
	if call := d.completer.calls[0]; call.temperature != 0 || call.model != DefaultReformatModel {
		t.Errorf("unexpected model settings %+v", call)
	}
}
