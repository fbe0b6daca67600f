package recording

import (
	"context"
	"sync"

	"github.com/clinassist/clinassist/internal/platform/screen"
)

// ListScreen drives the recordings list: load, record-then-transcribe and
// delete.
type ListScreen struct {
	svc   *Service
	state *screen.State

	mu    sync.Mutex
	items List
}

func NewListScreen(svc *Service) *ListScreen {
	return &ListScreen{svc: svc, state: screen.NewState(), items: List{}}
}

func (l *ListScreen) View() screen.View { return l.state.View() }
func (l *ListScreen) Dispose()          { l.state.Dispose() }

// Items returns a copy of the recordings last loaded.
func (l *ListScreen) Items() List {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(List, len(l.items))
	copy(out, l.items)
	return out
}

func (l *ListScreen) Load(ctx context.Context) error {
	t := l.state.Begin()
	list, err := l.svc.List(ctx)
	if err != nil {
		l.state.Fail(t, err)
		return err
	}
	if l.state.Succeed(t, "") {
		l.setItems(list)
	}
	return nil
}

// StopAndTranscribe runs transcribe then append for a finished recording.
// The list only changes once both steps succeed.
func (l *ListScreen) StopAndTranscribe(ctx context.Context, fileURI string) (Recording, error) {
	t := l.state.Begin()
	rec, _, err := l.svc.Transcribe(ctx, fileURI)
	if err != nil {
		l.state.Fail(t, err)
		return Recording{}, err
	}
	list, err := l.svc.List(ctx)
	if err != nil {
		l.state.Fail(t, err)
		return rec, err
	}
	if l.state.Succeed(t, rec.Transcription) {
		l.setItems(list)
	}
	return rec, nil
}

func (l *ListScreen) Delete(ctx context.Context, index int) error {
	t := l.state.Begin()
	if _, err := l.svc.Delete(ctx, index); err != nil {
		l.state.Fail(t, err)
		return err
	}
	list, err := l.svc.List(ctx)
	if err != nil {
		l.state.Fail(t, err)
		return err
	}
	if l.state.Succeed(t, "") {
		l.setItems(list)
	}
	return nil
}

func (l *ListScreen) setItems(list List) {
	l.mu.Lock()
	l.items = list
	l.mu.Unlock()
}

// DetailScreen shows one recording and lets the user reformat and copy it.
type DetailScreen struct {
	svc   *Service
	index int
	state *screen.State

	mu  sync.Mutex
	rec Recording
}

// NewDetailScreen returns the view model for the recording at index.
func NewDetailScreen(svc *Service, index int) *DetailScreen {
	return &DetailScreen{svc: svc, index: index, state: screen.NewState()}
}

func (d *DetailScreen) View() screen.View { return d.state.View() }
func (d *DetailScreen) Dispose()          { d.state.Dispose() }

// Open loads the recording and any notes cached for it.
func (d *DetailScreen) Open(ctx context.Context) error {
	t := d.state.Begin()
	rec, err := d.svc.Get(ctx, d.index)
	if err != nil {
		d.state.Fail(t, err)
		return err
	}
	if d.state.Succeed(t, rec.CopyText()) {
		d.setRecording(rec)
	}
	return nil
}

// Recording returns the recording as last loaded.
func (d *DetailScreen) Recording() Recording {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rec
}

// CanReformat is false once notes exist.
func (d *DetailScreen) CanReformat() bool {
	return !d.Recording().HasNotes()
}

// Reformat produces formatted notes, reusing cached ones when present.
func (d *DetailScreen) Reformat(ctx context.Context) (ReformatResult, error) {
	if !d.CanReformat() {
		return ReformatResult{Notes: *d.Recording().FormattedNotes, Cached: true, Saved: true}, nil
	}
	t := d.state.Begin()
	res, err := d.svc.Reformat(ctx, d.index)
	if res.Notes != "" && !d.state.Disposed() {
		d.mu.Lock()
		notes := res.Notes
		d.rec.FormattedNotes = &notes
		d.mu.Unlock()
	}
	if err != nil {
		d.state.Fail(t, err)
		return res, err
	}
	d.state.Succeed(t, res.Notes)
	return res, nil
}

// CopyText returns the text to put on the clipboard.
func (d *DetailScreen) CopyText() string {
	return d.Recording().CopyText()
}

func (d *DetailScreen) setRecording(rec Recording) {
	d.mu.Lock()
	d.rec = rec
	d.mu.Unlock()
}
