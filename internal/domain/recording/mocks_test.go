package recording

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinassist/clinassist/internal/platform/gateway"
	"github.com/clinassist/clinassist/internal/platform/kv"
)

var errDiskFull = errors.New("disk full")

// flakyKV wraps a memory store and fails reads or writes on demand.
type flakyKV struct {
	*kv.MemoryStore
	mu        sync.Mutex
	failSet   bool
	failGet   bool
	failedSet int
}

func newFlakyKV() *flakyKV {
	return &flakyKV{MemoryStore: kv.NewMemoryStore()}
}

func (f *flakyKV) setFailures(get, set bool) {
	f.mu.Lock()
	f.failGet, f.failSet = get, set
	f.mu.Unlock()
}

func (f *flakyKV) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	fail := f.failGet
	f.mu.Unlock()
	if fail {
		return "", false, errDiskFull
	}
	return f.MemoryStore.Get(ctx, key)
}

func (f *flakyKV) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	fail := f.failSet
	if fail {
		f.failedSet++
	}
	f.mu.Unlock()
	if fail {
		return errDiskFull
	}
	return f.MemoryStore.Set(ctx, key, value)
}

type mockTranscriber struct {
	mu    sync.Mutex
	text  string
	err   error
	calls []string
}

func (m *mockTranscriber) TranscribeAudio(_ context.Context, fileURI string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, fileURI)
	if m.err != nil {
		return "", m.err
	}
	return m.text, nil
}

type chatCall struct {
	system, user, model string
	temperature         float64
}

type mockCompleter struct {
	mu    sync.Mutex
	reply string
	err   error
	calls []chatCall
}

func (m *mockCompleter) CompleteChat(_ context.Context, system, user, model string, temperature float64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, chatCall{system, user, model, temperature})
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func (m *mockCompleter) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

var (
	_ gateway.Transcriber = (*mockTranscriber)(nil)
	_ gateway.Completer   = (*mockCompleter)(nil)
)

type testDeps struct {
	kv          *flakyKV
	store       *Store
	transcriber *mockTranscriber
	completer   *mockCompleter
	svc         *Service
}

func newTestDeps() *testDeps {
	d := &testDeps{
		kv:          newFlakyKV(),
		transcriber: &mockTranscriber{text: "patient reports mild headache"},
		completer:   &mockCompleter{reply: "## Subjective\n- mild headache"},
	}
	d.store = NewStore(d.kv, zerolog.Nop())
	d.svc = NewService(d.store, d.transcriber, d.completer, DefaultOptions(), zerolog.Nop())
	d.svc.now = func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.Local) }
	return d
}

func strPtr(s string) *string { return &s }
