package reference

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

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

func newTestService() (*Service, *mockCompleter) {
	m := &mockCompleter{reply: "Avoid NSAIDs in renal impairment."}
	return NewService(m, DefaultOptions(), zerolog.Nop()), m
}

func newTestLogger() zerolog.Logger { return zerolog.Nop() }
