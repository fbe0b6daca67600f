// Package screen holds the display state a controller drives for one
// screen: idle, loading, success or error. Results that arrive after the
// screen was disposed, or after a newer request started, are dropped.
package screen

import "sync"

// Status is the display state of a screen.
type Status string

const (
	Idle    Status = "idle"
	Loading Status = "loading"
	Success Status = "success"
	Error   Status = "error"
)

// View is a snapshot of what the screen should render.
type View struct {
	Status  Status `json:"status"`
	Result  string `json:"result,omitempty"`
	Message string `json:"message,omitempty"`
}

// Ticket identifies one in-flight request.
type Ticket uint64

// State tracks one screen's status. Results for a ticket older than the
// latest Begin, or arriving after Dispose, are dropped.
type State struct {
	mu       sync.Mutex
	seq      uint64
	disposed bool
	view     View
}

// NewState returns an idle State.
func NewState() *State {
	return &State{view: View{Status: Idle}}
}

// Begin moves to Loading and clears the previous result and message.
func (s *State) Begin() Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	if !s.disposed {
		s.view = View{Status: Loading}
	}
	return Ticket(s.seq)
}

// Succeed applies result if t is still current. It reports whether the
// result was applied.
func (s *State) Succeed(t Ticket, result string) bool {
	return s.apply(t, View{Status: Success, Result: result})
}

// Fail applies the user-facing message for err if t is still current.
func (s *State) Fail(t Ticket, err error) bool {
	return s.apply(t, View{Status: Error, Message: MessageFor(err)})
}

// Reject shows err without a request having started, e.g. a form that
// failed validation. Any request in flight is superseded.
func (s *State) Reject(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	if !s.disposed {
		s.view = View{Status: Error, Message: MessageFor(err)}
	}
}

// Dispose marks the screen gone; later results are discarded.
func (s *State) Dispose() {
	s.mu.Lock()
	s.disposed = true
	s.mu.Unlock()
}

func (s *State) Disposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

func (s *State) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

func (s *State) apply(t Ticket, v View) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed || uint64(t) != s.seq {
		return false
	}
	s.view = v
	return true
}
