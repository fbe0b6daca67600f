package reference

import (
	"context"
	"strings"
	"sync"

	"github.com/clinassist/clinassist/internal/domain/clinical"
	"github.com/clinassist/clinassist/internal/platform/screen"
)

// OptionalFields are revealed one at a time, in this order.
var OptionalFields = []string{"age", "weight", "condition", "symptoms", "history", "examFindings"}

// Screen is the clinical reference form.
type Screen struct {
	svc   *Service
	state *screen.State

	mu       sync.Mutex
	query    string
	form     clinical.PatientForm
	revealed int
}

// NewScreen returns an idle reference screen with no optional fields shown.
func NewScreen(svc *Service) *Screen {
	return &Screen{
		svc:   svc,
		state: screen.NewState(),
		form:  clinical.PatientForm{WeightUnit: string(clinical.Kilograms)},
	}
}

func (s *Screen) View() screen.View { return s.state.View() }
func (s *Screen) Dispose()          { s.state.Dispose() }

func (s *Screen) SetQuery(q string) {
	s.mu.Lock()
	s.query = q
	s.mu.Unlock()
}

// SetPatient replaces the patient fields. An empty unit keeps the current
// one.
func (s *Screen) SetPatient(f clinical.PatientForm) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.WeightUnit == "" {
		f.WeightUnit = s.form.WeightUnit
	}
	s.form = f
}

func (s *Screen) Patient() clinical.PatientForm {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form
}

// ToggleUnit flips the weight unit between kg and lb.
func (s *Screen) ToggleUnit() clinical.WeightUnit {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := clinical.ParseWeightUnit(s.form.WeightUnit)
	if err != nil {
		u = clinical.Kilograms
	}
	u = u.Toggle()
	s.form.WeightUnit = string(u)
	return u
}

// RevealNext shows one more optional field and returns how many are
// visible.
func (s *Screen) RevealNext() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.revealed < len(OptionalFields) {
		s.revealed++
	}
	return s.revealed
}

// VisibleFields lists the optional fields currently shown.
func (s *Screen) VisibleFields() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, s.revealed)
	copy(out, OptionalFields[:s.revealed])
	return out
}

// Search validates the form and asks the model. Validation failures are
// shown on the screen without a network call.
func (s *Screen) Search(ctx context.Context) (string, error) {
	s.mu.Lock()
	query, form := s.query, s.form
	s.mu.Unlock()

	if strings.TrimSpace(query) == "" {
		err := clinical.Invalid("query", "is required")
		s.state.Reject(err)
		return "", err
	}
	patient, err := form.Parse()
	if err != nil {
		s.state.Reject(err)
		return "", err
	}

	t := s.state.Begin()
	answer, err := s.svc.Query(ctx, clinical.ClinicalQuery{Query: query, Patient: patient})
	if err != nil {
		s.state.Fail(t, err)
		return "", err
	}
	s.state.Succeed(t, answer)
	return answer, nil
}
