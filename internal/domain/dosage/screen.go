package dosage

import (
	"context"
	"sync"

	"github.com/clinassist/clinassist/internal/domain/clinical"
	"github.com/clinassist/clinassist/internal/platform/screen"
)

// Screen is the dosage calculator.
type Screen struct {
	svc   *Service
	state *screen.State

	mu   sync.Mutex
	form Form
	last Result
}

// NewScreen returns an idle dosage screen.
func NewScreen(svc *Service) *Screen {
	return &Screen{
		svc:   svc,
		state: screen.NewState(),
		form:  Form{Patient: clinical.PatientForm{WeightUnit: string(clinical.Kilograms)}},
	}
}

func (s *Screen) View() screen.View { return s.state.View() }
func (s *Screen) Dispose()          { s.state.Dispose() }

// SetForm replaces the inputs. An empty weight unit keeps the current one.
func (s *Screen) SetForm(f Form) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.Patient.WeightUnit == "" {
		f.Patient.WeightUnit = s.form.Patient.WeightUnit
	}
	s.form = f
}

func (s *Screen) Form() Form {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form
}

func (s *Screen) ToggleUnit() clinical.WeightUnit {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := clinical.ParseWeightUnit(s.form.Patient.WeightUnit)
	if err != nil {
		u = clinical.Kilograms
	}
	u = u.Toggle()
	s.form.Patient.WeightUnit = string(u)
	return u
}

// Calculate validates the form and asks the model for a dosage.
func (s *Screen) Calculate(ctx context.Context) (Result, error) {
	req, err := s.Form().Request()
	if err != nil {
		s.state.Reject(err)
		return Result{}, err
	}
	t := s.state.Begin()
	res, err := s.svc.Calculate(ctx, req)
	if err != nil {
		s.state.Fail(t, err)
		return Result{}, err
	}
	if s.state.Succeed(t, res.Dosage) {
		s.mu.Lock()
		s.last = res
		s.mu.Unlock()
	}
	return res, nil
}

// CopyText returns the last dosage shown, or "" before any result.
func (s *Screen) CopyText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last.Dosage
}
