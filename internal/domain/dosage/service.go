package dosage

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/clinassist/clinassist/internal/domain/clinical"
	"github.com/clinassist/clinassist/internal/platform/gateway"
	"github.com/clinassist/clinassist/internal/platform/prompt"
)

const (
	DefaultModel       = "gpt-4"
	DefaultTemperature = 0.7
)

// Options selects the chat model and sampling temperature. Temperature is
// passed through as given.
type Options struct {
	Model       string
	Temperature float64
}

// DefaultOptions returns the settings used when nothing is configured.
func DefaultOptions() Options {
	return Options{Model: DefaultModel, Temperature: DefaultTemperature}
}

// Service asks the model for medication dosages.
type Service struct {
	completer   gateway.Completer
	model       string
	temperature float64
	logger      zerolog.Logger
}

// NewService returns a Service. An empty model falls back to DefaultModel.
func NewService(completer gateway.Completer, opts Options, logger zerolog.Logger) *Service {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}
	return &Service{completer: completer, model: model, temperature: opts.Temperature, logger: logger}
}

// Result is the model's dosage answer and the parameters it was given.
type Result struct {
	Dosage     string                         `json:"dosage"`
	Parameters clinical.CalculationParameters `json:"parameters"`
}

// Calculate merges the calculation parameters over the defaults and returns
// the model's answer with the parameters it was given.
func (s *Service) Calculate(ctx context.Context, req clinical.DosageRequest) (Result, error) {
	p, err := prompt.BuildDosagePrompt(req.Medication, req.Patient, req.Parameters)
	if err != nil {
		return Result{}, err
	}
	answer, err := s.completer.CompleteChat(ctx, p.System, p.User, s.model, s.temperature)
	if err != nil {
		gateway.LogFailure(s.logger, err, "dosage calculation")
		return Result{}, err
	}
	return Result{Dosage: answer, Parameters: prompt.MergeParameters(req.Parameters)}, nil
}
