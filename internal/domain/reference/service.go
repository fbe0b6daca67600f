package reference

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
// passed through as given, so 0 requests deterministic output.
type Options struct {
	Model       string
	Temperature float64
}

// DefaultOptions returns the settings used when nothing is configured.
func DefaultOptions() Options {
	return Options{Model: DefaultModel, Temperature: DefaultTemperature}
}

// Service answers free-text clinical reference questions.
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

// Query builds the clinical prompt and returns the model's answer. Invalid
// input fails before any network call.
func (s *Service) Query(ctx context.Context, q clinical.ClinicalQuery) (string, error) {
	p, err := prompt.BuildClinicalPrompt(q.Query, q.Patient)
	if err != nil {
		return "", err
	}
	answer, err := s.completer.CompleteChat(ctx, p.System, p.User, s.model, s.temperature)
	if err != nil {
		gateway.LogFailure(s.logger, err, "clinical reference")
		return "", err
	}
	return answer, nil
}
