package recording

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinassist/clinassist/internal/domain/clinical"
	"github.com/clinassist/clinassist/internal/platform/gateway"
	"github.com/clinassist/clinassist/internal/platform/prompt"
)

const (
	DefaultReformatModel = "gpt-3.5-turbo"
	DefaultTemperature   = 0.7
)

// Options configures the reformat call. Temperature is passed through as
// given.
type Options struct {
	ReformatModel string
	Temperature   float64
}

// DefaultOptions returns the settings used when nothing is configured.
func DefaultOptions() Options {
	return Options{ReformatModel: DefaultReformatModel, Temperature: DefaultTemperature}
}

// Service runs the transcription and reformat flows against the store.
type Service struct {
	store       *Store
	transcriber gateway.Transcriber
	completer   gateway.Completer
	model       string
	temperature float64
	logger      zerolog.Logger
	now         func() time.Time
}

// NewService returns a Service backed by store. An empty model falls back to
// DefaultReformatModel.
func NewService(store *Store, transcriber gateway.Transcriber, completer gateway.Completer, opts Options, logger zerolog.Logger) *Service {
	model := strings.TrimSpace(opts.ReformatModel)
	if model == "" {
		model = DefaultReformatModel
	}
	return &Service{
		store:       store,
		transcriber: transcriber,
		completer:   completer,
		model:       model,
		temperature: opts.Temperature,
		logger:      logger,
		now:         time.Now,
	}
}

// List returns every recording in creation order.
func (s *Service) List(ctx context.Context) (List, error) {
	return s.store.LoadAll(ctx)
}

// Get returns the recording at index with its cached notes attached.
func (s *Service) Get(ctx context.Context, index int) (Recording, error) {
	list, err := s.store.LoadAll(ctx)
	if err != nil {
		return Recording{}, err
	}
	if index < 0 || index >= len(list) {
		return Recording{}, clinical.Invalid("index", fmt.Sprintf("%d is out of range", index))
	}
	rec := list[index]
	notes, ok, err := s.store.LoadFormattedNotes(ctx, rec.Title)
	if err != nil {
		return Recording{}, err
	}
	if ok {
		rec.FormattedNotes = &notes
	}
	return rec, nil
}

// Transcribe converts the audio at fileURI to text and appends a new
// recording. Nothing is persisted unless transcription succeeds.
func (s *Service) Transcribe(ctx context.Context, fileURI string) (Recording, int, error) {
	if strings.TrimSpace(fileURI) == "" {
		return Recording{}, 0, clinical.Invalid("file", "is required")
	}
	text, err := s.transcriber.TranscribeAudio(ctx, fileURI)
	if err != nil {
		gateway.LogFailure(s.logger, err, "transcription")
		return Recording{}, 0, err
	}
	created := Timestamp(s.now())
	rec, index, err := s.store.Append(ctx, func(n int) Recording {
		return Recording{
			Title:         Title(n),
			Transcription: text,
			FileURI:       fileURI,
			CreatedAt:     created,
		}
	})
	if err != nil {
		return Recording{}, 0, err
	}
	s.logger.Info().Str("title", rec.Title).Int("index", index).Msg("recording saved")
	return rec, index, nil
}

// ReformatResult carries the notes and whether they came from the cache.
type ReformatResult struct {
	Notes  string `json:"formattedNotes"`
	Cached bool   `json:"cached"`
	// Saved is false when the notes were produced but could not be cached.
	Saved bool `json:"saved"`
}

// Reformat returns the formatted notes for the recording at index. Cached
// notes are returned as-is without calling the model. Fresh notes are
// persisted; if that write fails the notes are still returned together with
// the StorageError.
func (s *Service) Reformat(ctx context.Context, index int) (ReformatResult, error) {
	rec, err := s.Get(ctx, index)
	if err != nil {
		return ReformatResult{}, err
	}
	if rec.HasNotes() {
		return ReformatResult{Notes: *rec.FormattedNotes, Cached: true, Saved: true}, nil
	}
	userPrompt, err := prompt.BuildReformatPrompt(rec.Transcription)
	if err != nil {
		return ReformatResult{}, err
	}
	notes, err := s.completer.CompleteChat(ctx, "", userPrompt, s.model, s.temperature)
	if err != nil {
		gateway.LogFailure(s.logger, err, "reformat")
		return ReformatResult{}, err
	}
	res := ReformatResult{Notes: notes}
	if err := s.store.SaveFormattedNotes(ctx, rec.Title, notes); err != nil {
		s.logger.Error().Err(err).Str("title", rec.Title).Msg("formatted notes not saved")
		return res, err
	}
	res.Saved = true
	return res, nil
}

// Delete removes the recording at index.
func (s *Service) Delete(ctx context.Context, index int) (Recording, error) {
	rec, err := s.store.DeleteAt(ctx, index)
	if err != nil {
		return Recording{}, err
	}
	s.logger.Info().Str("title", rec.Title).Msg("recording deleted")
	return rec, nil
}

// Orphans lists titles whose notes outlived their recording.
func (s *Service) Orphans(ctx context.Context) ([]string, error) {
	return s.store.OrphanedNotes(ctx)
}

// PruneOrphans deletes orphaned notes entries on request.
func (s *Service) PruneOrphans(ctx context.Context) ([]string, error) {
	pruned, err := s.store.PruneOrphanedNotes(ctx)
	if len(pruned) > 0 {
		s.logger.Info().Strs("titles", pruned).Msg("orphaned notes pruned")
	}
	return pruned, err
}
