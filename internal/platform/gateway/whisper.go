//go:build whisper

package gateway

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mutablelogic/go-whisper/pkg/schema"
	whisper "github.com/mutablelogic/go-whisper/pkg/whisper"
)

// WhisperSupported reports whether this binary was built with on-device
// transcription.
const WhisperSupported = true

// LocalTranscriber runs whisper.cpp models on the device instead of calling
// the transcription endpoint.
type LocalTranscriber struct {
	modelsDir string
	modelID   string
	language  string
}

// NewLocalTranscriber checks that modelsDir exists. The model itself is
// loaded per call.
func NewLocalTranscriber(modelsDir, modelID, language string) (*LocalTranscriber, error) {
	if _, err := os.Stat(modelsDir); err != nil {
		return nil, fmt.Errorf("whisper models dir: %w", err)
	}
	if modelID == "" {
		modelID = "ggml-small"
	}
	return &LocalTranscriber{modelsDir: modelsDir, modelID: modelID, language: language}, nil
}

func (t *LocalTranscriber) TranscribeAudio(ctx context.Context, fileURI string) (string, error) {
	const op = "local transcription"

	path, err := LocalPath(fileURI)
	if err != nil {
		return "", err
	}

	manager, err := whisper.New(t.modelsDir)
	if err != nil {
		return "", &GatewayError{Kind: KindInvalidResponse, Op: op, Err: fmt.Errorf("create whisper manager: %w", err)}
	}
	defer manager.Close()

	model := manager.GetModelById(t.modelID)
	if model == nil {
		return "", &GatewayError{Kind: KindInvalidResponse, Op: op, Err: fmt.Errorf("model %s not found in %s", t.modelID, t.modelsDir)}
	}

	var result strings.Builder
	err = manager.WithModel(model, func(task *whisper.Task) error {
		if t.language != "" {
			if err := task.SetLanguage(t.language); err != nil {
				return fmt.Errorf("set language: %w", err)
			}
		}
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open audio: %w", err)
		}
		defer f.Close()
		return task.TranscribeReader(ctx, f, func(seg *schema.Segment) {
			result.WriteString(seg.Text)
		})
	})
	if err != nil {
		return "", &GatewayError{Kind: KindInvalidResponse, Op: op, Err: err}
	}
	return strings.TrimSpace(result.String()), nil
}
