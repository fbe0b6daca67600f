//go:build !whisper

package gateway

import (
	"context"
	"errors"
)

const WhisperSupported = false

// ErrWhisperUnavailable is returned when on-device transcription is
// requested from a binary built without the whisper tag.
var ErrWhisperUnavailable = errors.New("built without on-device transcription; rebuild with -tags whisper")

type LocalTranscriber struct{}

func NewLocalTranscriber(modelsDir, modelID, language string) (*LocalTranscriber, error) {
	return nil, ErrWhisperUnavailable
}

func (t *LocalTranscriber) TranscribeAudio(ctx context.Context, fileURI string) (string, error) {
	return "", ErrWhisperUnavailable
}
