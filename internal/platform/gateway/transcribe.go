package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/clinassist/clinassist/internal/domain/clinical"
)

// MaxAudioBytes is the upload limit of the transcription endpoint.
const MaxAudioBytes = 25 << 20

var audioContentTypes = map[string]string{
	".m4a":  "audio/m4a",
	".mp3":  "audio/mpeg",
	".mpga": "audio/mpeg",
	".mp4":  "audio/mp4",
	".wav":  "audio/wav",
	".webm": "audio/webm",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
}

// AudioContentType guesses the MIME type of an audio file from its name.
// Unknown extensions are sent as audio/m4a, the recorder's native format.
func AudioContentType(name string) string {
	if ct, ok := audioContentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return "audio/m4a"
}

// LocalPath resolves a file:// URI or a plain path to a filesystem path.
func LocalPath(fileURI string) (string, error) {
	fileURI = strings.TrimSpace(fileURI)
	if fileURI == "" {
		return "", clinical.Invalid("fileUri", "is required")
	}
	if !strings.HasPrefix(fileURI, "file://") {
		return fileURI, nil
	}
	u, err := url.Parse(fileURI)
	if err != nil || u.Path == "" {
		return "", clinical.Invalid("fileUri", "is not a valid file URI")
	}
	return u.Path, nil
}

type transcriptionResponse struct {
	Text *string `json:"text"`
}

// TranscribeAudio uploads the audio at fileURI and returns the recognized
// text. A file that cannot be read is a validation error; nothing is sent.
func (c *Client) TranscribeAudio(ctx context.Context, fileURI string) (string, error) {
	const op = "transcription"

	path, err := LocalPath(fileURI)
	if err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", clinical.Invalid("fileUri", "cannot be read")
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	name := filepath.Base(path)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	h.Set("Content-Type", AudioContentType(name))
	part, err := mw.CreatePart(h)
	if err != nil {
		return "", &GatewayError{Kind: KindInvalidResponse, Op: op, Err: fmt.Errorf("create file part: %w", err)}
	}
	n, err := io.Copy(part, io.LimitReader(f, MaxAudioBytes+1))
	if err != nil {
		return "", clinical.Invalid("fileUri", "cannot be read")
	}
	if n > MaxAudioBytes {
		return "", clinical.Invalid("fileUri", "exceeds the 25 MB upload limit")
	}
	if err := mw.WriteField("model", c.transcriptionModel); err != nil {
		return "", &GatewayError{Kind: KindInvalidResponse, Op: op, Err: fmt.Errorf("write model field: %w", err)}
	}
	if err := mw.Close(); err != nil {
		return "", &GatewayError{Kind: KindInvalidResponse, Op: op, Err: fmt.Errorf("close multipart body: %w", err)}
	}

	raw, err := c.do(ctx, op, "/audio/transcriptions", mw.FormDataContentType(), &buf)
	if err != nil {
		return "", err
	}

	var out transcriptionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", &GatewayError{Kind: KindInvalidResponse, Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	if out.Text == nil {
		return "", &GatewayError{Kind: KindInvalidResponse, Op: op, Err: fmt.Errorf("response has no text field")}
	}
	return *out.Text, nil
}
