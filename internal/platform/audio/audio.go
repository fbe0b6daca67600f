// Package audio stores uploaded voice recordings on local disk and hands
// back file:// URIs the transcriber can read.
package audio

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrFileTooLarge       = errors.New("audio file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("content type is not an allowed audio type")
	ErrEmptyFile          = errors.New("audio file is empty")
)

// MaxFileSize matches the transcription upload limit (25 MB).
const MaxFileSize = 25 * 1024 * 1024

// AllowedContentTypes lists the audio formats the transcription endpoint
// accepts.
var AllowedContentTypes = map[string]string{
	"audio/m4a":   ".m4a",
	"audio/x-m4a": ".m4a",
	"audio/mp4":   ".m4a",
	"audio/mpeg":  ".mp3",
	"audio/mp3":   ".mp3",
	"audio/wav":   ".wav",
	"audio/x-wav": ".wav",
	"audio/webm":  ".webm",
	"audio/ogg":   ".ogg",
	"audio/flac":  ".flac",
}

// Saved describes a stored recording file.
type Saved struct {
	URI         string    `json:"uri"`
	Path        string    `json:"path"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Hash        string    `json:"hash"`
	CreatedAt   time.Time `json:"created_at"`
}

// FileStore writes audio files into a single directory.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("audio: directory is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("audio: resolve directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("audio: create directory: %w", err)
	}
	return &FileStore{dir: abs}, nil
}

func (s *FileStore) Dir() string { return s.dir }

// Save validates the content type, writes r to a new uuid-named file and
// returns its URI. A partial file is removed on failure.
func (s *FileStore) Save(ctx context.Context, fileName, contentType string, r io.Reader) (*Saved, error) {
	ct := normalizeContentType(contentType, fileName)
	ext, ok := AllowedContentTypes[ct]
	if !ok {
		return nil, ErrInvalidContentType
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(s.dir, uuid.New().String()+ext)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("audio: create file: %w", err)
	}

	h := sha256.New()
	n, copyErr := io.Copy(io.MultiWriter(f, h), io.LimitReader(r, MaxFileSize+1))
	closeErr := f.Close()
	switch {
	case copyErr != nil:
		_ = os.Remove(path)
		return nil, fmt.Errorf("audio: write file: %w", copyErr)
	case closeErr != nil:
		_ = os.Remove(path)
		return nil, fmt.Errorf("audio: close file: %w", closeErr)
	case n > MaxFileSize:
		_ = os.Remove(path)
		return nil, ErrFileTooLarge
	case n == 0:
		_ = os.Remove(path)
		return nil, ErrEmptyFile
	}

	return &Saved{
		URI:         FileURI(path),
		Path:        path,
		ContentType: ct,
		Size:        n,
		Hash:        fmt.Sprintf("%x", h.Sum(nil)),
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// Remove deletes the file behind uri if it lives in this store.
func (s *FileStore) Remove(uri string) error {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" {
		return fmt.Errorf("audio: not a file uri: %q", uri)
	}
	path := filepath.Clean(u.Path)
	if filepath.Dir(path) != s.dir {
		return fmt.Errorf("audio: %q is outside the store", uri)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("audio: remove file: %w", err)
	}
	return nil
}

// FileURI converts an absolute path to a file:// URI.
func FileURI(path string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}

func normalizeContentType(contentType, fileName string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct != "" && ct != "application/octet-stream" {
		return ct
	}
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".m4a", ".mp4":
		return "audio/m4a"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".webm":
		return "audio/webm"
	case ".ogg":
		return "audio/ogg"
	case ".flac":
		return "audio/flac"
	}
	return ct
}
