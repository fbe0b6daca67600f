// Package gateway talks to the external chat-completion and transcription
// endpoints and normalizes every failure into a GatewayError.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultBaseURL            = "https://api.openai.com/v1"
	DefaultTranscriptionModel = "whisper-1"
	DefaultTimeout            = 60 * time.Second

	maxResponseBytes = 1 << 20
)

// CredentialSource returns the bearer credential. It is consulted on every
// call so a rotated key is picked up without a restart.
type CredentialSource func() string

// StaticCredential returns a CredentialSource that always yields key.
func StaticCredential(key string) CredentialSource {
	return func() string { return key }
}

// Transcriber turns a local audio file into text.
type Transcriber interface {
	TranscribeAudio(ctx context.Context, fileURI string) (string, error)
}

// Completer runs a chat completion.
type Completer interface {
	CompleteChat(ctx context.Context, systemPrompt, userPrompt, model string, temperature float64) (string, error)
}

// Config configures a Client.
type Config struct {
	BaseURL            string
	TranscriptionModel string
	Timeout            time.Duration
	Credential         CredentialSource
	// Transport is optional; tests inject one.
	Transport http.RoundTripper
	Logger    zerolog.Logger
}

// Client talks to the chat completion and transcription endpoints.
type Client struct {
	baseURL            string
	transcriptionModel string
	credential         CredentialSource
	http               *http.Client
	logger             zerolog.Logger
}

// NewClient validates cfg and returns a ready Client.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid gateway base url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	model := strings.TrimSpace(cfg.TranscriptionModel)
	if model == "" {
		model = DefaultTranscriptionModel
	}
	cred := cfg.Credential
	if cred == nil {
		cred = StaticCredential("")
	}
	hc := &http.Client{Timeout: timeout}
	if cfg.Transport != nil {
		hc.Transport = cfg.Transport
	}
	return &Client{
		baseURL:            strings.TrimRight(base, "/"),
		transcriptionModel: model,
		credential:         cred,
		http:               hc,
		logger:             cfg.Logger,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// CompleteChat sends a chat completion and returns the first choice's
// content. An empty systemPrompt sends the user message alone.
func (c *Client) CompleteChat(ctx context.Context, systemPrompt, userPrompt, model string, temperature float64) (string, error) {
	const op = "chat completion"

	msgs := make([]chatMessage, 0, 2)
	if systemPrompt != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: systemPrompt})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: userPrompt})

	body, err := json.Marshal(chatRequest{Model: model, Messages: msgs, Temperature: temperature})
	if err != nil {
		return "", &GatewayError{Kind: KindInvalidResponse, Op: op, Err: fmt.Errorf("marshal request: %w", err)}
	}

	raw, err := c.do(ctx, op, "/chat/completions", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", &GatewayError{Kind: KindInvalidResponse, Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == nil {
		return "", &GatewayError{Kind: KindInvalidResponse, Op: op, Err: fmt.Errorf("response has no message content")}
	}
	return *out.Choices[0].Message.Content, nil
}

// do issues one authenticated POST and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, op, path, contentType string, body io.Reader) ([]byte, error) {
	key := strings.TrimSpace(c.credential())
	if key == "" {
		return nil, &GatewayError{Kind: KindAuth, Op: op, Err: ErrMissingCredential}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, &GatewayError{Kind: KindNetwork, Op: op, Err: fmt.Errorf("new request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &GatewayError{Kind: KindNetwork, Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &GatewayError{Kind: KindNetwork, Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	c.logger.Debug().
		Str("op", op).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("gateway call")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Debug().Str("op", op).Str("body", strings.TrimSpace(string(raw))).Msg("gateway upstream error body")
		return nil, &GatewayError{Kind: kindForStatus(resp.StatusCode), Op: op, StatusCode: resp.StatusCode}
	}
	return raw, nil
}
