package chat

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ihavenoenemy/mathcast/internal/api"
	"github.com/ihavenoenemy/mathcast/internal/logging"
)

// Generation is the generator output a turn needs.
type Generation struct {
	Explanation string
	Script      string
}

// Backend runs the two mandatory steps of a turn.
type Backend interface {
	Generate(ctx context.Context, topic, difficulty string) (*Generation, error)
	Render(ctx context.Context, script, quality string) (string, error)
}

// Narrator is implemented by backends that can voice the explanation and
// mux it into the rendered video.
type Narrator interface {
	Narrate(ctx context.Context, text string) ([]byte, error)
	Sync(ctx context.Context, videoPath string, audio []byte) (string, error)
}

// HTTPBackend talks to a running mathcast server.
type HTTPBackend struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPBackend targets baseURL, e.g. http://127.0.0.1:8787. Rendering can
// take minutes, so the client timeout is generous.
func NewHTTPBackend(baseURL string, logger *slog.Logger) *HTTPBackend {
	return &HTTPBackend{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Minute},
		logger:     logging.WithComponent(logging.OrDiscard(logger), "chat-backend"),
	}
}

func (b *HTTPBackend) Generate(ctx context.Context, topic, difficulty string) (*Generation, error) {
	var resp api.GenerateResponse
	err := b.post(ctx, "/generate", api.GenerateRequest{Topic: topic, Difficulty: difficulty}, &resp, "Failed to generate content")
	if err != nil {
		return nil, err
	}
	script := resp.Data.Script
	if script == "" {
		script = resp.Data.ManimCode
	}
	return &Generation{Explanation: resp.Data.Explanation, Script: script}, nil
}

func (b *HTTPBackend) Render(ctx context.Context, script, quality string) (string, error) {
	var resp api.RenderResponse
	err := b.post(ctx, "/render", api.RenderRequest{Code: script, Quality: quality}, &resp, "Failed to render animation")
	var se *ServerError
	if errors.As(err, &se) && se.Details != "" {
		return "", fmt.Errorf("%s", se.Details)
	}
	if err != nil {
		return "", err
	}
	return resp.VideoPath, nil
}

func (b *HTTPBackend) Narrate(ctx context.Context, text string) ([]byte, error) {
	var resp api.AudioResponse
	if err := b.post(ctx, "/audio", api.AudioRequest{Text: text}, &resp, "Failed to generate audio"); err != nil {
		return nil, err
	}
	audio, err := base64.StdEncoding.DecodeString(resp.Audio)
	if err != nil {
		return nil, fmt.Errorf("decode audio: %w", err)
	}
	return audio, nil
}

func (b *HTTPBackend) Sync(ctx context.Context, videoPath string, audio []byte) (string, error) {
	req := api.SyncRequest{
		VideoPath: videoPath,
		AudioData: base64.StdEncoding.EncodeToString(audio),
	}
	var resp api.MediaResponse
	if err := b.post(ctx, "/sync", req, &resp, "Failed to sync audio"); err != nil {
		return "", err
	}
	return resp.OutputPath, nil
}

// ServerError is a non-success response from the server.
type ServerError struct {
	StatusCode int
	Message    string
	Details    string
}

func (e *ServerError) Error() string {
	return e.Message
}

// envelope covers every error body the server produces.
type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details"`
}

func (b *HTTPBackend) post(ctx context.Context, path string, in, out any, fallback string) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", fallback, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}

	b.logger.Debug("backend call",
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)
	if resp.StatusCode >= 300 || decodeErr != nil || !env.Success {
		se := &ServerError{StatusCode: resp.StatusCode, Message: env.Error, Details: env.Details}
		if se.Message == "" {
			se.Message = fmt.Sprintf("%s (HTTP %d)", fallback, resp.StatusCode)
		}
		return se
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
