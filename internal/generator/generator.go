// Package generator asks an OpenRouter-compatible chat-completion API for an
// explanation and an animation script, and recovers the payload from
// whatever shape the model returned.
package generator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ihavenoenemy/mathcast/internal/apperr"
	"github.com/ihavenoenemy/mathcast/internal/logging"
	"github.com/ihavenoenemy/mathcast/internal/metrics"
)

const (
	DefaultBaseURL  = "https://openrouter.ai/api/v1"
	DefaultModel    = "qwen/qwen-2.5-72b-instruct:free"
	defaultTimeout  = 120 * time.Second
	defaultBackoff  = time.Second
	providerName    = "OpenRouter"
	defaultSiteURL  = "http://localhost:3000"
	defaultSiteName = "ihavenoenemy"
)

// Config holds the generator's configuration.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	SiteURL     string // sent as HTTP-Referer
	SiteName    string // sent as X-Title
	MaxRetries  int    // total attempts on HTTP 429
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
	Backoff     time.Duration // first 429 wait; doubles per attempt
	Logger      *slog.Logger
}

// Generator is safe for concurrent use.
type Generator struct {
	client *openai.Client
	cfg    Config
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a Generator. An empty API key is a configuration error.
func New(cfg Config) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("LLM API key not configured")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.SiteURL == "" {
		cfg.SiteURL = defaultSiteURL
	}
	if cfg.SiteName == "" {
		cfg.SiteName = defaultSiteName
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 3
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	oc.HTTPClient = &http.Client{
		Timeout: cfg.Timeout,
		Transport: &headerTransport{
			base: http.DefaultTransport,
			headers: map[string]string{
				"HTTP-Referer": cfg.SiteURL,
				"X-Title":      cfg.SiteName,
			},
		},
	}

	return &Generator{
		client: openai.NewClientWithConfig(oc),
		cfg:    cfg,
		logger: logging.WithComponent(logging.OrDiscard(cfg.Logger), "generator"),
		sleep:  sleepCtx,
	}, nil
}

// Generate produces an explanation and script for topic.
func (g *Generator) Generate(ctx context.Context, topic string, difficulty Difficulty) (*Result, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, apperr.Inputf("Topic is required")
	}

	content, err := g.Complete(ctx, SystemPrompt, UserPrompt(topic, difficulty))
	if err != nil {
		return nil, err
	}

	res, err := ParsePayload(content)
	if err != nil {
		g.logger.Warn("cannot recover payload", "error", err, "content_len", len(content))
		return nil, err
	}
	metrics.ObservePayloadStrategy(res.Strategy)
	g.logger.Info("payload recovered", "strategy", res.Strategy, "script_len", len(res.Script))
	return res, nil
}

// Complete sends one chat completion, retrying on HTTP 429 with exponential
// backoff. Other failures are returned immediately.
func (g *Generator) Complete(ctx context.Context, system, user string) (string, error) {
	req := g.request(system, user)

	for attempt := 0; ; attempt++ {
		start := time.Now()
		resp, err := g.client.CreateChatCompletion(ctx, req)
		metrics.ObserveLLM(g.cfg.Model, time.Since(start), err)

		if err == nil {
			if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
				return "", apperr.Wrap(apperr.KindUpstream, errors.New("empty content"), "No content in "+providerName+" response")
			}
			return resp.Choices[0].Message.Content, nil
		}

		status := statusOf(err)
		if status == http.StatusTooManyRequests && attempt < g.cfg.MaxRetries-1 {
			wait := g.cfg.Backoff << attempt
			g.logger.Warn("rate limited, backing off", "attempt", attempt+1, "wait_ms", wait.Milliseconds())
			if err := g.sleep(ctx, wait); err != nil {
				return "", apperr.Wrap(apperr.KindUpstream, err, "generation cancelled")
			}
			continue
		}

		return "", upstreamError(err, status)
	}
}

// Stream emits each content delta to onChunk and returns the full text.
// An error from onChunk aborts the stream.
func (g *Generator) Stream(ctx context.Context, topic string, difficulty Difficulty, onChunk func(string) error) (string, error) {
	if strings.TrimSpace(topic) == "" {
		return "", apperr.Inputf("Topic is required")
	}

	req := g.request(SystemPrompt, UserPrompt(topic, difficulty))
	req.Stream = true

	start := time.Now()
	stream, err := g.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		metrics.ObserveLLM(g.cfg.Model, time.Since(start), err)
		return "", upstreamError(err, statusOf(err))
	}
	defer stream.Close()

	var full strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			metrics.ObserveLLM(g.cfg.Model, time.Since(start), err)
			return full.String(), upstreamError(err, statusOf(err))
		}
		if len(resp.Choices) == 0 {
			continue
		}
		chunk := resp.Choices[0].Delta.Content
		if chunk == "" {
			continue
		}
		full.WriteString(chunk)
		if err := onChunk(chunk); err != nil {
			return full.String(), err
		}
	}

	metrics.ObserveLLM(g.cfg.Model, time.Since(start), nil)
	return full.String(), nil
}

func (g *Generator) request(system, user string) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model: g.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
	}
}

// statusOf extracts the HTTP status from a go-openai error, or 0.
func statusOf(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

func upstreamError(err error, status int) error {
	if status == 0 {
		return apperr.Wrap(apperr.KindUpstream, err, providerName+" request failed")
	}
	e := apperr.NewUpstream(providerName, status, "")
	e.Err = err
	return e
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// headerTransport adds fixed headers to every request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}
