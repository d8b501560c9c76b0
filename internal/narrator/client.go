// Package narrator is an HTTP client for an ElevenLabs-compatible
// text-to-speech API.
package narrator

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
	"net/url"
	"strings"
	"time"

	"github.com/ihavenoenemy/mathcast/internal/apperr"
	"github.com/ihavenoenemy/mathcast/internal/logging"
	"github.com/ihavenoenemy/mathcast/internal/metrics"
)

const (
	DefaultBaseURL = "https://api.elevenlabs.io/v1"
	DefaultVoiceID = "21m00Tcm4TlvDq8ikWAM"
	DefaultModelID = "eleven_multilingual_v2"

	providerName   = "ElevenLabs"
	defaultTimeout = 60 * time.Second
	maxErrorBody   = 4096
	maxAudioBytes  = 50 << 20
)

// VoiceOptions selects the voice and its settings.
type VoiceOptions struct {
	VoiceID         string
	ModelID         string
	Stability       float64
	SimilarityBoost float64
	Style           float64
	UseSpeakerBoost bool
}

// DefaultVoiceOptions returns the stock narration voice.
func DefaultVoiceOptions() VoiceOptions {
	return VoiceOptions{
		VoiceID:         DefaultVoiceID,
		ModelID:         DefaultModelID,
		Stability:       0.5,
		SimilarityBoost: 0.75,
		Style:           0.5,
		UseSpeakerBoost: true,
	}
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

type speechRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// Alignment is the provider's character timing data, passed through as is.
type Alignment = json.RawMessage

// Voice is one entry of the voices listing.
type Voice struct {
	VoiceID    string            `json:"voice_id"`
	Name       string            `json:"name"`
	Category   string            `json:"category,omitempty"`
	Labels     map[string]string `json:"labels,omitempty"`
	PreviewURL string            `json:"preview_url,omitempty"`
}

// Client talks to the TTS provider. It performs no retries.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client. An empty API key is a configuration error.
func NewClient(baseURL, apiKey string, logger *slog.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("TTS API key not configured")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: logging.WithComponent(logging.OrDiscard(logger), "narrator"),
	}, nil
}

// Synthesize returns MPEG audio for text.
func (c *Client) Synthesize(ctx context.Context, text string, opts VoiceOptions) ([]byte, error) {
	resp, err := c.postSpeech(ctx, text, opts, "")
	if err != nil {
		metrics.ObserveTTS("speech", err)
		return nil, err
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		err = apperr.Wrap(apperr.KindUpstream, err, "cannot read audio")
	}
	metrics.ObserveTTS("speech", err)
	if err != nil {
		return nil, err
	}

	c.logger.Info("speech synthesized", "voice_id", opts.VoiceID, "chars", len(text), "audio_bytes", len(audio))
	return audio, nil
}

// SynthesizeWithAlignment returns audio plus the provider's timing data.
func (c *Client) SynthesizeWithAlignment(ctx context.Context, text string, opts VoiceOptions) ([]byte, Alignment, error) {
	resp, err := c.postSpeech(ctx, text, opts, "/with-timestamps")
	if err != nil {
		metrics.ObserveTTS("with_timestamps", err)
		return nil, nil, err
	}
	defer resp.Body.Close()

	var body struct {
		AudioBase64 string          `json:"audio_base64"`
		Alignment   json.RawMessage `json:"alignment"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxAudioBytes*2)).Decode(&body); err != nil {
		err = apperr.Wrap(apperr.KindUpstream, err, "cannot decode timestamped speech")
		metrics.ObserveTTS("with_timestamps", err)
		return nil, nil, err
	}

	audio, err := base64.StdEncoding.DecodeString(body.AudioBase64)
	if err != nil {
		err = apperr.Wrap(apperr.KindUpstream, err, "invalid audio_base64")
		metrics.ObserveTTS("with_timestamps", err)
		return nil, nil, err
	}

	metrics.ObserveTTS("with_timestamps", nil)
	c.logger.Info("speech synthesized with alignment", "voice_id", opts.VoiceID, "audio_bytes", len(audio))
	return audio, Alignment(body.Alignment), nil
}

// Stream returns the audio body as it arrives. The caller must close it.
func (c *Client) Stream(ctx context.Context, text string, opts VoiceOptions) (io.ReadCloser, error) {
	resp, err := c.postSpeech(ctx, text, opts, "/stream")
	metrics.ObserveTTS("stream", err)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Voices lists the voices available to the account.
func (c *Client) Voices(ctx context.Context) ([]Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.do(req)
	metrics.ObserveTTS("voices", err)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body struct {
		Voices []Voice `json:"voices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, err, "cannot decode voices")
	}
	return body.Voices, nil
}

func (c *Client) postSpeech(ctx context.Context, text string, opts VoiceOptions, suffix string) (*http.Response, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperr.Inputf("Text is required")
	}
	opts = opts.withDefaults()

	payload, err := json.Marshal(speechRequest{
		Text:    text,
		ModelID: opts.ModelID,
		VoiceSettings: voiceSettings{
			Stability:       opts.Stability,
			SimilarityBoost: opts.SimilarityBoost,
			Style:           opts.Style,
			UseSpeakerBoost: opts.UseSpeakerBoost,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal speech request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/text-to-speech/%s%s", c.baseURL, url.PathEscape(opts.VoiceID), suffix)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.apiKey)
	if suffix != "/with-timestamps" {
		req.Header.Set("Accept", "audio/mpeg")
	}

	c.logger.Debug("requesting speech",
		"endpoint", endpoint,
		"voice_id", opts.VoiceID,
		"model_id", opts.ModelID,
		"key", logging.SanitizeToken(c.apiKey),
	)
	return c.do(req)
}

// do sends req and converts non-2xx responses into upstream errors.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, err, "http request failed")
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	c.logger.Warn("provider returned error", "status", resp.StatusCode, "body", string(body))
	return nil, apperr.NewUpstream(providerName, resp.StatusCode, strings.TrimSpace(string(body)))
}

func (o VoiceOptions) withDefaults() VoiceOptions {
	d := DefaultVoiceOptions()
	if o.VoiceID == "" {
		o.VoiceID = d.VoiceID
	}
	if o.ModelID == "" {
		o.ModelID = d.ModelID
	}
	return o
}
