package api

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ihavenoenemy/mathcast/internal/generator"
	"github.com/ihavenoenemy/mathcast/internal/manim"
	"github.com/ihavenoenemy/mathcast/internal/media"
	"github.com/ihavenoenemy/mathcast/internal/narrator"
	"github.com/ihavenoenemy/mathcast/internal/validator"
)

type fakeGenerator struct {
	result *generator.Result
	err    error
	chunks []string
	topic  string
	diff   generator.Difficulty
}

func (f *fakeGenerator) Generate(_ context.Context, topic string, d generator.Difficulty) (*generator.Result, error) {
	f.topic, f.diff = topic, d
	return f.result, f.err
}

func (f *fakeGenerator) Stream(_ context.Context, topic string, d generator.Difficulty, onChunk func(string) error) (string, error) {
	f.topic, f.diff = topic, d
	var b strings.Builder
	for _, c := range f.chunks {
		if err := onChunk(c); err != nil {
			return b.String(), err
		}
		b.WriteString(c)
	}
	return b.String(), f.err
}

type fakeValidator struct {
	result validator.Result
	seen   string
}

func (f *fakeValidator) Validate(_ context.Context, script string) validator.Result {
	f.seen = script
	return f.result
}

// fakeRenderer returns results in order and records the options of each call.
type fakeRenderer struct {
	results []manim.Result
	calls   []manim.Options
	ctxErrs []error
}

func (f *fakeRenderer) Render(ctx context.Context, _ string, opts manim.Options) manim.Result {
	f.calls = append(f.calls, opts)
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	i := len(f.calls) - 1
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	return f.results[i]
}

type fakeNarrator struct {
	audio      []byte
	alignment  narrator.Alignment
	err        error
	opts       narrator.VoiceOptions
	timestamps bool
	voices     []narrator.Voice
}

func (f *fakeNarrator) Synthesize(_ context.Context, _ string, opts narrator.VoiceOptions) ([]byte, error) {
	f.opts = opts
	return f.audio, f.err
}

func (f *fakeNarrator) SynthesizeWithAlignment(_ context.Context, _ string, opts narrator.VoiceOptions) ([]byte, narrator.Alignment, error) {
	f.opts, f.timestamps = opts, true
	return f.audio, f.alignment, f.err
}

func (f *fakeNarrator) Stream(_ context.Context, _ string, opts narrator.VoiceOptions) (io.ReadCloser, error) {
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(string(f.audio))), nil
}

func (f *fakeNarrator) Voices(context.Context) ([]narrator.Voice, error) {
	return f.voices, f.err
}

type fakeMedia struct {
	result   media.Result
	video    string
	audio    []byte
	opts     media.SyncOptions
	captions []media.Caption
	target   float64
}

func (f *fakeMedia) Sync(_ context.Context, video string, audio []byte, opts media.SyncOptions) media.Result {
	f.video, f.audio, f.opts = video, audio, opts
	return f.result
}

func (f *fakeMedia) AddCaptions(_ context.Context, video string, captions []media.Caption) media.Result {
	f.video, f.captions = video, captions
	return f.result
}

func (f *fakeMedia) AdjustSpeed(_ context.Context, video string, target float64) media.Result {
	f.video, f.target = video, target
	return f.result
}

func testServerConfig() ServerConfig {
	return ServerConfig{
		Validator: &fakeValidator{result: validator.Result{Valid: true}},
		StartTime: time.Now(),
		Version:   "test",
	}
}

func do(t *testing.T, cfg ServerConfig, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	NewRouter(cfg).ServeHTTP(rr, req)
	return rr
}

