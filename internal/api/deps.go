package api

import (
	"context"
	"io"

	"github.com/ihavenoenemy/mathcast/internal/generator"
	"github.com/ihavenoenemy/mathcast/internal/manim"
	"github.com/ihavenoenemy/mathcast/internal/media"
	"github.com/ihavenoenemy/mathcast/internal/narrator"
	"github.com/ihavenoenemy/mathcast/internal/validator"
)

// ContentGenerator is implemented by *generator.Generator.
type ContentGenerator interface {
	Generate(ctx context.Context, topic string, difficulty generator.Difficulty) (*generator.Result, error)
	Stream(ctx context.Context, topic string, difficulty generator.Difficulty, onChunk func(string) error) (string, error)
}

// ScriptValidator is implemented by *validator.Validator.
type ScriptValidator interface {
	Validate(ctx context.Context, script string) validator.Result
}

// SceneRenderer is implemented by *manim.Renderer.
type SceneRenderer interface {
	Render(ctx context.Context, script string, opts manim.Options) manim.Result
}

// Narrator is implemented by *narrator.Client.
type Narrator interface {
	Synthesize(ctx context.Context, text string, opts narrator.VoiceOptions) ([]byte, error)
	SynthesizeWithAlignment(ctx context.Context, text string, opts narrator.VoiceOptions) ([]byte, narrator.Alignment, error)
	Stream(ctx context.Context, text string, opts narrator.VoiceOptions) (io.ReadCloser, error)
	Voices(ctx context.Context) ([]narrator.Voice, error)
}

// Synchronizer is implemented by *media.Synchronizer.
type Synchronizer interface {
	Sync(ctx context.Context, videoPath string, audio []byte, opts media.SyncOptions) media.Result
	AddCaptions(ctx context.Context, videoPath string, captions []media.Caption) media.Result
	AdjustSpeed(ctx context.Context, videoPath string, target float64) media.Result
}
