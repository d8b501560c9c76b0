package manim

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ihavenoenemy/mathcast/internal/apperr"
	"github.com/ihavenoenemy/mathcast/internal/pipelines"
)

const scene = `from manim import *

class Demo(Scene):
    def construct(self):
        self.play(Create(Circle()))
`

// fakeManim emulates the manim CLI: it checks the scratch script exists
// and, when produce is set, writes the video under media/videos. Like
// manim, the container comes from --format (mp4 when absent) and is
// appended to the -o name when the suffix does not match.
type fakeManim struct {
	t       *testing.T
	workDir string
	produce bool
	result  pipelines.RunResult
	calls   []pipelines.Command
}

func (f *fakeManim) Run(_ context.Context, c pipelines.Command) pipelines.RunResult {
	f.calls = append(f.calls, c)
	script := c.Args[len(c.Args)-1]
	if _, err := os.Stat(script); err != nil {
		f.t.Errorf("scene script missing during render: %v", err)
	}
	if f.produce {
		var out string
		format := "mp4"
		for i, a := range c.Args {
			switch a {
			case "-o":
				out = c.Args[i+1]
			case "--format":
				format = c.Args[i+1]
			}
		}
		if filepath.Ext(out) != "."+format {
			out += "." + format
		}
		base := strings.TrimSuffix(filepath.Base(script), ".py")
		dir := filepath.Join(f.workDir, "media", "videos", base, "720p30")
		require.NoError(f.t, os.MkdirAll(dir, 0755))
		require.NoError(f.t, os.WriteFile(filepath.Join(dir, out), []byte("video"), 0644))
	}
	return f.result
}

func newTestRenderer(t *testing.T, fake *fakeManim) *Renderer {
	t.Helper()
	work := t.TempDir()
	fake.t = t
	fake.workDir = work
	r, err := NewRenderer(fake, Config{WorkDir: work})
	require.NoError(t, err)
	r.newID = func() string { return "manim_1700000000000_abcd1234" }
	return r
}

func scratchEntries(t *testing.T, r *Renderer) []string {
	t.Helper()
	entries, err := os.ReadDir(r.cfg.ScratchDir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestBuildArgs(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want []string
	}{
		{
			name: "defaults",
			opts: DefaultOptions(),
			want: []string{"-qh", "--format", "mp4", "--fps", "60", "-o", "id.mp4", "s.py"},
		},
		{
			name: "low transparent mov",
			opts: Options{Quality: QualityLow, Format: FormatMOV, Transparent: true, FPS: 30},
			want: []string{"-ql", "--transparent", "--format", "mov", "--fps", "30", "-o", "id.mov", "s.py"},
		},
		{
			name: "production gif",
			opts: Options{Quality: QualityProduction, Format: FormatGIF, FPS: 15},
			want: []string{"-qk", "--format", "gif", "--fps", "15", "-o", "id.gif", "s.py"},
		},
		{
			name: "low gif",
			opts: Options{Quality: QualityLow, Format: FormatGIF, FPS: 30},
			want: []string{"-ql", "--format", "gif", "--fps", "30", "-o", "id.gif", "s.py"},
		},
		{
			name: "opaque mov",
			opts: Options{Quality: QualityHigh, Format: FormatMOV, FPS: 60},
			want: []string{"-qh", "--format", "mov", "--fps", "60", "-o", "id.mov", "s.py"},
		},
		{
			name: "medium",
			opts: Options{Quality: QualityMedium, Format: FormatMP4, FPS: 60},
			want: []string{"-qm", "--format", "mp4", "--fps", "60", "-o", "id.mp4", "s.py"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildArgs("id", "s.py", tt.opts))
		})
	}
}

func TestOptionsValidate(t *testing.T) {
	assert.NoError(t, DefaultOptions().Validate())
	assert.Error(t, Options{Quality: "ultra", Format: FormatMP4, FPS: 60}.Validate())
	assert.Error(t, Options{Quality: QualityLow, Format: "avi", FPS: 60}.Validate())
	assert.Error(t, Options{Quality: QualityLow, Format: FormatMP4, FPS: -1}.Validate())
}

func TestRender_Success(t *testing.T) {
	fake := &fakeManim{produce: true}
	r := newTestRenderer(t, fake)

	res := r.Render(context.Background(), scene, Options{Quality: QualityLow})

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "/animations/manim_1700000000000_abcd1234.mp4", res.VideoPath)
	assert.FileExists(t, filepath.Join(r.OutputDir(), "manim_1700000000000_abcd1234.mp4"))
	assert.Empty(t, scratchEntries(t, r), "scratch script should be removed")

	require.Len(t, fake.calls, 1)
	c := fake.calls[0]
	assert.Equal(t, "manim", c.Name)
	assert.Equal(t, r.cfg.WorkDir, c.Dir)
	assert.Equal(t, DefaultTimeout, c.Timeout)
	assert.Equal(t, "-ql", c.Args[0])
	assert.Contains(t, c.Args, "60")
}

func TestRender_NonMP4Formats(t *testing.T) {
	for _, tt := range []struct {
		opts Options
		ext  string
	}{
		{Options{Quality: QualityLow, Format: FormatGIF, FPS: 15}, ".gif"},
		{Options{Quality: QualityLow, Format: FormatMOV}, ".mov"},
	} {
		t.Run(tt.ext, func(t *testing.T) {
			fake := &fakeManim{produce: true}
			r := newTestRenderer(t, fake)

			res := r.Render(context.Background(), scene, tt.opts)

			require.True(t, res.Success, res.Error)
			assert.Equal(t, "/animations/manim_1700000000000_abcd1234"+tt.ext, res.VideoPath)
			assert.FileExists(t, filepath.Join(r.OutputDir(), "manim_1700000000000_abcd1234"+tt.ext))
		})
	}
}

func TestRender_FailureClassification(t *testing.T) {
	tests := []struct {
		name   string
		stderr string
		want   string
	}{
		{"module", "ModuleNotFoundError: No module named 'manim'", "Manim module not found"},
		{"syntax", "SyntaxError: invalid syntax", "Python syntax error in generated code."},
		{"attribute", "AttributeError: 'Circle' object has no attribute 'foo'", "Invalid Manim method or attribute used."},
		{"file", "FileNotFoundError: [Errno 2]", "File or resource not found during rendering."},
		{"generic", "TypeError: unsupported operand", "TypeError: unsupported operand"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeManim{result: pipelines.RunResult{ExitCode: 1, StderrTail: tt.stderr, Err: errors.New("exit status 1")}}
			r := newTestRenderer(t, fake)

			res := r.Render(context.Background(), scene, DefaultOptions())

			assert.False(t, res.Success)
			assert.Contains(t, res.Error, tt.want)
			assert.Contains(t, res.Logs, tt.stderr)
			assert.True(t, errors.Is(res.Err, apperr.Render))
			assert.Empty(t, scratchEntries(t, r), "scratch script should be removed on failure")
		})
	}
}

func TestRender_Timeout(t *testing.T) {
	fake := &fakeManim{result: pipelines.RunResult{ExitCode: -1, TimedOut: true, Err: context.DeadlineExceeded}}
	r := newTestRenderer(t, fake)

	res := r.Render(context.Background(), scene, DefaultOptions())

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "timed out")
}

func TestRender_ArtifactMissing(t *testing.T) {
	fake := &fakeManim{produce: false}
	r := newTestRenderer(t, fake)

	res := r.Render(context.Background(), scene, DefaultOptions())

	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, ErrArtifactNotFound)
	assert.True(t, errors.Is(res.Err, apperr.Render))
	assert.Equal(t, "Generated video not found in media directory", res.Error)
	assert.Empty(t, scratchEntries(t, r))
}

func TestRender_InvalidOptions(t *testing.T) {
	fake := &fakeManim{}
	r := newTestRenderer(t, fake)

	res := r.Render(context.Background(), scene, Options{Quality: "ultra"})

	assert.False(t, res.Success)
	assert.Empty(t, fake.calls)
	assert.ErrorIs(t, res.Err, apperr.Input)
}

func TestFindArtifact_Nested(t *testing.T) {
	root := t.TempDir()
	deep := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(deep, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(deep, "x.mp4"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", "y.mp4"), nil, 0644))

	got, err := findArtifact(root, "x.mp4")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(deep, "x.mp4"), got)

	_, err = findArtifact(filepath.Join(root, "missing"), "x.mp4")
	assert.Error(t, err)
}
