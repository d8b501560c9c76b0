package manim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ihavenoenemy/mathcast/internal/apperr"
	"github.com/ihavenoenemy/mathcast/internal/logging"
	"github.com/ihavenoenemy/mathcast/internal/pipelines"
)

const (
	DefaultTimeout = 5 * time.Minute

	// PublicPrefix is the URL prefix under which OutputDir is served.
	PublicPrefix = "/animations"
)

// ErrArtifactNotFound means manim exited cleanly but produced no video.
var ErrArtifactNotFound = &apperr.Error{Kind: apperr.KindRender, Message: "Generated video not found in media directory"}

// Config holds the renderer's configuration.
type Config struct {
	Binary     string        // manim executable; default "manim"
	WorkDir    string        // cwd for manim; media/videos is searched under it
	ScratchDir string        // where scripts are written; default <WorkDir>/temp
	OutputDir  string        // final location, served at PublicPrefix
	Timeout    time.Duration // per attempt
	Logger     *slog.Logger
}

// Result is the outcome of one render attempt.
type Result struct {
	Success   bool   `json:"success"`
	ID        string `json:"id"`
	VideoPath string `json:"videoPath,omitempty"`
	Error     string `json:"error,omitempty"`
	Logs      string `json:"logs,omitempty"`
	// Err carries the classified failure for callers that need errors.Is.
	Err      error         `json:"-"`
	Duration time.Duration `json:"-"`
}

// Renderer runs manim. It holds no per-render state; concurrent Render calls
// are isolated by their IDs.
type Renderer struct {
	runner pipelines.Runner
	cfg    Config
	logger *slog.Logger
	newID  func() string
}

// NewRenderer creates a Renderer and ensures its directories exist.
func NewRenderer(runner pipelines.Runner, cfg Config) (*Renderer, error) {
	if cfg.Binary == "" {
		cfg.Binary = "manim"
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = "."
	}
	if cfg.ScratchDir == "" {
		cfg.ScratchDir = filepath.Join(cfg.WorkDir, "temp")
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = filepath.Join(cfg.WorkDir, "public", "animations")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	for _, dir := range []string{cfg.ScratchDir, cfg.OutputDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("cannot create %s: %w", dir, err)
		}
	}

	return &Renderer{
		runner: runner,
		cfg:    cfg,
		logger: logging.WithComponent(logging.OrDiscard(cfg.Logger), "renderer"),
		newID:  func() string { return pipelines.NewRunID("manim") },
	}, nil
}

// OutputDir returns the directory rendered videos are moved into.
func (r *Renderer) OutputDir() string {
	return r.cfg.OutputDir
}

// Render writes script to a scratch file, runs manim and relocates the
// video. The scratch file is removed on every path.
func (r *Renderer) Render(ctx context.Context, script string, opts Options) Result {
	start := time.Now()
	opts = opts.withDefaults()
	id := r.newID()
	logger := logging.WithJobID(r.logger, id)

	fail := func(err error, logs string) Result {
		res := Result{ID: id, Error: err.Error(), Logs: logs, Err: err, Duration: time.Since(start)}
		logger.Warn("render failed", "error", res.Error, "duration_ms", res.Duration.Milliseconds())
		return res
	}

	if err := opts.Validate(); err != nil {
		return fail(apperr.Inputf("%v", err), "")
	}

	scriptPath := filepath.Join(r.cfg.ScratchDir, id+".py")
	if err := os.WriteFile(scriptPath, []byte(script), 0644); err != nil {
		return fail(apperr.Wrap(apperr.KindRender, err, "cannot write scene script"), "")
	}
	defer func() {
		if err := os.Remove(scriptPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("cannot remove scene script", "error", err)
		}
	}()

	absScript, err := filepath.Abs(scriptPath)
	if err != nil {
		absScript = scriptPath
	}

	args := BuildArgs(id, absScript, opts)
	logger.Info("rendering scene", "quality", opts.Quality, "format", opts.Format, "fps", opts.FPS)

	run := r.runner.Run(ctx, pipelines.Command{
		Name:    r.cfg.Binary,
		Args:    args,
		Dir:     r.cfg.WorkDir,
		Timeout: r.cfg.Timeout,
	})
	logs := run.Output()

	if !run.IsSuccess() {
		raw := fmt.Sprintf("manim exited with code %d", run.ExitCode)
		if run.TimedOut {
			raw = fmt.Sprintf("manim timed out after %s", r.cfg.Timeout)
		} else if tail := strings.TrimSpace(run.StderrTail); tail != "" {
			raw += ": " + pipelines.Truncate(tail, 2000)
		} else if run.Err != nil && run.ExitCode == -1 {
			raw += ": " + run.Err.Error()
		}
		e := apperr.Renderf("%s", describeFailure(logs, raw))
		e.Logs = logs
		e.Err = run.Err
		return fail(e, logs)
	}

	name := fmt.Sprintf("%s.%s", id, opts.Format)
	found, err := findArtifact(filepath.Join(r.cfg.WorkDir, "media", "videos"), name)
	if err != nil {
		return fail(ErrArtifactNotFound, logs)
	}

	dest := filepath.Join(r.cfg.OutputDir, name)
	if err := moveFile(found, dest); err != nil {
		e := apperr.Wrap(apperr.KindRender, err, "cannot move rendered video")
		e.Logs = logs
		return fail(e, logs)
	}

	res := Result{
		Success:   true,
		ID:        id,
		VideoPath: PublicPrefix + "/" + name,
		Logs:      logs,
		Duration:  time.Since(start),
	}
	logger.Info("render complete", "video", res.VideoPath, "duration_ms", res.Duration.Milliseconds())
	return res
}

// findArtifact walks root for a file named name.
func findArtifact(root, name string) (string, error) {
	var found string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == name {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", fs.ErrNotExist
	}
	return found, nil
}

// moveFile renames src to dst, copying when they are on different devices.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
