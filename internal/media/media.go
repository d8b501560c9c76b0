// Package media combines rendered animations with narration and captions
// using ffprobe and ffmpeg.
package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ihavenoenemy/mathcast/internal/apperr"
	"github.com/ihavenoenemy/mathcast/internal/logging"
	"github.com/ihavenoenemy/mathcast/internal/metrics"
	"github.com/ihavenoenemy/mathcast/internal/pipelines"
)

const (
	DefaultTimeout = 5 * time.Minute
	animationsDir  = "animations"
)

// SyncOptions controls how narration is mixed in.
type SyncOptions struct {
	FadeIn  bool    `json:"fadeIn"`
	FadeOut bool    `json:"fadeOut"`
	Volume  float64 `json:"volume"`
}

// DefaultSyncOptions fades both ends at unchanged volume.
func DefaultSyncOptions() SyncOptions {
	return SyncOptions{FadeIn: true, FadeOut: true, Volume: 1}
}

// Result is the outcome of one ffmpeg operation.
type Result struct {
	Success    bool   `json:"success"`
	ID         string `json:"id"`
	OutputPath string `json:"outputPath,omitempty"`
	Error      string `json:"error,omitempty"`
	// Strategy is set by Sync only.
	Strategy Strategy      `json:"strategy,omitempty"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"-"`
}

// ProbeResult holds what ffprobe reported about a file.
type ProbeResult struct {
	Duration float64
}

// Config holds the synchronizer's configuration.
type Config struct {
	FFmpeg     string // default "ffmpeg"
	FFprobe    string // default "ffprobe"
	PublicDir  string // root that public video URLs resolve under
	ScratchDir string // audio and subtitle scratch files
	Timeout    time.Duration
	Logger     *slog.Logger
}

// Synchronizer runs ffmpeg jobs. Outputs land in <PublicDir>/animations.
type Synchronizer struct {
	runner pipelines.Runner
	cfg    Config
	logger *slog.Logger
	newID  func(prefix string) string
}

// NewSynchronizer creates a Synchronizer and ensures its directories exist.
func NewSynchronizer(runner pipelines.Runner, cfg Config) (*Synchronizer, error) {
	if cfg.FFmpeg == "" {
		cfg.FFmpeg = "ffmpeg"
	}
	if cfg.FFprobe == "" {
		cfg.FFprobe = "ffprobe"
	}
	if cfg.PublicDir == "" {
		cfg.PublicDir = "public"
	}
	if cfg.ScratchDir == "" {
		cfg.ScratchDir = "temp"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	abs, err := filepath.Abs(cfg.PublicDir)
	if err != nil {
		return nil, fmt.Errorf("resolve public dir: %w", err)
	}
	cfg.PublicDir = abs

	for _, dir := range []string{cfg.ScratchDir, filepath.Join(cfg.PublicDir, animationsDir)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("cannot create %s: %w", dir, err)
		}
	}

	return &Synchronizer{
		runner: runner,
		cfg:    cfg,
		logger: logging.WithComponent(logging.OrDiscard(cfg.Logger), "media"),
		newID:  pipelines.NewRunID,
	}, nil
}

// ResolveVideo maps a public URL such as /animations/x.mp4 to a file under
// the public dir. Paths escaping it, or naming no file, are input errors.
func (s *Synchronizer) ResolveVideo(publicPath string) (string, error) {
	if strings.TrimSpace(publicPath) == "" {
		return "", apperr.Inputf("videoPath is required")
	}
	if strings.Contains(publicPath, `\`) {
		return "", apperr.Inputf("invalid videoPath %q", publicPath)
	}
	for _, seg := range strings.Split(publicPath, "/") {
		if seg == ".." {
			return "", apperr.Inputf("videoPath %q escapes the public directory", publicPath)
		}
	}
	clean := path.Clean("/" + publicPath)
	full := filepath.Join(s.cfg.PublicDir, filepath.FromSlash(clean))

	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		return "", apperr.Inputf("video not found: %s", clean)
	}
	return full, nil
}

// Probe returns the container duration of file in seconds.
func (s *Synchronizer) Probe(ctx context.Context, file string) (*ProbeResult, error) {
	run := s.runner.Run(ctx, pipelines.Command{
		Name:    s.cfg.FFprobe,
		Args:    ProbeArgs(file),
		Timeout: s.cfg.Timeout,
	})
	if !run.IsSuccess() {
		e := apperr.Syncf("ffprobe failed on %s", filepath.Base(file))
		e.Logs = run.Output()
		e.Err = run.Err
		return nil, e
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(run.Stdout), 64)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindSync, err, "cannot parse ffprobe duration")
	}
	return &ProbeResult{Duration: d}, nil
}

// Sync muxes audio onto the video at videoPath, looping the video when the
// audio is longer. The scratch audio file is removed on every path.
func (s *Synchronizer) Sync(ctx context.Context, videoPath string, audio []byte, opts SyncOptions) Result {
	start := time.Now()
	id := s.newID("sync")
	logger := logging.WithJobID(s.logger, id)
	res := Result{ID: id}

	finish := func(err error) Result {
		res.Duration = time.Since(start)
		metrics.ObserveMedia("sync", err == nil)
		if err != nil {
			res.Error, res.Err = err.Error(), err
			logger.Warn("sync failed", "error", err, "duration_ms", res.Duration.Milliseconds())
			return res
		}
		res.Success = true
		logger.Info("sync complete", "output", res.OutputPath, "strategy", res.Strategy, "duration_ms", res.Duration.Milliseconds())
		return res
	}

	if len(audio) == 0 {
		return finish(apperr.Inputf("audioData is required"))
	}
	if opts.Volume <= 0 {
		return finish(apperr.Inputf("volume must be positive, got %v", opts.Volume))
	}
	video, err := s.ResolveVideo(videoPath)
	if err != nil {
		return finish(err)
	}

	audioPath := filepath.Join(s.cfg.ScratchDir, id+"_audio.mp3")
	if err := os.WriteFile(audioPath, audio, 0644); err != nil {
		return finish(apperr.Wrap(apperr.KindSync, err, "cannot write audio"))
	}
	defer s.removeScratch(logger, audioPath)

	videoInfo, err := s.Probe(ctx, video)
	if err != nil {
		return finish(err)
	}
	audioInfo, err := s.Probe(ctx, audioPath)
	if err != nil {
		return finish(err)
	}

	res.Strategy = ChooseStrategy(videoInfo.Duration, audioInfo.Duration)
	name := id + "_final.mp4"
	args := SyncArgs(video, audioPath, s.outputFile(name), res.Strategy, AudioFilters(opts, audioInfo.Duration))
	logger.Info("syncing narration",
		"video_s", videoInfo.Duration,
		"audio_s", audioInfo.Duration,
		"strategy", res.Strategy,
	)

	if err := s.ffmpeg(ctx, args); err != nil {
		return finish(err)
	}
	res.OutputPath = publicURL(name)
	return finish(nil)
}

// AddCaptions burns captions into the video at videoPath.
func (s *Synchronizer) AddCaptions(ctx context.Context, videoPath string, captions []Caption) Result {
	start := time.Now()
	id := s.newID("captions")
	logger := logging.WithJobID(s.logger, id)
	res := Result{ID: id}

	finish := func(err error) Result {
		res.Duration = time.Since(start)
		metrics.ObserveMedia("captions", err == nil)
		if err != nil {
			res.Error, res.Err = err.Error(), err
			logger.Warn("captioning failed", "error", err)
			return res
		}
		res.Success = true
		logger.Info("captions burned", "output", res.OutputPath, "cues", len(captions))
		return res
	}

	if err := validateCaptions(captions); err != nil {
		return finish(apperr.Inputf("%v", err))
	}
	video, err := s.ResolveVideo(videoPath)
	if err != nil {
		return finish(err)
	}

	srtPath := filepath.Join(s.cfg.ScratchDir, id+".srt")
	if abs, err := filepath.Abs(srtPath); err == nil {
		srtPath = abs
	}
	if err := os.WriteFile(srtPath, []byte(BuildSRT(captions)), 0644); err != nil {
		return finish(apperr.Wrap(apperr.KindSync, err, "cannot write subtitles"))
	}
	defer s.removeScratch(logger, srtPath)

	name := id + "_captioned.mp4"
	if err := s.ffmpeg(ctx, CaptionArgs(video, srtPath, s.outputFile(name))); err != nil {
		return finish(err)
	}
	res.OutputPath = publicURL(name)
	return finish(nil)
}

// AdjustSpeed retimes the video at videoPath to last target seconds.
func (s *Synchronizer) AdjustSpeed(ctx context.Context, videoPath string, target float64) Result {
	start := time.Now()
	id := s.newID("speed")
	logger := logging.WithJobID(s.logger, id)
	res := Result{ID: id}

	finish := func(err error) Result {
		res.Duration = time.Since(start)
		metrics.ObserveMedia("retime", err == nil)
		if err != nil {
			res.Error, res.Err = err.Error(), err
			logger.Warn("retime failed", "error", err)
			return res
		}
		res.Success = true
		logger.Info("video retimed", "output", res.OutputPath, "target_s", target)
		return res
	}

	if target <= 0 {
		return finish(apperr.Inputf("targetDuration must be positive, got %v", target))
	}
	video, err := s.ResolveVideo(videoPath)
	if err != nil {
		return finish(err)
	}
	info, err := s.Probe(ctx, video)
	if err != nil {
		return finish(err)
	}
	if info.Duration <= 0 {
		return finish(apperr.Syncf("video has no duration"))
	}

	speed := info.Duration / target
	name := id + "_adjusted.mp4"
	if err := s.ffmpeg(ctx, RetimeArgs(video, s.outputFile(name), 1/speed)); err != nil {
		return finish(err)
	}
	res.OutputPath = publicURL(name)
	return finish(nil)
}

func (s *Synchronizer) ffmpeg(ctx context.Context, args []string) error {
	run := s.runner.Run(ctx, pipelines.Command{
		Name:    s.cfg.FFmpeg,
		Args:    args,
		Timeout: s.cfg.Timeout,
	})
	if run.IsSuccess() {
		return nil
	}
	msg := fmt.Sprintf("ffmpeg exited with code %d", run.ExitCode)
	if run.TimedOut {
		msg = fmt.Sprintf("ffmpeg timed out after %s", s.cfg.Timeout)
	} else if tail := strings.TrimSpace(run.StderrTail); tail != "" {
		msg += ": " + pipelines.Truncate(tail, 1000)
	}
	e := apperr.Syncf("%s", msg)
	e.Logs = run.Output()
	e.Err = run.Err
	return e
}

func (s *Synchronizer) outputFile(name string) string {
	return filepath.Join(s.cfg.PublicDir, animationsDir, name)
}

func (s *Synchronizer) removeScratch(logger *slog.Logger, file string) {
	if err := os.Remove(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("cannot remove scratch file", "path", logging.SanitizePath(file), "error", err)
	}
}

func publicURL(name string) string {
	return "/" + animationsDir + "/" + name
}
