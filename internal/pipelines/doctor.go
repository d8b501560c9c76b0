package pipelines

import (
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/ihavenoenemy/mathcast/internal/logging"
)

const (
	defaultCacheTTL     = 5 * time.Minute
	defaultProbeTimeout = 20 * time.Second
)

// Prober reports the host's tool capabilities.
type Prober interface {
	Probe(ctx context.Context) (*Capabilities, error)
}

// ToolSet names the executables a ToolProber checks.
type ToolSet struct {
	Manim   string
	Python  string
	FFmpeg  string
	FFprobe string
}

// ToolProber runs each tool's version flag to confirm it is installed.
type ToolProber struct {
	runner Runner
	tools  ToolSet
	lookup func(string) (string, error)
}

// NewToolProber creates a prober. An empty Python entry is auto-detected.
func NewToolProber(runner Runner, tools ToolSet) *ToolProber {
	return &ToolProber{runner: runner, tools: tools, lookup: exec.LookPath}
}

func (p *ToolProber) Probe(ctx context.Context) (*Capabilities, error) {
	python := p.tools.Python
	if python == "" {
		if resolved, err := ResolvePython(""); err == nil {
			python = resolved
		} else {
			python = "python3"
		}
	}

	checks := []struct {
		key  string
		name string
		flag string
	}{
		{"manim", p.tools.Manim, "--version"},
		{"python", python, "--version"},
		{"ffmpeg", p.tools.FFmpeg, "-version"},
		{"ffprobe", p.tools.FFprobe, "-version"},
	}

	caps := &Capabilities{Tools: make(map[string]ToolInfo, len(checks))}
	for _, c := range checks {
		caps.Tools[c.key] = p.probeOne(ctx, c.name, c.flag)
	}

	caps.CanRender = caps.Tools["manim"].Available
	caps.CanSyntaxCheck = caps.Tools["python"].Available
	caps.CanSync = caps.Tools["ffmpeg"].Available && caps.Tools["ffprobe"].Available
	caps.ProbedAt = time.Now()
	return caps, nil
}

func (p *ToolProber) probeOne(ctx context.Context, name, flag string) ToolInfo {
	if name == "" {
		return ToolInfo{Error: "not configured"}
	}
	path, err := p.lookup(name)
	if err != nil {
		return ToolInfo{Error: err.Error()}
	}

	res := p.runner.Run(ctx, Command{Name: path, Args: []string{flag}, Timeout: defaultProbeTimeout})
	if !res.IsSuccess() {
		msg := strings.TrimSpace(res.StderrTail)
		if msg == "" && res.Err != nil {
			msg = res.Err.Error()
		}
		return ToolInfo{Path: path, Error: truncate(msg, 256)}
	}

	return ToolInfo{Available: true, Path: path, Version: firstLine(res.Output())}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

// CachedDoctor wraps a Prober to cache results with a configurable TTL.
// This avoids spawning four subprocesses on every health check.
type CachedDoctor struct {
	prober Prober
	ttl    time.Duration
	logger *slog.Logger

	mu     sync.RWMutex
	cached *Capabilities
}

// NewCachedDoctor creates a caching wrapper around capability probes.
func NewCachedDoctor(prober Prober, logger *slog.Logger) *CachedDoctor {
	return &CachedDoctor{
		prober: prober,
		ttl:    defaultCacheTTL,
		logger: logging.OrDiscard(logger),
	}
}

// Get returns cached capabilities if fresh, otherwise re-probes.
func (d *CachedDoctor) Get(ctx context.Context) (*Capabilities, error) {
	d.mu.RLock()
	if d.cached != nil && time.Since(d.cached.ProbedAt) < d.ttl {
		caps := d.cached
		d.mu.RUnlock()
		return caps, nil
	}
	d.mu.RUnlock()

	return d.Refresh(ctx)
}

func (d *CachedDoctor) Peek() *Capabilities {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cached
}

// Refresh forces a new probe regardless of cache freshness.
func (d *CachedDoctor) Refresh(ctx context.Context) (*Capabilities, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	caps, err := d.prober.Probe(ctx)
	if err != nil {
		d.logger.Warn("capability probe failed", "error", err)
		// Return stale cache if available
		if d.cached != nil {
			d.logger.Info("returning stale capabilities cache")
			return d.cached, nil
		}
		return nil, err
	}

	d.cached = caps
	return caps, nil
}

// Invalidate clears the cached capabilities.
func (d *CachedDoctor) Invalidate() {
	d.mu.Lock()
	d.cached = nil
	d.mu.Unlock()
}
