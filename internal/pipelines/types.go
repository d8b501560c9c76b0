// Package pipelines runs the external media tools (manim, python, ffmpeg,
// ffprobe) as subprocesses and probes which of them are installed.
package pipelines

import (
	"context"
	"time"
)

// Command describes one subprocess invocation. Args is passed as an argument
// vector; it is never interpreted by a shell.
type Command struct {
	Name    string
	Args    []string
	Dir     string        // working directory; empty = current
	Timeout time.Duration // 0 = inherit ctx deadline only
}

// RunResult is the structured outcome of executing a subprocess.
type RunResult struct {
	ExitCode   int           `json:"exit_code"`
	Stdout     string        `json:"stdout,omitempty"`      // last N bytes of stdout
	StderrTail string        `json:"stderr_tail,omitempty"` // last N bytes of stderr
	Duration   time.Duration `json:"duration"`
	TimedOut   bool          `json:"timed_out,omitempty"`
	// Err is set when the process could not be started or did not exit cleanly.
	Err error `json:"-"`
}

// IsSuccess returns true when the subprocess exited cleanly.
func (r RunResult) IsSuccess() bool { return r.ExitCode == 0 && r.Err == nil }

// Output joins stdout and stderr the way tool logs are shown to users.
func (r RunResult) Output() string {
	switch {
	case r.Stdout == "":
		return r.StderrTail
	case r.StderrTail == "":
		return r.Stdout
	default:
		return r.Stdout + "\n" + r.StderrTail
	}
}

// Runner executes commands. SubprocessRunner is the production
// implementation; tests substitute fakes.
type Runner interface {
	Run(ctx context.Context, cmd Command) RunResult
}

// ToolInfo is the availability of a single executable.
type ToolInfo struct {
	Available bool   `json:"available"`
	Path      string `json:"path,omitempty"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Capabilities reports which pipeline stages the host can run.
type Capabilities struct {
	Tools map[string]ToolInfo `json:"tools"`

	CanRender      bool      `json:"can_render"`
	CanSyntaxCheck bool      `json:"can_syntax_check"`
	CanSync        bool      `json:"can_sync"`
	ProbedAt       time.Time `json:"probed_at"`
}
