package pipelines

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/ihavenoenemy/mathcast/internal/logging"
)

const (
	maxStderrBytes = 8 * 1024  // 8 KB tail of stderr kept for diagnostics
	maxStdoutBytes = 32 * 1024 // manim prints progress to stdout
	waitDelay      = 2 * time.Second
)

// SubprocessRunner is the production implementation of Runner.
type SubprocessRunner struct {
	logger *slog.Logger
}

// NewRunner creates a SubprocessRunner.
func NewRunner(logger *slog.Logger) *SubprocessRunner {
	return &SubprocessRunner{logger: logging.WithComponent(logging.OrDiscard(logger), "subprocess")}
}

// Run is the core subprocess execution helper.
func (r *SubprocessRunner) Run(ctx context.Context, c Command) RunResult {
	start := time.Now()

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	// Grandchildren holding the pipes open must not stall Wait after a kill.
	cmd.WaitDelay = waitDelay

	// Capture output with bounded buffers
	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &limitedWriter{w: &stdoutBuf, limit: maxStdoutBytes}
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}

	r.logger.Debug("executing command",
		"name", c.Name,
		"args", c.Args,
		"dir", logging.SanitizePath(c.Dir),
		"timeout", c.Timeout,
	)

	err := cmd.Run()
	elapsed := time.Since(start)

	result := RunResult{
		Stdout:     stdoutBuf.String(),
		StderrTail: stderrBuf.String(),
		Duration:   elapsed,
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -1
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			result.TimedOut = true
			err = fmt.Errorf("%s timed out after %s: %w", c.Name, c.Timeout, ctx.Err())
		}
		result.Err = err
	}

	if !result.IsSuccess() {
		r.logger.Warn("command failed",
			"name", c.Name,
			"exit_code", result.ExitCode,
			"timed_out", result.TimedOut,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(result.StderrTail, 512),
		)
	} else {
		r.logger.Info("command succeeded",
			"name", c.Name,
			"duration_ms", elapsed.Milliseconds(),
		)
	}

	return result
}

// ResolvePython finds a usable python binary.
func ResolvePython(preferred string) (string, error) {
	if preferred != "" {
		if p, err := exec.LookPath(preferred); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("configured python %q not found", preferred)
	}
	for _, name := range []string{"python3", "python"} {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no python binary found on PATH (tried python3, python)")
}

// Truncate keeps the last maxLen bytes of s, prefixed with "...".
func Truncate(s string, maxLen int) string {
	return truncate(s, maxLen)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		// Keep only the tail
		b := lw.w.Bytes()
		tail := make([]byte, lw.limit)
		copy(tail, b[len(b)-lw.limit:])
		lw.w.Reset()
		lw.w.Write(tail)
	}
	return n, nil
}
