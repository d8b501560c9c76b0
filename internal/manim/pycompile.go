package manim

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ihavenoenemy/mathcast/internal/pipelines"
)

const syntaxCheckTimeout = 30 * time.Second

// PyCompiler checks script syntax with `python -m py_compile`. It satisfies
// validator.SyntaxChecker.
type PyCompiler struct {
	runner     pipelines.Runner
	python     string
	scratchDir string
}

// NewPyCompiler resolves the interpreter (python3, then python, when
// preferred is empty).
func NewPyCompiler(runner pipelines.Runner, preferred, scratchDir string) (*PyCompiler, error) {
	python, err := pipelines.ResolvePython(preferred)
	if err != nil {
		return nil, fmt.Errorf("cannot locate python: %w", err)
	}
	if err := os.MkdirAll(scratchDir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create scratch dir: %w", err)
	}
	return &PyCompiler{runner: runner, python: python, scratchDir: scratchDir}, nil
}

func (p *PyCompiler) CheckSyntax(ctx context.Context, script string) error {
	id := pipelines.NewRunID("validate")
	path := filepath.Join(p.scratchDir, id+".py")
	if err := os.WriteFile(path, []byte(script), 0644); err != nil {
		return fmt.Errorf("cannot write scratch file: %w", err)
	}
	defer os.Remove(path)
	defer removeBytecode(p.scratchDir, id)

	res := p.runner.Run(ctx, pipelines.Command{
		Name:    p.python,
		Args:    []string{"-m", "py_compile", path},
		Timeout: syntaxCheckTimeout,
	})
	if res.IsSuccess() {
		return nil
	}

	msg := strings.TrimSpace(res.StderrTail)
	if msg == "" && res.Err != nil {
		msg = res.Err.Error()
	}
	if msg == "" {
		return errors.New("py_compile failed")
	}
	return errors.New(strings.ReplaceAll(msg, path, "<script>"))
}

// removeBytecode deletes the __pycache__ entries py_compile left for id.
func removeBytecode(dir, id string) {
	matches, _ := filepath.Glob(filepath.Join(dir, "__pycache__", id+".*"))
	for _, m := range matches {
		os.Remove(m)
	}
}
