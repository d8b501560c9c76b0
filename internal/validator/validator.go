// Package validator screens generated animation scripts before they reach
// the renderer.
package validator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ihavenoenemy/mathcast/internal/logging"
)

// SyntaxChecker compiles a script without running it. A returned error is a
// syntax fault whose message is shown to the caller.
type SyntaxChecker interface {
	CheckSyntax(ctx context.Context, script string) error
}

// Result is the outcome of Validate.
type Result struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
	// Signals lists the diagnostic markers found in a valid script.
	Signals []string `json:"signals,omitempty"`
	// Score counts the advanced features used.
	Score int `json:"score"`
}

// Validator runs an ordered rule set, then an optional syntax check.
type Validator struct {
	rules   []Rule
	signals []Signal
	checker SyntaxChecker
	logger  *slog.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithRules replaces the default manim catalogue.
func WithRules(rules ...Rule) Option {
	return func(v *Validator) { v.rules = rules }
}

// WithSignals replaces the default diagnostic markers.
func WithSignals(signals ...Signal) Option {
	return func(v *Validator) { v.signals = signals }
}

// WithSyntaxChecker enables the deep check.
func WithSyntaxChecker(c SyntaxChecker) Option {
	return func(v *Validator) { v.checker = c }
}

// New creates a Validator using the manim catalogue unless overridden.
func New(logger *slog.Logger, opts ...Option) *Validator {
	v := &Validator{
		rules:   ManimRules(),
		signals: ManimSignals(),
		logger:  logging.WithComponent(logging.OrDiscard(logger), "validator"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate returns the first failing rule's reason, or a valid result with
// quality signals attached.
func (v *Validator) Validate(ctx context.Context, script string) Result {
	for _, r := range v.rules {
		if reason := r.Check(script); reason != "" {
			v.logger.Info("script rejected", "rule", r.Name(), "reason", reason)
			return Result{Error: reason}
		}
	}

	if v.checker != nil {
		if err := v.checker.CheckSyntax(ctx, script); err != nil {
			v.logger.Info("script failed syntax check", "error", err)
			return Result{Error: fmt.Sprintf("Python syntax error: %v", err)}
		}
	}

	res := Result{Valid: true}
	total := 0
	for _, s := range v.signals {
		if s.Advanced {
			total++
		}
		if !s.Pattern.MatchString(script) {
			continue
		}
		res.Signals = append(res.Signals, s.Name)
		if s.Advanced {
			res.Score++
		}
	}

	v.logger.Info("script validated",
		"signals", res.Signals,
		"score", fmt.Sprintf("%d/%d", res.Score, total),
	)
	if !res.has("positioning") {
		v.logger.Warn("no positioning methods detected, objects may go off-screen")
	}
	if !res.has("cleanup") {
		v.logger.Warn("no FadeOut detected, screen may become cluttered")
	}

	return res
}

func (r Result) has(name string) bool {
	for _, s := range r.Signals {
		if s == name {
			return true
		}
	}
	return false
}
