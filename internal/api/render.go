package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ihavenoenemy/mathcast/internal/apperr"
	"github.com/ihavenoenemy/mathcast/internal/jobs"
	"github.com/ihavenoenemy/mathcast/internal/manim"
	"github.com/ihavenoenemy/mathcast/internal/metrics"
)

// friendlyRenderErrors is checked in order against the render logs.
var friendlyRenderErrors = []struct {
	markers []string
	message string
}{
	{[]string{"Animation only works on Mobjects"}, "Code error: Tried to animate a variable that doesn't exist. The AI will learn from this and retry."},
	{[]string{"TypeError"}, "Code error: Type mismatch in the generated code. The AI will adjust and retry."},
	{[]string{"NameError", "not defined"}, "Code error: Variable used before being defined. The AI will fix this and retry."},
	{[]string{"AttributeError"}, "Code error: Invalid method or property used. The AI will correct this."},
	{[]string{"SyntaxError"}, "Code error: Python syntax issue. The AI will regenerate correct code."},
}

// FriendlyRenderError turns render logs into a message for end users,
// falling back to the raw error.
func FriendlyRenderError(logs, raw string) string {
	for _, f := range friendlyRenderErrors {
		for _, m := range f.markers {
			if strings.Contains(logs, m) {
				return f.message
			}
		}
	}
	if raw == "" {
		return "Failed to render animation"
	}
	return raw
}

// renderHandler validates the script and renders it. A failed first
// attempt above low quality is retried exactly once at low quality.
func renderHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RenderRequest
		if err := decodeJSON(w, r, &req); err != nil {
			WriteFailure(w, err)
			return
		}
		if strings.TrimSpace(req.Code) == "" {
			WriteError(w, http.StatusBadRequest, "Manim code is required")
			return
		}

		opts := manim.Options{
			Quality:     manim.Quality(req.Quality),
			Format:      manim.Format(req.Format),
			FPS:         req.FPS,
			Transparent: req.Transparent,
		}
		if opts.Quality == "" {
			opts.Quality = manim.QualityMedium
		}
		if opts.Format == "" {
			opts.Format = manim.FormatMP4
		}
		if opts.FPS == 0 {
			opts.FPS = manim.DefaultOptions().FPS
		}
		if err := opts.Validate(); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		logger := requestLogger(cfg.Logger, r)
		script := manim.EnsureComplete(req.Code)
		logger.Info("render requested", "attempt", req.RetryCount+1, "quality", opts.Quality, "format", opts.Format)

		check := cfg.Validator.Validate(r.Context(), script)
		if !check.Valid {
			logger.Warn("script rejected", "reason", check.Error)
			WriteJSON(w, http.StatusBadRequest, RenderValidationResponse{
				Success: false,
				Error:   "Invalid Manim code",
				Details: check.Error,
				Code:    script,
			})
			return
		}

		// The render outlives a client disconnect and is bounded by the
		// renderer timeout only.
		ctx := context.WithoutCancel(r.Context())

		attempts := 1
		res := renderAttempt(ctx, cfg, script, opts, req.RetryCount+1)
		if !res.Success && req.RetryCount == 0 && opts.Quality != manim.QualityLow {
			logger.Warn("first attempt failed, retrying at low quality", "error", res.Error)
			opts.Quality = manim.QualityLow
			attempts++
			res = renderAttempt(ctx, cfg, script, opts, attempts)
		}

		if !res.Success {
			logger.Error("render failed", "error", res.Error, "attempts", attempts)
			status := http.StatusInternalServerError
			if apperr.KindOf(res.Err) == apperr.KindInput {
				status = http.StatusBadRequest
			}
			WriteJSON(w, status, RenderFailureResponse{
				Success:        false,
				Error:          FriendlyRenderError(res.Logs, res.Error),
				TechnicalError: res.Error,
				Logs:           res.Logs,
				Attempts:       attempts,
			})
			return
		}

		WriteJSON(w, http.StatusOK, RenderResponse{
			Success:   true,
			VideoPath: res.VideoPath,
			Logs:      res.Logs,
			Attempts:  attempts,
			Quality:   string(opts.Quality),
			Signals:   check.Signals,
			Score:     check.Score,
		})
	}
}

func renderAttempt(ctx context.Context, cfg ServerConfig, script string, opts manim.Options, attempt int) manim.Result {
	job := cfg.Jobs.Start(ctx, jobs.TypeRender, attempt, string(opts.Quality), "")
	start := time.Now()

	res := cfg.Renderer.Render(ctx, script, opts)

	elapsed := time.Since(start)
	metrics.ObserveRender(string(opts.Quality), elapsed, res.Success)
	var err error
	if !res.Success {
		err = res.Err
		if err == nil {
			err = apperr.Renderf("%s", res.Error)
		}
	}
	cfg.Jobs.Finish(ctx, job, res.VideoPath, err, elapsed)
	return res
}
