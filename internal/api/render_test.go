package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ihavenoenemy/mathcast/internal/apperr"
	"github.com/ihavenoenemy/mathcast/internal/db"
	"github.com/ihavenoenemy/mathcast/internal/jobs"
	"github.com/ihavenoenemy/mathcast/internal/manim"
	"github.com/ihavenoenemy/mathcast/internal/validator"
)

const validScene = `from manim import *

class Demo(Scene):
    def construct(self):
        c = Circle()
        self.play(Create(c))
`

func renderBody(t *testing.T, fields map[string]any) string {
	t.Helper()
	if _, ok := fields["code"]; !ok {
		fields["code"] = validScene
	}
	b, err := json.Marshal(fields)
	require.NoError(t, err)
	return string(b)
}

func failed(msg, logs string) manim.Result {
	return manim.Result{Error: msg, Logs: logs, Err: apperr.Renderf("%s", msg)}
}

func TestRender_SuccessDefaults(t *testing.T) {
	rend := &fakeRenderer{results: []manim.Result{{Success: true, VideoPath: "/animations/a.mp4", Logs: "done"}}}
	cfg := testServerConfig()
	cfg.Renderer = rend

	rr := do(t, cfg, http.MethodPost, "/render", renderBody(t, map[string]any{}))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp RenderResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "/animations/a.mp4", resp.VideoPath)
	assert.Equal(t, 1, resp.Attempts)

	require.Len(t, rend.calls, 1)
	assert.Equal(t, manim.QualityMedium, rend.calls[0].Quality)
	assert.Equal(t, manim.FormatMP4, rend.calls[0].Format)
	assert.Equal(t, 60, rend.calls[0].FPS)
}

func TestRender_RetriesOnceAtLowQuality(t *testing.T) {
	rend := &fakeRenderer{results: []manim.Result{
		failed("manim exited with code 1", "boom"),
		{Success: true, VideoPath: "/animations/low.mp4"},
	}}
	cfg := testServerConfig()
	cfg.Renderer = rend

	rr := do(t, cfg, http.MethodPost, "/render", renderBody(t, map[string]any{"quality": "high"}))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	require.Len(t, rend.calls, 2)
	assert.Equal(t, manim.QualityHigh, rend.calls[0].Quality)
	assert.Equal(t, manim.QualityLow, rend.calls[1].Quality)

	var resp RenderResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Attempts)
	assert.Equal(t, "low", resp.Quality)
}

func TestRender_RetryPolicy(t *testing.T) {
	tests := []struct {
		name       string
		fields     map[string]any
		wantCalls  int
		wantStatus int
	}{
		{"fails twice", map[string]any{"quality": "medium"}, 2, http.StatusInternalServerError},
		{"no retry at low", map[string]any{"quality": "low"}, 1, http.StatusInternalServerError},
		{"no retry when already retried", map[string]any{"quality": "high", "retryCount": 1}, 1, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rend := &fakeRenderer{results: []manim.Result{failed("manim exited with code 1", "Traceback\nTypeError: bad")}}
			cfg := testServerConfig()
			cfg.Renderer = rend

			rr := do(t, cfg, http.MethodPost, "/render", renderBody(t, tt.fields))
			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Len(t, rend.calls, tt.wantCalls)

			var resp RenderFailureResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Contains(t, resp.Error, "Type mismatch")
			assert.Equal(t, "manim exited with code 1", resp.TechnicalError)
			assert.Contains(t, resp.Logs, "TypeError")
		})
	}
}

func TestRender_ValidationFailure(t *testing.T) {
	rend := &fakeRenderer{results: []manim.Result{{Success: true}}}
	cfg := testServerConfig()
	cfg.Validator = validator.New(nil)
	cfg.Renderer = rend

	code := "from manim import *\nclass S(Scene):\n    def construct(self):\n        self.play(Write(MathTex(r'x^2')))\n"
	rr := do(t, cfg, http.MethodPost, "/render", renderBody(t, map[string]any{"code": code}))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var resp RenderValidationResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "Invalid Manim code", resp.Error)
	assert.Contains(t, resp.Details, "MathTex")
	assert.Contains(t, resp.Code, "MathTex")
	assert.Empty(t, rend.calls, "renderer must not run on invalid scripts")
}

func TestRender_CompletesBareSnippet(t *testing.T) {
	val := &fakeValidator{result: validator.Result{Valid: true}}
	cfg := testServerConfig()
	cfg.Validator = val
	cfg.Renderer = &fakeRenderer{results: []manim.Result{{Success: true}}}

	do(t, cfg, http.MethodPost, "/render", renderBody(t, map[string]any{"code": "c = Circle()\nself.play(Create(c))"}))
	assert.Contains(t, val.seen, "from manim import *")
	assert.Contains(t, val.seen, "def construct(self)")
}

func TestRender_BadRequests(t *testing.T) {
	cfg := testServerConfig()
	cfg.Renderer = &fakeRenderer{results: []manim.Result{{Success: true}}}

	for name, body := range map[string]string{
		"missing code":  `{"quality":"low"}`,
		"bad quality":   renderBody(t, map[string]any{"quality": "ultra"}),
		"bad format":    renderBody(t, map[string]any{"format": "avi"}),
		"invalid json":  `{"code":`,
		"negative fps":  renderBody(t, map[string]any{"fps": -1}),
	} {
		t.Run(name, func(t *testing.T) {
			rr := do(t, cfg, http.MethodPost, "/render", body)
			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			assert.Contains(t, rr.Body.String(), `"success":false`)
		})
	}
}

func TestRender_DetachedFromClientCancel(t *testing.T) {
	rend := &fakeRenderer{results: []manim.Result{{Success: true}}}
	cfg := testServerConfig()
	cfg.Renderer = rend

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/render", strings.NewReader(renderBody(t, map[string]any{}))).WithContext(ctx)
	rr := httptest.NewRecorder()
	NewRouter(cfg).ServeHTTP(rr, req)

	require.Len(t, rend.ctxErrs, 1)
	assert.NoError(t, rend.ctxErrs[0])
}

func TestRender_RecordsJobs(t *testing.T) {
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	defer database.Close()
	rec := jobs.NewRecorder(jobs.NewRepository(database.Conn()), nil)

	cfg := testServerConfig()
	cfg.Jobs = rec
	cfg.Renderer = &fakeRenderer{results: []manim.Result{
		failed("manim exited with code 1", ""),
		{Success: true, VideoPath: "/animations/low.mp4"},
	}}

	rr := do(t, cfg, http.MethodPost, "/render", renderBody(t, map[string]any{}))
	require.Equal(t, http.StatusOK, rr.Code)

	list, err := rec.List(context.Background(), jobs.Filter{Type: jobs.TypeRender})
	require.NoError(t, err)
	require.Len(t, list, 2)

	statuses := map[string]string{}
	for _, j := range list {
		statuses[j.Quality] = j.Status
	}
	assert.Equal(t, jobs.StatusFailed, statuses["medium"])
	assert.Equal(t, jobs.StatusCompleted, statuses["low"])

	rr = do(t, cfg, http.MethodGet, "/jobs?type=render&limit=1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var jr JobsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &jr))
	assert.Len(t, jr.Jobs, 1)

	rr = do(t, cfg, http.MethodGet, "/jobs/"+list[0].ID, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = do(t, cfg, http.MethodGet, "/jobs/unknown", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestFriendlyRenderError(t *testing.T) {
	tests := []struct {
		logs, raw, want string
	}{
		{"ValueError: Animation only works on Mobjects", "x", "Code error: Tried to animate a variable that doesn't exist. The AI will learn from this and retry."},
		{"TypeError: unsupported operand", "x", "Code error: Type mismatch in the generated code. The AI will adjust and retry."},
		{"NameError: name 'sq' is not defined", "x", "Code error: Variable used before being defined. The AI will fix this and retry."},
		{"AttributeError: 'Circle' object has no attribute 'foo'", "x", "Code error: Invalid method or property used. The AI will correct this."},
		{"SyntaxError: invalid syntax", "x", "Code error: Python syntax issue. The AI will regenerate correct code."},
		{"something else", "manim exited with code 2", "manim exited with code 2"},
		{"", "", "Failed to render animation"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FriendlyRenderError(tt.logs, tt.raw), "logs=%q", tt.logs)
	}
}
