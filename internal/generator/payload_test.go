package generator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ihavenoenemy/mathcast/internal/apperr"
)

const script = "from manim import *\n\nclass A(Scene):\n    def construct(self):\n        pass\n"

func TestParsePayload(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		strategy    string
		explanation string
		reasoning   string
	}{
		{
			name:        "direct json",
			raw:         `{"explanation":"Circles are round.","manimCode":"from manim import *","reasoning":"simple"}`,
			strategy:    "direct",
			explanation: "Circles are round.",
			reasoning:   "simple",
		},
		{
			name:        "fenced manim_code",
			raw:         "Here you go:\n```json\n{\"explanation\":\"E\",\"manim_code\":\"from manim import *\"}\n```\nEnjoy!",
			strategy:    "fenced",
			explanation: "E",
		},
		{
			name:        "bare fence with code key",
			raw:         "```\n{\"explanation\":\"E\",\"code\":\"from manim import *\"}\n```",
			strategy:    "fenced",
			explanation: "E",
		},
		{
			name:        "json fence without newline",
			raw:         "```json {\"explanation\":\"E\",\"manimcode\":\"from manim import *\"}```",
			strategy:    "fenced",
			explanation: "E",
		},
		{
			name:        "braces inside prose",
			raw:         "Sure! {\"explanation\":\"E\",\"manimCode\":\"from manim import *\"} Hope this helps.",
			strategy:    "braces",
			explanation: "E",
		},
		{
			name:        "nested data object",
			raw:         `{"explanation":"E","data":{"manimCode":"from manim import *"}}`,
			strategy:    "direct",
			explanation: "E",
		},
		{
			name:        "explanation is itself a payload",
			raw:         `{"explanation":"{\"explanation\":\"inner\",\"manimCode\":\"from manim import *\"}"}`,
			strategy:    "direct",
			explanation: "inner",
		},
		{
			name:        "missing explanation gets default",
			raw:         `{"manimCode":"from manim import *"}`,
			strategy:    "direct",
			explanation: defaultExplanation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ParsePayload(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.strategy, res.Strategy)
			assert.Equal(t, tt.explanation, res.Explanation)
			assert.Equal(t, "from manim import *", res.Script)
			assert.Equal(t, tt.reasoning, res.Reasoning)
		})
	}
}

func TestParsePayload_PythonCodeBlockFallback(t *testing.T) {
	raw := "The Pythagorean theorem relates the sides.\n\n```python\n" + script + "```\n"

	res, err := ParsePayload(raw)
	require.NoError(t, err)

	assert.Equal(t, "codeblock", res.Strategy)
	assert.Equal(t, script, res.Script)
	assert.Equal(t, "The Pythagorean theorem relates the sides.", res.Explanation)
}

func TestParsePayload_BareCodeBlockDefaultExplanation(t *testing.T) {
	res, err := ParsePayload("```\n" + script + "```")
	require.NoError(t, err)

	assert.Equal(t, script, res.Script)
	assert.Equal(t, defaultExplanation, res.Explanation)
}

func TestParsePayload_JSONWithoutScriptFallsBackToBlock(t *testing.T) {
	raw := "{\"explanation\":\"E\"}\n```python\n" + script + "```"

	res, err := ParsePayload(raw)
	require.NoError(t, err)
	assert.Equal(t, "codeblock", res.Strategy)
	assert.Equal(t, script, res.Script)
}

func TestParsePayload_NoScript(t *testing.T) {
	_, err := ParsePayload("I cannot help with that.")
	require.Error(t, err)

	assert.True(t, errors.Is(err, apperr.Parse))
	var e *apperr.Error
	require.True(t, errors.As(err, &e))
	for _, name := range []string{"direct:", "fenced:", "braces:", "codeblock:"} {
		assert.Contains(t, e.Details, name)
	}
}
