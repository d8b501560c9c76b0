package generator

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ihavenoenemy/mathcast/internal/apperr"
)

const defaultExplanation = "Animation generated successfully."

// Result is a parsed generation payload.
type Result struct {
	Explanation string `json:"explanation"`
	Script      string `json:"script"`
	Reasoning   string `json:"reasoning,omitempty"`
	// Strategy names the recovery step that produced the payload.
	Strategy string `json:"-"`
}

// strategy turns raw model output into a JSON object.
type strategy struct {
	name  string
	parse func(raw string) (map[string]any, error)
}

var (
	fencePatterns = []*regexp.Regexp{
		regexp.MustCompile("```json\\n([\\s\\S]*?)```"),
		regexp.MustCompile("```\\n([\\s\\S]*?)```"),
		regexp.MustCompile("```json\\s+([\\s\\S]*?)```"),
	}
	pythonBlock = regexp.MustCompile("```python\\n([\\s\\S]*?)```")
	bareBlock   = regexp.MustCompile("```\\n([\\s\\S]*?)```")
	anyBlock    = regexp.MustCompile("```(?:json|python)?[\\s\\S]*?```")
	braceSpan   = regexp.MustCompile(`(?s)\{.*\}`)

	errNoFence  = errors.New("no fenced block")
	errNoBraces = errors.New("no {...} span")
	errNoScript = errors.New("no script field")
)

var strategies = []strategy{
	{name: "direct", parse: func(raw string) (map[string]any, error) {
		return decodeObject(strings.TrimSpace(raw))
	}},
	{name: "fenced", parse: func(raw string) (map[string]any, error) {
		for _, p := range fencePatterns {
			if m := p.FindStringSubmatch(raw); m != nil {
				return decodeObject(strings.TrimSpace(m[1]))
			}
		}
		return nil, errNoFence
	}},
	{name: "braces", parse: func(raw string) (map[string]any, error) {
		span := braceSpan.FindString(raw)
		if span == "" {
			return nil, errNoBraces
		}
		return decodeObject(span)
	}},
}

func decodeObject(s string) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("payload is not an object")
	}
	return obj, nil
}

// scriptKeys are the field names models have been seen to use.
var scriptKeys = []string{"manimCode", "manim_code", "code", "manimcode", "script"}

func str(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

// fromObject extracts a Result, unwrapping an explanation that is itself a
// JSON object string.
func fromObject(obj map[string]any) (*Result, error) {
	if exp := strings.TrimSpace(str(obj, "explanation")); strings.HasPrefix(exp, "{") {
		if nested, err := decodeObject(exp); err == nil {
			obj = nested
		}
	}

	var script string
	for _, k := range scriptKeys {
		if script = str(obj, k); script != "" {
			break
		}
	}
	if script == "" {
		if data, ok := obj["data"].(map[string]any); ok {
			script = str(data, "manimCode")
		}
	}
	if script == "" {
		return nil, errNoScript
	}

	explanation := str(obj, "explanation")
	if strings.TrimSpace(explanation) == "" {
		explanation = defaultExplanation
	}
	return &Result{Explanation: explanation, Script: script, Reasoning: str(obj, "reasoning")}, nil
}

// ParsePayload runs the recovery chain over raw model output and stops at
// the first strategy that yields a script.
func ParsePayload(raw string) (*Result, error) {
	var diags []string

	for _, s := range strategies {
		obj, err := s.parse(raw)
		if err == nil {
			var res *Result
			if res, err = fromObject(obj); err == nil {
				res.Strategy = s.name
				return res, nil
			}
		}
		diags = append(diags, fmt.Sprintf("%s: %v", s.name, err))
	}

	if res := fromCodeBlock(raw); res != nil {
		return res, nil
	}
	diags = append(diags, "codeblock: no fenced code block")

	e := apperr.Parsef("Could not extract animation script from response")
	e.Details = strings.Join(diags, "; ")
	return nil, e
}

func fromCodeBlock(raw string) *Result {
	var script string
	if m := pythonBlock.FindStringSubmatch(raw); m != nil {
		script = m[1]
	} else if m := bareBlock.FindStringSubmatch(raw); m != nil {
		script = m[1]
	}
	if strings.TrimSpace(script) == "" {
		return nil
	}

	explanation := strings.TrimSpace(anyBlock.ReplaceAllString(raw, ""))
	if explanation == "" {
		explanation = defaultExplanation
	}
	return &Result{Explanation: explanation, Script: script, Strategy: "codeblock"}
}
