package validator

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule is one structural check. Check returns a non-empty reason when the
// script must be rejected.
type Rule interface {
	Name() string
	Check(script string) string
}

// RequireRule rejects scripts for which Present returns false.
type RequireRule struct {
	RuleName string
	Present  func(script string) bool
	Reason   string
}

func (r RequireRule) Name() string { return r.RuleName }

func (r RequireRule) Check(script string) string {
	if r.Present(script) {
		return ""
	}
	return r.Reason
}

// ForbidRule rejects scripts matching Pattern. Construct is the name shown to
// the user.
type ForbidRule struct {
	Construct string
	Pattern   *regexp.Regexp
}

func (r ForbidRule) Name() string { return "forbid " + r.Construct }

func (r ForbidRule) Check(script string) string {
	if !r.Pattern.MatchString(script) {
		return ""
	}
	return fmt.Sprintf("Code contains forbidden %s. ONLY use Text() and simple shapes (Circle, Square, Line, etc). NO LaTeX or MathTex allowed.", r.Construct)
}

// MinLengthRule rejects scripts whose trimmed length is below Min.
type MinLengthRule struct {
	Min int
}

func (r MinLengthRule) Name() string { return "min length" }

func (r MinLengthRule) Check(script string) string {
	if len(strings.TrimSpace(script)) < r.Min {
		return "Code is too short to be valid"
	}
	return ""
}

func contains(subs ...string) func(string) bool {
	return func(s string) bool {
		for _, sub := range subs {
			if !strings.Contains(s, sub) {
				return false
			}
		}
		return true
	}
}

func forbid(construct, pattern string) ForbidRule {
	return ForbidRule{Construct: construct, Pattern: regexp.MustCompile(pattern)}
}

// ManimRules is the default catalogue, evaluated in order.
func ManimRules() []Rule {
	return []Rule{
		RequireRule{
			RuleName: "import",
			Present: func(s string) bool {
				return strings.Contains(s, "from manim import") || strings.Contains(s, "import manim")
			},
			Reason: `Missing Manim import statement. Code must include "from manim import *"`,
		},
		RequireRule{
			RuleName: "scene",
			Present:  contains("class", "Scene"),
			Reason:   "Missing Scene class. Code must define a class that inherits from Scene",
		},
		RequireRule{
			RuleName: "construct",
			Present:  contains("def construct(self)"),
			Reason:   "Missing construct method. Scene class must have a construct(self) method",
		},
		forbid("MathTex()", `(?i)MathTex\s*\(`),
		forbid("Tex()", `(?i)Tex\s*\(`),
		forbid(`LaTeX \frac`, `(?i)\\frac`),
		forbid(`LaTeX \sqrt`, `(?i)\\sqrt`),
		forbid(`LaTeX \sum`, `(?i)\\sum`),
		forbid(`LaTeX \int`, `(?i)\\int`),
		forbid("LaTeX environment", `(?i)\\begin\{`),
		forbid("LaTeX environment", `(?i)\\end\{`),
		forbid("LaTeX math mode", `\$\$[^$]+\$\$`),
		forbid("LaTeX math mode", `\$[^$]+\$`),
		MinLengthRule{Min: 50},
	}
}

// Signal is a non-blocking quality marker.
type Signal struct {
	Name     string
	Advanced bool
	Pattern  *regexp.Regexp
}

func signal(name string, advanced bool, pattern string) Signal {
	return Signal{Name: name, Advanced: advanced, Pattern: regexp.MustCompile(pattern)}
}

// ManimSignals lists the advanced-feature, positioning and cleanup markers.
func ManimSignals() []Signal {
	return []Signal{
		signal("transform", true, `(?i)Transform\s*\(`),
		signal("animationGroup", true, `(?i)AnimationGroup\s*\(`),
		signal("vgroup", true, `(?i)VGroup\s*\(`),
		signal("rotate", true, `(?i)Rotate\s*\(`),
		signal("colorStyling", true, `(?i)set_fill\s*\(|set_stroke\s*\(`),
		signal("lagRatio", true, `(?i)lag_ratio\s*=`),
		signal("scaling", true, `(?i)\.animate\.scale\s*\(`),
		signal("positioning", false, `(?i)\.move_to\s*\(|\.shift\s*\(|\.next_to\s*\(`),
		signal("cleanup", false, `(?i)FadeOut\s*\(`),
	}
}
