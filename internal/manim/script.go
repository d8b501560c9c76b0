package manim

import (
	"regexp"
	"strings"
)

var sceneClassRe = regexp.MustCompile(`class\s+(\w+)\s*\(\s*Scene\s*\)`)

// SceneClassName returns the first class deriving directly from Scene.
func SceneClassName(script string) (string, bool) {
	m := sceneClassRe.FindStringSubmatch(script)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// EnsureComplete wraps a bare construct body in an importing GeneratedScene.
// Scripts that already import manim and define a Scene are returned as is.
func EnsureComplete(script string) string {
	hasImports := strings.Contains(script, "from manim import")
	hasScene := strings.Contains(script, "class") && strings.Contains(script, "Scene")
	if hasImports && hasScene {
		return script
	}

	var b strings.Builder
	b.WriteString("from manim import *\n\nclass GeneratedScene(Scene):\n    def construct(self):\n")
	for _, line := range strings.Split(script, "\n") {
		b.WriteString("        ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// describeFailure maps tool output onto a short message.
func describeFailure(logs, fallback string) string {
	switch {
	case strings.Contains(logs, "ModuleNotFoundError"):
		return "Manim module not found. Please ensure Manim is installed correctly."
	case strings.Contains(logs, "SyntaxError"):
		return "Python syntax error in generated code."
	case strings.Contains(logs, "AttributeError"):
		return "Invalid Manim method or attribute used."
	case strings.Contains(logs, "FileNotFoundError"):
		return "File or resource not found during rendering."
	default:
		return fallback
	}
}
