package manim

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ihavenoenemy/mathcast/internal/pipelines"
)

func TestSceneClassName(t *testing.T) {
	tests := []struct {
		script string
		want   string
		ok     bool
	}{
		{"class Demo(Scene):\n", "Demo", true},
		{"class  Wave ( Scene ) :\n", "Wave", true},
		{"class Helper(object):\nclass Main(Scene):\n", "Main", true},
		{"class Moving(MovingCameraScene):\n", "", false},
		{"print('no class')", "", false},
	}
	for _, tt := range tests {
		got, ok := SceneClassName(tt.script)
		assert.Equal(t, tt.ok, ok, tt.script)
		assert.Equal(t, tt.want, got, tt.script)
	}
}

func TestEnsureComplete(t *testing.T) {
	complete := "from manim import *\nclass A(Scene):\n    def construct(self):\n        pass\n"
	assert.Equal(t, complete, EnsureComplete(complete))

	got := EnsureComplete("c = Circle()\nself.play(Create(c))")
	want := "from manim import *\n\nclass GeneratedScene(Scene):\n    def construct(self):\n" +
		"        c = Circle()\n" +
		"        self.play(Create(c))\n"
	assert.Equal(t, want, got)

	name, ok := SceneClassName(got)
	assert.True(t, ok)
	assert.Equal(t, "GeneratedScene", name)
}

func TestPyCompiler(t *testing.T) {
	if _, err := pipelines.ResolvePython(""); err != nil {
		t.Skipf("no python on PATH: %v", err)
	}
	dir := t.TempDir()
	pc, err := NewPyCompiler(pipelines.NewRunner(nil), "", dir)
	require.NoError(t, err)

	assert.NoError(t, pc.CheckSyntax(context.Background(), "x = 1\nprint(x)\n"))

	err = pc.CheckSyntax(context.Background(), "def broken(:\n    pass\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SyntaxError")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		if !e.IsDir() {
			t.Errorf("scratch file left behind: %s", e.Name())
		}
	}
}
