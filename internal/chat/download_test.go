package chat

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadName(t *testing.T) {
	tests := []struct {
		topic string
		want  string
	}{
		{"Pythagorean theorem", "pythagorean_theorem_animation.mp4"},
		{"e^(iπ) + 1 = 0", "e__i_____1___0_animation.mp4"},
		{"Fourier", "fourier_animation.mp4"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DownloadName(tt.topic), tt.topic)
	}
}

func TestLastVideo(t *testing.T) {
	backend := okBackend()
	s := NewSession(backend)

	_, _, ok := s.LastVideo()
	assert.False(t, ok)

	_, err := s.Submit(context.Background(), "limits")
	require.NoError(t, err)

	backend.genErr = assert.AnError
	s.Submit(context.Background(), "broken")

	topic, path, ok := s.LastVideo()
	require.True(t, ok)
	assert.Equal(t, "limits", topic)
	assert.Equal(t, "/animations/manim_1_abc.mp4", path)
}

func TestHTTPBackend_Download(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/animations/manim_1_x.mp4" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("mp4data"))
	}))
	defer server.Close()

	b := NewHTTPBackend(server.URL, nil)

	var buf bytes.Buffer
	n, err := b.Download(context.Background(), "/animations/manim_1_x.mp4", &buf)
	require.NoError(t, err)
	assert.EqualValues(t, 7, n)
	assert.Equal(t, "mp4data", buf.String())

	_, err = b.Download(context.Background(), "/animations/missing.mp4", &buf)
	var se *ServerError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
}
