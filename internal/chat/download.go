package chat

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DownloadName is the local filename for a topic's video: every character
// outside [a-z0-9] becomes '_'.
func DownloadName(topic string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(topic) {
		if ('a' <= r && r <= 'z') || ('0' <= r && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String() + "_animation.mp4"
}

// LastVideo returns the most recent assistant video and the topic that
// produced it.
func (s *Session) LastVideo() (topic, videoPath string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.messages) - 1; i > 0; i-- {
		m := s.messages[i]
		if m.Role != RoleAssistant || m.VideoPath == "" {
			continue
		}
		for j := i - 1; j >= 0; j-- {
			if s.messages[j].Role == RoleUser {
				return s.messages[j].Text, m.VideoPath, true
			}
		}
	}
	return "", "", false
}

// Download copies the video at videoPath (e.g. /animations/x.mp4) to w.
func (b *HTTPBackend) Download(ctx context.Context, videoPath string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+videoPath, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, &ServerError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("download failed (HTTP %d)", resp.StatusCode)}
	}
	return io.Copy(w, resp.Body)
}
