// Package playback serves rendered animations with byte-range support so
// browsers can seek inside videos.
package playback

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ihavenoenemy/mathcast/internal/logging"
)

var mediaTypes = map[string]string{
	".mp4": "video/mp4",
	".mov": "video/quicktime",
	".gif": "image/gif",
	".mp3": "audio/mpeg",
}

// Server serves files directly under root. Subdirectories and other file
// types are not exposed.
type Server struct {
	root   string
	logger *slog.Logger
}

func NewServer(root string, logger *slog.Logger) *Server {
	return &Server{root: root, logger: logging.WithComponent(logging.OrDiscard(logger), "playback")}
}

// ServeHTTP serves the file named by the last path element of the request.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := path.Base(r.URL.Path)
	if name == "." || name == "/" || strings.ContainsAny(name, `\`) || strings.HasPrefix(name, ".") {
		http.NotFound(w, r)
		return
	}
	if _, ok := mediaTypes[strings.ToLower(filepath.Ext(name))]; !ok {
		http.NotFound(w, r)
		return
	}
	if err := s.ServeFile(w, r, filepath.Join(s.root, name)); err != nil {
		s.logger.Error("playback error", "error", err, "file", name)
	}
}

// ServeFile writes filePath honouring a single Range span.
func (s *Server) ServeFile(w http.ResponseWriter, r *http.Request, filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.Error(w, "file not found", http.StatusNotFound)
			return nil
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	if stat.IsDir() {
		http.NotFound(w, r)
		return nil
	}

	size := stat.Size()
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentType(filePath))
	w.Header().Set("Cache-Control", "public, max-age=3600")

	parsed, err := ParseRange(r.Header.Get("Range"), size)
	switch {
	case errors.Is(err, ErrUnsatisfiable):
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "Range Not Satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	case err != nil:
		// Malformed ranges are ignored and the whole file is sent.
		parsed = nil
	}

	if parsed == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			io.Copy(w, file)
		}
		return nil
	}

	w.Header().Set("Content-Length", strconv.FormatInt(parsed.ContentLength(), 10))
	w.Header().Set("Content-Range", parsed.ContentRange(size))
	w.WriteHeader(http.StatusPartialContent)
	if r.Method == http.MethodHead {
		return nil
	}
	if _, err := file.Seek(parsed.Start, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}
	io.CopyN(w, file, parsed.ContentLength())
	return nil
}

func contentType(filePath string) string {
	ext := strings.ToLower(filepath.Ext(filePath))
	if t, ok := mediaTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
