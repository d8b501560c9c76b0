// Package api exposes the generation, render, narration and sync pipeline
// over HTTP.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ihavenoenemy/mathcast/internal/jobs"
	"github.com/ihavenoenemy/mathcast/internal/logging"
	"github.com/ihavenoenemy/mathcast/internal/pipelines"
)

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// ServerConfig wires the handlers. Generator and Narrator may be nil when
// their API keys are not configured; the affected endpoints then fail.
type ServerConfig struct {
	Host        string
	Port        int
	Generator   ContentGenerator
	Validator   ScriptValidator
	Renderer    SceneRenderer
	Narrator    Narrator
	Media       Synchronizer
	Jobs        *jobs.Recorder
	Doctor      *pipelines.CachedDoctor
	Animations  http.Handler
	CORSOrigins []string
	Logger      *slog.Logger
	StartTime   time.Time
	Version     string
}

func NewServer(cfg ServerConfig) *Server {
	cfg.Logger = logging.OrDiscard(cfg.Logger)
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:           router,
			ReadHeaderTimeout: 15 * time.Second,
			// Renders and syncs can take minutes.
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
