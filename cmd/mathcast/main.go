package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/ihavenoenemy/mathcast/internal/api"
	"github.com/ihavenoenemy/mathcast/internal/config"
	"github.com/ihavenoenemy/mathcast/internal/db"
	"github.com/ihavenoenemy/mathcast/internal/generator"
	"github.com/ihavenoenemy/mathcast/internal/jobs"
	"github.com/ihavenoenemy/mathcast/internal/logging"
	"github.com/ihavenoenemy/mathcast/internal/manim"
	"github.com/ihavenoenemy/mathcast/internal/media"
	"github.com/ihavenoenemy/mathcast/internal/narrator"
	"github.com/ihavenoenemy/mathcast/internal/pipelines"
	"github.com/ihavenoenemy/mathcast/internal/playback"
	"github.com/ihavenoenemy/mathcast/internal/validator"
)

var Version = "0.1.0"

const (
	probeTimeout    = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel(), cfg.LogFormat())
	logger.Info("starting mathcast", "version", Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := jobs.NewRepository(database.Conn())
	instanceID, err := ensureInstanceID(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure instance ID: %w", err)
	}
	logger = logger.With("instance_id", instanceID)

	runner := pipelines.NewRunner(logger)
	doctor := pipelines.NewCachedDoctor(pipelines.NewToolProber(runner, pipelines.ToolSet{
		Manim:   cfg.ManimPath(),
		Python:  pythonName(cfg.PythonPath()),
		FFmpeg:  cfg.FFmpegPath(),
		FFprobe: cfg.FFprobePath(),
	}), logger)

	probeCtx, probeCancel := context.WithTimeout(context.Background(), probeTimeout)
	if caps, err := doctor.Refresh(probeCtx); err != nil {
		logger.Warn("initial tool probe failed", "error", err)
	} else {
		logger.Info("tool capabilities detected",
			"render", caps.CanRender,
			"syntax_check", caps.CanSyntaxCheck,
			"sync", caps.CanSync,
		)
	}
	probeCancel()

	scratchDir := filepath.Join(cfg.WorkDir(), "temp")
	animationsDir := filepath.Join(cfg.PublicDir(), "animations")

	renderer, err := manim.NewRenderer(runner, manim.Config{
		Binary:     cfg.ManimPath(),
		WorkDir:    cfg.WorkDir(),
		ScratchDir: scratchDir,
		OutputDir:  animationsDir,
		Timeout:    cfg.RenderTimeout(),
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize renderer: %w", err)
	}

	synchronizer, err := media.NewSynchronizer(runner, media.Config{
		FFmpeg:     cfg.FFmpegPath(),
		FFprobe:    cfg.FFprobePath(),
		PublicDir:  cfg.PublicDir(),
		ScratchDir: scratchDir,
		Timeout:    cfg.SyncTimeout(),
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize synchronizer: %w", err)
	}

	srvCfg := api.ServerConfig{
		Host:        cfg.Host(),
		Port:        cfg.Port(),
		Validator:   newValidator(cfg, runner, scratchDir, logger),
		Renderer:    renderer,
		Media:       synchronizer,
		Jobs:        jobs.NewRecorder(repo, logger),
		Doctor:      doctor,
		Animations:  playback.NewServer(animationsDir, logger),
		CORSOrigins: cfg.CORSOrigins(),
		Logger:      logger,
		StartTime:   startTime,
		Version:     Version,
	}

	if cfg.LLMAPIKey() != "" {
		gen, err := generator.New(generator.Config{
			APIKey:     cfg.LLMAPIKey(),
			BaseURL:    cfg.LLMBaseURL(),
			Model:      cfg.LLMModel(),
			SiteURL:    cfg.SiteURL(),
			SiteName:   cfg.SiteName(),
			MaxRetries: cfg.LLMMaxRetries(),
			Logger:     logger,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize generator: %w", err)
		}
		srvCfg.Generator = gen
		logger.Info("generator enabled", "base_url", cfg.LLMBaseURL(), "model", cfg.LLMModel(),
			"api_key", logging.SanitizeToken(cfg.LLMAPIKey()))
	} else {
		logger.Warn("LLM API key not set, /generate disabled")
	}

	if cfg.TTSAPIKey() != "" {
		client, err := narrator.NewClient(cfg.TTSBaseURL(), cfg.TTSAPIKey(), logger)
		if err != nil {
			return fmt.Errorf("failed to initialize narrator: %w", err)
		}
		srvCfg.Narrator = client
		logger.Info("narrator enabled", "base_url", cfg.TTSBaseURL())
	} else {
		logger.Warn("TTS API key not set, /audio disabled")
	}

	apiServer := api.NewServer(srvCfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- apiServer.Start()
	}()

	fmt.Println()
	fmt.Printf("  mathcast v%s listening on http://%s\n", Version, apiServer.Addr())
	fmt.Println()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// newValidator attaches the py_compile syntax check when enabled and a
// python interpreter can be found.
func newValidator(cfg config.Config, runner pipelines.Runner, scratchDir string, logger *slog.Logger) *validator.Validator {
	if !cfg.SyntaxCheck() {
		return validator.New(logger)
	}
	pc, err := manim.NewPyCompiler(runner, cfg.PythonPath(), scratchDir)
	if err != nil {
		logger.Warn("syntax check disabled", "error", err)
		return validator.New(logger)
	}
	return validator.New(logger, validator.WithSyntaxChecker(pc))
}

func pythonName(configured string) string {
	if configured != "" {
		return configured
	}
	if p, err := pipelines.ResolvePython(""); err == nil {
		return p
	}
	return "python3"
}

func ensureInstanceID(repo *jobs.SQLiteRepository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "instance_id")
	if err == nil && existing != "" {
		return existing, nil
	}

	id := uuid.NewString()
	if err := repo.SetConfig(ctx, "instance_id", id); err != nil {
		return "", err
	}
	return id, nil
}
