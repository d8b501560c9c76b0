package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/ihavenoenemy/mathcast/internal/chat"
	"github.com/ihavenoenemy/mathcast/internal/logging"
	"github.com/ihavenoenemy/mathcast/internal/tui"
)

// settings map to MATHCAST_CHAT_<TAG>.
type settings struct {
	Server     string `envconfig:"SERVER" default:"http://127.0.0.1:8787"`
	Narrate    bool   `envconfig:"NARRATE" default:"false"`
	Difficulty string `envconfig:"DIFFICULTY" default:"advanced"`
	Quality    string `envconfig:"QUALITY" default:"medium"`
	SaveDir    string `envconfig:"SAVE_DIR" default:"."`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"warn"`
	// LogFile receives logs; the terminal belongs to the UI.
	LogFile string `envconfig:"LOG_FILE"`
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	var s settings
	if err := envconfig.Process("MATHCAST_CHAT", &s); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, closeLog, err := newLogger(s)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend := chat.NewHTTPBackend(s.Server, logger)

	// The observer needs the program and the program needs the session.
	var program *tea.Program
	session := chat.NewSession(backend,
		chat.WithNarration(s.Narrate),
		chat.WithDifficulty(s.Difficulty),
		chat.WithQuality(s.Quality),
		chat.WithLogger(logger),
		chat.WithObserver(func(t chat.Transition) {
			program.Send(tui.TransitionMsg(t))
		}),
	)

	model := tui.NewModel(ctx, tui.Config{
		Session:    session,
		Downloader: backend,
		Server:     s.Server,
		SaveDir:    s.SaveDir,
	})
	program = tea.NewProgram(model, tea.WithContext(ctx))

	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

func newLogger(s settings) (*slog.Logger, func(), error) {
	if s.LogFile == "" {
		return logging.Discard(), func() {}, nil
	}
	f, err := tea.LogToFile(s.LogFile, "mathcast-chat")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return logging.NewLoggerTo(f, s.LogLevel, "json"), func() { f.Close() }, nil
}
