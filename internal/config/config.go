// Package config provides configuration management for mathcast.
// Configuration is loaded from environment variables (optionally seeded from
// a .env file) with sensible defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	// Prefix applied to every environment variable, e.g. MATHCAST_PORT.
	EnvPrefix = "MATHCAST"

	DefaultPort     = 8787
	DefaultLogLevel = "info"
	DefaultDataDir  = ".mathcast"

	// Database filename
	DBFilename = "mathcast.db"

	DefaultLLMBaseURL = "https://openrouter.ai/api/v1"
	DefaultLLMModel   = "qwen/qwen-2.5-72b-instruct:free"
	DefaultTTSBaseURL = "https://api.elevenlabs.io/v1"
)

// Config defines the application configuration interface
type Config interface {
	Host() string
	Port() int
	LogLevel() string
	LogFormat() string
	DataDir() string
	DBPath() string
	PublicDir() string
	WorkDir() string

	LLMAPIKey() string
	LLMBaseURL() string
	LLMModel() string
	LLMMaxRetries() int
	SiteURL() string
	SiteName() string

	TTSAPIKey() string
	TTSBaseURL() string

	ManimPath() string
	PythonPath() string
	FFmpegPath() string
	FFprobePath() string
	RenderTimeout() time.Duration
	SyncTimeout() time.Duration
	SyntaxCheck() bool

	CORSOrigins() []string
}

// envVars is the envconfig target. Field names map to MATHCAST_<TAG>.
type envVars struct {
	Host      string `envconfig:"HOST" default:"127.0.0.1"`
	Port      int    `envconfig:"PORT" default:"8787"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
	DataDir   string `envconfig:"DATA_DIR"`
	PublicDir string `envconfig:"PUBLIC_DIR" default:"public"`
	WorkDir   string `envconfig:"WORK_DIR" default:"."`

	LLMAPIKey     string `envconfig:"LLM_API_KEY"`
	LLMBaseURL    string `envconfig:"LLM_BASE_URL" default:"https://openrouter.ai/api/v1"`
	LLMModel      string `envconfig:"LLM_MODEL" default:"qwen/qwen-2.5-72b-instruct:free"`
	LLMMaxRetries int    `envconfig:"LLM_MAX_RETRIES" default:"3"`
	SiteURL       string `envconfig:"SITE_URL" default:"http://localhost:3000"`
	SiteName      string `envconfig:"SITE_NAME" default:"ihavenoenemy"`

	TTSAPIKey  string `envconfig:"TTS_API_KEY"`
	TTSBaseURL string `envconfig:"TTS_BASE_URL" default:"https://api.elevenlabs.io/v1"`

	ManimPath     string        `envconfig:"MANIM_PATH" default:"manim"`
	PythonPath    string        `envconfig:"PYTHON_PATH"`
	FFmpegPath    string        `envconfig:"FFMPEG_PATH" default:"ffmpeg"`
	FFprobePath   string        `envconfig:"FFPROBE_PATH" default:"ffprobe"`
	RenderTimeout time.Duration `envconfig:"RENDER_TIMEOUT" default:"5m"`
	SyncTimeout   time.Duration `envconfig:"SYNC_TIMEOUT" default:"5m"`
	SyntaxCheck   bool          `envconfig:"SYNTAX_CHECK" default:"true"`

	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	s envVars
}

// New loads an optional .env from the working directory, then reads
// MATHCAST_* variables over the defaults.
func New() (*EnvConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a config from the current process environment only.
func FromEnv() (*EnvConfig, error) {
	var s envVars
	if err := envconfig.Process(EnvPrefix, &s); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if s.Port < 1 || s.Port > 65535 {
		return nil, fmt.Errorf("invalid %s_PORT: port must be between 1 and 65535", EnvPrefix)
	}
	if s.RenderTimeout <= 0 {
		return nil, fmt.Errorf("invalid %s_RENDER_TIMEOUT: must be positive", EnvPrefix)
	}
	if s.SyncTimeout <= 0 {
		return nil, fmt.Errorf("invalid %s_SYNC_TIMEOUT: must be positive", EnvPrefix)
	}
	if s.LLMMaxRetries < 1 {
		s.LLMMaxRetries = 1
	}
	switch strings.ToLower(s.LogFormat) {
	case "json", "text":
	default:
		return nil, fmt.Errorf("invalid %s_LOG_FORMAT %q: want json or text", EnvPrefix, s.LogFormat)
	}

	if s.DataDir == "" {
		s.DataDir = defaultDataDir()
	}

	return &EnvConfig{s: s}, nil
}

// Host returns the interface the HTTP server binds to
func (c *EnvConfig) Host() string {
	return c.s.Host
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.s.Port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.s.LogLevel
}

// LogFormat returns json or text
func (c *EnvConfig) LogFormat() string {
	return strings.ToLower(c.s.LogFormat)
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.s.DataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.s.DataDir, DBFilename)
}

// PublicDir is the statically served directory; renders land in its
// animations/ subdirectory.
func (c *EnvConfig) PublicDir() string {
	return c.s.PublicDir
}

// WorkDir is where manim is run and where temp/ and media/ live.
func (c *EnvConfig) WorkDir() string {
	return c.s.WorkDir
}

func (c *EnvConfig) LLMAPIKey() string {
	return c.s.LLMAPIKey
}

func (c *EnvConfig) LLMBaseURL() string {
	return c.s.LLMBaseURL
}

func (c *EnvConfig) LLMModel() string {
	return c.s.LLMModel
}

func (c *EnvConfig) LLMMaxRetries() int {
	return c.s.LLMMaxRetries
}

func (c *EnvConfig) SiteURL() string {
	return c.s.SiteURL
}

func (c *EnvConfig) SiteName() string {
	return c.s.SiteName
}

func (c *EnvConfig) TTSAPIKey() string {
	return c.s.TTSAPIKey
}

func (c *EnvConfig) TTSBaseURL() string {
	return c.s.TTSBaseURL
}

func (c *EnvConfig) ManimPath() string {
	return c.s.ManimPath
}

// PythonPath returns the configured interpreter; empty means auto-detect.
func (c *EnvConfig) PythonPath() string {
	return c.s.PythonPath
}

func (c *EnvConfig) FFmpegPath() string {
	return c.s.FFmpegPath
}

func (c *EnvConfig) FFprobePath() string {
	return c.s.FFprobePath
}

func (c *EnvConfig) RenderTimeout() time.Duration {
	return c.s.RenderTimeout
}

func (c *EnvConfig) SyncTimeout() time.Duration {
	return c.s.SyncTimeout
}

func (c *EnvConfig) SyntaxCheck() bool {
	return c.s.SyntaxCheck
}

func (c *EnvConfig) CORSOrigins() []string {
	return c.s.CORSOrigins
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
