package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("MATHCAST_DATA_DIR", "")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port() != DefaultPort {
		t.Errorf("Port() = %d, want %d", cfg.Port(), DefaultPort)
	}
	if cfg.Host() != "127.0.0.1" {
		t.Errorf("Host() = %q, want 127.0.0.1", cfg.Host())
	}
	if cfg.LLMBaseURL() != DefaultLLMBaseURL {
		t.Errorf("LLMBaseURL() = %q, want %q", cfg.LLMBaseURL(), DefaultLLMBaseURL)
	}
	if cfg.LLMModel() != DefaultLLMModel {
		t.Errorf("LLMModel() = %q, want %q", cfg.LLMModel(), DefaultLLMModel)
	}
	if cfg.LLMMaxRetries() != 3 {
		t.Errorf("LLMMaxRetries() = %d, want 3", cfg.LLMMaxRetries())
	}
	if cfg.RenderTimeout() != 5*time.Minute {
		t.Errorf("RenderTimeout() = %v, want 5m", cfg.RenderTimeout())
	}
	if cfg.SyncTimeout() != 5*time.Minute {
		t.Errorf("SyncTimeout() = %v, want 5m", cfg.SyncTimeout())
	}
	if !cfg.SyntaxCheck() {
		t.Error("SyntaxCheck() = false, want true")
	}
	if cfg.SiteName() != "ihavenoenemy" {
		t.Errorf("SiteName() = %q, want ihavenoenemy", cfg.SiteName())
	}
	if cfg.DataDir() == "" {
		t.Error("DataDir() is empty")
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MATHCAST_PORT", "9100")
	t.Setenv("MATHCAST_DATA_DIR", dir)
	t.Setenv("MATHCAST_RENDER_TIMEOUT", "90s")
	t.Setenv("MATHCAST_LOG_FORMAT", "TEXT")
	t.Setenv("MATHCAST_CORS_ORIGINS", "http://a.test,http://b.test")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port() != 9100 {
		t.Errorf("Port() = %d, want 9100", cfg.Port())
	}
	if cfg.DBPath() != filepath.Join(dir, DBFilename) {
		t.Errorf("DBPath() = %q", cfg.DBPath())
	}
	if cfg.RenderTimeout() != 90*time.Second {
		t.Errorf("RenderTimeout() = %v, want 90s", cfg.RenderTimeout())
	}
	if cfg.LogFormat() != "text" {
		t.Errorf("LogFormat() = %q, want text", cfg.LogFormat())
	}
	if got := cfg.CORSOrigins(); len(got) != 2 || got[1] != "http://b.test" {
		t.Errorf("CORSOrigins() = %v", got)
	}
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"port not a number", "MATHCAST_PORT", "abc"},
		{"port out of range", "MATHCAST_PORT", "70000"},
		{"zero timeout", "MATHCAST_SYNC_TIMEOUT", "0s"},
		{"unknown log format", "MATHCAST_LOG_FORMAT", "xml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := FromEnv(); err == nil {
				t.Fatalf("expected error for %s=%s", tt.key, tt.val)
			}
		})
	}
}
