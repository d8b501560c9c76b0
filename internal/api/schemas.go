package api

import (
	"github.com/ihavenoenemy/mathcast/internal/jobs"
	"github.com/ihavenoenemy/mathcast/internal/media"
	"github.com/ihavenoenemy/mathcast/internal/narrator"
	"github.com/ihavenoenemy/mathcast/internal/pipelines"
)

type FailureResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type HealthResponse struct {
	Status  string                  `json:"status"`
	Version string                  `json:"version"`
	UptimeS int64                   `json:"uptime_s"`
	Tools   *pipelines.Capabilities `json:"tools,omitempty"`
	LLM     bool                    `json:"llm_configured"`
	TTS     bool                    `json:"tts_configured"`
}

type GenerateRequest struct {
	Topic      string `json:"topic"`
	Difficulty string `json:"difficulty,omitempty"`
}

type GenerateData struct {
	Explanation string `json:"explanation"`
	Script      string `json:"script"`
	// ManimCode duplicates Script under the key browser clients expect.
	ManimCode string `json:"manimCode"`
	Reasoning string `json:"reasoning,omitempty"`
}

type GenerateResponse struct {
	Success bool         `json:"success"`
	Data    GenerateData `json:"data"`
}

type RenderRequest struct {
	Code        string `json:"code"`
	Quality     string `json:"quality,omitempty"`
	Format      string `json:"format,omitempty"`
	FPS         int    `json:"fps,omitempty"`
	Transparent bool   `json:"transparent,omitempty"`
	RetryCount  int    `json:"retryCount,omitempty"`
}

type RenderResponse struct {
	Success   bool     `json:"success"`
	VideoPath string   `json:"videoPath"`
	Logs      string   `json:"logs,omitempty"`
	Attempts  int      `json:"attempts"`
	Quality   string   `json:"quality"`
	Signals   []string `json:"signals,omitempty"`
	Score     int      `json:"score"`
}

type RenderValidationResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details"`
	Code    string `json:"code"`
}

type RenderFailureResponse struct {
	Success        bool   `json:"success"`
	Error          string `json:"error"`
	TechnicalError string `json:"technicalError"`
	Logs           string `json:"logs,omitempty"`
	Attempts       int    `json:"attempts"`
}

type AudioRequest struct {
	Text            string   `json:"text"`
	VoiceID         string   `json:"voiceId,omitempty"`
	ModelID         string   `json:"modelId,omitempty"`
	WithTimestamps  bool     `json:"withTimestamps,omitempty"`
	Stability       *float64 `json:"stability,omitempty"`
	SimilarityBoost *float64 `json:"similarityBoost,omitempty"`
}

type AudioResponse struct {
	Success   bool               `json:"success"`
	Audio     string             `json:"audio"`
	Alignment narrator.Alignment `json:"alignment,omitempty"`
}

type VoicesResponse struct {
	Success bool             `json:"success"`
	Voices  []narrator.Voice `json:"voices"`
}

type SyncRequest struct {
	VideoPath string   `json:"videoPath"`
	AudioData string   `json:"audioData"`
	FadeIn    *bool    `json:"fadeIn,omitempty"`
	FadeOut   *bool    `json:"fadeOut,omitempty"`
	Volume    *float64 `json:"volume,omitempty"`
}

type CaptionsRequest struct {
	VideoPath string          `json:"videoPath"`
	Captions  []media.Caption `json:"captions"`
}

type RetimeRequest struct {
	VideoPath      string  `json:"videoPath"`
	TargetDuration float64 `json:"targetDuration"`
}

type MediaResponse struct {
	Success    bool           `json:"success"`
	OutputPath string         `json:"outputPath"`
	Strategy   media.Strategy `json:"strategy,omitempty"`
}

type JobsResponse struct {
	Jobs []*jobs.Job `json:"jobs"`
}
