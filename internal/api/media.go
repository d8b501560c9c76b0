package api

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"strings"

	"github.com/ihavenoenemy/mathcast/internal/apperr"
	"github.com/ihavenoenemy/mathcast/internal/jobs"
	"github.com/ihavenoenemy/mathcast/internal/media"
	"github.com/ihavenoenemy/mathcast/internal/narrator"
)

var errTTSNotConfigured = apperr.Internalf("ElevenLabs API key not configured")

func (req AudioRequest) voiceOptions() narrator.VoiceOptions {
	opts := narrator.DefaultVoiceOptions()
	if req.VoiceID != "" {
		opts.VoiceID = req.VoiceID
	}
	if req.ModelID != "" {
		opts.ModelID = req.ModelID
	}
	if req.Stability != nil {
		opts.Stability = *req.Stability
	}
	if req.SimilarityBoost != nil {
		opts.SimilarityBoost = *req.SimilarityBoost
	}
	return opts
}

func parseAudioRequest(w http.ResponseWriter, r *http.Request) (AudioRequest, error) {
	var req AudioRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return req, err
	}
	if strings.TrimSpace(req.Text) == "" {
		return req, apperr.Inputf("Text is required")
	}
	for _, v := range []*float64{req.Stability, req.SimilarityBoost} {
		if v != nil && (*v < 0 || *v > 1) {
			return req, apperr.Inputf("voice settings must be between 0 and 1")
		}
	}
	return req, nil
}

func audioHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := parseAudioRequest(w, r)
		if err != nil {
			WriteFailure(w, err)
			return
		}
		if cfg.Narrator == nil {
			WriteFailure(w, errTTSNotConfigured)
			return
		}

		logger := requestLogger(cfg.Logger, r)
		opts := req.voiceOptions()

		var (
			audio     []byte
			alignment narrator.Alignment
		)
		if req.WithTimestamps {
			audio, alignment, err = cfg.Narrator.SynthesizeWithAlignment(r.Context(), req.Text, opts)
		} else {
			audio, err = cfg.Narrator.Synthesize(r.Context(), req.Text, opts)
		}
		if err != nil {
			logger.Error("speech synthesis failed", "error", err)
			WriteFailure(w, err)
			return
		}

		WriteJSON(w, http.StatusOK, AudioResponse{
			Success:   true,
			Audio:     base64.StdEncoding.EncodeToString(audio),
			Alignment: alignment,
		})
	}
}

// audioStreamHandler proxies the provider's audio stream as audio/mpeg.
func audioStreamHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := parseAudioRequest(w, r)
		if err != nil {
			WriteFailure(w, err)
			return
		}
		if cfg.Narrator == nil {
			WriteFailure(w, errTTSNotConfigured)
			return
		}

		body, err := cfg.Narrator.Stream(r.Context(), req.Text, req.voiceOptions())
		if err != nil {
			requestLogger(cfg.Logger, r).Error("speech stream failed", "error", err)
			WriteFailure(w, err)
			return
		}
		defer body.Close()

		w.Header().Set("Content-Type", "audio/mpeg")
		w.WriteHeader(http.StatusOK)
		if _, err := io.Copy(flushWriter{w}, body); err != nil {
			requestLogger(cfg.Logger, r).Warn("speech stream interrupted", "error", err)
		}
	}
}

type flushWriter struct {
	w http.ResponseWriter
}

func (f flushWriter) Write(p []byte) (int, error) {
	n, err := f.w.Write(p)
	if fl, ok := f.w.(http.Flusher); ok {
		fl.Flush()
	}
	return n, err
}

func voicesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Narrator == nil {
			WriteFailure(w, errTTSNotConfigured)
			return
		}
		voices, err := cfg.Narrator.Voices(r.Context())
		if err != nil {
			requestLogger(cfg.Logger, r).Error("cannot list voices", "error", err)
			WriteFailure(w, err)
			return
		}
		if voices == nil {
			voices = []narrator.Voice{}
		}
		WriteJSON(w, http.StatusOK, VoicesResponse{Success: true, Voices: voices})
	}
}

func syncHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SyncRequest
		if err := decodeJSON(w, r, &req); err != nil {
			WriteFailure(w, err)
			return
		}
		if req.VideoPath == "" || req.AudioData == "" {
			WriteError(w, http.StatusBadRequest, "Video path and audio data are required")
			return
		}
		audio, err := base64.StdEncoding.DecodeString(req.AudioData)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "audioData is not valid base64")
			return
		}

		opts := media.DefaultSyncOptions()
		if req.FadeIn != nil {
			opts.FadeIn = *req.FadeIn
		}
		if req.FadeOut != nil {
			opts.FadeOut = *req.FadeOut
		}
		if req.Volume != nil {
			opts.Volume = *req.Volume
		}

		runMedia(w, r, cfg, jobs.TypeSync, req.VideoPath, func(ctx context.Context) media.Result {
			return cfg.Media.Sync(ctx, req.VideoPath, audio, opts)
		})
	}
}

func captionsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CaptionsRequest
		if err := decodeJSON(w, r, &req); err != nil {
			WriteFailure(w, err)
			return
		}
		if req.VideoPath == "" || len(req.Captions) == 0 {
			WriteError(w, http.StatusBadRequest, "Video path and captions are required")
			return
		}
		runMedia(w, r, cfg, jobs.TypeCaptions, req.VideoPath, func(ctx context.Context) media.Result {
			return cfg.Media.AddCaptions(ctx, req.VideoPath, req.Captions)
		})
	}
}

func retimeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RetimeRequest
		if err := decodeJSON(w, r, &req); err != nil {
			WriteFailure(w, err)
			return
		}
		if req.VideoPath == "" || req.TargetDuration <= 0 {
			WriteError(w, http.StatusBadRequest, "Video path and a positive target duration are required")
			return
		}
		runMedia(w, r, cfg, jobs.TypeRetime, req.VideoPath, func(ctx context.Context) media.Result {
			return cfg.Media.AdjustSpeed(ctx, req.VideoPath, req.TargetDuration)
		})
	}
}

// runMedia executes one ffmpeg job detached from the client connection and
// records it in the job history.
func runMedia(w http.ResponseWriter, r *http.Request, cfg ServerConfig, typ, input string, run func(context.Context) media.Result) {
	ctx := context.WithoutCancel(r.Context())
	logger := requestLogger(cfg.Logger, r)

	job := cfg.Jobs.Start(ctx, typ, 1, "", input)
	res := run(ctx)

	var err error
	if !res.Success {
		err = res.Err
		if err == nil {
			err = apperr.Syncf("%s", res.Error)
		}
	}
	cfg.Jobs.Finish(ctx, job, res.OutputPath, err, res.Duration)

	if err != nil {
		logger.Error("media job failed", "type", typ, "error", err)
		WriteJSON(w, apperr.HTTPStatus(err), FailureResponse{Success: false, Error: res.Error})
		return
	}
	WriteJSON(w, http.StatusOK, MediaResponse{
		Success:    true,
		OutputPath: res.OutputPath,
		Strategy:   res.Strategy,
	})
}
