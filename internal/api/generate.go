package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ihavenoenemy/mathcast/internal/apperr"
	"github.com/ihavenoenemy/mathcast/internal/generator"
)

var errLLMNotConfigured = apperr.Internalf("LLM API key not configured")

func parseGenerateRequest(w http.ResponseWriter, r *http.Request) (string, generator.Difficulty, error) {
	var req GenerateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return "", "", err
	}
	if strings.TrimSpace(req.Topic) == "" {
		return "", "", apperr.Inputf("Topic is required")
	}
	d, err := generator.ParseDifficulty(req.Difficulty)
	if err != nil {
		return "", "", apperr.Inputf("%v", err)
	}
	return req.Topic, d, nil
}

func generateHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topic, difficulty, err := parseGenerateRequest(w, r)
		if err != nil {
			WriteFailure(w, err)
			return
		}
		if cfg.Generator == nil {
			WriteFailure(w, errLLMNotConfigured)
			return
		}

		logger := requestLogger(cfg.Logger, r)
		logger.Info("generating content", "topic", topic, "difficulty", difficulty)

		res, err := cfg.Generator.Generate(r.Context(), topic, difficulty)
		if err != nil {
			logger.Error("generation failed", "error", err)
			WriteFailure(w, err)
			return
		}

		WriteJSON(w, http.StatusOK, GenerateResponse{
			Success: true,
			Data: GenerateData{
				Explanation: res.Explanation,
				Script:      res.Script,
				ManimCode:   res.Script,
				Reasoning:   res.Reasoning,
			},
		})
	}
}

// generateStreamHandler relays completion deltas as server-sent events:
// "chunk" events while streaming, then one "result" or "error" event.
func generateStreamHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topic, difficulty, err := parseGenerateRequest(w, r)
		if err != nil {
			WriteFailure(w, err)
			return
		}
		if cfg.Generator == nil {
			WriteFailure(w, errLLMNotConfigured)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			WriteError(w, http.StatusInternalServerError, "streaming unsupported")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		send := func(event string, v any) error {
			b, _ := json.Marshal(v)
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, b); err != nil {
				return err
			}
			flusher.Flush()
			return nil
		}

		logger := requestLogger(cfg.Logger, r)
		full, err := cfg.Generator.Stream(r.Context(), topic, difficulty, func(chunk string) error {
			return send("chunk", map[string]string{"content": chunk})
		})
		if err != nil {
			logger.Warn("generation stream failed", "error", err)
			send("error", FailureResponse{Success: false, Error: err.Error()})
			return
		}

		res, err := generator.ParsePayload(full)
		if err != nil {
			send("error", FailureResponse{Success: false, Error: err.Error()})
			return
		}
		send("result", GenerateResponse{
			Success: true,
			Data: GenerateData{
				Explanation: res.Explanation,
				Script:      res.Script,
				ManimCode:   res.Script,
				Reasoning:   res.Reasoning,
			},
		})
	}
}
