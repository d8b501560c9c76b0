package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ihavenoenemy/mathcast/internal/jobs"
	"github.com/ihavenoenemy/mathcast/internal/logging"
	"github.com/ihavenoenemy/mathcast/internal/metrics"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	cfg.Logger = logging.OrDiscard(cfg.Logger)
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSMiddleware(cfg.CORSOrigins))

	r.Get("/health", healthHandler(cfg))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Post("/generate", generateHandler(cfg))
	r.Post("/generate/stream", generateStreamHandler(cfg))
	r.Post("/render", renderHandler(cfg))
	r.Post("/audio", audioHandler(cfg))
	r.Post("/audio/stream", audioStreamHandler(cfg))
	r.Get("/voices", voicesHandler(cfg))
	r.Post("/sync", syncHandler(cfg))
	r.Post("/captions", captionsHandler(cfg))
	r.Post("/retime", retimeHandler(cfg))

	r.Get("/jobs", listJobsHandler(cfg))
	r.Get("/jobs/{id}", getJobHandler(cfg))

	if cfg.Animations != nil {
		r.Method(http.MethodGet, "/animations/*", cfg.Animations)
		r.Method(http.MethodHead, "/animations/*", cfg.Animations)
	}

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: int64(time.Since(cfg.StartTime).Seconds()),
			LLM:     cfg.Generator != nil,
			TTS:     cfg.Narrator != nil,
		}
		if cfg.Doctor != nil {
			if caps, err := cfg.Doctor.Get(r.Context()); err == nil {
				resp.Tools = caps
				if !caps.CanRender {
					resp.Status = "degraded"
				}
			}
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func listJobsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Jobs == nil {
			WriteJSON(w, http.StatusOK, JobsResponse{Jobs: []*jobs.Job{}})
			return
		}

		q := r.URL.Query()
		f := jobs.Filter{Type: q.Get("type"), Status: q.Get("status")}
		if s := q.Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			f.Limit = n
		}

		list, err := cfg.Jobs.List(r.Context(), f)
		if err != nil {
			requestLogger(cfg.Logger, r).Error("cannot list jobs", "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to list jobs")
			return
		}
		if list == nil {
			list = []*jobs.Job{}
		}
		WriteJSON(w, http.StatusOK, JobsResponse{Jobs: list})
	}
}

func getJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if cfg.Jobs == nil {
			WriteError(w, http.StatusNotFound, "job not found")
			return
		}

		job, err := cfg.Jobs.Get(r.Context(), id)
		if err != nil {
			requestLogger(cfg.Logger, r).Error("cannot load job", "job_id", id, "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to load job")
			return
		}
		if job == nil {
			WriteError(w, http.StatusNotFound, "job not found")
			return
		}
		WriteJSON(w, http.StatusOK, job)
	}
}
