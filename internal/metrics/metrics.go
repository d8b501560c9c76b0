// Package metrics holds the prometheus collectors for every pipeline stage.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

var (
	llmRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mathcast_llm_requests_total",
			Help: "Total number of chat-completion requests, retries included.",
		},
		[]string{"model", "status"},
	)
	llmRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mathcast_llm_request_duration_seconds",
			Help:    "Histogram of chat-completion request durations.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s .. 64s
		},
		[]string{"model"},
	)
	llmPayloadStrategy = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mathcast_llm_payload_strategy_total",
			Help: "Which recovery strategy produced the generation payload.",
		},
		[]string{"strategy"},
	)
	renderAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mathcast_render_attempts_total",
			Help: "Total number of manim render attempts.",
		},
		[]string{"quality", "status"},
	)
	renderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mathcast_render_duration_seconds",
			Help:    "Histogram of manim render durations.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 9), // 1s .. 256s
		},
		[]string{"quality"},
	)
	mediaRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mathcast_media_runs_total",
			Help: "Total number of ffmpeg operations.",
		},
		[]string{"operation", "status"},
	)
	ttsRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mathcast_tts_requests_total",
			Help: "Total number of text-to-speech requests.",
		},
		[]string{"endpoint", "status"},
	)
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mathcast_http_requests_total",
			Help: "Total number of HTTP requests served.",
		},
		[]string{"method", "route", "code"},
	)
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mathcast_http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

func status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}

// ObserveLLM records one provider call.
func ObserveLLM(model string, d time.Duration, err error) {
	llmRequestsTotal.WithLabelValues(model, status(err)).Inc()
	llmRequestDuration.WithLabelValues(model).Observe(d.Seconds())
}

// ObservePayloadStrategy records which parser produced the payload.
func ObservePayloadStrategy(strategy string) {
	llmPayloadStrategy.WithLabelValues(strategy).Inc()
}

// ObserveRender records one render attempt.
func ObserveRender(quality string, d time.Duration, ok bool) {
	s := StatusSuccess
	if !ok {
		s = StatusError
	}
	renderAttemptsTotal.WithLabelValues(quality, s).Inc()
	renderDuration.WithLabelValues(quality).Observe(d.Seconds())
}

// ObserveMedia records one sync/captions/retime run.
func ObserveMedia(operation string, ok bool) {
	s := StatusSuccess
	if !ok {
		s = StatusError
	}
	mediaRunsTotal.WithLabelValues(operation, s).Inc()
}

// ObserveTTS records one narrator call.
func ObserveTTS(endpoint string, err error) {
	ttsRequestsTotal.WithLabelValues(endpoint, status(err)).Inc()
}

// ObserveHTTP records one served request. route is the chi route pattern.
func ObserveHTTP(method, route string, code int, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
