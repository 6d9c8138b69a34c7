// Package metrics holds the Prometheus collectors shared across feedbackd.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LLMFallbacks counts decisions that fell back to the rule-based path,
	// labelled by the component that fell back ("chartkind", "sentiment").
	LLMFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedbackd_llm_fallbacks_total",
			Help: "Total number of LLM calls that fell back to the deterministic path",
		},
		[]string{"component"},
	)

	// BreakerState is 0 closed, 1 half-open, 2 open.
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "feedbackd_llm_breaker_state",
			Help: "Current state of the LLM circuit breaker (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	ReviewsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedbackd_reviews_submitted_total",
			Help: "Total number of reviews persisted, by sentiment and source",
		},
		[]string{"sentiment", "source"},
	)

	ChartsRendered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedbackd_charts_rendered_total",
			Help: "Total number of trend charts rendered, by kind",
		},
		[]string{"kind"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedbackd_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feedbackd_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latency by chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		route := "unknown"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := strconv.Itoa(sw.status)
		httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}
