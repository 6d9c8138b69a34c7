package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kalambet/feedbackd/internal/metrics"
	"github.com/kalambet/feedbackd/internal/sentiment"
	"github.com/kalambet/feedbackd/internal/storage"
	"github.com/kalambet/feedbackd/internal/trend"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Responder classifies, answers and stores one piece of feedback.
type Responder interface {
	Respond(ctx context.Context, text string) (sentiment.Response, error)
}

// ReviewReader is the read side of the review store.
type ReviewReader interface {
	GetReview(ctx context.Context, id int64) (storage.Review, error)
	RecentReviews(ctx context.Context, limit int) ([]storage.Review, error)
	CountsBySentiment(ctx context.Context, start, end time.Time) (map[storage.Sentiment]int, error)
}

// TrendGenerator renders a sentiment trend for a free-text prompt.
type TrendGenerator interface {
	GeneratePlot(ctx context.Context, prompt, override string) (trend.Result, error)
}

type Deps struct {
	Responder Responder
	Reviews   ReviewReader
	Trends    TrendGenerator
	// Token enables bearer auth on everything except /health and /metrics.
	Token string
	// Now is the source of "today" for /reviews/counts. Defaults to UTC wall time.
	Now func() time.Time
}

func NewHandler(deps Deps) http.Handler {
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Elapsed)
	r.Use(metrics.Middleware)

	r.Get("/health", handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}
		r.Post("/reviews", handleCreateReview(deps))
		r.Get("/reviews", handleListReviews(deps))
		r.Get("/reviews/counts", handleReviewCounts(deps))
		r.Get("/reviews/{id}", handleGetReview(deps))
		r.Get("/trends", handleTrend(deps))
		r.Get("/trends.png", handleTrendPNG(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
