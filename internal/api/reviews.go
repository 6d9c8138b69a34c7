package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/feedbackd/internal/aggregate"
	"github.com/kalambet/feedbackd/internal/daterange"
	"github.com/kalambet/feedbackd/internal/storage"
)

type ReviewRequest struct {
	Text string `json:"text"`
}

// ReviewCounts is the per-label summary of the last Days days, today included.
type ReviewCounts struct {
	Start  string                    `json:"start"`
	End    string                    `json:"end"`
	Days   int                       `json:"days"`
	Total  int                       `json:"total"`
	Counts map[storage.Sentiment]int `json:"counts"`
}

func handleCreateReview(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req ReviewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		resp, err := deps.Responder.Respond(r.Context(), req.Text)
		if errors.Is(err, storage.ErrValidation) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save review: %v", err)
			return
		}

		writeJSON(w, http.StatusCreated, resp)
	}
}

func handleListReviews(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)

		reviews, err := deps.Reviews.RecentReviews(r.Context(), limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list reviews: %v", err)
			return
		}
		if reviews == nil {
			reviews = []storage.Review{}
		}

		writeJSON(w, http.StatusOK, reviews)
	}
}

func handleGetReview(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "review id must be an integer")
			return
		}

		review, err := deps.Reviews.GetReview(r.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "review not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get review: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, review)
	}
}

func handleReviewCounts(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days := parseIntParam(r, "days", daterange.DefaultWindow, 366)
		y, m, d := deps.Now().Date()
		end := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		start := end.AddDate(0, 0, -(days - 1))

		counts, err := deps.Reviews.CountsBySentiment(r.Context(), start, end)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to count reviews: %v", err)
			return
		}

		total := 0
		for _, n := range counts {
			total += n
		}
		writeJSON(w, http.StatusOK, ReviewCounts{
			Start:  start.Format(aggregate.DateLayout),
			End:    end.Format(aggregate.DateLayout),
			Days:   days,
			Total:  total,
			Counts: counts,
		})
	}
}
