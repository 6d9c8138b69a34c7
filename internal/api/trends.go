package api

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/kalambet/feedbackd/internal/aggregate"
	"github.com/kalambet/feedbackd/internal/chartkind"
	"github.com/kalambet/feedbackd/internal/storage"
	"github.com/kalambet/feedbackd/internal/trend"
)

// TrendResponse is the JSON form of a rendered trend.
type TrendResponse struct {
	Start       string                    `json:"start"`
	End         string                    `json:"end"`
	Label       string                    `json:"label"`
	Chart       chartkind.Kind            `json:"chart"`
	Title       string                    `json:"title"`
	Columns     []string                  `json:"columns"`
	Rows        [][]string                `json:"rows"`
	Totals      map[storage.Sentiment]int `json:"totals"`
	ImageBase64 string                    `json:"image_base64,omitempty"`
}

func newTrendResponse(res trend.Result) TrendResponse {
	rows := make([][]string, len(res.Rows))
	for i, row := range res.Rows {
		rows[i] = row.Record()
	}
	return TrendResponse{
		Start:       res.Interval.Start.Format(aggregate.DateLayout),
		End:         res.Interval.End.Format(aggregate.DateLayout),
		Label:       res.Label,
		Chart:       res.Kind,
		Title:       res.Title,
		Columns:     aggregate.Columns,
		Rows:        rows,
		Totals:      aggregate.Totals(res.Rows),
		ImageBase64: base64.StdEncoding.EncodeToString(res.Image),
	}
}

// chartOverride reads the chart query parameter. "" and "auto" leave the
// choice to the selector.
func chartOverride(r *http.Request) (string, bool) {
	v := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("chart")))
	if v == "" || v == "auto" {
		return "", true
	}
	if _, ok := chartkind.ParseKind(v); !ok {
		return "", false
	}
	return v, true
}

func generate(deps Deps, w http.ResponseWriter, r *http.Request) (trend.Result, bool) {
	override, ok := chartOverride(r)
	if !ok {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "chart must be one of auto, bar, line")
		return trend.Result{}, false
	}

	res, err := deps.Trends.GeneratePlot(r.Context(), r.URL.Query().Get("q"), override)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to generate trend: %v", err)
		return trend.Result{}, false
	}
	return res, true
}

func handleTrend(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, ok := generate(deps, w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, newTrendResponse(res))
	}
}

func handleTrendPNG(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, ok := generate(deps, w, r)
		if !ok {
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("X-Chart-Kind", string(res.Kind))
		w.Write(res.Image)
	}
}
