// Package aggregate folds a range scan of reviews into per-day sentiment
// counts.
package aggregate

import (
	"sort"
	"strconv"
	"time"

	"github.com/kalambet/feedbackd/internal/storage"
)

// DateLayout is the rendering of DailyCounts.Date in tables and chart axes.
const DateLayout = "2006-01-02"

// Columns is the fixed column order of any tabular rendering of the rows.
var Columns = []string{"date", "positive", "neutral", "negative"}

// DailyCounts holds one day's review counts. All three counts are present
// even when a label was not observed that day.
type DailyCounts struct {
	Date     time.Time `json:"date"`
	Positive int       `json:"positive"`
	Neutral  int       `json:"neutral"`
	Negative int       `json:"negative"`
}

// Total is the number of reviews on the row's date.
func (d DailyCounts) Total() int {
	return d.Positive + d.Neutral + d.Negative
}

// Count returns the count for one label.
func (d DailyCounts) Count(s storage.Sentiment) int {
	switch s {
	case storage.Positive:
		return d.Positive
	case storage.Neutral:
		return d.Neutral
	case storage.Negative:
		return d.Negative
	}
	return 0
}

// Record renders the row in Columns order.
func (d DailyCounts) Record() []string {
	return []string{
		d.Date.Format(DateLayout),
		strconv.Itoa(d.Positive),
		strconv.Itoa(d.Neutral),
		strconv.Itoa(d.Negative),
	}
}

func (d *DailyCounts) add(s storage.Sentiment) {
	switch s {
	case storage.Positive:
		d.Positive++
	case storage.Neutral:
		d.Neutral++
	case storage.Negative:
		d.Negative++
	}
}

// Aggregate groups reviews by the UTC calendar date they were created on and
// returns one row per date present, ascending. Days without reviews produce
// no row. Empty input yields an empty, non-nil slice.
func Aggregate(reviews []storage.Review) []DailyCounts {
	byDate := make(map[time.Time]*DailyCounts)
	for _, r := range reviews {
		day := r.Date()
		row, ok := byDate[day]
		if !ok {
			row = &DailyCounts{Date: day}
			byDate[day] = row
		}
		row.add(r.Sentiment)
	}

	rows := make([]DailyCounts, 0, len(byDate))
	for _, row := range byDate {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Date.Before(rows[j].Date)
	})
	return rows
}

// Totals sums each label across rows. Every label is present in the result.
func Totals(rows []DailyCounts) map[storage.Sentiment]int {
	out := make(map[storage.Sentiment]int, len(storage.Sentiments))
	for _, s := range storage.Sentiments {
		out[s] = 0
	}
	for _, row := range rows {
		out[storage.Positive] += row.Positive
		out[storage.Neutral] += row.Neutral
		out[storage.Negative] += row.Negative
	}
	return out
}
