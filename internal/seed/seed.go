// Package seed generates deterministic synthetic reviews for demos.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/kalambet/feedbackd/internal/storage"
)

// Defaults match the demo dataset: 30 days, seed 7.
const (
	DefaultDays = 30
	DefaultSeed = 7

	minPerDay = 2
	maxPerDay = 8
)

var samples = map[storage.Sentiment][]string{
	storage.Positive: {
		"The ramen was incredible and the service was fast!",
		"Loved the spicy broth. Staff were super friendly.",
		"Great ambiance and delicious noodles. Will be back!",
		"Everything was perfect, especially the dumplings.",
	},
	storage.Neutral: {
		"Food was okay, nothing special.",
		"Average experience. The wait time was reasonable.",
		"It was fine. Portions could be bigger.",
		"Not bad, not great.",
	},
	storage.Negative: {
		"The noodles were overcooked and bland.",
		"Service was slow and my order was wrong.",
		"Too noisy and the broth was cold.",
		"Disappointed with the quality this time.",
	},
}

// Store is the write side used by Load.
type Store interface {
	SaveReview(ctx context.Context, r storage.Review) (int64, error)
}

// Generate returns reviews for the days days ending on today (inclusive),
// 2 to 8 per day, labelled positive/neutral/negative with weights
// 50/30/20 and timestamped within the first 12 hours of their day. The same
// seed and today always yield the same reviews.
func Generate(days int, seed int64, today time.Time) []storage.Review {
	if days <= 0 {
		return []storage.Review{}
	}
	rng := rand.New(rand.NewSource(seed))
	y, m, d := today.UTC().Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(days - 1))

	var out []storage.Review
	for offset := 0; offset < days; offset++ {
		day := start.AddDate(0, 0, offset)
		n := minPerDay + rng.Intn(maxPerDay-minPerDay+1)
		for i := 0; i < n; i++ {
			label := pickLabel(rng)
			texts := samples[label]
			out = append(out, storage.Review{
				Text:      texts[rng.Intn(len(texts))],
				Sentiment: label,
				Source:    storage.SourceSeed,
				CreatedAt: day.Add(time.Duration(rng.Intn(12*60+1)) * time.Minute),
			})
		}
	}
	return out
}

func pickLabel(rng *rand.Rand) storage.Sentiment {
	switch r := rng.Float64(); {
	case r < 0.5:
		return storage.Positive
	case r < 0.8:
		return storage.Neutral
	default:
		return storage.Negative
	}
}

// Load generates reviews and saves them, returning how many were written.
func Load(ctx context.Context, s Store, days int, seed int64, today time.Time) (int, error) {
	reviews := Generate(days, seed, today)
	for i, r := range reviews {
		if _, err := s.SaveReview(ctx, r); err != nil {
			return i, fmt.Errorf("saving seed review %d: %w", i, err)
		}
	}
	return len(reviews), nil
}
