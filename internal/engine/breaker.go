package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/kalambet/feedbackd/internal/metrics"
)

// ErrCircuitOpen is returned by a breaker-wrapped Engine while it rejects calls.
var ErrCircuitOpen = gobreaker.ErrOpenState

// BreakerConfig tunes WithBreaker.
type BreakerConfig struct {
	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration

	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
}

// DefaultBreakerConfig trips after five straight failures and retries after 30s.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{Timeout: 30 * time.Second, ConsecutiveFailures: 5}
}

type breakerEngine struct {
	Engine
	cb *gobreaker.CircuitBreaker[string]
}

// WithBreaker wraps e so a backend that keeps failing is skipped fast
// instead of costing every request a full timeout. Callers see
// ErrCircuitOpen and take their fallback path.
func WithBreaker(e Engine, cfg BreakerConfig, logger *slog.Logger) Engine {
	if logger == nil {
		logger = slog.Default()
	}
	name := "llm-" + e.Name()
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("llm circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			metrics.BreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	}
	metrics.BreakerState.WithLabelValues(name).Set(0)
	return &breakerEngine{Engine: e, cb: gobreaker.NewCircuitBreaker[string](settings)}
}

func (b *breakerEngine) Chat(ctx context.Context, model string, messages []Message, jsonSchema *Schema) (string, error) {
	return b.cb.Execute(func() (string, error) {
		return b.Engine.Chat(ctx, model, messages, jsonSchema)
	})
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return -1
}
