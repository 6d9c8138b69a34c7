// Package sentiment classifies a piece of customer feedback, drafts a reply
// and records the review.
package sentiment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jonreiter/govader"

	"github.com/kalambet/feedbackd/internal/engine"
	"github.com/kalambet/feedbackd/internal/metrics"
	"github.com/kalambet/feedbackd/internal/storage"
)

// DefaultTimeout bounds one LLM round trip.
const DefaultTimeout = 8 * time.Second

// Compound-score thresholds for the rule-based classifier.
const (
	positiveThreshold = 0.2
	negativeThreshold = -0.2
)

// ErrEmptyReply is returned by Decode when the model gave no reply text.
var ErrEmptyReply = errors.New("empty reply")

// Store is the subset of storage.Store the responder writes to.
type Store interface {
	SaveReview(ctx context.Context, r storage.Review) (int64, error)
}

// Response is the outcome of handling one piece of feedback.
type Response struct {
	ID        int64             `json:"id"`
	Sentiment storage.Sentiment `json:"sentiment"`
	Reply     string            `json:"reply"`
	Source    string            `json:"source"`
	CreatedAt time.Time         `json:"created_at"`
}

// Responder classifies feedback with an optional LLM and a VADER fallback.
type Responder struct {
	store    Store
	client   engine.Chatter
	model    string
	timeout  time.Duration
	analyzer *govader.SentimentIntensityAnalyzer
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Responder. A nil client means rules only; a zero timeout
// means DefaultTimeout.
func New(store Store, client engine.Chatter, model string, timeout time.Duration) *Responder {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Responder{
		store:    store,
		client:   client,
		model:    model,
		timeout:  timeout,
		analyzer: govader.NewSentimentIntensityAnalyzer(),
		logger:   slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Respond classifies text, drafts a reply and persists the review. Empty
// text fails with storage.ErrValidation; LLM problems never surface.
func (r *Responder) Respond(ctx context.Context, text string) (Response, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Response{}, &storage.ValidationError{Fields: map[string]string{"Text": "is required"}}
	}

	label, reply, source := r.Classify(ctx, text)
	created := r.now()

	id, err := r.store.SaveReview(ctx, storage.Review{
		Text:      text,
		Sentiment: label,
		Source:    source,
		CreatedAt: created,
	})
	if err != nil {
		return Response{}, fmt.Errorf("saving review: %w", err)
	}
	metrics.ReviewsSubmitted.WithLabelValues(string(label), source).Inc()

	return Response{ID: id, Sentiment: label, Reply: reply, Source: source, CreatedAt: created}, nil
}

// Classify returns the sentiment, a reply and which path produced them
// (storage.SourceLLM or storage.SourceRules). It does not persist anything.
func (r *Responder) Classify(ctx context.Context, text string) (storage.Sentiment, string, string) {
	if r.client != nil {
		label, reply, err := r.ask(ctx, text)
		if err == nil {
			return label, reply, storage.SourceLLM
		}
		r.logger.Warn("sentiment llm failed, using rules", "error", err)
		metrics.LLMFallbacks.WithLabelValues("sentiment").Inc()
	}
	label := r.RuleSentiment(text)
	return label, TemplatedReply(label), storage.SourceRules
}

func (r *Responder) ask(ctx context.Context, text string) (storage.Sentiment, string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	raw, err := r.client.Chat(ctx, r.model, BuildPrompt(text), responseSchema())
	if err != nil {
		return "", "", err
	}
	return Decode(raw)
}

// RuleSentiment labels text by its VADER compound score.
func (r *Responder) RuleSentiment(text string) storage.Sentiment {
	score := r.analyzer.PolarityScores(text).Compound
	switch {
	case score >= positiveThreshold:
		return storage.Positive
	case score <= negativeThreshold:
		return storage.Negative
	}
	return storage.Neutral
}

// Decode parses the model's JSON answer.
func Decode(raw string) (storage.Sentiment, string, error) {
	var out struct {
		Sentiment string `json:"sentiment"`
		Reply     string `json:"reply"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &out); err != nil {
		return "", "", fmt.Errorf("decoding sentiment response: %w", err)
	}
	label, ok := storage.ParseSentiment(out.Sentiment)
	if !ok {
		return "", "", fmt.Errorf("unknown sentiment %q", out.Sentiment)
	}
	reply := strings.TrimSpace(out.Reply)
	if reply == "" {
		return "", "", ErrEmptyReply
	}
	return label, reply, nil
}

func responseSchema() *engine.Schema {
	return &engine.Schema{
		Type: "object",
		Properties: map[string]engine.SchemaProperty{
			"sentiment": {
				Type:        "string",
				Description: "The sentiment of the review",
				Enum:        []string{string(storage.Positive), string(storage.Neutral), string(storage.Negative)},
			},
			"reply": {Type: "string", Description: "Short, polite, context-aware reply to the customer"},
		},
		Required: []string{"sentiment", "reply"},
	}
}
