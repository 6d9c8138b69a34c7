package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrValidation is matched by every *ValidationError via errors.Is.
var ErrValidation = errors.New("validation failed")

// Sentiment is the classification outcome for one review.
type Sentiment string

const (
	Positive Sentiment = "positive"
	Neutral  Sentiment = "neutral"
	Negative Sentiment = "negative"
)

// Sentiments lists the labels in their fixed column order.
var Sentiments = []Sentiment{Positive, Neutral, Negative}

// ParseSentiment normalises s and reports whether it names a known label.
func ParseSentiment(s string) (Sentiment, bool) {
	switch v := Sentiment(strings.ToLower(strings.TrimSpace(s))); v {
	case Positive, Neutral, Negative:
		return v, true
	}
	return "", false
}

// Review sources.
const (
	SourceLLM    = "llm"
	SourceRules  = "rules"
	SourceSeed   = "seed"
	SourceManual = "manual"
)

type Review struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	Sentiment Sentiment `json:"sentiment"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// Date returns the UTC calendar day the review was created on.
func (r Review) Date() time.Time {
	t := r.CreatedAt.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// newReview carries the validated insert fields.
type newReview struct {
	Text      string `validate:"required"`
	Sentiment string `validate:"required,oneof=positive neutral negative"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidationError reports which review fields were rejected on insert.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range []string{"Text", "Sentiment"} {
		if msg, ok := e.Fields[f]; ok {
			parts = append(parts, fmt.Sprintf("%s %s", strings.ToLower(f), msg))
		}
	}
	return "invalid review: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func validateReview(text string, sentiment Sentiment) error {
	err := validate.Struct(newReview{Text: strings.TrimSpace(text), Sentiment: string(sentiment)})
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	ve := &ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			ve.Fields[fe.Field()] = "is required"
		case "oneof":
			ve.Fields[fe.Field()] = fmt.Sprintf("must be one of: %s", fe.Param())
		default:
			ve.Fields[fe.Field()] = "is invalid"
		}
	}
	return ve
}
