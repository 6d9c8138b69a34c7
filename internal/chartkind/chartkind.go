// Package chartkind decides whether a trend is drawn as bars or lines.
//
// An explicit override always wins. Otherwise a Chooser is consulted: the
// Assisted chooser asks an LLM and falls back to the Heuristic one on any
// failure, so selection never errors.
package chartkind

import (
	"context"
	"strings"
)

// Kind is the visual encoding of a trend chart.
type Kind string

const (
	Bar  Kind = "bar"
	Line Kind = "line"
)

// DefaultTitle is used whenever the title was not chosen by an LLM.
const DefaultTitle = "Sentiment trend"

// ParseKind normalises s and reports whether it names a valid kind.
func ParseKind(s string) (Kind, bool) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case Bar, Line:
		return k, true
	}
	return "", false
}

// Choice is the outcome of selection.
type Choice struct {
	Kind  Kind   `json:"chart"`
	Title string `json:"title"`
}

// Chooser picks a chart for a free-text prompt. Implementations must always
// return a valid Choice.
type Chooser interface {
	Choose(ctx context.Context, prompt string) Choice
}

// Select returns the override with DefaultTitle when it names a valid kind,
// without consulting chooser. Otherwise it delegates to chooser, or to the
// Heuristic when chooser is nil.
func Select(ctx context.Context, chooser Chooser, prompt, override string) Choice {
	if k, ok := ParseKind(override); ok {
		return Choice{Kind: k, Title: DefaultTitle}
	}
	if chooser == nil {
		chooser = Heuristic{}
	}
	return chooser.Choose(ctx, prompt)
}

// Heuristic picks bar when the prompt mentions "bar", line otherwise.
type Heuristic struct{}

func (Heuristic) Choose(_ context.Context, prompt string) Choice {
	if strings.Contains(strings.ToLower(prompt), "bar") {
		return Choice{Kind: Bar, Title: DefaultTitle}
	}
	return Choice{Kind: Line, Title: DefaultTitle}
}
