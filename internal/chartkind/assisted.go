package chartkind

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kalambet/feedbackd/internal/engine"
	"github.com/kalambet/feedbackd/internal/metrics"
)

// DefaultTimeout bounds one LLM round trip.
const DefaultTimeout = 8 * time.Second

var (
	ErrUnknownKind = errors.New("unknown chart kind")
	ErrEmptyTitle  = errors.New("empty chart title")
)

// Decision is the structured answer expected from the LLM.
type Decision struct {
	Chart string `json:"chart"`
	Title string `json:"title"`
}

// Decode parses an LLM response into a Choice. Any malformed, incomplete or
// out-of-range answer is an error.
func Decode(raw string) (Choice, error) {
	var d Decision
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &d); err != nil {
		return Choice{}, fmt.Errorf("decoding chart decision: %w", err)
	}
	k, ok := ParseKind(d.Chart)
	if !ok {
		return Choice{}, fmt.Errorf("%w: %q", ErrUnknownKind, d.Chart)
	}
	title := strings.TrimSpace(d.Title)
	if title == "" {
		return Choice{}, ErrEmptyTitle
	}
	return Choice{Kind: k, Title: title}, nil
}

// Assisted asks an LLM for the chart kind and title.
type Assisted struct {
	client   engine.Chatter
	model    string
	timeout  time.Duration
	fallback Heuristic
	logger   *slog.Logger
}

// NewAssisted creates an Assisted chooser. A zero timeout means DefaultTimeout.
func NewAssisted(client engine.Chatter, model string, timeout time.Duration) *Assisted {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Assisted{client: client, model: model, timeout: timeout, logger: slog.Default()}
}

// New returns an Assisted chooser when client is non-nil and the Heuristic
// otherwise.
func New(client engine.Chatter, model string, timeout time.Duration) Chooser {
	if client == nil {
		return Heuristic{}
	}
	return NewAssisted(client, model, timeout)
}

// Choose never fails: transport errors, timeouts and undecodable answers all
// route to the heuristic.
func (a *Assisted) Choose(ctx context.Context, prompt string) Choice {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, err := a.client.Chat(ctx, a.model, BuildPrompt(prompt), decisionSchema())
	if err != nil {
		a.logger.Warn("chart kind chat failed, using heuristic", "error", err)
		return a.fallBack(ctx, prompt)
	}

	choice, err := Decode(raw)
	if err != nil {
		a.logger.Warn("chart kind decision rejected, using heuristic", "error", err, "response", raw)
		return a.fallBack(ctx, prompt)
	}
	return choice
}

func (a *Assisted) fallBack(ctx context.Context, prompt string) Choice {
	metrics.LLMFallbacks.WithLabelValues("chartkind").Inc()
	return a.fallback.Choose(ctx, prompt)
}

func decisionSchema() *engine.Schema {
	return &engine.Schema{
		Type: "object",
		Properties: map[string]engine.SchemaProperty{
			"chart": {Type: "string", Description: "Chart type", Enum: []string{string(Bar), string(Line)}},
			"title": {Type: "string", Description: "Short, human-friendly chart title"},
		},
		Required: []string{"chart", "title"},
	}
}
