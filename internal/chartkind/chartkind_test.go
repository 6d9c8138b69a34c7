package chartkind

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kalambet/feedbackd/internal/engine"
)

// mockChatter implements engine.Chatter and records every call.
type mockChatter struct {
	mu       sync.Mutex
	response string
	err      error
	delay    time.Duration
	calls    int
	messages []engine.Message
	schema   *engine.Schema
}

func (m *mockChatter) Chat(ctx context.Context, model string, messages []engine.Message, jsonSchema *engine.Schema) (string, error) {
	m.mu.Lock()
	m.calls++
	m.messages = messages
	m.schema = jsonSchema
	m.mu.Unlock()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return m.response, m.err
}

func TestSelect_OverrideSkipsChooser(t *testing.T) {
	prompts := []string{
		"",
		"show me a line chart",
		"Show me a bar chart please",
		"last 7 days",
		strings.Repeat("x", 1000),
	}
	for _, override := range []string{"bar", "BAR", " bar "} {
		for _, p := range prompts {
			mock := &mockChatter{response: `{"chart":"line","title":"LLM title"}`}
			got := Select(context.Background(), New(mock, "m", time.Second), p, override)

			want := Choice{Kind: Bar, Title: DefaultTitle}
			if got != want {
				t.Errorf("Select(%q, %q) = %+v, want %+v", p, override, got, want)
			}
			if mock.calls != 0 {
				t.Errorf("Select(%q, %q) invoked the chatter %d times", p, override, mock.calls)
			}
		}
	}
}

func TestSelect_LineOverride(t *testing.T) {
	mock := &mockChatter{response: `{"chart":"bar","title":"x"}`}
	got := Select(context.Background(), New(mock, "m", time.Second), "bar chart", "line")
	if got != (Choice{Kind: Line, Title: DefaultTitle}) {
		t.Errorf("got %+v", got)
	}
	if mock.calls != 0 {
		t.Errorf("chatter called %d times", mock.calls)
	}
}

func TestSelect_InvalidOverrideDelegates(t *testing.T) {
	for _, override := range []string{"", "auto", "pie"} {
		mock := &mockChatter{response: `{"chart":"line","title":"Weekly mood"}`}
		got := Select(context.Background(), New(mock, "m", time.Second), "how are we doing", override)
		if got != (Choice{Kind: Line, Title: "Weekly mood"}) {
			t.Errorf("override %q: got %+v", override, got)
		}
		if mock.calls != 1 {
			t.Errorf("override %q: chatter calls = %d, want 1", override, mock.calls)
		}
	}
}

func TestSelect_NoCollaborator(t *testing.T) {
	got := Select(context.Background(), nil, "Show me a bar chart please", "")
	if got != (Choice{Kind: Bar, Title: DefaultTitle}) {
		t.Errorf("got %+v, want bar/%s", got, DefaultTitle)
	}

	got = Select(context.Background(), New(nil, "", 0), "Show me a bar chart please", "")
	if got != (Choice{Kind: Bar, Title: DefaultTitle}) {
		t.Errorf("New(nil) chooser: got %+v", got)
	}
}

func TestHeuristic(t *testing.T) {
	tests := []struct {
		prompt string
		want   Kind
	}{
		{"Show me a bar chart please", Bar},
		{"BARS for last week", Bar},
		{"sidebar", Bar},
		{"trend over the last 30 days", Line},
		{"", Line},
	}
	for _, tt := range tests {
		got := Heuristic{}.Choose(context.Background(), tt.prompt)
		if got.Kind != tt.want || got.Title != DefaultTitle {
			t.Errorf("Heuristic(%q) = %+v, want %s", tt.prompt, got, tt.want)
		}
	}
}

func TestAssisted_UsesDecision(t *testing.T) {
	mock := &mockChatter{response: `{"chart":"bar","title":"Daily feedback mix"}`}
	got := NewAssisted(mock, "phi3.5", time.Second).Choose(context.Background(), "compare days in June")

	if got != (Choice{Kind: Bar, Title: "Daily feedback mix"}) {
		t.Errorf("got %+v", got)
	}
	if len(mock.messages) != 2 || mock.messages[1].Content != "compare days in June" {
		t.Errorf("messages = %+v", mock.messages)
	}
	if mock.schema == nil || len(mock.schema.Properties["chart"].Enum) != 2 {
		t.Errorf("schema = %+v, want chart enum", mock.schema)
	}
}

func TestAssisted_FallsBack(t *testing.T) {
	tests := []struct {
		name string
		mock *mockChatter
	}{
		{"transport error", &mockChatter{err: fmt.Errorf("connection refused")}},
		{"breaker open", &mockChatter{err: engine.ErrCircuitOpen}},
		{"malformed json", &mockChatter{response: `not valid json {{{`}},
		{"unknown kind", &mockChatter{response: `{"chart":"pie","title":"x"}`}},
		{"empty title", &mockChatter{response: `{"chart":"line","title":"  "}`}},
		{"missing fields", &mockChatter{response: `{}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAssisted(tt.mock, "m", time.Second)
			got := a.Choose(context.Background(), "Show me a bar chart please")
			if got != (Choice{Kind: Bar, Title: DefaultTitle}) {
				t.Errorf("got %+v, want heuristic bar", got)
			}
		})
	}
}

func TestAssisted_Timeout(t *testing.T) {
	mock := &mockChatter{response: `{"chart":"bar","title":"late"}`, delay: 5 * time.Second}
	a := NewAssisted(mock, "m", 50*time.Millisecond)

	start := time.Now()
	got := a.Choose(context.Background(), "weekly trend")
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Choose took %v, want it bounded by the timeout", elapsed)
	}
	if got != (Choice{Kind: Line, Title: DefaultTitle}) {
		t.Errorf("got %+v, want heuristic line", got)
	}
}

func TestDecode(t *testing.T) {
	got, err := Decode(" {\"chart\":\"LINE\",\"title\":\" Mood \"} ")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != (Choice{Kind: Line, Title: "Mood"}) {
		t.Errorf("got %+v", got)
	}

	if _, err := Decode(`{"chart":"area","title":"x"}`); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("err = %v, want ErrUnknownKind", err)
	}
	if _, err := Decode(`{"chart":"bar"}`); !errors.Is(err, ErrEmptyTitle) {
		t.Errorf("err = %v, want ErrEmptyTitle", err)
	}
	if _, err := Decode(``); err == nil {
		t.Error("expected error for empty response")
	}
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{"bar": Bar, " Line ": Line} {
		if got, ok := ParseKind(in); !ok || got != want {
			t.Errorf("ParseKind(%q) = %q, %v", in, got, ok)
		}
	}
	for _, in := range []string{"", "auto", "pie"} {
		if _, ok := ParseKind(in); ok {
			t.Errorf("ParseKind(%q) ok, want false", in)
		}
	}
}
