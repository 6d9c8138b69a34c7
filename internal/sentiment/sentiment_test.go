package sentiment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/feedbackd/internal/engine"
	"github.com/kalambet/feedbackd/internal/storage"
)

type mockChatter struct {
	response string
	err      error
	delay    time.Duration
	calls    int
	messages []engine.Message
}

func (m *mockChatter) Chat(ctx context.Context, model string, messages []engine.Message, jsonSchema *engine.Schema) (string, error) {
	m.calls++
	m.messages = messages
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return m.response, m.err
}

type mockStore struct {
	saved []storage.Review
	err   error
}

func (m *mockStore) SaveReview(_ context.Context, r storage.Review) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.saved = append(m.saved, r)
	return int64(len(m.saved)), nil
}

const (
	happy   = "Loved the spicy broth. Staff were super friendly and the food was great!"
	unhappy = "Terrible service, the food was awful and cold. I hated it."
	flat    = "I ordered noodles on Tuesday."
)

func TestRespond_RulesOnly(t *testing.T) {
	tests := []struct {
		text string
		want storage.Sentiment
	}{
		{happy, storage.Positive},
		{unhappy, storage.Negative},
		{flat, storage.Neutral},
	}
	for _, tt := range tests {
		store := &mockStore{}
		r := New(store, nil, "", 0)

		got, err := r.Respond(context.Background(), "  "+tt.text+"  ")
		if err != nil {
			t.Fatalf("Respond(%q): %v", tt.text, err)
		}
		if got.Sentiment != tt.want {
			t.Errorf("Respond(%q).Sentiment = %s, want %s", tt.text, got.Sentiment, tt.want)
		}
		if got.Source != storage.SourceRules {
			t.Errorf("Source = %q, want %q", got.Source, storage.SourceRules)
		}
		if got.Reply != TemplatedReply(tt.want) {
			t.Errorf("Reply = %q, want templated reply", got.Reply)
		}
		if len(store.saved) != 1 || store.saved[0].Text != tt.text || store.saved[0].Sentiment != tt.want {
			t.Errorf("saved = %+v", store.saved)
		}
		if got.ID != 1 {
			t.Errorf("ID = %d, want 1", got.ID)
		}
	}
}

func TestRespond_UsesLLM(t *testing.T) {
	store := &mockStore{}
	mock := &mockChatter{response: `{"sentiment":"negative","reply":"Sorry the broth was cold, we'll fix it."}`}
	r := New(store, mock, "gpt-4o-mini", time.Second)

	got, err := r.Respond(context.Background(), "The broth was cold.")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if got.Sentiment != storage.Negative || got.Source != storage.SourceLLM {
		t.Errorf("got %+v", got)
	}
	if got.Reply != "Sorry the broth was cold, we'll fix it." {
		t.Errorf("Reply = %q", got.Reply)
	}
	if store.saved[0].Source != storage.SourceLLM {
		t.Errorf("saved source = %q", store.saved[0].Source)
	}
	if len(mock.messages) != 2 || !strings.Contains(mock.messages[1].Content, "The broth was cold.") {
		t.Errorf("messages = %+v", mock.messages)
	}
}

func TestRespond_LLMFallback(t *testing.T) {
	tests := []struct {
		name string
		mock *mockChatter
	}{
		{"chat error", &mockChatter{err: fmt.Errorf("connection refused")}},
		{"malformed", &mockChatter{response: "I think it's positive!"}},
		{"bad label", &mockChatter{response: `{"sentiment":"ecstatic","reply":"yay"}`}},
		{"empty reply", &mockChatter{response: `{"sentiment":"positive","reply":""}`}},
		{"timeout", &mockChatter{response: `{"sentiment":"negative","reply":"late"}`, delay: 5 * time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockStore{}
			r := New(store, tt.mock, "m", 50*time.Millisecond)

			got, err := r.Respond(context.Background(), happy)
			if err != nil {
				t.Fatalf("Respond: %v", err)
			}
			if got.Sentiment != storage.Positive || got.Source != storage.SourceRules {
				t.Errorf("got %+v, want rules positive", got)
			}
			if len(store.saved) != 1 {
				t.Errorf("saved %d reviews, want 1", len(store.saved))
			}
		})
	}
}

func TestRespond_EmptyText(t *testing.T) {
	store := &mockStore{}
	mock := &mockChatter{response: `{"sentiment":"positive","reply":"hi"}`}
	r := New(store, mock, "m", time.Second)

	for _, in := range []string{"", "   \n\t"} {
		_, err := r.Respond(context.Background(), in)
		if !errors.Is(err, storage.ErrValidation) {
			t.Errorf("Respond(%q) err = %v, want ErrValidation", in, err)
		}
	}
	if mock.calls != 0 || len(store.saved) != 0 {
		t.Errorf("empty text reached collaborators: calls=%d saved=%d", mock.calls, len(store.saved))
	}
}

func TestRespond_StoreError(t *testing.T) {
	r := New(&mockStore{err: errors.New("disk full")}, nil, "", 0)
	if _, err := r.Respond(context.Background(), happy); err == nil {
		t.Fatal("expected store error to propagate")
	}
}

func TestRespond_PersistsToSQLite(t *testing.T) {
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	r := New(store, nil, "", 0)
	r.now = func() time.Time { return time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC) }

	got, err := r.Respond(context.Background(), unhappy)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}

	saved, err := store.GetReview(context.Background(), got.ID)
	if err != nil {
		t.Fatalf("GetReview: %v", err)
	}
	if saved.Sentiment != storage.Negative || saved.Source != storage.SourceRules || saved.Text != unhappy {
		t.Errorf("saved = %+v", saved)
	}
	if !saved.CreatedAt.Equal(r.now()) {
		t.Errorf("CreatedAt = %v, want %v", saved.CreatedAt, r.now())
	}
}

func TestDecode(t *testing.T) {
	label, reply, err := Decode(` {"sentiment":"Positive","reply":" Thanks! "} `)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if label != storage.Positive || reply != "Thanks!" {
		t.Errorf("Decode = %s, %q", label, reply)
	}
	if _, _, err := Decode(`{"sentiment":"neutral"}`); !errors.Is(err, ErrEmptyReply) {
		t.Errorf("err = %v, want ErrEmptyReply", err)
	}
}

func TestTemplatedReply(t *testing.T) {
	for _, s := range storage.Sentiments {
		if TemplatedReply(s) == "" {
			t.Errorf("TemplatedReply(%s) is empty", s)
		}
	}
	if !strings.Contains(TemplatedReply(storage.Positive), BusinessName) {
		t.Error("positive reply should name the business")
	}
	if TemplatedReply("unknown") != TemplatedReply(storage.Neutral) {
		t.Error("unknown label should get the neutral reply")
	}
}
