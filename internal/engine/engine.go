// Package engine abstracts the optional LLM backend behind a single Chat
// call so classifiers never depend on a concrete client.
package engine

import "context"

// Chatter sends messages to a model and returns the assistant's response.
// When jsonSchema is non-nil, structured JSON output is requested.
type Chatter interface {
	Chat(ctx context.Context, model string, messages []Message, jsonSchema *Schema) (string, error)
}

// Engine is a Chatter that can also report its backend and reachability.
type Engine interface {
	Chatter

	// Name identifies the backend ("ollama", "openai").
	Name() string

	// IsRunning reports whether the backend is reachable.
	IsRunning(ctx context.Context) bool
}
