package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kalambet/feedbackd/internal/openai"
)

// OpenAIEngine adapts the internal/openai.Client to the Engine interface.
type OpenAIEngine struct {
	client *openai.Client
}

// NewOpenAIEngine creates an OpenAIEngine. An empty baseURL targets the
// public OpenAI API.
func NewOpenAIEngine(apiKey, baseURL string) *OpenAIEngine {
	return &OpenAIEngine{client: openai.NewClientWithBaseURL(apiKey, baseURL)}
}

func (e *OpenAIEngine) Name() string { return "openai" }

func (e *OpenAIEngine) Chat(ctx context.Context, model string, messages []Message, jsonSchema *Schema) (string, error) {
	req := openai.ChatRequest{
		Model:    model,
		Messages: make([]openai.Message, len(messages)),
	}
	for i, m := range messages {
		req.Messages[i] = openai.Message{Role: m.Role, Content: m.Content}
	}

	if jsonSchema != nil {
		raw, err := json.Marshal(jsonSchema)
		if err != nil {
			return "", fmt.Errorf("marshaling schema: %w", err)
		}
		req.ResponseFormat = &openai.ResponseFormat{
			Type:       "json_schema",
			JSONSchema: &openai.JSONSchema{Name: "decision", Schema: raw},
		}
	}

	return e.client.Complete(ctx, req)
}

func (e *OpenAIEngine) IsRunning(ctx context.Context) bool {
	_, err := e.client.ListModels(ctx)
	return err == nil
}
