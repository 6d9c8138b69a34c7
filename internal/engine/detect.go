package engine

import (
	"fmt"
	"strings"

	"github.com/kalambet/feedbackd/internal/openai"
)

// Providers accepted by Detect.
const (
	ProviderNone   = "none"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// DefaultOllamaModel is used when llm.model is empty and the provider is Ollama.
const DefaultOllamaModel = "phi3.5"

// DetectConfig holds parameters for backend selection.
type DetectConfig struct {
	Provider      string
	OllamaBaseURL string
	OpenAIBaseURL string
	OpenAIKey     string
}

// Detect builds the configured backend. It returns a nil Engine and nil error
// when the provider is "none" (or empty): callers then use the rule-based
// paths only.
func Detect(cfg DetectConfig) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderNone:
		return nil, nil
	case ProviderOllama:
		return NewOllamaEngine(cfg.OllamaBaseURL), nil
	case ProviderOpenAI:
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("llm.provider is openai but openai.api_key is not set")
		}
		return NewOpenAIEngine(cfg.OpenAIKey, cfg.OpenAIBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown llm.provider %q (want none, ollama or openai)", cfg.Provider)
	}
}

// DefaultModel returns the model used for provider when none is configured.
func DefaultModel(provider string) string {
	switch strings.ToLower(provider) {
	case ProviderOpenAI:
		return openai.DefaultModel
	case ProviderOllama:
		return DefaultOllamaModel
	}
	return ""
}
