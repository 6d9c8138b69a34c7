package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	LLM     LLMConfig
	Ollama  OllamaConfig
	OpenAI  OpenAIConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port     int
	APIToken string
}

type StorageConfig struct {
	DataDir string
}

type LLMConfig struct {
	// Provider is one of none, ollama, openai.
	Provider string
	Model    string
	Timeout  time.Duration
}

type OllamaConfig struct {
	BaseURL string
}

type OpenAIConfig struct {
	BaseURL string
	APIKey  string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 7860,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		LLM: LLMConfig{
			Provider: "none",
			Timeout:  8 * time.Second,
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
		},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file backend at
// $XDG_CONFIG_HOME/feedbackd/config.json, the secrets file at
// $XDG_DATA_HOME/feedbackd/secrets.json and environment variables.
//
// Environment variables (FEEDBACKD_*, plus the OPENAI_API_KEY, OPENAI_MODEL
// and USE_LLM aliases) override file values.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), fileSecrets{path: secretsFilePath()})
}

// secretStore abstracts secret lookup for testing.
type secretStore interface {
	Get(key string) (string, error)
}

func loadWith(b ConfigBackend, ss secretStore) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applySecrets(&cfg, ss)
	applyEnvOverrides(&cfg)
	applyUseLLM(&cfg)

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyUseLLM honours USE_LLM=0/false/no as a hard switch to rule-only mode.
func applyUseLLM(cfg *Config) {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv("USE_LLM")))
	if raw == "" {
		return
	}
	if on, err := strconv.ParseBool(raw); (err == nil && !on) || raw == "no" {
		cfg.LLM.Provider = "none"
	}
}

func validate(cfg Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", cfg.Server.Port)
	}
	switch cfg.LLM.Provider {
	case "none", "ollama":
	case "openai":
		if cfg.OpenAI.APIKey == "" {
			return fmt.Errorf("missing required config: OpenAI API key. " +
				"Set it via environment variable FEEDBACKD_OPENAI_API_KEY (or OPENAI_API_KEY), " +
				"or run: feedbackd config set openai.api_key <key>")
		}
	default:
		return fmt.Errorf("invalid llm.provider %q (want none, ollama or openai)", cfg.LLM.Provider)
	}
	if cfg.LLM.Timeout <= 0 {
		return fmt.Errorf("invalid llm.timeout %s", cfg.LLM.Timeout)
	}
	return nil
}
