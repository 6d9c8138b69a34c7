package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// mockSecrets is a test double for the secret store.
type mockSecrets map[string]string

func (m mockSecrets) Get(key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}

func (m mockSecrets) Set(key, value string) error {
	m[key] = value
	return nil
}

func writeTempConfig(t *testing.T, content string) *fileBackend {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return newFileBackend(path)
}

// clearEnv blanks every variable the loader reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
		if s.alias != "" {
			t.Setenv(s.alias, "")
		}
	}
	t.Setenv("USE_LLM", "")
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := loadWith(writeTempConfig(t, `{}`), mockSecrets{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 7860 {
		t.Errorf("Server.Port = %d, want 7860", cfg.Server.Port)
	}
	if cfg.LLM.Provider != "none" {
		t.Errorf("LLM.Provider = %q, want none", cfg.LLM.Provider)
	}
	if cfg.LLM.Timeout != 8*time.Second {
		t.Errorf("LLM.Timeout = %s, want 8s", cfg.LLM.Timeout)
	}
	if cfg.Ollama.BaseURL != "http://localhost:11434" {
		t.Errorf("Ollama.BaseURL = %q", cfg.Ollama.BaseURL)
	}
	if cfg.OpenAI.BaseURL != "https://api.openai.com/v1" {
		t.Errorf("OpenAI.BaseURL = %q", cfg.OpenAI.BaseURL)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
	if !strings.HasSuffix(cfg.Storage.DataDir, "feedbackd") && cfg.Storage.DataDir != "feedbackd-data" {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
}

func TestFileParsing(t *testing.T) {
	clearEnv(t)

	b := writeTempConfig(t, `{
  "server.port": 9000,
  "storage.data_dir": "/tmp/feedbackd-test",
  "llm.provider": "ollama",
  "llm.model": "llama3.2",
  "llm.timeout": "3s",
  "ollama.base_url": "http://gpu-box:11434",
  "log.level": "debug"
}`)
	cfg, err := loadWith(b, mockSecrets{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d", cfg.Server.Port)
	}
	if cfg.Storage.DataDir != "/tmp/feedbackd-test" {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
	if cfg.LLM.Provider != "ollama" || cfg.LLM.Model != "llama3.2" {
		t.Errorf("LLM = %+v", cfg.LLM)
	}
	if cfg.LLM.Timeout != 3*time.Second {
		t.Errorf("LLM.Timeout = %s", cfg.LLM.Timeout)
	}
	if cfg.Ollama.BaseURL != "http://gpu-box:11434" {
		t.Errorf("Ollama.BaseURL = %q", cfg.Ollama.BaseURL)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}

func TestFileSecretsAreIgnored(t *testing.T) {
	clearEnv(t)

	// Secrets never come from config.json.
	b := writeTempConfig(t, `{"openai.api_key": "leaked", "server.api_token": "leaked"}`)
	cfg, err := loadWith(b, mockSecrets{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OpenAI.APIKey != "" || cfg.Server.APIToken != "" {
		t.Errorf("secrets read from config file: %+v %+v", cfg.OpenAI, cfg.Server)
	}
}

func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("FEEDBACKD_SERVER_PORT", "8081")
	t.Setenv("FEEDBACKD_LLM_TIMEOUT", "250ms")
	t.Setenv("FEEDBACKD_API_TOKEN", "env-token")

	cfg, err := loadWith(writeTempConfig(t, `{"server.port": 9000}`), mockSecrets{"server.api_token": "file-token"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8081 {
		t.Errorf("Server.Port = %d, want 8081", cfg.Server.Port)
	}
	if cfg.LLM.Timeout != 250*time.Millisecond {
		t.Errorf("LLM.Timeout = %s", cfg.LLM.Timeout)
	}
	if cfg.Server.APIToken != "env-token" {
		t.Errorf("APIToken = %q, want env-token", cfg.Server.APIToken)
	}
}

func TestEnvOverride_BadValuesKeepDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("FEEDBACKD_SERVER_PORT", "not-a-port")
	t.Setenv("FEEDBACKD_LLM_TIMEOUT", "soon")

	cfg, err := loadWith(writeTempConfig(t, `{}`), mockSecrets{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 7860 || cfg.LLM.Timeout != 8*time.Second {
		t.Errorf("cfg = %+v %+v, want defaults", cfg.Server, cfg.LLM)
	}
}

func TestOpenAIAliases(t *testing.T) {
	clearEnv(t)
	t.Setenv("FEEDBACKD_LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-alias")
	t.Setenv("OPENAI_MODEL", "gpt-4o")

	cfg, err := loadWith(writeTempConfig(t, `{}`), mockSecrets{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OpenAI.APIKey != "sk-alias" || cfg.LLM.Model != "gpt-4o" {
		t.Errorf("cfg = %+v %+v", cfg.OpenAI, cfg.LLM)
	}

	// The FEEDBACKD_ variable wins over the alias.
	t.Setenv("FEEDBACKD_OPENAI_API_KEY", "sk-primary")
	cfg, err = loadWith(writeTempConfig(t, `{}`), mockSecrets{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OpenAI.APIKey != "sk-primary" {
		t.Errorf("APIKey = %q, want sk-primary", cfg.OpenAI.APIKey)
	}
}

func TestSecretsFallback(t *testing.T) {
	clearEnv(t)

	b := writeTempConfig(t, `{"llm.provider": "openai"}`)
	cfg, err := loadWith(b, mockSecrets{"openai.api_key": "stored-secret"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OpenAI.APIKey != "stored-secret" {
		t.Errorf("APIKey = %q, want stored-secret", cfg.OpenAI.APIKey)
	}
}

func TestMissingOpenAIKey(t *testing.T) {
	clearEnv(t)

	_, err := loadWith(writeTempConfig(t, `{"llm.provider": "openai"}`), mockSecrets{})
	if err == nil {
		t.Fatal("expected error for missing API key, got nil")
	}
	if !strings.Contains(err.Error(), "missing required config") {
		t.Errorf("error = %q", err)
	}
}

func TestInvalidProvider(t *testing.T) {
	clearEnv(t)

	_, err := loadWith(writeTempConfig(t, `{"llm.provider": "mlx"}`), mockSecrets{})
	if err == nil || !strings.Contains(err.Error(), "llm.provider") {
		t.Fatalf("err = %v, want invalid provider error", err)
	}
}

func TestUseLLMDisables(t *testing.T) {
	for _, v := range []string{"0", "false", "no", "FALSE"} {
		t.Run(v, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("USE_LLM", v)

			cfg, err := loadWith(writeTempConfig(t, `{"llm.provider": "ollama"}`), mockSecrets{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.LLM.Provider != "none" {
				t.Errorf("Provider = %q, want none", cfg.LLM.Provider)
			}
		})
	}

	clearEnv(t)
	t.Setenv("USE_LLM", "true")
	cfg, err := loadWith(writeTempConfig(t, `{"llm.provider": "ollama"}`), mockSecrets{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLM.Provider != "ollama" {
		t.Errorf("Provider = %q, want ollama", cfg.LLM.Provider)
	}
}

func TestSetKey(t *testing.T) {
	b := writeTempConfig(t, `{}`)
	secrets := mockSecrets{}

	if err := setKeyWith(b, secrets, "server.port", "9001"); err != nil {
		t.Fatalf("set port: %v", err)
	}
	if err := setKeyWith(b, secrets, "llm.timeout", "2s"); err != nil {
		t.Fatalf("set timeout: %v", err)
	}
	if err := setKeyWith(b, secrets, "openai.api_key", "sk-secret"); err != nil {
		t.Fatalf("set secret: %v", err)
	}

	reloaded := newFileBackend(b.path)
	if v, ok, _ := reloaded.GetInt("server.port"); !ok || v != 9001 {
		t.Errorf("server.port = %d, %v", v, ok)
	}
	if _, ok, _ := reloaded.GetString("openai.api_key"); ok {
		t.Error("secret written to config file")
	}
	if secrets["openai.api_key"] != "sk-secret" {
		t.Errorf("secret store = %v", secrets)
	}

	if err := setKeyWith(b, secrets, "server.port", "abc"); err == nil {
		t.Error("expected error for non-integer port")
	}
	if err := setKeyWith(b, secrets, "llm.timeout", "soon"); err == nil {
		t.Error("expected error for bad duration")
	}
	if err := setKeyWith(b, secrets, "nope", "x"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestFileSecrets_RoundTrip(t *testing.T) {
	fs := fileSecrets{path: filepath.Join(t.TempDir(), "nested", "secrets.json")}

	if _, err := fs.Get("openai.api_key"); err == nil {
		t.Fatal("expected error before the file exists")
	}
	if err := fs.Set("openai.api_key", "sk-1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := fs.Get("openai.api_key")
	if err != nil || got != "sk-1" {
		t.Fatalf("Get = %q, %v", got, err)
	}

	info, err := os.Stat(fs.path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("secrets file mode = %o, want 600", perm)
	}
}

func TestShowAll_MasksSecrets(t *testing.T) {
	cfg := defaults()
	cfg.OpenAI.APIKey = "sk-very-secret"

	for _, ki := range ShowAll(cfg) {
		if strings.Contains(ki.Value, "sk-very-secret") {
			t.Fatalf("ShowAll leaked secret in %s", ki.Key)
		}
		switch ki.Key {
		case "openai.api_key":
			if ki.Value != "(set)" {
				t.Errorf("openai.api_key = %q, want (set)", ki.Value)
			}
		case "server.api_token":
			if ki.Value != "(unset)" {
				t.Errorf("server.api_token = %q, want (unset)", ki.Value)
			}
		case "llm.timeout":
			if ki.Value != "8s" {
				t.Errorf("llm.timeout = %q, want 8s", ki.Value)
			}
		}
	}
	if len(ValidKeys()) != len(specs) {
		t.Errorf("ValidKeys() = %v", ValidKeys())
	}
}
