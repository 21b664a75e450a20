package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/pdfqa/internal/domain"
)

var envKeys = []string{
	"CONFIG_FILE", "PORT", "LOG_LEVEL", "SHUTDOWN_TIMEOUT", "CORS_ALLOWED_ORIGINS", "MAX_UPLOAD_BYTES",
	"CHUNK_SIZE", "CHUNK_OVERLAP", "CONTEXT_BUDGET", "WORKER_COUNT", "MAX_QUEUE_SIZE",
	"LLM_PROVIDER", "OPENAI_API_KEY", "OPENAI_MODEL", "OPENAI_BASE_URL", "ANTHROPIC_API_KEY", "ANTHROPIC_MODEL",
	"LLM_TEMPERATURE", "LLM_MAX_TOKENS", "LLM_TIMEOUT", "LLM_RATE_LIMIT", "LLM_RATE_BURST", "LLM_STATS_WINDOW",
	"RETRY_MAX_ATTEMPTS", "RETRY_INITIAL_BACKOFF", "RETRY_MAX_BACKOFF", "BREAKER_ENABLED",
	"BREAKER_MIN_REQUESTS", "BREAKER_FAILURE_RATIO", "BREAKER_OPEN_TIMEOUT", "PDF_FALLBACK_PDFTOTEXT",
}

// clearEnv blanks every variable Load reads; empty values count as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8000" {
		t.Errorf("expected port 8000, got %q", cfg.Port)
	}
	if cfg.MaxUploadBytes != 10*1024*1024 {
		t.Errorf("expected 10MiB upload limit, got %d", cfg.MaxUploadBytes)
	}
	if cfg.ChunkSize != 2000 || cfg.ChunkOverlap != 200 || cfg.ContextBudget != 2000 {
		t.Errorf("expected 2000/200/2000, got %d/%d/%d", cfg.ChunkSize, cfg.ChunkOverlap, cfg.ContextBudget)
	}
	if cfg.LLMProvider != ProviderOpenAI || cfg.OpenAIModel != "gpt-4" {
		t.Errorf("expected openai gpt-4, got %s %s", cfg.LLMProvider, cfg.OpenAIModel)
	}
	if cfg.LLMTimeout != 60*time.Second {
		t.Errorf("expected 60s LLM timeout, got %s", cfg.LLMTimeout)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9999")
	t.Setenv("CHUNK_SIZE", "500")
	t.Setenv("CHUNK_OVERLAP", "0")
	t.Setenv("LLM_PROVIDER", "Anthropic")
	t.Setenv("LLM_TIMEOUT", "5s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("PDF_FALLBACK_PDFTOTEXT", "true")
	t.Setenv("WORKER_COUNT", "-3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9999" {
		t.Errorf("expected port override, got %q", cfg.Port)
	}
	if cfg.ChunkSize != 500 || cfg.ChunkOverlap != 0 {
		t.Errorf("expected 500/0, got %d/%d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if cfg.LLMProvider != ProviderAnthropic {
		t.Errorf("expected provider lowercased to anthropic, got %q", cfg.LLMProvider)
	}
	if cfg.LLMTimeout != 5*time.Second {
		t.Errorf("expected 5s, got %s", cfg.LLMTimeout)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Errorf("unexpected origins: %v", cfg.CORSAllowedOrigins)
	}
	if !cfg.PDFFallbackPdftotext {
		t.Error("expected pdftotext fallback enabled")
	}
	if cfg.WorkerCount != 2 {
		t.Errorf("expected non-positive worker count to fall back to 2, got %d", cfg.WorkerCount)
	}
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "pdfqa.yaml")
	content := "chunk_size: 1000\ncontext_budget: 3000\nllm_timeout: 15s\nopenai_model: gpt-4o\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("CONTEXT_BUDGET", "2500")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ChunkSize != 1000 {
		t.Errorf("expected chunk size from file, got %d", cfg.ChunkSize)
	}
	if cfg.ContextBudget != 2500 {
		t.Errorf("expected env to override file, got %d", cfg.ContextBudget)
	}
	if cfg.LLMTimeout != 15*time.Second {
		t.Errorf("expected 15s from file, got %s", cfg.LLMTimeout)
	}
	if cfg.OpenAIModel != "gpt-4o" {
		t.Errorf("expected model from file, got %q", cfg.OpenAIModel)
	}
	if cfg.ChunkOverlap != 200 {
		t.Errorf("expected default overlap kept, got %d", cfg.ChunkOverlap)
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); !errors.Is(err, domain.ErrInvalidConfiguration) {
		t.Errorf("expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := Defaults()
	valid.OpenAIAPIKey = "sk-test"
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		message string
	}{
		{"missing openai key", func(c *Config) { c.OpenAIAPIKey = "" }, "OPENAI_API_KEY"},
		{"missing anthropic key", func(c *Config) { c.LLMProvider = ProviderAnthropic }, "ANTHROPIC_API_KEY"},
		{"unknown provider", func(c *Config) { c.LLMProvider = "local" }, "LLM_PROVIDER"},
		{"overlap equals size", func(c *Config) { c.ChunkOverlap = c.ChunkSize }, "overlap"},
		{"zero chunk size", func(c *Config) { c.ChunkSize = 0 }, "size"},
		{"zero budget", func(c *Config) { c.ContextBudget = 0 }, "CONTEXT_BUDGET"},
		{"zero timeout", func(c *Config) { c.LLMTimeout = 0 }, "LLM_TIMEOUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, domain.ErrInvalidConfiguration) {
				t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.message) {
				t.Errorf("expected error to mention %q, got %v", tt.message, err)
			}
		})
	}
}

func TestAPIKey(t *testing.T) {
	cfg := Defaults()
	cfg.OpenAIAPIKey = "o"
	cfg.AnthropicAPIKey = "a"
	if cfg.APIKey() != "o" {
		t.Errorf("expected openai key, got %q", cfg.APIKey())
	}
	cfg.LLMProvider = ProviderAnthropic
	if cfg.APIKey() != "a" {
		t.Errorf("expected anthropic key, got %q", cfg.APIKey())
	}
}

func TestResilience(t *testing.T) {
	cfg := Defaults()
	cfg.RetryMaxAttempts = 5
	cfg.BreakerEnabled = false
	cfg.BreakerOpenTimeout = time.Minute

	rc := cfg.Resilience()
	if rc.RetryMaxAttempts != 5 || rc.BreakerEnabled || rc.BreakerOpenTimeout != time.Minute {
		t.Errorf("unexpected resilience config: %+v", rc)
	}
	if rc.RetryMultiplier != 2.0 || !rc.RetryJitter {
		t.Errorf("expected library defaults for multiplier and jitter, got %+v", rc)
	}
}
