package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/pdfqa/internal/chunker"
	"github.com/dgallion1/pdfqa/internal/domain"
	"github.com/dgallion1/pdfqa/internal/resilience"
	"gopkg.in/yaml.v3"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config is read once at startup and never mutated afterwards.
type Config struct {
	Port            string        `yaml:"port"`
	LogLevel        string        `yaml:"log_level"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// CORS
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`

	// Upload limits
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// Chunking and context selection
	ChunkSize     int `yaml:"chunk_size"`
	ChunkOverlap  int `yaml:"chunk_overlap"`
	ContextBudget int `yaml:"context_budget"`

	// Worker pool
	WorkerCount  int `yaml:"worker_count"`
	MaxQueueSize int `yaml:"max_queue_size"`

	// LLM
	LLMProvider     string        `yaml:"llm_provider"`
	OpenAIAPIKey    string        `yaml:"openai_api_key"`
	OpenAIModel     string        `yaml:"openai_model"`
	OpenAIBaseURL   string        `yaml:"openai_base_url"`
	AnthropicAPIKey string        `yaml:"anthropic_api_key"`
	AnthropicModel  string        `yaml:"anthropic_model"`
	LLMTemperature  float64       `yaml:"llm_temperature"`
	LLMMaxTokens    int           `yaml:"llm_max_tokens"`
	LLMTimeout      time.Duration `yaml:"llm_timeout"`
	LLMRateLimit    float64       `yaml:"llm_rate_limit"`
	LLMRateBurst    int           `yaml:"llm_rate_burst"`
	LLMStatsWindow  time.Duration `yaml:"llm_stats_window"`

	// Retry and circuit breaker around LLM calls
	RetryMaxAttempts    int           `yaml:"retry_max_attempts"`
	RetryInitialBackoff time.Duration `yaml:"retry_initial_backoff"`
	RetryMaxBackoff     time.Duration `yaml:"retry_max_backoff"`
	BreakerEnabled      bool          `yaml:"breaker_enabled"`
	BreakerMinRequests  uint32        `yaml:"breaker_min_requests"`
	BreakerFailureRatio float64       `yaml:"breaker_failure_ratio"`
	BreakerOpenTimeout  time.Duration `yaml:"breaker_open_timeout"`

	// PDF
	PDFFallbackPdftotext bool `yaml:"pdf_fallback_pdftotext"`
}

func Defaults() Config {
	return Config{
		Port:            "8000",
		LogLevel:        "info",
		ShutdownTimeout: 10 * time.Second,

		CORSAllowedOrigins: []string{"*"},

		MaxUploadBytes: 10 << 20, // 10MB

		ChunkSize:     2000,
		ChunkOverlap:  200,
		ContextBudget: 2000,

		WorkerCount:  2,
		MaxQueueSize: 16,

		LLMProvider:    ProviderOpenAI,
		OpenAIModel:    "gpt-4",
		AnthropicModel: "claude-sonnet-4-5-20250929",
		LLMTemperature: 0.3,
		LLMMaxTokens:   500,
		LLMTimeout:     60 * time.Second,
		LLMRateLimit:   2,
		LLMRateBurst:   4,
		LLMStatsWindow: time.Hour,

		RetryMaxAttempts:    3,
		RetryInitialBackoff: 500 * time.Millisecond,
		RetryMaxBackoff:     4 * time.Second,
		BreakerEnabled:      true,
		BreakerMinRequests:  5,
		BreakerFailureRatio: 0.5,
		BreakerOpenTimeout:  30 * time.Second,
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE if set, then environment variables.
func Load() (Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, err
		}
	}

	cfg.Port = envOr("PORT", cfg.Port)
	cfg.LogLevel = envOr("LOG_LEVEL", cfg.LogLevel)
	cfg.ShutdownTimeout = envDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.CORSAllowedOrigins = envList("CORS_ALLOWED_ORIGINS", cfg.CORSAllowedOrigins)

	cfg.MaxUploadBytes = envInt64("MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)

	cfg.ChunkSize = envInt("CHUNK_SIZE", cfg.ChunkSize)
	cfg.ChunkOverlap = envInt("CHUNK_OVERLAP", cfg.ChunkOverlap)
	cfg.ContextBudget = envInt("CONTEXT_BUDGET", cfg.ContextBudget)

	cfg.WorkerCount = envInt("WORKER_COUNT", cfg.WorkerCount)
	cfg.MaxQueueSize = envInt("MAX_QUEUE_SIZE", cfg.MaxQueueSize)

	cfg.LLMProvider = strings.ToLower(envOr("LLM_PROVIDER", cfg.LLMProvider))
	cfg.OpenAIAPIKey = envOr("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.OpenAIModel = envOr("OPENAI_MODEL", cfg.OpenAIModel)
	cfg.OpenAIBaseURL = envOr("OPENAI_BASE_URL", cfg.OpenAIBaseURL)
	cfg.AnthropicAPIKey = envOr("ANTHROPIC_API_KEY", cfg.AnthropicAPIKey)
	cfg.AnthropicModel = envOr("ANTHROPIC_MODEL", cfg.AnthropicModel)
	cfg.LLMTemperature = envFloat("LLM_TEMPERATURE", cfg.LLMTemperature)
	cfg.LLMMaxTokens = envInt("LLM_MAX_TOKENS", cfg.LLMMaxTokens)
	cfg.LLMTimeout = envDuration("LLM_TIMEOUT", cfg.LLMTimeout)
	cfg.LLMRateLimit = envFloat("LLM_RATE_LIMIT", cfg.LLMRateLimit)
	cfg.LLMRateBurst = envInt("LLM_RATE_BURST", cfg.LLMRateBurst)
	cfg.LLMStatsWindow = envDuration("LLM_STATS_WINDOW", cfg.LLMStatsWindow)

	cfg.RetryMaxAttempts = envInt("RETRY_MAX_ATTEMPTS", cfg.RetryMaxAttempts)
	cfg.RetryInitialBackoff = envDuration("RETRY_INITIAL_BACKOFF", cfg.RetryInitialBackoff)
	cfg.RetryMaxBackoff = envDuration("RETRY_MAX_BACKOFF", cfg.RetryMaxBackoff)
	cfg.BreakerEnabled = envBool("BREAKER_ENABLED", cfg.BreakerEnabled)
	cfg.BreakerMinRequests = uint32(envInt("BREAKER_MIN_REQUESTS", int(cfg.BreakerMinRequests)))
	cfg.BreakerFailureRatio = envFloat("BREAKER_FAILURE_RATIO", cfg.BreakerFailureRatio)
	cfg.BreakerOpenTimeout = envDuration("BREAKER_OPEN_TIMEOUT", cfg.BreakerOpenTimeout)

	cfg.PDFFallbackPdftotext = envBool("PDF_FALLBACK_PDFTOTEXT", cfg.PDFFallbackPdftotext)

	def := Defaults()
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = def.WorkerCount
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = def.MaxQueueSize
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if cfg.LLMMaxTokens <= 0 {
		cfg.LLMMaxTokens = def.LLMMaxTokens
	}
	if cfg.LLMRateBurst <= 0 {
		cfg.LLMRateBurst = def.LLMRateBurst
	}
	if cfg.LLMStatsWindow <= 0 {
		cfg.LLMStatsWindow = def.LLMStatsWindow
	}

	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.WrapError(domain.ErrInvalidConfiguration, "read config file", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return domain.WrapError(domain.ErrInvalidConfiguration, "parse config file", err)
	}
	return nil
}

// Chunking returns the chunker parameters.
func (c Config) Chunking() chunker.Config {
	return chunker.Config{ChunkSize: c.ChunkSize, ChunkOverlap: c.ChunkOverlap}
}

// Resilience returns the retry and breaker settings for LLM calls.
func (c Config) Resilience() resilience.Config {
	rc := resilience.DefaultConfig()
	rc.RetryMaxAttempts = c.RetryMaxAttempts
	rc.RetryInitialBackoff = c.RetryInitialBackoff
	rc.RetryMaxBackoff = c.RetryMaxBackoff
	rc.BreakerEnabled = c.BreakerEnabled
	rc.BreakerMinRequests = c.BreakerMinRequests
	rc.BreakerFailureRatio = c.BreakerFailureRatio
	rc.BreakerOpenTimeout = c.BreakerOpenTimeout
	return rc
}

// APIKey returns the key of the selected provider.
func (c Config) APIKey() string {
	if c.LLMProvider == ProviderAnthropic {
		return c.AnthropicAPIKey
	}
	return c.OpenAIAPIKey
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var problems []error

	if err := c.Chunking().Validate(); err != nil {
		problems = append(problems, err)
	}
	if c.ContextBudget <= 0 {
		problems = append(problems, fmt.Errorf("CONTEXT_BUDGET must be positive, got %d", c.ContextBudget))
	}
	if c.MaxUploadBytes <= 0 {
		problems = append(problems, fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes))
	}
	if c.LLMTimeout <= 0 {
		problems = append(problems, fmt.Errorf("LLM_TIMEOUT must be positive, got %s", c.LLMTimeout))
	}

	switch c.LLMProvider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			problems = append(problems, fmt.Errorf("OPENAI_API_KEY is required"))
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			problems = append(problems, fmt.Errorf("ANTHROPIC_API_KEY is required"))
		}
	default:
		problems = append(problems, fmt.Errorf("LLM_PROVIDER must be %q or %q, got %q", ProviderOpenAI, ProviderAnthropic, c.LLMProvider))
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", domain.ErrInvalidConfiguration, errors.Join(problems...))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envList splits a comma-separated value, dropping empty entries.
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
