package llm

import (
	"fmt"
	"log/slog"

	"github.com/dgallion1/pdfqa/internal/config"
	"github.com/dgallion1/pdfqa/internal/domain"
	"github.com/dgallion1/pdfqa/internal/resilience"
)

// NewFromConfig builds the client for cfg.LLMProvider and wraps it with
// rate limiting, retries and a circuit breaker. obs may be nil.
func NewFromConfig(cfg config.Config, obs CallObserver, log *slog.Logger) (*Resilient, error) {
	var next Generator
	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		next = NewOpenAIClient(ClientConfig{
			APIKey:      cfg.OpenAIAPIKey,
			Model:       cfg.OpenAIModel,
			BaseURL:     cfg.OpenAIBaseURL,
			MaxTokens:   cfg.LLMMaxTokens,
			Temperature: cfg.LLMTemperature,
		})
	case config.ProviderAnthropic:
		next = NewClaudeClient(ClientConfig{
			APIKey:      cfg.AnthropicAPIKey,
			Model:       cfg.AnthropicModel,
			MaxTokens:   cfg.LLMMaxTokens,
			Temperature: cfg.LLMTemperature,
		})
	default:
		return nil, fmt.Errorf("%w: unknown LLM provider %q", domain.ErrInvalidConfiguration, cfg.LLMProvider)
	}

	exec := resilience.NewExecutor(cfg.Resilience(), log)
	exec.OnRetry = func(op string, attempt int, err error) {
		log.Warn("retrying llm call", "operation", op, "attempt", attempt, "error", err)
	}

	return NewResilient(next, ResilientOptions{
		Provider: cfg.LLMProvider,
		Limiter:  NewRateLimiter(cfg.LLMRateLimit, cfg.LLMRateBurst),
		Executor: exec,
		Stats:    NewLLMStats(cfg.LLMStatsWindow),
		Observer: obs,
		Log:      log,
	}), nil
}
