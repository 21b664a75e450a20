package llm

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dgallion1/pdfqa/internal/domain"
	"github.com/dgallion1/pdfqa/internal/resilience"
)

// CallObserver receives one event per generation request.
type CallObserver interface {
	ObserveLLMCall(provider, outcome string, d time.Duration)
}

// Resilient wraps a Generator with rate limiting, retries and a circuit
// breaker. Every error it returns is a *domain.AnswerGenerationError.
type Resilient struct {
	next     Generator
	provider string
	limiter  *RateLimiter
	exec     *resilience.Executor
	stats    *LLMStats
	observer CallObserver
	log      *slog.Logger
}

type ResilientOptions struct {
	Provider string
	Limiter  *RateLimiter
	Executor *resilience.Executor
	Stats    *LLMStats
	Observer CallObserver
	Log      *slog.Logger
}

func NewResilient(next Generator, opts ResilientOptions) *Resilient {
	r := &Resilient{
		next:     next,
		provider: opts.Provider,
		limiter:  opts.Limiter,
		exec:     opts.Executor,
		stats:    opts.Stats,
		observer: opts.Observer,
		log:      opts.Log,
	}
	if r.provider == "" {
		r.provider = "llm"
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	if r.limiter == nil {
		r.limiter = NewRateLimiter(0, 1)
	}
	if r.exec == nil {
		r.exec = resilience.NewExecutor(resilience.DefaultConfig(), r.log)
	}
	return r
}

func (r *Resilient) GenerateAnswer(ctx context.Context, systemPrompt, question, docContext string) (string, error) {
	start := time.Now()

	if err := r.limiter.Wait(ctx); err != nil {
		// rate.Limiter fails early when the wait would outlast the deadline.
		if !errors.Is(err, context.Canceled) {
			err = &domain.AnswerGenerationError{Retryable: true, Timeout: true, Cause: err}
		}
		return "", r.finish(start, err)
	}

	var answer string
	err := r.exec.Execute(ctx, r.operation(), func(ctx context.Context) error {
		out, err := r.next.GenerateAnswer(ctx, systemPrompt, question, docContext)
		if err != nil {
			var statusErr *HTTPStatusError
			if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusTooManyRequests {
				r.limiter.RecordRateLimit(statusErr.RetryAfter)
			}
			return err
		}
		answer = out
		return nil
	}, Classify)
	if err != nil {
		return "", r.finish(start, err)
	}
	r.finish(start, nil)
	return answer, nil
}

// Stats returns the rolling latency window, or nil when none is kept.
func (r *Resilient) Stats() *LLMStats { return r.stats }

// Provider names the wrapped backend.
func (r *Resilient) Provider() string { return r.provider }

// BreakerState reports the circuit breaker state guarding the backend.
func (r *Resilient) BreakerState() string {
	return r.exec.BreakerState(r.operation())
}

// Close releases the wrapped client's idle connections.
func (r *Resilient) Close() {
	if c, ok := r.next.(interface{ Close() }); ok {
		c.Close()
	}
}

func (r *Resilient) operation() string { return "llm." + r.provider }

func (r *Resilient) finish(start time.Time, err error) error {
	elapsed := time.Since(start)
	outcome := "ok"
	if err != nil {
		err = toAnswerError(err)
		outcome = outcomeOf(err)
		r.log.Error("answer generation failed",
			"provider", r.provider,
			"outcome", outcome,
			"duration_ms", elapsed.Milliseconds(),
			"error", err,
		)
	}
	if r.stats != nil {
		r.stats.Record(elapsed, err != nil)
	}
	if r.observer != nil {
		r.observer.ObserveLLMCall(r.provider, outcome, elapsed)
	}
	return err
}

func outcomeOf(err error) string {
	var ae *domain.AnswerGenerationError
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &ae) && ae.Timeout:
		return "timeout"
	case resilience.IsCircuitOpen(err):
		return "circuit_open"
	default:
		return "error"
	}
}
