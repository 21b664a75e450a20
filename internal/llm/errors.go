package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/pdfqa/internal/domain"
	"github.com/dgallion1/pdfqa/internal/resilience"
)

// ErrEmptyResponse is returned when a provider answers 200 with no text.
var ErrEmptyResponse = errors.New("empty response from llm")

// HTTPStatusError is a non-200 reply from an LLM provider.
type HTTPStatusError struct {
	Provider   string
	StatusCode int
	Status     string
	Body       string
	RetryAfter time.Duration
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "llm status error"
	}
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s api status: %s", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s api status: %s: %s", e.Provider, e.Status, truncate(body, 200))
}

func newHTTPStatusError(provider string, resp *http.Response, body []byte) *HTTPStatusError {
	return &HTTPStatusError{
		Provider:   provider,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       string(body),
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}
}

// parseRetryAfter understands the delay-seconds form only.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// Classify decides whether a provider error is worth retrying and whether it
// should count against the circuit breaker.
func Classify(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if isRetryableHTTPStatus(statusErr.StatusCode) {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

// toAnswerError maps any failure of a generation attempt to the single
// answer-generation kind callers see.
func toAnswerError(err error) error {
	if err == nil {
		return nil
	}
	var ae *domain.AnswerGenerationError
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.AnswerGenerationError{Retryable: true, Timeout: true, Cause: err}
	}
	if resilience.IsCircuitOpen(err) {
		return &domain.AnswerGenerationError{Retryable: true, Cause: err}
	}
	return &domain.AnswerGenerationError{Retryable: Classify(err).Retryable, Cause: err}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
