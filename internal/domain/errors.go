package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure surfaced by the pipeline is one of these.
var (
	ErrPayloadTooLarge      = errors.New("payload too large")
	ErrUnsupportedFormat    = errors.New("unsupported format")
	ErrExtraction           = errors.New("extraction failed")
	ErrNotReady             = errors.New("document not ready")
	ErrIngestionFailed      = errors.New("ingestion failed")
	ErrAnswerGeneration     = errors.New("answer generation failed")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrInvalidInput         = errors.New("invalid input")
	ErrQueueFull            = errors.New("ingest queue full")
	ErrStopped              = errors.New("pipeline stopped")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

// IngestionFailedError is returned to question requests when the active
// document could not be extracted. A new upload is needed.
type IngestionFailedError struct {
	DocumentID string
	Reason     string
}

func (e *IngestionFailedError) Error() string {
	return fmt.Sprintf("ingestion failed for document %s: %s", e.DocumentID, e.Reason)
}

func (e *IngestionFailedError) Unwrap() error { return ErrIngestionFailed }

// AnswerGenerationError hides provider-specific failures behind a single kind.
// Retryable is set for rate limits, timeouts and upstream 5xx.
type AnswerGenerationError struct {
	Retryable bool
	Timeout   bool
	Cause     error
}

func (e *AnswerGenerationError) Error() string {
	switch {
	case e.Timeout:
		return "answer generation timed out"
	case e.Cause != nil:
		return fmt.Sprintf("answer generation failed: %v", e.Cause)
	default:
		return "answer generation failed"
	}
}

func (e *AnswerGenerationError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrAnswerGeneration}
	}
	return []error{ErrAnswerGeneration, e.Cause}
}

// Code returns the stable machine-readable name of the error's kind.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPayloadTooLarge):
		return "payload_too_large"
	case errors.Is(err, ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, ErrExtraction):
		return "extraction_error"
	case errors.Is(err, ErrNotReady):
		return "not_ready"
	case errors.Is(err, ErrIngestionFailed):
		return "ingestion_failed"
	case errors.Is(err, ErrAnswerGeneration):
		return "answer_generation_failed"
	case errors.Is(err, ErrInvalidConfiguration):
		return "invalid_configuration"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrQueueFull):
		return "queue_full"
	case errors.Is(err, ErrStopped):
		return "stopped"
	default:
		return "internal"
	}
}
