package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dgallion1/pdfqa/internal/domain"
	"github.com/dgallion1/pdfqa/internal/resilience"
)

func jsonError(w http.ResponseWriter, msg, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": code})
}

// writeError renders err with the status of its kind.
func writeError(w http.ResponseWriter, err error) {
	jsonError(w, err.Error(), domain.Code(err), statusFor(err))
}

func statusFor(err error) int {
	var ae *domain.AnswerGenerationError
	if errors.As(err, &ae) {
		switch {
		case ae.Timeout:
			return http.StatusGatewayTimeout
		case resilience.IsCircuitOpen(err):
			return http.StatusServiceUnavailable
		default:
			return http.StatusBadGateway
		}
	}
	switch {
	case errors.Is(err, domain.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, domain.ErrNotReady):
		return http.StatusConflict
	case errors.Is(err, domain.ErrIngestionFailed), errors.Is(err, domain.ErrExtraction):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrQueueFull), errors.Is(err, domain.ErrStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
