package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"flashcard-progress/internal/domain"
)

var errUnsupported = errors.New("unsupported message type")

func errInvalidPayload(kind string) error {
	return fmt.Errorf("invalid %s payload", kind)
}

type errorBody struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrInvalidDifficulty):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNoActiveSession), errors.Is(err, domain.ErrAggregateNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrSessionEnded):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	writeJSON(w, status, errorBody{
		Error:     err.Error(),
		Retryable: status == http.StatusServiceUnavailable,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write response: %v", err)
	}
}
