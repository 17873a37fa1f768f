package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/appconfd/appconfd/internal/agent"
)

// errorStatusCode maps agent errors to data plane status codes: an
// unknown profile is a 404, an unreachable upstream a 502, and a
// payload the agent refuses to serve a 500.
func errorStatusCode(err error) int {
	switch {
	case errors.Is(err, agent.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, agent.ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, agent.ErrInvalidPayload):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes an error response body.
func writeError(w http.ResponseWriter, status int, message string) {
	type responseError struct {
		Message string `json:"message"`
	}

	body, err := json.Marshal(struct {
		Error responseError `json:"error"`
	}{
		Error: responseError{Message: message},
	})
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}
