// Package handler provides HTTP request handlers for the phonebook API.
package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/phonebook-api/internal/model"
)

// Version is the application version.
const Version = "1.0.0"

// Error messages returned to clients.
const (
	MsgUnknownEndpoint = "unknown endpoint"
	MsgMalformedBody   = "malformed request body"
	MsgBodyTooLarge    = "request entity too large"
	MsgInternalError   = "internal server error"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Status string `json:"status"`
}

// EventPublisher receives phonebook change events.
type EventPublisher interface {
	Publish(event model.PersonEvent)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(logger *zap.Logger, w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}

// writeError writes an {"error": message} response with the given status code.
func writeError(logger *zap.Logger, w http.ResponseWriter, status int, message string) {
	writeJSON(logger, w, status, model.ErrorResponse{Error: message})
}

// UnknownEndpoint returns the fallback handler for unmatched routes.
func UnknownEndpoint(logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(logger, w, http.StatusNotFound, MsgUnknownEndpoint)
	})
}
