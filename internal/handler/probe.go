package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/phonebook-api/internal/store"
)

// ProbeHandler serves liveness and readiness checks.
type ProbeHandler struct {
	store  store.Store
	logger *zap.Logger
}

// NewProbeHandler creates a new ProbeHandler instance.
func NewProbeHandler(s store.Store, logger *zap.Logger) *ProbeHandler {
	return &ProbeHandler{
		store:  s,
		logger: logger,
	}
}

// RegisterRoutes registers the probe routes with the router.
func (h *ProbeHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/ready", h.ReadyCheck).Methods(http.MethodGet)
}

// HealthCheck handles GET /health requests.
func (h *ProbeHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(h.logger, w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: Version,
	})
}

// ReadyCheck handles GET /ready requests. The service is ready once the store answers.
func (h *ProbeHandler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.Count(r.Context()); err != nil {
		h.logger.Warn("readiness check failed", zap.Error(err))
		writeJSON(h.logger, w, http.StatusServiceUnavailable, ReadyResponse{Status: "not ready"})
		return
	}

	writeJSON(h.logger, w, http.StatusOK, ReadyResponse{Status: "ready"})
}
