package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/yourorg/referraldesk/internal/store"
	"github.com/yourorg/referraldesk/pkg/database"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	store  store.Store
	db     *database.ConnectionPool
	logger *slog.Logger
}

// NewHealthHandler creates a new health handler. db may be nil.
func NewHealthHandler(st store.Store, db *database.ConnectionPool, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{store: st, db: db, logger: logger}
}

// HealthResponse represents the health status response
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadinessResponse represents the readiness check response
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Health handles GET /healthz - simple liveness check
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
}

// Ready handles GET /readyz - returns 200 only if all dependencies are healthy
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)

	storeOK := false
	if err := h.store.Ping(ctx); err == nil {
		checks["store"] = "ok"
		storeOK = true
	} else {
		checks["store"] = "error: " + err.Error()
	}

	journalOK := true
	if h.db != nil {
		if err := h.db.Health(ctx); err == nil {
			checks["postgres"] = "ok"
		} else {
			checks["postgres"] = "error: " + err.Error()
			journalOK = false
		}
	} else {
		checks["postgres"] = "not configured"
	}

	status := "ready"
	statusCode := http.StatusOK
	if !storeOK || !journalOK {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ReadinessResponse{Status: status, Checks: checks})

	if !storeOK || !journalOK {
		h.logger.Warn("readiness check failed",
			slog.String("store", checks["store"]),
			slog.String("postgres", checks["postgres"]),
		)
	}
}
