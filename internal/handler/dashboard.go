package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/yourorg/referraldesk/internal/journal"
	"github.com/yourorg/referraldesk/internal/service"
)

// ActivityFeed serves the recent-events feed; satisfied by journal.Journal.
// Nil when no Postgres is configured.
type ActivityFeed interface {
	Recent(ctx context.Context, limit int) ([]journal.Event, error)
}

// DashboardHandler exposes the aggregated program views
type DashboardHandler struct {
	dashboard *service.DashboardService
	activity  ActivityFeed
	logger    *slog.Logger
}

// NewDashboardHandler creates a new dashboard handler. feed may be nil.
func NewDashboardHandler(dashboard *service.DashboardService, feed ActivityFeed, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard, activity: feed, logger: logger}
}

// Summary handles GET /api/dashboard/summary
func (h *DashboardHandler) Summary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.dashboard.Summary(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// Top handles GET /api/dashboard/top
func (h *DashboardHandler) Top(w http.ResponseWriter, r *http.Request) {
	n := 5
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 50 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "n must be between 1 and 50"})
			return
		}
		n = parsed
	}

	top, err := h.dashboard.TopDSAs(r.Context(), n)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dsas": top})
}

// Activity handles GET /api/dashboard/activity
func (h *DashboardHandler) Activity(w http.ResponseWriter, r *http.Request) {
	if h.activity == nil {
		writeJSON(w, http.StatusOK, map[string]any{"events": []journal.Event{}})
		return
	}

	events, err := h.activity.Recent(r.Context(), 20)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if events == nil {
		events = []journal.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
