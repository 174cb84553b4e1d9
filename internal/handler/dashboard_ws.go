package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yourorg/referraldesk/internal/service"
)

// DashboardWSHandler streams dashboard summaries over a WebSocket so the UI
// can show live KPIs without polling
type DashboardWSHandler struct {
	dashboard      *service.DashboardService
	logger         *slog.Logger
	allowedOrigins []string
	interval       time.Duration
}

// NewDashboardWSHandler creates a new dashboard stream handler
func NewDashboardWSHandler(dashboard *service.DashboardService, logger *slog.Logger, allowedOrigins []string) *DashboardWSHandler {
	return &DashboardWSHandler{
		dashboard:      dashboard,
		logger:         logger,
		allowedOrigins: allowedOrigins,
		interval:       2 * time.Second,
	}
}

// upgrader is initialized per-request to use instance's allowed origins
func (h *DashboardWSHandler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Allow requests with no origin (e.g., non-browser clients)
				return true
			}
			for _, allowed := range h.allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			h.logger.Warn("websocket origin rejected", slog.String("origin", origin))
			return false
		},
	}
}

// ServeHTTP handles GET /ws/dashboard
func (h *DashboardWSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := h.getUpgrader()
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	ctx := r.Context()
	h.logger.Debug("dashboard stream opened")

	// Drain client frames so close messages are processed
	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	ping := time.NewTicker(15 * time.Second)
	defer ping.Stop()

	// Push the first snapshot immediately, then on every tick
	if !h.push(ctx, ws) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("dashboard stream closed")
			return
		case <-ping.C:
			_ = ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
		case <-ticker.C:
			if !h.push(ctx, ws) {
				return
			}
		}
	}
}

func (h *DashboardWSHandler) push(ctx context.Context, ws *websocket.Conn) bool {
	sum, err := h.dashboard.Summary(ctx)
	if err != nil {
		h.logger.Error("failed to compute summary for stream", slog.String("error", err.Error()))
		return true
	}
	if err := ws.WriteJSON(sum); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
			h.logger.Debug("websocket closed")
		}
		return false
	}
	return true
}
