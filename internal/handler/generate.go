package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/yourorg/referraldesk/internal/security/audit"
	"github.com/yourorg/referraldesk/internal/service"
)

// MessageHandler exposes the drafting capability
type MessageHandler struct {
	messages *service.MessageService
	audit    *audit.Logger
	logger   *slog.Logger
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(messages *service.MessageService, auditLog *audit.Logger, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{messages: messages, audit: auditLog, logger: logger}
}

// Generate handles POST /api/messages/generate
func (h *MessageHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req service.DraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	message, err := h.messages.Draft(r.Context(), req)
	if err != nil {
		h.audit.LogDraft(r.Context(), "failed", err.Error())
		writeError(w, h.logger, err)
		return
	}

	h.audit.LogDraft(r.Context(), "success", req.ProductName)
	writeJSON(w, http.StatusOK, map[string]string{"message": message})
}
