package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/yourorg/referraldesk/internal/domain"
	"github.com/yourorg/referraldesk/internal/security/audit"
	"github.com/yourorg/referraldesk/internal/service"
)

// LinkHandler exposes the referral link engine over HTTP
type LinkHandler struct {
	links  *service.LinkService
	audit  *audit.Logger
	logger *slog.Logger
}

// NewLinkHandler creates a new link handler
func NewLinkHandler(links *service.LinkService, auditLog *audit.Logger, logger *slog.Logger) *LinkHandler {
	return &LinkHandler{links: links, audit: auditLog, logger: logger}
}

// List handles GET /api/links
func (h *LinkHandler) List(w http.ResponseWriter, r *http.Request) {
	links, err := h.links.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"links": links})
}

// Create handles POST /api/links
func (h *LinkHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DSAID     string `json:"dsaId"`
		ProductID string `json:"productId"`
		Code      string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	link, err := retryAborted(r.Context(), h.logger, "link_create", func(ctx context.Context) (*domain.ReferralLink, error) {
		return h.links.Create(ctx, req.DSAID, req.ProductID, req.Code)
	})
	if err != nil {
		h.audit.LogLinkChange(r.Context(), "create", "", "failed", err.Error())
		writeError(w, h.logger, err)
		return
	}

	h.audit.LogLinkChange(r.Context(), "create", link.ID, "success", link.Code)
	writeJSON(w, http.StatusCreated, link)
}

// Get handles GET /api/links/{id}
func (h *LinkHandler) Get(w http.ResponseWriter, r *http.Request) {
	link, err := h.links.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, link)
}

// Patch handles PATCH /api/links/{id}
func (h *LinkHandler) Patch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var patch service.LinkPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	link, err := retryAborted(r.Context(), h.logger, "link_update", func(ctx context.Context) (*domain.ReferralLink, error) {
		return h.links.Update(ctx, id, patch)
	})
	if err != nil {
		h.audit.LogLinkChange(r.Context(), "update", id, "failed", err.Error())
		writeError(w, h.logger, err)
		return
	}

	h.audit.LogLinkChange(r.Context(), "update", id, "success", "")
	writeJSON(w, http.StatusOK, link)
}

// Delete handles DELETE /api/links/{id}
func (h *LinkHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	_, err := retryAborted(r.Context(), h.logger, "link_delete", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, h.links.Delete(ctx, id)
	})
	if err != nil {
		h.audit.LogLinkChange(r.Context(), "delete", id, "failed", err.Error())
		writeError(w, h.logger, err)
		return
	}

	h.audit.LogLinkChange(r.Context(), "delete", id, "success", "")
	w.WriteHeader(http.StatusNoContent)
}
