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

// DSAHandler exposes the agent registry over HTTP
type DSAHandler struct {
	dsas   *service.DSAService
	links  *service.LinkService
	audit  *audit.Logger
	logger *slog.Logger
}

// NewDSAHandler creates a new DSA handler
func NewDSAHandler(dsas *service.DSAService, links *service.LinkService, auditLog *audit.Logger, logger *slog.Logger) *DSAHandler {
	return &DSAHandler{dsas: dsas, links: links, audit: auditLog, logger: logger}
}

// List handles GET /api/dsas
func (h *DSAHandler) List(w http.ResponseWriter, r *http.Request) {
	dsas, err := h.dsas.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dsas": dsas})
}

// Create handles POST /api/dsas
func (h *DSAHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name   string           `json:"name"`
		Email  string           `json:"email"`
		Status domain.DSAStatus `json:"status"`
		Avatar string           `json:"avatar"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	dsa, err := h.dsas.Create(r.Context(), req.Name, req.Email, req.Status, req.Avatar)
	if err != nil {
		h.audit.LogDSAChange(r.Context(), "create", "", "failed", err.Error())
		writeError(w, h.logger, err)
		return
	}

	h.audit.LogDSAChange(r.Context(), "create", dsa.ID, "success", dsa.Name)
	writeJSON(w, http.StatusCreated, dsa)
}

// Get handles GET /api/dsas/{id}
func (h *DSAHandler) Get(w http.ResponseWriter, r *http.Request) {
	dsa, err := h.dsas.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dsa)
}

// Patch handles PATCH /api/dsas/{id}
func (h *DSAHandler) Patch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var patch service.DSAPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	dsa, err := retryAborted(r.Context(), h.logger, "dsa_update", func(ctx context.Context) (*domain.DSA, error) {
		return h.dsas.Update(ctx, id, patch)
	})
	if err != nil {
		h.audit.LogDSAChange(r.Context(), "update", id, "failed", err.Error())
		writeError(w, h.logger, err)
		return
	}

	h.audit.LogDSAChange(r.Context(), "update", id, "success", "")
	writeJSON(w, http.StatusOK, dsa)
}

// Delete handles DELETE /api/dsas/{id}
func (h *DSAHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	_, err := retryAborted(r.Context(), h.logger, "dsa_delete", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, h.dsas.Delete(ctx, id)
	})
	if err != nil {
		h.audit.LogDSAChange(r.Context(), "delete", id, "failed", err.Error())
		writeError(w, h.logger, err)
		return
	}

	h.audit.LogDSAChange(r.Context(), "delete", id, "success", "")
	w.WriteHeader(http.StatusNoContent)
}

// Links handles GET /api/dsas/{id}/links
func (h *DSAHandler) Links(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if _, err := h.dsas.Get(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	links, err := h.links.ListByDSA(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"links": links})
}
