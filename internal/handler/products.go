package handler

import (
	"log/slog"
	"net/http"

	"github.com/yourorg/referraldesk/internal/catalog"
)

// ProductsHandler returns the promotable product catalog
type ProductsHandler struct {
	catalog *catalog.Catalog
	logger  *slog.Logger
}

// NewProductsHandler creates a new products handler
func NewProductsHandler(cat *catalog.Catalog, logger *slog.Logger) *ProductsHandler {
	return &ProductsHandler{catalog: cat, logger: logger}
}

// ServeHTTP handles GET /api/products
func (h *ProductsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"products": h.catalog.List()})
}
