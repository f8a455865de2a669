package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/natusdeed/fashion-site-sub000/internal/catalog"
	"github.com/natusdeed/fashion-site-sub000/pkg/httputil"
	"github.com/natusdeed/fashion-site-sub000/pkg/pagination"
)

// ProductHandler serves read-only catalog lookups.
type ProductHandler struct {
	catalog catalog.Catalog
	logger  *slog.Logger
}

// NewProductHandler creates a product handler.
func NewProductHandler(c catalog.Catalog, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{catalog: c, logger: logger}
}

// ListProducts handles GET /api/v1/products
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.List(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	page := pagination.Slice(products, pagination.FromRequest(r))
	pagination.SetLinkHeader(w, r, page)
	httputil.WriteData(w, http.StatusOK, page)
}

// GetProduct handles GET /api/v1/products/{ref}, where ref is an id or a
// slug.
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := catalog.Lookup(r.Context(), h.catalog, chi.URLParam(r, "ref"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, p)
}
