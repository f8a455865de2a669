package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/natusdeed/fashion-site-sub000/internal/catalog"
	"github.com/natusdeed/fashion-site-sub000/internal/service"
	"github.com/natusdeed/fashion-site-sub000/internal/share"
	"github.com/natusdeed/fashion-site-sub000/pkg/httputil"
	"github.com/natusdeed/fashion-site-sub000/pkg/pagination"
)

// WishlistHandler serves the session wishlist.
type WishlistHandler struct {
	catalog catalog.Catalog
	logger  *slog.Logger
}

// NewWishlistHandler creates a wishlist handler that resolves products in c.
func NewWishlistHandler(c catalog.Catalog, logger *slog.Logger) *WishlistHandler {
	return &WishlistHandler{catalog: c, logger: logger}
}

// AddWishlistItemRequest names the product to save.
type AddWishlistItemRequest struct {
	ProductID int64 `json:"productId" validate:"required,gt=0"`
}

// WishlistItemStatus reports whether a product is saved.
type WishlistItemStatus struct {
	ProductID int64 `json:"productId"`
	Saved     bool  `json:"saved"`
}

// AddWishlistItemResponse reports whether the product was newly saved.
type AddWishlistItemResponse struct {
	Added    bool                     `json:"added"`
	Wishlist service.WishlistSnapshot `json:"wishlist"`
}

// ListItems handles GET /api/v1/wishlist
func (h *WishlistHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	s := sessionFromContext(r.Context())
	page := pagination.Slice(s.Wishlist.Items(), pagination.FromRequest(r))
	pagination.SetLinkHeader(w, r, page)
	httputil.WriteData(w, http.StatusOK, page)
}

// Clear handles DELETE /api/v1/wishlist
func (h *WishlistHandler) Clear(w http.ResponseWriter, r *http.Request) {
	s := sessionFromContext(r.Context())
	s.Wishlist.Clear(r.Context())
	httputil.WriteData(w, http.StatusOK, s.Wishlist.Snapshot())
}

// AddItem handles POST /api/v1/wishlist/items. Saving a product twice
// returns 200 and leaves the first entry untouched.
func (h *WishlistHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddWishlistItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	ctx := r.Context()
	p, err := h.catalog.GetByID(ctx, req.ProductID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	s := sessionFromContext(ctx)
	added, err := s.Wishlist.AddItem(ctx, service.WishlistInput(p))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	httputil.WriteData(w, status, AddWishlistItemResponse{Added: added, Wishlist: s.Wishlist.Snapshot()})
}

// GetItem handles GET /api/v1/wishlist/items/{productId}
func (h *WishlistHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseInt64(w, "product id", chi.URLParam(r, "productId"))
	if !ok {
		return
	}
	s := sessionFromContext(r.Context())
	httputil.WriteData(w, http.StatusOK, WishlistItemStatus{ProductID: id, Saved: s.Wishlist.Contains(id)})
}

// RemoveItem handles DELETE /api/v1/wishlist/items/{productId}
func (h *WishlistHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseInt64(w, "product id", chi.URLParam(r, "productId"))
	if !ok {
		return
	}
	s := sessionFromContext(r.Context())
	s.Wishlist.RemoveItem(r.Context(), id)
	httputil.WriteData(w, http.StatusOK, s.Wishlist.Snapshot())
}

// Share handles POST /api/v1/wishlist/share. The server has no share sheet,
// so the payload is written to a clipboard buffer and returned for the
// browser to copy.
func (h *WishlistHandler) Share(w http.ResponseWriter, r *http.Request) {
	s := sessionFromContext(r.Context())
	res, err := s.Wishlist.Share(r.Context(), share.Platform{Clipboard: &share.Buffer{}})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, res)
}
