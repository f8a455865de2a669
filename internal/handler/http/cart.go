package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/natusdeed/fashion-site-sub000/internal/catalog"
	"github.com/natusdeed/fashion-site-sub000/internal/domain"
	"github.com/natusdeed/fashion-site-sub000/internal/service"
	apperrors "github.com/natusdeed/fashion-site-sub000/pkg/errors"
	"github.com/natusdeed/fashion-site-sub000/pkg/httputil"
	"github.com/natusdeed/fashion-site-sub000/pkg/logger"
)

// CartHandler serves the session cart.
type CartHandler struct {
	catalog catalog.Catalog
	logger  *slog.Logger
}

// NewCartHandler creates a cart handler that resolves products in c.
func NewCartHandler(c catalog.Catalog, logger *slog.Logger) *CartHandler {
	return &CartHandler{catalog: c, logger: logger}
}

// AddItemRequest selects a product variant. The product is named by id or
// slug; display fields are taken from the catalog.
type AddItemRequest struct {
	ProductID int64  `json:"productId" validate:"gte=0"`
	Slug      string `json:"slug" validate:"required_without=ProductID,max=200"`
	Size      string `json:"size" validate:"required,max=20"`
	Color     string `json:"color" validate:"max=50"`
	Quantity  *int   `json:"quantity" validate:"omitnil,gte=1,lte=99"`
}

// UpdateQuantityRequest sets a line's quantity. Values below 1 remove the
// line.
type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required,lte=99"`
}

// DrawerRequest shows or hides the cart drawer.
type DrawerRequest struct {
	Open *bool `json:"open" validate:"required"`
}

// AddItemResponse returns the affected line with the updated cart.
type AddItemResponse struct {
	Line domain.CartLineItem  `json:"line"`
	Cart service.CartSnapshot `json:"cart"`
}

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	s := sessionFromContext(r.Context())
	httputil.WriteData(w, http.StatusOK, s.Cart.Snapshot())
}

// ClearCart handles DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	s := sessionFromContext(r.Context())
	s.Cart.Clear(r.Context())
	httputil.WriteData(w, http.StatusOK, s.Cart.Snapshot())
}

// AddItem handles POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	ctx := r.Context()
	p, err := h.product(r, req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	in, err := cartInput(p, req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	s := sessionFromContext(ctx)
	line, err := s.Cart.AddItem(ctx, in, quantity)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	logger.FromContextOr(ctx, h.logger).InfoContext(ctx, "added to cart",
		slog.Int64("product_id", line.ProductID),
		slog.String("size", line.Size),
		slog.Int("quantity", line.Quantity),
	)

	httputil.WriteData(w, http.StatusCreated, AddItemResponse{Line: line, Cart: s.Cart.Snapshot()})
}

func (h *CartHandler) product(r *http.Request, req AddItemRequest) (*domain.Product, error) {
	if req.ProductID > 0 {
		return h.catalog.GetByID(r.Context(), req.ProductID)
	}
	return catalog.Lookup(r.Context(), h.catalog, req.Slug)
}

// cartInput checks the selection against what the product offers and
// captures its display fields.
func cartInput(p *domain.Product, req AddItemRequest) (service.AddItemInput, error) {
	if !p.HasSize(req.Size) {
		return service.AddItemInput{}, apperrors.InvalidInput("size " + req.Size + " is not available for " + p.Name)
	}
	size := req.Size
	for _, s := range p.Sizes {
		if strings.EqualFold(s, req.Size) {
			size = s
			break
		}
	}

	var color domain.ProductColor
	switch {
	case req.Color != "":
		c, ok := p.ColorByName(req.Color)
		if !ok {
			return service.AddItemInput{}, apperrors.InvalidInput("color " + req.Color + " is not available for " + p.Name)
		}
		color = c
	case len(p.Colors) > 0:
		color = p.Colors[0]
	}

	return service.AddItemInput{
		ProductID:  p.ID,
		Name:       p.Name,
		Price:      p.Price,
		Image:      p.PrimaryImage().URL,
		Size:       size,
		Color:      color.Name,
		ColorValue: color.Value,
		Slug:       p.Slug,
	}, nil
}

// UpdateQuantity handles PUT /api/v1/cart/items/{lineId}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req UpdateQuantityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	s := sessionFromContext(r.Context())
	s.Cart.UpdateQuantity(r.Context(), chi.URLParam(r, "lineId"), *req.Quantity)
	httputil.WriteData(w, http.StatusOK, s.Cart.Snapshot())
}

// RemoveItem handles DELETE /api/v1/cart/items/{lineId}. Removing a line
// that is not in the cart succeeds and leaves the cart unchanged.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	s := sessionFromContext(r.Context())
	s.Cart.RemoveItem(r.Context(), chi.URLParam(r, "lineId"))
	httputil.WriteData(w, http.StatusOK, s.Cart.Snapshot())
}

// SetDrawer handles PUT /api/v1/cart/drawer
func (h *CartHandler) SetDrawer(w http.ResponseWriter, r *http.Request) {
	var req DrawerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	s := sessionFromContext(r.Context())
	s.Cart.SetOpen(*req.Open)
	httputil.WriteData(w, http.StatusOK, s.Cart.Snapshot())
}
