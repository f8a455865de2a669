// Package memory is an in-process catalog used for local development and
// tests.
package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/natusdeed/fashion-site-sub000/internal/domain"
	apperrors "github.com/natusdeed/fashion-site-sub000/pkg/errors"
	"github.com/natusdeed/fashion-site-sub000/pkg/slug"
)

// Catalog holds products in memory, indexed by id and slug.
type Catalog struct {
	mu     sync.RWMutex
	byID   map[int64]domain.Product
	bySlug map[string]int64
}

// New creates a catalog holding products. A product without a slug gets one
// generated from its name.
func New(products ...domain.Product) *Catalog {
	c := &Catalog{
		byID:   make(map[int64]domain.Product, len(products)),
		bySlug: make(map[string]int64, len(products)),
	}
	for _, p := range products {
		c.Put(p)
	}
	return c
}

// Put adds or replaces a product.
func (c *Catalog) Put(p domain.Product) {
	if p.Slug == "" {
		p.Slug = slug.Generate(p.Name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.byID[p.ID]; ok {
		delete(c.bySlug, old.Slug)
	}
	c.byID[p.ID] = p
	c.bySlug[p.Slug] = p.ID
}

// GetByID returns a copy of the product with id.
func (c *Catalog) GetByID(_ context.Context, id int64) (*domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.byID[id]
	if !ok {
		return nil, apperrors.NotFound("product", strconv.FormatInt(id, 10))
	}
	return &p, nil
}

// GetBySlug returns a copy of the product with slug s.
func (c *Catalog) GetBySlug(_ context.Context, s string) (*domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.bySlug[s]
	if !ok {
		return nil, apperrors.NotFound("product", s)
	}
	p := c.byID[id]
	return &p, nil
}

// List returns every product ordered by id.
func (c *Catalog) List(_ context.Context) ([]domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Product, 0, len(c.byID))
	for _, p := range c.byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func pricePtr(s string) *decimal.Decimal {
	d := price(s)
	return &d
}

var standardSizes = []string{"XS", "S", "M", "L", "XL"}

// Seed returns the launch collection.
func Seed() []domain.Product {
	return []domain.Product{
		{
			ID: 1, Name: "Satin Slip Dress", Price: price("89.00"),
			OriginalPrice: pricePtr("120.00"), IsOnSale: true, Category: "Dresses",
			Images: []domain.ProductImage{{URL: "/images/products/satin-slip-dress.jpg", Alt: "Satin slip dress in champagne"}},
			Sizes:  standardSizes,
			Colors: []domain.ProductColor{{Name: "Champagne", Value: "#F7E7CE"}, {Name: "Black", Value: "#000000"}},
		},
		{
			ID: 2, Name: "Oversized Denim Jacket", Price: price("110.00"), Category: "Outerwear",
			Images: []domain.ProductImage{{URL: "/images/products/oversized-denim-jacket.jpg", Alt: "Oversized denim jacket, light wash"}},
			Sizes:  []string{"S", "M", "L"},
			Colors: []domain.ProductColor{{Name: "Light Wash", Value: "#A7C4E2"}, {Name: "Dark Wash", Value: "#2B3A55"}},
		},
		{
			ID: 3, Name: "Ribbed Knit Cardigan", Price: price("64.50"), Category: "Knitwear",
			Images: []domain.ProductImage{{URL: "/images/products/ribbed-knit-cardigan.jpg", Alt: "Ribbed knit cardigan in oat"}},
			Sizes:  standardSizes,
			Colors: []domain.ProductColor{{Name: "Oat", Value: "#DCCFB8"}, {Name: "Sage", Value: "#9CAF88"}},
		},
		{
			ID: 4, Name: "High-Rise Wide Leg Trousers", Price: price("72.00"),
			OriginalPrice: pricePtr("95.00"), IsOnSale: true, Category: "Bottoms",
			Images: []domain.ProductImage{{URL: "/images/products/high-rise-wide-leg-trousers.jpg", Alt: "Wide leg trousers in cream"}},
			Sizes:  []string{"24", "26", "28", "30", "32"},
			Colors: []domain.ProductColor{{Name: "Cream", Value: "#FFFDD0"}},
		},
		{
			ID: 5, Name: "Crème Silk Scarf", Price: price("38.00"), Category: "Accessories",
			Images: []domain.ProductImage{{URL: "/images/products/creme-silk-scarf.jpg"}},
			Sizes:  []string{"One Size"},
			Colors: []domain.ProductColor{{Name: "Ivory", Value: "#FFFFF0"}},
		},
		{
			ID: 6, Name: "Drip Logo Hoodie", Price: price("58.00"), Category: "Tops",
			Images: []domain.ProductImage{{URL: "/images/products/drip-logo-hoodie.jpg", Alt: "Drip logo hoodie in black"}},
			Sizes:  standardSizes,
			Colors: []domain.ProductColor{{Name: "Black", Value: "#000000"}, {Name: "Heather Grey", Value: "#B6B6B4"}},
		},
	}
}
