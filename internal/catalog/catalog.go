// Package catalog provides read-only product lookup for the storefront. The
// cart and wishlist copy display fields from a product at the moment it is
// added; the catalog is never consulted again for those lines.
package catalog

import (
	"context"
	"strconv"
	"strings"

	"github.com/natusdeed/fashion-site-sub000/internal/domain"
	apperrors "github.com/natusdeed/fashion-site-sub000/pkg/errors"
	"github.com/natusdeed/fashion-site-sub000/pkg/slug"
)

// Catalog looks up products. Missing products are reported with an error
// wrapping apperrors.ErrNotFound.
type Catalog interface {
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Product, error)
	List(ctx context.Context) ([]domain.Product, error)
}

// Lookup resolves ref as a numeric product id, falling back to a slug. Slugs
// are normalized first, so "Satin Slip Dress" finds "satin-slip-dress".
func Lookup(ctx context.Context, c Catalog, ref string) (*domain.Product, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, apperrors.InvalidInput("product reference is required")
	}
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		if id <= 0 {
			return nil, apperrors.NotFound("product", ref)
		}
		return c.GetByID(ctx, id)
	}
	s := slug.Generate(ref)
	if s == "" {
		return nil, apperrors.NotFound("product", ref)
	}
	return c.GetBySlug(ctx, s)
}
