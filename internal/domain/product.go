package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Product is a read-only catalog entry.
type Product struct {
	ID            int64            `json:"id" validate:"gt=0"`
	Name          string           `json:"name" validate:"required,max=200"`
	Slug          string           `json:"slug" validate:"required,slug,max=200"`
	Price         decimal.Decimal  `json:"price" validate:"gte=0"`
	OriginalPrice *decimal.Decimal `json:"originalPrice,omitempty" validate:"omitnil,gte=0"`
	IsOnSale      bool             `json:"isOnSale"`
	Category      string           `json:"category" validate:"max=100"`
	Images        []ProductImage   `json:"images" validate:"dive"`
	Sizes         []string         `json:"sizes" validate:"dive,required,max=20"`
	Colors        []ProductColor   `json:"colors" validate:"dive"`
}

// ProductImage is one gallery image.
type ProductImage struct {
	URL string `json:"url" validate:"required"`
	Alt string `json:"alt"`
}

// ProductColor pairs a display name with a CSS color value.
type ProductColor struct {
	Name  string `json:"name" validate:"required,max=50"`
	Value string `json:"value"`
}

// PrimaryImage returns the first gallery image, or a zero image.
func (p *Product) PrimaryImage() ProductImage {
	if len(p.Images) == 0 {
		return ProductImage{}
	}
	return p.Images[0]
}

// HasSize reports whether size is offered. Comparison ignores case.
func (p *Product) HasSize(size string) bool {
	for _, s := range p.Sizes {
		if strings.EqualFold(s, size) {
			return true
		}
	}
	return false
}

// ColorByName finds a color by display name, ignoring case.
func (p *Product) ColorByName(name string) (ProductColor, bool) {
	for _, c := range p.Colors {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return ProductColor{}, false
}

// WishlistItem snapshots the product's display fields for the wishlist.
func (p *Product) WishlistItem(addedAt int64) WishlistItem {
	img := p.PrimaryImage()
	alt := img.Alt
	if alt == "" {
		alt = p.Name
	}
	return WishlistItem{
		ProductID:     p.ID,
		Name:          p.Name,
		Price:         p.Price,
		OriginalPrice: p.OriginalPrice,
		IsOnSale:      p.IsOnSale,
		Category:      p.Category,
		ImageURL:      img.URL,
		ImageAlt:      alt,
		Slug:          p.Slug,
		AddedAt:       addedAt,
	}
}
