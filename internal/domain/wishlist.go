package domain

import "github.com/shopspring/decimal"

// WishlistItem is a saved product. AddedAt is epoch milliseconds and is set
// once, when the product is first saved.
type WishlistItem struct {
	ProductID     int64            `json:"productId"`
	Name          string           `json:"name"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"originalPrice,omitempty"`
	IsOnSale      bool             `json:"isOnSale"`
	Category      string           `json:"category"`
	ImageURL      string           `json:"imageUrl"`
	ImageAlt      string           `json:"imageAlt"`
	Slug          string           `json:"slug"`
	AddedAt       int64            `json:"addedAt"`
}

// Wishlist is the ordered list of saved products, oldest first.
type Wishlist []WishlistItem

// IndexOf returns the position of productID, or -1.
func (w Wishlist) IndexOf(productID int64) int {
	for i := range w {
		if w[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Contains reports whether productID is saved.
func (w Wishlist) Contains(productID int64) bool {
	return w.IndexOf(productID) >= 0
}

// Names lists item names in wishlist order.
func (w Wishlist) Names() []string {
	names := make([]string, len(w))
	for i := range w {
		names[i] = w[i].Name
	}
	return names
}

// Clone returns an independent copy.
func (w Wishlist) Clone() Wishlist {
	if w == nil {
		return Wishlist{}
	}
	out := make(Wishlist, len(w))
	copy(out, w)
	return out
}
