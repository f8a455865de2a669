package domain

import "github.com/shopspring/decimal"

// CartLineItem is one product, size and color selection in the cart. Display
// fields and the unit price are captured when the line is created and do not
// follow later catalog changes.
type CartLineItem struct {
	ID         string          `json:"id"`
	ProductID  int64           `json:"productId"`
	Name       string          `json:"name"`
	Image      string          `json:"image"`
	Slug       string          `json:"slug"`
	Price      decimal.Decimal `json:"price"`
	Size       string          `json:"size"`
	Color      string          `json:"color"`
	ColorValue string          `json:"colorValue"`
	Quantity   int             `json:"quantity"`
}

// LineKey identifies the selection a line represents. A cart holds at most
// one line per key.
type LineKey struct {
	ProductID int64
	Size      string
	Color     string
}

// Key returns the line's composite key.
func (l CartLineItem) Key() LineKey {
	return LineKey{ProductID: l.ProductID, Size: l.Size, Color: l.Color}
}

// Subtotal is price times quantity.
func (l CartLineItem) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is the ordered list of lines. It serializes as a bare JSON array.
type Cart []CartLineItem

// Total sums every line's subtotal. It is recomputed on each call.
func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Count is the number of units across all lines, not the number of lines.
func (c Cart) Count() int {
	n := 0
	for _, l := range c {
		n += l.Quantity
	}
	return n
}

// IndexByKey returns the index of the line for k, or -1.
func (c Cart) IndexByKey(k LineKey) int {
	for i := range c {
		if c[i].Key() == k {
			return i
		}
	}
	return -1
}

// IndexByID returns the index of the line with the given id, or -1.
func (c Cart) IndexByID(id string) int {
	for i := range c {
		if c[i].ID == id {
			return i
		}
	}
	return -1
}

// Clone returns an independent copy.
func (c Cart) Clone() Cart {
	if c == nil {
		return Cart{}
	}
	out := make(Cart, len(c))
	copy(out, c)
	return out
}
