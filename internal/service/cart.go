package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/natusdeed/fashion-site-sub000/internal/domain"
	"github.com/natusdeed/fashion-site-sub000/internal/store"
	apperrors "github.com/natusdeed/fashion-site-sub000/pkg/errors"
	"github.com/natusdeed/fashion-site-sub000/pkg/logger"
	"github.com/natusdeed/fashion-site-sub000/pkg/validator"
)

// AddItemInput is the product selection being added to the cart. Display
// fields are copied onto the line as they are now.
type AddItemInput struct {
	ProductID  int64           `json:"productId" validate:"gt=0"`
	Name       string          `json:"name" validate:"required,max=200"`
	Price      decimal.Decimal `json:"price" validate:"gte=0"`
	Image      string          `json:"image"`
	Size       string          `json:"size" validate:"required,max=20"`
	Color      string          `json:"color" validate:"max=50"`
	ColorValue string          `json:"colorValue" validate:"max=50"`
	Slug       string          `json:"slug"`
}

// CartSnapshot is a read-only view handed to subscribers and API callers.
type CartSnapshot struct {
	Items  domain.Cart     `json:"items"`
	Count  int             `json:"count"`
	Total  decimal.Decimal `json:"total"`
	IsOpen bool            `json:"isOpen"`
}

// CartService owns one session's cart lines and drawer flag. Every mutation
// writes the whole cart back to the store and then notifies subscribers.
// Store failures are logged by the store adapter and never reach callers.
type CartService struct {
	mu    sync.Mutex
	lines domain.Cart
	open  bool
	// detached is set while the persisted cart could not be read.
	detached bool

	store  *store.Adapter[domain.Cart]
	key    string
	logger *slog.Logger
	newID  func() string

	subs observers[CartSnapshot]
}

// CartOption customises a CartService.
type CartOption func(*CartService)

// WithLineIDs replaces the line id generator.
func WithLineIDs(gen func() string) CartOption {
	return func(s *CartService) { s.newID = gen }
}

// NewCartService creates an empty cart persisted under key.
func NewCartService(adapter *store.Adapter[domain.Cart], key string, logger *slog.Logger, opts ...CartOption) *CartService {
	s := &CartService{
		lines:  domain.Cart{},
		store:  adapter,
		key:    key,
		logger: logger,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hydrate replaces the in-memory cart with the persisted one, if any.
// Lines with a non-positive quantity are dropped and lines sharing a key are
// merged, so a hand-edited store cannot break the cart's invariants.
//
// When the store cannot be read the error is returned and the cart stops
// writing through, so it cannot overwrite lines it never saw. A later
// successful Hydrate merges whatever was added in the meantime onto the
// persisted lines and resumes persistence.
func (s *CartService) Hydrate(ctx context.Context) error {
	loaded, ok, err := s.store.Load(ctx, s.key)
	if err != nil {
		s.mu.Lock()
		s.detached = true
		s.mu.Unlock()
		return err
	}

	lines := make(domain.Cart, 0, len(loaded))
	for _, l := range loaded {
		if l.Quantity < 1 || l.ID == "" {
			continue
		}
		lines = mergeLine(lines, l)
	}
	if len(lines) != len(loaded) {
		logger.FromContextOr(ctx, s.logger).WarnContext(ctx, "normalized persisted cart",
			slog.Int("loaded", len(loaded)),
			slog.Int("kept", len(lines)),
		)
	}

	s.mu.Lock()
	recovered := s.detached && len(s.lines) > 0
	s.detached = false
	if !ok && !recovered {
		s.mu.Unlock()
		return nil
	}
	if recovered {
		for _, l := range s.lines {
			lines = mergeLine(lines, l)
		}
		s.lines = lines
		s.commitLocked(ctx)
		return nil
	}
	s.lines = lines
	s.subs.enqueue(s.snapshotLocked())
	s.mu.Unlock()
	s.subs.deliver()
	return nil
}

// mergeLine adds l to lines, summing quantities when its key is present.
func mergeLine(lines domain.Cart, l domain.CartLineItem) domain.Cart {
	if i := lines.IndexByKey(l.Key()); i >= 0 {
		lines[i].Quantity += l.Quantity
		return lines
	}
	return append(lines, l)
}

// AddItem adds quantity units of the selection. An existing line with the
// same product, size and color is incremented; otherwise a new line with a
// fresh id is appended. Invalid input is rejected before the cart changes.
func (s *CartService) AddItem(ctx context.Context, in AddItemInput, quantity int) (domain.CartLineItem, error) {
	if err := validator.Validate(in); err != nil {
		return domain.CartLineItem{}, err
	}
	if quantity < 1 {
		return domain.CartLineItem{}, apperrors.InvalidInput("quantity must be at least 1")
	}

	s.mu.Lock()
	key := domain.LineKey{ProductID: in.ProductID, Size: in.Size, Color: in.Color}
	var line domain.CartLineItem
	if i := s.lines.IndexByKey(key); i >= 0 {
		s.lines[i].Quantity += quantity
		line = s.lines[i]
	} else {
		line = domain.CartLineItem{
			ID:         s.newID(),
			ProductID:  in.ProductID,
			Name:       in.Name,
			Image:      in.Image,
			Slug:       in.Slug,
			Price:      in.Price,
			Size:       in.Size,
			Color:      in.Color,
			ColorValue: in.ColorValue,
			Quantity:   quantity,
		}
		s.lines = append(s.lines, line)
	}
	s.commitLocked(ctx)

	logger.FromContextOr(ctx, s.logger).DebugContext(ctx, "cart item added",
		slog.String("line_id", line.ID),
		slog.Int64("product_id", line.ProductID),
		slog.Int("quantity", line.Quantity),
	)
	return line, nil
}

// RemoveItem deletes the line with lineID. Removing an unknown line is a
// no-op and reports false.
func (s *CartService) RemoveItem(ctx context.Context, lineID string) bool {
	s.mu.Lock()
	i := s.lines.IndexByID(lineID)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.lines = append(s.lines[:i], s.lines[i+1:]...)
	s.commitLocked(ctx)
	return true
}

// UpdateQuantity sets the line's quantity. A quantity below 1 removes the
// line. It reports whether the line existed.
func (s *CartService) UpdateQuantity(ctx context.Context, lineID string, quantity int) bool {
	if quantity < 1 {
		return s.RemoveItem(ctx, lineID)
	}

	s.mu.Lock()
	i := s.lines.IndexByID(lineID)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	if s.lines[i].Quantity == quantity {
		s.mu.Unlock()
		return true
	}
	s.lines[i].Quantity = quantity
	s.commitLocked(ctx)
	return true
}

// Clear empties the cart, as after a completed checkout.
func (s *CartService) Clear(ctx context.Context) {
	s.mu.Lock()
	if len(s.lines) == 0 {
		s.mu.Unlock()
		return
	}
	s.lines = domain.Cart{}
	s.commitLocked(ctx)
}

// SetOpen shows or hides the cart drawer. The flag is session-only and is
// never persisted.
func (s *CartService) SetOpen(open bool) {
	s.mu.Lock()
	if s.open == open {
		s.mu.Unlock()
		return
	}
	s.open = open
	s.subs.enqueue(s.snapshotLocked())
	s.mu.Unlock()
	s.subs.deliver()
}

// IsOpen reports whether the cart drawer is shown.
func (s *CartService) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Total is the exact sum of price times quantity over all lines.
func (s *CartService) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lines.Total()
}

// Count is the number of units in the cart.
func (s *CartService) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lines.Count()
}

// Items returns a copy of the lines in insertion order.
func (s *CartService) Items() domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lines.Clone()
}

// Snapshot returns the full cart view.
func (s *CartService) Snapshot() CartSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn to receive a snapshot after every change. The
// returned function unsubscribes and is safe to call more than once.
func (s *CartService) Subscribe(fn func(CartSnapshot)) (unsubscribe func()) {
	return s.subs.subscribe(fn)
}

// Close drops all subscribers.
func (s *CartService) Close() {
	s.subs.reset()
}

func (s *CartService) snapshotLocked() CartSnapshot {
	return CartSnapshot{
		Items:  s.lines.Clone(),
		Count:  s.lines.Count(),
		Total:  s.lines.Total(),
		IsOpen: s.open,
	}
}

// commitLocked persists the cart, queues a notification and releases s.mu
// before delivering it.
func (s *CartService) commitLocked(ctx context.Context) {
	if s.detached {
		logger.FromContextOr(ctx, s.logger).DebugContext(ctx, "cart not persisted until the store is readable")
	} else {
		s.store.Save(ctx, s.key, s.lines)
	}
	s.subs.enqueue(s.snapshotLocked())
	s.mu.Unlock()
	s.subs.deliver()
}
