package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/natusdeed/fashion-site-sub000/internal/domain"
	"github.com/natusdeed/fashion-site-sub000/internal/share"
	"github.com/natusdeed/fashion-site-sub000/internal/store"
	apperrors "github.com/natusdeed/fashion-site-sub000/pkg/errors"
	"github.com/natusdeed/fashion-site-sub000/pkg/logger"
	"github.com/natusdeed/fashion-site-sub000/pkg/validator"
)

// AddWishlistItemInput is the product being saved.
type AddWishlistItemInput struct {
	ProductID     int64            `json:"productId" validate:"gt=0"`
	Name          string           `json:"name" validate:"required,max=200"`
	Price         decimal.Decimal  `json:"price" validate:"gte=0"`
	OriginalPrice *decimal.Decimal `json:"originalPrice,omitempty" validate:"omitnil,gte=0"`
	IsOnSale      bool             `json:"isOnSale"`
	Category      string           `json:"category"`
	ImageURL      string           `json:"imageUrl"`
	ImageAlt      string           `json:"imageAlt"`
	Slug          string           `json:"slug"`
}

// WishlistInput converts a catalog product into wishlist input.
func WishlistInput(p *domain.Product) AddWishlistItemInput {
	item := p.WishlistItem(0)
	return AddWishlistItemInput{
		ProductID:     item.ProductID,
		Name:          item.Name,
		Price:         item.Price,
		OriginalPrice: item.OriginalPrice,
		IsOnSale:      item.IsOnSale,
		Category:      item.Category,
		ImageURL:      item.ImageURL,
		ImageAlt:      item.ImageAlt,
		Slug:          item.Slug,
	}
}

// WishlistSnapshot is a read-only view of the wishlist.
type WishlistSnapshot struct {
	Items domain.Wishlist `json:"items"`
	Count int             `json:"count"`
}

// WishlistService owns one session's saved products, unique by product id.
type WishlistService struct {
	mu       sync.Mutex
	items    domain.Wishlist
	detached bool

	store  *store.Adapter[domain.Wishlist]
	key    string
	origin string
	logger *slog.Logger
	now    func() time.Time

	subs observers[WishlistSnapshot]
}

// WishlistOption customises a WishlistService.
type WishlistOption func(*WishlistService)

// WithClock replaces the clock used for addedAt.
func WithClock(now func() time.Time) WishlistOption {
	return func(s *WishlistService) { s.now = now }
}

// NewWishlistService creates an empty wishlist persisted under key. origin
// is the storefront origin used to build share links.
func NewWishlistService(adapter *store.Adapter[domain.Wishlist], key, origin string, logger *slog.Logger, opts ...WishlistOption) *WishlistService {
	s := &WishlistService{
		items:  domain.Wishlist{},
		store:  adapter,
		key:    key,
		origin: origin,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hydrate replaces the in-memory wishlist with the persisted one, keeping
// the first occurrence of any duplicated product. A read failure is
// returned and pauses persistence the same way as for the cart; products
// saved in the meantime are appended once the store is readable again.
func (s *WishlistService) Hydrate(ctx context.Context) error {
	loaded, ok, err := s.store.Load(ctx, s.key)
	if err != nil {
		s.mu.Lock()
		s.detached = true
		s.mu.Unlock()
		return err
	}

	items := make(domain.Wishlist, 0, len(loaded))
	for _, it := range loaded {
		if it.ProductID <= 0 || items.Contains(it.ProductID) {
			continue
		}
		items = append(items, it)
	}
	if len(items) != len(loaded) {
		logger.FromContextOr(ctx, s.logger).WarnContext(ctx, "normalized persisted wishlist",
			slog.Int("loaded", len(loaded)),
			slog.Int("kept", len(items)),
		)
	}

	s.mu.Lock()
	recovered := s.detached && len(s.items) > 0
	s.detached = false
	if !ok && !recovered {
		s.mu.Unlock()
		return nil
	}
	if recovered {
		for _, it := range s.items {
			if !items.Contains(it.ProductID) {
				items = append(items, it)
			}
		}
		s.items = items
		s.commitLocked(ctx)
		return nil
	}
	s.items = items
	s.subs.enqueue(s.snapshotLocked())
	s.mu.Unlock()
	s.subs.deliver()
	return nil
}

// AddItem saves the product. Saving a product that is already present
// changes nothing, including its addedAt, and reports false.
func (s *WishlistService) AddItem(ctx context.Context, in AddWishlistItemInput) (bool, error) {
	if err := validator.Validate(in); err != nil {
		return false, err
	}

	s.mu.Lock()
	if s.items.Contains(in.ProductID) {
		s.mu.Unlock()
		return false, nil
	}
	s.items = append(s.items, domain.WishlistItem{
		ProductID:     in.ProductID,
		Name:          in.Name,
		Price:         in.Price,
		OriginalPrice: in.OriginalPrice,
		IsOnSale:      in.IsOnSale,
		Category:      in.Category,
		ImageURL:      in.ImageURL,
		ImageAlt:      in.ImageAlt,
		Slug:          in.Slug,
		AddedAt:       s.now().UnixMilli(),
	})
	s.commitLocked(ctx)

	logger.FromContextOr(ctx, s.logger).DebugContext(ctx, "wishlist item added",
		slog.Int64("product_id", in.ProductID),
	)
	return true, nil
}

// RemoveItem drops the product if saved and reports whether it was.
func (s *WishlistService) RemoveItem(ctx context.Context, productID int64) bool {
	s.mu.Lock()
	i := s.items.IndexOf(productID)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.commitLocked(ctx)
	return true
}

// Contains reports whether the product is saved.
func (s *WishlistService) Contains(productID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.Contains(productID)
}

// Count is the number of saved products.
func (s *WishlistService) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Items returns a copy of the saved products, oldest first.
func (s *WishlistService) Items() domain.Wishlist {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.Clone()
}

// Snapshot returns the full wishlist view.
func (s *WishlistService) Snapshot() WishlistSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Clear removes every saved product.
func (s *WishlistService) Clear(ctx context.Context) {
	s.mu.Lock()
	if len(s.items) == 0 {
		s.mu.Unlock()
		return
	}
	s.items = domain.Wishlist{}
	s.commitLocked(ctx)
}

// Share sends a link to the wishlist and a summary of the saved item names
// through the platform. Unlike persistence, a failed share is returned to
// the caller as an ErrShareFailed error so it can be shown to the user.
func (s *WishlistService) Share(ctx context.Context, platform share.Platform) (share.Result, error) {
	s.mu.Lock()
	payload := share.NewPayload(s.origin, s.items.Names())
	s.mu.Unlock()

	res, err := share.Do(ctx, platform, payload)
	if err != nil {
		logger.FromContextOr(ctx, s.logger).InfoContext(ctx, "wishlist share failed",
			slog.String("error", err.Error()),
		)
		return share.Result{}, apperrors.ShareFailed("could not share wishlist", err)
	}
	return res, nil
}

// Subscribe registers fn to receive a snapshot after every change.
func (s *WishlistService) Subscribe(fn func(WishlistSnapshot)) (unsubscribe func()) {
	return s.subs.subscribe(fn)
}

// Close drops all subscribers.
func (s *WishlistService) Close() {
	s.subs.reset()
}

func (s *WishlistService) snapshotLocked() WishlistSnapshot {
	return WishlistSnapshot{Items: s.items.Clone(), Count: len(s.items)}
}

func (s *WishlistService) commitLocked(ctx context.Context) {
	if s.detached {
		logger.FromContextOr(ctx, s.logger).DebugContext(ctx, "wishlist not persisted until the store is readable")
	} else {
		s.store.Save(ctx, s.key, s.items)
	}
	s.subs.enqueue(s.snapshotLocked())
	s.mu.Unlock()
	s.subs.deliver()
}
