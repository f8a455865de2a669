package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/natusdeed/fashion-site-sub000/internal/domain"
	"github.com/natusdeed/fashion-site-sub000/internal/share"
	"github.com/natusdeed/fashion-site-sub000/internal/store"
	"github.com/natusdeed/fashion-site-sub000/internal/store/memory"
	apperrors "github.com/natusdeed/fashion-site-sub000/pkg/errors"
	"github.com/natusdeed/fashion-site-sub000/pkg/logger"
)

const wishlistKey = "lola-drip-wishlist"

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestWishlist(t *testing.T, kv store.KV, clock *fakeClock) *WishlistService {
	t.Helper()
	adapter := store.NewAdapter[domain.Wishlist](kv, logger.Discard())
	return NewWishlistService(adapter, wishlistKey, "https://loladrip.com", logger.Discard(), WithClock(clock.now))
}

func product(id int64, name string) AddWishlistItemInput {
	orig := decimal.RequireFromString("120.00")
	return AddWishlistItemInput{
		ProductID:     id,
		Name:          name,
		Price:         decimal.RequireFromString("89.00"),
		OriginalPrice: &orig,
		IsOnSale:      true,
		Category:      "Outerwear",
		ImageURL:      "/images/" + name + ".jpg",
		ImageAlt:      name,
		Slug:          "slug-" + name,
	}
}

func startClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func TestWishlist_AddItem(t *testing.T) {
	clock := startClock()
	w := newTestWishlist(t, memory.New(), clock)

	added, err := w.AddItem(context.Background(), product(42, "Denim Jacket"))

	require.NoError(t, err)
	assert.True(t, added)
	assert.True(t, w.Contains(42))
	assert.Equal(t, 1, w.Count())
	item := w.Items()[0]
	assert.Equal(t, clock.t.UnixMilli(), item.AddedAt)
	assert.True(t, item.IsOnSale)
	assert.Equal(t, "Outerwear", item.Category)
}

func TestWishlist_DuplicateAddIsIdempotent(t *testing.T) {
	clock := startClock()
	w := newTestWishlist(t, memory.New(), clock)
	ctx := context.Background()

	_, err := w.AddItem(ctx, product(42, "Denim Jacket"))
	require.NoError(t, err)
	first := w.Items()[0].AddedAt

	notified := 0
	w.Subscribe(func(WishlistSnapshot) { notified++ })
	clock.advance(time.Hour)
	renamed := product(42, "Renamed Jacket")
	added, err := w.AddItem(ctx, renamed)

	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, 1, w.Count())
	assert.Equal(t, first, w.Items()[0].AddedAt)
	assert.Equal(t, "Denim Jacket", w.Items()[0].Name)
	assert.Zero(t, notified)
}

func TestWishlist_AddRejectsInvalid(t *testing.T) {
	w := newTestWishlist(t, memory.New(), startClock())
	ctx := context.Background()

	_, err := w.AddItem(ctx, AddWishlistItemInput{ProductID: 0, Name: "x"})
	require.Error(t, err)

	_, err = w.AddItem(ctx, AddWishlistItemInput{ProductID: 1})
	require.Error(t, err)

	neg := product(1, "x")
	neg.Price = decimal.NewFromInt(-1)
	_, err = w.AddItem(ctx, neg)
	require.Error(t, err)

	assert.Zero(t, w.Count())
}

func TestWishlist_RemoveItem(t *testing.T) {
	w := newTestWishlist(t, memory.New(), startClock())
	ctx := context.Background()
	_, err := w.AddItem(ctx, product(1, "a"))
	require.NoError(t, err)
	_, err = w.AddItem(ctx, product(2, "b"))
	require.NoError(t, err)

	assert.True(t, w.RemoveItem(ctx, 1))
	assert.False(t, w.RemoveItem(ctx, 1))

	assert.False(t, w.Contains(1))
	assert.Equal(t, []string{"b"}, w.Items().Names())
}

func TestWishlist_Clear(t *testing.T) {
	kv := memory.New()
	w := newTestWishlist(t, kv, startClock())
	ctx := context.Background()
	_, err := w.AddItem(ctx, product(1, "a"))
	require.NoError(t, err)

	w.Clear(ctx)

	assert.Zero(t, w.Count())
	raw, err := kv.Get(ctx, wishlistKey)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(raw))
}

func TestWishlist_PersistenceRoundTrip(t *testing.T) {
	kv := memory.New()
	clock := startClock()
	ctx := context.Background()
	w := newTestWishlist(t, kv, clock)
	_, err := w.AddItem(ctx, product(3, "Silk Scarf"))
	require.NoError(t, err)
	clock.advance(time.Minute)
	plain := product(4, "Canvas Tote")
	plain.OriginalPrice = nil
	plain.IsOnSale = false
	_, err = w.AddItem(ctx, plain)
	require.NoError(t, err)

	fresh := newTestWishlist(t, kv, startClock())
	require.NoError(t, fresh.Hydrate(ctx))

	want, got := w.Items(), fresh.Items()
	require.Len(t, got, 2)
	for i := range want {
		assert.Equal(t, want[i].ProductID, got[i].ProductID)
		assert.Equal(t, want[i].AddedAt, got[i].AddedAt)
		assert.Equal(t, want[i].ImageAlt, got[i].ImageAlt)
		assert.True(t, want[i].Price.Equal(got[i].Price))
	}
	require.NotNil(t, got[0].OriginalPrice)
	assert.True(t, decimal.RequireFromString("120").Equal(*got[0].OriginalPrice))
	assert.Nil(t, got[1].OriginalPrice)
}

func TestWishlist_HydrateDropsDuplicates(t *testing.T) {
	kv := memory.New()
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, wishlistKey, []byte(`[
		{"productId":42,"name":"first","price":"1","addedAt":1},
		{"productId":42,"name":"second","price":"1","addedAt":2}
	]`)))

	w := newTestWishlist(t, kv, startClock())
	require.NoError(t, w.Hydrate(ctx))

	require.Equal(t, 1, w.Count())
	assert.Equal(t, "first", w.Items()[0].Name)
}

func TestWishlist_HydrateReadFailureKeepsPersistedItems(t *testing.T) {
	kv := memory.New()
	ctx := context.Background()
	seeded := newTestWishlist(t, kv, startClock())
	_, err := seeded.AddItem(ctx, product(1, "Denim Jacket"))
	require.NoError(t, err)

	w := newTestWishlist(t, kv, startClock())
	kv.FailWith(errors.New("connection reset"))
	require.Error(t, w.Hydrate(ctx))
	kv.FailWith(nil)

	_, err = w.AddItem(ctx, product(2, "Wrap Skirt"))
	require.NoError(t, err)
	_, err = w.AddItem(ctx, product(1, "Denim Jacket"))
	require.NoError(t, err)

	adapter := store.NewAdapter[domain.Wishlist](kv, logger.Discard())
	persisted, _, err := adapter.Load(ctx, wishlistKey)
	require.NoError(t, err)
	require.Len(t, persisted, 1)

	require.NoError(t, w.Hydrate(ctx))

	persisted, _, err = adapter.Load(ctx, wishlistKey)
	require.NoError(t, err)
	require.Len(t, persisted, 2)
	assert.Equal(t, int64(1), persisted[0].ProductID)
	assert.Equal(t, int64(2), persisted[1].ProductID)
}

func TestWishlist_ShareNative(t *testing.T) {
	w := newTestWishlist(t, memory.New(), startClock())
	ctx := context.Background()
	_, err := w.AddItem(ctx, product(1, "Denim Jacket"))
	require.NoError(t, err)

	var got share.Payload
	res, err := w.Share(ctx, share.Platform{
		Sharer: share.SharerFunc(func(_ context.Context, p share.Payload) error { got = p; return nil }),
	})

	require.NoError(t, err)
	assert.Equal(t, share.MethodNative, res.Method)
	assert.Equal(t, "https://loladrip.com/wishlist?shared=true", got.URL)
	assert.Contains(t, got.Text, "Denim Jacket")
}

func TestWishlist_ShareClipboardFallback(t *testing.T) {
	w := newTestWishlist(t, memory.New(), startClock())
	ctx := context.Background()
	_, err := w.AddItem(ctx, product(1, "Denim Jacket"))
	require.NoError(t, err)
	_, err = w.AddItem(ctx, product(2, "Silk Scarf"))
	require.NoError(t, err)

	clip := &share.Buffer{}
	res, err := w.Share(ctx, share.Platform{Clipboard: clip})

	require.NoError(t, err)
	assert.Equal(t, share.MethodClipboard, res.Method)
	assert.Contains(t, clip.String(), "Denim Jacket, Silk Scarf")
	assert.Contains(t, clip.String(), "\n\nhttps://loladrip.com/wishlist?shared=true")
}

func TestWishlist_ShareFailureIsReported(t *testing.T) {
	w := newTestWishlist(t, memory.New(), startClock())
	cancelled := errors.New("share sheet dismissed")

	_, err := w.Share(context.Background(), share.Platform{
		Sharer: share.SharerFunc(func(context.Context, share.Payload) error { return cancelled }),
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrShareFailed)
	assert.ErrorIs(t, err, cancelled)
}

func TestWishlist_ShareUnavailable(t *testing.T) {
	w := newTestWishlist(t, memory.New(), startClock())

	_, err := w.Share(context.Background(), share.Platform{})

	assert.ErrorIs(t, err, apperrors.ErrShareFailed)
	assert.ErrorIs(t, err, share.ErrUnavailable)
}

func TestWishlist_SubscribeAndClose(t *testing.T) {
	w := newTestWishlist(t, memory.New(), startClock())
	ctx := context.Background()

	var counts []int
	w.Subscribe(func(s WishlistSnapshot) { counts = append(counts, s.Count) })

	_, err := w.AddItem(ctx, product(1, "a"))
	require.NoError(t, err)
	_, err = w.AddItem(ctx, product(2, "b"))
	require.NoError(t, err)
	w.RemoveItem(ctx, 1)
	w.Clear(ctx)
	w.Clear(ctx)

	assert.Equal(t, []int{1, 2, 1, 0}, counts)

	w.Close()
	_, err = w.AddItem(ctx, product(3, "c"))
	require.NoError(t, err)
	assert.Len(t, counts, 4)
}

func TestWishlistInput_FromProduct(t *testing.T) {
	p := &domain.Product{
		ID:       5,
		Name:     "Knit Cardigan",
		Slug:     "knit-cardigan",
		Price:    decimal.RequireFromString("75"),
		Category: "Knitwear",
		Images:   []domain.ProductImage{{URL: "/c.jpg", Alt: "Cardigan in oat"}},
	}

	in := WishlistInput(p)

	assert.Equal(t, int64(5), in.ProductID)
	assert.Equal(t, "/c.jpg", in.ImageURL)
	assert.Equal(t, "Cardigan in oat", in.ImageAlt)
	assert.Equal(t, "Knitwear", in.Category)
}
