package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/natusdeed/fashion-site-sub000/internal/domain"
	"github.com/natusdeed/fashion-site-sub000/internal/store"
	"github.com/natusdeed/fashion-site-sub000/internal/store/memory"
	"github.com/natusdeed/fashion-site-sub000/pkg/logger"
	"github.com/natusdeed/fashion-site-sub000/pkg/validator"
)

const cartKey = "lola-drip-cart"

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("L%d", n)
	}
}

func newTestCart(t *testing.T, kv store.KV) *CartService {
	t.Helper()
	adapter := store.NewAdapter[domain.Cart](kv, logger.Discard())
	return NewCartService(adapter, cartKey, logger.Discard(), WithLineIDs(sequentialIDs()))
}

func dress(price string) AddItemInput {
	return AddItemInput{
		ProductID:  1,
		Name:       "Satin Slip Dress",
		Price:      decimal.RequireFromString(price),
		Image:      "/images/slip-dress.jpg",
		Size:       "M",
		Color:      "Champagne",
		ColorValue: "#F7E7CE",
		Slug:       "satin-slip-dress",
	}
}

func TestCart_EmptyCart(t *testing.T) {
	c := newTestCart(t, memory.New())

	assert.Equal(t, 0, c.Count())
	assert.True(t, c.Total().IsZero())
	assert.Empty(t, c.Items())
	assert.False(t, c.IsOpen())
}

func TestCart_AddItemCreatesLine(t *testing.T) {
	c := newTestCart(t, memory.New())

	line, err := c.AddItem(context.Background(), dress("59.00"), 1)

	require.NoError(t, err)
	assert.Equal(t, "L1", line.ID)
	assert.Equal(t, 1, line.Quantity)
	assert.Equal(t, "Champagne", line.Color)
	assert.Equal(t, "#F7E7CE", line.ColorValue)
	assert.Equal(t, "satin-slip-dress", line.Slug)
	assert.Len(t, c.Items(), 1)
}

func TestCart_AddSameSelectionMerges(t *testing.T) {
	for _, q := range [][2]int{{1, 1}, {2, 3}, {5, 1}} {
		t.Run(fmt.Sprintf("%d+%d", q[0], q[1]), func(t *testing.T) {
			c := newTestCart(t, memory.New())
			ctx := context.Background()

			first, err := c.AddItem(ctx, dress("59.00"), q[0])
			require.NoError(t, err)
			second, err := c.AddItem(ctx, dress("59.00"), q[1])
			require.NoError(t, err)

			items := c.Items()
			require.Len(t, items, 1)
			assert.Equal(t, first.ID, second.ID)
			assert.Equal(t, q[0]+q[1], items[0].Quantity)
		})
	}
}

func TestCart_DifferentSizeOrColorIsNewLine(t *testing.T) {
	c := newTestCart(t, memory.New())
	ctx := context.Background()

	_, err := c.AddItem(ctx, dress("59.00"), 1)
	require.NoError(t, err)

	other := dress("59.00")
	other.Size = "L"
	_, err = c.AddItem(ctx, other, 1)
	require.NoError(t, err)

	other = dress("59.00")
	other.Color = "Black"
	_, err = c.AddItem(ctx, other, 1)
	require.NoError(t, err)

	assert.Len(t, c.Items(), 3)
	assert.Equal(t, 3, c.Count())
}

func TestCart_MergeKeepsCapturedPrice(t *testing.T) {
	c := newTestCart(t, memory.New())
	ctx := context.Background()

	_, err := c.AddItem(ctx, dress("59.00"), 1)
	require.NoError(t, err)
	_, err = c.AddItem(ctx, dress("45.00"), 1)
	require.NoError(t, err)

	assert.True(t, decimal.RequireFromString("118.00").Equal(c.Total()))
}

func TestCart_AddItemRejectsBadInput(t *testing.T) {
	c := newTestCart(t, memory.New())
	ctx := context.Background()

	noSize := dress("10")
	noSize.Size = ""
	_, err := c.AddItem(ctx, noSize, 1)
	var valErr *validator.ValidationError
	require.True(t, errors.As(err, &valErr))
	assert.Contains(t, valErr.Fields(), "size")

	noProduct := dress("10")
	noProduct.ProductID = 0
	_, err = c.AddItem(ctx, noProduct, 1)
	require.Error(t, err)

	_, err = c.AddItem(ctx, dress("-1"), 1)
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Fields(), "price")

	_, err = c.AddItem(ctx, dress("10"), 0)
	require.Error(t, err)

	assert.Empty(t, c.Items())
}

func TestCart_RemoveItem(t *testing.T) {
	c := newTestCart(t, memory.New())
	ctx := context.Background()
	line, err := c.AddItem(ctx, dress("10"), 2)
	require.NoError(t, err)

	assert.True(t, c.RemoveItem(ctx, line.ID))
	assert.Empty(t, c.Items())
	assert.Equal(t, 0, c.Count())
}

func TestCart_RemoveMissingIsNoop(t *testing.T) {
	kv := memory.New()
	c := newTestCart(t, kv)
	ctx := context.Background()
	_, err := c.AddItem(ctx, dress("10"), 2)
	require.NoError(t, err)
	before := c.Items()

	calls := 0
	c.Subscribe(func(CartSnapshot) { calls++ })

	assert.NotPanics(t, func() { assert.False(t, c.RemoveItem(ctx, "does-not-exist")) })
	assert.Equal(t, before, c.Items())
	assert.Zero(t, calls)
}

func TestCart_UpdateQuantityFloorRemoves(t *testing.T) {
	for _, q := range []int{0, -5} {
		t.Run(fmt.Sprint(q), func(t *testing.T) {
			c := newTestCart(t, memory.New())
			ctx := context.Background()
			keep, err := c.AddItem(ctx, dress("10"), 1)
			require.NoError(t, err)
			other := dress("20")
			other.Size = "S"
			gone, err := c.AddItem(ctx, other, 3)
			require.NoError(t, err)
			require.Equal(t, 4, c.Count())

			assert.True(t, c.UpdateQuantity(ctx, gone.ID, q))

			items := c.Items()
			require.Len(t, items, 1)
			assert.Equal(t, keep.ID, items[0].ID)
			assert.Equal(t, 1, c.Count())
		})
	}
}

func TestCart_UpdateQuantityMixed(t *testing.T) {
	c := newTestCart(t, memory.New())
	ctx := context.Background()
	line, err := c.AddItem(ctx, dress("10"), 2)
	require.NoError(t, err)
	require.Equal(t, "L1", line.ID)
	before := c.Count()

	assert.True(t, c.UpdateQuantity(ctx, "L1", 5))

	assert.Equal(t, 5, c.Items()[0].Quantity)
	assert.Equal(t, before+3, c.Count())
}

func TestCart_UpdateQuantityMissingLine(t *testing.T) {
	c := newTestCart(t, memory.New())
	assert.False(t, c.UpdateQuantity(context.Background(), "nope", 3))
	assert.False(t, c.UpdateQuantity(context.Background(), "nope", 0))
}

func TestCart_TotalExact(t *testing.T) {
	c := newTestCart(t, memory.New())
	ctx := context.Background()
	_, err := c.AddItem(ctx, dress("10.00"), 3)
	require.NoError(t, err)
	jacket := dress("25.50")
	jacket.ProductID = 2
	_, err = c.AddItem(ctx, jacket, 2)
	require.NoError(t, err)

	assert.True(t, decimal.RequireFromString("81.00").Equal(c.Total()), "got %s", c.Total())
}

func TestCart_TotalRoundTripsAfterAddRemove(t *testing.T) {
	c := newTestCart(t, memory.New())
	ctx := context.Background()
	_, err := c.AddItem(ctx, dress("19.99"), 3)
	require.NoError(t, err)
	before := c.Total()

	for i := 0; i < 50; i++ {
		tee := dress("0.10")
		tee.ProductID = 99
		line, err := c.AddItem(ctx, tee, 7)
		require.NoError(t, err)
		require.True(t, c.RemoveItem(ctx, line.ID))
	}

	assert.True(t, before.Equal(c.Total()), "want %s got %s", before, c.Total())
	assert.Equal(t, "59.97", c.Total().StringFixed(2))
}

func TestCart_PersistenceRoundTrip(t *testing.T) {
	kv := memory.New()
	ctx := context.Background()
	c := newTestCart(t, kv)

	_, err := c.AddItem(ctx, dress("59.00"), 2)
	require.NoError(t, err)
	blazer := dress("149.50")
	blazer.ProductID = 7
	blazer.Name = "Linen Blazer"
	_, err = c.AddItem(ctx, blazer, 1)
	require.NoError(t, err)
	want := c.Items()

	fresh := newTestCart(t, kv)
	require.NoError(t, fresh.Hydrate(ctx))

	got := fresh.Items()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID)
		assert.Equal(t, want[i].Name, got[i].Name)
		assert.Equal(t, want[i].Quantity, got[i].Quantity)
		assert.True(t, want[i].Price.Equal(got[i].Price))
	}
	assert.True(t, c.Total().Equal(fresh.Total()))
}

func TestCart_DrawerFlagIsNotPersisted(t *testing.T) {
	kv := memory.New()
	ctx := context.Background()
	c := newTestCart(t, kv)
	_, err := c.AddItem(ctx, dress("10"), 1)
	require.NoError(t, err)

	c.SetOpen(true)
	assert.True(t, c.IsOpen())

	fresh := newTestCart(t, kv)
	require.NoError(t, fresh.Hydrate(ctx))
	assert.False(t, fresh.IsOpen())
	assert.Len(t, fresh.Items(), 1)
}

func TestCart_PersistenceFailureDoesNotBlockState(t *testing.T) {
	kv := memory.New()
	kv.FailWith(errors.New("quota exceeded"))
	c := newTestCart(t, kv)
	ctx := context.Background()

	line, err := c.AddItem(ctx, dress("10"), 2)
	require.NoError(t, err)
	assert.True(t, c.UpdateQuantity(ctx, line.ID, 4))

	assert.Equal(t, 4, c.Count())
	assert.Empty(t, kv.Keys())
}

func TestCart_HydrateMissingOrCorrupt(t *testing.T) {
	ctx := context.Background()

	empty := newTestCart(t, memory.New())
	require.NoError(t, empty.Hydrate(ctx))
	assert.Empty(t, empty.Items())

	kv := memory.New()
	require.NoError(t, kv.Set(ctx, cartKey, []byte("not json")))
	corrupt := newTestCart(t, kv)
	require.NoError(t, corrupt.Hydrate(ctx))
	assert.Empty(t, corrupt.Items())
}

func TestCart_HydrateReadFailureKeepsPersistedLines(t *testing.T) {
	kv := memory.New()
	ctx := context.Background()
	seeded := newTestCart(t, kv)
	_, err := seeded.AddItem(ctx, dress("59.00"), 2)
	require.NoError(t, err)

	adapter := store.NewAdapter[domain.Cart](kv, logger.Discard())
	c := NewCartService(adapter, cartKey, logger.Discard(), WithLineIDs(func() string { return "X1" }))
	kv.FailWith(errors.New("connection reset"))
	require.Error(t, c.Hydrate(ctx))
	kv.FailWith(nil)

	small := dress("59.00")
	small.Size = "S"
	_, err = c.AddItem(ctx, small, 1)
	require.NoError(t, err)

	persisted, ok, err := adapter.Load(ctx, cartKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, persisted, 1)
	assert.Equal(t, 2, persisted[0].Quantity)

	require.NoError(t, c.Hydrate(ctx))

	assert.Equal(t, 3, c.Count())
	persisted, _, err = adapter.Load(ctx, cartKey)
	require.NoError(t, err)
	require.Len(t, persisted, 2)
	assert.Equal(t, "M", persisted[0].Size)
	assert.Equal(t, "S", persisted[1].Size)
}

func TestCart_HydrateRecoveryMergesMatchingLine(t *testing.T) {
	kv := memory.New()
	ctx := context.Background()
	seeded := newTestCart(t, kv)
	_, err := seeded.AddItem(ctx, dress("59.00"), 2)
	require.NoError(t, err)

	c := newTestCart(t, kv)
	kv.FailWith(errors.New("timeout"))
	require.Error(t, c.Hydrate(ctx))
	kv.FailWith(nil)
	_, err = c.AddItem(ctx, dress("59.00"), 1)
	require.NoError(t, err)

	var notified []CartSnapshot
	c.Subscribe(func(s CartSnapshot) { notified = append(notified, s) })
	require.NoError(t, c.Hydrate(ctx))

	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
	require.Len(t, notified, 1)
	assert.Equal(t, 3, notified[0].Count)
}

func TestCart_HydrateNormalizes(t *testing.T) {
	kv := memory.New()
	ctx := context.Background()
	raw := `[
		{"id":"a","productId":1,"name":"Dress","price":"10","size":"M","color":"Red","quantity":1},
		{"id":"b","productId":1,"name":"Dress","price":"10","size":"M","color":"Red","quantity":2},
		{"id":"c","productId":2,"name":"Tee","price":"5","size":"S","color":"","quantity":0}
	]`
	require.NoError(t, kv.Set(ctx, cartKey, []byte(raw)))

	c := newTestCart(t, kv)
	require.NoError(t, c.Hydrate(ctx))

	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "a", items[0].ID)
	assert.Equal(t, 3, items[0].Quantity)
}

func TestCart_Clear(t *testing.T) {
	kv := memory.New()
	ctx := context.Background()
	c := newTestCart(t, kv)
	_, err := c.AddItem(ctx, dress("10"), 1)
	require.NoError(t, err)

	c.Clear(ctx)

	assert.Empty(t, c.Items())
	raw, err := kv.Get(ctx, cartKey)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(raw))
}

func TestCart_ItemsIsACopy(t *testing.T) {
	c := newTestCart(t, memory.New())
	_, err := c.AddItem(context.Background(), dress("10"), 1)
	require.NoError(t, err)

	items := c.Items()
	items[0].Quantity = 99

	assert.Equal(t, 1, c.Count())
}

func TestCart_SubscribersSeeEveryChangeInOrder(t *testing.T) {
	c := newTestCart(t, memory.New())
	ctx := context.Background()

	var counts []int
	var opens []bool
	unsubscribe := c.Subscribe(func(s CartSnapshot) {
		counts = append(counts, s.Count)
		opens = append(opens, s.IsOpen)
	})

	line, err := c.AddItem(ctx, dress("10"), 1)
	require.NoError(t, err)
	c.UpdateQuantity(ctx, line.ID, 3)
	c.SetOpen(true)
	c.SetOpen(true)
	c.RemoveItem(ctx, line.ID)

	assert.Equal(t, []int{1, 3, 3, 0}, counts)
	assert.Equal(t, []bool{false, false, true, true}, opens)

	unsubscribe()
	unsubscribe()
	_, err = c.AddItem(ctx, dress("10"), 1)
	require.NoError(t, err)
	assert.Len(t, counts, 4)
}

func TestCart_SubscriberCanReadContainer(t *testing.T) {
	c := newTestCart(t, memory.New())
	var seen decimal.Decimal
	c.Subscribe(func(CartSnapshot) { seen = c.Total() })

	_, err := c.AddItem(context.Background(), dress("12.50"), 2)
	require.NoError(t, err)

	assert.Equal(t, "25", seen.String())
}

func TestCart_ConcurrentAddsMerge(t *testing.T) {
	c := newTestCart(t, memory.New())
	c.newID = func() string { return "line" }
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.AddItem(ctx, dress("1.00"), 1)
		}()
	}
	wg.Wait()

	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 50, items[0].Quantity)
	assert.Equal(t, "50", c.Total().String())
}
