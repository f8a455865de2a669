package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/natusdeed/fashion-site-sub000/internal/service"
	"github.com/natusdeed/fashion-site-sub000/internal/session"
	"github.com/natusdeed/fashion-site-sub000/internal/store/memory"
	pkgkafka "github.com/natusdeed/fashion-site-sub000/pkg/kafka"
	"github.com/natusdeed/fashion-site-sub000/pkg/logger"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []*pkgkafka.Event
	topics []string
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, topic string, ev *pkgkafka.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.topics = append(f.topics, topic)
	f.events = append(f.events, ev)
	return nil
}

func (f *fakePublisher) snapshot() ([]string, []*pkgkafka.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.topics...), append([]*pkgkafka.Event(nil), f.events...)
}

func openSession(t *testing.T, p *Producer) *session.Session {
	t.Helper()
	m := session.NewManager(memory.New(), session.Config{
		CartKey: "cart", WishlistKey: "wishlist", Origin: "https://loladrip.com",
	}, logger.Discard(), session.WithHook(p.Hook()))
	s, err := m.Open(context.Background(), session.NewID())
	require.NoError(t, err)
	return s
}

// flush stops Run, which publishes everything still queued.
func flush(p *Producer) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.Run(ctx)
}

func TestProducer_PublishesCartAndWishlistChanges(t *testing.T) {
	pub := &fakePublisher{}
	p := NewProducer(pub, logger.Discard())
	s := openSession(t, p)
	ctx := context.Background()

	_, err := s.Cart.AddItem(ctx, service.AddItemInput{
		ProductID: 1, Name: "Slip Dress", Price: decimal.RequireFromString("89.00"), Size: "M",
	}, 2)
	require.NoError(t, err)
	_, err = s.Wishlist.AddItem(ctx, service.AddWishlistItemInput{
		ProductID: 7, Name: "Scarf", Price: decimal.RequireFromString("38"),
	})
	require.NoError(t, err)
	flush(p)

	topics, events := pub.snapshot()
	require.Equal(t, []string{TopicCartUpdated, TopicWishlistUpdated}, topics)

	var cart CartUpdatedData
	require.NoError(t, events[0].Decode(&cart))
	assert.Equal(t, s.ID, events[0].AggregateID)
	assert.Equal(t, AggregateTypeSession, events[0].AggregateType)
	assert.Equal(t, 2, cart.ItemCount)
	assert.True(t, decimal.RequireFromString("178").Equal(cart.Total))
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "M", cart.Items[0].Size)

	var wl WishlistUpdatedData
	require.NoError(t, events[1].Decode(&wl))
	assert.Equal(t, []int64{7}, wl.ProductIDs)
}

func TestProducer_SkipsDrawerOnlyChanges(t *testing.T) {
	pub := &fakePublisher{}
	p := NewProducer(pub, logger.Discard())
	s := openSession(t, p)

	s.Cart.SetOpen(true)
	s.Cart.SetOpen(false)
	flush(p)

	topics, _ := pub.snapshot()
	assert.Empty(t, topics)
}

func TestProducer_PublishFailureIsSwallowed(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	p := NewProducer(pub, logger.Discard())
	s := openSession(t, p)

	_, err := s.Wishlist.AddItem(context.Background(), service.AddWishlistItemInput{
		ProductID: 1, Name: "Tee", Price: decimal.NewFromInt(20),
	})
	require.NoError(t, err)

	assert.NotPanics(t, func() { flush(p) })
	assert.Equal(t, 1, s.Wishlist.Count())
}

func TestProducer_DropsWhenQueueFull(t *testing.T) {
	pub := &fakePublisher{}
	p := NewProducer(pub, logger.Discard(), WithQueueSize(1))

	p.WishlistUpdated("a", service.WishlistSnapshot{})
	p.WishlistUpdated("b", service.WishlistSnapshot{})
	flush(p)

	_, events := pub.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, "a", events[0].AggregateID)
}

func TestProducer_RunPublishesWhileRunning(t *testing.T) {
	pub := &fakePublisher{}
	p := NewProducer(pub, logger.Discard(), WithPublishTimeout(time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	p.CartUpdated("s1", service.CartSnapshot{})

	assert.Eventually(t, func() bool {
		topics, _ := pub.snapshot()
		return len(topics) == 1
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
