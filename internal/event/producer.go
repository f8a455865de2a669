// Package event publishes cart and wishlist change events. Events are
// queued by container subscribers and sent by a background loop, so a slow
// or unavailable broker never delays a cart mutation. Publish failures are
// logged and dropped.
package event

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"github.com/natusdeed/fashion-site-sub000/internal/domain"
	"github.com/natusdeed/fashion-site-sub000/internal/service"
	"github.com/natusdeed/fashion-site-sub000/internal/session"
	pkgkafka "github.com/natusdeed/fashion-site-sub000/pkg/kafka"
)

// Kafka topics for storefront state changes.
const (
	TopicCartUpdated     = "storefront.cart.updated"
	TopicWishlistUpdated = "storefront.wishlist.updated"
)

// AggregateTypeSession is the aggregate type of every storefront event; the
// aggregate id is the session id.
const AggregateTypeSession = "session"

// SourceStorefront identifies events from this service.
const SourceStorefront = "storefront"

var droppedEvents = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "storefront_events_dropped_total",
		Help: "Change events dropped before reaching the broker",
	},
	[]string{"topic", "reason"},
)

// CartUpdatedData is the payload of a cart.updated event.
type CartUpdatedData struct {
	SessionID string          `json:"session_id"`
	Items     []CartLineData  `json:"items"`
	ItemCount int             `json:"item_count"`
	Total     decimal.Decimal `json:"total"`
}

// CartLineData is one line within a cart event.
type CartLineData struct {
	LineID    string          `json:"line_id"`
	ProductID int64           `json:"product_id"`
	Size      string          `json:"size"`
	Color     string          `json:"color"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// WishlistUpdatedData is the payload of a wishlist.updated event.
type WishlistUpdatedData struct {
	SessionID  string  `json:"session_id"`
	ProductIDs []int64 `json:"product_ids"`
	ItemCount  int     `json:"item_count"`
}

type outgoing struct {
	topic string
	event *pkgkafka.Event
}

// Producer queues and publishes change events.
type Producer struct {
	pub     pkgkafka.Publisher
	logger  *slog.Logger
	queue   chan outgoing
	timeout time.Duration
}

// Option customises a Producer.
type Option func(*Producer)

// WithQueueSize sets how many events may wait for the broker before new
// ones are dropped.
func WithQueueSize(n int) Option {
	return func(p *Producer) { p.queue = make(chan outgoing, n) }
}

// WithPublishTimeout bounds each publish call.
func WithPublishTimeout(d time.Duration) Option {
	return func(p *Producer) { p.timeout = d }
}

// NewProducer creates a producer publishing through pub.
func NewProducer(pub pkgkafka.Publisher, logger *slog.Logger, opts ...Option) *Producer {
	p := &Producer{
		pub:     pub,
		logger:  logger,
		queue:   make(chan outgoing, 256),
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Hook subscribes to a session's containers. Drawer toggles alone do not
// produce cart events.
func (p *Producer) Hook() session.Hook {
	return func(s *session.Session) {
		last := s.Cart.Items()
		s.Cart.Subscribe(func(snap service.CartSnapshot) {
			if sameLines(last, snap.Items) {
				return
			}
			last = snap.Items
			p.CartUpdated(s.ID, snap)
		})
		s.Wishlist.Subscribe(func(snap service.WishlistSnapshot) {
			p.WishlistUpdated(s.ID, snap)
		})
	}
}

// CartUpdated queues a cart.updated event.
func (p *Producer) CartUpdated(sessionID string, snap service.CartSnapshot) {
	lines := make([]CartLineData, len(snap.Items))
	for i, l := range snap.Items {
		lines[i] = CartLineData{
			LineID:    l.ID,
			ProductID: l.ProductID,
			Size:      l.Size,
			Color:     l.Color,
			Price:     l.Price,
			Quantity:  l.Quantity,
		}
	}
	p.enqueue(TopicCartUpdated, sessionID, CartUpdatedData{
		SessionID: sessionID,
		Items:     lines,
		ItemCount: snap.Count,
		Total:     snap.Total,
	})
}

// WishlistUpdated queues a wishlist.updated event.
func (p *Producer) WishlistUpdated(sessionID string, snap service.WishlistSnapshot) {
	ids := make([]int64, len(snap.Items))
	for i, it := range snap.Items {
		ids[i] = it.ProductID
	}
	p.enqueue(TopicWishlistUpdated, sessionID, WishlistUpdatedData{
		SessionID:  sessionID,
		ProductIDs: ids,
		ItemCount:  snap.Count,
	})
}

func (p *Producer) enqueue(topic, sessionID string, data any) {
	ev, err := pkgkafka.NewEvent(topic, sessionID, AggregateTypeSession, SourceStorefront, data)
	if err != nil {
		droppedEvents.WithLabelValues(topic, "encode").Inc()
		p.logger.Error("failed to build event",
			slog.String("topic", topic),
			slog.String("error", err.Error()),
		)
		return
	}

	select {
	case p.queue <- outgoing{topic: topic, event: ev}:
	default:
		droppedEvents.WithLabelValues(topic, "queue_full").Inc()
		p.logger.Warn("event queue full, dropping event",
			slog.String("topic", topic),
			slog.String("session_id", sessionID),
		)
	}
}

// Run publishes queued events until ctx is done, then makes one last pass
// over whatever is still queued.
func (p *Producer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.drain()
			return
		case msg := <-p.queue:
			p.publish(context.Background(), msg)
		}
	}
}

func (p *Producer) drain() {
	for {
		select {
		case msg := <-p.queue:
			p.publish(context.Background(), msg)
		default:
			return
		}
	}
}

func (p *Producer) publish(ctx context.Context, msg outgoing) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.pub.Publish(ctx, msg.topic, msg.event); err != nil {
		droppedEvents.WithLabelValues(msg.topic, "publish").Inc()
		p.logger.WarnContext(ctx, "failed to publish event",
			slog.String("topic", msg.topic),
			slog.String("event_id", msg.event.EventID),
			slog.String("error", err.Error()),
		)
		return
	}
	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", msg.topic),
		slog.String("aggregate_id", msg.event.AggregateID),
	)
}

func sameLines(a, b domain.Cart) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.ID != y.ID || x.Quantity != y.Quantity || !x.Price.Equal(y.Price) {
			return false
		}
	}
	return true
}
