// Package session keeps one cart and one wishlist container per browser
// session. Containers are created and hydrated on first use and evicted
// after a period of inactivity; their persisted state outlives them.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/natusdeed/fashion-site-sub000/internal/domain"
	"github.com/natusdeed/fashion-site-sub000/internal/service"
	"github.com/natusdeed/fashion-site-sub000/internal/store"
	apperrors "github.com/natusdeed/fashion-site-sub000/pkg/errors"
	"github.com/natusdeed/fashion-site-sub000/pkg/logger"
)

var (
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storefront_sessions_active",
		Help: "Sessions with live cart and wishlist containers",
	})
	evictedSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_sessions_evicted_total",
		Help: "Sessions evicted after sitting idle",
	})
	hydrateFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_session_hydrate_failures_total",
		Help: "Session opens whose persisted state could not be read",
	})
)

// Config controls container construction.
type Config struct {
	CartKey     string
	WishlistKey string
	// Origin is the public site origin used in wishlist share links.
	Origin  string
	IdleTTL time.Duration
}

// Session is an open browser session.
type Session struct {
	ID       string
	Cart     *service.CartService
	Wishlist *service.WishlistService
}

// Hook runs once for every newly opened session, after hydration.
type Hook func(s *Session)

type entry struct {
	mu       sync.Mutex
	session  *Session
	hydrated bool
	lastSeen time.Time
}

// Manager owns the open sessions.
type Manager struct {
	kv     store.KV
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
	hooks  []Hook

	mu       sync.Mutex
	sessions map[string]*entry
	closed   bool
}

// Option customises a Manager.
type Option func(*Manager)

// WithHook registers h to run for each new session.
func WithHook(h Hook) Option {
	return func(m *Manager) { m.hooks = append(m.hooks, h) }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a manager persisting sessions in kv.
func NewManager(kv store.KV, cfg Config, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		kv:       kv,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewID returns a fresh session id.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id has the shape of an id issued by NewID.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil && len(id) == 36
}

// Open returns the session with id, constructing and hydrating its
// containers on first use. Concurrent opens of the same id share one
// hydration. Hydration is not cancelled with ctx. If the store could not be
// read, the session is still returned but holds off persisting, and the
// next Open retries the load.
func (m *Manager) Open(ctx context.Context, id string) (*Session, error) {
	if !ValidID(id) {
		return nil, apperrors.InvalidInput("malformed session id")
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, apperrors.Unavailable("storefront is shutting down")
	}
	e, ok := m.sessions[id]
	if !ok {
		e = &entry{}
		m.sessions[id] = e
		activeSessions.Inc()
	}
	e.lastSeen = m.now()
	m.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		e.session = m.build(id)
		e.hydrated = m.hydrate(ctx, e.session)
		for _, h := range m.hooks {
			h(e.session)
		}
	} else if !e.hydrated {
		e.hydrated = m.hydrate(ctx, e.session)
	}
	return e.session, nil
}

// Transient returns an empty session that is neither hydrated nor kept, for
// read-only requests that carry no session id.
func (m *Manager) Transient() (*Session, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil, apperrors.Unavailable("storefront is shutting down")
	}
	return m.build(NewID()), nil
}

func (m *Manager) build(id string) *Session {
	kv := store.Prefixed(m.kv, store.SessionPrefix(id))
	l := m.logger.With(slog.String("session_id", id))

	return &Session{
		ID: id,
		Cart: service.NewCartService(
			store.NewAdapter[domain.Cart](kv, l), m.cfg.CartKey, l,
		),
		Wishlist: service.NewWishlistService(
			store.NewAdapter[domain.Wishlist](kv, l), m.cfg.WishlistKey, m.cfg.Origin, l,
		),
	}
}

// hydrate loads both containers and reports whether both loads reached the
// store.
func (m *Manager) hydrate(ctx context.Context, s *Session) bool {
	ctx = context.WithoutCancel(ctx)
	l := logger.FromContextOr(ctx, m.logger.With(slog.String("session_id", s.ID)))

	cartErr := s.Cart.Hydrate(ctx)
	wishlistErr := s.Wishlist.Hydrate(ctx)
	if err := errors.Join(cartErr, wishlistErr); err != nil {
		hydrateFailures.Inc()
		l.WarnContext(ctx, "session state unavailable, will retry on next request",
			slog.String("error", err.Error()),
		)
		return false
	}

	l.DebugContext(ctx, "session opened",
		slog.Int("cart_lines", len(s.Cart.Items())),
		slog.Int("wishlist_items", s.Wishlist.Count()),
	)
	return true
}

// Close drops the session's containers and their subscribers. Persisted
// state is kept.
func (m *Manager) Close(id string) bool {
	m.mu.Lock()
	e, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
		activeSessions.Dec()
	}
	m.mu.Unlock()

	if ok {
		closeEntry(e)
	}
	return ok
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep closes sessions idle for longer than the configured TTL and returns
// how many were closed. A zero TTL disables eviction.
func (m *Manager) Sweep(now time.Time) int {
	if m.cfg.IdleTTL <= 0 {
		return 0
	}

	var idle []*entry
	m.mu.Lock()
	for id, e := range m.sessions {
		if now.Sub(e.lastSeen) > m.cfg.IdleTTL {
			idle = append(idle, e)
			delete(m.sessions, id)
		}
	}
	activeSessions.Sub(float64(len(idle)))
	m.mu.Unlock()

	for _, e := range idle {
		closeEntry(e)
	}
	evictedSessions.Add(float64(len(idle)))
	return len(idle)
}

// Run sweeps idle sessions every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(m.now()); n > 0 {
				m.logger.Debug("evicted idle sessions", slog.Int("count", n))
			}
		}
	}
}

// Shutdown closes every open session. Later calls to Open fail with
// ErrServiceUnavail.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.closed = true
	all := m.sessions
	m.sessions = make(map[string]*entry)
	activeSessions.Sub(float64(len(all)))
	m.mu.Unlock()

	for _, e := range all {
		closeEntry(e)
	}
}

// closeEntry waits for any hydration in progress, then releases the
// containers.
func closeEntry(e *entry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return
	}
	e.session.Cart.Close()
	e.session.Wishlist.Close()
}
