package middleware

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/natusdeed/fashion-site-sub000/pkg/errors"
	"github.com/natusdeed/fashion-site-sub000/pkg/httputil"
)

// KeyFunc picks the bucket a request is charged to.
type KeyFunc func(r *http.Request) string

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a keyed token bucket limiter. Idle buckets are evicted by
// Cleanup, which Run calls on a ticker.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	ttl      time.Duration
	key      KeyFunc
	logger   *slog.Logger
	now      func() time.Time
}

// NewRateLimiter creates a limiter allowing rps requests per second with the
// given burst per key. A nil key charges requests to the client IP.
func NewRateLimiter(rps float64, burst int, key KeyFunc, logger *slog.Logger) *RateLimiter {
	if key == nil {
		key = ClientIP
	}
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(rps),
		burst:    burst,
		ttl:      3 * time.Minute,
		key:      key,
		logger:   logger,
		now:      time.Now,
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = rl.now()
	return v.limiter
}

// Cleanup evicts buckets not used within the TTL and reports how many went.
func (rl *RateLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	evicted := 0
	for k, v := range rl.visitors {
		if now.Sub(v.lastSeen) > rl.ttl {
			delete(rl.visitors, k)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of tracked buckets.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

// Run evicts idle buckets every TTL until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(rl.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Cleanup()
		}
	}
}

// Handler returns the middleware. Over-limit requests get 429 RATE_LIMITED
// with a Retry-After hint in whole seconds.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rl.key(r)
		res := rl.limiter(key).ReserveN(rl.now(), 1)
		if delay := res.DelayFrom(rl.now()); !res.OK() || delay > 0 {
			res.CancelAt(rl.now())
			rl.logger.WarnContext(r.Context(), "rate limit exceeded",
				slog.String("key", key),
				slog.String("path", r.URL.Path),
			)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(delay, res.OK())))
			httputil.WriteError(w, r, apperrors.RateLimited(), rl.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func retryAfterSeconds(delay time.Duration, ok bool) int {
	if !ok {
		return 60
	}
	return int(math.Ceil(delay.Seconds()))
}

// ClientIP returns the first address in X-Forwarded-For, then X-Real-IP,
// then the connection's remote host.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if ip := net.ParseIP(strings.TrimSpace(xri)); ip != nil {
			return ip.String()
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
