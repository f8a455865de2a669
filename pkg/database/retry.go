package database

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

// RetryPolicy controls how often a backing store connection is attempted
// while it comes up. The wait doubles after each failure.
type RetryPolicy struct {
	Attempts int
	BaseWait time.Duration
	// Jitter spreads each wait by up to ±Jitter of its length.
	Jitter float64
}

// DefaultRetryPolicy waits 1s then 2s, with ±25% jitter, across 3 attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, BaseWait: time.Second, Jitter: 0.25}
}

// Backoff returns the wait before retry number attempt (0-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := p.BaseWait << attempt
	jitter := time.Duration(float64(base) * p.Jitter * (2*rand.Float64() - 1)) // #nosec G404 -- jitter only
	return base + jitter
}

// Retry calls fn until it succeeds, the attempts run out or ctx is done.
// Failed attempts are logged at warn when logger is non-nil.
func Retry(ctx context.Context, p RetryPolicy, name string, logger *slog.Logger, fn func(context.Context) error) error {
	attempts := max(p.Attempts, 1)

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			wait := p.Backoff(attempt - 1)
			if logger != nil {
				logger.Warn(name+" unavailable, retrying",
					slog.Int("attempt", attempt+1),
					slog.Int("max_attempts", attempts),
					slog.Duration("backoff", wait),
					slog.String("error", lastErr.Error()),
				)
			}
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("connect to %s: %w", name, ctx.Err())
			case <-timer.C:
			}
		}
		if lastErr = fn(ctx); lastErr == nil {
			return nil
		}
	}
	if attempts == 1 {
		return lastErr
	}
	return fmt.Errorf("connect to %s after %d attempts: %w", name, attempts, lastErr)
}
