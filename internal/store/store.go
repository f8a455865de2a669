// Package store persists JSON-encoded state in a key-value backend. Missing
// or malformed values load as empty and saves are fire-and-forget: the
// in-memory state of a session stays authoritative when the backend
// misbehaves.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/natusdeed/fashion-site-sub000/pkg/errors"
	"github.com/natusdeed/fashion-site-sub000/pkg/logger"
	"github.com/natusdeed/fashion-site-sub000/pkg/tracing"
)

// KV is a raw byte store. Get returns an error wrapping
// apperrors.ErrNotFound when the key is absent.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

var operations = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "storefront_store_operations_total",
		Help: "Persistent store operations by outcome",
	},
	[]string{"op", "result"},
)

const (
	resultOK      = "ok"
	resultMissing = "missing"
	resultCorrupt = "corrupt"
	resultError   = "error"
)

var tracer = tracing.Tracer("internal/store")

// observe starts a span for one adapter operation. The returned function
// ends it and counts the outcome.
func observe(ctx context.Context, op, key string) (context.Context, func(result string)) {
	ctx, span := tracer.Start(ctx, "store."+op, trace.WithAttributes(attribute.String("store.key", key)))
	return ctx, func(result string) {
		operations.WithLabelValues(op, result).Inc()
		span.SetAttributes(attribute.String("store.result", result))
		if result == resultError || result == resultCorrupt {
			span.SetStatus(codes.Error, result)
		}
		span.End()
	}
}

type prefixed struct {
	kv     KV
	prefix string
}

// Prefixed scopes every key of kv under prefix.
func Prefixed(kv KV, prefix string) KV {
	return &prefixed{kv: kv, prefix: prefix}
}

func (p *prefixed) Get(ctx context.Context, key string) ([]byte, error) {
	return p.kv.Get(ctx, p.prefix+key)
}

func (p *prefixed) Set(ctx context.Context, key string, value []byte) error {
	return p.kv.Set(ctx, p.prefix+key, value)
}

func (p *prefixed) Delete(ctx context.Context, key string) error {
	return p.kv.Delete(ctx, p.prefix+key)
}

// SessionPrefix is the key namespace of one browser session.
func SessionPrefix(sessionID string) string {
	return "session:" + sessionID + ":"
}

// Adapter loads and saves values of type T as JSON.
type Adapter[T any] struct {
	kv     KV
	logger *slog.Logger
}

// NewAdapter wraps kv.
func NewAdapter[T any](kv KV, logger *slog.Logger) *Adapter[T] {
	return &Adapter[T]{kv: kv, logger: logger}
}

// Load reads and decodes key. A missing key and malformed JSON yield the
// zero value and false with a nil error. A backend failure also yields the
// zero value and false, and is returned so callers can tell an unreachable
// store from an empty one. Every failure is logged here.
func (a *Adapter[T]) Load(ctx context.Context, key string) (T, bool, error) {
	var zero T
	ctx, done := observe(ctx, "load", key)
	l := logger.FromContextOr(ctx, a.logger)

	raw, err := a.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			done(resultMissing)
			l.DebugContext(ctx, "no persisted value", slog.String("key", key))
			return zero, false, nil
		}
		done(resultError)
		l.WarnContext(ctx, "failed to read persisted value",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return zero, false, fmt.Errorf("load %s: %w", key, err)
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		done(resultCorrupt)
		l.WarnContext(ctx, "discarding malformed persisted value",
			slog.String("key", key),
			slog.Int("bytes", len(raw)),
			slog.String("error", err.Error()),
		)
		return zero, false, nil
	}

	done(resultOK)
	return v, true, nil
}

// Save encodes v and writes it to key. Failures are logged and dropped.
func (a *Adapter[T]) Save(ctx context.Context, key string, v T) {
	ctx, done := observe(ctx, "save", key)
	l := logger.FromContextOr(ctx, a.logger)

	raw, err := json.Marshal(v)
	if err != nil {
		done(resultError)
		l.ErrorContext(ctx, "failed to encode value for persistence",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := a.kv.Set(ctx, key, raw); err != nil {
		done(resultError)
		l.WarnContext(ctx, "failed to persist value",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return
	}
	done(resultOK)
}

// Remove deletes key. Failures are logged and dropped.
func (a *Adapter[T]) Remove(ctx context.Context, key string) {
	ctx, done := observe(ctx, "remove", key)
	if err := a.kv.Delete(ctx, key); err != nil {
		done(resultError)
		logger.FromContextOr(ctx, a.logger).WarnContext(ctx, "failed to remove persisted value",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return
	}
	done(resultOK)
}
