package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

type contextKey int

const (
	correlationIDKey contextKey = iota
	sessionIDKey
	loggerKey
)

// Option customises New.
type Option func(*options)

type options struct {
	w    io.Writer
	env  string
	text bool
}

// WithWriter sends records to w instead of stdout.
func WithWriter(w io.Writer) Option {
	return func(o *options) { o.w = w }
}

// WithEnvironment adds an "env" attribute to every record.
func WithEnvironment(env string) Option {
	return func(o *options) { o.env = env }
}

// WithTextFormat switches from JSON to logfmt-style text, for local runs.
func WithTextFormat() Option {
	return func(o *options) { o.text = true }
}

// New creates a structured logger tagged with the service name. Records
// below level are dropped; debug level also records the call site.
func New(serviceName, level string, opts ...Option) *slog.Logger {
	o := options{w: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	lvl := ParseLevel(level)
	hopts := &slog.HandlerOptions{Level: lvl, AddSource: lvl <= slog.LevelDebug}

	var h slog.Handler = slog.NewJSONHandler(o.w, hopts)
	if o.text {
		h = slog.NewTextHandler(o.w, hopts)
	}

	attrs := []any{slog.String("service", serviceName)}
	if o.env != "" {
		attrs = append(attrs, slog.String("env", o.env))
	}
	return slog.New(h).With(attrs...)
}

// NewWithWriter is New writing JSON to w.
func NewWithWriter(serviceName, level string, w io.Writer) *slog.Logger {
	return New(serviceName, level, WithWriter(w))
}

// ParseLevel maps a config level name ("debug", "WARN", "info+2") to a slog
// level. Unknown names map to info.
func ParseLevel(level string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// WithCorrelationID returns a new context with the correlation ID set.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationIDFromContext extracts the correlation ID from the context.
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}

// WithSessionID returns a new context carrying the storefront session ID.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionIDFromContext extracts the session ID stored by WithSessionID.
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey).(string)
	return id
}

// NewContext returns a new context with the given logger stored in it.
func NewContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the logger stored by NewContext, or slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// FromContextOr returns the logger stored by NewContext. Without one it
// returns fallback extended with ContextAttrs(ctx).
func FromContextOr(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return WithContext(ctx, fallback)
}

// ContextAttrs returns the request fields carried by ctx: correlation_id,
// session_id, and trace_id/span_id of a valid span. Absent fields are
// omitted.
func ContextAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	if id := CorrelationIDFromContext(ctx); id != "" {
		attrs = append(attrs, slog.String("correlation_id", id))
	}
	if id := SessionIDFromContext(ctx); id != "" {
		attrs = append(attrs, slog.String("session_id", id))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		attrs = append(attrs,
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return attrs
}

// WithContext returns l extended with ContextAttrs(ctx).
func WithContext(ctx context.Context, l *slog.Logger) *slog.Logger {
	attrs := ContextAttrs(ctx)
	if len(attrs) == 0 {
		return l
	}
	args := make([]any, len(attrs))
	for i, a := range attrs {
		args[i] = a
	}
	return l.With(args...)
}
