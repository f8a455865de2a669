package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationPrefix is prepended to component names passed to Tracer.
const InstrumentationPrefix = "github.com/natusdeed/fashion-site-sub000/"

// Config holds OpenTelemetry tracing configuration.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string  // host:port of an OTLP/HTTP collector
	SampleRate     float64 // 0.0 to 1.0
	Enabled        bool
}

// DefaultConfig returns a disabled config pointing at a local collector.
func DefaultConfig(serviceName string) Config {
	return Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    "development",
		OTLPEndpoint:   "localhost:4318",
		SampleRate:     1.0,
	}
}

// Option customises Setup.
type Option func(*options)

type options struct {
	exporter sdktrace.SpanExporter
	syncer   bool
}

// WithExporter replaces the OTLP exporter. Spans are exported
// synchronously, which tests rely on to read them back straight away.
func WithExporter(exp sdktrace.SpanExporter) Option {
	return func(o *options) {
		o.exporter = exp
		o.syncer = true
	}
}

// Sampler picks a root sampler for the rate and honours the parent's
// decision for continued traces, so a sampled storefront page view keeps its
// cart calls in the same trace.
func Sampler(rate float64) sdktrace.Sampler {
	var root sdktrace.Sampler
	switch {
	case rate >= 1:
		root = sdktrace.AlwaysSample()
	case rate <= 0:
		root = sdktrace.NeverSample()
	default:
		root = sdktrace.TraceIDRatioBased(rate)
	}
	return sdktrace.ParentBased(root)
}

// Setup installs the global tracer provider and W3C propagators. The
// returned function flushes and stops the provider. When tracing is
// disabled only the propagators are installed, so inbound trace context is
// still forwarded to Kafka and logs.
func Setup(ctx context.Context, cfg Config, opts ...Option) (shutdown func(context.Context) error, err error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.exporter == nil {
		o.exporter, err = otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("create OTLP exporter: %w", err)
		}
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
		resource.WithProcessRuntimeDescription(),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	export := sdktrace.WithBatcher(o.exporter)
	if o.syncer {
		export = sdktrace.WithSyncer(o.exporter)
	}
	tp := sdktrace.NewTracerProvider(
		export,
		sdktrace.WithResource(res),
		sdktrace.WithSampler(Sampler(cfg.SampleRate)),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// Tracer returns the tracer for a component of this module, e.g.
// Tracer("pkg/database").
func Tracer(component string) trace.Tracer {
	return otel.Tracer(InstrumentationPrefix + component)
}
