package runtime

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/mohammad-safakhou/techbrief/config"
)

// Tracing owns the process tracer provider. The zero value is a no-op.
type Tracing struct {
	tp *sdktrace.TracerProvider
}

// TracingOptions names the service in exported spans.
type TracingOptions struct {
	ServiceName    string
	ServiceVersion string
}

// SetupTracing installs a global tracer provider that batches spans to the
// configured OTLP endpoint. Without an endpoint the global no-op provider
// stays in place.
func SetupTracing(ctx context.Context, cfg config.TelemetryConfig, opts TracingOptions) (*Tracing, error) {
	if !cfg.Enabled || cfg.OTLPEndpoint == "" {
		return &Tracing{}, nil
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "techbrief"
	}
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "techbrief"
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(opts.ServiceName),
			attribute.String("service.namespace", namespace),
			attribute.String("service.version", opts.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("resource init: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("otlp init: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return &Tracing{tp: tp}, nil
}

// Enabled reports whether spans are being exported.
func (t *Tracing) Enabled() bool { return t != nil && t.tp != nil }

// Shutdown flushes pending spans.
func (t *Tracing) Shutdown(ctx context.Context) error {
	if !t.Enabled() {
		return nil
	}
	if err := t.tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("trace shutdown: %w", err)
	}
	return nil
}
