// Package tracing wires the broker's dispatch path to an OpenTelemetry
// tracer: one span per forwarded call, carrying the channel id, method, and
// backend as attributes. This is ambient observability, not the external
// Carbon metrics emitter the switch explicitly never implements.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerName identifies the dispatcher's tracer in exported spans.
const TracerName = "github.com/rpcswitch/rpc-switch/pkg/rpcswitch"

// Config configures the OTLP exporter. Endpoint is an OTLP/HTTP collector
// address (host:port); an empty Endpoint disables tracing and Setup
// returns a no-op shutdown func.
type Config struct {
	Endpoint    string
	ServiceName string
	Insecure    bool
}

// Setup installs a global TracerProvider exporting to an OTLP/HTTP
// collector and returns a shutdown func to flush and close it on daemon
// exit. If cfg.Endpoint is empty, tracing is left on the SDK's default
// no-op provider and shutdown is a no-op.
func Setup(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	if cfg.Endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("building trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// Tracer returns the dispatcher's named tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// StartDispatch starts a span for one forwarded external call, tagging it
// with the routing facts the dispatcher already has in hand.
func StartDispatch(ctx context.Context, vci, method, backend, who string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "rpcswitch.dispatch",
		trace.WithAttributes(
			attribute.String("rpcswitch.vci", vci),
			attribute.String("rpcswitch.method", method),
			attribute.String("rpcswitch.backend", backend),
			attribute.String("rpcswitch.who", who),
		),
	)
}
