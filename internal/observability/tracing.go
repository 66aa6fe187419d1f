// Package observability sets up OpenTelemetry tracing for the API.
package observability

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
)

// TracingConfig controls the tracer provider installed by SetupTracing.
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Version     string
	ProjectID   string
	Endpoint    string // OTLP/HTTP collector; empty writes spans to Stdout
	Insecure    bool
	SampleRatio float64

	// Stdout receives spans when no endpoint is set. Defaults to os.Stdout.
	Stdout io.Writer
}

// SetupTracing installs a global tracer provider and propagator. The returned
// function flushes and stops the provider; it is a no-op when tracing is off.
func SetupTracing(ctx context.Context, cfg TracingConfig) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "moracollect-api"
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(name),
			semconv.ServiceVersionKey.String(cfg.Version),
			attribute.String("gcp.project_id", cfg.ProjectID),
		),
	)
	if err != nil {
		slog.WarnContext(ctx, "otel resource init failed (continuing)", "error", err)
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	slog.InfoContext(ctx, "otel tracing initialized", "service", name, "endpoint", cfg.Endpoint, "sample_ratio", cfg.SampleRatio)
	return tp.Shutdown, nil
}

func newExporter(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	if cfg.Endpoint != "" {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	}
	w := cfg.Stdout
	if w == nil {
		w = os.Stdout
	}
	slog.WarnContext(ctx, "otel using stdout exporter (no OTLP endpoint configured)")
	return stdouttrace.New(stdouttrace.WithWriter(w))
}

// HTTPHandler wraps h so every request except health checks runs in a server
// span. Span names use the method only; record IDs in paths would explode
// cardinality.
func HTTPHandler(h http.Handler, operation string) http.Handler {
	return otelhttp.NewHandler(h, operation,
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/healthz"
		}),
		otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
			return operation + " " + r.Method
		}),
	)
}
