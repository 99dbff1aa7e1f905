// Package trace bootstraps OpenTelemetry tracing for the audio core.
//
// The core starts spans through [StartSpan] unconditionally. Until
// [Initialize] installs an exporter the global no-op tracer is used, so
// library users pay nothing for tracing they did not ask for.
package trace

import (
	"context"
	"fmt"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name used by the audio core.
const TracerName = "github.com/ardnew/uacbridge"

// Exporter names accepted by [Config].
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
)

var (
	tracerProvider *sdktrace.TracerProvider
	mutex          sync.RWMutex
)

// Config holds the configuration for tracing.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Exporter       string // ExporterNone or ExporterStdout
	PrettyPrint    bool
}

// DefaultConfig returns a configuration with tracing disabled.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "uacbridge",
		ServiceVersion: "0.1.0",
		Exporter:       ExporterNone,
	}
}

// Initialize installs the global tracer provider described by cfg.
// With ExporterNone it leaves the global no-op provider in place.
func Initialize(cfg Config) error {
	mutex.Lock()
	defer mutex.Unlock()

	if tracerProvider != nil {
		return fmt.Errorf("tracer provider already initialized")
	}

	var exporter sdktrace.SpanExporter
	switch cfg.Exporter {
	case ExporterNone, "":
		return nil
	case ExporterStdout:
		opts := []stdouttrace.Option{stdouttrace.WithWriter(os.Stderr)}
		if cfg.PrettyPrint {
			opts = append(opts, stdouttrace.WithPrettyPrint())
		}
		var err error
		exporter, err = stdouttrace.New(opts...)
		if err != nil {
			return fmt.Errorf("create stdout exporter: %w", err)
		}
	default:
		return fmt.Errorf("unsupported exporter type: %s", cfg.Exporter)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	)

	tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tracerProvider)
	return nil
}

// Shutdown flushes and releases the tracer provider, if one was installed.
func Shutdown(ctx context.Context) error {
	mutex.Lock()
	defer mutex.Unlock()

	if tracerProvider == nil {
		return nil
	}
	if err := tracerProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown tracer provider: %w", err)
	}
	tracerProvider = nil
	return nil
}

// Tracer returns the audio core tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// StartSpan starts a span named name as a child of any span in ctx.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}
