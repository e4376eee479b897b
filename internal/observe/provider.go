package observe

import (
	"context"
	"errors"

	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ProviderConfig selects the resource attributes and trace exporter this
// server's telemetry reports under.
type ProviderConfig struct {
	// ServiceName is the service name attached to every metric and span.
	// Default: "asrstreamd".
	ServiceName string

	// ServiceVersion is the build version attached to every metric and span.
	ServiceVersion string

	// TraceExporter receives completed spans. Nil keeps spans recorded but
	// unexported — the right choice for tests and for any run that only
	// cares about the Prometheus metrics surface.
	TraceExporter sdktrace.SpanExporter
}

// InitProvider wires up the global OTel meter and tracer providers for the
// duration of one process run:
//
//   - The meter provider reads through a Prometheus exporter; the resulting
//     registry is what cmd/asrstreamd's admin mux serves on /metrics.
//   - The tracer provider batches to cfg.TraceExporter, or drops spans on
//     the floor if none was given.
//
// Call the returned shutdown func from a deferred main() block to flush and
// close both providers before the process exits.
func InitProvider(ctx context.Context, cfg ProviderConfig) (shutdown func(context.Context) error, err error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "asrstreamd"
	}

	// Resource attributes attach to both the meter and tracer providers below.
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	var shutdownFuncs []func(context.Context) error

	// promExp registers a collector against the default Prometheus registry;
	// it is a pull-based reader, not a push exporter, so there is nothing to
	// flush here beyond the meter provider shutdown below.
	promExp, err := promexporter.New()
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExp),
	)
	otel.SetMeterProvider(mp)
	shutdownFuncs = append(shutdownFuncs, mp.Shutdown)

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
	}
	if cfg.TraceExporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(cfg.TraceExporter))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tp)
	shutdownFuncs = append(shutdownFuncs, tp.Shutdown)

	// Shut both providers down regardless of which one errors first.
	shutdown = func(ctx context.Context) error {
		var errs []error
		for _, fn := range shutdownFuncs {
			if e := fn(ctx); e != nil {
				errs = append(errs, e)
			}
		}
		return errors.Join(errs...)
	}

	return shutdown, nil
}
