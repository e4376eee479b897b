// Package observe provides application-wide observability primitives for
// asrstreamd: OpenTelemetry metrics with a Prometheus exporter bridge.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can
// still be scraped via the standard /metrics endpoint. A package-level
// default [Metrics] instance ([DefaultMetrics]) is provided for
// convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all asrstreamd
// metrics.
const meterName = "github.com/MrWong99/asrstreamd"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types
// handle their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// STTDuration tracks one utterance's transcription latency.
	STTDuration metric.Float64Histogram

	// EPDDuration tracks how long the endpoint detector held an utterance
	// open before closing it (speech start to flush).
	EPDDuration metric.Float64Histogram

	// SessionDuration tracks a full session's wall-clock length, from %b
	// to %F.
	SessionDuration metric.Float64Histogram

	// --- Counters ---

	// FramesProcessed counts PCM frames fed into the endpoint detector.
	FramesProcessed metric.Int64Counter

	// UtterancesEmitted counts utterances flushed to the transcriber. Use
	// with attribute: attribute.String("engine", ...)
	UtterancesEmitted metric.Int64Counter

	// SessionsStarted counts sessions that reached the relay phase.
	SessionsStarted metric.Int64Counter

	// --- Error counters ---

	// TranscriberErrors counts failed Transcribe calls. Use with
	// attribute: attribute.String("engine", ...)
	TranscriberErrors metric.Int64Counter

	// ProtocolErrors counts connections rejected for framing violations.
	ProtocolErrors metric.Int64Counter

	// --- Gauges ---

	// EnginesBusy tracks the number of engine-pool slots currently
	// allocated to a session.
	EnginesBusy metric.Int64UpDownCounter

	// QueueDepth tracks the number of buffered messages on an engine's
	// input channel. Use with attribute: attribute.String("engine", ...)
	QueueDepth metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds)
// optimised for speech-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation
// fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.STTDuration, err = m.Float64Histogram("asrstreamd.stt.duration",
		metric.WithDescription("Latency of one utterance's transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EPDDuration, err = m.Float64Histogram("asrstreamd.epd.duration",
		metric.WithDescription("Length of an utterance from speech start to endpoint close."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SessionDuration, err = m.Float64Histogram("asrstreamd.session.duration",
		metric.WithDescription("Full session length from begin to terminal frame."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if met.FramesProcessed, err = m.Int64Counter("asrstreamd.frames.processed",
		metric.WithDescription("Total PCM frames fed into the endpoint detector."),
	); err != nil {
		return nil, err
	}
	if met.UtterancesEmitted, err = m.Int64Counter("asrstreamd.utterances.emitted",
		metric.WithDescription("Total utterances flushed to the transcriber, by engine."),
	); err != nil {
		return nil, err
	}
	if met.SessionsStarted, err = m.Int64Counter("asrstreamd.sessions.started",
		metric.WithDescription("Total sessions that reached the relay phase."),
	); err != nil {
		return nil, err
	}

	if met.TranscriberErrors, err = m.Int64Counter("asrstreamd.transcriber.errors",
		metric.WithDescription("Total failed transcription calls, by engine."),
	); err != nil {
		return nil, err
	}
	if met.ProtocolErrors, err = m.Int64Counter("asrstreamd.protocol.errors",
		metric.WithDescription("Total connections rejected for wire protocol violations."),
	); err != nil {
		return nil, err
	}

	if met.EnginesBusy, err = m.Int64UpDownCounter("asrstreamd.engines.busy",
		metric.WithDescription("Number of engine pool slots currently allocated to a session."),
	); err != nil {
		return nil, err
	}
	if met.QueueDepth, err = m.Int64UpDownCounter("asrstreamd.queue.depth",
		metric.WithDescription("Buffered messages on an engine's input channel, by engine."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Subsequent calls return the
// same pointer. Panics if instrument creation fails (should not happen
// with the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity
// at call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordUtterance is a convenience method that records an emitted
// utterance against the given engine name.
func (m *Metrics) RecordUtterance(ctx context.Context, engine string) {
	m.UtterancesEmitted.Add(ctx, 1, metric.WithAttributes(attribute.String("engine", engine)))
}

// RecordTranscriberError is a convenience method that records a
// transcriber failure against the given engine name.
func (m *Metrics) RecordTranscriberError(ctx context.Context, engine string) {
	m.TranscriberErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("engine", engine)))
}
