// Package observe provides application-wide observability primitives for
// lyrebird: OpenTelemetry metrics, tracing, and structured logging helpers.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all lyrebird metrics.
const meterName = "github.com/lyrebird-audio/lyrebird"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// SynthesisDuration tracks end-to-end synthesis latency per request.
	// Use with attribute: attribute.String("voice", ...)
	SynthesisDuration metric.Float64Histogram

	// DecodeDuration tracks acoustic token decode latency per window.
	DecodeDuration metric.Float64Histogram

	// --- Counters ---

	// SynthesisTokens counts acoustic tokens processed. Use with attribute:
	//   attribute.String("voice", ...)
	SynthesisTokens metric.Int64Counter

	// FramesDecoded counts token windows handed to the decoder.
	FramesDecoded metric.Int64Counter

	// AudioChunks counts PCM chunks emitted by the decoder.
	AudioChunks metric.Int64Counter

	// AudioSeconds accumulates seconds of audio produced. Use with attribute:
	//   attribute.String("voice", ...)
	AudioSeconds metric.Float64Counter

	// --- Error counters ---

	// ProviderErrors counts upstream errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSyntheses tracks the number of in-flight synthesis requests.
	ActiveSyntheses metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for speech-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.SynthesisDuration, err = m.Float64Histogram("lyrebird.synthesis.duration",
		metric.WithDescription("End-to-end latency of a synthesis request."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DecodeDuration, err = m.Float64Histogram("lyrebird.decode.duration",
		metric.WithDescription("Latency of one acoustic token window decode."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.SynthesisTokens, err = m.Int64Counter("lyrebird.synthesis.tokens",
		metric.WithDescription("Total acoustic tokens processed by voice."),
	); err != nil {
		return nil, err
	}
	if met.FramesDecoded, err = m.Int64Counter("lyrebird.decode.frames",
		metric.WithDescription("Total token windows handed to the decoder."),
	); err != nil {
		return nil, err
	}
	if met.AudioChunks, err = m.Int64Counter("lyrebird.audio.chunks",
		metric.WithDescription("Total PCM chunks emitted by the decoder."),
	); err != nil {
		return nil, err
	}
	if met.AudioSeconds, err = m.Float64Counter("lyrebird.audio.seconds",
		metric.WithDescription("Total seconds of audio produced by voice."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("lyrebird.provider.errors",
		metric.WithDescription("Total upstream errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSyntheses, err = m.Int64UpDownCounter("lyrebird.active_syntheses",
		metric.WithDescription("Number of in-flight synthesis requests."),
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

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordSynthesis is a convenience method that records the latency and audio
// yield of one completed synthesis request.
func (m *Metrics) RecordSynthesis(ctx context.Context, voice string, durationSeconds, audioSeconds float64) {
	attrs := metric.WithAttributes(attribute.String("voice", voice))
	m.SynthesisDuration.Record(ctx, durationSeconds, attrs)
	m.AudioSeconds.Add(ctx, audioSeconds, attrs)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
