// Package observe provides application-wide observability primitives:
// OpenTelemetry metrics with a Prometheus exporter bridge.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via a standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all podrun metrics.
const meterName = "github.com/podrun/podrun"

// Metrics holds all OpenTelemetry metric instruments for the pipeline.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// ScriptDuration tracks script generation latency (one LLM completion).
	ScriptDuration metric.Float64Histogram

	// TurnDuration tracks per-turn synthesis latency (send plus full
	// streamed response).
	TurnDuration metric.Float64Histogram

	// AssembleDuration tracks final podcast assembly latency.
	AssembleDuration metric.Float64Histogram

	// --- Counters ---

	// TurnsSynthesized counts completed synthesis turns. Use with attribute:
	//   attribute.String("voice", ...)
	TurnsSynthesized metric.Int64Counter

	// SessionRetries counts synthesis session reconnect attempts. Use with
	// attribute: attribute.String("voice", ...)
	SessionRetries metric.Int64Counter

	// ProviderErrors counts upstream API errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live synthesis sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Turn
// synthesis is network-bound and routinely takes several seconds, so the
// buckets reach further than typical request-latency defaults.
var latencyBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.ScriptDuration, err = m.Float64Histogram("podrun.script.duration",
		metric.WithDescription("Latency of podcast script generation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TurnDuration, err = m.Float64Histogram("podrun.turn.duration",
		metric.WithDescription("Latency of one turn's speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AssembleDuration, err = m.Float64Histogram("podrun.assemble.duration",
		metric.WithDescription("Latency of final podcast assembly."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.TurnsSynthesized, err = m.Int64Counter("podrun.turns.synthesized",
		metric.WithDescription("Total completed synthesis turns by voice."),
	); err != nil {
		return nil, err
	}
	if met.SessionRetries, err = m.Int64Counter("podrun.session.retries",
		metric.WithDescription("Total synthesis session reconnect attempts by voice."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("podrun.provider.errors",
		metric.WithDescription("Total upstream API errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("podrun.active_sessions",
		metric.WithDescription("Number of live synthesis sessions."),
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

// RecordTurn records one completed synthesis turn and its latency.
func (m *Metrics) RecordTurn(ctx context.Context, voice string, d time.Duration) {
	attrs := metric.WithAttributes(attribute.String("voice", voice))
	m.TurnsSynthesized.Add(ctx, 1, attrs)
	m.TurnDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordRetry records one session reconnect attempt.
func (m *Metrics) RecordRetry(ctx context.Context, voice string) {
	m.SessionRetries.Add(ctx, 1,
		metric.WithAttributes(attribute.String("voice", voice)),
	)
}

// RecordProviderError records one upstream API error.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
