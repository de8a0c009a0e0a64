// Package observe provides application-wide observability primitives for
// speechcoach: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
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

// meterName is the instrumentation scope name used for all speechcoach metrics.
const meterName = "github.com/MrWong99/speechcoach"

// Generation stages reported on [Metrics.EvaluationOutcomes].
const (
	StageAttempt1   = "attempt_1"
	StageAttempt2   = "attempt_2"
	StageShortForm  = "short_form"
	StageBestEffort = "best_effort"
)

// Provider request kinds reported on [Metrics.ProviderRequests].
const (
	KindGenerate   = "generate"
	KindItemRetry  = "item_retry"
	KindBestEffort = "best_effort"
	KindEmbed      = "embed"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// GenerateDuration tracks the wall time of a full generation run,
	// including every retry and fallback call.
	GenerateDuration metric.Float64Histogram

	// ProviderDuration tracks the latency of a single completion or
	// embedding call. Use with attribute:
	//   attribute.String("kind", ...)
	ProviderDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// EvaluationOutcomes counts accepted evaluations by the stage that
	// produced them. Use with attribute:
	//   attribute.String("stage", ...)
	EvaluationOutcomes metric.Int64Counter

	// ItemRetries counts single-item retries. Use with attribute:
	//   attribute.String("result", "replaced"|"dropped")
	ItemRetries metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Distributions ---

	// PassRate records the pass rate of every accepted evaluation.
	PassRate metric.Float64Histogram

	// ConsistencySimilarity records the cosine similarity between
	// successive evaluations. Use with attribute:
	//   attribute.String("model", ...)
	ConsistencySimilarity metric.Float64Histogram

	// --- Gauges ---

	// ActiveGenerations tracks the number of generation runs in flight.
	ActiveGenerations metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// completion-service round trips, which range from sub-second to tens of
// seconds.
var latencyBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80,
}

// ratioBuckets covers values in [0, 1].
var ratioBuckets = []float64{
	0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1,
}

// similarityBuckets covers cosine similarity in [-1, 1], with finer
// resolution near 1 where successive evaluations usually land.
var similarityBuckets = []float64{
	-0.5, 0, 0.25, 0.5, 0.6, 0.7, 0.8, 0.85, 0.9, 0.95, 0.99, 1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.GenerateDuration, err = m.Float64Histogram("speechcoach.generate.duration",
		metric.WithDescription("Wall time of a full evaluation generation run."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ProviderDuration, err = m.Float64Histogram("speechcoach.provider.duration",
		metric.WithDescription("Latency of a single completion or embedding call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PassRate, err = m.Float64Histogram("speechcoach.evaluation.pass_rate",
		metric.WithDescription("Share of delivered items that needed no item-level retry."),
		metric.WithExplicitBucketBoundaries(ratioBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ConsistencySimilarity, err = m.Float64Histogram("speechcoach.consistency.similarity",
		metric.WithDescription("Cosine similarity between successive evaluations."),
		metric.WithExplicitBucketBoundaries(similarityBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("speechcoach.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.EvaluationOutcomes, err = m.Int64Counter("speechcoach.evaluation.outcomes",
		metric.WithDescription("Accepted evaluations by the generation stage that produced them."),
	); err != nil {
		return nil, err
	}
	if met.ItemRetries, err = m.Int64Counter("speechcoach.evaluation.item_retries",
		metric.WithDescription("Single-item retries by result."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("speechcoach.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveGenerations, err = m.Int64UpDownCounter("speechcoach.active_generations",
		metric.WithDescription("Number of generation runs in flight."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("speechcoach.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
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

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
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

// RecordOutcome records an accepted evaluation: the stage counter and the
// pass-rate distribution.
func (m *Metrics) RecordOutcome(ctx context.Context, stage string, passRate float64) {
	attrs := metric.WithAttributes(attribute.String("stage", stage))
	m.EvaluationOutcomes.Add(ctx, 1, attrs)
	m.PassRate.Record(ctx, passRate, attrs)
}

// RecordItemRetry records the result ("replaced" or "dropped") of a
// single-item retry.
func (m *Metrics) RecordItemRetry(ctx context.Context, result string) {
	m.ItemRetries.Add(ctx, 1,
		metric.WithAttributes(attribute.String("result", result)),
	)
}

// RecordSimilarity records a consistency similarity value for model.
func (m *Metrics) RecordSimilarity(ctx context.Context, model string, similarity float64) {
	m.ConsistencySimilarity.Record(ctx, similarity,
		metric.WithAttributes(attribute.String("model", model)),
	)
}
