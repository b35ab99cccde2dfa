// Package observe provides application-wide observability primitives for
// subreconcile: OpenTelemetry metrics, tracing and a trace-aware structured
// logger.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider]. A package-level default
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

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/MrWong99/subreconcile"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// DiffDuration tracks how long a single review item takes to diff.
	DiffDuration metric.Float64Histogram

	// DiffGroups counts groups produced by the diff. Use with attribute:
	//   attribute.String("kind", "equal"|"change")
	DiffGroups metric.Int64Counter

	// DictionaryReplacements counts (entry, variant) pairs that matched
	// during dictionary application.
	DictionaryReplacements metric.Int64Counter

	// DictionarySaves counts dictionary persistence writes. Use with attribute:
	//   attribute.String("status", "ok"|"error")
	DictionarySaves metric.Int64Counter
}

// diffBuckets defines histogram bucket boundaries (in seconds) for diffs of
// subtitle lines up to long paragraphs.
var diffBuckets = []float64{
	0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.DiffDuration, err = m.Float64Histogram("subreconcile.diff.duration",
		metric.WithDescription("Latency of diffing one original/corrected pair."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(diffBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DiffGroups, err = m.Int64Counter("subreconcile.diff.groups",
		metric.WithDescription("Total diff groups produced by kind."),
	); err != nil {
		return nil, err
	}
	if met.DictionaryReplacements, err = m.Int64Counter("subreconcile.dictionary.replacements",
		metric.WithDescription("Total dictionary variant matches."),
	); err != nil {
		return nil, err
	}
	if met.DictionarySaves, err = m.Int64Counter("subreconcile.dictionary.saves",
		metric.WithDescription("Total dictionary persistence writes by status."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails (should not happen with the global provider).
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

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordGroups records the number of equal and change groups of one diff.
func (m *Metrics) RecordGroups(ctx context.Context, equal, change int) {
	if equal > 0 {
		m.DiffGroups.Add(ctx, int64(equal), metric.WithAttributes(Attr("kind", "equal")))
	}
	if change > 0 {
		m.DiffGroups.Add(ctx, int64(change), metric.WithAttributes(Attr("kind", "change")))
	}
}

// RecordSave records one dictionary persistence write.
func (m *Metrics) RecordSave(ctx context.Context, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.DictionarySaves.Add(ctx, 1, metric.WithAttributes(Attr("status", status)))
}
