package observe

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumByAttr returns the value of the Int64 sum data point carrying key=value.
func sumByAttr(t *testing.T, m *metricdata.Metrics, key, value string) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s: data is %T, want Sum[int64]", m.Name, m.Data)
	}
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			return dp.Value
		}
	}
	return 0
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestDiffDuration(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.DiffDuration.Record(ctx, 0.002)
	m.DiffDuration.Record(ctx, 0.004)

	met := findMetric(collect(t, reader), "subreconcile.diff.duration")
	if met == nil {
		t.Fatal("metric subreconcile.diff.duration not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("unexpected data type %T", met.Data)
	}
	if len(hist.DataPoints) == 0 || hist.DataPoints[0].Count != 2 {
		t.Fatalf("expected 2 observations, got %+v", hist.DataPoints)
	}
}

func TestRecordGroups(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordGroups(ctx, 3, 2)
	m.RecordGroups(ctx, 1, 0)

	met := findMetric(collect(t, reader), "subreconcile.diff.groups")
	if met == nil {
		t.Fatal("metric subreconcile.diff.groups not found")
	}
	if got := sumByAttr(t, met, "kind", "equal"); got != 4 {
		t.Errorf("equal groups = %d, want 4", got)
	}
	if got := sumByAttr(t, met, "kind", "change"); got != 2 {
		t.Errorf("change groups = %d, want 2", got)
	}
}

func TestRecordSave(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordSave(ctx, nil)
	m.RecordSave(ctx, nil)
	m.RecordSave(ctx, errors.New("disk full"))

	met := findMetric(collect(t, reader), "subreconcile.dictionary.saves")
	if met == nil {
		t.Fatal("metric subreconcile.dictionary.saves not found")
	}
	if got := sumByAttr(t, met, "status", "ok"); got != 2 {
		t.Errorf("ok saves = %d, want 2", got)
	}
	if got := sumByAttr(t, met, "status", "error"); got != 1 {
		t.Errorf("error saves = %d, want 1", got)
	}
}

func TestDefaultMetrics_Singleton(t *testing.T) {
	if DefaultMetrics() != DefaultMetrics() {
		t.Fatal("DefaultMetrics returned different instances")
	}
}
