package observability

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumOf(t *testing.T, agg metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := agg.(metricdata.Sum[int64])
	require.True(t, ok, "expected an int64 sum, got %T", agg)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestOTelMetrics_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	m, err := newOTelMetrics(provider.Meter("test"))
	require.NoError(t, err)

	m.RecordSync(context.Background(), 5*time.Millisecond, "")
	m.RecordSync(context.Background(), 8*time.Millisecond, "store_error")
	m.RecordTrigger(context.Background())

	data := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, data["idsync.sync.attempts"]))
	assert.Equal(t, int64(1), sumOf(t, data["idsync.observer.triggers"]))

	hist, ok := data["idsync.sync.duration"].(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.Len(t, hist.DataPoints, 2)
}

func TestOTelMetrics_NilSafe(t *testing.T) {
	var m *OTelMetrics
	assert.NotPanics(t, func() {
		m.RecordSync(context.Background(), time.Second, "panic")
		m.RecordTrigger(context.Background())
	})
}

func TestMetrics_MirrorTo(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	o, err := newOTelMetrics(provider.Meter("test"))
	require.NoError(t, err)

	m := NewMetrics(prometheus.NewRegistry())
	m.MirrorTo(o)
	m.RecordTrigger()
	m.RecordSync(time.Millisecond, "")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ObserverTriggersTotal))
	data := collect(t, reader)
	assert.Equal(t, int64(1), sumOf(t, data["idsync.observer.triggers"]))
	assert.Equal(t, int64(1), sumOf(t, data["idsync.sync.attempts"]))
}
