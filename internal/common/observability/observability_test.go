package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestRecordDispatch(t *testing.T) {
	reader := metric.NewManualReader()
	o := newWithReader("test-service", reader)
	defer o.Shutdown()

	ctx := context.Background()
	o.RecordDispatch(ctx, "sent", 3, 120*time.Millisecond)
	o.RecordDispatch(ctx, "failed", 1, 10*time.Millisecond)
	o.RecordAcknowledgment(ctx, true)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	names := map[string]bool{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		names[m.Name] = true
		if m.Name == "alerts.dispatched" {
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			assert.Equal(t, int64(2), total)
		}
	}
	assert.True(t, names["alerts.dispatched"])
	assert.True(t, names["alerts.dispatch.duration"])
	assert.True(t, names["alerts.acknowledgments"])
}

func TestNilObservabilityIsSafe(t *testing.T) {
	var o *Observability
	o.RecordDispatch(context.Background(), "sent", 1, time.Millisecond)
	o.RecordAcknowledgment(context.Background(), false)
	o.Shutdown()
	assert.NotNil(t, o.Tracer())
}
