package monitoring

import (
	"testing"
	"time"

	"github.com/SimbaBuilds/NL-To-Automation/engine/automation"
	monitoringmetrics "github.com/SimbaBuilds/NL-To-Automation/engine/infra/monitoring/metrics"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestExecutionMetrics_ReportExecution(t *testing.T) {
	t.Run("Should record execution duration and status count", func(t *testing.T) {
		ctx := t.Context()
		reader := sdkmetric.NewManualReader()
		provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		meter := provider.Meter("test")
		metrics, err := newExecutionMetrics(meter)
		require.NoError(t, err)
		require.NotNil(t, metrics)

		metrics.ReportExecution(automation.TriggerWebhook, "completed", 250*time.Millisecond)

		var rm metricdata.ResourceMetrics
		require.NoError(t, reader.Collect(ctx, &rm))

		durationName := monitoringmetrics.MetricNameWithSubsystem("execution", "duration_seconds")
		runsName := monitoringmetrics.MetricNameWithSubsystem("execution", "runs_total")
		var durationFound, runsFound bool
		for _, scopeMetrics := range rm.ScopeMetrics {
			for _, m := range scopeMetrics.Metrics {
				switch data := m.Data.(type) {
				case metricdata.Histogram[float64]:
					if m.Name != durationName {
						continue
					}
					require.Len(t, data.DataPoints, 1)
					dp := data.DataPoints[0]
					require.InDelta(t, 0.25, dp.Sum, 0.0001)
					require.Equal(t, "webhook", attrString(t, dp.Attributes, "trigger_type"))
					require.Equal(t, "completed", attrString(t, dp.Attributes, "status"))
					durationFound = true
				case metricdata.Sum[int64]:
					if m.Name != runsName {
						continue
					}
					require.Len(t, data.DataPoints, 1)
					require.Equal(t, int64(1), data.DataPoints[0].Value)
					runsFound = true
				}
			}
		}
		require.True(t, durationFound, "expected duration histogram to be collected")
		require.True(t, runsFound, "expected runs counter to be collected")
	})

	t.Run("Should be a no-op on a nil-instrument metrics value", func(t *testing.T) {
		metrics := &ExecutionMetrics{}
		require.NotPanics(t, func() {
			metrics.ReportExecution(automation.TriggerManual, "failed", time.Second)
		})
	})
}
