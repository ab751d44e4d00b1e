package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/SimbaBuilds/NL-To-Automation/engine/automation"
	"github.com/SimbaBuilds/NL-To-Automation/engine/infra/monitoring/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ExecutionMetrics records execution status counts and run latency for
// C2 (§3). It satisfies engine/executor's observability collaborator.
type ExecutionMetrics struct {
	duration metric.Float64Histogram
	runs     metric.Int64Counter
}

func newExecutionMetrics(meter metric.Meter) (*ExecutionMetrics, error) {
	if meter == nil {
		return &ExecutionMetrics{}, nil
	}
	duration, err := meter.Float64Histogram(
		metrics.MetricNameWithSubsystem("execution", "duration_seconds"),
		metric.WithDescription("Duration of one automation execution run"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(metrics.DurationBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("create execution duration histogram: %w", err)
	}
	runs, err := meter.Int64Counter(
		metrics.MetricNameWithSubsystem("execution", "runs_total"),
		metric.WithDescription("Execution runs, labeled by trigger_type and status"),
	)
	if err != nil {
		return nil, fmt.Errorf("create execution runs counter: %w", err)
	}
	return &ExecutionMetrics{duration: duration, runs: runs}, nil
}

// ReportExecution records one finished ExecutionLog's status and latency.
func (m *ExecutionMetrics) ReportExecution(triggerType automation.TriggerType, status string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("trigger_type", string(triggerType)),
		attribute.String("status", status),
	)
	m.duration.Record(ctx, duration.Seconds(), attrs)
	m.runs.Add(ctx, 1, attrs)
}
