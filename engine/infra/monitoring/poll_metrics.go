package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/SimbaBuilds/NL-To-Automation/engine/core"
	"github.com/SimbaBuilds/NL-To-Automation/engine/infra/monitoring/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PollMetrics records per-poll counters for C5 (§4.5 step 8). It
// satisfies engine/poller.Metrics directly.
type PollMetrics struct {
	duration      metric.Float64Histogram
	itemsFound    metric.Int64Counter
	itemsFiltered metric.Int64Counter
	eventsCreated metric.Int64Counter
}

func newPollMetrics(meter metric.Meter) (*PollMetrics, error) {
	if meter == nil {
		return &PollMetrics{}, nil
	}
	duration, err := meter.Float64Histogram(
		metrics.MetricNameWithSubsystem("poll", "duration_seconds"),
		metric.WithDescription("Duration of one polling automation's tick"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(metrics.DurationBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("create poll duration histogram: %w", err)
	}
	found, err := meter.Int64Counter(
		metrics.MetricNameWithSubsystem("poll", "items_found_total"),
		metric.WithDescription("Items the source tool returned, before extraction/filtering"),
	)
	if err != nil {
		return nil, fmt.Errorf("create poll items_found counter: %w", err)
	}
	filtered, err := meter.Int64Counter(
		metrics.MetricNameWithSubsystem("poll", "items_filtered_total"),
		metric.WithDescription("Items dropped as already-seen or not new"),
	)
	if err != nil {
		return nil, fmt.Errorf("create poll items_filtered counter: %w", err)
	}
	events, err := meter.Int64Counter(
		metrics.MetricNameWithSubsystem("poll", "events_created_total"),
		metric.WithDescription("Events enqueued from a poll tick"),
	)
	if err != nil {
		return nil, fmt.Errorf("create poll events_created counter: %w", err)
	}
	return &PollMetrics{
		duration:      duration,
		itemsFound:    found,
		itemsFiltered: filtered,
		eventsCreated: events,
	}, nil
}

// ReportPoll satisfies engine/poller.Metrics.
func (m *PollMetrics) ReportPoll(
	automationID core.ID,
	itemsFound, itemsFiltered, eventsCreated int,
	duration time.Duration,
) {
	if m == nil || m.duration == nil {
		return
	}
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("automation_id", automationID.String()))
	m.duration.Record(ctx, duration.Seconds(), attrs)
	m.itemsFound.Add(ctx, int64(itemsFound), attrs)
	m.itemsFiltered.Add(ctx, int64(itemsFiltered), attrs)
	m.eventsCreated.Add(ctx, int64(eventsCreated), attrs)
}
