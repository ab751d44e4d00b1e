package monitoring

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/SimbaBuilds/NL-To-Automation/engine/infra/monitoring/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// WebhookMetrics records per-request latency for C4 (§4.4). It satisfies
// engine/webhook.Metrics directly.
type WebhookMetrics struct {
	duration metric.Float64Histogram
	requests metric.Int64Counter
}

func newWebhookMetrics(meter metric.Meter) (*WebhookMetrics, error) {
	if meter == nil {
		return &WebhookMetrics{}, nil
	}
	duration, err := meter.Float64Histogram(
		metrics.MetricNameWithSubsystem("webhook", "duration_seconds"),
		metric.WithDescription("Latency of one inbound webhook delivery"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(metrics.DurationBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("create webhook duration histogram: %w", err)
	}
	requests, err := meter.Int64Counter(
		metrics.MetricNameWithSubsystem("webhook", "requests_total"),
		metric.WithDescription("Inbound webhook deliveries, labeled by service and status"),
	)
	if err != nil {
		return nil, fmt.Errorf("create webhook requests counter: %w", err)
	}
	return &WebhookMetrics{duration: duration, requests: requests}, nil
}

// ReportRequest satisfies engine/webhook.Metrics.
func (m *WebhookMetrics) ReportRequest(service string, status int, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("status", strconv.Itoa(status)),
	)
	m.duration.Record(ctx, duration.Seconds(), attrs)
	m.requests.Add(ctx, 1, attrs)
}
