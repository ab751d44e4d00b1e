// Package monitoring wires the engine's OpenTelemetry meter to a
// Prometheus exporter and holds the per-component instrument sets used
// by C4, C5, and C6/C2 (webhook latency, poll duration/items, execution
// status counts).
package monitoring

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/SimbaBuilds/NL-To-Automation/engine/infra/monitoring/middleware"
	"github.com/SimbaBuilds/NL-To-Automation/pkg/logger"
	"github.com/gin-gonic/gin"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Service owns the meter provider and the instrument sets derived from it.
type Service struct {
	meter       metric.Meter
	provider    *sdkmetric.MeterProvider
	registry    *prom.Registry
	config      *Config
	initialized bool

	poll      *PollMetrics
	webhook   *WebhookMetrics
	execution *ExecutionMetrics
}

func newDisabledService(cfg *Config) *Service {
	meter := noop.NewMeterProvider().Meter("automationd")
	return &Service{
		config:      cfg,
		meter:       meter,
		initialized: false,
		poll:        &PollMetrics{},
		webhook:     &WebhookMetrics{},
		execution:   &ExecutionMetrics{},
	}
}

// NewMonitoringService builds a Service. When cfg.Enabled is false, every
// instrument becomes a nil-safe no-op instead of touching Prometheus.
func NewMonitoringService(ctx context.Context, cfg *Config) (*Service, error) {
	log := logger.FromContext(ctx)
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		log.Debug("monitoring disabled, using no-op meter")
		return newDisabledService(cfg), nil
	}
	registry := prom.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("automationd")

	pollMetrics, err := newPollMetrics(meter)
	if err != nil {
		return nil, err
	}
	webhookMetrics, err := newWebhookMetrics(meter)
	if err != nil {
		return nil, err
	}
	execMetrics, err := newExecutionMetrics(meter)
	if err != nil {
		return nil, err
	}
	log.Info("monitoring service initialized")
	return &Service{
		meter:       meter,
		provider:    provider,
		registry:    registry,
		config:      cfg,
		initialized: true,
		poll:        pollMetrics,
		webhook:     webhookMetrics,
		execution:   execMetrics,
	}, nil
}

// Meter returns the underlying OpenTelemetry meter.
func (s *Service) Meter() metric.Meter {
	if s == nil {
		return noop.NewMeterProvider().Meter("automationd")
	}
	return s.meter
}

// PollMetrics satisfies engine/poller.Metrics.
func (s *Service) PollMetrics() *PollMetrics {
	if s == nil {
		return &PollMetrics{}
	}
	return s.poll
}

// WebhookMetrics satisfies engine/webhook's observability collaborator.
func (s *Service) WebhookMetrics() *WebhookMetrics {
	if s == nil {
		return &WebhookMetrics{}
	}
	return s.webhook
}

// ExecutionMetrics satisfies engine/executor and engine/scheduler's
// observability collaborators.
func (s *Service) ExecutionMetrics() *ExecutionMetrics {
	if s == nil {
		return &ExecutionMetrics{}
	}
	return s.execution
}

// GinMiddleware returns Gin middleware instrumenting every request with
// the generic HTTP metric set (method/route/status latency and size).
func (s *Service) GinMiddleware(ctx context.Context) gin.HandlerFunc {
	if s == nil || !s.initialized {
		return func(c *gin.Context) { c.Next() }
	}
	return middleware.HTTPMetrics(ctx, s.meter)
}

// Handler serves the Prometheus exposition format at the configured path.
func (s *Service) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s == nil || !s.initialized {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("monitoring service not initialized"))
			return
		}
		promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}

// GinHandler adapts Handler to a gin.HandlerFunc for mounting on a router.
func (s *Service) GinHandler() gin.HandlerFunc {
	h := s.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// Shutdown flushes and stops the meter provider.
func (s *Service) Shutdown(ctx context.Context) error {
	if s == nil || s.provider == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.provider.Shutdown(shutdownCtx)
}
