package webhook

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/SimbaBuilds/NL-To-Automation/engine/queue"
	"github.com/SimbaBuilds/NL-To-Automation/engine/webhook/verify"
	"github.com/SimbaBuilds/NL-To-Automation/pkg/logger"
)

// Metrics receives per-request webhook latency and outcome (§10). A nil
// Metrics is valid — Report becomes a no-op.
type Metrics interface {
	ReportRequest(service string, status int, duration time.Duration)
}

// ServiceConfig binds one service slug to its verification strategy and
// handshake secret.
type ServiceConfig struct {
	Verify verify.Config
	Secret string // the Fitbit handshake's `verify` code, when applicable
}

// Config wires Ingress to its collaborators.
type Config struct {
	Services    map[string]ServiceConfig
	Automations AutomationLookup
	Tenants     TenantResolver
	Queue       Enqueuer
	Gmail       GmailHistoryClient
	Cursors     gmailCursorStore
	Metrics     Metrics
}

// Ingress is component C4: the multi-tenant webhook handler (§4.4).
type Ingress struct {
	services    map[string]ServiceConfig
	automations AutomationLookup
	tenants     TenantResolver
	queue       Enqueuer
	gmail       GmailHistoryClient
	cursors     gmailCursorStore
	metrics     Metrics

	// verifierFactory is overridable in tests to inject a fake verifier.
	verifierFactory func(verify.Config) (verify.Verifier, error)
}

// New builds an Ingress from cfg.
func New(cfg Config) *Ingress {
	return &Ingress{
		services:        cfg.Services,
		automations:     cfg.Automations,
		tenants:         cfg.Tenants,
		queue:           cfg.Queue,
		gmail:           cfg.Gmail,
		cursors:         cfg.Cursors,
		metrics:         cfg.Metrics,
		verifierFactory: verify.New,
	}
}

// Handle processes one inbound delivery for service (§4.4's full handler
// sequence). It never returns a Go error for a rejected request — error is
// reserved for conditions the caller should log as unexpected; rejections
// are communicated entirely through Response.Status per the "always 2xx
// for received-and-filtered, 4xx for signature/parse errors" discipline.
func (in *Ingress) Handle(ctx context.Context, service string, req *http.Request) (resp Response, err error) {
	start := time.Now()
	defer func() {
		if in.metrics != nil {
			in.metrics.ReportRequest(service, resp.Status, time.Since(start))
		}
	}()

	log := logger.FromContext(ctx).With("service", service)

	body, readErr := io.ReadAll(req.Body)
	if readErr != nil {
		return badRequest("failed to read request body"), nil
	}

	svcCfg, configured := in.services[service]
	secret := svcCfg.Secret

	if resp, handled := handshake(service, req, body, secret); handled {
		return resp, nil
	}

	if configured {
		verifier, err := in.verifierFactory(svcCfg.Verify)
		if err != nil {
			return Response{}, fmt.Errorf("webhook: build verifier for %s: %w", service, err)
		}
		if err := verifier.Verify(ctx, req, body); err != nil {
			log.Warn("webhook signature verification failed", "error", err)
			return unauthorized("signature verification failed"), nil
		}
	}

	parse, found := parsers[service]
	if !found {
		return notFound("unknown service"), nil
	}
	envelope, err := parse(body)
	if err != nil {
		log.Warn("webhook parse failed", "error", err)
		return badRequest(err.Error()), nil
	}

	if envelope.ExternalID == "" {
		return badRequest("missing tenant identifier"), nil
	}
	ownerID, err := in.tenants.ResolveOwner(ctx, service, envelope.ExternalID)
	if err != nil {
		log.Warn("webhook tenant resolution failed", "external_id", envelope.ExternalID, "error", err)
		return badRequest("connect the service"), nil
	}

	candidates := []parsed{envelope}
	if service == "gmail" {
		candidates = resolveGmailEvents(ctx, in.gmail, in.cursors, ownerID.String(), envelope.ExternalID, envelope)
	}

	enqueued := 0
	for _, c := range candidates {
		if service == "microsoft" && !microsoftFilter(c.Data) {
			continue
		}
		ev := Event{
			OwnerID:   ownerID,
			Service:   service,
			EventType: c.EventType,
			EventID:   c.EventID,
			Data:      c.Data,
		}
		if err := in.enqueueIfMatched(ctx, ev); err != nil {
			return Response{}, err
		}
		enqueued++
	}

	return ok(map[string]any{"status": "received", "enqueued": enqueued}), nil
}

// enqueueIfMatched applies the automation-side filter (§4.4 step 7) and
// enqueues ev through C3 when it passes.
func (in *Ingress) enqueueIfMatched(ctx context.Context, ev Event) error {
	candidates, err := in.automations.FindWebhookAutomations(ctx, ev.OwnerID, ev.Service)
	if err != nil {
		return fmt.Errorf("webhook: find automations for owner %s: %w", ev.OwnerID, err)
	}
	if !automationSideFilter(candidates, ev) {
		return nil
	}
	_, err = in.queue.Enqueue(ctx, queue.Event{
		Service:   ev.Service,
		EventID:   ev.EventID,
		OwnerID:   ev.OwnerID,
		EventType: ev.EventType,
		Data:      ev.Data,
	})
	if err != nil {
		return fmt.Errorf("webhook: enqueue event: %w", err)
	}
	return nil
}
