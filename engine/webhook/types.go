// Package webhook implements component C4, Webhook Ingress: one endpoint
// per service, multi-tenant, that verifies, parses, and enqueues inbound
// deliveries for the dispatcher to pick up (§4.4).
package webhook

import (
	"context"

	"github.com/SimbaBuilds/NL-To-Automation/engine/automation"
	"github.com/SimbaBuilds/NL-To-Automation/engine/core"
	"github.com/SimbaBuilds/NL-To-Automation/engine/queue"
)

// Event is the normalized shape every per-service parser produces (§4.4
// step 3).
type Event struct {
	OwnerID   core.ID
	Service   string
	EventType string
	EventID   string
	Data      map[string]any
}

// Response is what the HTTP layer turns into a status code and body.
type Response struct {
	Status int
	Body   any
}

func ok(body any) Response         { return Response{Status: 200, Body: body} }
func noContent() Response          { return Response{Status: 204, Body: nil} }
func badRequest(msg string) Response { return Response{Status: 400, Body: map[string]string{"error": msg}} }
func unauthorized(msg string) Response {
	return Response{Status: 401, Body: map[string]string{"error": msg}}
}
func notFound(msg string) Response { return Response{Status: 404, Body: map[string]string{"error": msg}} }

// Enqueuer is the C3 collaborator this package hands normalized events to.
type Enqueuer interface {
	Enqueue(ctx context.Context, ev queue.Event) (bool, error)
}

// AutomationLookup resolves the webhook automations a given owner/service
// pair could match, for the automation-side filter (§4.4 step 7).
type AutomationLookup interface {
	FindWebhookAutomations(ctx context.Context, ownerID core.ID, service string) ([]*automation.Record, error)
}

// TenantResolver maps a service's external workspace/team identifier to an
// internal owner id (§4.4 step 4).
type TenantResolver interface {
	ResolveOwner(ctx context.Context, service, externalID string) (core.ID, error)
}
