// Package notify declares the out-of-scope notification delivery
// collaborator (§6): the executor calls it exactly once per run, when a
// usage-limit sentinel aborts the remaining actions.
package notify

import (
	"context"

	"github.com/SimbaBuilds/NL-To-Automation/engine/core"
)

// Notifier delivers an operator-facing notification.
type Notifier interface {
	// Notify sends subject/body to whatever channel the deployment wires
	// (email, Slack, push) on behalf of ownerID.
	Notify(ctx context.Context, ownerID core.ID, subject, body string) error
}
