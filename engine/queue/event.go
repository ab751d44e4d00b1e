// Package queue implements component C3, the Event Queue: a durable store
// keyed by (service, event_id, owner_id) that webhook ingress and the
// poller enqueue into, and that a claim-based dispatcher drains (§4.3).
package queue

import (
	"time"

	"github.com/SimbaBuilds/NL-To-Automation/engine/core"
)

// Event is one queued occurrence awaiting dispatch to matching
// automations (§3 Event).
type Event struct {
	ID         core.ID
	Service    string
	EventID    string
	OwnerID    core.ID
	EventType  string
	Data       map[string]any
	Processed  bool
	RetryCount int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Key is the uniqueness constraint tuple an Enqueue call is idempotent
// against (§4.3: "Insert is idempotent against the uniqueness
// constraint: a duplicate insert is swallowed and reported as success.").
type Key struct {
	Service string
	EventID string
	OwnerID core.ID
}
