// Package credential declares the out-of-scope OAuth credential store
// collaborator (§6): per-owner integration records, tenant resolution for
// webhook ingress, and the token refresh flow the action executor relies
// on indirectly through tool calls.
package credential

import (
	"context"
	"time"

	"github.com/SimbaBuilds/NL-To-Automation/engine/core"
)

// Integration is one owner's connected account for a service — the record
// tenant resolution (§4.4 step 4) searches across.
type Integration struct {
	OwnerID      core.ID
	Service      string
	ExternalID   string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

// Store resolves external workspace/team identifiers to an internal owner
// id and serves refreshed access tokens to the executor's tool calls.
type Store interface {
	// ResolveOwner finds the owner id bound to externalID for service. When
	// more than one integration shares externalID (a workspace connected by
	// multiple owners), the oldest one wins (§4.4 step 4).
	ResolveOwner(ctx context.Context, service, externalID string) (core.ID, error)

	// Get returns the stored integration for (ownerID, service), refreshing
	// it first if expired.
	Get(ctx context.Context, ownerID core.ID, service string) (Integration, error)
}

// Refresher performs the out-of-scope OAuth token exchange with the
// provider named by Integration.Service. A Store wraps a refresh attempt
// with serialization and write-back; it never talks to a provider itself.
type Refresher interface {
	Refresh(ctx context.Context, integ Integration) (accessToken, refreshToken string, expiresAt time.Time, err error)
}

// refreshBuffer is how far ahead of ExpiresAt a token is treated as expired,
// so a call doesn't start using a token that dies mid-flight (§5).
const refreshBuffer = 5 * time.Minute

// NeedsRefresh reports whether i's access token should be refreshed before
// now, using the buffer from §5's "lazy on credential fetch" rule.
func (i Integration) NeedsRefresh(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt.Add(-refreshBuffer))
}
