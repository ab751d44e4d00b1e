package postgres

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/SimbaBuilds/NL-To-Automation/engine/core"
	"github.com/SimbaBuilds/NL-To-Automation/engine/credential"
	"github.com/SimbaBuilds/NL-To-Automation/pkg/logger"
	"github.com/georgysavva/scany/v2/pgxscan"
)

// CredentialRepo backs engine/credential.Store and engine/webhook.
// TenantResolver against the integrations table. Token refresh (§5) is
// serialized per (ownerID, service) with a keyed mutex and double-checked
// expiry so two concurrent expired-token discoveries don't both refresh.
type CredentialRepo struct {
	db        DB
	refresher credential.Refresher
	keyLocks  sync.Map // string -> *sync.Mutex
}

// NewCredentialRepo builds a CredentialRepo. refresher may be nil, in which
// case expired tokens are returned stale (§5: "failure to refresh does not
// block dispatch").
func NewCredentialRepo(db DB, refresher credential.Refresher) *CredentialRepo {
	return &CredentialRepo{db: db, refresher: refresher}
}

// lockFor returns the mutex guarding refreshes for (ownerID, service),
// creating it on first use.
func (repo *CredentialRepo) lockFor(ownerID core.ID, service string) *sync.Mutex {
	key := ownerID.String() + "/" + service
	actual, _ := repo.keyLocks.LoadOrStore(key, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

type integrationRow struct {
	OwnerID      core.ID   `db:"owner_id"`
	Service      string    `db:"service"`
	ExternalID   string    `db:"external_id"`
	AccessToken  string    `db:"access_token"`
	RefreshToken string    `db:"refresh_token"`
	ExpiresAt    time.Time `db:"expires_at"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r integrationRow) toIntegration() credential.Integration {
	return credential.Integration{
		OwnerID:      r.OwnerID,
		Service:      r.Service,
		ExternalID:   r.ExternalID,
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    r.ExpiresAt,
		CreatedAt:    r.CreatedAt,
	}
}

const integrationColumns = "owner_id, service, external_id, access_token, refresh_token, expires_at, created_at"

// ResolveOwner maps a service's external workspace/team id to the owner of
// the oldest matching integration (§4.4 step 4, "oldest matching
// integration wins" when a reinstall produced more than one candidate).
func (repo *CredentialRepo) ResolveOwner(ctx context.Context, service, externalID string) (core.ID, error) {
	sql, args, err := squirrel.Select("owner_id").From("integrations").
		Where(squirrel.Eq{"service": service, "external_id": externalID}).
		OrderBy("created_at ASC").Limit(1).
		PlaceholderFormat(squirrel.Dollar).ToSql()
	if err != nil {
		return "", fmt.Errorf("build resolve-owner query: %w", err)
	}
	var rows []struct {
		OwnerID core.ID `db:"owner_id"`
	}
	if err := pgxscan.Select(ctx, repo.db, &rows, sql, args...); err != nil {
		return "", fmt.Errorf("resolve owner: %w", err)
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("no integration found for %s/%s", service, externalID)
	}
	return rows[0].OwnerID, nil
}

// Get returns ownerID's stored credential for service, refreshing it first
// if it's within the expiry buffer (§5). Concurrent callers for the same
// (ownerID, service) serialize on a per-key mutex; the second one to arrive
// re-checks expiry under the lock before it also attempts a refresh.
func (repo *CredentialRepo) Get(ctx context.Context, ownerID core.ID, service string) (credential.Integration, error) {
	integ, err := repo.getRaw(ctx, ownerID, service)
	if err != nil {
		return credential.Integration{}, err
	}
	if !integ.NeedsRefresh(time.Now()) {
		return integ, nil
	}
	lock := repo.lockFor(ownerID, service)
	lock.Lock()
	defer lock.Unlock()
	integ, err = repo.getRaw(ctx, ownerID, service)
	if err != nil {
		return credential.Integration{}, err
	}
	if !integ.NeedsRefresh(time.Now()) {
		return integ, nil
	}
	return repo.refresh(ctx, integ)
}

// refresh exchanges integ's refresh token via repo.refresher and writes the
// result back. A missing refresher or a failed exchange is not fatal: the
// stale credential is returned so the downstream tool call surfaces the
// auth error (§7).
func (repo *CredentialRepo) refresh(ctx context.Context, integ credential.Integration) (credential.Integration, error) {
	log := logger.FromContext(ctx)
	if repo.refresher == nil {
		log.Warn("credential refresh skipped: no refresher configured", "owner_id", integ.OwnerID, "service", integ.Service)
		return integ, nil
	}
	accessToken, refreshToken, expiresAt, err := repo.refresher.Refresh(ctx, integ)
	if err != nil {
		log.Error("credential refresh failed", "owner_id", integ.OwnerID, "service", integ.Service, "error", err)
		return integ, nil
	}
	integ.AccessToken = accessToken
	integ.RefreshToken = refreshToken
	integ.ExpiresAt = expiresAt
	if err := repo.Upsert(ctx, integ); err != nil {
		log.Error("persisting refreshed credential failed", "owner_id", integ.OwnerID, "service", integ.Service, "error", err)
		return integ, nil
	}
	return integ, nil
}

// getRaw reads ownerID's stored credential for service without refreshing.
func (repo *CredentialRepo) getRaw(ctx context.Context, ownerID core.ID, service string) (credential.Integration, error) {
	sql, args, err := squirrel.Select(integrationColumns).From("integrations").
		Where(squirrel.Eq{"owner_id": ownerID, "service": service}).
		PlaceholderFormat(squirrel.Dollar).ToSql()
	if err != nil {
		return credential.Integration{}, fmt.Errorf("build get query: %w", err)
	}
	var rows []integrationRow
	if err := pgxscan.Select(ctx, repo.db, &rows, sql, args...); err != nil {
		return credential.Integration{}, fmt.Errorf("get integration: %w", err)
	}
	if len(rows) == 0 {
		return credential.Integration{}, fmt.Errorf("no integration for owner %s/%s", ownerID, service)
	}
	return rows[0].toIntegration(), nil
}

// Upsert stores or replaces ownerID's credential for integ.Service; refresh
// uses it to write back newly exchanged access/refresh tokens.
func (repo *CredentialRepo) Upsert(ctx context.Context, integ credential.Integration) error {
	sql, args, err := squirrel.Insert("integrations").
		Columns("owner_id", "service", "external_id", "access_token", "refresh_token", "expires_at").
		Values(integ.OwnerID, integ.Service, integ.ExternalID, integ.AccessToken, integ.RefreshToken, integ.ExpiresAt).
		Suffix("ON CONFLICT (owner_id, service) DO UPDATE SET "+
			"external_id = EXCLUDED.external_id, access_token = EXCLUDED.access_token, "+
			"refresh_token = EXCLUDED.refresh_token, expires_at = EXCLUDED.expires_at").
		PlaceholderFormat(squirrel.Dollar).ToSql()
	if err != nil {
		return fmt.Errorf("build upsert query: %w", err)
	}
	if _, err := repo.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("upsert integration: %w", err)
	}
	return nil
}
