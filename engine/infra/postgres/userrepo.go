package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/SimbaBuilds/NL-To-Automation/engine/core"
	"github.com/georgysavva/scany/v2/pgxscan"
)

// UserRepo backs engine/scheduler's UserStore and the webhook/poller
// dispatch paths that need to resolve an owner id into the core.UserInfo
// a run's template context exposes as the reserved "user" key (§4.1).
// It deliberately does not touch engine/auth's org/RBAC model: this
// engine only ever reads the five UserInfo fields, never roles or
// permissions.
type UserRepo struct {
	db DB
}

// NewUserRepo builds a UserRepo.
func NewUserRepo(db DB) *UserRepo {
	return &UserRepo{db: db}
}

type userProfileRow struct {
	ID       core.ID `db:"id"`
	Email    string  `db:"email"`
	Timezone string  `db:"timezone"`
	Name     string  `db:"name"`
	Phone    string  `db:"phone"`
}

func (r userProfileRow) toUserInfo() core.UserInfo {
	return core.UserInfo{
		ID:       r.ID,
		Email:    r.Email,
		Timezone: r.Timezone,
		Name:     r.Name,
		Phone:    r.Phone,
	}
}

// Get returns ownerID's profile.
func (repo *UserRepo) Get(ctx context.Context, ownerID core.ID) (core.UserInfo, error) {
	sql, args, err := squirrel.Select("id, email, timezone, name, phone").From("user_profiles").
		Where(squirrel.Eq{"id": ownerID}).
		PlaceholderFormat(squirrel.Dollar).ToSql()
	if err != nil {
		return core.UserInfo{}, fmt.Errorf("build get-user query: %w", err)
	}
	var rows []userProfileRow
	if err := pgxscan.Select(ctx, repo.db, &rows, sql, args...); err != nil {
		return core.UserInfo{}, fmt.Errorf("get user: %w", err)
	}
	if len(rows) == 0 {
		return core.UserInfo{}, fmt.Errorf("no profile for owner %s", ownerID)
	}
	return rows[0].toUserInfo(), nil
}

// Upsert stores or replaces ownerID's profile.
func (repo *UserRepo) Upsert(ctx context.Context, info core.UserInfo) error {
	sql, args, err := squirrel.Insert("user_profiles").
		Columns("id", "email", "timezone", "name", "phone").
		Values(info.ID, info.Email, info.Timezone, info.Name, info.Phone).
		Suffix("ON CONFLICT (id) DO UPDATE SET " +
			"email = EXCLUDED.email, timezone = EXCLUDED.timezone, " +
			"name = EXCLUDED.name, phone = EXCLUDED.phone, updated_at = now()").
		PlaceholderFormat(squirrel.Dollar).ToSql()
	if err != nil {
		return fmt.Errorf("build upsert-user query: %w", err)
	}
	if _, err := repo.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}
