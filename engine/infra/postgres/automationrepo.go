package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/SimbaBuilds/NL-To-Automation/engine/automation"
	"github.com/SimbaBuilds/NL-To-Automation/engine/core"
	"github.com/georgysavva/scany/v2/pgxscan"
)

// AutomationRepo is the AutomationRecord persistence layer. It satisfies
// the AutomationStore/AutomationLookup collaborator interfaces declared by
// engine/webhook, engine/poller, and engine/scheduler directly, so one
// repository backs all three control loops.
type AutomationRepo struct {
	db DB
}

// NewAutomationRepo builds an AutomationRepo.
func NewAutomationRepo(db DB) *AutomationRepo {
	return &AutomationRepo{db: db}
}

type automationRow struct {
	ID                     core.ID    `db:"id"`
	OwnerID                core.ID    `db:"owner_id"`
	Name                   string     `db:"name"`
	Active                 bool       `db:"active"`
	Status                 string     `db:"status"`
	TriggerType            string     `db:"trigger_type"`
	TriggerConfig          []byte     `db:"trigger_config"`
	Actions                []byte     `db:"actions"`
	Variables              []byte     `db:"variables"`
	NextPollAt             *time.Time `db:"next_poll_at"`
	LastPollCursor         string     `db:"last_poll_cursor"`
	PollingIntervalMinutes int        `db:"polling_interval_minutes"`
	CreatedAt              time.Time  `db:"created_at"`
	UpdatedAt              time.Time  `db:"updated_at"`
}

func (r automationRow) toRecord() (*automation.Record, error) {
	var cfg map[string]any
	if len(r.TriggerConfig) > 0 {
		if err := json.Unmarshal(r.TriggerConfig, &cfg); err != nil {
			return nil, fmt.Errorf("decode trigger_config: %w", err)
		}
	}
	var actions []automation.Action
	if len(r.Actions) > 0 {
		if err := json.Unmarshal(r.Actions, &actions); err != nil {
			return nil, fmt.Errorf("decode actions: %w", err)
		}
	}
	var vars map[string]any
	if len(r.Variables) > 0 {
		if err := json.Unmarshal(r.Variables, &vars); err != nil {
			return nil, fmt.Errorf("decode variables: %w", err)
		}
	}
	return &automation.Record{
		ID:                     r.ID,
		OwnerID:                r.OwnerID,
		Name:                   r.Name,
		Active:                 r.Active,
		Status:                 automation.Status(r.Status),
		TriggerType:            automation.TriggerType(r.TriggerType),
		TriggerConfig:          cfg,
		Actions:                actions,
		Variables:              vars,
		NextPollAt:             r.NextPollAt,
		LastPollCursor:         r.LastPollCursor,
		PollingIntervalMinutes: r.PollingIntervalMinutes,
		CreatedAt:              r.CreatedAt,
		UpdatedAt:              r.UpdatedAt,
	}, nil
}

const automationColumns = "id, owner_id, name, active, status, trigger_type, trigger_config, actions, variables, " +
	"next_poll_at, last_poll_cursor, polling_interval_minutes, created_at, updated_at"

func (repo *AutomationRepo) selectRecords(ctx context.Context, sql string, args ...any) ([]*automation.Record, error) {
	var rows []automationRow
	if err := pgxscan.Select(ctx, repo.db, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select automations: %w", err)
	}
	out := make([]*automation.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toRecord()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Get returns a single automation by id.
func (repo *AutomationRepo) Get(ctx context.Context, id core.ID) (*automation.Record, error) {
	sql, args, err := squirrel.Select(automationColumns).From("automations").
		Where(squirrel.Eq{"id": id}).PlaceholderFormat(squirrel.Dollar).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get query: %w", err)
	}
	recs, err := repo.selectRecords(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("automation %s not found", id)
	}
	return recs[0], nil
}

// Create inserts a new automation record.
func (repo *AutomationRepo) Create(ctx context.Context, rec *automation.Record) error {
	cfg, err := ToJSONB(rec.TriggerConfig)
	if err != nil {
		return fmt.Errorf("marshal trigger_config: %w", err)
	}
	actions, err := ToJSONB(rec.Actions)
	if err != nil {
		return fmt.Errorf("marshal actions: %w", err)
	}
	vars, err := ToJSONB(rec.Variables)
	if err != nil {
		return fmt.Errorf("marshal variables: %w", err)
	}
	sql, args, err := squirrel.Insert("automations").
		Columns("id", "owner_id", "name", "active", "status", "trigger_type", "trigger_config",
			"actions", "variables", "next_poll_at", "last_poll_cursor", "polling_interval_minutes").
		Values(rec.ID, rec.OwnerID, rec.Name, rec.Active, string(rec.Status), string(rec.TriggerType), cfg,
			actions, vars, rec.NextPollAt, rec.LastPollCursor, rec.PollingIntervalMinutes).
		PlaceholderFormat(squirrel.Dollar).ToSql()
	if err != nil {
		return fmt.Errorf("build insert query: %w", err)
	}
	if _, err := repo.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert automation: %w", err)
	}
	return nil
}

// FindWebhookAutomations returns every active trigger_type=webhook
// automation belonging to ownerID whose trigger_config.service matches
// service case-insensitively (§4.4 step 7's candidate set; the event-type
// and filter checks happen in engine/webhook against this set).
func (repo *AutomationRepo) FindWebhookAutomations(ctx context.Context, ownerID core.ID, service string) ([]*automation.Record, error) {
	sql, args, err := squirrel.Select(automationColumns).From("automations").
		Where(squirrel.Eq{"owner_id": ownerID, "active": true, "trigger_type": string(automation.TriggerWebhook)}).
		Where("lower(trigger_config->>'service') = lower(?)", service).
		PlaceholderFormat(squirrel.Dollar).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build webhook lookup query: %w", err)
	}
	return repo.selectRecords(ctx, sql, args...)
}

// ListDuePolling returns active trigger_type=polling automations whose
// next_poll_at is unset or has passed (§4.5 entry condition).
func (repo *AutomationRepo) ListDuePolling(ctx context.Context, now time.Time) ([]*automation.Record, error) {
	sql, args, err := squirrel.Select(automationColumns).From("automations").
		Where(squirrel.Eq{"active": true, "trigger_type": string(automation.TriggerPolling)}).
		Where(squirrel.Or{
			squirrel.Eq{"next_poll_at": nil},
			squirrel.LtOrEq{"next_poll_at": now},
		}).
		PlaceholderFormat(squirrel.Dollar).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build due-polling query: %w", err)
	}
	return repo.selectRecords(ctx, sql, args...)
}

// AdvanceCursor persists a poll attempt's resulting cursor and next
// poll time (§4.5 step 7).
func (repo *AutomationRepo) AdvanceCursor(ctx context.Context, id core.ID, cursor string, nextPollAt time.Time) error {
	sql, args, err := squirrel.Update("automations").
		Set("last_poll_cursor", cursor).
		Set("next_poll_at", nextPollAt).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).ToSql()
	if err != nil {
		return fmt.Errorf("build advance-cursor query: %w", err)
	}
	if _, err := repo.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("advance cursor: %w", err)
	}
	return nil
}

// ListScheduledByBucket returns active schedule_once/schedule_recurring
// automations whose trigger_config.interval equals bucket (§4.6 step 1).
func (repo *AutomationRepo) ListScheduledByBucket(ctx context.Context, bucket string) ([]*automation.Record, error) {
	sql, args, err := squirrel.Select(automationColumns).From("automations").
		Where(squirrel.Eq{"active": true}).
		Where(squirrel.Eq{"trigger_type": []string{
			string(automation.TriggerScheduleOnce),
			string(automation.TriggerScheduleRecurring),
		}}).
		Where("trigger_config->>'interval' = ?", bucket).
		PlaceholderFormat(squirrel.Dollar).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build scheduled-bucket query: %w", err)
	}
	return repo.selectRecords(ctx, sql, args...)
}

// Deactivate sets active=false, used after a one-time automation dispatches
// successfully (§4.6 step 4).
func (repo *AutomationRepo) Deactivate(ctx context.Context, id core.ID) error {
	sql, args, err := squirrel.Update("automations").
		Set("active", false).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).ToSql()
	if err != nil {
		return fmt.Errorf("build deactivate query: %w", err)
	}
	if _, err := repo.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("deactivate automation: %w", err)
	}
	return nil
}
