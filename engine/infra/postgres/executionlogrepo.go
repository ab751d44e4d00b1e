package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/SimbaBuilds/NL-To-Automation/engine/automation"
	"github.com/SimbaBuilds/NL-To-Automation/engine/core"
	"github.com/SimbaBuilds/NL-To-Automation/engine/executor"
	"github.com/georgysavva/scany/v2/pgxscan"
)

// ExecutionLogRepo persists ExecutionLog rows (§3) and backs
// engine/scheduler's ExecutionLogStore collaborator.
type ExecutionLogRepo struct {
	db DB
}

// NewExecutionLogRepo builds an ExecutionLogRepo.
func NewExecutionLogRepo(db DB) *ExecutionLogRepo {
	return &ExecutionLogRepo{db: db}
}

// legacyScheduleTriggerTypes is the set of trigger_type strings that count
// toward a scheduler dueness recency check: the current spellings plus the
// retained legacy "schedule" spelling (Open Question 3).
var legacyScheduleTriggerTypes = []string{
	"schedule",
	string(automation.TriggerScheduleOnce),
	string(automation.TriggerScheduleRecurring),
}

// Insert writes one ExecutionLog row.
func (repo *ExecutionLogRepo) Insert(ctx context.Context, id core.ID, log *executor.ExecutionLog) error {
	actions, err := ToJSONB(log.Actions)
	if err != nil {
		return fmt.Errorf("marshal action results: %w", err)
	}
	triggerData, err := ToJSONB(log.TriggerData)
	if err != nil {
		return fmt.Errorf("marshal trigger_data: %w", err)
	}
	errorSummary := errorSummaryFor(log)

	var finishedAt *time.Time
	if !log.FinishedAt.IsZero() {
		finishedAt = &log.FinishedAt
	}

	sql, args, err := squirrel.Insert("execution_logs").
		Columns("id", "automation_id", "owner_id", "trigger_type", "trigger_data",
			"status", "actions", "error_summary", "started_at", "finished_at").
		Values(id, log.AutomationID, log.OwnerID, string(log.TriggerType), triggerData,
			string(log.Status), actions, errorSummary, log.StartedAt, finishedAt).
		PlaceholderFormat(squirrel.Dollar).ToSql()
	if err != nil {
		return fmt.Errorf("build insert query: %w", err)
	}
	if _, err := repo.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert execution log: %w", err)
	}
	return nil
}

// errorSummaryFor concatenates every failed action's error, since
// ExecutionLog itself has no single top-level error field (§3's
// "optional error_summary" is derived, not stored redundantly per action).
func errorSummaryFor(log *executor.ExecutionLog) string {
	summary := ""
	for _, result := range log.Actions {
		if result.Status != executor.ActionStatusFailed || result.Error == "" {
			continue
		}
		if summary != "" {
			summary += "; "
		}
		summary += fmt.Sprintf("%s: %s", result.ActionID, result.Error)
	}
	return summary
}

type executionLogRow struct {
	StartedAt time.Time `db:"started_at"`
}

// LastScheduledRun satisfies engine/scheduler.ExecutionLogStore: the start
// time of automationID's most recent execution log whose trigger_type is
// the legacy "schedule" spelling or the current schedule_once/
// schedule_recurring (§4.6 step 2).
func (repo *ExecutionLogRepo) LastScheduledRun(ctx context.Context, automationID core.ID) (time.Time, bool, error) {
	sql, args, err := squirrel.Select("started_at").From("execution_logs").
		Where(squirrel.Eq{"automation_id": automationID, "trigger_type": legacyScheduleTriggerTypes}).
		OrderBy("started_at DESC").Limit(1).
		PlaceholderFormat(squirrel.Dollar).ToSql()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("build last-run query: %w", err)
	}
	var rows []executionLogRow
	if err := pgxscan.Select(ctx, repo.db, &rows, sql, args...); err != nil {
		return time.Time{}, false, fmt.Errorf("query last scheduled run: %w", err)
	}
	if len(rows) == 0 {
		return time.Time{}, false, nil
	}
	return rows[0].StartedAt, true, nil
}
