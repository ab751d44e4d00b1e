// Package automation holds the authored automation domain model: the
// trigger-to-action-list binding the rest of the engine executes (§3).
package automation

import (
	"time"

	"github.com/SimbaBuilds/NL-To-Automation/engine/core"
	"github.com/SimbaBuilds/NL-To-Automation/engine/template"
)

// TriggerType is one of the five ways an automation can fire.
type TriggerType string

const (
	TriggerWebhook           TriggerType = "webhook"
	TriggerPolling           TriggerType = "polling"
	TriggerScheduleOnce      TriggerType = "schedule_once"
	TriggerScheduleRecurring TriggerType = "schedule_recurring"
	TriggerManual            TriggerType = "manual"
)

// Status tracks the authoring/approval lifecycle (§3 Lifecycle). It is
// distinct from Active: a record only becomes executable once a human has
// confirmed it, and Active is what the dispatcher actually gates on
// (invariant 3).
type Status string

const (
	StatusPendingReview Status = "pending_review"
	StatusActive        Status = "active"
	StatusPaused        Status = "paused"
	StatusDisabled      Status = "disabled"
)

// Record is the authored automation — the single source of truth for all
// runtime decisions (§3 AutomationRecord).
type Record struct {
	ID      core.ID `validate:"required"`
	OwnerID core.ID `validate:"required"`
	Name    string  `validate:"required"`
	Active  bool
	Status  Status `validate:"required,oneof=pending_review active paused disabled"`

	TriggerType   TriggerType `validate:"required,oneof=webhook polling schedule_once schedule_recurring manual"`
	TriggerConfig map[string]any

	Actions   []Action `validate:"unique=ID,dive"`
	Variables map[string]any

	// Polling state; only meaningful when TriggerType == TriggerPolling.
	NextPollAt             *time.Time
	LastPollCursor         string
	PollingIntervalMinutes int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsExecutable reports whether the record may be dispatched right now —
// invariant 3: "An automation whose active=false is never executed."
func (r *Record) IsExecutable() bool {
	return r != nil && r.Active
}

// IsOneTimeSchedule reports whether r is a schedule_once trigger, which
// auto-disables itself after a successful run (§3 Lifecycle).
func (r *Record) IsOneTimeSchedule() bool {
	return r != nil && r.TriggerType == TriggerScheduleOnce
}

// Action is one step of an automation's action list (§3 Action).
type Action struct {
	ID         string `validate:"required"`
	Tool       string `validate:"required"`
	Parameters map[string]any
	OutputAs   string `validate:"omitempty,not_reserved_key"`
	Condition  *template.Condition
}

// HasCondition reports whether a is conditionally executed.
func (a Action) HasCondition() bool {
	return a.Condition != nil
}
