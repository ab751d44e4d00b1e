package executor

import (
	"time"

	"github.com/SimbaBuilds/NL-To-Automation/engine/automation"
	"github.com/SimbaBuilds/NL-To-Automation/engine/core"
)

// Status is the overall outcome of one automation run (§4.2 step 3).
type Status string

const (
	StatusCompleted          Status = "completed"
	StatusPartialFailure     Status = "partial_failure"
	StatusFailed             Status = "failed"
	StatusUsageLimitExceeded Status = "usage_limit_exceeded"
)

// ActionStatus is the per-action outcome recorded on an ExecutionLog.
type ActionStatus string

const (
	ActionStatusCompleted ActionStatus = "completed"
	ActionStatusSkipped   ActionStatus = "skipped"
	ActionStatusFailed    ActionStatus = "failed"
)

// ActionResult records one action's dispatch (§4.2 step 2d).
type ActionResult struct {
	ActionID  string
	Status    ActionStatus
	Output    any
	Error     string
	StartedAt time.Time
	Duration  time.Duration
}

// ExecutionLog is the single row emitted per automation run (§4.2 step 4,
// §3 ExecutionLog).
type ExecutionLog struct {
	AutomationID core.ID
	OwnerID      core.ID
	TriggerType  automation.TriggerType
	TriggerData  map[string]any
	Status       Status
	Actions      []ActionResult
	StartedAt    time.Time
	FinishedAt   time.Time
}

// ActionsExecuted and ActionsFailed satisfy §3's ExecutionLog summary
// counters (skipped actions are not counted in either, per §8's invariant
// actions_executed + actions_failed <= len(actions)).
func (l *ExecutionLog) ActionsExecuted() int {
	n := 0
	for _, r := range l.Actions {
		if r.Status == ActionStatusCompleted {
			n++
		}
	}
	return n
}

func (l *ExecutionLog) ActionsFailed() int {
	n := 0
	for _, r := range l.Actions {
		if r.Status == ActionStatusFailed {
			n++
		}
	}
	return n
}

// Elapsed returns the wall-clock span of the run.
func (l *ExecutionLog) Elapsed() time.Duration {
	if l == nil || l.FinishedAt.IsZero() {
		return 0
	}
	return l.FinishedAt.Sub(l.StartedAt)
}
