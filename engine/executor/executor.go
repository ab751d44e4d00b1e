// Package executor implements component C2, the Action Executor: given an
// automation record, trigger data, and the triggering user, it builds the
// template context, dispatches each action's tool in declared order, and
// emits a single ExecutionLog (§4.2).
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SimbaBuilds/NL-To-Automation/engine/automation"
	"github.com/SimbaBuilds/NL-To-Automation/engine/core"
	"github.com/SimbaBuilds/NL-To-Automation/engine/template"
	"github.com/SimbaBuilds/NL-To-Automation/engine/toolregistry"
	"github.com/SimbaBuilds/NL-To-Automation/pkg/logger"
)

// DefaultActionTimeout is applied to every action dispatch unless the
// Executor was constructed with an override (§4.2: "default 30 s,
// per-invocation configurable").
const DefaultActionTimeout = 30 * time.Second

// Notifier is the out-of-scope notification collaborator invoked when an
// automation aborts with usage_limit_exceeded (§4.2 step 2e).
type Notifier interface {
	NotifyUsageLimitExceeded(ctx context.Context, log *ExecutionLog, tool string) error
}

// Metrics receives one execution's status and latency (§10). A nil
// Metrics is valid — ReportExecution becomes a no-op.
type Metrics interface {
	ReportExecution(triggerType automation.TriggerType, status string, duration time.Duration)
}

// Executor runs automations against a tool registry.
type Executor struct {
	registry      toolregistry.Registry
	notifier      Notifier
	metrics       Metrics
	actionTimeout time.Duration
}

// New builds an Executor. notifier may be nil, in which case a
// usage-limit abort is recorded but not reported anywhere. metrics may be
// nil. actionTimeout of zero uses DefaultActionTimeout.
func New(registry toolregistry.Registry, notifier Notifier, metrics Metrics, actionTimeout time.Duration) *Executor {
	if actionTimeout <= 0 {
		actionTimeout = DefaultActionTimeout
	}
	return &Executor{registry: registry, notifier: notifier, metrics: metrics, actionTimeout: actionTimeout}
}

// Execute runs automation against triggerData for user, returning the
// completed ExecutionLog. triggerType is recorded on the log as-is — it is
// independent of auto.TriggerType, since a force-run or manual invocation
// of a scheduled automation is still logged as manual (§4.6 step 2's
// "manual runs do not block scheduling" relies on this distinction).
// Execute never returns an error for tool-level failures — those are
// recorded on the log itself; an error return means the executor could
// not run at all (nil automation).
func (e *Executor) Execute(
	ctx context.Context,
	auto *automation.Record,
	triggerType automation.TriggerType,
	triggerData map[string]any,
	user core.UserInfo,
) (*ExecutionLog, error) {
	if auto == nil {
		return nil, fmt.Errorf("execute: automation is nil")
	}
	log := logger.FromContext(ctx).With("automation_id", auto.ID, "owner_id", auto.OwnerID)

	execLog := &ExecutionLog{
		AutomationID: auto.ID,
		OwnerID:      auto.OwnerID,
		TriggerType:  triggerType,
		TriggerData:  triggerData,
		StartedAt:    time.Now(),
		Actions:      make([]ActionResult, 0, len(auto.Actions)),
	}

	tctx := template.BuildContext(triggerData, user, auto.Variables, execLog.StartedAt)

	for _, action := range auto.Actions {
		if action.HasCondition() && !template.EvaluateCondition(*action.Condition, tctx) {
			execLog.Actions = append(execLog.Actions, ActionResult{
				ActionID: action.ID,
				Status:   ActionStatusSkipped,
			})
			continue
		}

		result, output, usageLimitHit, err := e.runAction(ctx, auto.OwnerID, action, tctx)
		execLog.Actions = append(execLog.Actions, result)

		if usageLimitHit {
			log.Info("automation aborted on usage limit", "action_id", action.ID, "tool", action.Tool)
			execLog.Status = StatusUsageLimitExceeded
			execLog.FinishedAt = time.Now()
			if e.notifier != nil {
				if notifyErr := e.notifier.NotifyUsageLimitExceeded(ctx, execLog, action.Tool); notifyErr != nil {
					log.Error("usage limit notification failed", "error", notifyErr)
				}
			}
			e.reportMetrics(triggerType, execLog)
			return execLog, nil
		}

		if err != nil {
			log.Debug("action failed, continuing", "action_id", action.ID, "error", err)
			continue
		}

		if action.OutputAs != "" {
			tctx = template.WithOutput(tctx, action.OutputAs, output)
		}
	}

	execLog.FinishedAt = time.Now()
	execLog.Status = computeStatus(execLog.Actions)
	e.reportMetrics(triggerType, execLog)
	return execLog, nil
}

// reportMetrics is a no-op when the Executor was built without a Metrics
// collaborator.
func (e *Executor) reportMetrics(triggerType automation.TriggerType, execLog *ExecutionLog) {
	if e.metrics == nil {
		return
	}
	e.metrics.ReportExecution(triggerType, string(execLog.Status), execLog.FinishedAt.Sub(execLog.StartedAt))
}

// runAction resolves parameters, dispatches the tool under a timeout, and
// builds the ActionResult for one action. The bool return reports whether
// the tool signaled a usage-limit sentinel (§4.2 step 2e).
func (e *Executor) runAction(
	ctx context.Context,
	ownerID core.ID,
	action automation.Action,
	tctx map[string]any,
) (ActionResult, any, bool, error) {
	started := time.Now()
	result := ActionResult{ActionID: action.ID, StartedAt: started}

	params, err := template.ResolveParams(action.Parameters, tctx)
	if err != nil {
		result.Status = ActionStatusFailed
		result.Error = fmt.Sprintf("resolve parameters: %v", err)
		result.Duration = time.Since(started)
		return result, nil, false, err
	}

	actionCtx, cancel := context.WithTimeout(ctx, e.actionTimeout)
	defer cancel()

	output, err := e.registry.Execute(actionCtx, action.Tool, params, ownerID, toolregistry.ExecuteOptions{Timeout: e.actionTimeout})
	result.Duration = time.Since(started)
	if err != nil {
		result.Status = ActionStatusFailed
		result.Error = err.Error()
		if errors.Is(err, toolregistry.ErrUsageLimitExceeded) {
			return result, nil, true, err
		}
		return result, nil, false, err
	}

	result.Status = ActionStatusCompleted
	result.Output = output
	return result, output, false, nil
}

// computeStatus derives the overall ExecutionLog status from its recorded
// actions (§4.2 step 3). It is never called when the run already aborted
// on a usage limit — that path sets the status directly.
func computeStatus(results []ActionResult) Status {
	var succeeded, failed int
	for _, r := range results {
		switch r.Status {
		case ActionStatusCompleted:
			succeeded++
		case ActionStatusFailed:
			failed++
		}
	}
	switch {
	case failed == 0:
		return StatusCompleted
	case succeeded == 0:
		return StatusFailed
	default:
		return StatusPartialFailure
	}
}
