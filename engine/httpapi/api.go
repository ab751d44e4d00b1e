// Package httpapi exposes the scheduler, poller, and executor over the
// admin HTTP surface named by §6: the cadence, polling, introspection,
// manual-trigger, and direct-execution endpoints that sit alongside the
// webhook ingress router.
package httpapi

import (
	"context"

	"github.com/SimbaBuilds/NL-To-Automation/engine/automation"
	"github.com/SimbaBuilds/NL-To-Automation/engine/core"
	"github.com/SimbaBuilds/NL-To-Automation/engine/executor"
	"github.com/SimbaBuilds/NL-To-Automation/engine/scheduler"
)

// SchedulerRunner is the subset of *scheduler.Scheduler this API drives.
type SchedulerRunner interface {
	Tick(ctx context.Context, bucket string) error
	ForceRun(ctx context.Context, id core.ID) error
}

// PollRunner is the subset of *poller.Poller this API drives.
type PollRunner interface {
	Tick(ctx context.Context) error
	TickCategory(ctx context.Context, category string) error
	ForcePoll(ctx context.Context, id core.ID) error
}

// Dispatcher is the C2 collaborator /execute hands off to directly.
type Dispatcher interface {
	Execute(
		ctx context.Context,
		auto *automation.Record,
		triggerType automation.TriggerType,
		triggerData map[string]any,
		user core.UserInfo,
	) (*executor.ExecutionLog, error)
}

// AutomationGetter resolves an automation id to its record for /execute
// and manual-trigger requests.
type AutomationGetter interface {
	Get(ctx context.Context, id core.ID) (*automation.Record, error)
}

// UserGetter resolves the core.UserInfo an execution's template context
// needs.
type UserGetter interface {
	Get(ctx context.Context, ownerID core.ID) (core.UserInfo, error)
}

// Invalidator clears one tool's memoized classification.
// *toolregistry.Classifier satisfies this directly.
type Invalidator interface {
	Invalidate(tool string)
}

// API wires the admin endpoints to their collaborators.
type API struct {
	scheduler     SchedulerRunner
	poller        PollRunner
	dispatcher    Dispatcher
	automations   AutomationGetter
	users         UserGetter
	scheduledRuns scheduler.AutomationStore
	executionLogs scheduler.ExecutionLogStore
	classifier    Invalidator
}

// Options groups API's collaborators. All fields are required except
// Classifier, whose absence makes the invalidate endpoint a no-op 503.
type Options struct {
	Scheduler     SchedulerRunner
	Poller        PollRunner
	Dispatcher    Dispatcher
	Automations   AutomationGetter
	Users         UserGetter
	ScheduledRuns scheduler.AutomationStore
	ExecutionLogs scheduler.ExecutionLogStore
	Classifier    Invalidator
}

// New builds an API.
func New(opts Options) *API {
	return &API{
		scheduler:     opts.Scheduler,
		poller:        opts.Poller,
		dispatcher:    opts.Dispatcher,
		automations:   opts.Automations,
		users:         opts.Users,
		scheduledRuns: opts.ScheduledRuns,
		executionLogs: opts.ExecutionLogs,
		classifier:    opts.Classifier,
	}
}
