// Package scheduler implements component C6: the cadence-bucket loop that
// finds due scheduled (and one-time) automations and dispatches them
// through the Action Executor (§4.6).
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/SimbaBuilds/NL-To-Automation/engine/automation"
	"github.com/SimbaBuilds/NL-To-Automation/engine/core"
	"github.com/SimbaBuilds/NL-To-Automation/engine/executor"
	"github.com/SimbaBuilds/NL-To-Automation/engine/worker"
	"github.com/SimbaBuilds/NL-To-Automation/pkg/logger"
)

// Cadence buckets a schedule_recurring automation's trigger_config.interval
// can name, plus the synthetic "once" bucket for schedule_once (§4.6).
const (
	Bucket5Min   = "5min"
	Bucket15Min  = "15min"
	Bucket30Min  = "30min"
	Bucket1Hr    = "1hr"
	Bucket6Hr    = "6hr"
	BucketDaily  = "daily"
	BucketWeekly = "weekly"
	BucketOnce   = "once"
)

// Buckets lists every cadence bucket the scheduler's periodic loop cycles
// through in one invocation.
var Buckets = []string{Bucket5Min, Bucket15Min, Bucket30Min, Bucket1Hr, Bucket6Hr, BucketDaily, BucketWeekly, BucketOnce}

// DefaultBatchSize is the dispatch concurrency cap (§4.6 step 5, §5).
const DefaultBatchSize = 5

// AutomationStore is the persistence collaborator the scheduler reads
// candidate automations from and deactivates one-time automations through.
type AutomationStore interface {
	// ListScheduledByBucket returns active automations with
	// trigger_type in {schedule_once, schedule_recurring} whose
	// trigger_config.interval equals bucket.
	ListScheduledByBucket(ctx context.Context, bucket string) ([]*automation.Record, error)
	// Get returns a single automation by id, for force-run requests.
	Get(ctx context.Context, id core.ID) (*automation.Record, error)
	// Deactivate sets active=false, used after a successful schedule_once
	// dispatch (§4.6 step 4).
	Deactivate(ctx context.Context, id core.ID) error
}

// ExecutionLogStore is queried for the dueness check's recency gate.
type ExecutionLogStore interface {
	// LastScheduledRun returns the start time of the most recent
	// execution log for automationID whose trigger_type is one of the
	// legacy "schedule" spelling or the current "schedule_once"/
	// "schedule_recurring" (manual and polling runs do not count), and
	// whether one exists at all.
	LastScheduledRun(ctx context.Context, automationID core.ID) (time.Time, bool, error)
}

// UserStore resolves the core.UserInfo the executor's template context
// needs for an automation's owner.
type UserStore interface {
	Get(ctx context.Context, ownerID core.ID) (core.UserInfo, error)
}

// Dispatcher is the C2 collaborator a due automation is handed off to.
// *engine/executor.Executor satisfies this directly.
type Dispatcher interface {
	Execute(
		ctx context.Context,
		auto *automation.Record,
		triggerType automation.TriggerType,
		triggerData map[string]any,
		user core.UserInfo,
	) (*executor.ExecutionLog, error)
}

// Scheduler is component C6.
type Scheduler struct {
	store      AutomationStore
	logs       ExecutionLogStore
	users      UserStore
	dispatcher Dispatcher
	batchSize  int
}

// Options configures a Scheduler.
type Options struct {
	BatchSize int
}

func (o Options) normalized() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	return o
}

// New builds a Scheduler.
func New(store AutomationStore, logs ExecutionLogStore, users UserStore, dispatcher Dispatcher, opts Options) *Scheduler {
	opts = opts.normalized()
	return &Scheduler{store: store, logs: logs, users: users, dispatcher: dispatcher, batchSize: opts.BatchSize}
}

// Tick runs one cadence bucket's selection-and-dispatch cycle (§4.6 steps
// 1-5). The "once" bucket is routed to its own one-time handling (step 4).
func (s *Scheduler) Tick(ctx context.Context, bucket string) error {
	if bucket == BucketOnce {
		return s.tickOnce(ctx)
	}

	candidates, err := s.store.ListScheduledByBucket(ctx, bucket)
	if err != nil {
		return fmt.Errorf("scheduler: list bucket %s: %w", bucket, err)
	}

	now := time.Now()
	due := make([]*automation.Record, 0, len(candidates))
	for _, rec := range candidates {
		last, found, err := s.logs.LastScheduledRun(ctx, rec.ID)
		if err != nil {
			logger.FromContext(ctx).Warn("scheduler: execution log lookup failed", "automation_id", rec.ID, "error", err)
			continue
		}
		var lastPtr *time.Time
		if found {
			lastPtr = &last
		}
		if isDue(bucket, rec.TriggerConfig, lastPtr, now) {
			due = append(due, rec)
		}
	}

	runner := worker.New(worker.Options{Concurrency: s.batchSize, InterBatchDelay: worker.DefaultInterBatchDelay})
	return worker.Run(ctx, runner, due, func(ctx context.Context, rec *automation.Record) error {
		s.dispatch(ctx, rec, rec.TriggerType, now)
		return nil
	})
}

// TickAll runs every cadence bucket once, in the order Buckets declares.
func (s *Scheduler) TickAll(ctx context.Context) error {
	for _, bucket := range Buckets {
		if err := s.Tick(ctx, bucket); err != nil {
			return err
		}
	}
	return nil
}

// ForceRun dispatches exactly one automation immediately, bypassing every
// dueness rule, and logs it as a manual trigger regardless of the
// automation's own configured trigger_type — matching §4.6's "manual runs
// do not block scheduling".
func (s *Scheduler) ForceRun(ctx context.Context, id core.ID) error {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("scheduler: load automation %s: %w", id, err)
	}
	s.dispatch(ctx, rec, automation.TriggerManual, time.Now())
	return nil
}

func (s *Scheduler) dispatch(ctx context.Context, rec *automation.Record, triggerType automation.TriggerType, scheduledAt time.Time) {
	log := logger.FromContext(ctx).With("automation_id", rec.ID, "bucket_trigger", triggerType)
	user, err := s.users.Get(ctx, rec.OwnerID)
	if err != nil {
		log.Warn("scheduler: owner lookup failed", "error", err)
		return
	}
	triggerData := map[string]any{"scheduled_time": scheduledAt.UTC().Format(time.RFC3339)}
	if _, err := s.dispatcher.Execute(ctx, rec, triggerType, triggerData, user); err != nil {
		log.Warn("scheduler: dispatch failed", "error", err)
	}
}
