package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/SimbaBuilds/NL-To-Automation/engine/automation"
	"github.com/SimbaBuilds/NL-To-Automation/engine/worker"
	"github.com/SimbaBuilds/NL-To-Automation/pkg/logger"
)

func parseRunAt(cfg map[string]any) (time.Time, bool) {
	raw := stringField(cfg, "run_at")
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// tickOnce handles the "once" bucket separately from the recurring buckets
// (§4.6 step 4): due iff trigger_config.run_at <= now, and a successful
// dispatch deactivates the automation so it never fires again.
func (s *Scheduler) tickOnce(ctx context.Context) error {
	candidates, err := s.store.ListScheduledByBucket(ctx, BucketOnce)
	if err != nil {
		return fmt.Errorf("scheduler: list once bucket: %w", err)
	}

	now := time.Now()
	due := make([]*automation.Record, 0, len(candidates))
	for _, rec := range candidates {
		runAt, ok := parseRunAt(rec.TriggerConfig)
		if !ok {
			continue
		}
		if !runAt.After(now) {
			due = append(due, rec)
		}
	}

	runner := worker.New(worker.Options{Concurrency: s.batchSize, InterBatchDelay: worker.DefaultInterBatchDelay})
	return worker.Run(ctx, runner, due, func(ctx context.Context, rec *automation.Record) error {
		s.dispatchOnce(ctx, rec, now)
		return nil
	})
}

// dispatchOnce runs the one-time automation and deactivates it once the
// dispatch itself succeeded (the executor was invoked and ran to an
// ExecutionLog, regardless of whether individual actions inside it
// failed — a one-time trigger has no retry concept, so a partial action
// failure still counts as "dispatched" for deactivation purposes).
func (s *Scheduler) dispatchOnce(ctx context.Context, rec *automation.Record, scheduledAt time.Time) {
	log := logger.FromContext(ctx).With("automation_id", rec.ID)
	user, err := s.users.Get(ctx, rec.OwnerID)
	if err != nil {
		log.Warn("scheduler: owner lookup failed", "error", err)
		return
	}
	triggerData := map[string]any{"scheduled_time": scheduledAt.UTC().Format(time.RFC3339)}
	_, err = s.dispatcher.Execute(ctx, rec, automation.TriggerScheduleOnce, triggerData, user)
	if err != nil {
		log.Warn("scheduler: one-time dispatch failed, leaving active for the next tick", "error", err)
		return
	}
	if err := s.store.Deactivate(ctx, rec.ID); err != nil {
		log.Warn("scheduler: deactivate after one-time run failed", "error", err)
	}
}
