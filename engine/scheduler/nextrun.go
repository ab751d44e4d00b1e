package scheduler

import (
	"context"
	"time"

	"github.com/SimbaBuilds/NL-To-Automation/engine/automation"
	"github.com/SimbaBuilds/NL-To-Automation/engine/core"
)

// ScheduledRun is the projection §4.6's "scheduled-runs introspection"
// surfaces to UIs: when an automation is next expected to fire, and
// whether that moment has already passed.
type ScheduledRun struct {
	AutomationID core.ID
	OwnerID      core.ID
	Bucket       string
	NextRunAt    time.Time
	IsOverdue    bool
}

// ProjectNextRun computes the next-run projection for rec given the start
// time of its most recent scheduled execution (nil if it has never run).
// ok is false when rec isn't a schedule_once/schedule_recurring automation
// or its trigger_config can't be read.
func ProjectNextRun(rec *automation.Record, lastRun *time.Time, now time.Time) (ScheduledRun, bool) {
	bucket := stringField(rec.TriggerConfig, "interval")
	if bucket == "" {
		return ScheduledRun{}, false
	}

	if bucket == BucketOnce {
		runAt, ok := parseRunAt(rec.TriggerConfig)
		if !ok {
			return ScheduledRun{}, false
		}
		return ScheduledRun{
			AutomationID: rec.ID,
			OwnerID:      rec.OwnerID,
			Bucket:       bucket,
			NextRunAt:    runAt,
			IsOverdue:    runAt.Before(now),
		}, true
	}

	var next time.Time
	switch bucket {
	case BucketDaily, BucketWeekly:
		next = projectNextSlot(rec.TriggerConfig, bucket, now)
	default:
		base := now
		if lastRun != nil {
			base = *lastRun
		}
		next = base.Add(time.Duration(bucketIntervalMinutes(bucket)) * time.Minute)
	}

	return ScheduledRun{
		AutomationID: rec.ID,
		OwnerID:      rec.OwnerID,
		Bucket:       bucket,
		NextRunAt:    next,
		IsOverdue:    next.Before(now),
	}, true
}

// projectNextSlot finds the next UTC instant at or after from that
// satisfies bucket's time-of-day (and, for weekly, day-of-week) gate.
func projectNextSlot(cfg map[string]any, bucket string, from time.Time) time.Time {
	from = from.UTC()
	targetMin := 0
	if raw := stringField(cfg, "time_of_day"); raw != "" {
		if m, ok := parseHHMM(raw); ok {
			targetMin = m
		}
	}

	candidate := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC).
		Add(time.Duration(targetMin) * time.Minute)
	if !candidate.After(from) {
		candidate = candidate.AddDate(0, 0, 1)
	}

	if bucket == BucketWeekly {
		if target, ok := parseDayOfWeek(cfg["day_of_week"]); ok {
			for int(candidate.Weekday()) != target {
				candidate = candidate.AddDate(0, 0, 1)
			}
		}
	}
	return candidate
}

// ListScheduledRuns projects the next run for every schedule_once/
// schedule_recurring automation store returns, in one pass, for the
// scheduled-runs introspection surface (§4.6).
func ListScheduledRuns(ctx context.Context, store AutomationStore, logs ExecutionLogStore, now time.Time) ([]ScheduledRun, error) {
	var out []ScheduledRun
	for _, bucket := range Buckets {
		recs, err := store.ListScheduledByBucket(ctx, bucket)
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			last, found, err := logs.LastScheduledRun(ctx, rec.ID)
			if err != nil {
				continue
			}
			var lastPtr *time.Time
			if found {
				lastPtr = &last
			}
			if run, ok := ProjectNextRun(rec, lastPtr, now); ok {
				out = append(out, run)
			}
		}
	}
	return out, nil
}
