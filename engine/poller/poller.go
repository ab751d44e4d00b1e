// Package poller implements component C5: the cadence-driven polling loop
// that invokes each polling automation's source tool, extracts new items,
// and enqueues events for them (§4.5).
package poller

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/SimbaBuilds/NL-To-Automation/engine/automation"
	"github.com/SimbaBuilds/NL-To-Automation/engine/core"
	"github.com/SimbaBuilds/NL-To-Automation/engine/queue"
	"github.com/SimbaBuilds/NL-To-Automation/engine/toolregistry"
	"github.com/SimbaBuilds/NL-To-Automation/engine/worker"
	"github.com/SimbaBuilds/NL-To-Automation/pkg/logger"
)

// DefaultBatchSize is the concurrency cap applied across one poll tick
// (§4.5 "Process up to batch_size (default 5) concurrently").
const DefaultBatchSize = 5

// AutomationStore is the persistence collaborator the poller reads
// due automations from and writes polling state back to.
type AutomationStore interface {
	// ListDuePolling returns active, trigger_type=polling automations
	// whose next_poll_at is null or has passed.
	ListDuePolling(ctx context.Context, now time.Time) ([]*automation.Record, error)
	// Get returns a single automation by id, for force-poll requests.
	Get(ctx context.Context, id core.ID) (*automation.Record, error)
	// AdvanceCursor persists the new last_poll_cursor and next_poll_at
	// after a poll attempt (successful or failed).
	AdvanceCursor(ctx context.Context, id core.ID, cursor string, nextPollAt time.Time) error
}

// Enqueuer is the C3 collaborator polled events are handed to.
type Enqueuer interface {
	Enqueue(ctx context.Context, ev queue.Event) (bool, error)
}

// Metrics receives per-poll observability counters (§4.5 step 8). A nil
// Metrics is valid — Report becomes a no-op.
type Metrics interface {
	ReportPoll(automationID core.ID, itemsFound, itemsFiltered, eventsCreated int, duration time.Duration)
}

// Poller is component C5.
type Poller struct {
	store      AutomationStore
	registry   toolregistry.Registry
	queue      Enqueuer
	metrics    Metrics
	batchSize  int
	classifier *toolregistry.Classifier
}

// Options configures a Poller.
type Options struct {
	BatchSize int
}

func (o Options) normalized() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	return o
}

// New builds a Poller. metrics may be nil.
func New(store AutomationStore, registry toolregistry.Registry, q Enqueuer, metrics Metrics, opts Options) *Poller {
	opts = opts.normalized()
	classifier, _ := toolregistry.NewClassifier(256)
	return &Poller{
		store:      store,
		registry:   registry,
		queue:      q,
		metrics:    metrics,
		batchSize:  opts.BatchSize,
		classifier: classifier,
	}
}

// Classifier exposes the poller's tool-tag cache so an admin surface can
// invalidate a single tool's memoized classification without tearing down
// the poller itself.
func (p *Poller) Classifier() *toolregistry.Classifier {
	return p.classifier
}

// Tick runs one full poll cycle: every due automation is polled, fanned
// out across the bounded worker pool shared with the scheduler (§5).
func (p *Poller) Tick(ctx context.Context) error {
	return p.tickMatching(ctx, nil)
}

// TickCategory restricts one poll cycle to due automations whose
// trigger_config.service matches category (case-insensitive), per §6's
// "POST /scheduler/polling {category?, automation_id?}".
func (p *Poller) TickCategory(ctx context.Context, category string) error {
	if category == "" {
		return p.Tick(ctx)
	}
	return p.tickMatching(ctx, func(rec *automation.Record) bool {
		cfg, err := parseTriggerConfig(rec.TriggerConfig)
		return err == nil && strings.EqualFold(cfg.service, category)
	})
}

func (p *Poller) tickMatching(ctx context.Context, keep func(*automation.Record) bool) error {
	due, err := p.store.ListDuePolling(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("poller: list due automations: %w", err)
	}
	if keep != nil {
		filtered := due[:0]
		for _, rec := range due {
			if keep(rec) {
				filtered = append(filtered, rec)
			}
		}
		due = filtered
	}
	runner := worker.New(worker.Options{Concurrency: p.batchSize, InterBatchDelay: worker.DefaultInterBatchDelay})
	return worker.Run(ctx, runner, due, func(ctx context.Context, rec *automation.Record) error {
		p.pollOne(ctx, rec)
		return nil
	})
}

// ForcePoll polls exactly one automation, regardless of its next_poll_at,
// per §4.5's "explicit force-poll request naming a single automation id".
func (p *Poller) ForcePoll(ctx context.Context, id core.ID) error {
	rec, err := p.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("poller: load automation %s: %w", id, err)
	}
	p.pollOne(ctx, rec)
	return nil
}

// pollOne never returns an error: a failure at any step is logged and
// recorded as a metric, per §7's "Poll source tool failure: advance
// next_poll_at; do not emit events; record metric".
func (p *Poller) pollOne(ctx context.Context, rec *automation.Record) {
	start := time.Now()
	log := logger.FromContext(ctx).With("automation_id", rec.ID)

	cfg, err := parseTriggerConfig(rec.TriggerConfig)
	if err != nil {
		log.Warn("poller: invalid trigger_config", "error", err)
		p.advance(ctx, rec, rec.LastPollCursor, cfg.service)
		p.report(rec.ID, 0, 0, 0, start)
		return
	}

	params := materializeParams(cfg, rec.LastPollCursor, time.Now())
	raw, err := p.registry.Execute(ctx, cfg.sourceTool, params, rec.OwnerID, toolregistry.ExecuteOptions{})
	if err != nil {
		log.Warn("poller: source tool invocation failed", "tool", cfg.sourceTool, "error", err)
		p.advance(ctx, rec, rec.LastPollCursor, cfg.service)
		p.report(rec.ID, 0, 0, 0, start)
		return
	}

	items := extractItems(raw)
	newItems := filterNew(items, rec.LastPollCursor)

	mode := resolveAggregationMode(ctx, p, cfg, log)
	events, nextCursor := aggregate(mode, newItems, raw, rec, cfg)

	created := 0
	for _, ev := range events {
		if _, err := p.queue.Enqueue(ctx, ev); err != nil {
			log.Warn("poller: enqueue failed", "error", err)
			continue
		}
		created++
	}

	if nextCursor == "" {
		nextCursor = rec.LastPollCursor
	}
	p.advance(ctx, rec, nextCursor, cfg.service)
	p.report(rec.ID, len(items), len(items)-len(newItems), created, start)
}

func (p *Poller) advance(ctx context.Context, rec *automation.Record, cursor, service string) {
	interval := rec.PollingIntervalMinutes
	if interval <= 0 {
		interval = defaultIntervalMinutes(service)
	}
	next := time.Now().Add(time.Duration(interval) * time.Minute)
	if err := p.store.AdvanceCursor(ctx, rec.ID, cursor, next); err != nil {
		logger.FromContext(ctx).Warn("poller: failed to advance cursor", "automation_id", rec.ID, "error", err)
	}
}

func (p *Poller) report(id core.ID, found, filtered, created int, start time.Time) {
	if p.metrics == nil {
		return
	}
	p.metrics.ReportPoll(id, found, filtered, created, time.Since(start))
}

// defaultIntervalMinutes is §6's per-service default polling interval
// table, used when the record's PollingIntervalMinutes is zero or negative.
func defaultIntervalMinutes(service string) int {
	switch service {
	case "oura":
		return 60
	case "fitbit":
		return 15
	case "todoist":
		return 5
	case "google_calendar":
		return 10
	case "outlook_calendar":
		return 10
	case "excel":
		return 10
	case "word":
		return 15
	case "notion":
		return 10
	default:
		return 15
	}
}
