// Package dispatcher implements the claim-based consumer half of
// component C3: it drains unprocessed rows from the event queue, resolves
// which automation(s) each event belongs to, and hands each match to the
// action executor (§4.3: "A separate consumer (the dispatcher, part of C6
// in spirit) claims unprocessed events, looks up matching automation
// records, and invokes C2 for each match.").
package dispatcher

import (
	"context"
	"fmt"

	"github.com/SimbaBuilds/NL-To-Automation/engine/automation"
	"github.com/SimbaBuilds/NL-To-Automation/engine/core"
	"github.com/SimbaBuilds/NL-To-Automation/engine/executor"
	"github.com/SimbaBuilds/NL-To-Automation/engine/queue"
	"github.com/SimbaBuilds/NL-To-Automation/engine/webhook"
	"github.com/SimbaBuilds/NL-To-Automation/engine/worker"
	"github.com/SimbaBuilds/NL-To-Automation/pkg/logger"
)

// DefaultBatchSize is the claim size per Tick.
const DefaultBatchSize = 10

// automationIDField is the payload key the poller stamps onto
// per-item/aggregated events so the consumer can resolve them to their
// originating automation without re-deriving a service match.
const automationIDField = "automation_id"

// EventSource is the C3 collaborator events are claimed from.
type EventSource interface {
	ClaimBatch(ctx context.Context, limit int) ([]queue.Event, error)
	MarkFailed(ctx context.Context, id core.ID) error
}

// AutomationLookup resolves the automations a webhook-origin event might
// belong to, and a single automation by id for polling-origin events.
type AutomationLookup interface {
	FindWebhookAutomations(ctx context.Context, ownerID core.ID, service string) ([]*automation.Record, error)
	Get(ctx context.Context, id core.ID) (*automation.Record, error)
}

// UserStore resolves the core.UserInfo the executor's template context
// needs for an automation's owner.
type UserStore interface {
	Get(ctx context.Context, ownerID core.ID) (core.UserInfo, error)
}

// Executor is the C2 collaborator a matched automation is handed off to.
type Executor interface {
	Execute(
		ctx context.Context,
		auto *automation.Record,
		triggerType automation.TriggerType,
		triggerData map[string]any,
		user core.UserInfo,
	) (*executor.ExecutionLog, error)
}

// Dispatcher is the queue-draining consumer.
type Dispatcher struct {
	source      EventSource
	automations AutomationLookup
	users       UserStore
	executor    Executor
	batchSize   int
}

// Options configures a Dispatcher.
type Options struct {
	BatchSize int
}

func (o Options) normalized() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	return o
}

// New builds a Dispatcher.
func New(source EventSource, automations AutomationLookup, users UserStore, exec Executor, opts Options) *Dispatcher {
	opts = opts.normalized()
	return &Dispatcher{source: source, automations: automations, users: users, executor: exec, batchSize: opts.BatchSize}
}

// Tick claims one batch of unprocessed events and dispatches each to its
// matching automation(s), bounded by the same worker pool shape the
// poller and scheduler use.
func (d *Dispatcher) Tick(ctx context.Context) error {
	events, err := d.source.ClaimBatch(ctx, d.batchSize)
	if err != nil {
		return fmt.Errorf("dispatcher: claim batch: %w", err)
	}
	if len(events) == 0 {
		return nil
	}
	runner := worker.New(worker.Options{Concurrency: d.batchSize, InterBatchDelay: 0})
	return worker.Run(ctx, runner, events, func(ctx context.Context, ev queue.Event) error {
		d.dispatchEvent(ctx, ev)
		return nil
	})
}

// dispatchEvent never returns an error: a resolution or dispatch failure
// is logged and the event's retry_count is bumped (§7 "queue dispatch
// failure: increment retry_count, log; do not re-enqueue automatically").
func (d *Dispatcher) dispatchEvent(ctx context.Context, ev queue.Event) {
	log := logger.FromContext(ctx).With("service", ev.Service, "event_id", ev.EventID)

	matches, err := d.resolveMatches(ctx, ev)
	if err != nil {
		log.Warn("dispatcher: resolve matching automations failed", "error", err)
		d.markFailed(ctx, ev)
		return
	}
	if len(matches) == 0 {
		return
	}

	triggerType := automation.TriggerWebhook
	if _, polled := ev.Data[automationIDField]; polled {
		triggerType = automation.TriggerPolling
	}

	failed := false
	for _, rec := range matches {
		user, err := d.users.Get(ctx, rec.OwnerID)
		if err != nil {
			log.Warn("dispatcher: owner lookup failed", "automation_id", rec.ID, "error", err)
			failed = true
			continue
		}
		if _, err := d.executor.Execute(ctx, rec, triggerType, ev.Data, user); err != nil {
			log.Warn("dispatcher: execute failed", "automation_id", rec.ID, "error", err)
			failed = true
		}
	}
	if failed {
		d.markFailed(ctx, ev)
	}
}

// resolveMatches finds the automation(s) ev belongs to. A polling-origin
// event carries its automation id directly in Data (stamped by the
// poller); a webhook-origin event is re-matched against the owner's
// current webhook automations for the event's service.
func (d *Dispatcher) resolveMatches(ctx context.Context, ev queue.Event) ([]*automation.Record, error) {
	if rawID, ok := ev.Data[automationIDField].(string); ok && rawID != "" {
		id, err := core.ParseID(rawID)
		if err != nil {
			return nil, fmt.Errorf("parse automation id %q: %w", rawID, err)
		}
		rec, err := d.automations.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load automation %s: %w", id, err)
		}
		if !rec.Active {
			return nil, nil
		}
		return []*automation.Record{rec}, nil
	}

	candidates, err := d.automations.FindWebhookAutomations(ctx, ev.OwnerID, ev.Service)
	if err != nil {
		return nil, fmt.Errorf("find webhook automations: %w", err)
	}
	return webhook.MatchingAutomations(candidates, ev.Service, ev.EventType, ev.Data), nil
}

func (d *Dispatcher) markFailed(ctx context.Context, ev queue.Event) {
	if err := d.source.MarkFailed(ctx, ev.ID); err != nil {
		logger.FromContext(ctx).Warn("dispatcher: mark failed write failed", "event_id", ev.ID, "error", err)
	}
}
