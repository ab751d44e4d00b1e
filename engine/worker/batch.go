// Package worker provides the bounded-concurrency batch runner shared by
// the poller (C5) and scheduler (C6): §5's "parallel-worker model ... a
// bounded worker pool (default concurrency 5) with a short inter-batch
// delay to smooth load on upstream tools."
package worker

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the default batch size per §5 and §4.5/§4.6.
const DefaultConcurrency = 5

// DefaultInterBatchDelay is the pause between batches ("≈1 s", §4.5 step
// selection, §4.6 step 5).
const DefaultInterBatchDelay = 1 * time.Second

// Options configures a Runner.
type Options struct {
	// Concurrency is how many items run at once within a batch. Defaults
	// to DefaultConcurrency when zero or negative.
	Concurrency int
	// InterBatchDelay is the pause applied between batches, skipped after
	// the last one. Defaults to DefaultInterBatchDelay when negative;
	// zero explicitly disables the delay (used by tests).
	InterBatchDelay time.Duration
}

func (o Options) normalized() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.InterBatchDelay < 0 {
		o.InterBatchDelay = DefaultInterBatchDelay
	}
	return o
}

// Runner dispatches a slice of items through a bounded-concurrency worker
// pool, batch by batch, honoring ctx cancellation throughout.
type Runner struct {
	opts Options
}

// New builds a Runner with opts (zero value yields DefaultConcurrency and
// no inter-batch delay).
func New(opts Options) *Runner {
	return &Runner{opts: opts.normalized()}
}

// Run invokes fn once per item, batch[i] ... batch[i+concurrency) running
// concurrently via errgroup, with opts.InterBatchDelay paused between
// batches. A single item's error does not stop the others in its batch or
// subsequent batches — fn is responsible for recording its own per-item
// failure; Run only returns an error if ctx is canceled mid-run.
func Run[T any](ctx context.Context, r *Runner, items []T, fn func(context.Context, T) error) error {
	concurrency := r.opts.Concurrency
	for start := 0; start < len(items); start += concurrency {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + concurrency
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]

		g, gctx := errgroup.WithContext(ctx)
		for _, item := range batch {
			item := item
			g.Go(func() error {
				_ = fn(gctx, item)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		if end < len(items) && r.opts.InterBatchDelay > 0 {
			select {
			case <-time.After(r.opts.InterBatchDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}
