package dispatch

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// AsyncDispatcher fans one event out to many handlers concurrently and waits
// for every one of them. A failing handler never cancels its siblings.
type AsyncDispatcher struct {
	executor *Executor
	timeout  time.Duration

	// maxConcurrency bounds the handlers running at once for a single
	// DispatchAll call. Zero or less means unbounded.
	maxConcurrency int

	counters
}

// NewAsyncDispatcher creates a new concurrent dispatcher.
func NewAsyncDispatcher(opts ...AsyncOption) *AsyncDispatcher {
	d := &AsyncDispatcher{
		executor:       NewExecutor(),
		maxConcurrency: 0,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// AsyncOption configures an AsyncDispatcher.
type AsyncOption func(*AsyncDispatcher)

// WithMaxConcurrency limits how many handlers of one fan-out run at the same
// time. Values <= 0 remove the limit.
func WithMaxConcurrency(n int) AsyncOption {
	return func(d *AsyncDispatcher) {
		d.maxConcurrency = n
	}
}

// WithAsyncTimeout sets the timeout for tasks that do not carry their own.
func WithAsyncTimeout(timeout time.Duration) AsyncOption {
	return func(d *AsyncDispatcher) {
		d.timeout = timeout
	}
}

// DispatchAll starts every task concurrently and blocks until all started
// tasks have finished. Results are returned in task order regardless of
// completion order.
//
// ctx only gates which tasks start: once it is done, tasks still waiting for
// a concurrency slot are marked Skipped. Handlers that already started run to
// completion and receive a context that keeps ctx's values but not its
// cancellation.
func (d *AsyncDispatcher) DispatchAll(ctx context.Context, event any, tasks []Task) []Result {
	results := make([]Result, len(tasks))
	if len(tasks) == 0 {
		return results
	}

	var sem *semaphore.Weighted
	if d.maxConcurrency > 0 {
		sem = semaphore.NewWeighted(int64(d.maxConcurrency))
	}
	runCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	for i, task := range tasks {
		d.dispatched.Add(1)
		if task.Timeout <= 0 {
			task.Timeout = d.timeout
		}

		if err := d.acquire(ctx, sem); err != nil {
			results[i] = skippedResult(err)
			d.record(results[i])
			continue
		}

		d.inFlight.Add(1)
		g.Go(func() error {
			defer d.inFlight.Add(-1)
			if sem != nil {
				defer sem.Release(1)
			}
			results[i] = d.executor.Execute(runCtx, event, task)
			d.record(results[i])
			return nil
		})
	}

	// Tasks never return errors, so Wait is a plain join.
	_ = g.Wait()
	return results
}

func (d *AsyncDispatcher) acquire(ctx context.Context, sem *semaphore.Weighted) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sem == nil {
		return nil
	}
	return sem.Acquire(ctx, 1)
}

// Stats returns dispatcher statistics.
func (d *AsyncDispatcher) Stats() Stats {
	return d.snapshot()
}
