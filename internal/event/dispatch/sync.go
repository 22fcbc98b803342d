package dispatch

import (
	"context"
	"time"
)

// SyncDispatcher executes handlers one after another in the caller's goroutine.
// It provides panic recovery and context support.
type SyncDispatcher struct {
	executor *Executor
	timeout  time.Duration

	counters
}

// NewSyncDispatcher creates a new synchronous dispatcher.
func NewSyncDispatcher(opts ...SyncOption) *SyncDispatcher {
	d := &SyncDispatcher{
		executor: NewExecutor(),
		timeout:  0, // No timeout by default
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SyncOption configures a SyncDispatcher.
type SyncOption func(*SyncDispatcher)

// WithTimeout sets the timeout for tasks that do not carry their own.
func WithTimeout(timeout time.Duration) SyncOption {
	return func(d *SyncDispatcher) {
		d.timeout = timeout
	}
}

// Dispatch executes a single task and blocks until it completes, times out,
// or panics.
func (d *SyncDispatcher) Dispatch(ctx context.Context, event any, task Task) Result {
	d.dispatched.Add(1)
	if task.Timeout <= 0 {
		task.Timeout = d.timeout
	}

	d.inFlight.Add(1)
	result := d.executor.Execute(ctx, event, task)
	d.inFlight.Add(-1)

	d.record(result)
	return result
}

// DispatchAll executes tasks strictly in order, never two at a time.
// Once ctx is done the remaining tasks are marked Skipped without being run.
func (d *SyncDispatcher) DispatchAll(ctx context.Context, event any, tasks []Task) []Result {
	results := make([]Result, len(tasks))

	for i, task := range tasks {
		if err := ctx.Err(); err != nil {
			for j := i; j < len(tasks); j++ {
				d.dispatched.Add(1)
				results[j] = skippedResult(err)
				d.record(results[j])
			}
			return results
		}
		results[i] = d.Dispatch(ctx, event, task)
	}

	return results
}

// Stats returns dispatch statistics.
func (d *SyncDispatcher) Stats() Stats {
	return d.snapshot()
}
