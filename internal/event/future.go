package event

import (
	"context"
	"sync"
)

// Future is the pending result of a PublishAsync call. It completes once every
// delivery of the fan-out has finished or been skipped.
type Future struct {
	done    chan struct{}
	outcome AggregateOutcome

	cancelOnce sync.Once
	cancel     context.CancelFunc
}

func newFuture(cancel context.CancelFunc) *Future {
	return &Future{
		done:   make(chan struct{}),
		cancel: cancel,
	}
}

// completedFuture returns a Future that is already complete.
func completedFuture(outcome AggregateOutcome) *Future {
	f := newFuture(func() {})
	f.complete(outcome)
	return f
}

func (f *Future) complete(outcome AggregateOutcome) {
	f.outcome = outcome
	close(f.done)
}

// Done returns a channel that is closed when the fan-out has completed.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the fan-out completes or ctx is done. Giving up on the wait
// does not cancel the fan-out; use Cancel for that.
func (f *Future) Wait(ctx context.Context) (AggregateOutcome, error) {
	select {
	case <-f.done:
		return f.outcome, nil
	case <-ctx.Done():
		return AggregateOutcome{}, ctx.Err()
	}
}

// Outcome returns the aggregate outcome if the fan-out has completed.
func (f *Future) Outcome() (AggregateOutcome, bool) {
	select {
	case <-f.done:
		return f.outcome, true
	default:
		return AggregateOutcome{}, false
	}
}

// Cancel stops deliveries that have not started yet. They are recorded as
// failures matching ErrDeliverySkipped. Deliveries already running are not
// interrupted, and the Future still completes normally.
func (f *Future) Cancel() {
	f.cancelOnce.Do(f.cancel)
}
