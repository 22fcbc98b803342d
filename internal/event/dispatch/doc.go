// Package dispatch provides event dispatching mechanisms for the event bus.
//
// The dispatch package implements both sequential and concurrent event
// delivery with panic recovery, context support, and per-task timeouts.
//
// # Dispatchers
//
// Two dispatcher implementations are provided:
//
//   - SyncDispatcher: Executes tasks one at a time, in order, in the caller's
//     goroutine. The next task starts only after the previous one returned.
//
//   - AsyncDispatcher: Starts every task on its own goroutine (optionally
//     bounded) and waits for all of them. Results keep task order.
//
// # Panic Recovery
//
// All dispatchers recover from panics in handlers, so a misbehaving handler
// cannot stop delivery to the others or crash the publisher. Panics are
// reported through the Result, with the recovered value and stack.
//
// # Timeouts
//
// A Task may carry a Timeout. Inline tasks see it as a context deadline and
// are marked TimedOut if it expires before they return. Detached tasks run on
// a separate goroutine, and the dispatcher stops waiting for them at the
// deadline.
//
// # Usage
//
// Sequential dispatch:
//
//	dispatcher := dispatch.NewSyncDispatcher()
//	results := dispatcher.DispatchAll(ctx, event, tasks)
//	for _, r := range results {
//	    if !r.IsSuccess() {
//	        // Handle error, timeout or panic
//	    }
//	}
//
// Concurrent dispatch with a bound:
//
//	dispatcher := dispatch.NewAsyncDispatcher(dispatch.WithMaxConcurrency(8))
//	results := dispatcher.DispatchAll(ctx, event, tasks)
//
// Both dispatchers keep atomic counters of what they ran, available through
// Stats.
package dispatch
