package dispatch

import (
	"context"
	"time"
)

// Handler is the interface for event handlers.
// This mirrors the event.Handler interface to avoid circular imports.
type Handler interface {
	Handle(ctx context.Context, event any) error
}

// Task is a single handler invocation together with its execution policy.
type Task struct {
	// Handler is invoked with the dispatched event.
	Handler Handler

	// Timeout bounds the invocation. Zero means the dispatcher default applies.
	Timeout time.Duration

	// Detached runs the handler on its own goroutine. When Timeout expires the
	// dispatcher stops waiting and records a timeout; the handler keeps running
	// until it returns on its own.
	Detached bool
}

// Result represents the outcome of a handler execution.
type Result struct {
	// Success is true if the handler completed without error or panic.
	Success bool

	// Error is the error returned by the handler, if any.
	Error error

	// Panicked is true if the handler panicked.
	Panicked bool

	// PanicValue is the value passed to panic(), if Panicked is true.
	PanicValue any

	// PanicStack is the stack trace at the point of panic.
	PanicStack []byte

	// TimedOut is true if the task's timeout expired before the handler finished.
	TimedOut bool

	// Duration is how long the handler took to execute.
	Duration time.Duration

	// Skipped is true if the handler was not executed (e.g., context cancelled).
	Skipped bool
}

// IsSuccess returns true if the result indicates successful execution.
func (r Result) IsSuccess() bool {
	return r.Success && !r.Panicked && r.Error == nil
}

// IsError returns true if the result indicates an error (not panic).
func (r Result) IsError() bool {
	return r.Error != nil && !r.Panicked
}

// IsPanic returns true if the result indicates a panic.
func (r Result) IsPanic() bool {
	return r.Panicked
}

// IsTimeout returns true if the handler exceeded its timeout.
func (r Result) IsTimeout() bool {
	return r.TimedOut
}

// skippedResult marks a task that never started because ctx was done.
func skippedResult(err error) Result {
	return Result{
		Success: false,
		Error:   err,
		Skipped: true,
	}
}
