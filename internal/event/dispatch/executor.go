package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"
)

// Executor handles the actual execution of event handlers with
// panic recovery, timing and timeout enforcement.
type Executor struct{}

// NewExecutor creates a new executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// Execute runs one task and returns its result. It never panics: a panicking
// handler is reported through the result.
//
// If ctx is already done the handler is not invoked and the result is Skipped.
func (e *Executor) Execute(ctx context.Context, event any, task Task) Result {
	select {
	case <-ctx.Done():
		return skippedResult(ctx.Err())
	default:
	}

	if task.Detached {
		return e.executeDetached(ctx, event, task)
	}
	return e.executeInline(ctx, event, task)
}

// executeInline runs the handler on the calling goroutine. A timeout is only
// visible to the handler as a context deadline.
func (e *Executor) executeInline(ctx context.Context, event any, task Task) Result {
	if task.Timeout <= 0 {
		return e.invoke(ctx, event, task.Handler)
	}

	tctx, cancel := context.WithTimeout(ctx, task.Timeout)
	defer cancel()

	result := e.invoke(tctx, event, task.Handler)
	if !result.Panicked && errors.Is(tctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		result.Success = false
		result.TimedOut = true
		if result.Error == nil || errors.Is(result.Error, context.DeadlineExceeded) {
			result.Error = timeoutError(task.Timeout)
		}
	}
	return result
}

// executeDetached runs the handler on its own goroutine and stops waiting once
// the timeout expires.
func (e *Executor) executeDetached(ctx context.Context, event any, task Task) Result {
	hctx := ctx
	var timer <-chan time.Time
	if task.Timeout > 0 {
		var cancel context.CancelFunc
		hctx, cancel = context.WithTimeout(ctx, task.Timeout)
		defer cancel()

		t := time.NewTimer(task.Timeout)
		defer t.Stop()
		timer = t.C
	}

	done := make(chan Result, 1)
	start := time.Now()
	go func() {
		done <- e.invoke(hctx, event, task.Handler)
	}()

	select {
	case result := <-done:
		return result
	case <-timer:
		return Result{
			Success:  false,
			Error:    timeoutError(task.Timeout),
			TimedOut: true,
			Duration: time.Since(start),
		}
	}
}

// invoke calls the handler, converting a panic into a Result.
func (e *Executor) invoke(ctx context.Context, event any, handler Handler) (result Result) {
	start := time.Now()

	defer func() {
		result.Duration = time.Since(start)

		if r := recover(); r != nil {
			result.Success = false
			result.Error = nil
			result.Panicked = true
			result.PanicValue = r
			result.PanicStack = debug.Stack()
		}
	}()

	if err := handler.Handle(ctx, event); err != nil {
		result.Error = err
		return result
	}
	result.Success = true
	return result
}

func timeoutError(d time.Duration) error {
	return fmt.Errorf("%w after %s", ErrTimeout, d)
}
