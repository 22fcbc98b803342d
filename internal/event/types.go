package event

import (
	"context"

	"github.com/dshills/topicbus/internal/event/dispatch"
)

// DeliveryMode specifies how a publish call delivers to its subscribers.
type DeliveryMode int

const (
	// DeliverySync delivers to subscribers one at a time, in subscription
	// order, before the publish call returns.
	DeliverySync DeliveryMode = iota

	// DeliveryAsync delivers to all subscribers concurrently; the publish
	// call returns a Future that completes when every delivery finished.
	DeliveryAsync
)

// String returns a human-readable delivery mode name.
func (m DeliveryMode) String() string {
	switch m {
	case DeliverySync:
		return "sync"
	case DeliveryAsync:
		return "async"
	default:
		return "unknown"
	}
}

// Handler is the interface for subscriber callbacks.
type Handler interface {
	// Handle processes one published payload.
	// The payload is type-erased; handlers should type-assert or use TypedTopic.
	Handle(ctx context.Context, payload any) error
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc func(ctx context.Context, payload any) error

// Handle implements the Handler interface.
func (f HandlerFunc) Handle(ctx context.Context, payload any) error {
	return f(ctx, payload)
}

// Handler and dispatch.Handler share a method set.
var _ dispatch.Handler = Handler(nil)

// Stats contains event bus statistics.
type Stats struct {
	// PublishesSync is the number of PublishSync calls that reached dispatch.
	PublishesSync uint64

	// PublishesAsync is the number of PublishAsync calls that reached dispatch.
	PublishesAsync uint64

	// Delivered is the number of deliveries that succeeded.
	Delivered uint64

	// Failed is the number of deliveries that did not succeed: errors,
	// timeouts, panics and skips. It matches AggregateOutcome.Failed summed
	// over every publish.
	Failed uint64

	// Panicked is the number of deliveries whose handler panicked.
	Panicked uint64

	// TimedOut is the number of deliveries that exceeded their timeout.
	TimedOut uint64

	// Skipped is the number of deliveries suppressed by cancellation.
	Skipped uint64

	// ActiveSubscriptions is the current number of registered subscriptions.
	ActiveSubscriptions int

	// InFlightAsync is the number of PublishAsync fan-outs not yet complete.
	InFlightAsync int64
}

// PanicHandler is called when a subscriber's handler panics.
type PanicHandler func(sub Subscription, payload any, recovered any)

// ErrorHandler is called for every failed delivery, panics included.
type ErrorHandler func(sub Subscription, payload any, err error)
