package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/dshills/topicbus/internal/event/topic"
)

// SubscriptionID is the opaque handle a caller keeps to remove a subscription.
type SubscriptionID string

// String returns the ID as a string.
func (id SubscriptionID) String() string {
	return string(id)
}

// newSubscriptionID returns a time-ordered random ID.
func newSubscriptionID() SubscriptionID {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails if the random source does.
		return SubscriptionID(uuid.NewString())
	}
	return SubscriptionID(id.String())
}

// SubscriptionState represents the state of a subscription.
type SubscriptionState int32

const (
	// SubscriptionStateActive means the subscription receives published payloads.
	// A subscription is active as soon as Subscribe returns.
	SubscriptionStateActive SubscriptionState = iota

	// SubscriptionStateRemoved means the subscription was unsubscribed or its
	// registry was cleared. The state is terminal.
	SubscriptionStateRemoved
)

// String returns a human-readable state name.
func (s SubscriptionState) String() string {
	switch s {
	case SubscriptionStateActive:
		return "active"
	case SubscriptionStateRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// SubscriptionConfig contains configuration for a subscription.
type SubscriptionConfig struct {
	// Async runs the handler on its own goroutine, also for PublishSync.
	Async bool

	// Timeout bounds each delivery. Zero means the bus default.
	Timeout time.Duration

	// Name is a human-readable label used in logs and traces.
	Name string
}

// DefaultSubscriptionConfig returns a default subscription configuration.
func DefaultSubscriptionConfig() SubscriptionConfig {
	return SubscriptionConfig{
		Async:   false,
		Timeout: 0,
	}
}

// SubscriptionOption is a function that configures a subscription.
type SubscriptionOption func(*SubscriptionConfig)

// WithAsync marks the handler as asynchronous. Its deliveries run detached from
// the publishing goroutine, so a timeout stops the wait even if the handler
// ignores its context. PublishSync still waits for it before the next
// subscriber.
func WithAsync() SubscriptionOption {
	return func(c *SubscriptionConfig) {
		c.Async = true
	}
}

// WithTimeout bounds each delivery to this subscription.
func WithTimeout(d time.Duration) SubscriptionOption {
	return func(c *SubscriptionConfig) {
		if d > 0 {
			c.Timeout = d
		}
	}
}

// WithName labels the subscription in logs and traces.
func WithName(name string) SubscriptionOption {
	return func(c *SubscriptionConfig) {
		c.Name = name
	}
}

// Subscription is an immutable copy of one registered subscription.
// Values returned by the Registry are snapshots; holding one does not keep the
// subscription registered.
type Subscription struct {
	id      SubscriptionID
	topic   topic.Topic
	handler Handler
	config  SubscriptionConfig
}

// newSubscription creates a new subscription.
func newSubscription(id SubscriptionID, t topic.Topic, h Handler, opts ...SubscriptionOption) Subscription {
	config := DefaultSubscriptionConfig()
	for _, opt := range opts {
		opt(&config)
	}

	return Subscription{
		id:      id,
		topic:   t,
		handler: h,
		config:  config,
	}
}

// ID returns the subscription ID.
func (s Subscription) ID() SubscriptionID {
	return s.id
}

// Topic returns the subscribed topic.
func (s Subscription) Topic() topic.Topic {
	return s.topic
}

// IsAsync reports whether deliveries run detached from the publisher.
func (s Subscription) IsAsync() bool {
	return s.config.Async
}

// Timeout returns the per-delivery timeout (zero if the bus default applies).
func (s Subscription) Timeout() time.Duration {
	return s.config.Timeout
}

// Name returns the subscription label, or the ID if no name was set.
func (s Subscription) Name() string {
	if s.config.Name != "" {
		return s.config.Name
	}
	return string(s.id)
}

// Config returns the subscription configuration.
func (s Subscription) Config() SubscriptionConfig {
	return s.config
}

// IsZero reports whether s is the zero Subscription.
func (s Subscription) IsZero() bool {
	return s.id == ""
}
