package event

import (
	"errors"
	"time"

	"github.com/dshills/topicbus/internal/event/topic"
)

// Status is the result of a single delivery.
type Status int

const (
	// StatusSuccess means the handler returned without error.
	StatusSuccess Status = iota

	// StatusFailure means the handler returned an error, panicked, timed out,
	// or was never started.
	StatusFailure
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Outcome records what happened to one delivery.
type Outcome struct {
	// SubscriptionID identifies the subscriber.
	SubscriptionID SubscriptionID

	// Topic is the topic the payload was published on.
	Topic topic.Topic

	// Status is success or failure.
	Status Status

	// Err is non-nil exactly when Status is StatusFailure. It is a
	// *DeliveryError or a *PanicError.
	Err error

	// Duration is how long the handler ran. Zero for skipped deliveries.
	Duration time.Duration
}

// OK reports whether the delivery succeeded.
func (o Outcome) OK() bool {
	return o.Status == StatusSuccess
}

// AggregateOutcome holds one Outcome per subscriber that was in the topic's
// snapshot when the payload was published, in subscription order.
type AggregateOutcome struct {
	outcomes []Outcome
}

func newAggregate(outcomes []Outcome) AggregateOutcome {
	return AggregateOutcome{outcomes: outcomes}
}

// Len returns the number of deliveries.
func (a AggregateOutcome) Len() int {
	return len(a.outcomes)
}

// Outcomes returns a copy of all outcomes in subscription order.
func (a AggregateOutcome) Outcomes() []Outcome {
	if len(a.outcomes) == 0 {
		return nil
	}
	out := make([]Outcome, len(a.outcomes))
	copy(out, a.outcomes)
	return out
}

// At returns the i-th outcome.
func (a AggregateOutcome) At(i int) Outcome {
	return a.outcomes[i]
}

// Get returns the outcome for the given subscription.
func (a AggregateOutcome) Get(id SubscriptionID) (Outcome, bool) {
	for _, o := range a.outcomes {
		if o.SubscriptionID == id {
			return o, true
		}
	}
	return Outcome{}, false
}

// Succeeded returns the number of successful deliveries.
func (a AggregateOutcome) Succeeded() int {
	n := 0
	for _, o := range a.outcomes {
		if o.Status == StatusSuccess {
			n++
		}
	}
	return n
}

// Failed returns the number of failed deliveries.
func (a AggregateOutcome) Failed() int {
	return len(a.outcomes) - a.Succeeded()
}

// Failures returns the failed outcomes in subscription order.
func (a AggregateOutcome) Failures() []Outcome {
	var failures []Outcome
	for _, o := range a.outcomes {
		if o.Status == StatusFailure {
			failures = append(failures, o)
		}
	}
	return failures
}

// AllSucceeded reports whether every delivery succeeded. It is true for an
// empty aggregate.
func (a AggregateOutcome) AllSucceeded() bool {
	return a.Failed() == 0
}

// Err joins the errors of all failed deliveries, or returns nil.
func (a AggregateOutcome) Err() error {
	var errs []error
	for _, o := range a.outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errors.Join(errs...)
}
