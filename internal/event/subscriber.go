package event

import (
	"errors"
	"sync"

	"github.com/dshills/topicbus/internal/event/topic"
)

// ErrSubscriberClosed is returned by a Subscriber after Close.
var ErrSubscriberClosed = errors.New("subscriber is closed")

// Subscriber groups subscriptions made by one component so they can be
// removed together.
type Subscriber struct {
	bus *Bus

	mu     sync.Mutex
	owned  []ownedSubscription
	closed bool
}

type ownedSubscription struct {
	topic topic.Topic
	id    SubscriptionID
}

// NewSubscriber creates a new Subscriber on the given bus.
func NewSubscriber(bus *Bus) *Subscriber {
	return &Subscriber{bus: bus}
}

// Subscribe subscribes handler to t and tracks the subscription.
func (s *Subscriber) Subscribe(t topic.Topic, handler Handler, opts ...SubscriptionOption) (SubscriptionID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrSubscriberClosed
	}

	id, err := s.bus.Subscribe(t, handler, opts...)
	if err != nil {
		return "", err
	}

	s.owned = append(s.owned, ownedSubscription{topic: t, id: id})
	return id, nil
}

// SubscribeFunc subscribes a function handler to t and tracks the subscription.
func (s *Subscriber) SubscribeFunc(t topic.Topic, fn HandlerFunc, opts ...SubscriptionOption) (SubscriptionID, error) {
	if fn == nil {
		return "", ErrNilHandler
	}
	return s.Subscribe(t, fn, opts...)
}

// SubscribeAsync subscribes handler with WithAsync.
func (s *Subscriber) SubscribeAsync(t topic.Topic, handler Handler, opts ...SubscriptionOption) (SubscriptionID, error) {
	opts = append(opts, WithAsync())
	return s.Subscribe(t, handler, opts...)
}

// Unsubscribe removes one tracked subscription.
func (s *Subscriber) Unsubscribe(t topic.Topic, id SubscriptionID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, o := range s.owned {
		if o.id == id && o.topic == t {
			s.owned = append(s.owned[:i], s.owned[i+1:]...)
			break
		}
	}

	return s.bus.Unsubscribe(t, id)
}

// UnsubscribeAll removes every tracked subscription and returns how many were
// still registered.
func (s *Subscriber) UnsubscribeAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.unsubscribeAllLocked()
}

func (s *Subscriber) unsubscribeAllLocked() int {
	removed := 0
	for _, o := range s.owned {
		// A closed bus has already dropped every subscription.
		if ok, _ := s.bus.Unsubscribe(o.topic, o.id); ok {
			removed++
		}
	}
	s.owned = nil
	return removed
}

// Count returns the number of tracked subscriptions.
func (s *Subscriber) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.owned)
}

// IDs returns the tracked subscription IDs in subscription order.
func (s *Subscriber) IDs() []SubscriptionID {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]SubscriptionID, len(s.owned))
	for i, o := range s.owned {
		ids[i] = o.id
	}
	return ids
}

// Close removes every tracked subscription. Later Subscribe calls fail with
// ErrSubscriberClosed.
func (s *Subscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.unsubscribeAllLocked()
}

// IsClosed reports whether Close has been called.
func (s *Subscriber) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}
