package event

import (
	"reflect"
	"slices"
	"sync"

	"github.com/dshills/topicbus/internal/event/topic"
)

// Registry manages subscriptions organized by topic.
// It is thread-safe for concurrent access.
//
// Each topic's slice is copy-on-write: mutations build a new slice and swap it
// in, so a slice handed out by Snapshot is never modified afterwards.
type Registry struct {
	mu   sync.RWMutex
	subs map[topic.Topic][]Subscription
	byID map[SubscriptionID]topic.Topic
}

// NewRegistry creates a new subscription registry.
func NewRegistry() *Registry {
	return &Registry{
		subs: make(map[topic.Topic][]Subscription),
		byID: make(map[SubscriptionID]topic.Topic),
	}
}

// Subscribe registers handler for t and returns the new subscription's ID.
// It fails with ErrInvalidTopic for an empty topic and ErrNilHandler for a nil
// handler; both match ErrInvalidArgument.
func (r *Registry) Subscribe(t topic.Topic, handler Handler, opts ...SubscriptionOption) (SubscriptionID, error) {
	sub, err := r.add(t, handler, opts...)
	if err != nil {
		return "", err
	}
	return sub.ID(), nil
}

// add validates, registers and returns the stored subscription.
func (r *Registry) add(t topic.Topic, handler Handler, opts ...SubscriptionOption) (Subscription, error) {
	if err := t.Validate(); err != nil {
		return Subscription{}, ErrInvalidTopic
	}
	if isNilHandler(handler) {
		return Subscription{}, ErrNilHandler
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := newSubscriptionID()
	for {
		if _, taken := r.byID[id]; !taken {
			break
		}
		id = newSubscriptionID()
	}

	sub := newSubscription(id, t, handler, opts...)

	current := r.subs[t]
	next := make([]Subscription, len(current), len(current)+1)
	copy(next, current)
	r.subs[t] = append(next, sub)
	r.byID[id] = t

	return sub, nil
}

// Unsubscribe removes the subscription with the given ID from topic t.
// It returns false if t has no such subscription; calling it again for the
// same ID is a no-op.
func (r *Registry) Unsubscribe(t topic.Topic, id SubscriptionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	registered, exists := r.byID[id]
	if !exists || registered != t {
		return false
	}

	current := r.subs[t]
	idx := slices.IndexFunc(current, func(s Subscription) bool { return s.id == id })
	if idx < 0 {
		return false
	}

	if len(current) == 1 {
		delete(r.subs, t)
	} else {
		next := make([]Subscription, 0, len(current)-1)
		next = append(next, current[:idx]...)
		next = append(next, current[idx+1:]...)
		r.subs[t] = next
	}
	delete(r.byID, id)

	return true
}

// Snapshot returns the subscriptions of t in insertion order, as of the
// moment of the call. The result is a copy: later Subscribe and Unsubscribe
// calls never change it. A topic without subscribers yields nil.
func (r *Registry) Snapshot(t topic.Topic) []Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := r.subs[t]
	if len(subs) == 0 {
		return nil
	}

	result := make([]Subscription, len(subs))
	copy(result, subs)
	return result
}

// Lookup returns the subscription with the given ID.
func (r *Registry) Lookup(id SubscriptionID) (Subscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, exists := r.byID[id]
	if !exists {
		return Subscription{}, false
	}
	for _, s := range r.subs[t] {
		if s.id == id {
			return s, true
		}
	}
	return Subscription{}, false
}

// State returns SubscriptionStateActive for a registered ID and
// SubscriptionStateRemoved for any other ID.
func (r *Registry) State(id SubscriptionID) SubscriptionState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, exists := r.byID[id]; exists {
		return SubscriptionStateActive
	}
	return SubscriptionStateRemoved
}

// Count returns the total number of subscriptions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byID)
}

// CountByTopic returns the number of subscriptions for a topic.
func (r *Registry) CountByTopic(t topic.Topic) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.subs[t])
}

// Topics returns all topics with at least one subscription, sorted.
func (r *Registry) Topics() []topic.Topic {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.subs) == 0 {
		return nil
	}

	topics := make([]topic.Topic, 0, len(r.subs))
	for t := range r.subs {
		topics = append(topics, t)
	}
	slices.Sort(topics)
	return topics
}

// Clear removes all subscriptions and returns the topics that had any.
func (r *Registry) Clear() []topic.Topic {
	r.mu.Lock()
	defer r.mu.Unlock()

	cleared := make([]topic.Topic, 0, len(r.subs))
	for t := range r.subs {
		cleared = append(cleared, t)
	}
	slices.Sort(cleared)

	r.subs = make(map[topic.Topic][]Subscription)
	r.byID = make(map[SubscriptionID]topic.Topic)
	return cleared
}

// isNilHandler also catches a typed nil, such as HandlerFunc(nil), stored in
// the interface.
func isNilHandler(h Handler) bool {
	if h == nil {
		return true
	}
	v := reflect.ValueOf(h)
	switch v.Kind() {
	case reflect.Func, reflect.Pointer, reflect.Map, reflect.Chan, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}
	return false
}
