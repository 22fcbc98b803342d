package event

import (
	"context"
	"reflect"

	"github.com/dshills/topicbus/internal/event/topic"
)

// TypedTopic binds a topic to a payload type so that publishers and
// subscribers agree on the payload shape at compile time.
type TypedTopic[T any] struct {
	topic topic.Topic
}

// NewTypedTopic returns a typed handle for t.
func NewTypedTopic[T any](t topic.Topic) TypedTopic[T] {
	return TypedTopic[T]{topic: t}
}

// Topic returns the underlying topic.
func (tt TypedTopic[T]) Topic() topic.Topic {
	return tt.topic
}

// String returns the topic name.
func (tt TypedTopic[T]) String() string {
	return string(tt.topic)
}

// TypedHandlerFunc handles payloads of a single type.
type TypedHandlerFunc[T any] func(ctx context.Context, payload T) error

// Subscribe registers fn on tt. A payload that is not a T, published through
// the untyped API, fails the delivery with a *PayloadTypeError.
func Subscribe[T any](b *Bus, tt TypedTopic[T], fn TypedHandlerFunc[T], opts ...SubscriptionOption) (SubscriptionID, error) {
	if fn == nil {
		return "", ErrNilHandler
	}
	return b.Subscribe(tt.topic, typedHandler[T](fn), opts...)
}

// PublishSync publishes payload on tt. See Bus.PublishSync.
func PublishSync[T any](ctx context.Context, b *Bus, tt TypedTopic[T], payload T) (AggregateOutcome, error) {
	return b.PublishSync(ctx, tt.topic, payload)
}

// PublishAsync publishes payload on tt. See Bus.PublishAsync.
func PublishAsync[T any](ctx context.Context, b *Bus, tt TypedTopic[T], payload T) (*Future, error) {
	return b.PublishAsync(ctx, tt.topic, payload)
}

type typedHandler[T any] TypedHandlerFunc[T]

func (h typedHandler[T]) Handle(ctx context.Context, payload any) error {
	v, ok := payload.(T)
	if !ok {
		if payload != nil {
			return &PayloadTypeError{Want: typeName[T](), Got: reflect.TypeOf(payload).String()}
		}
		// A nil payload is the zero value of pointer, interface and similar types.
		var zero T
		if !nilable(reflect.TypeFor[T]()) {
			return &PayloadTypeError{Want: typeName[T](), Got: "nil"}
		}
		v = zero
	}
	return h(ctx, v)
}

func typeName[T any]() string {
	return reflect.TypeFor[T]().String()
}

func nilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	default:
		return false
	}
}
