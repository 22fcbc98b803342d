package event

import (
	"errors"
	"fmt"

	"github.com/dshills/topicbus/internal/event/dispatch"
	"github.com/dshills/topicbus/internal/event/topic"
)

// Sentinel errors for the event bus.
var (
	// ErrInvalidArgument is matched by every argument error returned to the
	// caller of Subscribe.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidTopic is returned when a topic is empty.
	ErrInvalidTopic = fmt.Errorf("%w: %w", ErrInvalidArgument, topic.ErrEmpty)

	// ErrNilHandler is returned when a nil handler is provided.
	ErrNilHandler = fmt.Errorf("%w: handler cannot be nil", ErrInvalidArgument)

	// ErrBusClosed is returned when operations are attempted on a closed bus.
	ErrBusClosed = errors.New("event bus is closed")

	// ErrHandlerTimeout is matched by deliveries that exceeded their timeout.
	ErrHandlerTimeout = dispatch.ErrTimeout

	// ErrHandlerPanic is matched by deliveries whose handler panicked.
	ErrHandlerPanic = errors.New("handler panicked")

	// ErrDeliverySkipped is matched by deliveries that never started because
	// the publish was cancelled first.
	ErrDeliverySkipped = errors.New("delivery skipped")

	// ErrPayloadType is matched when a typed subscriber receives a payload of
	// a different type.
	ErrPayloadType = errors.New("payload type mismatch")
)

// DeliveryError wraps a failed delivery with the subscriber it came from.
type DeliveryError struct {
	// SubscriptionID is the ID of the subscription whose delivery failed.
	SubscriptionID SubscriptionID

	// Topic is the topic the payload was published on.
	Topic topic.Topic

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *DeliveryError) Error() string {
	return "delivery to subscription " + string(e.SubscriptionID) + " on topic " + string(e.Topic) + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// PanicError wraps a panic value as an error.
type PanicError struct {
	// SubscriptionID is the ID of the subscription whose handler panicked.
	SubscriptionID SubscriptionID

	// Topic is the topic the payload was published on.
	Topic topic.Topic

	// Value is the value passed to panic().
	Value any

	// Stack is the stack trace at the time of the panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panic for subscription %s on topic %s: %v", e.SubscriptionID, e.Topic, e.Value)
}

// Is allows errors.Is to match PanicError with ErrHandlerPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrHandlerPanic
}

// PayloadTypeError is returned by typed handlers that receive a payload they
// cannot convert.
type PayloadTypeError struct {
	// Want is the payload type the handler was registered for.
	Want string

	// Got is the dynamic type of the delivered payload.
	Got string
}

// Error implements the error interface.
func (e *PayloadTypeError) Error() string {
	return "payload type mismatch: want " + e.Want + ", got " + e.Got
}

// Is allows errors.Is to match PayloadTypeError with ErrPayloadType.
func (e *PayloadTypeError) Is(target error) bool {
	return target == ErrPayloadType
}
