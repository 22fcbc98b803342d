// Package event provides an in-process, topic-addressed publish/subscribe bus.
//
// Subscribers register a handler on a topic and receive every payload
// published on that exact topic afterwards. Publishers get back one Outcome
// per subscriber, so a failing subscriber is visible to the publisher without
// affecting the other subscribers.
//
// # Architecture
//
//	                ┌────────────────────────────────────┐
//	                │                Bus                 │
//	                │  - PublishSync / PublishAsync      │
//	                │  - outcomes, logging, tracing      │
//	                └────────────────────────────────────┘
//	                        │                   │
//	                        ▼                   ▼
//	              ┌─────────────────┐  ┌──────────────────────┐
//	              │    Registry     │  │       dispatch       │
//	              │  - topic → subs │  │  - Sync (ordered)    │
//	              │  - snapshots    │  │  - Async (fan-out)   │
//	              └─────────────────┘  │  - panic recovery    │
//	                                   └──────────────────────┘
//
// # Topics
//
// A topic is a non-empty, case-sensitive string. Matching is exact; there are
// no wildcards and no hierarchy.
//
// # Delivery Modes
//
// PublishSync runs the subscribers of a topic one after another, in the order
// they subscribed, and returns once the last one finished.
//
// PublishAsync runs them concurrently, bounded by WithMaxConcurrency, and
// returns a Future immediately. The Future completes when every delivery
// finished; a failing subscriber never cuts the fan-out short.
//
// In both modes the subscriber list is snapshotted when the publish starts.
// Subscribing or unsubscribing during a publish only affects later publishes.
//
// # Basic Usage
//
//	bus := event.NewBus(event.WithLogger(logger))
//	defer bus.Close(context.Background())
//
//	id, err := bus.SubscribeFunc("orderCreated", func(ctx context.Context, p any) error {
//	    order := p.(Order)
//	    return reserveStock(ctx, order)
//	}, event.WithTimeout(2*time.Second))
//
//	outcome, err := bus.PublishSync(ctx, "orderCreated", order)
//	for _, f := range outcome.Failures() {
//	    log.Printf("subscriber %s failed: %v", f.SubscriptionID, f.Err)
//	}
//
// # Type-Safe Topics
//
//	var orderCreated = event.NewTypedTopic[Order]("orderCreated")
//
//	event.Subscribe(bus, orderCreated, func(ctx context.Context, o Order) error {
//	    return nil
//	})
//	event.PublishSync(ctx, bus, orderCreated, Order{ID: "o-1"})
//
// # Failures
//
// A handler that returns an error, panics, or exceeds its timeout produces a
// failed Outcome whose Err is a *DeliveryError or *PanicError. Use errors.Is
// with ErrHandlerTimeout, ErrHandlerPanic, ErrDeliverySkipped or
// ErrPayloadType to tell them apart. The error returned by the publish call
// itself is only ever ErrInvalidTopic or ErrBusClosed.
//
// # Payloads
//
// Payloads are shared between subscribers and must be treated as read-only.
// WithPayloadCopy gives every delivery its own deep copy instead.
//
// # Thread Safety
//
// The Bus, Registry and Subscriber are safe for concurrent use. Handlers of
// async publishes and async subscriptions run on other goroutines and must
// manage their own thread safety.
//
// # Subpackages
//
//   - topic: Topic type and validation
//   - dispatch: Handler execution, ordered and concurrent dispatch
package event
