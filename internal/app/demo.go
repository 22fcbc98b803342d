package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dshills/topicbus/internal/event"
)

// OrderCreated is the demo payload.
type OrderCreated struct {
	OrderID int `json:"orderId"`
}

// OrderCreatedTopic carries OrderCreated payloads.
var OrderCreatedTopic = event.NewTypedTopic[OrderCreated]("orderCreated")

// DemoOptions configures RunDemo.
type DemoOptions struct {
	// Async publishes with PublishAsync and waits on the Future.
	Async bool
}

// DemoRound is one publish of the demo.
type DemoRound struct {
	Payload OrderCreated
	Outcome event.AggregateOutcome
}

// DemoReport is what RunDemo observed.
type DemoReport struct {
	// Subscribers maps subscriber names to their IDs.
	Subscribers map[string]event.SubscriptionID

	// Received lists the order IDs each named subscriber was handed.
	Received map[string][]int

	Rounds []DemoRound
}

// RunDemo subscribes two handlers to orderCreated, publishes order 123,
// unsubscribes the first handler and publishes order 456. Each aggregate
// outcome is printed to the application output.
func (app *Application) RunDemo(ctx context.Context, opts DemoOptions) (*DemoReport, error) {
	report := &DemoReport{
		Subscribers: make(map[string]event.SubscriptionID),
		Received:    make(map[string][]int),
	}

	var mu sync.Mutex
	handlerFor := func(name string) event.TypedHandlerFunc[OrderCreated] {
		return func(_ context.Context, o OrderCreated) error {
			mu.Lock()
			defer mu.Unlock()
			report.Received[name] = append(report.Received[name], o.OrderID)
			return nil
		}
	}

	subscriber := event.NewSubscriber(app.bus)
	defer subscriber.Close()

	for _, name := range []string{"inventory", "email"} {
		id, err := event.Subscribe(app.bus, OrderCreatedTopic, handlerFor(name), event.WithName(name))
		if err != nil {
			return nil, fmt.Errorf("subscribing %s: %w", name, err)
		}
		report.Subscribers[name] = id
	}

	// Subscriptions made through the Subscriber are removed when the demo ends.
	if _, err := subscriber.Subscribe("orderShipped", event.HandlerFunc(func(context.Context, any) error {
		return nil
	}), event.WithName("shipping")); err != nil {
		return nil, fmt.Errorf("subscribing shipping: %w", err)
	}

	publish := func(o OrderCreated) error {
		outcome, err := app.publish(ctx, o, opts.Async)
		if err != nil {
			return err
		}
		report.Rounds = append(report.Rounds, DemoRound{Payload: o, Outcome: outcome})
		app.printOutcome(o, outcome, report.Subscribers)
		return nil
	}

	if err := publish(OrderCreated{OrderID: 123}); err != nil {
		return nil, err
	}

	if _, err := app.bus.Unsubscribe(OrderCreatedTopic.Topic(), report.Subscribers["inventory"]); err != nil {
		return nil, fmt.Errorf("unsubscribing inventory: %w", err)
	}

	if err := publish(OrderCreated{OrderID: 456}); err != nil {
		return nil, err
	}

	if _, err := app.bus.Unsubscribe(OrderCreatedTopic.Topic(), report.Subscribers["email"]); err != nil {
		return nil, fmt.Errorf("unsubscribing email: %w", err)
	}

	stats := app.bus.Stats()
	app.logger.Info("demo finished",
		slog.Uint64("delivered", stats.Delivered),
		slog.Uint64("failed", stats.Failed),
	)
	return report, nil
}

func (app *Application) publish(ctx context.Context, o OrderCreated, async bool) (event.AggregateOutcome, error) {
	if !async {
		return event.PublishSync(ctx, app.bus, OrderCreatedTopic, o)
	}

	future, err := event.PublishAsync(ctx, app.bus, OrderCreatedTopic, o)
	if err != nil {
		return event.AggregateOutcome{}, err
	}
	return future.Wait(ctx)
}

func (app *Application) printOutcome(o OrderCreated, outcome event.AggregateOutcome, names map[string]event.SubscriptionID) {
	labels := make(map[event.SubscriptionID]string, len(names))
	for name, id := range names {
		labels[id] = name
	}

	fmt.Fprintf(app.out, "publish %s {orderId:%d}: %d subscriber(s)\n", OrderCreatedTopic, o.OrderID, outcome.Len())
	for _, r := range outcome.Outcomes() {
		if r.Err != nil {
			fmt.Fprintf(app.out, "  %-10s %s %v\n", labels[r.SubscriptionID], r.Status, r.Err)
			continue
		}
		fmt.Fprintf(app.out, "  %-10s %s\n", labels[r.SubscriptionID], r.Status)
	}
}
