package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/mohae/deepcopy"
	"go.opentelemetry.io/otel/trace"

	"github.com/dshills/topicbus/internal/event/dispatch"
	"github.com/dshills/topicbus/internal/event/topic"
)

// Bus delivers published payloads to the subscribers of a topic.
//
// A Bus has an explicit lifetime: create it with NewBus and release it with
// Close. All methods are safe for concurrent use.
type Bus struct {
	registry *Registry

	syncDispatcher  *dispatch.SyncDispatcher
	asyncDispatcher *dispatch.AsyncDispatcher

	config busConfig
	logger *slog.Logger
	tracer trace.Tracer

	// mu orders closing against new async publishes joining inflight.
	mu       sync.RWMutex
	closed   bool
	inflight sync.WaitGroup

	publishesSync  atomic.Uint64
	publishesAsync atomic.Uint64
	inFlightAsync  atomic.Int64
}

// NewBus creates a new event bus with the given options.
func NewBus(opts ...BusOption) *Bus {
	config := defaultBusConfig()
	for _, opt := range opts {
		opt(&config)
	}

	return &Bus{
		registry: NewRegistry(),
		syncDispatcher: dispatch.NewSyncDispatcher(
			dispatch.WithTimeout(config.defaultTimeout),
		),
		asyncDispatcher: dispatch.NewAsyncDispatcher(
			dispatch.WithMaxConcurrency(config.maxConcurrency),
			dispatch.WithAsyncTimeout(config.defaultTimeout),
		),
		config: config,
		logger: config.logger,
		tracer: config.tracerProvider.Tracer(tracerName),
	}
}

// Subscribe registers handler for topic t and returns the subscription ID.
func (b *Bus) Subscribe(t topic.Topic, handler Handler, opts ...SubscriptionOption) (SubscriptionID, error) {
	// Holding the read lock keeps Close from clearing the registry between
	// the closed check and the add.
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return "", ErrBusClosed
	}
	sub, err := b.registry.add(t, handler, opts...)
	b.mu.RUnlock()
	if err != nil {
		return "", err
	}

	b.config.recorder.SetSubscriptions(string(t), b.registry.CountByTopic(t))
	b.logger.Debug("subscribed",
		slog.String("topic", string(t)),
		slog.String("subscription", sub.Name()),
		slog.Bool("async", sub.IsAsync()),
	)
	return sub.ID(), nil
}

// SubscribeFunc is a convenience method for subscribing with a function handler.
func (b *Bus) SubscribeFunc(t topic.Topic, fn HandlerFunc, opts ...SubscriptionOption) (SubscriptionID, error) {
	if fn == nil {
		return "", ErrNilHandler
	}
	return b.Subscribe(t, fn, opts...)
}

// Unsubscribe removes the subscription id from topic t. It reports whether a
// subscription was removed; unknown IDs and repeated calls return false.
// Publishes that already took their snapshot still deliver to it.
func (b *Bus) Unsubscribe(t topic.Topic, id SubscriptionID) (bool, error) {
	if b.isClosed() {
		return false, ErrBusClosed
	}

	if !b.registry.Unsubscribe(t, id) {
		return false, nil
	}

	b.config.recorder.SetSubscriptions(string(t), b.registry.CountByTopic(t))
	b.logger.Debug("unsubscribed",
		slog.String("topic", string(t)),
		slog.String("subscription", string(id)),
	)
	return true, nil
}

// PublishSync delivers payload to every subscriber of t, one at a time in
// subscription order, and returns one outcome per subscriber.
//
// Subscriber failures are reported only through the outcome. The error is
// ErrInvalidTopic or ErrBusClosed. If ctx is done part way through, the
// remaining subscribers are recorded as skipped.
func (b *Bus) PublishSync(ctx context.Context, t topic.Topic, payload any) (AggregateOutcome, error) {
	if err := t.Validate(); err != nil {
		return AggregateOutcome{}, ErrInvalidTopic
	}
	if b.isClosed() {
		return AggregateOutcome{}, ErrBusClosed
	}

	subs := b.registry.Snapshot(t)
	b.publishesSync.Add(1)
	b.config.recorder.ObservePublish(string(t), DeliverySync.String(), len(subs))

	ctx, span := b.startPublishSpan(ctx, t, DeliverySync, len(subs))
	if len(subs) == 0 {
		endPublishSpan(span, AggregateOutcome{})
		return AggregateOutcome{}, nil
	}

	results := b.syncDispatcher.DispatchAll(ctx, payload, b.tasks(subs))
	outcome := b.collect(span, subs, payload, results)
	endPublishSpan(span, outcome)
	return outcome, nil
}

// PublishAsync delivers payload to every subscriber of t concurrently and
// returns a Future for the aggregate outcome.
//
// The subscriber snapshot is taken before PublishAsync returns. Cancelling
// ctx, or calling Future.Cancel, skips deliveries that have not started yet;
// started deliveries run to completion with a context that is never
// cancelled by the publisher.
func (b *Bus) PublishAsync(ctx context.Context, t topic.Topic, payload any) (*Future, error) {
	if err := t.Validate(); err != nil {
		return nil, ErrInvalidTopic
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return nil, ErrBusClosed
	}
	b.inflight.Add(1)
	b.mu.RUnlock()

	subs := b.registry.Snapshot(t)
	b.publishesAsync.Add(1)
	b.config.recorder.ObservePublish(string(t), DeliveryAsync.String(), len(subs))

	if len(subs) == 0 {
		_, span := b.startPublishSpan(ctx, t, DeliveryAsync, 0)
		endPublishSpan(span, AggregateOutcome{})
		b.inflight.Done()
		return completedFuture(AggregateOutcome{}), nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	future := newFuture(cancel)
	tasks := b.tasks(subs)

	b.inFlightAsync.Add(1)
	go func() {
		defer b.inflight.Done()
		defer b.inFlightAsync.Add(-1)
		defer cancel()

		spanCtx, span := b.startPublishSpan(runCtx, t, DeliveryAsync, len(subs))
		results := b.asyncDispatcher.DispatchAll(spanCtx, payload, tasks)
		outcome := b.collect(span, subs, payload, results)
		endPublishSpan(span, outcome)
		future.complete(outcome)
	}()

	return future, nil
}

// Close stops the bus. New calls fail with ErrBusClosed, in-flight
// PublishAsync fan-outs are awaited until ctx is done, and then all
// subscriptions are removed. Close may be called more than once.
func (b *Bus) Close(ctx context.Context) error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("waiting for in-flight publishes: %w", ctx.Err())
	}

	for _, t := range b.registry.Clear() {
		b.config.recorder.SetSubscriptions(string(t), 0)
	}
	return nil
}

// IsClosed reports whether Close has been called.
func (b *Bus) IsClosed() bool {
	return b.isClosed()
}

func (b *Bus) isClosed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}

// Topics returns every topic with at least one subscriber.
func (b *Bus) Topics() []topic.Topic {
	return b.registry.Topics()
}

// SubscriberCount returns the number of subscribers of t.
func (b *Bus) SubscriberCount(t topic.Topic) int {
	return b.registry.CountByTopic(t)
}

// SubscriptionState reports whether id is still registered.
func (b *Bus) SubscriptionState(id SubscriptionID) SubscriptionState {
	return b.registry.State(id)
}

// Stats returns current bus statistics. Delivery counts are the sum of both
// dispatchers' counters.
func (b *Bus) Stats() Stats {
	s, a := b.syncDispatcher.Stats(), b.asyncDispatcher.Stats()
	panicked := s.Panicked + a.Panicked
	skipped := s.Skipped + a.Skipped

	return Stats{
		PublishesSync:       b.publishesSync.Load(),
		PublishesAsync:      b.publishesAsync.Load(),
		Delivered:           s.Succeeded + a.Succeeded,
		Failed:              s.Failed + a.Failed + panicked + skipped,
		Panicked:            panicked,
		TimedOut:            s.TimedOut + a.TimedOut,
		Skipped:             skipped,
		ActiveSubscriptions: b.registry.Count(),
		InFlightAsync:       b.inFlightAsync.Load(),
	}
}

// tasks builds one dispatch task per subscription.
func (b *Bus) tasks(subs []Subscription) []dispatch.Task {
	tasks := make([]dispatch.Task, len(subs))
	for i, sub := range subs {
		var h dispatch.Handler = sub.handler
		if b.config.copyPayloads {
			h = copyingHandler{next: sub.handler}
		}
		tasks[i] = dispatch.Task{
			Handler:  h,
			Timeout:  sub.config.Timeout,
			Detached: sub.config.Async,
		}
	}
	return tasks
}

// copyingHandler hands its handler a private deep copy of every payload.
type copyingHandler struct {
	next Handler
}

func (h copyingHandler) Handle(ctx context.Context, payload any) error {
	return h.next.Handle(ctx, deepcopy.Copy(payload))
}

// collect converts dispatch results into outcomes and reports every delivery.
func (b *Bus) collect(span trace.Span, subs []Subscription, payload any, results []dispatch.Result) AggregateOutcome {
	outcomes := make([]Outcome, len(subs))
	for i, sub := range subs {
		outcomes[i] = b.report(span, sub, payload, results[i])
	}
	return newAggregate(outcomes)
}

func (b *Bus) report(span trace.Span, sub Subscription, payload any, r dispatch.Result) Outcome {
	o := Outcome{
		SubscriptionID: sub.id,
		Topic:          sub.topic,
		Status:         StatusFailure,
		Duration:       r.Duration,
	}

	var status string
	switch {
	case r.IsSuccess():
		o.Status = StatusSuccess
		b.config.recorder.ObserveDelivery(string(sub.topic), StatusLabelSuccess, r.Duration)
		return o

	case r.IsPanic():
		status = StatusLabelPanic
		o.Err = &PanicError{
			SubscriptionID: sub.id,
			Topic:          sub.topic,
			Value:          r.PanicValue,
			Stack:          string(r.PanicStack),
		}
		b.logger.Error("subscriber panicked",
			slog.String("topic", string(sub.topic)),
			slog.String("subscription", sub.Name()),
			slog.Any("panic", r.PanicValue),
		)
		if b.config.panicHandler != nil {
			safeCall(func() { b.config.panicHandler(sub, payload, r.PanicValue) })
		}

	case r.Skipped:
		status = StatusLabelSkipped
		o.Err = &DeliveryError{
			SubscriptionID: sub.id,
			Topic:          sub.topic,
			Err:            fmt.Errorf("%w: %w", ErrDeliverySkipped, r.Error),
		}
		b.logger.Debug("delivery skipped",
			slog.String("topic", string(sub.topic)),
			slog.String("subscription", sub.Name()),
			slog.Any("reason", r.Error),
		)

	default:
		if r.Error == nil {
			r.Error = errors.New("delivery failed")
		}
		status = StatusLabelError
		if r.IsTimeout() {
			status = StatusLabelTimeout
		}
		o.Err = &DeliveryError{
			SubscriptionID: sub.id,
			Topic:          sub.topic,
			Err:            r.Error,
		}
		b.logger.Warn("delivery failed",
			slog.String("topic", string(sub.topic)),
			slog.String("subscription", sub.Name()),
			slog.Duration("duration", r.Duration),
			slog.Any("error", r.Error),
		)
	}

	b.config.recorder.ObserveDelivery(string(sub.topic), status, r.Duration)
	recordDeliveryFailure(span, sub, o.Err)
	if b.config.errorHandler != nil {
		safeCall(func() { b.config.errorHandler(sub, payload, o.Err) })
	}
	return o
}

// safeCall runs a user hook; a panicking hook is discarded.
func safeCall(fn func()) {
	defer func() { _ = recover() }()
	fn()
}
