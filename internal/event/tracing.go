package event

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dshills/topicbus/internal/event/topic"
)

const (
	tracerName      = "github.com/dshills/topicbus/internal/event"
	publishSpanName = "event.publish"
)

// Span attribute keys.
const (
	AttrTopic          = attribute.Key("event.topic")
	AttrMode           = attribute.Key("event.delivery_mode")
	AttrSubscribers    = attribute.Key("event.subscribers")
	AttrFailed         = attribute.Key("event.failed")
	AttrSubscriptionID = attribute.Key("event.subscription.id")
	AttrSubscription   = attribute.Key("event.subscription.name")
)

func (b *Bus) startPublishSpan(ctx context.Context, t topic.Topic, mode DeliveryMode, subscribers int) (context.Context, trace.Span) {
	return b.tracer.Start(ctx, publishSpanName,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			AttrTopic.String(string(t)),
			AttrMode.String(mode.String()),
			AttrSubscribers.Int(subscribers),
		),
	)
}

func recordDeliveryFailure(span trace.Span, sub Subscription, err error) {
	span.AddEvent("delivery.failed", trace.WithAttributes(
		AttrSubscriptionID.String(string(sub.ID())),
		AttrSubscription.String(sub.Name()),
		attribute.String("error", err.Error()),
	))
}

func endPublishSpan(span trace.Span, outcome AggregateOutcome) {
	if failed := outcome.Failed(); failed > 0 {
		span.SetAttributes(AttrFailed.Int(failed))
		span.SetStatus(codes.Error, fmt.Sprintf("%d of %d deliveries failed", failed, outcome.Len()))
	}
	span.End()
}
