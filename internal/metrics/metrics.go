// Package metrics exports event bus measurements to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dshills/topicbus/internal/event"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "topicbus"

// Metrics holds the bus collectors. It implements event.Recorder.
type Metrics struct {
	PublishTotal     *prometheus.CounterVec
	DeliveriesTotal  *prometheus.CounterVec
	DeliveryDuration *prometheus.HistogramVec
	Subscriptions    *prometheus.GaugeVec
}

var _ event.Recorder = (*Metrics)(nil)

// New creates the collectors and registers them with registerer.
// An empty namespace means DefaultNamespace.
func New(registerer prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	factory := promauto.With(registerer)

	return &Metrics{
		PublishTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "publish_total",
				Help:      "Total number of publish calls",
			},
			[]string{"topic", "mode"},
		),
		DeliveriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deliveries_total",
				Help:      "Total number of deliveries to subscribers",
			},
			[]string{"topic", "status"}, // status: success, error, panic, timeout, skipped
		),
		DeliveryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "delivery_duration_seconds",
				Help:      "Subscriber handler duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10), // 100us to ~26s
			},
			[]string{"topic"},
		),
		Subscriptions: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "subscriptions",
				Help:      "Current number of subscriptions per topic",
			},
			[]string{"topic"},
		),
	}
}

// ObservePublish counts one publish call.
func (m *Metrics) ObservePublish(topic, mode string, _ int) {
	m.PublishTotal.WithLabelValues(topic, mode).Inc()
}

// ObserveDelivery counts one delivery. Skipped deliveries never ran, so
// they are not added to the duration histogram.
func (m *Metrics) ObserveDelivery(topic, status string, d time.Duration) {
	m.DeliveriesTotal.WithLabelValues(topic, status).Inc()
	if status != event.StatusLabelSkipped {
		m.DeliveryDuration.WithLabelValues(topic).Observe(d.Seconds())
	}
}

// SetSubscriptions sets the subscription gauge of a topic. Topics that drop
// to zero are removed so the gauge does not keep stale series.
func (m *Metrics) SetSubscriptions(topic string, n int) {
	if n == 0 {
		m.Subscriptions.DeleteLabelValues(topic)
		return
	}
	m.Subscriptions.WithLabelValues(topic).Set(float64(n))
}
