package event

import "time"

// Delivery status labels passed to Recorder.ObserveDelivery.
const (
	StatusLabelSuccess = "success"
	StatusLabelError   = "error"
	StatusLabelPanic   = "panic"
	StatusLabelTimeout = "timeout"
	StatusLabelSkipped = "skipped"
)

// Recorder receives bus measurements. Implementations must be safe for
// concurrent use. See the metrics package for a Prometheus implementation.
type Recorder interface {
	// ObservePublish is called once per publish, after the snapshot is taken.
	ObservePublish(topic, mode string, subscribers int)

	// ObserveDelivery is called once per delivery with one of the StatusLabel
	// values.
	ObserveDelivery(topic, status string, d time.Duration)

	// SetSubscriptions reports the current subscriber count of a topic.
	SetSubscriptions(topic string, n int)
}

type nopRecorder struct{}

func (nopRecorder) ObservePublish(string, string, int)             {}
func (nopRecorder) ObserveDelivery(string, string, time.Duration) {}
func (nopRecorder) SetSubscriptions(string, int)                   {}
