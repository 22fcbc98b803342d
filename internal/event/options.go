package event

import (
	"log/slog"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// BusOption configures an event Bus.
type BusOption func(*busConfig)

// busConfig contains configuration for the event bus.
type busConfig struct {
	// maxConcurrency bounds concurrently running handlers per PublishAsync.
	maxConcurrency int

	// defaultTimeout applies to subscriptions without their own timeout.
	// Zero means no timeout.
	defaultTimeout time.Duration

	// copyPayloads deep-copies the payload for every delivery.
	copyPayloads bool

	logger         *slog.Logger
	recorder       Recorder
	tracerProvider trace.TracerProvider

	panicHandler PanicHandler
	errorHandler ErrorHandler
}

// defaultBusConfig returns sensible default configuration.
func defaultBusConfig() busConfig {
	return busConfig{
		maxConcurrency: DefaultMaxConcurrency(),
		defaultTimeout: 0,
		logger:         slog.New(slog.DiscardHandler),
		recorder:       nopRecorder{},
		tracerProvider: otel.GetTracerProvider(),
	}
}

// DefaultMaxConcurrency is the PublishAsync concurrency limit used when
// WithMaxConcurrency is not given.
func DefaultMaxConcurrency() int {
	return runtime.GOMAXPROCS(0) * 4
}

// WithMaxConcurrency limits how many handlers of a single PublishAsync run at
// once. Values <= 0 remove the limit.
func WithMaxConcurrency(n int) BusOption {
	return func(c *busConfig) {
		c.maxConcurrency = n
	}
}

// WithDefaultTimeout sets the handler timeout for subscriptions that were
// registered without WithTimeout.
func WithDefaultTimeout(timeout time.Duration) BusOption {
	return func(c *busConfig) {
		if timeout >= 0 {
			c.defaultTimeout = timeout
		}
	}
}

// WithPayloadCopy gives every delivery its own deep copy of the payload.
// Without it, subscribers share the published value and must not mutate it.
func WithPayloadCopy() BusOption {
	return func(c *busConfig) {
		c.copyPayloads = true
	}
}

// WithLogger sets the logger for delivery failures.
func WithLogger(logger *slog.Logger) BusOption {
	return func(c *busConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) BusOption {
	return func(c *busConfig) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithTracerProvider sets the tracer provider used for publish spans.
// The global provider is used by default.
func WithTracerProvider(tp trace.TracerProvider) BusOption {
	return func(c *busConfig) {
		if tp != nil {
			c.tracerProvider = tp
		}
	}
}

// WithPanicHandler sets a hook that is called when a handler panics.
func WithPanicHandler(h PanicHandler) BusOption {
	return func(c *busConfig) {
		c.panicHandler = h
	}
}

// WithErrorHandler sets a hook that is called for every failed delivery.
func WithErrorHandler(h ErrorHandler) BusOption {
	return func(c *busConfig) {
		c.errorHandler = h
	}
}
