// Package app wires configuration, logging, metrics and tracing around an
// event bus and runs the topicbus commands.
package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/dshills/topicbus/internal/config"
	"github.com/dshills/topicbus/internal/event"
	"github.com/dshills/topicbus/internal/metrics"
)

// Application owns the event bus and everything it reports to.
type Application struct {
	cfg    config.Config
	logger *slog.Logger
	bus    *event.Bus

	registry       *prometheus.Registry
	metrics        *metrics.Metrics
	tracerProvider *sdktrace.TracerProvider

	out io.Writer

	shutdownOnce sync.Once
	shutdownErr  error
}

// Options configures the application.
type Options struct {
	// ConfigPath is the path to a TOML or YAML configuration file.
	ConfigPath string

	// LogLevel overrides the configured log level when set.
	LogLevel string

	// MetricsAddr overrides the configured metrics listen address when set.
	MetricsAddr string

	// Output receives command output. Defaults to os.Stdout.
	Output io.Writer

	// LogOutput receives logs and exported spans. Defaults to os.Stderr.
	LogOutput io.Writer
}

// New loads the configuration and creates all components.
func New(opts Options) (*Application, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, &InitError{Component: "config", Err: err}
	}
	if err := cfg.ApplyEnv(config.DefaultEnvPrefix); err != nil {
		return nil, &InitError{Component: "config", Err: err}
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if opts.MetricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = opts.MetricsAddr
	}

	return NewWithConfig(cfg, opts)
}

// NewWithConfig creates all components from an already loaded configuration.
func NewWithConfig(cfg config.Config, opts Options) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &InitError{Component: "config", Err: err}
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	logOut := opts.LogOutput
	if logOut == nil {
		logOut = os.Stderr
	}

	app := &Application{
		cfg:    cfg,
		logger: NewLogger(cfg.Log, logOut),
		out:    out,
	}

	if err := app.bootstrap(logOut); err != nil {
		return nil, err
	}
	return app, nil
}

// bootstrap initializes components in dependency order.
func (app *Application) bootstrap(traceOut io.Writer) error {
	busOpts := []event.BusOption{
		event.WithLogger(app.logger.With(slog.String("component", "event"))),
		event.WithMaxConcurrency(app.cfg.Bus.MaxConcurrency),
		event.WithDefaultTimeout(app.cfg.Bus.DefaultTimeout.Std()),
	}
	if app.cfg.Bus.CopyPayloads {
		busOpts = append(busOpts, event.WithPayloadCopy())
	}

	// 1. Metrics
	if app.cfg.Metrics.Enabled {
		app.registry = prometheus.NewRegistry()
		app.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		app.metrics = metrics.New(app.registry, app.cfg.Metrics.Namespace)
		busOpts = append(busOpts, event.WithRecorder(app.metrics))
	}

	// 2. Tracing
	if app.cfg.Tracing.Enabled {
		tp, err := newTracerProvider(traceOut)
		if err != nil {
			return &InitError{Component: "tracing", Err: err}
		}
		app.tracerProvider = tp
		busOpts = append(busOpts, event.WithTracerProvider(tp))
	}

	// 3. Event bus
	app.bus = event.NewBus(busOpts...)

	app.logger.Debug("application initialized",
		slog.Bool("metrics", app.cfg.Metrics.Enabled),
		slog.Bool("tracing", app.cfg.Tracing.Enabled),
		slog.Int("max_concurrency", app.cfg.Bus.MaxConcurrency),
	)
	return nil
}

// Bus returns the event bus.
func (app *Application) Bus() *event.Bus {
	return app.bus
}

// Config returns the effective configuration.
func (app *Application) Config() config.Config {
	return app.cfg
}

// Logger returns the application logger.
func (app *Application) Logger() *slog.Logger {
	return app.logger
}

// MetricsHandler returns the /metrics handler, or nil if metrics are disabled.
func (app *Application) MetricsHandler() http.Handler {
	if app.registry == nil {
		return nil
	}
	return promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{Registry: app.registry})
}

// ServeMetrics serves /metrics on the configured address until ctx is done.
func (app *Application) ServeMetrics(ctx context.Context) error {
	handler := app.MetricsHandler()
	if handler == nil {
		return NewComponentError("metrics", "serve", errors.New("metrics are disabled"))
	}
	if app.cfg.Metrics.Addr == "" {
		return NewComponentError("metrics", "serve", errors.New("no listen address"))
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{
		Addr:              app.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	app.logger.Info("serving metrics", slog.String("addr", app.cfg.Metrics.Addr))

	select {
	case err := <-errc:
		return NewComponentError("metrics", "serve", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return NewComponentError("metrics", "shutdown", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return NewComponentError("metrics", "serve", err)
	}
	return nil
}

// Shutdown closes the bus, then flushes tracing. It is safe to call more
// than once; later calls return the first result.
func (app *Application) Shutdown(ctx context.Context) error {
	app.shutdownOnce.Do(func() {
		var errs []error

		// 1. Event bus waits for in-flight publishes.
		if err := app.bus.Close(ctx); err != nil {
			errs = append(errs, NewComponentError("event bus", "close", err))
		}

		// 2. Tracing flushes ended spans.
		if app.tracerProvider != nil {
			if err := app.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, NewComponentError("tracing", "shutdown", err))
			}
		}

		app.shutdownErr = errors.Join(errs...)
		app.logger.Debug("application shut down")
	})
	return app.shutdownErr
}
