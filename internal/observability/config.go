// Package observability wires OpenTelemetry tracing and metrics and the Server-Timing header
// into URI composition. Every feature is optional; an unconfigured Config uses no-op providers.
package observability

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const (
	// DefaultServiceName is reported when no service name is configured.
	DefaultServiceName = "odata-filter"

	instrumentationName = "github.com/nlstn/go-odata-filter"
)

// Config holds the observability settings and the instruments created from them.
type Config struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	serviceName    string
	serviceVersion string
	logger         *slog.Logger
	serverTiming   bool

	tracer      trace.Tracer
	metrics     *Metrics
	initialized bool
}

// Option configures a Config.
type Option func(*Config)

// WithTracerProvider sets the provider spans are created from.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Config) { c.tracerProvider = tp }
}

// WithMeterProvider sets the provider metric instruments are created from.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Config) { c.meterProvider = mp }
}

// WithServiceName sets the service name reported on spans.
func WithServiceName(name string) Option {
	return func(c *Config) { c.serviceName = name }
}

// WithServiceVersion sets the service version reported on spans.
func WithServiceVersion(version string) Option {
	return func(c *Config) { c.serviceVersion = version }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.logger = logger }
}

// WithServerTiming enables Server-Timing metrics for contexts that carry a timing header.
func WithServerTiming() Option {
	return func(c *Config) { c.serverTiming = true }
}

// NewConfig applies opts over the defaults. Call Initialize before use.
func NewConfig(opts ...Option) *Config {
	c := &Config{serviceName: DefaultServiceName}
	for _, opt := range opts {
		opt(c)
	}
	if c.tracerProvider == nil {
		c.tracerProvider = tracenoop.NewTracerProvider()
	}
	if c.meterProvider == nil {
		c.meterProvider = metricnoop.NewMeterProvider()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Initialize creates the tracer and metric instruments. It is safe to call more than once.
func (c *Config) Initialize() error {
	if c.initialized {
		return nil
	}
	c.tracer = c.tracerProvider.Tracer(instrumentationName, trace.WithInstrumentationVersion(c.serviceVersion))

	metrics, err := newMetrics(c.meterProvider.Meter(instrumentationName))
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}
	c.metrics = metrics
	c.initialized = true

	c.logger.Debug("Observability initialized",
		"service_name", c.serviceName,
		"service_version", c.serviceVersion,
		"server_timing_enabled", c.serverTiming,
	)
	return nil
}

// Tracer returns the tracer; it is a no-op tracer until Initialize has run.
func (c *Config) Tracer() trace.Tracer {
	if c == nil || c.tracer == nil {
		return tracenoop.NewTracerProvider().Tracer(instrumentationName)
	}
	return c.tracer
}

// Metrics returns the metric instruments, or nil before Initialize.
func (c *Config) Metrics() *Metrics {
	if c == nil {
		return nil
	}
	return c.metrics
}

// Logger returns the configured logger.
func (c *Config) Logger() *slog.Logger {
	if c == nil || c.logger == nil {
		return slog.Default()
	}
	return c.logger
}

// ServiceName returns the configured service name.
func (c *Config) ServiceName() string {
	if c == nil {
		return DefaultServiceName
	}
	return c.serviceName
}

// ServiceVersion returns the configured service version.
func (c *Config) ServiceVersion() string {
	if c == nil {
		return ""
	}
	return c.serviceVersion
}

// ServerTimingEnabled reports whether Server-Timing metrics are recorded.
func (c *Config) ServerTimingEnabled() bool {
	return c != nil && c.serverTiming
}
