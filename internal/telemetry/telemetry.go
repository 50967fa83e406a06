package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Telemetry owns the tracer and meter providers for one process.
//
// Exporter failures never stop the process. The failing signal falls back
// to the global no-op provider and the reason shows up in Health.
type Telemetry struct {
	config *Config

	tracerProvider *trace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	logProvider    log.LoggerProvider

	mu       sync.Mutex
	shutdown bool
	reasons  []string
}

// Option overrides exporters, mainly for tests.
type Option func(*options)

type options struct {
	spanExporter   trace.SpanExporter
	metricExporter sdkmetric.Exporter
}

// WithSpanExporter replaces the OTLP span exporter.
func WithSpanExporter(exp trace.SpanExporter) Option {
	return func(o *options) { o.spanExporter = exp }
}

// WithMetricExporter replaces the OTLP metric exporter.
func WithMetricExporter(exp sdkmetric.Exporter) Option {
	return func(o *options) { o.metricExporter = exp }
}

// New creates a Telemetry instance and registers its providers globally.
// A disabled config yields a healthy no-op instance.
//
// When enabled, logs are bridged to the global OTel LoggerProvider, so a
// host that registers one with go.opentelemetry.io/otel/log/global
// receives digipin's structured logs.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}

	t := &Telemetry{config: cfg}
	if !cfg.Enabled {
		return t, nil
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	res := newResource(cfg)

	if tp, err := newTracerProvider(ctx, cfg, res, o.spanExporter); err != nil {
		t.degrade("tracer provider: %v", err)
	} else {
		t.tracerProvider = tp
		otel.SetTracerProvider(tp)
	}

	if mp, err := newMeterProvider(ctx, cfg, res, o.metricExporter); err != nil {
		t.degrade("meter provider: %v", err)
	} else if mp != nil {
		t.meterProvider = mp
		otel.SetMeterProvider(mp)
	}

	t.logProvider = global.GetLoggerProvider()

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return t, nil
}

// TracerProvider returns the SDK provider, or the global one when telemetry
// is disabled.
func (t *Telemetry) TracerProvider() oteltrace.TracerProvider {
	if t == nil || t.tracerProvider == nil {
		return otel.GetTracerProvider()
	}
	return t.tracerProvider
}

// MeterProvider returns the SDK provider, or the global one when telemetry
// is disabled.
func (t *Telemetry) MeterProvider() metric.MeterProvider {
	if t == nil || t.meterProvider == nil {
		return otel.GetMeterProvider()
	}
	return t.meterProvider
}

// LoggerProvider returns the provider for the zap OTel bridge, or nil when
// telemetry is disabled.
func (t *Telemetry) LoggerProvider() log.LoggerProvider {
	if t == nil {
		return nil
	}
	return t.logProvider
}

// Shutdown flushes and stops all providers, bounded by the configured
// timeout when ctx has no deadline.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}

	if _, ok := ctx.Deadline(); !ok && t.config != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.ShutdownTimeout.Duration())
		defer cancel()
	}

	var errs []error
	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace provider shutdown: %w", err))
		}
	}
	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	t.mu.Lock()
	t.shutdown = true
	t.mu.Unlock()
	return errors.Join(errs...)
}

// HealthStatus is reported by the daemon's status endpoint.
type HealthStatus struct {
	Healthy  bool     `json:"healthy"`
	Degraded bool     `json:"degraded"`
	Reasons  []string `json:"reasons,omitempty"`
}

// Health reports whether telemetry is running and why it is degraded, if it is.
func (t *Telemetry) Health() HealthStatus {
	if t == nil {
		return HealthStatus{Degraded: true}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return HealthStatus{
		Healthy:  !t.shutdown,
		Degraded: len(t.reasons) > 0,
		Reasons:  append([]string(nil), t.reasons...),
	}
}

// IsEnabled reports whether telemetry is configured on and not shut down.
func (t *Telemetry) IsEnabled() bool {
	if t == nil || t.config == nil {
		return false
	}
	return t.config.Enabled && t.Health().Healthy
}

func (t *Telemetry) degrade(format string, args ...interface{}) {
	t.mu.Lock()
	t.reasons = append(t.reasons, fmt.Sprintf(format, args...))
	t.mu.Unlock()
}
