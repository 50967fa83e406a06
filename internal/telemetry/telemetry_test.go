package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNew_Disabled(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig())
	require.NoError(t, err)

	assert.NotNil(t, tel.TracerProvider())
	assert.NotNil(t, tel.MeterProvider())
	assert.Nil(t, tel.LoggerProvider())
	assert.False(t, tel.IsEnabled())

	health := tel.Health()
	assert.True(t, health.Healthy)
	assert.False(t, health.Degraded)
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNew_InvalidConfig(t *testing.T) {
	tel, err := New(context.Background(), &Config{Enabled: true})
	require.Error(t, err)
	assert.Nil(t, tel)
	assert.Contains(t, err.Error(), "invalid telemetry config")
}

func TestNew_WithInMemoryExporter(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.MetricsEnabled = false

	exporter := tracetest.NewInMemoryExporter()
	tel, err := New(context.Background(), cfg, WithSpanExporter(exporter))
	require.NoError(t, err)
	assert.True(t, tel.IsEnabled())
	assert.NotNil(t, tel.LoggerProvider())

	_, span := tel.TracerProvider().Tracer("digipin").Start(context.Background(), "conversion.encode")
	span.End()

	require.NoError(t, tel.Shutdown(context.Background()))
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "conversion.encode", spans[0].Name)

	assert.False(t, tel.IsEnabled(), "shut down telemetry is not enabled")
	assert.False(t, tel.Health().Healthy)
}

func TestTelemetry_NilSafe(t *testing.T) {
	var tel *Telemetry

	assert.NotPanics(t, func() {
		_ = tel.TracerProvider()
		_ = tel.MeterProvider()
		_ = tel.LoggerProvider()
		_ = tel.IsEnabled()
		_ = tel.Shutdown(context.Background())
	})

	health := tel.Health()
	assert.False(t, health.Healthy)
	assert.True(t, health.Degraded)
}

func TestTelemetry_Degrade(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig())
	require.NoError(t, err)

	tel.degrade("exporter: %s", "unreachable")

	health := tel.Health()
	assert.True(t, health.Healthy)
	assert.True(t, health.Degraded)
	assert.Equal(t, []string{"exporter: unreachable"}, health.Reasons)
}

func TestTestTelemetry(t *testing.T) {
	tel := NewTestTelemetry()
	ctx := context.Background()

	_, span := tel.TracerProvider().Tracer("test").Start(ctx, "history.append")
	span.SetAttributes(attribute.String("kind", "decode"))
	span.End()

	tel.AssertSpanExists(t, "history.append")
	tel.AssertSpanAttribute(t, "history.append", "kind", "decode")

	counter, err := tel.MeterProvider().Meter("test").Int64Counter("digipin.test.count")
	require.NoError(t, err)
	counter.Add(ctx, 2, metric.WithAttributes(attribute.String("result", "ok")))
	counter.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "error")))

	assert.Equal(t, int64(3), tel.CounterValue(t, "digipin.test.count"))
	assert.Equal(t, int64(2), tel.CounterValue(t, "digipin.test.count", attribute.String("result", "ok")))
}
