// Package telemetry wires OpenTelemetry tracing and metrics for digipin.
//
// Spans cover each conversion (conversion.encode, conversion.decode), and
// each history write. Metrics are exported over OTLP
// (gRPC by default, HTTP/protobuf optional) alongside the Prometheus
// registry served on /metrics.
//
// Telemetry is off by default. Enable it with observability.enable_telemetry
// or DIGIPIN_OBSERVABILITY_ENABLE_TELEMETRY=true.
//
// # Testing
//
//	tel := telemetry.NewTestTelemetry()
//	wf, _ := conversion.New(geocode.New(), store,
//		conversion.WithTracerProvider(tel.TracerProvider()))
//	tel.AssertSpanExists(t, "conversion.encode")
package telemetry
