// Package telemetry wires tracing and metrics for the engine.
//
// Spans are produced through the global OpenTelemetry tracer provider;
// NewTracerProvider installs one that reports ended spans to the logger.
// Counters and histograms are Prometheus collectors registered on a caller
// supplied registry so the control server can expose them at /metrics.
package telemetry
