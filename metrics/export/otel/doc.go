// Package otel publishes authcore engine metrics through an OpenTelemetry
// Meter.
//
// [NewOTelExporter] registers an Int64ObservableCounter per engine counter
// and flattens each latency histogram into per-bucket gauges. A single
// callback reads [authcore.Engine.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
