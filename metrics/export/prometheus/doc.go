// Package prometheus exposes authcore engine metrics through
// client_golang.
//
// [NewPrometheusExporter] wraps an [authcore.Engine] in a
// [prometheus.Collector] registered on a private registry, and Handler
// serves that registry. Counters are named authcore_*_total; the latency
// histograms are authcore_*_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry.
//   - Mutate engine state.
package prometheus
