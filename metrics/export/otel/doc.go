// Package otel binds goToken engine counters and histograms to OpenTelemetry
// observable instruments.
//
// [NewOTelExporter] registers one Int64ObservableCounter per engine counter,
// a gotoken_rejections_total counter carrying code and reason attributes,
// and for each latency histogram a bucket gauge keyed by le plus a count
// gauge. A single callback reads [goToken.Engine.MetricsSnapshot] on each
// collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
