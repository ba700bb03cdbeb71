// Package prometheus renders goToken engine metrics in the Prometheus text
// exposition format.
//
// [NewPrometheusExporter] accepts a [goToken.Engine] and exposes an
// [http.Handler] that renders every counter and both latency histograms.
// Counter names are gotoken_*_total; histograms are
// gotoken_issue_latency_seconds and gotoken_validate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate engine state.
package prometheus
