// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (Materialize, RunIssue, RunValidate) accepts a typed
// dependency struct and returns results without side-effects beyond those
// dependencies. Engine resolves the request context and options, calls the
// flow, then maps the outcome to public errors, metrics and audit events.
//
// # Architecture boundaries
//
// Flow functions coordinate the cipher, clock and issuance limiter. They do
// NOT own any of these resources; ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goToken (to avoid import cycles).
//   - Log, emit metrics or audit events.
package flows
