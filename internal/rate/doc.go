// Package rate provides the Redis-backed issuance throttle.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Keys are
// <prefix>:iss:<ip>, with "-" standing in for requests without an address.
//
// # What this package must NOT do
//
//   - Throttle validation. Validation stays a pure decision.
//   - Be imported outside the goToken module.
package rate
