// Package internal groups the helpers that are private to goToken.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - clientip: REMOTE_ADDR / X-Forwarded-For resolution
//   - flows: pure-function orchestrators for Issue and Validate
//   - logging: zap logger construction for the binaries
//   - rate: Redis-backed per-IP issuance throttle
//   - security: config posture report
//   - server: YAML config, hot reload and the HTTP surface of tokend
//
// # What this package must NOT do
//
//   - Export types that appear in the public goToken API.
//   - Be imported by any package outside the goToken module.
package internal
