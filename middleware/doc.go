// Package middleware adapts goToken.Engine validation to net/http.
//
// # Handlers
//
//   - [RequestTime] stamps the request start time so issued tokens carry it as iat.
//   - [Guard] validates a bearer token against the request it arrives on.
//   - [RequireAudience] is Guard with an expected audience.
//
// A guarded handler reads the accepted token with [ResultFromContext] or
// decodes its payload with [PayloadFromContext].
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement token logic itself; every decision is delegated to Engine.Validate.
//
// # What this package must NOT do
//
//   - Decrypt or build tokens directly.
//   - Access Redis.
//   - Make authorization decisions beyond pass/reject from Engine.Validate.
package middleware
