// Package goToken issues and validates encrypted session tokens that bind a
// caller payload to the request that asked for it: the serving host, the
// issuance time, an expiry and the client IP.
//
// An [Engine] is built once and shared. Per request, call [Engine.ForRequest]
// with a [RequestSource] and chain the claim overrides:
//
//	m := engine.ForRequest(goToken.HTTPRequest(r)).WithAudience("public_admin")
//	tok, err := m.Issue(ctx, payload)
//	res, err := m.Validate(ctx, tok)
//
// Validation runs a fixed sequence and the first failure wins: decrypt
// ([ErrInvalidToken]), audience ([ErrInvalidAudience]), issuer host
// ([ErrInvalidIssuer]), expiry ([ErrExpiredToken]) and client IP
// ([ErrInvalidIP]). Rejections are *[Rejection] values carrying the numeric
// codes 41000 to 41004; use [CodeOf] or errors.Is to branch on them.
//
// Expiry is checked twice: against the token's own exp and against
// iat + Token.DefaultTTL, so a longer exp stamped at issuance cannot
// outlive the engine default. Both comparisons are strict (exp < now).
//
// # Architecture boundaries
//
// goToken is the public surface. It exposes [Engine], [Builder], [Config],
// [Manager], [Options] and value types. Claim materialization and the check
// sequence live in internal/flows; IP resolution in internal/clientip; the
// issuance throttle in internal/rate; audit dispatch in internal/audit.
//
// # What this package must NOT do
//
//   - Store tokens or keep per-token state. Expiry is the only revocation.
//   - Share mutable override state across requests.
//   - Import any sub-package that re-imports goToken (no import cycles).
//
// # Performance contract
//
// Validate makes no network round-trips. Issue makes at most one Redis
// round-trip pair (INCR, EXPIRE) when the issuance throttle is enabled.
package goToken
