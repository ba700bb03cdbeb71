// Package clientip resolves the requester address stamped into and compared
// against a token's ip claim.
//
// Resolution walks a fixed precedence list and returns the first value that
// is non-empty and not the literal "unknown" (any case):
//
//  1. HTTP_CLIENT_IP
//  2. HTTP_X_FORWARDED_FOR
//  3. REMOTE_ADDR (server variable)
//  4. the connection peer address
//
// Values are used verbatim. A forwarded-for list is not split; the whole
// header must match between issuance and validation.
//
// # What this package must NOT do
//
//   - Trust or rank proxies.
//   - Normalize addresses beyond trimming surrounding whitespace.
package clientip

import "strings"

// Server variable names consulted in order.
const (
	VarClientIP     = "HTTP_CLIENT_IP"
	VarForwardedFor = "HTTP_X_FORWARDED_FOR"
	VarRemoteAddr   = "REMOTE_ADDR"
)

// Source exposes the two places an address can come from.
type Source interface {
	// Var returns a CGI-style server variable, or "" when unset.
	Var(name string) string
	// RemoteAddr returns the connection peer address, or "".
	RemoteAddr() string
}

var precedence = [...]string{VarClientIP, VarForwardedFor, VarRemoteAddr}

// Resolve returns the requester address, or "" when no source qualifies.
func Resolve(src Source) string {
	if src == nil {
		return ""
	}
	for _, name := range precedence {
		if v, ok := usable(src.Var(name)); ok {
			return v
		}
	}
	if v, ok := usable(src.RemoteAddr()); ok {
		return v
	}
	return ""
}

func usable(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, "unknown") {
		return "", false
	}
	return v, true
}
