// Package security builds the engine security report from resolved settings.
//
// # What this package must NOT do
//
//   - Read or expose key material.
//   - Import goToken.
package security
