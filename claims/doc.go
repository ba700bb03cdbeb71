// Package claims defines the ClaimSet carried inside every goToken ciphertext
// and the derivations shared by issuance and validation.
//
// # Wire format
//
// A ClaimSet serializes as a JSON object with fields in the fixed order
// iss, iat, exp, aud, sub, key, ip, param. Every field except param is
// omitted when empty; param is always present once a payload is attached.
//
// # Architecture boundaries
//
// This package owns the claim structure only. Policy (which checks run and
// in which order) belongs to internal/flows, and confidentiality belongs to
// the cipher package.
//
// # What this package must NOT do
//
//   - Encrypt, sign, or decrypt anything.
//   - Read the clock or the request context.
//   - Import goToken or any internal package.
package claims
