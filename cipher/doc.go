// Package cipher provides the authenticated-encryption providers that turn a
// claims.ClaimSet into an opaque token string and back.
//
// # Providers
//
//   - [MethodSealed]: the ClaimSet is signed as an HS256 JWT, then sealed with
//     XChaCha20-Poly1305. Token form: <kid>.<base64url(nonce || ciphertext)>.
//   - [MethodJWE]: the ClaimSet is encrypted as a compact JWE using direct
//     key agreement and A256GCM.
//
// Both providers derive purpose-bound subkeys from one 32-byte master key and
// accept retired keys in VerifyKeys so tokens survive a key rotation.
//
// # Failure contract
//
// Every decryption failure (wrong key, tampering, truncated input, malformed
// JSON) is reported as [ErrDecode]. A Decrypt call never returns a partially
// populated ClaimSet alongside an error.
//
// # What this package must NOT do
//
//   - Validate claims (issuer, expiry, audience, IP); that is policy.
//   - Read the clock or the request.
//   - Import goToken or any internal package.
package cipher
