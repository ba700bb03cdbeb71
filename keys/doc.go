// Package keys produces the symmetric key material consumed by the cipher
// package.
//
// # Sources
//
//   - [Generate] returns 32 random bytes.
//   - [Argon2.Derive] stretches an operator passphrase with Argon2id. The
//     parameters and salt travel as a PHC-style descriptor:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>
//
//   - [FromJWK] / [ToJWK] import and export an "oct" JSON Web Key.
//
// # What this package must NOT do
//
//   - Persist keys or passphrases.
//   - Log key material or descriptor salts at runtime.
//   - Import any other goToken package.
package keys
