package cipher

import (
	"encoding/json"
	"fmt"

	"github.com/MrEthical07/goToken/claims"
	"github.com/lestrrat-go/jwx/jwa"
	"github.com/lestrrat-go/jwx/jwe"
)

// JWE encrypts a ClaimSet as a compact JWE with direct key agreement and
// A256GCM content encryption. Retired keys are tried in kid order after the
// active key.
//
// JWE instances are immutable and safe for concurrent use.
type JWE struct {
	keys *keyring
	ceks map[string][]byte
}

// NewJWE validates cfg and derives per-key content encryption keys.
func NewJWE(cfg Config) (*JWE, error) {
	kr, err := newKeyring(cfg)
	if err != nil {
		return nil, err
	}

	j := &JWE{
		keys: kr,
		ceks: make(map[string][]byte, len(kr.byKID)),
	}
	for _, entry := range kr.all() {
		cek, err := subkey(entry.master, "jwe/cek/v1")
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrKey, err)
		}
		j.ceks[entry.kid] = cek
	}

	return j, nil
}

// Method returns MethodJWE.
func (j *JWE) Method() Method {
	return MethodJWE
}

// KeyID returns the kid of the active key.
func (j *JWE) KeyID() string {
	return j.keys.active.kid
}

// Encrypt serializes cs and encrypts it with the active key.
func (j *JWE) Encrypt(cs claims.ClaimSet) (string, error) {
	plain, err := json.Marshal(cs)
	if err != nil {
		return "", fmt.Errorf("encode claims: %w", err)
	}

	out, err := jwe.Encrypt(plain, jwa.DIRECT, j.ceks[j.keys.active.kid], jwa.A256GCM, jwa.NoCompress)
	if err != nil {
		return "", fmt.Errorf("encrypt claims: %w", err)
	}

	return string(out), nil
}

// Decrypt tries the active key, then each retired key. Any failure yields ErrDecode.
func (j *JWE) Decrypt(token string) (claims.ClaimSet, error) {
	if token == "" || len(token) > MaxTokenLength {
		return claims.ClaimSet{}, ErrDecode
	}

	for _, entry := range j.keys.all() {
		plain, err := jwe.Decrypt([]byte(token), jwa.DIRECT, j.ceks[entry.kid])
		if err != nil {
			continue
		}
		return decodeClaims(plain)
	}

	return claims.ClaimSet{}, ErrDecode
}
