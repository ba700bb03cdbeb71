package keys

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lestrrat-go/jwx/jwa"
	"github.com/lestrrat-go/jwx/jwk"
)

// ErrNotSymmetric is returned when a JWK does not hold an "oct" key.
var ErrNotSymmetric = errors.New("jwk is not a symmetric key")

// FromJWK parses a JSON Web Key of type "oct" and returns the raw key bytes
// and its kid (empty when unset).
func FromJWK(data []byte) ([]byte, string, error) {
	key, err := jwk.ParseKey(data)
	if err != nil {
		return nil, "", fmt.Errorf("parse jwk: %w", err)
	}
	if key.KeyType() != jwa.OctetSeq {
		return nil, "", ErrNotSymmetric
	}

	var raw []byte
	if err := key.Raw(&raw); err != nil {
		return nil, "", fmt.Errorf("extract jwk key: %w", err)
	}
	if len(raw) != KeySize {
		return nil, "", fmt.Errorf("jwk key must be %d bytes, got %d", KeySize, len(raw))
	}

	return raw, key.KeyID(), nil
}

// ToJWK encodes raw as an "oct" JSON Web Key. kid defaults to [Fingerprint].
func ToJWK(raw []byte, kid string) ([]byte, error) {
	if len(raw) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(raw))
	}

	key, err := jwk.New(raw)
	if err != nil {
		return nil, fmt.Errorf("build jwk: %w", err)
	}
	if kid == "" {
		kid = Fingerprint(raw)
	}
	if err := key.Set(jwk.KeyIDKey, kid); err != nil {
		return nil, fmt.Errorf("set jwk kid: %w", err)
	}

	return json.Marshal(key)
}

// Fingerprint returns a short stable identifier for raw. It is safe to log.
func Fingerprint(raw []byte) string {
	sum := sha256.Sum256(raw)
	return base64.RawURLEncoding.EncodeToString(sum[:8])
}
