package cipher

import (
	stdcipher "crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/MrEthical07/goToken/claims"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/chacha20poly1305"
)

type sealedMaterial struct {
	aead stdcipher.AEAD
	sig  []byte
}

// Sealed signs a ClaimSet as an HS256 JWT and seals the compact JWT with
// XChaCha20-Poly1305. The kid travels in the clear and is bound to the
// ciphertext as associated data.
//
// Sealed instances are immutable and safe for concurrent use.
type Sealed struct {
	keys     *keyring
	material map[string]sealedMaterial
	parser   *jwt.Parser
}

// NewSealed validates cfg and precomputes per-key subkeys.
func NewSealed(cfg Config) (*Sealed, error) {
	kr, err := newKeyring(cfg)
	if err != nil {
		return nil, err
	}

	s := &Sealed{
		keys:     kr,
		material: make(map[string]sealedMaterial, len(kr.byKID)),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}
	for _, entry := range kr.all() {
		m, err := newSealedMaterial(entry.master)
		if err != nil {
			return nil, err
		}
		s.material[entry.kid] = m
	}

	return s, nil
}

func newSealedMaterial(master []byte) (sealedMaterial, error) {
	encKey, err := subkey(master, "sealed/enc/v1")
	if err != nil {
		return sealedMaterial{}, fmt.Errorf("%w: %v", ErrKey, err)
	}
	sigKey, err := subkey(master, "sealed/sig/v1")
	if err != nil {
		return sealedMaterial{}, fmt.Errorf("%w: %v", ErrKey, err)
	}
	aead, err := chacha20poly1305.NewX(encKey)
	if err != nil {
		return sealedMaterial{}, fmt.Errorf("%w: %v", ErrKey, err)
	}
	return sealedMaterial{aead: aead, sig: sigKey}, nil
}

// Method returns MethodSealed.
func (s *Sealed) Method() Method {
	return MethodSealed
}

// KeyID returns the kid stamped on new tokens.
func (s *Sealed) KeyID() string {
	return s.keys.active.kid
}

// Encrypt signs and seals cs with the active key.
func (s *Sealed) Encrypt(cs claims.ClaimSet) (string, error) {
	kid := s.keys.active.kid
	m := s.material[kid]

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, cs)
	tok.Header["kid"] = kid
	signed, err := tok.SignedString(m.sig)
	if err != nil {
		return "", fmt.Errorf("sign claims: %w", err)
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX, chacha20poly1305.NonceSizeX+len(signed)+m.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("draw nonce: %w", err)
	}
	sealed := m.aead.Seal(nonce, nonce, []byte(signed), []byte(kid))

	return kid + "." + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens and verifies token. Any failure yields ErrDecode.
func (s *Sealed) Decrypt(token string) (claims.ClaimSet, error) {
	if token == "" || len(token) > MaxTokenLength {
		return claims.ClaimSet{}, ErrDecode
	}

	kid, body, ok := strings.Cut(token, ".")
	if !ok || kid == "" || body == "" {
		return claims.ClaimSet{}, ErrDecode
	}
	m, ok := s.material[kid]
	if !ok {
		return claims.ClaimSet{}, ErrDecode
	}

	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil || len(raw) < chacha20poly1305.NonceSizeX+m.aead.Overhead() {
		return claims.ClaimSet{}, ErrDecode
	}
	nonce, ciphertext := raw[:chacha20poly1305.NonceSizeX], raw[chacha20poly1305.NonceSizeX:]
	plain, err := m.aead.Open(nil, nonce, ciphertext, []byte(kid))
	if err != nil {
		return claims.ClaimSet{}, ErrDecode
	}

	var cs claims.ClaimSet
	parsed, err := s.parser.ParseWithClaims(string(plain), &cs, func(t *jwt.Token) (interface{}, error) {
		headerKID, _ := t.Header["kid"].(string)
		if headerKID != kid {
			return nil, fmt.Errorf("kid mismatch")
		}
		return m.sig, nil
	})
	if err != nil || !parsed.Valid {
		return claims.ClaimSet{}, ErrDecode
	}

	return cs, nil
}
