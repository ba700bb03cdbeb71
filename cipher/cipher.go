package cipher

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/MrEthical07/goToken/claims"
	"github.com/MrEthical07/goToken/keys"
	"golang.org/x/crypto/hkdf"
)

// Method names a cipher provider.
type Method string

const (
	// MethodSealed signs with HS256 and seals with XChaCha20-Poly1305.
	MethodSealed Method = "sealed"
	// MethodJWE encrypts as a compact JWE (dir + A256GCM).
	MethodJWE Method = "jwe"
)

const (
	// KeySize is the required master key length in bytes.
	KeySize = 32
	// MaxTokenLength bounds the input accepted by Decrypt.
	MaxTokenLength = 16 * 1024
)

var (
	// ErrDecode is returned for any ciphertext that cannot be authenticated and parsed.
	ErrDecode = errors.New("token could not be decrypted")
	// ErrKey is returned for missing or malformed key material.
	ErrKey = errors.New("invalid cipher key")
	// ErrUnsupportedMethod is returned by New for unknown methods.
	ErrUnsupportedMethod = errors.New("unsupported cipher method")
)

// Cipher is the authenticated-encryption provider consumed by the token engine.
type Cipher interface {
	Encrypt(cs claims.ClaimSet) (string, error)
	Decrypt(token string) (claims.ClaimSet, error)
	Method() Method
	KeyID() string
}

// Config selects and keys a provider.
type Config struct {
	Method     Method
	Key        []byte
	KeyID      string
	VerifyKeys map[string][]byte
}

// New returns the provider named by cfg.Method.
func New(cfg Config) (Cipher, error) {
	switch cfg.Method {
	case MethodSealed, "":
		return NewSealed(cfg)
	case MethodJWE:
		return NewJWE(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, cfg.Method)
	}
}

type keyEntry struct {
	kid    string
	master []byte
}

// keyring resolves the active key and retired verify keys. kid values are
// restricted so they can travel in the clear inside a token.
type keyring struct {
	active  keyEntry
	retired []keyEntry
	byKID   map[string]keyEntry
}

func newKeyring(cfg Config) (*keyring, error) {
	if len(cfg.Key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", ErrKey, KeySize, len(cfg.Key))
	}

	kid := strings.TrimSpace(cfg.KeyID)
	if kid == "" {
		kid = keys.Fingerprint(cfg.Key)
	}
	if err := validateKID(kid); err != nil {
		return nil, err
	}

	kr := &keyring{
		active: keyEntry{kid: kid, master: cloneBytes(cfg.Key)},
		byKID:  make(map[string]keyEntry, len(cfg.VerifyKeys)+1),
	}
	kr.byKID[kid] = kr.active

	kids := make([]string, 0, len(cfg.VerifyKeys))
	for k := range cfg.VerifyKeys {
		kids = append(kids, k)
	}
	sort.Strings(kids)

	for _, k := range kids {
		key := cfg.VerifyKeys[k]
		if err := validateKID(k); err != nil {
			return nil, err
		}
		if len(key) != KeySize {
			return nil, fmt.Errorf("%w: verify key %q must be %d bytes", ErrKey, k, KeySize)
		}
		if k == kid {
			continue
		}
		entry := keyEntry{kid: k, master: cloneBytes(key)}
		kr.retired = append(kr.retired, entry)
		kr.byKID[k] = entry
	}

	return kr, nil
}

// all returns the active key first, then retired keys in kid order.
func (k *keyring) all() []keyEntry {
	out := make([]keyEntry, 0, len(k.retired)+1)
	out = append(out, k.active)
	return append(out, k.retired...)
}

func validateKID(kid string) error {
	if kid == "" {
		return fmt.Errorf("%w: empty key id", ErrKey)
	}
	if len(kid) > 64 {
		return fmt.Errorf("%w: key id longer than 64 bytes", ErrKey)
	}
	for _, r := range kid {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return fmt.Errorf("%w: key id %q contains %q", ErrKey, kid, r)
		}
	}
	return nil
}

// subkey derives a purpose-bound key from master with HKDF-SHA256.
func subkey(master []byte, purpose string) ([]byte, error) {
	out := make([]byte, KeySize)
	r := hkdf.New(sha256.New, master, nil, []byte("goToken/"+purpose))
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeClaims(plaintext []byte) (claims.ClaimSet, error) {
	var cs claims.ClaimSet
	if err := json.Unmarshal(plaintext, &cs); err != nil {
		return claims.ClaimSet{}, ErrDecode
	}
	return cs, nil
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
