package goToken

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goToken/cipher"
	"github.com/MrEthical07/goToken/claims"
	"github.com/MrEthical07/goToken/keys"
)

// Config is the complete engine configuration.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	Token     TokenConfig
	Cipher    CipherConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
	Security  SecurityConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig holds claim defaults.
//
// DefaultTTL is both the lifetime stamped when no expiry override is set and
// the ceiling enforced on iat at validation time.
type TokenConfig struct {
	DefaultTTL      time.Duration
	MaxPayloadBytes int
}

/*
====================================
CIPHER CONFIG
====================================
*/

// CipherConfig selects the cipher provider and its key source. Exactly one of
// Key, Passphrase or JWK must be set.
type CipherConfig struct {
	Method cipher.Method

	// Key is a raw 32-byte master key.
	Key []byte
	// Passphrase is stretched with Argon2id using the salt and cost
	// parameters pinned in KeyDescriptor.
	Passphrase    string
	KeyDescriptor string
	Argon2        keys.Config
	// JWK is a JSON Web Key of type "oct". Its kid is used when KeyID is empty.
	JWK []byte

	KeyID      string
	VerifyKeys map[string][]byte
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig controls the Redis-backed per-IP issuance throttle.
type RateLimitConfig struct {
	Enabled           bool
	MaxIssues         int
	Window            time.Duration
	ThrottleAnonymous bool
	RedisPrefix       string
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds deployment posture switches.
type SecurityConfig struct {
	// ProductionMode tightens Validate: bounded TTL, explicit key id, audit on.
	ProductionMode bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the baseline configuration. A key source must still
// be supplied before Build.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			DefaultTTL:      claims.DefaultTTL,
			MaxPayloadBytes: 8 * 1024,
		},
		Cipher: CipherConfig{
			Method: cipher.MethodSealed,
			Argon2: keys.DefaultConfig(),
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			MaxIssues:         60,
			Window:            time.Minute,
			ThrottleAnonymous: false,
			RedisPrefix:       "gt",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Security: SecurityConfig{
			ProductionMode: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Cipher.Key = cloneBytes(cfg.Cipher.Key)
	out.Cipher.JWK = cloneBytes(cfg.Cipher.JWK)
	if cfg.Cipher.VerifyKeys != nil {
		out.Cipher.VerifyKeys = make(map[string][]byte, len(cfg.Cipher.VerifyKeys))
		for kid, key := range cfg.Cipher.VerifyKeys {
			out.Cipher.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration error. It does not derive keys.
func (c *Config) Validate() error {
	return c.validate(true)
}

// validate skips the key source checks when the caller injects its own cipher.
func (c *Config) validate(requireKey bool) error {
	// Token
	if c.Token.DefaultTTL < time.Second {
		return errors.New("Token DefaultTTL must be >= 1s")
	}
	if c.Token.DefaultTTL%time.Second != 0 {
		return errors.New("Token DefaultTTL must be a whole number of seconds")
	}
	if c.Token.MaxPayloadBytes <= 0 {
		return errors.New("Token MaxPayloadBytes must be > 0")
	}
	if c.Token.MaxPayloadBytes > cipher.MaxTokenLength/2 {
		return fmt.Errorf("Token MaxPayloadBytes must be <= %d", cipher.MaxTokenLength/2)
	}

	// Cipher
	switch c.Cipher.Method {
	case cipher.MethodSealed, cipher.MethodJWE:
		// valid
	default:
		return errors.New("unsupported Cipher Method")
	}

	if requireKey {
		sources := 0
		if len(c.Cipher.Key) > 0 {
			sources++
		}
		if c.Cipher.Passphrase != "" {
			sources++
		}
		if len(c.Cipher.JWK) > 0 {
			sources++
		}
		if sources == 0 {
			return errors.New("Cipher requires one of Key, Passphrase or JWK")
		}
		if sources > 1 {
			return errors.New("Cipher Key, Passphrase and JWK are mutually exclusive")
		}
		if len(c.Cipher.Key) > 0 && len(c.Cipher.Key) != cipher.KeySize {
			return fmt.Errorf("Cipher Key must be %d bytes", cipher.KeySize)
		}
		if c.Cipher.Passphrase != "" && c.Cipher.KeyDescriptor == "" {
			return errors.New("Cipher Passphrase requires KeyDescriptor")
		}
	}
	for kid, key := range c.Cipher.VerifyKeys {
		if kid == "" {
			return errors.New("Cipher VerifyKeys must not contain an empty key id")
		}
		if len(key) != cipher.KeySize {
			return fmt.Errorf("Cipher VerifyKeys[%q] must be %d bytes", kid, cipher.KeySize)
		}
	}

	// Rate limit
	if c.RateLimit.Enabled {
		if c.RateLimit.MaxIssues <= 0 {
			return errors.New("RateLimit MaxIssues must be > 0 when enabled")
		}
		if c.RateLimit.Window <= 0 {
			return errors.New("RateLimit Window must be > 0 when enabled")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	if c.Security.ProductionMode {
		if c.Token.DefaultTTL > 24*time.Hour {
			return errors.New("ProductionMode requires Token DefaultTTL <= 24h")
		}
		if requireKey && c.Cipher.KeyID == "" && len(c.Cipher.JWK) == 0 {
			return errors.New("ProductionMode requires an explicit Cipher KeyID")
		}
		if c.Cipher.Passphrase != "" {
			if c.Cipher.Argon2.Memory < 64*1024 {
				return errors.New("ProductionMode requires Argon2 Memory >= 65536 KB")
			}
			if c.Cipher.Argon2.Time < 2 {
				return errors.New("ProductionMode requires Argon2 Time >= 2")
			}
		}
		if !c.Audit.Enabled {
			return errors.New("ProductionMode requires Audit Enabled")
		}
	}

	return nil
}

// resolveCipher turns the configured key source into a cipher.Config.
func (c *Config) resolveCipher() (cipher.Config, error) {
	out := cipher.Config{
		Method:     c.Cipher.Method,
		KeyID:      c.Cipher.KeyID,
		VerifyKeys: c.Cipher.VerifyKeys,
	}

	switch {
	case len(c.Cipher.Key) > 0:
		out.Key = cloneBytes(c.Cipher.Key)
	case c.Cipher.Passphrase != "":
		deriver, err := keys.NewArgon2(c.Cipher.Argon2)
		if err != nil {
			return cipher.Config{}, fmt.Errorf("argon2 config: %w", err)
		}
		key, err := deriver.Derive(c.Cipher.Passphrase, c.Cipher.KeyDescriptor)
		if err != nil {
			return cipher.Config{}, fmt.Errorf("derive cipher key: %w", err)
		}
		out.Key = key
	case len(c.Cipher.JWK) > 0:
		key, kid, err := keys.FromJWK(c.Cipher.JWK)
		if err != nil {
			return cipher.Config{}, err
		}
		out.Key = key
		if out.KeyID == "" {
			out.KeyID = kid
		}
	default:
		return cipher.Config{}, errors.New("no cipher key source")
	}

	return out, nil
}

// keySource names where the cipher key came from.
func (c *Config) keySource() string {
	switch {
	case len(c.Cipher.Key) > 0:
		return "raw"
	case c.Cipher.Passphrase != "":
		return "passphrase"
	case len(c.Cipher.JWK) > 0:
		return "jwk"
	default:
		return "injected"
	}
}
