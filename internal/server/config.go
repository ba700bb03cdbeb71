package server

import (
	"encoding/base64"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/cipher"
	"gopkg.in/yaml.v2"
)

// FileConfig is the YAML document read by tokend.
type FileConfig struct {
	Listen     string          `yaml:"listen"`
	Redis      RedisConfig     `yaml:"redis"`
	Token      TokenConfig     `yaml:"token"`
	Cipher     CipherConfig    `yaml:"cipher"`
	RateLimit  RateLimitConfig `yaml:"rateLimit"`
	Audit      AuditConfig     `yaml:"audit"`
	Metrics    MetricsConfig   `yaml:"metrics"`
	Production bool            `yaml:"production"`
}

type RedisConfig struct {
	Addr     Secret `yaml:"addr"`
	Password Secret `yaml:"password"`
	DB       int    `yaml:"db"`
}

type TokenConfig struct {
	DefaultTTL      Duration `yaml:"defaultTTL"`
	MaxPayloadBytes int      `yaml:"maxPayloadBytes"`
}

// CipherConfig holds exactly one key source. Key and VerifyKeys values are
// base64 (standard or URL alphabet, padding optional).
type CipherConfig struct {
	Method        string            `yaml:"method"`
	Key           Secret            `yaml:"key"`
	Passphrase    Secret            `yaml:"passphrase"`
	KeyDescriptor string            `yaml:"keyDescriptor"`
	JWKFile       string            `yaml:"jwkFile"`
	KeyID         string            `yaml:"keyID"`
	VerifyKeys    map[string]Secret `yaml:"verifyKeys"`
}

type RateLimitConfig struct {
	Enabled           bool     `yaml:"enabled"`
	MaxIssues         int      `yaml:"maxIssues"`
	Window            Duration `yaml:"window"`
	ThrottleAnonymous bool     `yaml:"throttleAnonymous"`
	RedisPrefix       string   `yaml:"redisPrefix"`
}

type AuditConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"bufferSize"`
	DropIfFull bool `yaml:"dropIfFull"`
}

type MetricsConfig struct {
	Enabled           bool `yaml:"enabled"`
	LatencyHistograms bool `yaml:"latencyHistograms"`
}

// Duration decodes Go duration strings such as "2h" or "90s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("error parsing duration %q: %v", raw, err)
	}

	*d = Duration(parsed)
	return nil
}

// Secret is a string that may reference the environment as ${NAME}, so key
// material can stay out of the file.
type Secret string

var envRefPattern = regexp.MustCompile(`^\$\{([^}]+)\}$`)

func (s *Secret) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}

	if matches := envRefPattern.FindStringSubmatch(raw); len(matches) > 1 {
		value, ok := os.LookupEnv(matches[1])
		if !ok {
			return fmt.Errorf("environment variable %s not set", matches[1])
		}
		raw = value
	}

	*s = Secret(raw)
	return nil
}

// DefaultFileConfig mirrors goToken.DefaultConfig.
func DefaultFileConfig() FileConfig {
	def := goToken.DefaultConfig()
	return FileConfig{
		Listen: ":8080",
		Token: TokenConfig{
			DefaultTTL:      Duration(def.Token.DefaultTTL),
			MaxPayloadBytes: def.Token.MaxPayloadBytes,
		},
		Cipher: CipherConfig{
			Method: string(def.Cipher.Method),
		},
		RateLimit: RateLimitConfig{
			Enabled:           def.RateLimit.Enabled,
			MaxIssues:         def.RateLimit.MaxIssues,
			Window:            Duration(def.RateLimit.Window),
			ThrottleAnonymous: def.RateLimit.ThrottleAnonymous,
			RedisPrefix:       def.RateLimit.RedisPrefix,
		},
		Audit: AuditConfig{
			Enabled:    def.Audit.Enabled,
			BufferSize: def.Audit.BufferSize,
			DropIfFull: def.Audit.DropIfFull,
		},
	}
}

// LoadConfig reads path over the defaults. Fields absent from the file keep
// their default values.
func LoadConfig(path string) (FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML document over the defaults.
func ParseConfig(data []byte) (FileConfig, error) {
	fc := DefaultFileConfig()
	if err := yaml.UnmarshalStrict(data, &fc); err != nil {
		return FileConfig{}, fmt.Errorf("parse config: %w", err)
	}
	return fc, nil
}

// EngineConfig converts the file into a validated engine configuration.
func (fc FileConfig) EngineConfig() (goToken.Config, error) {
	cfg := goToken.DefaultConfig()

	cfg.Token.DefaultTTL = time.Duration(fc.Token.DefaultTTL)
	cfg.Token.MaxPayloadBytes = fc.Token.MaxPayloadBytes

	cfg.Cipher.Method = cipher.Method(fc.Cipher.Method)
	cfg.Cipher.KeyID = fc.Cipher.KeyID
	if fc.Cipher.Key != "" {
		key, err := decodeKey(string(fc.Cipher.Key))
		if err != nil {
			return goToken.Config{}, fmt.Errorf("cipher key: %w", err)
		}
		cfg.Cipher.Key = key
	}
	cfg.Cipher.Passphrase = string(fc.Cipher.Passphrase)
	cfg.Cipher.KeyDescriptor = fc.Cipher.KeyDescriptor
	if fc.Cipher.JWKFile != "" {
		jwk, err := os.ReadFile(fc.Cipher.JWKFile)
		if err != nil {
			return goToken.Config{}, fmt.Errorf("read jwk: %w", err)
		}
		cfg.Cipher.JWK = jwk
	}
	if len(fc.Cipher.VerifyKeys) > 0 {
		cfg.Cipher.VerifyKeys = make(map[string][]byte, len(fc.Cipher.VerifyKeys))
		for kid, raw := range fc.Cipher.VerifyKeys {
			key, err := decodeKey(string(raw))
			if err != nil {
				return goToken.Config{}, fmt.Errorf("verify key %q: %w", kid, err)
			}
			cfg.Cipher.VerifyKeys[kid] = key
		}
	}

	cfg.RateLimit = goToken.RateLimitConfig{
		Enabled:           fc.RateLimit.Enabled,
		MaxIssues:         fc.RateLimit.MaxIssues,
		Window:            time.Duration(fc.RateLimit.Window),
		ThrottleAnonymous: fc.RateLimit.ThrottleAnonymous,
		RedisPrefix:       fc.RateLimit.RedisPrefix,
	}
	cfg.Audit = goToken.AuditConfig{
		Enabled:    fc.Audit.Enabled,
		BufferSize: fc.Audit.BufferSize,
		DropIfFull: fc.Audit.DropIfFull,
	}
	cfg.Metrics = goToken.MetricsConfig{
		Enabled:                 fc.Metrics.Enabled,
		EnableLatencyHistograms: fc.Metrics.LatencyHistograms,
	}
	cfg.Security.ProductionMode = fc.Production

	if err := cfg.Validate(); err != nil {
		return goToken.Config{}, err
	}
	return cfg, nil
}

func decodeKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if key, err := enc.DecodeString(s); err == nil {
			return key, nil
		}
	}
	return nil, fmt.Errorf("key is not valid base64")
}
