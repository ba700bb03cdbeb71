package keys

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength         = 16
	minPassBytes          = 12
	algorithmID           = "argon2id"

	// KeySize is the length of every key produced by this package.
	KeySize = 32
)

// Config holds Argon2id cost parameters.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
}

// DefaultConfig returns the cost parameters used when none are configured.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
	}
}

// Argon2 derives fixed-size keys from passphrases.
//
// Argon2 instances are immutable and safe for concurrent use.
type Argon2 struct {
	config Config
}

// NewArgon2 validates cfg and returns a deriver.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return &Argon2{config: cfg}, nil
}

// NewDescriptor draws a fresh salt and returns a descriptor that pins the
// receiver's parameters. Persist the descriptor next to the passphrase
// reference so the same key can be derived again.
func (a *Argon2) NewDescriptor() (string, error) {
	salt := make([]byte, a.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	return encodeDescriptor(a.config, salt), nil
}

// Derive stretches passphrase with the parameters and salt in descriptor.
func (a *Argon2) Derive(passphrase, descriptor string) ([]byte, error) {
	// Passphrases are used as raw bytes (no Unicode normalization).
	if len(passphrase) < minPassBytes {
		return nil, fmt.Errorf("passphrase must be at least %d bytes", minPassBytes)
	}

	parsed, err := parseDescriptor(descriptor)
	if err != nil {
		return nil, err
	}

	return argon2.IDKey(
		[]byte(passphrase),
		parsed.salt,
		parsed.time,
		parsed.memory,
		parsed.parallelism,
		KeySize,
	), nil
}

// NeedsUpgrade reports whether descriptor was produced with weaker
// parameters than the receiver's.
func (a *Argon2) NeedsUpgrade(descriptor string) (bool, error) {
	parsed, err := parseDescriptor(descriptor)
	if err != nil {
		return false, err
	}

	if a.config.Memory > parsed.memory {
		return true, nil
	}
	if a.config.Time > parsed.time {
		return true, nil
	}
	if a.config.Parallelism > parsed.parallelism {
		return true, nil
	}

	return false, nil
}

// Generate returns KeySize random bytes.
func Generate() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

type parsedDescriptor struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
}

func encodeDescriptor(cfg Config, salt []byte) string {
	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s",
		algorithmID,
		argon2.Version,
		cfg.Memory,
		cfg.Time,
		cfg.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
	)
}

func parseDescriptor(descriptor string) (*parsedDescriptor, error) {
	parts := strings.Split(descriptor, "$")
	if len(parts) != 5 || parts[0] != "" {
		return nil, errors.New("invalid key descriptor format")
	}

	if parts[1] != algorithmID {
		return nil, errors.New("unsupported algorithm")
	}

	versionPart := parts[2]
	if !strings.HasPrefix(versionPart, "v=") {
		return nil, errors.New("missing argon2 version")
	}

	version, err := strconv.Atoi(strings.TrimPrefix(versionPart, "v="))
	if err != nil {
		return nil, errors.New("invalid argon2 version")
	}
	if version != argon2.Version {
		return nil, errors.New("unsupported argon2 version")
	}

	params, err := parseParams(parts[3])
	if err != nil {
		return nil, err
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, errors.New("invalid salt encoding")
	}
	if len(salt) < minSaltLength {
		return nil, errors.New("invalid salt length")
	}

	return &parsedDescriptor{
		memory:      params.memory,
		time:        params.time,
		parallelism: params.parallelism,
		salt:        salt,
	}, nil
}

type parsedParams struct {
	memory      uint32
	time        uint32
	parallelism uint8
}

func parseParams(part string) (*parsedParams, error) {
	pairs := strings.Split(part, ",")
	if len(pairs) != 3 {
		return nil, errors.New("invalid parameter format")
	}

	var (
		memorySet, timeSet, parallelismSet bool
		params                             parsedParams
	)

	for _, pair := range pairs {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, errors.New("invalid parameter entry")
		}

		switch kv[0] {
		case "m":
			v, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil || v < uint64(minMemoryKB) {
				return nil, errors.New("invalid memory parameter")
			}
			params.memory = uint32(v)
			memorySet = true
		case "t":
			v, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil || v < uint64(minTimeCost) {
				return nil, errors.New("invalid time parameter")
			}
			params.time = uint32(v)
			timeSet = true
		case "p":
			v, err := strconv.ParseUint(kv[1], 10, 8)
			if err != nil || v < uint64(minParallelism) {
				return nil, errors.New("invalid parallelism parameter")
			}
			params.parallelism = uint8(v)
			parallelismSet = true
		default:
			return nil, errors.New("unsupported parameter")
		}
	}

	if !memorySet || !timeSet || !parallelismSet {
		return nil, errors.New("missing parameters")
	}

	return &params, nil
}

func validateConfig(cfg Config) error {
	if cfg.Memory < minMemoryKB {
		return errors.New("key derivation memory must be >= 8192 KB")
	}
	if cfg.Time < minTimeCost {
		return errors.New("key derivation time must be >= 1")
	}
	if cfg.Parallelism < minParallelism {
		return errors.New("key derivation parallelism must be >= 1")
	}
	if cfg.SaltLength < minSaltLength {
		return errors.New("key derivation salt length must be >= 16")
	}

	return nil
}
