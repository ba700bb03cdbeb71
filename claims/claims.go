package claims

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is the lifetime applied when no expiry override is configured.
const DefaultTTL = 7200 * time.Second

const (
	keyIDOffset = 6
	keyIDLength = 5
)

// ClaimSet is the logical content of a token.
//
// ClaimSet values are built fresh for every issue or validate call and are
// never mutated after encryption.
type ClaimSet struct {
	Issuer    string          `json:"iss,omitempty"`
	IssuedAt  int64           `json:"iat,omitempty"`
	ExpiresAt int64           `json:"exp,omitempty"`
	Audience  string          `json:"aud,omitempty"`
	Subject   string          `json:"sub,omitempty"`
	KeyID     string          `json:"key,omitempty"`
	IP        string          `json:"ip,omitempty"`
	Payload   json.RawMessage `json:"param"`
}

// DeriveKeyID returns the short correlation tag for an issuance time: five
// hex characters starting at offset 6 of the MD5 digest of the decimal iat.
// The tag is not unique and carries no key material.
func DeriveKeyID(issuedAt int64) string {
	sum := md5.Sum([]byte(strconv.FormatInt(issuedAt, 10)))
	digest := hex.EncodeToString(sum[:])
	return digest[keyIDOffset : keyIDOffset+keyIDLength]
}

// ExpiresAtTime returns exp as a time. The zero time is returned when exp is absent.
func (c ClaimSet) ExpiresAtTime() time.Time {
	if c.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(c.ExpiresAt, 0)
}

// IssuedAtTime returns iat as a time. The zero time is returned when iat is absent.
func (c ClaimSet) IssuedAtTime() time.Time {
	if c.IssuedAt == 0 {
		return time.Time{}
	}
	return time.Unix(c.IssuedAt, 0)
}

// WithoutPayload returns a copy with the payload dropped.
func (c ClaimSet) WithoutPayload() ClaimSet {
	c.Payload = nil
	return c
}

// The methods below satisfy jwt.Claims so a ClaimSet can be signed and parsed
// by golang-jwt directly. Registered-claim validation is left to the caller.

func (c ClaimSet) GetExpirationTime() (*jwt.NumericDate, error) {
	if c.ExpiresAt == 0 {
		return nil, nil
	}
	return jwt.NewNumericDate(time.Unix(c.ExpiresAt, 0)), nil
}

func (c ClaimSet) GetIssuedAt() (*jwt.NumericDate, error) {
	if c.IssuedAt == 0 {
		return nil, nil
	}
	return jwt.NewNumericDate(time.Unix(c.IssuedAt, 0)), nil
}

func (c ClaimSet) GetNotBefore() (*jwt.NumericDate, error) {
	return nil, nil
}

func (c ClaimSet) GetIssuer() (string, error) {
	return c.Issuer, nil
}

func (c ClaimSet) GetSubject() (string, error) {
	return c.Subject, nil
}

func (c ClaimSet) GetAudience() (jwt.ClaimStrings, error) {
	if c.Audience == "" {
		return nil, nil
	}
	return jwt.ClaimStrings{c.Audience}, nil
}
