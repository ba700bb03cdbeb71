package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/goToken/claims"
)

// Deps groups flow dependency sets. Root engine builds this once and delegates
// request methods to the matching flow implementation.
type Deps struct {
	Issue    IssueDeps
	Validate ValidateDeps
}

// Request is the request-derived input to materialization. StartTime is the
// zero time when the transport did not record one.
type Request struct {
	Host      string
	StartTime time.Time
	IP        string
}

// Overrides carries the per-call claim overrides. HasTTL distinguishes an
// explicit zero or negative expiry from "use the default".
type Overrides struct {
	TTLSeconds int64
	HasTTL     bool
	Audience   string
	Subject    string
}

// Encrypter is the issuance half of a cipher.
type Encrypter interface {
	Encrypt(cs claims.ClaimSet) (string, error)
}

// Decrypter is the validation half of a cipher.
type Decrypter interface {
	Decrypt(token string) (claims.ClaimSet, error)
}

// IssueLimiter throttles issuance per resolved address.
type IssueLimiter interface {
	CheckIssue(ctx context.Context, ip string) error
}
