package flows

import (
	"time"

	"github.com/MrEthical07/goToken/claims"
)

// ValidateFailureKind classifies validation failures for root-level mapping.
// The order of the constants after Decode matches the order the checks run.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureDecode
	ValidateFailureAudience
	ValidateFailureIssuer
	ValidateFailureExpired
	ValidateFailureIP
)

// String returns a stable lowercase label used in logs and audit events.
func (k ValidateFailureKind) String() string {
	switch k {
	case ValidateFailureNone:
		return "none"
	case ValidateFailureDecode:
		return "decode"
	case ValidateFailureAudience:
		return "audience"
	case ValidateFailureIssuer:
		return "issuer"
	case ValidateFailureExpired:
		return "expired"
	case ValidateFailureIP:
		return "ip"
	default:
		return "unknown"
	}
}

// ValidateResult returns either the decrypted claims or a classified failure.
// Expected is always populated so callers can report the comparison context.
type ValidateResult struct {
	Failure  ValidateFailureKind
	Err      error
	Claims   claims.ClaimSet
	Expected claims.ClaimSet
}

// ValidateDeps captures validation dependencies.
type ValidateDeps struct {
	Cipher     Decrypter
	Now        func() time.Time
	DefaultTTL time.Duration
}

// RunValidate decrypts token and checks it against the current request.
//
// Checks run in a fixed order and the first failure wins: decode, audience,
// issuer, expiry, IP. Expiry rejects when iat+DefaultTTL or exp is strictly
// before now, so a longer exp stamped at issuance never outlives the default
// ceiling. A decode failure never exposes any part of the token.
func RunValidate(token string, req Request, o Overrides, deps ValidateDeps) ValidateResult {
	expected := Materialize(req, o, deps.Now, deps.DefaultTTL)

	got, err := deps.Cipher.Decrypt(token)
	if err != nil {
		return ValidateResult{Failure: ValidateFailureDecode, Err: err, Expected: expected}
	}

	fail := func(kind ValidateFailureKind) ValidateResult {
		return ValidateResult{Failure: kind, Claims: got.WithoutPayload(), Expected: expected}
	}

	if got.Audience != "" && got.Audience != expected.Audience {
		return fail(ValidateFailureAudience)
	}
	if got.Issuer != expected.Issuer {
		return fail(ValidateFailureIssuer)
	}
	if Expired(got, deps.Now(), deps.DefaultTTL) {
		return fail(ValidateFailureExpired)
	}
	if got.IP != expected.IP {
		return fail(ValidateFailureIP)
	}

	return ValidateResult{Claims: got, Expected: expected}
}

// Expired reports whether cs is past iat+defaultTTL or past exp at now.
// Both bounds are strict: a token is still live in the second it expires.
func Expired(cs claims.ClaimSet, now time.Time, defaultTTL time.Duration) bool {
	t := now.Unix()
	ceiling := int64(defaultTTL / time.Second)
	return cs.IssuedAt+ceiling < t || cs.ExpiresAt < t
}
