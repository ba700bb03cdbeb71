package flows

import (
	"time"

	"github.com/MrEthical07/goToken/claims"
)

// Materialize builds the default ClaimSet for one issue or validate call.
//
// iat is the request start time when present, else now(). exp is iat plus
// the override TTL when one was set, else iat plus defaultTTL. Unset fields
// stay at their zero value and are omitted on the wire.
func Materialize(req Request, o Overrides, now func() time.Time, defaultTTL time.Duration) claims.ClaimSet {
	issued := req.StartTime
	if issued.IsZero() {
		issued = now()
	}
	iat := issued.Unix()

	ttl := int64(defaultTTL / time.Second)
	if o.HasTTL {
		ttl = o.TTLSeconds
	}

	return claims.ClaimSet{
		Issuer:    req.Host,
		IssuedAt:  iat,
		ExpiresAt: iat + ttl,
		Audience:  o.Audience,
		Subject:   o.Subject,
		KeyID:     claims.DeriveKeyID(iat),
		IP:        req.IP,
	}
}
