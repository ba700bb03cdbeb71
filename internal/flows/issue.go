package flows

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MrEthical07/goToken/claims"
)

// IssueFailureKind classifies issuance failures for root-level mapping.
type IssueFailureKind int

const (
	IssueFailureNone IssueFailureKind = iota
	IssueFailureRateLimited
	IssueFailureEncrypt
	IssueFailureTooLarge
)

// IssueResult carries the token and the claims it seals, or a classified failure.
type IssueResult struct {
	Failure IssueFailureKind
	Err     error
	Token   string
	Claims  claims.ClaimSet
}

// IssueDeps captures issuance dependencies. Limiter is optional.
type IssueDeps struct {
	Cipher     Encrypter
	Limiter    IssueLimiter
	Now        func() time.Time
	DefaultTTL time.Duration
	// MaxTokenLength is the longest ciphertext Decrypt accepts. Zero disables
	// the check.
	MaxTokenLength int
}

// RunIssue materializes claims, attaches payload and encrypts the result.
// payload must already be valid JSON; nil encodes as null.
func RunIssue(ctx context.Context, req Request, o Overrides, payload json.RawMessage, deps IssueDeps) IssueResult {
	if deps.Limiter != nil {
		if err := deps.Limiter.CheckIssue(ctx, req.IP); err != nil {
			return IssueResult{Failure: IssueFailureRateLimited, Err: err}
		}
	}

	cs := Materialize(req, o, deps.Now, deps.DefaultTTL)
	cs.Payload = payload

	token, err := deps.Cipher.Encrypt(cs)
	if err != nil {
		return IssueResult{Failure: IssueFailureEncrypt, Err: err}
	}
	// JSON escaping of the claim set can grow the payload several times over,
	// so the bound is enforced on the sealed output.
	if deps.MaxTokenLength > 0 && len(token) > deps.MaxTokenLength {
		return IssueResult{
			Failure: IssueFailureTooLarge,
			Err:     fmt.Errorf("token is %d bytes, limit %d", len(token), deps.MaxTokenLength),
		}
	}

	return IssueResult{Token: token, Claims: cs}
}
