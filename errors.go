package goToken

import (
	"errors"
	"fmt"
)

// Code is the numeric rejection code returned by Validate.
type Code int

const (
	CodeInvalidAudience Code = 41000
	CodeInvalidIssuer   Code = 41001
	CodeExpiredToken    Code = 41002
	CodeInvalidIP       Code = 41003
	CodeInvalidToken    Code = 41004
)

// Rejection is a validation verdict. Rejections are values, not faults:
// every one is terminal for the call and carries no payload.
type Rejection struct {
	Code    Code
	Reason  string
	message string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s (%d)", r.message, r.Code)
}

// Is matches any *Rejection with the same Code, so errors.Is(err,
// ErrExpiredToken) works on wrapped rejections.
func (r *Rejection) Is(target error) bool {
	t, ok := target.(*Rejection)
	return ok && t.Code == r.Code
}

func newRejection(code Code, reason, message string) *Rejection {
	return &Rejection{Code: code, Reason: reason, message: message}
}

var (
	// ErrInvalidAudience: the token declares an audience other than the expected one.
	ErrInvalidAudience = newRejection(CodeInvalidAudience, "invalid_audience", "invalid audience")
	// ErrInvalidIssuer: the token was issued for a different host.
	ErrInvalidIssuer = newRejection(CodeInvalidIssuer, "invalid_issuer", "invalid issuer")
	// ErrExpiredToken: iat plus the default TTL, or exp, is in the past.
	ErrExpiredToken = newRejection(CodeExpiredToken, "expired_token", "token expired")
	// ErrInvalidIP: the token is presented from a different address than it was issued to.
	ErrInvalidIP = newRejection(CodeInvalidIP, "invalid_ip", "token used from unexpected ip")
	// ErrInvalidToken: the ciphertext failed authentication or could not be parsed.
	ErrInvalidToken = newRejection(CodeInvalidToken, "invalid_token", "invalid token")
)

// CodeOf returns the rejection code carried by err, or 0 when err is not a rejection.
func CodeOf(err error) Code {
	var r *Rejection
	if errors.As(err, &r) {
		return r.Code
	}
	return 0
}

// IsRejection reports whether err is a validation verdict rather than an operational failure.
func IsRejection(err error) bool {
	return CodeOf(err) != 0
}

var (
	// ErrEngineNotReady is returned by methods called on a nil or closed Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrIssueRateLimited is returned when the caller's address exhausted its issuance budget.
	ErrIssueRateLimited = errors.New("token issuance rate limited")
	// ErrRateLimiterUnavailable is returned when the issuance limiter cannot reach Redis.
	ErrRateLimiterUnavailable = errors.New("rate limiter backend unavailable")
	// ErrPayloadEncoding is returned when a payload cannot be encoded or decoded as JSON.
	ErrPayloadEncoding = errors.New("payload encoding failed")
	// ErrPayloadTooLarge is returned when the encoded payload exceeds Token MaxPayloadBytes.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrTokenEncryption is returned when the cipher fails to produce a token.
	ErrTokenEncryption = errors.New("token encryption failed")
)
