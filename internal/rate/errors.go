package rate

import "errors"

var (
	// ErrRateLimited is returned once an address exhausts its issuance budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps any Redis transport or command failure.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
