package goToken

import (
	"context"
	"time"

	"github.com/MrEthical07/goToken/internal/flows"
)

// Inspect decrypts token without running any policy check and returns its
// claims. It is meant for operator tooling; never use it to authorize a
// request. A ciphertext that cannot be decrypted yields ErrInvalidToken.
func (e *Engine) Inspect(token string) (*TokenInfo, error) {
	if e == nil || e.cipher == nil {
		return nil, ErrEngineNotReady
	}
	e.metricInc(MetricInspect)

	cs, err := e.cipher.Decrypt(token)
	if err != nil {
		return nil, ErrInvalidToken
	}

	return &TokenInfo{
		Issuer:       cs.Issuer,
		Audience:     cs.Audience,
		Subject:      cs.Subject,
		KeyID:        cs.KeyID,
		IP:           cs.IP,
		IssuedAt:     cs.IssuedAtTime(),
		ExpiresAt:    cs.ExpiresAtTime(),
		Expired:      flows.Expired(cs, e.now(), e.config.Token.DefaultTTL),
		PayloadBytes: len(cs.Payload),
		Method:       e.cipher.Method(),
	}, nil
}

// Health pings Redis when a rate limiter is wired. Without one it reports
// RedisConfigured=false and nothing else.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if e == nil || e.limiter == nil {
		return HealthStatus{}
	}

	start := time.Now()
	err := e.limiter.Ping(ctx)
	return HealthStatus{
		RedisConfigured: true,
		RedisAvailable:  err == nil,
		RedisLatency:    time.Since(start),
	}
}

// IssueCount returns how many tokens ip has been issued in the current
// rate-limit window.
func (e *Engine) IssueCount(ctx context.Context, ip string) (int, error) {
	if e == nil || e.limiter == nil {
		return 0, ErrEngineNotReady
	}
	n, err := e.limiter.IssueCount(ctx, ip)
	if err != nil {
		return 0, ErrRateLimiterUnavailable
	}
	return n, nil
}
