package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const anonymousIP = "-"

// Config holds rate limiter tuning parameters.
type Config struct {
	Prefix       string
	MaxIssues    int
	Window       time.Duration
	ThrottleAnon bool
}

// Limiter enforces a per-IP issuance budget using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "gt"
	}
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckIssue records one issuance for ip and returns ErrRateLimited once the
// window budget is exhausted. Requests without a resolvable address share a
// single bucket when ThrottleAnon is set and are otherwise not throttled.
func (l *Limiter) CheckIssue(ctx context.Context, ip string) error {
	if ip == "" {
		if !l.config.ThrottleAnon {
			return nil
		}
		ip = anonymousIP
	}

	count, err := l.incrementWithTTL(ctx, issueKey(l.config.Prefix, ip), l.config.Window)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxIssues) {
		return ErrRateLimited
	}

	return nil
}

// IssueCount returns the current window counter for ip. Missing keys return zero.
func (l *Limiter) IssueCount(ctx context.Context, ip string) (int, error) {
	if ip == "" {
		ip = anonymousIP
	}
	count, err := l.redis.Get(ctx, issueKey(l.config.Prefix, ip)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

// Ping reports whether the backing Redis answers.
func (l *Limiter) Ping(ctx context.Context) error {
	if err := l.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

func issueKey(prefix, ip string) string {
	return prefix + ":iss:" + ip
}
