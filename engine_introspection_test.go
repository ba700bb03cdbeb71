package goToken

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goToken/cipher"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestInspect(t *testing.T) {
	clock := newTestClock()
	e := newTestEngine(t, testConfig(), clock)

	tok := mustIssue(t, e.ForRequest(requestFrom("h", "1.2.3.4")).WithAudience("aud").WithSubject("sub").WithExpiry(60), "payload")

	info, err := e.Inspect(tok)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if info.Issuer != "h" || info.Audience != "aud" || info.Subject != "sub" || info.IP != "1.2.3.4" {
		t.Fatalf("unexpected info: %+v", info)
	}
	if info.ExpiresAt.Sub(info.IssuedAt) != time.Minute {
		t.Fatalf("unexpected lifetime %v", info.ExpiresAt.Sub(info.IssuedAt))
	}
	if info.Expired {
		t.Fatal("fresh token reported expired")
	}
	if info.PayloadBytes != len(`"payload"`) {
		t.Fatalf("unexpected payload size %d", info.PayloadBytes)
	}
	if info.Method != cipher.MethodSealed {
		t.Fatalf("unexpected method %q", info.Method)
	}

	clock.Advance(2 * time.Minute)
	info, err = e.Inspect(tok)
	if err != nil {
		t.Fatalf("inspect expired: %v", err)
	}
	if !info.Expired {
		t.Fatal("Inspect must report expiry without rejecting")
	}

	if _, err := e.Inspect("nope"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestHealth(t *testing.T) {
	e := newTestEngine(t, testConfig(), newTestClock())
	if h := e.Health(context.Background()); h.RedisConfigured {
		t.Fatal("engine without redis must report unconfigured")
	}

	mr, rdb := newRedis(t)
	withRedis, err := New().WithConfig(testConfig()).WithRedis(rdb).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer withRedis.Close()

	h := withRedis.Health(context.Background())
	if !h.RedisConfigured || !h.RedisAvailable {
		t.Fatalf("expected healthy redis, got %+v", h)
	}

	mr.Close()
	h = withRedis.Health(context.Background())
	if !h.RedisConfigured || h.RedisAvailable {
		t.Fatalf("expected unavailable redis, got %+v", h)
	}
}

func TestSecurityReport(t *testing.T) {
	cfg := testConfig()
	cfg.Cipher.Method = cipher.MethodJWE
	cfg.Cipher.VerifyKeys = map[string][]byte{"old": testKey(8)}
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = true

	e := newTestEngine(t, cfg, newTestClock())
	r := e.SecurityReport()

	if r.CipherMethod != "jwe" || r.KeySource != "raw" || r.KeyID != "test" {
		t.Fatalf("unexpected cipher posture: %+v", r)
	}
	if r.RetiredKeys != 1 || !r.KeyRotationActive {
		t.Fatalf("expected rotation to be reported: %+v", r)
	}
	if !r.AuditEnabled || !r.AuditLossPossible {
		t.Fatalf("expected audit loss to be reported: %+v", r)
	}
	if r.Argon2 != nil {
		t.Fatal("argon2 parameters only apply to passphrase keys")
	}
	if r.DefaultTTL != 2*time.Hour {
		t.Fatalf("unexpected ttl %v", r.DefaultTTL)
	}
}

func TestIssueRateLimit(t *testing.T) {
	mr, rdb := newRedis(t)
	cfg := testConfig()
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.MaxIssues = 2
	cfg.RateLimit.Window = time.Minute

	e, err := New().WithConfig(cfg).WithRedis(rdb).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer e.Close()
	ctx := context.Background()

	m := e.ForRequest(requestFrom("h", "1.2.3.4"))
	mustIssue(t, m, "a")
	mustIssue(t, m, "b")
	if _, err := m.Issue(ctx, "c"); !errors.Is(err, ErrIssueRateLimited) {
		t.Fatalf("expected ErrIssueRateLimited, got %v", err)
	}

	// Another address has its own budget.
	mustIssue(t, e.ForRequest(requestFrom("h", "5.6.7.8")), "d")

	n, err := e.IssueCount(ctx, "1.2.3.4")
	if err != nil {
		t.Fatalf("issue count: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 recorded attempts, got %d", n)
	}

	mr.FastForward(61 * time.Second)
	mustIssue(t, m, "e")

	// Validation is never throttled.
	tok := mustIssue(t, e.ForRequest(requestFrom("h", "9.9.9.9")), "f")
	for i := 0; i < 5; i++ {
		if _, err := e.ForRequest(requestFrom("h", "9.9.9.9")).Validate(ctx, tok); err != nil {
			t.Fatalf("validate %d: %v", i, err)
		}
	}
}

func TestIssueRateLimiterUnavailable(t *testing.T) {
	mr, rdb := newRedis(t)
	cfg := testConfig()
	cfg.RateLimit.Enabled = true

	e, err := New().WithConfig(cfg).WithRedis(rdb).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer e.Close()

	mr.Close()
	_, err = e.ForRequest(requestFrom("h", "1.2.3.4")).Issue(context.Background(), "x")
	if !errors.Is(err, ErrRateLimiterUnavailable) {
		t.Fatalf("expected ErrRateLimiterUnavailable, got %v", err)
	}
}
