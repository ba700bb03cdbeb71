package goToken

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goToken/cipher"
	"github.com/MrEthical07/goToken/claims"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Unix(1700000000, 0)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func testKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, cipher.KeySize)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Cipher.Key = testKey(1)
	cfg.Cipher.KeyID = "test"
	return cfg
}

func newTestEngine(t *testing.T, cfg Config, clock *testClock) *Engine {
	t.Helper()
	e, err := New().WithConfig(cfg).WithClock(clock.Now).Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func requestFrom(host, ip string) StaticRequest {
	req := StaticRequest{HostName: host}
	if ip != "" {
		req.Vars = map[string]string{"REMOTE_ADDR": ip}
	}
	return req
}

func mustIssue(t *testing.T, m Manager, payload any) string {
	t.Helper()
	tok, err := m.Issue(context.Background(), payload)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return tok
}

func expectRejection(t *testing.T, err error, want *Rejection) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
	if CodeOf(err) != want.Code {
		t.Fatalf("expected code %d, got %d", want.Code, CodeOf(err))
	}
}

func TestIssueValidateRoundTrip(t *testing.T) {
	payloads := []any{
		map[string]any{"uid": float64(42), "roles": []any{"admin", "ops"}},
		"plain string",
		float64(7),
		[]any{true, nil, "x"},
		nil,
	}

	for _, method := range []cipher.Method{cipher.MethodSealed, cipher.MethodJWE} {
		t.Run(string(method), func(t *testing.T) {
			cfg := testConfig()
			cfg.Cipher.Method = method
			clock := newTestClock()
			e := newTestEngine(t, cfg, clock)
			m := e.ForRequest(requestFrom("a.example.com", "1.2.3.4"))

			for _, p := range payloads {
				tok := mustIssue(t, m, p)
				res, err := m.Validate(context.Background(), tok)
				if err != nil {
					t.Fatalf("validate %v: %v", p, err)
				}
				want, _ := json.Marshal(p)
				if !bytes.Equal(res.Payload, want) {
					t.Fatalf("payload changed: got %s want %s", res.Payload, want)
				}
				if res.Claims.Payload != nil {
					t.Fatal("result claims must not duplicate the payload")
				}
				if res.Claims.Issuer != "a.example.com" || res.Claims.IP != "1.2.3.4" {
					t.Fatalf("unexpected claims: %+v", res.Claims)
				}
				if res.Claims.KeyID != claims.DeriveKeyID(clock.Now().Unix()) {
					t.Fatalf("unexpected key tag %q", res.Claims.KeyID)
				}
			}
		})
	}
}

func TestValidateIntoDecodesPayload(t *testing.T) {
	type session struct {
		UserID int      `json:"uid"`
		Scopes []string `json:"scopes"`
	}

	e := newTestEngine(t, testConfig(), newTestClock())
	m := e.ForRequest(requestFrom("h", "1.2.3.4"))
	tok := mustIssue(t, m, session{UserID: 9, Scopes: []string{"read"}})

	var got session
	if err := m.ValidateInto(context.Background(), tok, &got); err != nil {
		t.Fatalf("validate into: %v", err)
	}
	if got.UserID != 9 || len(got.Scopes) != 1 || got.Scopes[0] != "read" {
		t.Fatalf("unexpected payload: %+v", got)
	}

	var wrong []int
	if err := m.ValidateInto(context.Background(), tok, &wrong); !errors.Is(err, ErrPayloadEncoding) {
		t.Fatalf("expected ErrPayloadEncoding, got %v", err)
	}
}

func TestRawPayload(t *testing.T) {
	e := newTestEngine(t, testConfig(), newTestClock())
	m := e.ForRequest(requestFrom("h", ""))

	tok := mustIssue(t, m, json.RawMessage(`{"a":[1,2]}`))
	res, err := m.Validate(context.Background(), tok)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if string(res.Payload) != `{"a":[1,2]}` {
		t.Fatalf("unexpected payload %s", res.Payload)
	}

	if _, err := m.Issue(context.Background(), json.RawMessage(`{broken`)); !errors.Is(err, ErrPayloadEncoding) {
		t.Fatalf("expected ErrPayloadEncoding, got %v", err)
	}
	if _, err := m.Issue(context.Background(), make(chan int)); !errors.Is(err, ErrPayloadEncoding) {
		t.Fatalf("expected ErrPayloadEncoding for unencodable payload, got %v", err)
	}
}

func TestPayloadTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Token.MaxPayloadBytes = 16
	e := newTestEngine(t, cfg, newTestClock())

	_, err := e.ForRequest(requestFrom("h", "")).Issue(context.Background(), "this payload is longer than sixteen bytes")
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestEscapedPayloadNeverYieldsUndecryptableToken(t *testing.T) {
	for _, method := range []cipher.Method{cipher.MethodSealed, cipher.MethodJWE} {
		t.Run(string(method), func(t *testing.T) {
			cfg := testConfig()
			cfg.Cipher.Method = method
			e := newTestEngine(t, cfg, newTestClock())
			m := e.ForRequest(requestFrom("h", "1.2.3.4"))
			ctx := context.Background()

			// Within MaxPayloadBytes, but '<' marshals as \u003c and the sealed token outgrows the decrypt limit.
			escaped := json.RawMessage(`"` + strings.Repeat("<", 3000) + `"`)
			tok, err := m.Issue(ctx, escaped)
			if !errors.Is(err, ErrPayloadTooLarge) {
				t.Fatalf("expected ErrPayloadTooLarge, got token of %d bytes, err %v", len(tok), err)
			}
			if tok != "" {
				t.Fatal("failed issuance must not return a token")
			}

			plain := json.RawMessage(`"` + strings.Repeat("a", cfg.Token.MaxPayloadBytes-2) + `"`)
			tok = mustIssue(t, m, plain)
			if len(tok) > cipher.MaxTokenLength {
				t.Fatalf("token of %d bytes exceeds decrypt limit", len(tok))
			}
			res, err := m.Validate(ctx, tok)
			if err != nil {
				t.Fatalf("validate: %v", err)
			}
			if !bytes.Equal(res.Payload, plain) {
				t.Fatal("payload changed")
			}
		})
	}
}

func TestForeignKeyIsInvalidToken(t *testing.T) {
	clock := newTestClock()
	a := newTestEngine(t, testConfig(), clock)

	cfg := testConfig()
	cfg.Cipher.Key = testKey(2)
	b := newTestEngine(t, cfg, clock)

	req := requestFrom("h", "1.2.3.4")
	tok := mustIssue(t, a.ForRequest(req), "secret")

	res, err := b.ForRequest(req).Validate(context.Background(), tok)
	expectRejection(t, err, ErrInvalidToken)
	if res != nil {
		t.Fatal("rejection must not return a result")
	}
}

func TestTamperedTokenIsInvalidToken(t *testing.T) {
	e := newTestEngine(t, testConfig(), newTestClock())
	m := e.ForRequest(requestFrom("h", "1.2.3.4"))
	tok := []byte(mustIssue(t, m, "x"))

	for _, i := range []int{len(tok) / 2, len(tok) - 3} {
		tampered := append([]byte(nil), tok...)
		if tampered[i] == 'a' {
			tampered[i] = 'b'
		} else {
			tampered[i] = 'a'
		}
		_, err := m.Validate(context.Background(), string(tampered))
		expectRejection(t, err, ErrInvalidToken)
	}

	_, err := m.Validate(context.Background(), "")
	expectRejection(t, err, ErrInvalidToken)
}

func TestExpiredByOwnExp(t *testing.T) {
	clock := newTestClock()
	e := newTestEngine(t, testConfig(), clock)
	req := requestFrom("h", "1.2.3.4")

	tok := mustIssue(t, e.ForRequest(req).WithExpiry(60), "x")
	clock.Advance(61 * time.Second)

	_, err := e.ForRequest(req).Validate(context.Background(), tok)
	expectRejection(t, err, ErrExpiredToken)
}

func TestDefaultTTLCeilingBeatsLongerExpiry(t *testing.T) {
	clock := newTestClock()
	e := newTestEngine(t, testConfig(), clock)
	req := requestFrom("h", "1.2.3.4")

	tok := mustIssue(t, e.ForRequest(req).WithExpiry(7*24*3600), "x")

	clock.Advance(7200 * time.Second)
	if _, err := e.ForRequest(req).Validate(context.Background(), tok); err != nil {
		t.Fatalf("at the ceiling the token is still valid: %v", err)
	}

	clock.Advance(time.Second)
	_, err := e.ForRequest(req).Validate(context.Background(), tok)
	expectRejection(t, err, ErrExpiredToken)
}

// Expiry uses a strict comparison: a token expiring this second is accepted,
// one second later it is rejected.
func TestZeroExpiryBoundary(t *testing.T) {
	clock := newTestClock()
	e := newTestEngine(t, testConfig(), clock)
	m := e.ForRequest(requestFrom("h", "1.2.3.4"))

	tok := mustIssue(t, m.WithExpiry(0), "x")
	if _, err := m.Validate(context.Background(), tok); err != nil {
		t.Fatalf("same second: %v", err)
	}

	clock.Advance(time.Second)
	_, err := m.Validate(context.Background(), tok)
	expectRejection(t, err, ErrExpiredToken)

	neg := mustIssue(t, m.WithExpiry(-5), "x")
	_, err = m.Validate(context.Background(), neg)
	expectRejection(t, err, ErrExpiredToken)
}

func TestAudienceChecks(t *testing.T) {
	e := newTestEngine(t, testConfig(), newTestClock())
	req := requestFrom("h", "1.2.3.4")
	ctx := context.Background()

	tok := mustIssue(t, e.ForRequest(req).WithAudience("public_admin"), "x")

	_, err := e.ForRequest(req).WithAudience("public_user").Validate(ctx, tok)
	expectRejection(t, err, ErrInvalidAudience)

	_, err = e.ForRequest(req).Validate(ctx, tok)
	expectRejection(t, err, ErrInvalidAudience)

	res, err := e.ForRequest(req).WithAudience("public_admin").Validate(ctx, tok)
	if err != nil {
		t.Fatalf("matching audience: %v", err)
	}
	if res.Claims.Audience != "public_admin" {
		t.Fatalf("expected audience claim, got %q", res.Claims.Audience)
	}

	open := mustIssue(t, e.ForRequest(req), "x")
	if _, err := e.ForRequest(req).WithAudience("public_user").Validate(ctx, open); err != nil {
		t.Fatalf("token without audience skips the check: %v", err)
	}
}

func TestSubjectIsCarried(t *testing.T) {
	e := newTestEngine(t, testConfig(), newTestClock())
	req := requestFrom("h", "1.2.3.4")

	tok := mustIssue(t, e.ForRequest(req).WithSubject("billing"), "x")
	res, err := e.ForRequest(req).Validate(context.Background(), tok)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.Claims.Subject != "billing" {
		t.Fatalf("expected subject billing, got %q", res.Claims.Subject)
	}
}

func TestIssuerMismatch(t *testing.T) {
	e := newTestEngine(t, testConfig(), newTestClock())

	tok := mustIssue(t, e.ForRequest(requestFrom("a.example.com", "1.2.3.4")), "x")
	_, err := e.ForRequest(requestFrom("b.example.com", "1.2.3.4")).Validate(context.Background(), tok)
	expectRejection(t, err, ErrInvalidIssuer)
}

func TestIPMismatch(t *testing.T) {
	e := newTestEngine(t, testConfig(), newTestClock())
	ctx := context.Background()

	tok := mustIssue(t, e.ForRequest(requestFrom("h", "1.2.3.4")), "x")

	_, err := e.ForRequest(requestFrom("h", "5.6.7.8")).Validate(ctx, tok)
	expectRejection(t, err, ErrInvalidIP)

	if _, err := e.ForRequest(requestFrom("h", "1.2.3.4")).Validate(ctx, tok); err != nil {
		t.Fatalf("same ip: %v", err)
	}

	_, err = e.ForRequest(requestFrom("h", "")).Validate(ctx, tok)
	expectRejection(t, err, ErrInvalidIP)
}

func TestRequestStartTimePreferredForIssuedAt(t *testing.T) {
	clock := newTestClock()
	e := newTestEngine(t, testConfig(), clock)

	started := clock.Now().Add(-10 * time.Second)
	req := requestFrom("h", "1.2.3.4")
	req.Started = started

	tok := mustIssue(t, e.ForRequest(req), "x")
	info, err := e.Inspect(tok)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if !info.IssuedAt.Equal(started) {
		t.Fatalf("expected iat %v, got %v", started, info.IssuedAt)
	}

	ctxStarted := clock.Now().Add(-20 * time.Second)
	ctx := WithRequestTime(context.Background(), ctxStarted)
	tok, err = e.ForRequest(requestFrom("h", "1.2.3.4")).Issue(ctx, "x")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	info, err = e.Inspect(tok)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if !info.IssuedAt.Equal(ctxStarted) {
		t.Fatalf("expected iat from context %v, got %v", ctxStarted, info.IssuedAt)
	}
}

func TestManagerValuesAreIndependent(t *testing.T) {
	e := newTestEngine(t, testConfig(), newTestClock())
	base := e.ForRequest(requestFrom("h", "1.2.3.4"))

	admin := base.WithAudience("public_admin").WithExpiry(30)
	if base.Options().Audience() != "" {
		t.Fatal("With methods must not mutate the receiver")
	}
	if _, ok := base.Options().Expiry(); ok {
		t.Fatal("base manager should have no expiry override")
	}
	if ttl, ok := admin.Options().Expiry(); !ok || ttl != 30 {
		t.Fatalf("unexpected override: %d %v", ttl, ok)
	}
}

func TestConcurrentManagers(t *testing.T) {
	e := newTestEngine(t, testConfig(), newTestClock())
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			aud := "public_user"
			if i%2 == 0 {
				aud = "public_admin"
			}
			m := e.ForRequest(requestFrom("h", "10.0.0.1")).WithAudience(aud)
			tok, err := m.Issue(ctx, map[string]int{"n": i})
			if err != nil {
				errs <- err
				return
			}
			var got map[string]int
			if err := m.ValidateInto(ctx, tok, &got); err != nil {
				errs <- err
				return
			}
			if got["n"] != i {
				errs <- errors.New("payload crossed between goroutines")
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}

func TestNilEngine(t *testing.T) {
	var e *Engine
	if _, err := e.Issue(context.Background(), nil, Options{}, "x"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if _, err := e.Validate(context.Background(), nil, Options{}, "x"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if _, err := e.Inspect("x"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	e.Close()
}

func TestNilRequestSource(t *testing.T) {
	e := newTestEngine(t, testConfig(), newTestClock())
	tok, err := e.Issue(context.Background(), nil, Options{}, "x")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := e.Validate(context.Background(), nil, Options{}, tok); err != nil {
		t.Fatalf("validate: %v", err)
	}
	_, err = e.Validate(context.Background(), requestFrom("h", ""), Options{}, tok)
	expectRejection(t, err, ErrInvalidIssuer)
}

func TestKeyRotationAcrossEngines(t *testing.T) {
	clock := newTestClock()
	oldCfg := testConfig()
	oldCfg.Cipher.KeyID = "2025"
	old := newTestEngine(t, oldCfg, clock)

	newCfg := testConfig()
	newCfg.Cipher.Key = testKey(3)
	newCfg.Cipher.KeyID = "2026"
	newCfg.Cipher.VerifyKeys = map[string][]byte{"2025": testKey(1)}
	rotated := newTestEngine(t, newCfg, clock)

	req := requestFrom("h", "1.2.3.4")
	tok := mustIssue(t, old.ForRequest(req), "x")
	if _, err := rotated.ForRequest(req).Validate(context.Background(), tok); err != nil {
		t.Fatalf("retired key should still validate: %v", err)
	}
}

func TestBuilderSingleUse(t *testing.T) {
	b := New().WithConfig(testConfig())
	e, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer e.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestBuilderInjectedCipher(t *testing.T) {
	c, err := cipher.NewJWE(cipher.Config{Key: testKey(4), KeyID: "inj"})
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}

	cfg := DefaultConfig() // no key source
	e, err := New().WithConfig(cfg).WithCipher(c).Build()
	if err != nil {
		t.Fatalf("build with injected cipher: %v", err)
	}
	defer e.Close()

	m := e.ForRequest(requestFrom("h", ""))
	tok := mustIssue(t, m, "x")
	if _, err := m.Validate(context.Background(), tok); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got := e.SecurityReport().KeySource; got != "injected" {
		t.Fatalf("expected injected key source, got %q", got)
	}
}

func TestBuildRequiresRedisForRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Enabled = true
	if _, err := New().WithConfig(cfg).Build(); err == nil {
		t.Fatal("expected rate limit without redis to fail")
	}
}
