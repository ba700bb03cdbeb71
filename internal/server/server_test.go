package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func testFileConfig(t *testing.T, extra string) FileConfig {
	t.Helper()
	fc, err := ParseConfig([]byte("cipher:\n  key: " + testKeyB64 + "\n  keyID: srv\nmetrics:\n  enabled: true\n" + extra))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return fc
}

func newTestServer(t *testing.T, fc FileConfig, now func() time.Time) *Server {
	t.Helper()
	rt, err := buildWithClock(fc, zap.NewNop(), now)
	if err != nil {
		t.Fatalf("build runtime: %v", err)
	}
	s := New(rt, zap.NewNop())
	s.grace = 0
	t.Cleanup(s.Close)
	return s
}

func call(t *testing.T, h http.Handler, method, path, peer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, "http://tokens.example.com"+path, &buf)
	if peer != "" {
		req.RemoteAddr = peer
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func issue(t *testing.T, h http.Handler, peer string, body map[string]any) string {
	t.Helper()
	rec := call(t, h, http.MethodPost, "/v1/tokens", peer, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("issue: expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	var out issueResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode issue response: %v", err)
	}
	return out.Token
}

func TestIssueAndValidate(t *testing.T) {
	s := newTestServer(t, testFileConfig(t, ""), nil)
	h := s.Handler()

	tok := issue(t, h, "10.0.0.1:5000", map[string]any{
		"payload":  map[string]any{"user": "alice"},
		"audience": "admin",
		"subject":  "console",
	})

	rec := call(t, h, http.MethodPost, "/v1/tokens/validate", "10.0.0.1:6000", map[string]any{"token": tok, "audience": "admin"})
	if rec.Code != http.StatusOK {
		t.Fatalf("validate: expected 200, got %d %s", rec.Code, rec.Body.String())
	}

	var out validateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(out.Payload) != `{"user":"alice"}` {
		t.Fatalf("unexpected payload %s", out.Payload)
	}
	if out.Claims.Issuer != "tokens.example.com" || out.Claims.IP != "10.0.0.1" || out.Claims.Subject != "console" {
		t.Fatalf("unexpected claims %+v", out.Claims)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Fatal("expected request id header")
	}
}

func TestValidateRejections(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	s := newTestServer(t, testFileConfig(t, ""), clock.Now)
	h := s.Handler()

	tok := issue(t, h, "10.0.0.1:5000", map[string]any{"payload": 1, "expires_in": 60})

	tests := []struct {
		name  string
		peer  string
		body  map[string]any
		code  int
		delay time.Duration
	}{
		{"garbage", "10.0.0.1:1", map[string]any{"token": "garbage"}, 41004, 0},
		{"audience", "10.0.0.1:1", map[string]any{"token": issue(t, h, "10.0.0.1:1", map[string]any{"audience": "a"}), "audience": "b"}, 41000, 0},
		{"ip", "10.0.0.2:1", map[string]any{"token": tok}, 41003, 0},
		{"expired", "10.0.0.1:1", map[string]any{"token": tok}, 41002, 61 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock.Advance(tt.delay)
			rec := call(t, h, http.MethodPost, "/v1/tokens/validate", tt.peer, tt.body)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
			var out errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if out.Code != tt.code {
				t.Fatalf("expected code %d, got %d (%s)", tt.code, out.Code, out.Error)
			}
		})
	}
}

func TestIssueErrors(t *testing.T) {
	s := newTestServer(t, testFileConfig(t, "token:\n  maxPayloadBytes: 8\n"), nil)
	h := s.Handler()

	rec := call(t, h, http.MethodPost, "/v1/tokens", "", map[string]any{"payload": "far too long for eight bytes"})
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "http://h/v1/tokens", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}

	rec = call(t, h, http.MethodGet, "/v1/tokens", "", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestIssueRateLimited(t *testing.T) {
	mr := miniredis.RunT(t)
	fc := testFileConfig(t, "redis:\n  addr: "+mr.Addr()+"\nrateLimit:\n  enabled: true\n  maxIssues: 1\n  window: 1m\n")
	s := newTestServer(t, fc, nil)
	h := s.Handler()

	issue(t, h, "10.0.0.1:1", map[string]any{"payload": 1})
	rec := call(t, h, http.MethodPost, "/v1/tokens", "10.0.0.1:1", map[string]any{"payload": 1})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}

	rec = call(t, h, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"redis_available":true`) {
		t.Fatalf("expected healthy redis, got %d %s", rec.Code, rec.Body.String())
	}

	mr.Close()
	rec = call(t, h, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 with redis down, got %d", rec.Code)
	}
	rec = call(t, h, http.MethodPost, "/v1/tokens", "10.0.0.9:1", map[string]any{"payload": 1})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 issuing with redis down, got %d", rec.Code)
	}
}

func TestInspect(t *testing.T) {
	s := newTestServer(t, testFileConfig(t, ""), nil)
	h := s.Handler()
	tok := issue(t, h, "10.0.0.1:1", map[string]any{"payload": "zzq", "audience": "ops"})

	rec := call(t, h, http.MethodPost, "/v1/tokens/inspect", "192.0.2.50:1", map[string]any{"token": tok})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var out inspectResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Audience != "ops" || out.IP != "10.0.0.1" || out.Method != "sealed" || out.PayloadBytes != 5 {
		t.Fatalf("unexpected inspect response %+v", out)
	}
	if strings.Contains(rec.Body.String(), "zzq") {
		t.Fatal("inspect must not expose the payload")
	}

	rec = call(t, h, http.MethodPost, "/v1/tokens/inspect", "", map[string]any{"token": "x"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, testFileConfig(t, ""), nil)
	h := s.Handler()
	issue(t, h, "", map[string]any{"payload": 1})

	rec := call(t, h, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "gotoken_issue_success_total 1") {
		t.Fatalf("unexpected metrics output %d:\n%s", rec.Code, rec.Body.String())
	}
}

func writeConfig(t *testing.T, path string, key []byte) {
	t.Helper()
	doc := "cipher:\n  key: " + base64.StdEncoding.EncodeToString(key) + "\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestReloadSwapsEngine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokend.yaml")
	writeConfig(t, path, bytes.Repeat([]byte{1}, 32))

	fc, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	s := newTestServer(t, fc, nil)
	h := s.Handler()

	tok := issue(t, h, "10.0.0.1:1", map[string]any{"payload": 1})

	writeConfig(t, path, bytes.Repeat([]byte{9}, 32))
	if err := s.Reload(path); err != nil {
		t.Fatalf("reload: %v", err)
	}

	rec := call(t, h, http.MethodPost, "/v1/tokens/validate", "10.0.0.1:1", map[string]any{"token": tok})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("token from the old key must be rejected after reload, got %d", rec.Code)
	}

	if err := os.WriteFile(path, []byte("cipher: [broken"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := s.Reload(path); err == nil {
		t.Fatal("expected reload error for broken config")
	}
	issue(t, h, "10.0.0.1:1", map[string]any{"payload": 1})
}

func TestWatchFileTriggersReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tokend.yaml")
	writeConfig(t, path, bytes.Repeat([]byte{1}, 32))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fired := make(chan struct{}, 4)
	if err := watchFile(ctx, path, 10*time.Millisecond, func() { fired <- struct{}{} }, zap.NewNop()); err != nil {
		t.Fatalf("watch: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	writeConfig(t, path, bytes.Repeat([]byte{2}, 32))

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("expected reload callback")
	}
}
