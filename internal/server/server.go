// Package server is the HTTP front end of tokend.
//
// Routes:
//
//	POST /v1/tokens           issue a token for the calling request
//	POST /v1/tokens/validate  validate a token against the calling request
//	POST /v1/tokens/inspect   decode a token without policy checks
//	GET  /healthz             Redis health
//	GET  /metrics             Prometheus text exposition
//
// Tokens are bound to the host and client address of the HTTP request that
// carries the call, so validation must happen through the same front door
// as issuance.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/metrics/export/prometheus"
	"github.com/MrEthical07/goToken/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// RequestIDHeader is echoed on every response.
const RequestIDHeader = "X-Request-ID"

// Server routes requests to the current Runtime. Runtimes are swapped
// atomically on reload.
type Server struct {
	logger   *zap.Logger
	current  atomic.Pointer[Runtime]
	exporter *prometheus.PrometheusExporter
	grace    time.Duration
}

// New serves rt until the next [Server.Swap].
func New(rt *Runtime, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		logger: logger.Named("http"),
		grace:  5 * time.Second,
	}
	s.current.Store(rt)
	s.exporter = prometheus.NewPrometheusExporterFromSource(s)
	return s
}

// Swap installs rt and closes the previous runtime after a grace period so
// in-flight requests finish on the engine they started with. Engine counters
// start from zero in the new generation.
func (s *Server) Swap(rt *Runtime) {
	old := s.current.Swap(rt)
	if old == nil || old == rt {
		return
	}
	time.AfterFunc(s.grace, old.Close)
}

// Close stops the current runtime.
func (s *Server) Close() {
	if rt := s.current.Swap(nil); rt != nil {
		rt.Close()
	}
}

func (s *Server) engine() *goToken.Engine {
	rt := s.current.Load()
	if rt == nil {
		return nil
	}
	return rt.Engine
}

// MetricsSnapshot reads the current engine's counters.
func (s *Server) MetricsSnapshot() goToken.MetricsSnapshot {
	return s.engine().MetricsSnapshot()
}

// AuditDropped reads the current engine's audit drop counter.
func (s *Server) AuditDropped() uint64 {
	return s.engine().AuditDropped()
}

// AuditFailed reads the current engine's audit sink failure counter.
func (s *Server) AuditFailed() uint64 {
	return s.engine().AuditFailed()
}

// Handler returns the router with request id, request time and access log
// middleware installed.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(middleware.RequestTime, s.requestID, s.accessLog)

	router.HandleFunc("/v1/tokens", s.handleIssue).Methods(http.MethodPost)
	router.HandleFunc("/v1/tokens/validate", s.handleValidate).Methods(http.MethodPost)
	router.HandleFunc("/v1/tokens/inspect", s.handleInspect).Methods(http.MethodPost)
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", s.exporter.Handler()).Methods(http.MethodGet)

	return router
}

const maxBodyBytes = 64 * 1024

type issueRequest struct {
	Payload   json.RawMessage `json:"payload"`
	ExpiresIn *int64          `json:"expires_in,omitempty"`
	Audience  string          `json:"audience,omitempty"`
	Subject   string          `json:"subject,omitempty"`
}

type issueResponse struct {
	Token string `json:"token"`
}

type validateRequest struct {
	Token    string `json:"token"`
	Audience string `json:"audience,omitempty"`
}

type claimsResponse struct {
	Issuer    string `json:"iss,omitempty"`
	IssuedAt  int64  `json:"iat,omitempty"`
	ExpiresAt int64  `json:"exp,omitempty"`
	Audience  string `json:"aud,omitempty"`
	Subject   string `json:"sub,omitempty"`
	KeyID     string `json:"key,omitempty"`
	IP        string `json:"ip,omitempty"`
}

type validateResponse struct {
	Payload json.RawMessage `json:"payload"`
	Claims  claimsResponse  `json:"claims"`
}

type inspectResponse struct {
	Issuer       string `json:"iss,omitempty"`
	Audience     string `json:"aud,omitempty"`
	Subject      string `json:"sub,omitempty"`
	KeyID        string `json:"key,omitempty"`
	IP           string `json:"ip,omitempty"`
	IssuedAt     int64  `json:"iat"`
	ExpiresAt    int64  `json:"exp"`
	Expired      bool   `json:"expired"`
	PayloadBytes int    `json:"payload_bytes"`
	Method       string `json:"method"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code,omitempty"`
}

func (s *Server) handleIssue(w http.ResponseWriter, r *http.Request) {
	var body issueRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if len(body.Payload) == 0 {
		body.Payload = json.RawMessage("null")
	}

	m := s.engine().ForRequest(goToken.HTTPRequest(r)).
		WithAudience(body.Audience).
		WithSubject(body.Subject)
	if body.ExpiresIn != nil {
		m = m.WithExpiry(*body.ExpiresIn)
	}

	token, err := m.Issue(r.Context(), body.Payload)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, goToken.ErrIssueRateLimited):
			status = http.StatusTooManyRequests
		case errors.Is(err, goToken.ErrPayloadTooLarge):
			status = http.StatusRequestEntityTooLarge
		case errors.Is(err, goToken.ErrPayloadEncoding):
			status = http.StatusBadRequest
		case errors.Is(err, goToken.ErrRateLimiterUnavailable),
			errors.Is(err, goToken.ErrEngineNotReady):
			status = http.StatusServiceUnavailable
		}
		if status >= http.StatusInternalServerError {
			s.logger.Error("issue failed", zap.Error(err), zap.String("request_id", requestIDFrom(r.Context())))
		}
		writeJSON(w, status, errorResponse{Error: http.StatusText(status)})
		return
	}

	writeJSON(w, http.StatusCreated, issueResponse{Token: token})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var body validateRequest
	if !decodeBody(w, r, &body) {
		return
	}

	res, err := s.engine().ForRequest(goToken.HTTPRequest(r)).
		WithAudience(body.Audience).
		Validate(r.Context(), body.Token)
	if err != nil {
		var rej *goToken.Rejection
		if errors.As(err, &rej) {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: rej.Reason, Code: int(rej.Code)})
			return
		}
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: http.StatusText(http.StatusServiceUnavailable)})
		return
	}

	cs := res.Claims
	writeJSON(w, http.StatusOK, validateResponse{
		Payload: res.Payload,
		Claims: claimsResponse{
			Issuer:    cs.Issuer,
			IssuedAt:  cs.IssuedAt,
			ExpiresAt: cs.ExpiresAt,
			Audience:  cs.Audience,
			Subject:   cs.Subject,
			KeyID:     cs.KeyID,
			IP:        cs.IP,
		},
	})
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	var body validateRequest
	if !decodeBody(w, r, &body) {
		return
	}

	info, err := s.engine().Inspect(body.Token)
	if err != nil {
		if goToken.IsRejection(err) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_token", Code: int(goToken.CodeOf(err))})
			return
		}
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: http.StatusText(http.StatusServiceUnavailable)})
		return
	}

	writeJSON(w, http.StatusOK, inspectResponse{
		Issuer:       info.Issuer,
		Audience:     info.Audience,
		Subject:      info.Subject,
		KeyID:        info.KeyID,
		IP:           info.IP,
		IssuedAt:     info.IssuedAt.Unix(),
		ExpiresAt:    info.ExpiresAt.Unix(),
		Expired:      info.Expired,
		PayloadBytes: info.PayloadBytes,
		Method:       string(info.Method),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	engine := s.engine()
	if engine == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "down"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	h := engine.Health(ctx)

	status := http.StatusOK
	state := "ok"
	if h.RedisConfigured && !h.RedisAvailable {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}
	writeJSON(w, status, map[string]any{
		"status":           state,
		"redis_configured": h.RedisConfigured,
		"redis_available":  h.RedisAvailable,
		"redis_latency_ms": h.RedisLatency.Milliseconds(),
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type requestIDContextKey struct{}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDContextKey{}, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", requestIDFrom(r.Context())),
		)
	})
}
