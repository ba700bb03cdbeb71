package goToken

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goToken/cipher"
	"github.com/MrEthical07/goToken/claims"
	"github.com/MrEthical07/goToken/internal/audit"
	"github.com/MrEthical07/goToken/internal/clientip"
	"github.com/MrEthical07/goToken/internal/flows"
	"github.com/MrEthical07/goToken/internal/rate"
	"go.uber.org/zap"
)

// Engine issues and validates tokens. It is built once by [Builder.Build]
// and is safe for concurrent use; per-request state lives in [Manager]
// values and [Options] snapshots, never on the Engine.
type Engine struct {
	config  Config
	cipher  cipher.Cipher
	limiter *rate.Limiter
	audit   *audit.Dispatcher
	metrics *Metrics
	logger  *zap.Logger
	now     func() time.Time
	newID   func() string
	flows   flows.Deps
}

// Close flushes and stops the audit dispatcher. It is safe to call more than once.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
	_ = e.logger.Sync()
}

// AuditDropped returns the number of audit events dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// AuditFailed returns the number of audit events lost to a panicking sink.
func (e *Engine) AuditFailed() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Failed()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Issue materializes claims for req, attaches payload and returns the
// encrypted token. payload is JSON-encoded; a json.RawMessage is used as is
// after a validity check.
func (e *Engine) Issue(ctx context.Context, req RequestSource, opts Options, payload any) (string, error) {
	if e == nil || e.cipher == nil {
		return "", ErrEngineNotReady
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricIssueLatency, time.Since(start)) }()
	}

	r := e.resolveRequest(ctx, req)

	raw, err := e.encodePayload(payload)
	if err != nil {
		e.metricInc(MetricIssueFailure)
		e.emitAudit(ctx, auditEventTokenIssueFailed, false, e.auditContext(r, opts), err, nil)
		return "", err
	}

	res := flows.RunIssue(ctx, r, opts.overrides(), raw, e.flows.Issue)
	switch res.Failure {
	case flows.IssueFailureNone:
	case flows.IssueFailureRateLimited:
		if errors.Is(res.Err, rate.ErrRateLimited) {
			e.metricInc(MetricIssueRateLimited)
			e.logger.Debug("token issuance rate limited", zap.String("ip", r.IP))
			e.emitAudit(ctx, auditEventTokenIssueRateLimited, false, e.auditContext(r, opts), ErrIssueRateLimited, nil)
			return "", ErrIssueRateLimited
		}
		e.metricInc(MetricIssueFailure)
		e.logger.Warn("issuance rate limiter unavailable", zap.Error(res.Err))
		err := fmt.Errorf("%w: %v", ErrRateLimiterUnavailable, res.Err)
		e.emitAudit(ctx, auditEventTokenIssueFailed, false, e.auditContext(r, opts), err, nil)
		return "", err
	case flows.IssueFailureTooLarge:
		e.metricInc(MetricIssueFailure)
		e.logger.Debug("issued token exceeds decrypt limit", zap.Error(res.Err))
		err := fmt.Errorf("%w: %v", ErrPayloadTooLarge, res.Err)
		e.emitAudit(ctx, auditEventTokenIssueFailed, false, e.auditContext(r, opts), err, nil)
		return "", err
	default:
		e.metricInc(MetricIssueFailure)
		e.logger.Error("token encryption failed", zap.Error(res.Err))
		err := fmt.Errorf("%w: %v", ErrTokenEncryption, res.Err)
		e.emitAudit(ctx, auditEventTokenIssueFailed, false, e.auditContext(r, opts), err, nil)
		return "", err
	}

	e.metricInc(MetricIssueSuccess)
	if ce := e.logger.Check(zap.DebugLevel, "token issued"); ce != nil {
		ce.Write(
			zap.String("host", res.Claims.Issuer),
			zap.String("key", res.Claims.KeyID),
			zap.Int64("exp", res.Claims.ExpiresAt),
		)
	}
	e.emitAudit(ctx, auditEventTokenIssued, true, res.Claims, nil, func() map[string]string {
		return map[string]string{"method": string(e.cipher.Method())}
	})

	return res.Token, nil
}

// Validate decrypts token and checks it against req in a fixed order:
// audience, issuer, expiry, IP. The first failing check decides the
// returned *Rejection. A ciphertext that cannot be decrypted yields
// ErrInvalidToken. On success the payload is returned verbatim.
func (e *Engine) Validate(ctx context.Context, req RequestSource, opts Options, token string) (*Result, error) {
	if e == nil || e.cipher == nil {
		return nil, ErrEngineNotReady
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricValidateLatency, time.Since(start)) }()
	}

	r := e.resolveRequest(ctx, req)
	res := flows.RunValidate(token, r, opts.overrides(), e.flows.Validate)

	if res.Failure != flows.ValidateFailureNone {
		rej, metric := rejectionFor(res.Failure)
		e.metricInc(metric)
		if ce := e.logger.Check(zap.DebugLevel, "token rejected"); ce != nil {
			ce.Write(
				zap.String("check", res.Failure.String()),
				zap.Int("code", int(rej.Code)),
				zap.String("host", res.Expected.Issuer),
				zap.String("ip", res.Expected.IP),
			)
		}
		e.emitRejection(ctx, res, rej)
		return nil, rej
	}

	e.metricInc(MetricValidateSuccess)
	return &Result{
		Payload: res.Claims.Payload,
		Claims:  res.Claims.WithoutPayload(),
	}, nil
}

func rejectionFor(kind flows.ValidateFailureKind) (*Rejection, MetricID) {
	switch kind {
	case flows.ValidateFailureAudience:
		return ErrInvalidAudience, MetricRejectAudience
	case flows.ValidateFailureIssuer:
		return ErrInvalidIssuer, MetricRejectIssuer
	case flows.ValidateFailureExpired:
		return ErrExpiredToken, MetricRejectExpired
	case flows.ValidateFailureIP:
		return ErrInvalidIP, MetricRejectIP
	default:
		return ErrInvalidToken, MetricRejectInvalidToken
	}
}

// resolveRequest reduces req to the inputs materialization needs. A nil req
// yields an empty context, which only validates tokens issued the same way.
func (e *Engine) resolveRequest(ctx context.Context, req RequestSource) flows.Request {
	if req == nil {
		return flows.Request{StartTime: RequestTimeFromContext(ctx)}
	}

	start := req.StartTime()
	if start.IsZero() {
		start = RequestTimeFromContext(ctx)
	}

	return flows.Request{
		Host:      req.Host(),
		StartTime: start,
		IP:        clientip.Resolve(req),
	}
}

func (e *Engine) encodePayload(payload any) (json.RawMessage, error) {
	var raw json.RawMessage
	switch p := payload.(type) {
	case json.RawMessage:
		if !json.Valid(p) {
			return nil, fmt.Errorf("%w: raw payload is not valid JSON", ErrPayloadEncoding)
		}
		raw = p
	default:
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPayloadEncoding, err)
		}
		raw = b
	}

	if len(raw) > e.config.Token.MaxPayloadBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrPayloadTooLarge, len(raw), e.config.Token.MaxPayloadBytes)
	}
	return raw, nil
}

// auditContext is the claim view used to label events that never reached
// the cipher.
func (e *Engine) auditContext(r flows.Request, opts Options) claims.ClaimSet {
	return flows.Materialize(r, opts.overrides(), e.now, e.config.Token.DefaultTTL)
}
