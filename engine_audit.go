package goToken

import (
	"context"
	"errors"

	"github.com/MrEthical07/goToken/claims"
	"github.com/MrEthical07/goToken/internal/flows"
)

const (
	auditEventTokenIssued           = "token_issued"
	auditEventTokenIssueFailed      = "token_issue_failed"
	auditEventTokenIssueRateLimited = "token_issue_rate_limited"
	auditEventTokenRejected         = "token_rejected"
)

// AuditErrorCode is the stable error label carried by audit events.
type AuditErrorCode string

const (
	auditErrInvalidAudience AuditErrorCode = "invalid_audience"
	auditErrInvalidIssuer   AuditErrorCode = "invalid_issuer"
	auditErrExpiredToken    AuditErrorCode = "expired_token"
	auditErrInvalidIP       AuditErrorCode = "invalid_ip"
	auditErrInvalidToken    AuditErrorCode = "invalid_token"
	auditErrRateLimited     AuditErrorCode = "rate_limited"
	auditErrPayload         AuditErrorCode = "payload_invalid"
	auditErrUnavailable     AuditErrorCode = "backend_unavailable"
	auditErrInternal        AuditErrorCode = "internal_error"
)

// emitAudit records one event. subject supplies host, IP and claim labels;
// for rejections it is the expected context so no token content leaks.
func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	subject claims.ClaimSet,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		EventID:   e.newID(),
		Timestamp: e.now().UTC(),
		EventType: eventType,
		Host:      subject.Issuer,
		IP:        subject.IP,
		KeyID:     subject.KeyID,
		Audience:  subject.Audience,
		Subject:   subject.Subject,
		Success:   success,
		Code:      int(CodeOf(err)),
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRejection(ctx context.Context, res flows.ValidateResult, err error) {
	e.emitAudit(ctx, auditEventTokenRejected, false, res.Expected, err, func() map[string]string {
		return map[string]string{
			"check":  res.Failure.String(),
			"method": string(e.cipher.Method()),
		}
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidAudience):
		return auditErrInvalidAudience
	case errors.Is(err, ErrInvalidIssuer):
		return auditErrInvalidIssuer
	case errors.Is(err, ErrExpiredToken):
		return auditErrExpiredToken
	case errors.Is(err, ErrInvalidIP):
		return auditErrInvalidIP
	case errors.Is(err, ErrInvalidToken):
		return auditErrInvalidToken
	case errors.Is(err, ErrIssueRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrPayloadEncoding),
		errors.Is(err, ErrPayloadTooLarge):
		return auditErrPayload
	case errors.Is(err, ErrRateLimiterUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
