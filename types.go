package goToken

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/MrEthical07/goToken/cipher"
	"github.com/MrEthical07/goToken/claims"
	internalaudit "github.com/MrEthical07/goToken/internal/audit"
	"go.uber.org/zap"
)

// Result is an accepted token: the caller's payload exactly as issued, and
// the claims it was sealed with (without the payload).
type Result struct {
	Payload json.RawMessage
	Claims  claims.ClaimSet
}

// Decode unmarshals the payload into out.
func (r *Result) Decode(out any) error {
	if r == nil {
		return ErrEngineNotReady
	}
	if err := json.Unmarshal(r.Payload, out); err != nil {
		return fmt.Errorf("%w: %v", ErrPayloadEncoding, err)
	}
	return nil
}

// TokenInfo is the operator view of a token returned by [Engine.Inspect].
// It never includes the payload.
type TokenInfo struct {
	Issuer       string
	Audience     string
	Subject      string
	KeyID        string
	IP           string
	IssuedAt     time.Time
	ExpiresAt    time.Time
	Expired      bool
	PayloadBytes int
	Method       cipher.Method
}

// HealthStatus is an on-demand backend health result. RedisConfigured is
// false when no rate limiter is wired.
type HealthStatus struct {
	RedisConfigured bool
	RedisAvailable  bool
	RedisLatency    time.Duration
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// ZapSink is an [AuditSink] that logs each event through a zap logger.
type ZapSink = internalaudit.ZapSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewZapSink creates a [ZapSink] logging under the "audit" name.
func NewZapSink(logger *zap.Logger) *ZapSink {
	return internalaudit.NewZapSink(logger)
}
