package internaldefs

import (
	goToken "github.com/MrEthical07/goToken"
)

// CounterDef binds an engine counter to its exported name.
type CounterDef struct {
	ID   goToken.MetricID
	Name string
	Help string
}

// HistogramDef binds an engine latency histogram to its exported name.
type HistogramDef struct {
	ID   goToken.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported engine counter.
var CounterDefs = []CounterDef{
	{ID: goToken.MetricIssueSuccess, Name: "gotoken_issue_success_total", Help: "Tokens issued."},
	{ID: goToken.MetricIssueFailure, Name: "gotoken_issue_failure_total", Help: "Issuance failures other than rate limiting."},
	{ID: goToken.MetricIssueRateLimited, Name: "gotoken_issue_rate_limited_total", Help: "Issuances denied by the per-IP throttle."},
	{ID: goToken.MetricValidateSuccess, Name: "gotoken_validate_success_total", Help: "Accepted tokens."},
	{ID: goToken.MetricRejectInvalidToken, Name: "gotoken_reject_invalid_token_total", Help: "Tokens that failed to decrypt."},
	{ID: goToken.MetricRejectAudience, Name: "gotoken_reject_audience_total", Help: "Tokens rejected for audience mismatch."},
	{ID: goToken.MetricRejectIssuer, Name: "gotoken_reject_issuer_total", Help: "Tokens rejected for issuer mismatch."},
	{ID: goToken.MetricRejectExpired, Name: "gotoken_reject_expired_total", Help: "Tokens rejected as expired."},
	{ID: goToken.MetricRejectIP, Name: "gotoken_reject_ip_total", Help: "Tokens rejected for IP mismatch."},
	{ID: goToken.MetricInspect, Name: "gotoken_inspect_total", Help: "Operator inspect calls."},
}

// RejectionDef ties a rejection counter to the code and reason Validate
// reports for it.
type RejectionDef struct {
	ID     goToken.MetricID
	Code   goToken.Code
	Reason string
}

// RejectionsName is the labeled family that breaks rejections down by code.
const RejectionsName = "gotoken_rejections_total"

// RejectionsHelp describes RejectionsName.
const RejectionsHelp = "Validate rejections by code and reason."

// RejectionDefs lists rejections in code order.
var RejectionDefs = []RejectionDef{
	{ID: goToken.MetricRejectAudience, Code: goToken.CodeInvalidAudience, Reason: goToken.ErrInvalidAudience.Reason},
	{ID: goToken.MetricRejectIssuer, Code: goToken.CodeInvalidIssuer, Reason: goToken.ErrInvalidIssuer.Reason},
	{ID: goToken.MetricRejectExpired, Code: goToken.CodeExpiredToken, Reason: goToken.ErrExpiredToken.Reason},
	{ID: goToken.MetricRejectIP, Code: goToken.CodeInvalidIP, Reason: goToken.ErrInvalidIP.Reason},
	{ID: goToken.MetricRejectInvalidToken, Code: goToken.CodeInvalidToken, Reason: goToken.ErrInvalidToken.Reason},
}

// Audit dispatcher health counters.
const (
	AuditDroppedName = "gotoken_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped because the dispatcher buffer was full."
	AuditFailedName  = "gotoken_audit_failed_total"
	AuditFailedHelp  = "Audit events lost to a failing sink."
)

// HistogramDefs lists the exported latency histograms.
var HistogramDefs = []HistogramDef{
	{ID: goToken.MetricIssueLatency, Name: "gotoken_issue_latency_seconds", Help: "Issue latency histogram."},
	{ID: goToken.MetricValidateLatency, Name: "gotoken_validate_latency_seconds", Help: "Validate latency histogram."},
}

// HistogramBounds are the upper bounds, in seconds, of the engine buckets.
var HistogramBounds = []string{
	"0.00005",
	"0.0001",
	"0.00025",
	"0.0005",
	"0.001",
	"0.005",
	"0.025",
	"+Inf",
}

// Source is what the exporters read from. *goToken.Engine implements it.
type Source interface {
	MetricsSnapshot() goToken.MetricsSnapshot
	AuditDropped() uint64
	AuditFailed() uint64
}

// NormalizeBuckets pads or truncates raw to the engine bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to the running totals
// Prometheus expects.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
