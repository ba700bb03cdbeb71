package goToken

import (
	"fmt"
	"time"
)

// LintSeverity ranks a lint finding.
type LintSeverity int

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// LintWarning is one advisory finding. Lint findings never block Build.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the ordered set of findings from [Config.Lint].
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, len(r))
	for i, w := range r {
		out[i] = w.Code
	}
	return out
}

// BySeverity returns the findings at or above min.
func (r LintResult) BySeverity(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// Lint reports settings that are valid but risky. Call it after Validate.
func (c *Config) Lint() LintResult {
	var ws LintResult
	add := func(code string, sev LintSeverity, format string, args ...any) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: fmt.Sprintf(format, args...)})
	}

	if c.Token.DefaultTTL > 24*time.Hour {
		add("default_ttl_long", LintWarn, "Token DefaultTTL %s exceeds 24h; expiry is the only revocation", c.Token.DefaultTTL)
	}
	if c.Cipher.KeyID == "" && len(c.Cipher.JWK) == 0 {
		add("key_id_derived", LintInfo, "Cipher KeyID unset; a fingerprint of the key is used and changes with the key")
	}
	if c.Cipher.Passphrase != "" {
		add("passphrase_key", LintInfo, "Cipher key is derived from a passphrase; prefer a random 32-byte key")
	}
	if len(c.Cipher.VerifyKeys) > 3 {
		add("verify_keys_many", LintWarn, "%d retired verify keys configured; drop keys older than DefaultTTL", len(c.Cipher.VerifyKeys))
	}
	if !c.RateLimit.Enabled {
		add("issue_rate_limit_disabled", LintWarn, "issuance is not rate limited")
	} else if c.RateLimit.MaxIssues > 1000 {
		add("issue_rate_limit_loose", LintInfo, "RateLimit MaxIssues %d per %s is very permissive", c.RateLimit.MaxIssues, c.RateLimit.Window)
	}
	if c.Security.ProductionMode && c.Audit.Enabled && c.Audit.DropIfFull {
		add("audit_drop_if_full", LintHigh, "audit events are dropped when the buffer is full")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "audit dispatcher disabled")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		add("latency_without_metrics", LintWarn, "EnableLatencyHistograms has no effect while Metrics is disabled")
	}

	return ws
}
