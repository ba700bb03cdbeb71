package goToken

import "github.com/MrEthical07/goToken/internal/security"

// SecurityReport is the effective security posture of an Engine.
type SecurityReport = security.Report

// SecurityReport summarizes the engine's resolved security settings. It is
// safe to log: it contains the public kid but no key material.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil || e.cipher == nil {
		return SecurityReport{}
	}

	return security.BuildReport(security.ReportInput{
		ProductionMode:  e.config.Security.ProductionMode,
		CipherMethod:    string(e.cipher.Method()),
		KeySource:       e.config.keySource(),
		KeyID:           e.cipher.KeyID(),
		VerifyKeyCount:  len(e.config.Cipher.VerifyKeys),
		DefaultTTL:      e.config.Token.DefaultTTL,
		MaxPayloadBytes: e.config.Token.MaxPayloadBytes,
		Argon2: security.Argon2Report{
			Memory:      e.config.Cipher.Argon2.Memory,
			Time:        e.config.Cipher.Argon2.Time,
			Parallelism: e.config.Cipher.Argon2.Parallelism,
			SaltLength:  e.config.Cipher.Argon2.SaltLength,
		},
		RateLimitEnabled: e.config.RateLimit.Enabled,
		MaxIssues:        e.config.RateLimit.MaxIssues,
		Window:           e.config.RateLimit.Window,
		AuditEnabled:     e.config.Audit.Enabled,
		AuditDropIfFull:  e.config.Audit.DropIfFull,
		MetricsEnabled:   e.config.Metrics.Enabled,
	})
}
