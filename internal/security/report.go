package security

import "time"

type Argon2Report struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
}

// Report is the effective security posture of an engine. It never carries
// key material; KeyID is the public kid.
type Report struct {
	ProductionMode       bool
	CipherMethod         string
	KeySource            string
	KeyID                string
	RetiredKeys          int
	KeyRotationActive    bool
	DefaultTTL           time.Duration
	MaxPayloadBytes      int
	Argon2               *Argon2Report
	IssueRateLimitActive bool
	IssueBudget          int
	IssueWindow          time.Duration
	AuditEnabled         bool
	AuditLossPossible    bool
	MetricsEnabled       bool
}

type ReportInput struct {
	ProductionMode   bool
	CipherMethod     string
	KeySource        string
	KeyID            string
	VerifyKeyCount   int
	DefaultTTL       time.Duration
	MaxPayloadBytes  int
	Argon2           Argon2Report
	RateLimitEnabled bool
	MaxIssues        int
	Window           time.Duration
	AuditEnabled     bool
	AuditDropIfFull  bool
	MetricsEnabled   bool
}

func BuildReport(input ReportInput) Report {
	rateLimiting := input.RateLimitEnabled &&
		input.MaxIssues > 0 &&
		input.Window > 0

	r := Report{
		ProductionMode:       input.ProductionMode,
		CipherMethod:         input.CipherMethod,
		KeySource:            input.KeySource,
		KeyID:                input.KeyID,
		RetiredKeys:          input.VerifyKeyCount,
		KeyRotationActive:    input.VerifyKeyCount > 0,
		DefaultTTL:           input.DefaultTTL,
		MaxPayloadBytes:      input.MaxPayloadBytes,
		IssueRateLimitActive: rateLimiting,
		AuditEnabled:         input.AuditEnabled,
		AuditLossPossible:    input.AuditEnabled && input.AuditDropIfFull,
		MetricsEnabled:       input.MetricsEnabled,
	}
	if rateLimiting {
		r.IssueBudget = input.MaxIssues
		r.IssueWindow = input.Window
	}
	if input.KeySource == "passphrase" {
		argon := input.Argon2
		r.Argon2 = &argon
	}
	return r
}
