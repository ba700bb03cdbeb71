package goToken

import (
	"context"

	"github.com/MrEthical07/goToken/internal/flows"
)

// Options is an immutable snapshot of per-call claim overrides. The zero
// value applies the engine defaults. Each With method returns a modified
// copy, so one Options value can be shared across goroutines.
type Options struct {
	ttlSeconds int64
	hasTTL     bool
	audience   string
	subject    string
}

// WithExpiry sets the lifetime of the next issued token in seconds. Zero and
// negative values are honored and yield a token that is already at or past
// its expiry.
func (o Options) WithExpiry(seconds int64) Options {
	o.ttlSeconds = seconds
	o.hasTTL = true
	return o
}

// WithAudience sets the intended recipient. On validation it is the expected
// audience; an empty value expects none.
func (o Options) WithAudience(audience string) Options {
	o.audience = audience
	return o
}

// WithSubject sets the intended user or application scope.
func (o Options) WithSubject(subject string) Options {
	o.subject = subject
	return o
}

// Expiry returns the override TTL and whether one is set.
func (o Options) Expiry() (int64, bool) {
	return o.ttlSeconds, o.hasTTL
}

func (o Options) Audience() string { return o.audience }
func (o Options) Subject() string  { return o.subject }

func (o Options) overrides() flows.Overrides {
	return flows.Overrides{
		TTLSeconds: o.ttlSeconds,
		HasTTL:     o.hasTTL,
		Audience:   o.audience,
		Subject:    o.subject,
	}
}

// Manager binds an Engine to one request and an Options snapshot. It is a
// small value: create one per request with [Engine.ForRequest] and chain the
// With methods; each returns a new Manager.
type Manager struct {
	engine *Engine
	req    RequestSource
	opts   Options
}

// ForRequest returns a Manager for req with default options.
func (e *Engine) ForRequest(req RequestSource) Manager {
	return Manager{engine: e, req: req}
}

func (m Manager) WithExpiry(seconds int64) Manager {
	m.opts = m.opts.WithExpiry(seconds)
	return m
}

func (m Manager) WithAudience(audience string) Manager {
	m.opts = m.opts.WithAudience(audience)
	return m
}

func (m Manager) WithSubject(subject string) Manager {
	m.opts = m.opts.WithSubject(subject)
	return m
}

// WithOptions replaces the Manager's options.
func (m Manager) WithOptions(o Options) Manager {
	m.opts = o
	return m
}

func (m Manager) Options() Options {
	return m.opts
}

// Issue encrypts payload with claims materialized for this request.
func (m Manager) Issue(ctx context.Context, payload any) (string, error) {
	return m.engine.Issue(ctx, m.req, m.opts, payload)
}

// Validate checks token against this request and returns its payload.
func (m Manager) Validate(ctx context.Context, token string) (*Result, error) {
	return m.engine.Validate(ctx, m.req, m.opts, token)
}

// ValidateInto validates token and decodes its payload into out.
func (m Manager) ValidateInto(ctx context.Context, token string, out any) error {
	res, err := m.Validate(ctx, token)
	if err != nil {
		return err
	}
	return res.Decode(out)
}
