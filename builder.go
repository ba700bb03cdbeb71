package goToken

import (
	"errors"
	"time"

	"github.com/MrEthical07/goToken/cipher"
	"github.com/MrEthical07/goToken/internal/audit"
	"github.com/MrEthical07/goToken/internal/flows"
	"github.com/MrEthical07/goToken/internal/rate"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an [Engine]. A Builder is single use.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	cipher cipher.Cipher

	auditSink AuditSink
	logger    *zap.Logger
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration. cfg is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the client for the issuance rate limiter and health checks.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCipher injects a cipher provider, bypassing the configured key source.
func (b *Builder) WithCipher(c cipher.Cipher) *Builder {
	b.cipher = c
	return b
}

// WithAuditSink sets where audit events go when Audit is enabled.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the engine logger. The default discards everything.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the wall clock used for iat fallback and expiry checks.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, resolves the cipher key and starts the
// audit dispatcher.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.validate(b.cipher == nil); err != nil {
		return nil, err
	}

	if cfg.RateLimit.Enabled && b.redis == nil {
		return nil, errors.New("RateLimit requires redis client")
	}

	// -------- CIPHER --------
	c := b.cipher
	if c == nil {
		cc, err := cfg.resolveCipher()
		if err != nil {
			return nil, err
		}
		c, err = cipher.New(cc)
		if err != nil {
			return nil, err
		}
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	engine := &Engine{
		config:  cloneConfig(cfg),
		cipher:  c,
		metrics: NewMetrics(cfg.Metrics),
		logger:  logger.Named("gotoken"),
		now:     now,
		newID:   uuid.NewString,
	}

	// -------- RATE LIMITER --------
	if b.redis != nil {
		engine.limiter = rate.New(b.redis, rate.Config{
			Prefix:       cfg.RateLimit.RedisPrefix,
			MaxIssues:    cfg.RateLimit.MaxIssues,
			Window:       cfg.RateLimit.Window,
			ThrottleAnon: cfg.RateLimit.ThrottleAnonymous,
		})
	}

	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		Logger:     engine.logger,
	}, b.auditSink)

	// -------- FLOWS --------
	engine.flows = flows.Deps{
		Issue: flows.IssueDeps{
			Cipher:         c,
			Now:            now,
			DefaultTTL:     cfg.Token.DefaultTTL,
			MaxTokenLength: cipher.MaxTokenLength,
		},
		Validate: flows.ValidateDeps{
			Cipher:     c,
			Now:        now,
			DefaultTTL: cfg.Token.DefaultTTL,
		},
	}
	if cfg.RateLimit.Enabled {
		engine.flows.Issue.Limiter = engine.limiter
	}

	engine.logger.Info("token engine ready",
		zap.String("method", string(c.Method())),
		zap.String("kid", c.KeyID()),
		zap.Duration("default_ttl", cfg.Token.DefaultTTL),
		zap.Bool("rate_limit", cfg.RateLimit.Enabled),
		zap.Bool("audit", cfg.Audit.Enabled),
	)

	b.built = true

	return engine, nil
}
