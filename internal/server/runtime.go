package server

import (
	"time"

	goToken "github.com/MrEthical07/goToken"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Runtime is one engine generation together with the Redis client it owns.
type Runtime struct {
	Engine *goToken.Engine
	Config FileConfig

	redis *redis.Client
}

// Build constructs a Runtime from fc. Audit events, when enabled, are logged
// through logger.
func Build(fc FileConfig, logger *zap.Logger) (*Runtime, error) {
	return buildWithClock(fc, logger, nil)
}

func buildWithClock(fc FileConfig, logger *zap.Logger, now func() time.Time) (*Runtime, error) {
	cfg, err := fc.EngineConfig()
	if err != nil {
		return nil, err
	}

	b := goToken.New().WithConfig(cfg).WithLogger(logger)
	if now != nil {
		b = b.WithClock(now)
	}

	var rdb *redis.Client
	if fc.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     string(fc.Redis.Addr),
			Password: string(fc.Redis.Password),
			DB:       fc.Redis.DB,
		})
		b = b.WithRedis(rdb)
	}
	if cfg.Audit.Enabled {
		b = b.WithAuditSink(goToken.NewZapSink(logger))
	}

	engine, err := b.Build()
	if err != nil {
		if rdb != nil {
			_ = rdb.Close()
		}
		return nil, err
	}

	for _, w := range cfg.Lint() {
		logger.Warn("config lint",
			zap.String("code", w.Code),
			zap.String("severity", w.Severity.String()),
			zap.String("message", w.Message),
		)
	}

	return &Runtime{Engine: engine, Config: fc, redis: rdb}, nil
}

// Close stops the engine and releases the Redis client.
func (r *Runtime) Close() {
	if r == nil {
		return
	}
	r.Engine.Close()
	if r.redis != nil {
		_ = r.redis.Close()
	}
}
