package cache

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/loanflow/backend/internal/domain/shared"
	"github.com/loanflow/backend/internal/infrastructure/config"
)

// NewIdempotencyStore creates an idempotency store based on configuration.
// When the redis backend is configured but unreachable it falls back to the
// in-memory store so a cache outage never blocks cash operations.
func NewIdempotencyStore(cfg *config.Config, logger *zap.Logger) (shared.IdempotencyStore, error) {
	switch cfg.Idempotency.Backend {
	case "memory":
		logger.Info("Using in-memory idempotency store")
		return NewInMemoryIdempotencyStore(), nil

	case "redis":
		store, err := NewRedisIdempotencyStore(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Warn("Redis unavailable, falling back to in-memory idempotency store",
				zap.String("addr", cfg.Redis.Addr()),
				zap.Error(err),
			)
			return NewInMemoryIdempotencyStore(), nil
		}
		logger.Info("Using Redis idempotency store", zap.String("addr", cfg.Redis.Addr()))
		return store, nil

	default:
		return nil, fmt.Errorf("unknown idempotency backend: %q", cfg.Idempotency.Backend)
	}
}
