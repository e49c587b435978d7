package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// IdempotencyStore remembers which client-supplied keys have already produced
// a ledger entry, so that retried requests return the original entry instead
// of double-posting.
type IdempotencyStore interface {
	// Remember associates a key with the entry it produced.
	// Returns false if the key was already present (the stored entry ID wins).
	Remember(ctx context.Context, key string, entryID uuid.UUID, ttl time.Duration) (bool, error)

	// Lookup returns the entry ID previously stored for the key,
	// or uuid.Nil if the key is unknown or expired.
	Lookup(ctx context.Context, key string) (uuid.UUID, error)

	// Close releases resources held by the store
	Close() error
}

// IdempotencyConfig holds configuration for idempotent transaction recording
type IdempotencyConfig struct {
	// TTL is the window within which a repeated key returns the original
	// entry. Default: 24 hours.
	TTL time.Duration

	// Enabled determines whether the cache fast-path is used. The database
	// unique index on idempotency keys holds regardless.
	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
