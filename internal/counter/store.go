package counter

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/fincore/internal/platform/db"
)

// PGStore keeps counters in the counters table using a single upsert statement.
type PGStore struct {
	db db.DBTX
}

// NewPGStore constructs the PostgreSQL counter store.
func NewPGStore(conn db.DBTX) *PGStore {
	return &PGStore{db: conn}
}

// Increment bumps and returns the sequence for key in one statement.
func (s *PGStore) Increment(ctx context.Context, key string) (int64, error) {
	var seq int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO counters (key, seq)
		VALUES ($1, 1)
		ON CONFLICT (key)
		DO UPDATE SET seq = counters.seq + 1
		RETURNING seq
	`, key).Scan(&seq)
	return seq, err
}

// RedisStore keeps counters in Redis using INCR.
type RedisStore struct {
	client    redis.Cmdable
	keyPrefix string
}

// NewRedisStore constructs a Redis counter store. Keys are namespaced under keyPrefix.
func NewRedisStore(client redis.Cmdable, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "fincore:counter:"
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

// Increment bumps and returns the sequence for key.
func (s *RedisStore) Increment(ctx context.Context, key string) (int64, error) {
	return s.client.Incr(ctx, s.keyPrefix+key).Result()
}
