package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dcastano/store-api/internal/usecase"
)

// RedisLedger is the dedup/rate-limit store. Every operation is a single
// atomic round trip; errors mean the backend is unreachable and callers
// decide whether to fail open.
type RedisLedger struct {
	rdb *redis.Client
}

func NewRedisLedger(rdb *redis.Client) *RedisLedger {
	return &RedisLedger{rdb: rdb}
}

// Claim is set-if-absent-with-expiry. false means the key was already held
// (duplicate delivery).
func (l *RedisLedger) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.rdb.SetNX(ctx, key, "1", ttl).Result()
}

// IncrWithExpiry bumps a counter and pins its window on first touch.
func (l *RedisLedger) IncrWithExpiry(ctx context.Context, key string, window time.Duration) (int64, error) {
	n, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := l.rdb.Expire(ctx, key, window).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}

var _ usecase.Ledger = (*RedisLedger)(nil)
