// Package idempotency implements a redis-backed request dedup guard. It is
// advisory: it cheaply rejects an identical request that arrives while the
// first copy is still in flight, but the database transaction remains the
// authority on correctness.
package idempotency

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Guard deduplicates requests via SET NX with a TTL.
type Guard struct {
	client *redis.Client
	ttl    time.Duration
}

// NewGuard constructs a Guard. Keys live for ttl, so a crashed request stops
// blocking its retry after at most that long.
func NewGuard(client *redis.Client, ttl time.Duration) *Guard {
	return &Guard{client: client, ttl: ttl}
}

// Begin claims the key. It returns false when another request already holds
// it.
func (g *Guard) Begin(ctx context.Context, key string) (bool, error) {
	ok, err := g.client.SetNX(ctx, key, 1, g.ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Release frees the key early so a legitimate retry of a failed request is
// not blocked until the TTL fires.
func (g *Guard) Release(ctx context.Context, key string) error {
	return g.client.Del(ctx, key).Err()
}
