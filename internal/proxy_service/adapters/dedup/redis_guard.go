package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "proxycall:webhook:"

// RedisGuard remembers carrier event ids with SET NX so that webhook
// retries for an event already handled are dropped.
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisGuard(client *redis.Client, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisGuard{client: client, ttl: ttl}
}

// FirstSeen records eventID and reports whether it was new. An empty id is
// always treated as new.
func (g *RedisGuard) FirstSeen(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return true, nil
	}
	ok, err := g.client.SetNX(ctx, keyPrefix+eventID, time.Now().UTC().Format(time.RFC3339), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("replay guard %s: %w", eventID, err)
	}
	return ok, nil
}

// Forget drops eventID so a retry of a failed event is processed again.
func (g *RedisGuard) Forget(ctx context.Context, eventID string) error {
	if eventID == "" {
		return nil
	}
	if err := g.client.Del(ctx, keyPrefix+eventID).Err(); err != nil {
		return fmt.Errorf("replay guard forget %s: %w", eventID, err)
	}
	return nil
}
