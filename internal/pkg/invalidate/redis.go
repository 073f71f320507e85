package invalidate

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "cache:"

// RedisHook drops cached views under a scope and announces the scope on a
// pub/sub channel for other instances.
type RedisHook struct {
	client  *redis.Client
	channel string
}

// NewRedisHook creates a hook publishing on channel
func NewRedisHook(client *redis.Client, channel string) *RedisHook {
	return &RedisHook{client: client, channel: channel}
}

// CacheKey is the key under which a scope's cached view is stored
func CacheKey(scope string) string {
	return cacheKeyPrefix + scope
}

func (h *RedisHook) Invalidate(ctx context.Context, scope string) error {
	pipe := h.client.TxPipeline()
	pipe.Del(ctx, CacheKey(scope))
	pipe.Publish(ctx, h.channel, scope)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis invalidate %q: %w", scope, err)
	}
	return nil
}
