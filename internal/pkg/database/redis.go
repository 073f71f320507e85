package database

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// NewRedis connects the client used by the invalidation hook.
// It returns nil when redisURL is empty; cached scopes then simply expire.
func NewRedis(redisURL string, poolSize int) (*redis.Client, error) {
	if redisURL == "" {
		log.Warn().Msg("Redis URL not configured, cache invalidation over Redis disabled")
		return nil, nil
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	// invalidation is a DEL plus a PUBLISH per scope; a small pool suffices
	if poolSize <= 0 {
		poolSize = 10
	}
	opt.PoolSize = poolSize
	opt.MinIdleConns = 1
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 2 * time.Second
	opt.WriteTimeout = 2 * time.Second

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	log.Info().Int("pool_size", poolSize).Msg("Connected to Redis")
	return client, nil
}

// CloseRedis closes the client; nil is a no-op
func CloseRedis(client *redis.Client) {
	if client == nil {
		return
	}
	if err := client.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing Redis connection")
		return
	}
	log.Info().Msg("Redis connection closed")
}
