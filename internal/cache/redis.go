package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyPrefix  = "askdata:answer:"
	defaultTTL = time.Hour
)

// Redis is a Redis-backed answer cache.
type Redis struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedis connects to the given Redis URL and verifies it with a ping.
func NewRedis(url string, logger *zap.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{rdb: rdb, ttl: defaultTTL, logger: logger}, nil
}

// Get implements Cache.
func (r *Redis) Get(ctx context.Context, key string) (string, bool) {
	v, err := r.rdb.Get(ctx, keyPrefix+key).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		r.logger.Warn("cache read failed", zap.Error(err))
		return "", false
	}
	return v, true
}

// Set implements Cache.
func (r *Redis) Set(ctx context.Context, key, value string) {
	if err := r.rdb.Set(ctx, keyPrefix+key, value, r.ttl).Err(); err != nil {
		r.logger.Warn("cache write failed", zap.Error(err))
	}
}

// Close shuts down the Redis connection.
func (r *Redis) Close() error {
	return r.rdb.Close()
}
