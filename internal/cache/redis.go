package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"stock-analyzer/internal/models"
)

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisCache stores JSON-encoded predictions in redis.
type RedisCache struct {
	cli    *redis.Client
	prefix string
}

// NewRedisCache connects to redis and pings it.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	cli := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	if err := cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return NewRedisCacheFromClient(cli, cfg.Prefix), nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(cli *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "stock-analyzer"
	}
	return &RedisCache{cli: cli, prefix: prefix + ":prediction:"}
}

func (r *RedisCache) key(k Key) string {
	return r.prefix + k.String()
}

// Get fetches and decodes the entry for key.
func (r *RedisCache) Get(ctx context.Context, key Key) (*models.PredictionResult, error) {
	b, err := r.cli.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, miss(key)
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return Decode(b)
}

// Set writes value with ttl; ttl <= 0 keeps the entry until deleted.
func (r *RedisCache) Set(ctx context.Context, key Key, value *models.PredictionResult, ttl time.Duration) error {
	data, err := Encode(value)
	if err != nil {
		return err
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := r.cli.Set(ctx, r.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (r *RedisCache) Delete(ctx context.Context, key Key) error {
	if err := r.cli.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Close closes the client.
func (r *RedisCache) Close() error {
	return r.cli.Close()
}
