package pipeline

import (
	"context"
	"fmt"

	"stock-analyzer/internal/cache"
	"stock-analyzer/internal/config"
	"stock-analyzer/internal/store"
)

// OpenCache builds the prediction cache named by cfg.Cache.Backend. A nil
// cache with a nil error means caching is off.
func OpenCache(ctx context.Context, cfg *config.Config) (cache.Cache, error) {
	switch cfg.Cache.Backend {
	case "", "none":
		return nil, nil
	case "memory":
		return cache.NewMemoryCache(), nil
	case "sqlite":
		return store.NewSQLiteCache(cfg.Cache.SQLitePath)
	case "redis":
		return cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Credentials.Redis.Password,
			DB:       cfg.Cache.RedisDB,
			Prefix:   cfg.Cache.RedisPrefix,
		})
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}
