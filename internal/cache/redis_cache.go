package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/annel0/deepmine/internal/logging"
	"github.com/go-redis/redis/v8"
)

// RedisCache реализует CacheRepo на Redis: кеш общий для всех узлов.
type RedisCache struct {
	client *redis.Client
	prefix string
	counters
}

// NewRedisCache подключается к Redis по URL (redis://host:port/db)
func NewRedisCache(ctx context.Context, url, prefix string) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opts.ReadTimeout = 5 * time.Second
	opts.WriteTimeout = 5 * time.Second
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.GetStorageLogger().Info("🔴 Redis cache initialized: %s", opts.Addr)
	return &RedisCache{client: rdb, prefix: prefix}, nil
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err == redis.Nil {
		r.miss()
		return nil, ErrCacheMiss
	}
	if err != nil {
		r.miss()
		return nil, fmt.Errorf("redis get error: %w", err)
	}
	r.hit()
	return val, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del error: %w", err)
	}
	return nil
}

func (r *RedisCache) Metrics() CacheMetrics {
	return r.snapshot()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
