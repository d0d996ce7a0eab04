package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrCacheMiss возвращается, если ключа нет в кеше или он истёк
var ErrCacheMiss = errors.New("cache miss")

// CacheRepo: кеш байтовых значений с TTL.
//
// Использование:
//
//	c, _ := NewMemoryCache(1 << 20)
//	_ = c.Set(ctx, "key", data, 30*time.Second)
//	data, err := c.Get(ctx, "key")
type CacheRepo interface {
	// Get возвращает ErrCacheMiss, если ключ не найден
	Get(ctx context.Context, key string) ([]byte, error)
	// Set сохраняет значение; ttl = 0 означает отсутствие истечения
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Metrics() CacheMetrics
	Close() error
}

// CacheInvalidator рассылает инвалидации между узлами
type CacheInvalidator interface {
	PublishInvalidation(ctx context.Context, key string) error
	SubscribeInvalidations(handler InvalidationHandler) error
	Close() error
}

// InvalidationHandler обрабатывает уведомления об инвалидации кеша.
type InvalidationHandler func(key string) error

// CacheMetrics содержит метрики кеша
type CacheMetrics struct {
	TotalRequests int64   `json:"total_requests"`
	CacheHits     int64   `json:"cache_hits"`
	CacheMisses   int64   `json:"cache_misses"`
	HitRatio      float64 `json:"hit_ratio"`
}

// IsCacheMiss проверяет, является ли ошибка промахом кеша.
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

// counters: общие счётчики попаданий для реализаций CacheRepo
type counters struct {
	hits   atomic.Int64
	misses atomic.Int64
}

func (c *counters) hit()  { c.hits.Add(1) }
func (c *counters) miss() { c.misses.Add(1) }

func (c *counters) snapshot() CacheMetrics {
	m := CacheMetrics{CacheHits: c.hits.Load(), CacheMisses: c.misses.Load()}
	m.TotalRequests = m.CacheHits + m.CacheMisses
	if m.TotalRequests > 0 {
		m.HitRatio = float64(m.CacheHits) / float64(m.TotalRequests)
	}
	return m
}
