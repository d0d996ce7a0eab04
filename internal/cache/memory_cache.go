package cache

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto"
)

// MemoryCache: локальный кеш процесса на ristretto.
// Стоимость элемента равна длине значения в байтах.
type MemoryCache struct {
	store *ristretto.Cache
	counters
}

// NewMemoryCache создаёт кеш с лимитом maxBytes
func NewMemoryCache(maxBytes int64) (*MemoryCache, error) {
	if maxBytes <= 0 {
		maxBytes = 16 << 20
	}
	store, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxBytes / 64, // ~10x ожидаемого числа элементов
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &MemoryCache{store: store}, nil
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.store.Get(key)
	if !ok {
		m.miss()
		return nil, ErrCacheMiss
	}
	m.hit()
	return v.([]byte), nil
}

// Set ждёт применения записи, чтобы следующий Get её увидел
func (m *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl > 0 {
		m.store.SetWithTTL(key, value, int64(len(value)), ttl)
	} else {
		m.store.Set(key, value, int64(len(value)))
	}
	m.store.Wait()
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.store.Del(key)
	return nil
}

func (m *MemoryCache) Metrics() CacheMetrics {
	return m.snapshot()
}

func (m *MemoryCache) Close() error {
	m.store.Close()
	return nil
}
