package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/annel0/deepmine/internal/cache"
	"github.com/annel0/deepmine/internal/logging"
	"github.com/annel0/deepmine/internal/mining"
)

const progressCachePrefix = "progress:"

// CachedProgressRepo кеширует характеристики игрока перед медленным хранилищем.
// Шахта читает прогресс на каждом ударе, поэтому Load обслуживается из кеша;
// начисление наград и Get идут напрямую во внутренний репозиторий.
type CachedProgressRepo struct {
	ProgressRepo

	cache       cache.CacheRepo
	invalidator cache.CacheInvalidator // может быть nil
	ttl         time.Duration
	log         *logging.Logger
}

// NewCachedProgressRepo оборачивает inner. Если invalidator задан,
// инвалидации других узлов удаляют ключи из локального кеша.
func NewCachedProgressRepo(inner ProgressRepo, c cache.CacheRepo, inv cache.CacheInvalidator, ttl time.Duration) (*CachedProgressRepo, error) {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	r := &CachedProgressRepo{
		ProgressRepo: inner,
		cache:        c,
		invalidator:  inv,
		ttl:          ttl,
		log:          logging.GetStorageLogger(),
	}

	if inv != nil {
		err := inv.SubscribeInvalidations(func(key string) error {
			if !strings.HasPrefix(key, progressCachePrefix) {
				return nil
			}
			return c.Delete(context.Background(), key)
		})
		if err != nil {
			return nil, fmt.Errorf("подписка на инвалидации: %w", err)
		}
	}
	return r, nil
}

func progressKey(playerID uint64) string {
	return progressCachePrefix + strconv.FormatUint(playerID, 10)
}

func (r *CachedProgressRepo) Load(ctx context.Context, playerID uint64) (mining.Progress, bool, error) {
	key := progressKey(playerID)

	data, err := r.cache.Get(ctx, key)
	if err == nil {
		var p mining.Progress
		if err := json.Unmarshal(data, &p); err == nil {
			return p, true, nil
		}
		r.log.Warn("⚠️ Битая запись кеша %s, читаем из хранилища", key)
	} else if !cache.IsCacheMiss(err) {
		r.log.Warn("⚠️ Кеш недоступен (%v), читаем из хранилища", err)
	}

	p, found, err := r.ProgressRepo.Load(ctx, playerID)
	if err != nil || !found {
		return p, found, err
	}

	if data, err := json.Marshal(p); err == nil {
		if err := r.cache.Set(ctx, key, data, r.ttl); err != nil {
			r.log.Debug("Не удалось записать %s в кеш: %v", key, err)
		}
	}
	return p, true, nil
}

// Save пишет в хранилище и сбрасывает кеш на всех узлах
func (r *CachedProgressRepo) Save(ctx context.Context, playerID uint64, p mining.Progress) error {
	if err := r.ProgressRepo.Save(ctx, playerID, p); err != nil {
		return err
	}

	key := progressKey(playerID)
	if err := r.cache.Delete(ctx, key); err != nil {
		r.log.Warn("⚠️ Не удалось сбросить кеш %s: %v", key, err)
	}
	if r.invalidator != nil {
		if err := r.invalidator.PublishInvalidation(ctx, key); err != nil {
			r.log.Warn("⚠️ Не удалось разослать инвалидацию %s: %v", key, err)
		}
	}
	return nil
}

// CacheMetrics возвращает метрики кеша прогресса
func (r *CachedProgressRepo) CacheMetrics() cache.CacheMetrics {
	return r.cache.Metrics()
}

func (r *CachedProgressRepo) Close() error {
	if r.invalidator != nil {
		r.invalidator.Close()
	}
	r.cache.Close()
	return r.ProgressRepo.Close()
}
