package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/annel0/deepmine/internal/logging"
	"github.com/annel0/deepmine/internal/mining"
	"github.com/go-redis/redis/v8"
)

// Поля хэша игрока в Redis
const (
	redisFieldProgress  = "progress"
	redisFieldCurrency  = "currency"
	redisFieldUpdatedAt = "updated_at"
	redisOrePrefix      = "ore:"
)

// RedisProgressRepo хранит прогресс игрока в хэше <prefix><id>.
// Награды начисляются атомарным HINCRBY, без чтения записи.
type RedisProgressRepo struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig содержит настройки подключения к Redis
type RedisConfig struct {
	URL       string // redis://[:password@]host:port/db
	KeyPrefix string // Префикс для ключей
}

// NewRedisProgressRepo подключается к Redis и проверяет соединение
func NewRedisProgressRepo(ctx context.Context, cfg RedisConfig) (*RedisProgressRepo, error) {
	if cfg.URL == "" {
		cfg.URL = "redis://localhost:6379/0"
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "deepmine:progress:"
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.GetStorageLogger().Info("🔴 Connected to Redis at %s", opts.Addr)
	return &RedisProgressRepo{client: client, keyPrefix: cfg.KeyPrefix}, nil
}

func (r *RedisProgressRepo) key(playerID uint64) string {
	return r.keyPrefix + strconv.FormatUint(playerID, 10)
}

func (r *RedisProgressRepo) Save(ctx context.Context, playerID uint64, p mining.Progress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}
	err = r.client.HSet(ctx, r.key(playerID),
		redisFieldProgress, data,
		redisFieldUpdatedAt, time.Now().Unix(),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	return nil
}

func (r *RedisProgressRepo) Load(ctx context.Context, playerID uint64) (mining.Progress, bool, error) {
	data, err := r.client.HGet(ctx, r.key(playerID), redisFieldProgress).Bytes()
	if err == redis.Nil {
		return mining.Progress{}, false, nil
	} else if err != nil {
		return mining.Progress{}, false, fmt.Errorf("failed to get progress: %w", err)
	}

	var p mining.Progress
	if err := json.Unmarshal(data, &p); err != nil {
		return mining.Progress{}, false, fmt.Errorf("failed to unmarshal progress: %w", err)
	}
	return p, true, nil
}

func (r *RedisProgressRepo) AddOre(ctx context.Context, playerID uint64, ore mining.OreType, amount int) error {
	return r.incr(ctx, playerID, redisOrePrefix+ore.String(), amount)
}

func (r *RedisProgressRepo) AddCurrency(ctx context.Context, playerID uint64, amount int) error {
	return r.incr(ctx, playerID, redisFieldCurrency, amount)
}

func (r *RedisProgressRepo) incr(ctx context.Context, playerID uint64, field string, amount int) error {
	key := r.key(playerID)
	pipe := r.client.TxPipeline()
	pipe.HIncrBy(ctx, key, field, int64(amount))
	pipe.HSet(ctx, key, redisFieldUpdatedAt, time.Now().Unix())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to increment %s: %w", field, err)
	}
	return nil
}

func (r *RedisProgressRepo) Get(ctx context.Context, playerID uint64) (ProgressRecord, error) {
	fields, err := r.client.HGetAll(ctx, r.key(playerID)).Result()
	if err != nil {
		return ProgressRecord{}, fmt.Errorf("failed to get record: %w", err)
	}
	if len(fields) == 0 {
		return ProgressRecord{}, ErrNotFound
	}
	return parseRedisRecord(playerID, fields)
}

// parseRedisRecord собирает запись из полей хэша
func parseRedisRecord(playerID uint64, fields map[string]string) (ProgressRecord, error) {
	rec := ProgressRecord{PlayerID: playerID, Ores: make(map[string]int)}
	for field, value := range fields {
		switch {
		case field == redisFieldProgress:
			if err := json.Unmarshal([]byte(value), &rec.Progress); err != nil {
				return ProgressRecord{}, fmt.Errorf("failed to unmarshal progress: %w", err)
			}
		case field == redisFieldCurrency:
			n, err := strconv.Atoi(value)
			if err != nil {
				return ProgressRecord{}, fmt.Errorf("bad currency %q: %w", value, err)
			}
			rec.Currency = n
		case field == redisFieldUpdatedAt:
			if ts, err := strconv.ParseInt(value, 10, 64); err == nil {
				rec.UpdatedAt = time.Unix(ts, 0)
			}
		case strings.HasPrefix(field, redisOrePrefix):
			n, err := strconv.Atoi(value)
			if err != nil {
				return ProgressRecord{}, fmt.Errorf("bad ore amount %q: %w", value, err)
			}
			rec.Ores[strings.TrimPrefix(field, redisOrePrefix)] = n
		}
	}
	return rec, nil
}

func (r *RedisProgressRepo) Close() error {
	return r.client.Close()
}
