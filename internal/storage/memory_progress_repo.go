package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/annel0/deepmine/internal/mining"
)

// MemoryProgressRepo реализует ProgressRepo в памяти.
// Используется по умолчанию и в тестах; данные теряются при перезапуске.
type MemoryProgressRepo struct {
	mu      sync.RWMutex
	records map[uint64]*ProgressRecord
}

// NewMemoryProgressRepo создаёт пустой репозиторий
func NewMemoryProgressRepo() *MemoryProgressRepo {
	return &MemoryProgressRepo{records: make(map[uint64]*ProgressRecord)}
}

func (r *MemoryProgressRepo) Save(ctx context.Context, playerID uint64, p mining.Progress) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.record(playerID)
	rec.Progress = p
	rec.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryProgressRepo) Load(ctx context.Context, playerID uint64) (mining.Progress, bool, error) {
	if err := ctx.Err(); err != nil {
		return mining.Progress{}, false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[playerID]
	if !ok {
		return mining.Progress{}, false, nil
	}
	return rec.Progress, true, nil
}

func (r *MemoryProgressRepo) AddOre(ctx context.Context, playerID uint64, ore mining.OreType, amount int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if amount <= 0 {
		return fmt.Errorf("недопустимое количество руды: %d", amount)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[playerID]
	if !ok {
		return fmt.Errorf("игрок %d: %w", playerID, ErrNotFound)
	}
	rec.Ores[ore.String()] += amount
	rec.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryProgressRepo) AddCurrency(ctx context.Context, playerID uint64, amount int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[playerID]
	if !ok {
		return fmt.Errorf("игрок %d: %w", playerID, ErrNotFound)
	}
	rec.Currency += amount
	rec.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryProgressRepo) Get(ctx context.Context, playerID uint64) (ProgressRecord, error) {
	if err := ctx.Err(); err != nil {
		return ProgressRecord{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[playerID]
	if !ok {
		return ProgressRecord{}, ErrNotFound
	}
	out := *rec
	out.Ores = make(map[string]int, len(rec.Ores))
	for k, v := range rec.Ores {
		out.Ores[k] = v
	}
	return out, nil
}

func (r *MemoryProgressRepo) Close() error { return nil }

// Count возвращает количество игроков
func (r *MemoryProgressRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

func (r *MemoryProgressRepo) record(playerID uint64) *ProgressRecord {
	rec, ok := r.records[playerID]
	if !ok {
		rec = &ProgressRecord{PlayerID: playerID, Ores: make(map[string]int)}
		r.records[playerID] = rec
	}
	return rec
}
