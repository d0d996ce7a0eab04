package storage

import (
	"context"
	"errors"
	"time"

	"github.com/annel0/deepmine/internal/mining"
)

// ErrNotFound возвращается, когда запись игрока отсутствует
var ErrNotFound = errors.New("storage: record not found")

// ProgressRecord: полная запись прогресса игрока
type ProgressRecord struct {
	PlayerID  uint64          `json:"player_id" bson:"player_id"`
	Progress  mining.Progress `json:"progress" bson:"progress"`
	Ores      map[string]int  `json:"ores" bson:"ores"`
	Currency  int             `json:"currency" bson:"currency"`
	UpdatedAt time.Time       `json:"updated_at" bson:"updated_at"`
}

// ProgressRepo хранит прогресс игроков. Реализует mining.ProgressStore,
// поэтому любой репозиторий подключается к шахте напрямую.
type ProgressRepo interface {
	mining.ProgressStore

	// Save создаёт или обновляет характеристики игрока (инвентарь не трогается)
	Save(ctx context.Context, playerID uint64, p mining.Progress) error

	// Get возвращает полную запись; ErrNotFound, если игрока нет
	Get(ctx context.Context, playerID uint64) (ProgressRecord, error)

	// Close освобождает соединения
	Close() error
}
