package storage

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/annel0/deepmine/internal/logging"
	"github.com/annel0/deepmine/internal/mining"
	"github.com/annel0/deepmine/internal/world"
	"github.com/dgraph-io/badger/v3"
	"github.com/klauspost/compress/zstd"
)

const (
	gridSnapshotKey = "grid:snapshot"
	gridMetaKey     = "grid:meta"
	allocSlotsKey   = "alloc:slots"
)

// ErrStorageClosed возвращается после Close
var ErrStorageClosed = fmt.Errorf("grid storage закрыт")

// GridMeta описывает последний сохранённый снапшот
type GridMeta struct {
	Cells       int       `json:"cells"`
	Allocations int       `json:"allocations"`
	Bytes       int       `json:"bytes"`
	SavedAt     time.Time `json:"saved_at"`
}

// GridStorage сохраняет снапшот блочной сетки в BadgerDB.
// Снапшот хранится одним значением: JSON, сжатый zstd. Слоты шахт
// пишутся в той же транзакции: блоки в сетке принадлежат этим слотам.
type GridStorage struct {
	db      *badger.DB
	mutex   sync.RWMutex
	isReady bool

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewGridStorage открывает хранилище в каталоге path.
// Пустой path открывает BadgerDB в памяти.
func NewGridStorage(path string) (*GridStorage, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		db.Close()
		return nil, fmt.Errorf("не удалось создать zstd decoder: %w", err)
	}

	return &GridStorage{db: db, isReady: true, encoder: encoder, decoder: decoder}, nil
}

// SaveSnapshot перезаписывает снапшот сетки и выданные слоты шахт
func (gs *GridStorage) SaveSnapshot(cells []world.Cell, allocs []mining.Allocation) error {
	gs.mutex.Lock()
	defer gs.mutex.Unlock()

	if !gs.isReady {
		return ErrStorageClosed
	}

	raw, err := json.Marshal(cells)
	if err != nil {
		return fmt.Errorf("ошибка сериализации снапшота: %w", err)
	}
	data := gs.encoder.EncodeAll(raw, nil)

	slots, err := json.Marshal(allocs)
	if err != nil {
		return fmt.Errorf("ошибка сериализации слотов: %w", err)
	}

	meta, err := json.Marshal(GridMeta{
		Cells:       len(cells),
		Allocations: len(allocs),
		Bytes:       len(data),
		SavedAt:     time.Now(),
	})
	if err != nil {
		return fmt.Errorf("ошибка сериализации метаданных: %w", err)
	}

	err = gs.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(gridSnapshotKey), data); err != nil {
			return err
		}
		if err := txn.Set([]byte(allocSlotsKey), slots); err != nil {
			return err
		}
		return txn.Set([]byte(gridMetaKey), meta)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения снапшота: %w", err)
	}

	logging.GetStorageLogger().Debug("💾 Снапшот сетки сохранён: %d блоков, %d слотов, %d байт", len(cells), len(allocs), len(data))
	return nil
}

// LoadAllocations возвращает слоты шахт из последнего снапшота; false, если их нет
func (gs *GridStorage) LoadAllocations() ([]mining.Allocation, bool, error) {
	gs.mutex.RLock()
	defer gs.mutex.RUnlock()

	if !gs.isReady {
		return nil, false, ErrStorageClosed
	}

	var allocs []mining.Allocation
	err := gs.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(allocSlotsKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &allocs)
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ошибка чтения слотов: %w", err)
	}
	return allocs, true, nil
}

// LoadSnapshot возвращает сохранённые ячейки; false, если снапшота нет
func (gs *GridStorage) LoadSnapshot() ([]world.Cell, bool, error) {
	gs.mutex.RLock()
	defer gs.mutex.RUnlock()

	if !gs.isReady {
		return nil, false, ErrStorageClosed
	}

	var data []byte
	err := gs.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(gridSnapshotKey))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ошибка чтения снапшота: %w", err)
	}

	raw, err := gs.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, false, fmt.Errorf("ошибка распаковки снапшота: %w", err)
	}
	var cells []world.Cell
	if err := json.Unmarshal(raw, &cells); err != nil {
		return nil, false, fmt.Errorf("ошибка десериализации снапшота: %w", err)
	}
	return cells, true, nil
}

// Meta возвращает метаданные последнего снапшота
func (gs *GridStorage) Meta() (GridMeta, bool, error) {
	gs.mutex.RLock()
	defer gs.mutex.RUnlock()

	if !gs.isReady {
		return GridMeta{}, false, ErrStorageClosed
	}

	var meta GridMeta
	err := gs.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(gridMetaKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		})
	})
	if err == badger.ErrKeyNotFound {
		return GridMeta{}, false, nil
	}
	if err != nil {
		return GridMeta{}, false, err
	}
	return meta, true, nil
}

// Close закрывает хранилище данных
func (gs *GridStorage) Close() error {
	gs.mutex.Lock()
	defer gs.mutex.Unlock()

	if !gs.isReady {
		return nil
	}

	gs.isReady = false
	gs.encoder.Close()
	gs.decoder.Close()
	return gs.db.Close()
}
