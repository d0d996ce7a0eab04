package world

import (
	"errors"
	"sync"

	"github.com/annel0/deepmine/internal/vec"
)

// ErrInvalidPosition возвращается при попытке переместить тело в NaN/Inf
var ErrInvalidPosition = errors.New("invalid body position")

// Bodies хранит позиции тел игроков.
// Сервер авторитетен: позиция меняется только телепортом.
type Bodies struct {
	mu        sync.RWMutex
	positions map[uint64]vec.Vec3Float
}

// NewBodies создаёт пустой реестр тел
func NewBodies() *Bodies {
	return &Bodies{
		positions: make(map[uint64]vec.Vec3Float),
	}
}

// Teleport мгновенно переносит тело игрока в указанную точку
func (b *Bodies) Teleport(playerID uint64, pos vec.Vec3Float) error {
	if !pos.IsFinite() {
		return ErrInvalidPosition
	}
	b.mu.Lock()
	b.positions[playerID] = pos
	b.mu.Unlock()
	return nil
}

// Position возвращает текущую позицию ног игрока
func (b *Bodies) Position(playerID uint64) (vec.Vec3Float, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	pos, ok := b.positions[playerID]
	return pos, ok
}

// Remove удаляет тело игрока (при отключении)
func (b *Bodies) Remove(playerID uint64) {
	b.mu.Lock()
	delete(b.positions, playerID)
	b.mu.Unlock()
}

// Count возвращает количество зарегистрированных тел
func (b *Bodies) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.positions)
}
