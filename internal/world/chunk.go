package world

import (
	"sync"

	"github.com/annel0/deepmine/internal/vec"
	"github.com/annel0/deepmine/internal/world/block"
)

// ChunkSize: размер колонки чанка по X и Z. По Y чанк не ограничен.
const ChunkSize = 16

// ChunkCoord представляет координаты колонки чанка
type ChunkCoord struct {
	X int `json:"x"`
	Z int `json:"z"`
}

// ChunkCoordOf возвращает координаты чанка, содержащего ячейку
func ChunkCoordOf(pos vec.Vec3) ChunkCoord {
	return ChunkCoord{X: floorDiv(pos.X, ChunkSize), Z: floorDiv(pos.Z, ChunkSize)}
}

// Chunk хранит непустые блоки одной колонки 16xNx16.
// Воздух не хранится: отсутствие записи означает AirBlockID.
type Chunk struct {
	Coords ChunkCoord

	blocks map[vec.Vec3]block.BlockID

	ChangeCounter int          // Счетчик изменений
	Mu            sync.RWMutex // Мьютекс для безопасного доступа
}

// NewChunk создаёт новый чанк с указанными координатами
func NewChunk(coords ChunkCoord) *Chunk {
	return &Chunk{
		Coords: coords,
		blocks: make(map[vec.Vec3]block.BlockID),
	}
}

// Get возвращает блок в мировых координатах
func (c *Chunk) Get(pos vec.Vec3) block.BlockID {
	c.Mu.RLock()
	defer c.Mu.RUnlock()
	return c.blocks[pos]
}

// Set устанавливает блок в мировых координатах; Air удаляет запись
func (c *Chunk) Set(pos vec.Vec3, id block.BlockID) {
	c.Mu.Lock()
	defer c.Mu.Unlock()

	if id == block.AirBlockID {
		if _, exists := c.blocks[pos]; !exists {
			return
		}
		delete(c.blocks, pos)
	} else {
		if old, exists := c.blocks[pos]; exists && old == id {
			return
		}
		c.blocks[pos] = id
	}
	c.ChangeCounter++
}

// Len возвращает число непустых блоков в чанке
func (c *Chunk) Len() int {
	c.Mu.RLock()
	defer c.Mu.RUnlock()
	return len(c.blocks)
}

// each вызывает fn для каждого непустого блока под read lock
func (c *Chunk) each(fn func(pos vec.Vec3, id block.BlockID)) {
	c.Mu.RLock()
	defer c.Mu.RUnlock()
	for pos, id := range c.blocks {
		fn(pos, id)
	}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
