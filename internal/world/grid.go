package world

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/annel0/deepmine/internal/vec"
	"github.com/annel0/deepmine/internal/world/block"
)

// Границы мира по вертикали
const (
	MinY = -1 << 20
	MaxY = 1 << 16
)

var (
	ErrUnknownBlock = errors.New("unknown block id")
	ErrOutOfBounds  = errors.New("position out of world bounds")
)

// Grid: общая разреженная воксельная сетка, разделяемая всеми игроками.
// Безопасна для конкурентного использования.
type Grid struct {
	chunks   map[ChunkCoord]*Chunk
	chunksMu sync.RWMutex
}

// Cell: непустая ячейка сетки (используется для снапшотов)
type Cell struct {
	Pos vec.Vec3      `json:"p"`
	ID  block.BlockID `json:"id"`
}

// NewGrid создаёт пустую сетку
func NewGrid() *Grid {
	return &Grid{
		chunks: make(map[ChunkCoord]*Chunk),
	}
}

// SetBlock устанавливает блок в ячейку
func (g *Grid) SetBlock(pos vec.Vec3, id block.BlockID) error {
	if pos.Y < MinY || pos.Y > MaxY {
		return fmt.Errorf("%w: y=%d", ErrOutOfBounds, pos.Y)
	}
	if !block.IsValidBlockID(id) {
		return fmt.Errorf("%w: %d", ErrUnknownBlock, id)
	}

	if id == block.AirBlockID {
		chunk := g.chunk(ChunkCoordOf(pos), false)
		if chunk != nil {
			chunk.Set(pos, id)
		}
		return nil
	}

	g.chunk(ChunkCoordOf(pos), true).Set(pos, id)
	return nil
}

// ClearBlock заменяет блок воздухом
func (g *Grid) ClearBlock(pos vec.Vec3) error {
	return g.SetBlock(pos, block.AirBlockID)
}

// Block возвращает блок в ячейке; false означает воздух
func (g *Grid) Block(pos vec.Vec3) (block.BlockID, bool) {
	chunk := g.chunk(ChunkCoordOf(pos), false)
	if chunk == nil {
		return block.AirBlockID, false
	}
	id := chunk.Get(pos)
	return id, id != block.AirBlockID
}

// Probe пускает луч из origin в направлении dir и возвращает первую
// твёрдую ячейку на расстоянии не больше maxDistance.
// Обход ячеек: классический DDA (Amanatides & Woo).
func (g *Grid) Probe(origin, dir vec.Vec3Float, maxDistance float64) (vec.Vec3, bool) {
	if !origin.IsFinite() || !dir.IsFinite() || maxDistance <= 0 {
		return vec.Vec3{}, false
	}
	d := dir.Normalize()
	if d == (vec.Vec3Float{}) {
		return vec.Vec3{}, false
	}

	cell := origin.Floor()
	if id, ok := g.Block(cell); ok && block.IsSolid(id) {
		return cell, true
	}

	stepX, tMaxX, tDeltaX := dda(origin.X, d.X, cell.X)
	stepY, tMaxY, tDeltaY := dda(origin.Y, d.Y, cell.Y)
	stepZ, tMaxZ, tDeltaZ := dda(origin.Z, d.Z, cell.Z)

	for {
		var t float64
		switch {
		case tMaxX <= tMaxY && tMaxX <= tMaxZ:
			t = tMaxX
			cell.X += stepX
			tMaxX += tDeltaX
		case tMaxY <= tMaxZ:
			t = tMaxY
			cell.Y += stepY
			tMaxY += tDeltaY
		default:
			t = tMaxZ
			cell.Z += stepZ
			tMaxZ += tDeltaZ
		}

		if t > maxDistance || math.IsInf(t, 1) {
			return vec.Vec3{}, false
		}
		if id, ok := g.Block(cell); ok && block.IsSolid(id) {
			return cell, true
		}
	}
}

// dda считает шаг, расстояние до первой границы ячейки и шаг по t для одной оси
func dda(origin, dir float64, cell int) (step int, tMax, tDelta float64) {
	switch {
	case dir > 0:
		return 1, (float64(cell+1) - origin) / dir, 1 / dir
	case dir < 0:
		return -1, (origin - float64(cell)) / -dir, 1 / -dir
	default:
		return 0, math.Inf(1), math.Inf(1)
	}
}

// ChunkCount возвращает количество загруженных чанков
func (g *Grid) ChunkCount() int {
	g.chunksMu.RLock()
	defer g.chunksMu.RUnlock()
	return len(g.chunks)
}

// BlockCount возвращает количество непустых блоков
func (g *Grid) BlockCount() int {
	g.chunksMu.RLock()
	defer g.chunksMu.RUnlock()
	total := 0
	for _, c := range g.chunks {
		total += c.Len()
	}
	return total
}

// Snapshot возвращает все непустые ячейки, отсортированные по координатам
func (g *Grid) Snapshot() []Cell {
	g.chunksMu.RLock()
	chunks := make([]*Chunk, 0, len(g.chunks))
	for _, c := range g.chunks {
		chunks = append(chunks, c)
	}
	g.chunksMu.RUnlock()

	cells := make([]Cell, 0)
	for _, c := range chunks {
		c.each(func(pos vec.Vec3, id block.BlockID) {
			cells = append(cells, Cell{Pos: pos, ID: id})
		})
	}

	sort.Slice(cells, func(i, j int) bool {
		a, b := cells[i].Pos, cells[j].Pos
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Z != b.Z {
			return a.Z < b.Z
		}
		return a.Y < b.Y
	})
	return cells
}

// Restore заменяет содержимое сетки ячейками из снапшота.
// Ячейки с неизвестными ID пропускаются, их количество возвращается.
func (g *Grid) Restore(cells []Cell) int {
	g.chunksMu.Lock()
	g.chunks = make(map[ChunkCoord]*Chunk)
	g.chunksMu.Unlock()

	skipped := 0
	for _, c := range cells {
		if err := g.SetBlock(c.Pos, c.ID); err != nil {
			skipped++
		}
	}
	return skipped
}

func (g *Grid) chunk(coord ChunkCoord, create bool) *Chunk {
	g.chunksMu.RLock()
	c, exists := g.chunks[coord]
	g.chunksMu.RUnlock()
	if exists || !create {
		return c
	}

	g.chunksMu.Lock()
	defer g.chunksMu.Unlock()
	// Проверяем еще раз на случай race condition
	if c, exists = g.chunks[coord]; exists {
		return c
	}
	c = NewChunk(coord)
	g.chunks[coord] = c
	return c
}
