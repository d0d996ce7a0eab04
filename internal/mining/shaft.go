package mining

import (
	"github.com/annel0/deepmine/internal/vec"
	"github.com/annel0/deepmine/internal/world/block"
)

// ShaftBuilder пишет и стирает блоки шахты в общей сетке.
// Вся геометрия: арифметика от сдвига игрока, без чтения сетки.
//
// Записи best-effort: ошибка сетки сознательно отбрасывается (учитывается
// только в метрике), следующие проходы lookahead перезапишут пропуски.
type ShaftBuilder struct {
	grid    Grid
	cfg     Config
	metrics *Metrics
}

// NewShaftBuilder создаёт построитель шахт
func NewShaftBuilder(grid Grid, cfg Config, metrics *Metrics) *ShaftBuilder {
	return &ShaftBuilder{grid: grid, cfg: cfg, metrics: metrics}
}

// LevelRows возвращает верхний и нижний ряды уровня (top > bottom)
func (b *ShaftBuilder) LevelRows(level int) (top, bottom int) {
	top = b.cfg.SurfaceY - level*RowsPerLevel
	return top, top - RowsPerLevel + 1
}

// LevelOfRow возвращает уровень, которому принадлежит ряд; false для рядов над входом
func (b *ShaftBuilder) LevelOfRow(y int) (int, bool) {
	depth := b.cfg.SurfaceY - y
	if depth < 0 {
		return 0, false
	}
	return depth / RowsPerLevel, true
}

// InFootprint проверяет, что ячейка лежит в копаемой области игрока по X/Z
func (b *ShaftBuilder) InFootprint(off RegionOffset, cell vec.Vec3) bool {
	return cell.X >= off.X && cell.X < off.X+b.cfg.ShaftWidth &&
		cell.Z >= off.Z && cell.Z < off.Z+b.cfg.ShaftWidth
}

// SpawnPoint возвращает точку ног игрока, стоящего на уровне
func (b *ShaftBuilder) SpawnPoint(off RegionOffset, level int) vec.Vec3Float {
	top, _ := b.LevelRows(level)
	half := float64(b.cfg.ShaftWidth) / 2
	return vec.Vec3Float{
		X: float64(off.X) + half,
		Y: float64(top + 1),
		Z: float64(off.Z) + half,
	}
}

// WriteLevel заполняет область уровня блоком содержимого; withWalls добавляет стены рядов уровня
func (b *ShaftBuilder) WriteLevel(off RegionOffset, regionID, level int, id block.BlockID, withWalls bool) {
	top, bottom := b.LevelRows(level)
	for y := bottom; y <= top; y++ {
		b.fillFootprint(off, y, id)
		if withWalls {
			b.writeWallRow(off, regionID, y)
		}
	}
}

// EraseLevel стирает область уровня; стены не трогаются
func (b *ShaftBuilder) EraseLevel(off RegionOffset, level int) {
	top, bottom := b.LevelRows(level)
	for y := bottom; y <= top; y++ {
		b.fillFootprint(off, y, block.AirBlockID)
	}
}

// BuildCeiling строит надстройку над входом: две коробки стен,
// сверху сплошная крышка, снизу перекрытие полости между коробками.
func (b *ShaftBuilder) BuildCeiling(off RegionOffset, regionID int) {
	base := b.cfg.SurfaceY + 1
	for y := base; y < base+b.cfg.CeilingHeight; y++ {
		b.writeWallRow(off, regionID, y)
	}

	g := b.cfg.OuterWallGap
	w := b.cfg.ShaftWidth
	capY := base + b.cfg.CeilingHeight
	for x := off.X - g; x <= off.X+w-1+g; x++ {
		for z := off.Z - g; z <= off.Z+w-1+g; z++ {
			b.set(vec.Vec3{X: x, Y: capY, Z: z}, block.CeilingBlockID)
		}
	}
	b.fillBand(off, base, block.CeilingBlockID)
}

// BuildFloor заполняет полосу между коробками на уровне y
func (b *ShaftBuilder) BuildFloor(off RegionOffset, y int) {
	b.fillBand(off, y, block.BedrockBlockID)
}

// EraseFloor убирает полосу дна на уровне y
func (b *ShaftBuilder) EraseFloor(off RegionOffset, y int) {
	b.fillBand(off, y, block.AirBlockID)
}

// FloorRow возвращает ряд дна для самого глубокого уровня
func (b *ShaftBuilder) FloorRow(deepest int) int {
	_, bottom := b.LevelRows(deepest)
	return bottom - b.cfg.FloorGap
}

func (b *ShaftBuilder) fillFootprint(off RegionOffset, y int, id block.BlockID) {
	w := b.cfg.ShaftWidth
	for x := off.X; x < off.X+w; x++ {
		for z := off.Z; z < off.Z+w; z++ {
			b.set(vec.Vec3{X: x, Y: y, Z: z}, id)
		}
	}
}

// writeWallRow пишет периметры внутренней и внешней коробок в ряду y
func (b *ShaftBuilder) writeWallRow(off RegionOffset, regionID, y int) {
	material := block.WallMaterial(regionID)
	b.perimeter(off, b.cfg.InnerWallGap, y, material)
	b.perimeter(off, b.cfg.OuterWallGap, y, material)
}

// perimeter пишет только периметр квадрата, отстоящего на gap от области
func (b *ShaftBuilder) perimeter(off RegionOffset, gap, y int, id block.BlockID) {
	minX, maxX := off.X-gap, off.X+b.cfg.ShaftWidth-1+gap
	minZ, maxZ := off.Z-gap, off.Z+b.cfg.ShaftWidth-1+gap
	for x := minX; x <= maxX; x++ {
		b.set(vec.Vec3{X: x, Y: y, Z: minZ}, id)
		b.set(vec.Vec3{X: x, Y: y, Z: maxZ}, id)
	}
	for z := minZ + 1; z < maxZ; z++ {
		b.set(vec.Vec3{X: minX, Y: y, Z: z}, id)
		b.set(vec.Vec3{X: maxX, Y: y, Z: z}, id)
	}
}

// fillBand заполняет ячейки строго между коробками (без области и стен)
func (b *ShaftBuilder) fillBand(off RegionOffset, y int, id block.BlockID) {
	w := b.cfg.ShaftWidth
	inner := b.cfg.InnerWallGap
	outer := b.cfg.OuterWallGap
	for x := off.X - outer + 1; x <= off.X+w-1+outer-1; x++ {
		for z := off.Z - outer + 1; z <= off.Z+w-1+outer-1; z++ {
			insideInner := x >= off.X-inner && x <= off.X+w-1+inner &&
				z >= off.Z-inner && z <= off.Z+w-1+inner
			if insideInner {
				continue
			}
			b.set(vec.Vec3{X: x, Y: y, Z: z}, id)
		}
	}
}

func (b *ShaftBuilder) set(pos vec.Vec3, id block.BlockID) {
	var err error
	if id == block.AirBlockID {
		err = b.grid.ClearBlock(pos)
	} else {
		err = b.grid.SetBlock(pos, id)
	}
	if err != nil {
		b.metrics.gridWriteFailed()
	}
}
