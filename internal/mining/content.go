package mining

import (
	"math"

	"github.com/annel0/deepmine/internal/world/block"
)

// ContentKind: вид содержимого уровня
type ContentKind uint8

const (
	KindNone ContentKind = iota
	KindOre
	KindChest
	KindWin
)

func (k ContentKind) String() string {
	switch k {
	case KindOre:
		return "ore"
	case KindChest:
		return "chest"
	case KindWin:
		return "win"
	default:
		return "none"
	}
}

// Content: содержимое одного уровня шахты (руда, сундук или финальный блок).
// Поля Ore и Chest имеют смысл только для соответствующего Kind.
type Content struct {
	Kind          ContentKind
	Ore           OreType
	Chest         ChestKind
	MaxHealth     int // у сундука 0 до первого удара
	CurrentHealth int
}

// NewOreContent создаёт руду с полной прочностью
func NewOreContent(ore OreType, health int) *Content {
	return &Content{Kind: KindOre, Ore: ore, MaxHealth: health, CurrentHealth: health}
}

// NewChestContent создаёт сундук; прочность задаётся первым ударом
func NewChestContent(kind ChestKind) *Content {
	return &Content{Kind: KindChest, Chest: kind}
}

// NewWinContent создаёт финальный блок с бесконечной прочностью
func NewWinContent() *Content {
	return &Content{Kind: KindWin, MaxHealth: math.MaxInt32, CurrentHealth: math.MaxInt32}
}

// BlockID возвращает блок, которым содержимое отображается в сетке
func (c *Content) BlockID() block.BlockID {
	switch c.Kind {
	case KindOre:
		return block.OreBlockID(uint8(c.Ore))
	case KindChest:
		if c.Chest == ChestGolden {
			return block.GoldenChestBlockID
		}
		return block.BasicChestBlockID
	case KindWin:
		return block.WinBlockID
	default:
		return block.AirBlockID
	}
}

// HealthInitialized сообщает, задана ли прочность
func (c *Content) HealthInitialized() bool {
	return c.MaxHealth > 0
}

// Valid проверяет инвариант 0 <= CurrentHealth <= MaxHealth
func (c *Content) Valid() bool {
	return c.CurrentHealth >= 0 && c.CurrentHealth <= c.MaxHealth
}

// Preview: снимок содержимого текущего уровня для UI
type Preview struct {
	Level         int         `json:"level"`
	AbsoluteDepth int         `json:"absolute_depth"`
	Kind          ContentKind `json:"-"`
	KindName      string      `json:"kind"`
	Ore           string      `json:"ore,omitempty"`
	Chest         string      `json:"chest,omitempty"`
	CurrentHealth int         `json:"current_health"`
	MaxHealth     int         `json:"max_health"`
}

func previewOf(level int, c *Content) Preview {
	p := Preview{
		Level:         level,
		AbsoluteDepth: level + 1,
		Kind:          c.Kind,
		KindName:      c.Kind.String(),
		CurrentHealth: c.CurrentHealth,
		MaxHealth:     c.MaxHealth,
	}
	switch c.Kind {
	case KindOre:
		p.Ore = c.Ore.String()
	case KindChest:
		p.Chest = c.Chest.String()
	}
	return p
}
