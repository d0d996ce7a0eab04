package mining

import "math/rand"

// ChestKind: вид сундука
type ChestKind uint8

const (
	ChestNone ChestKind = iota
	ChestBasic
	ChestGolden
)

func (k ChestKind) String() string {
	switch k {
	case ChestBasic:
		return "basic"
	case ChestGolden:
		return "golden"
	default:
		return "none"
	}
}

// ChestRoller решает, появится ли сундук на уровне.
// Каждый уровень бросается независимо: ни минимального расстояния
// между сундуками, ни ограничения на их число нет.
type ChestRoller struct {
	GoldenBase  float64
	GoldenBonus float64
	BasicBase   float64
	BasicBonus  float64
	MaxDepth    int
}

// NewChestRoller создаёт роллер из конфигурации шахты
func NewChestRoller(cfg Config) *ChestRoller {
	return &ChestRoller{
		GoldenBase:  cfg.GoldenChestBase,
		GoldenBonus: cfg.GoldenChestBonus,
		BasicBase:   cfg.BasicChestBase,
		BasicBonus:  cfg.BasicChestBonus,
		MaxDepth:    cfg.TerminalLevel + 1,
	}
}

// GoldenChance возвращает вероятность золотого сундука на глубине
func (r *ChestRoller) GoldenChance(absDepth int) float64 {
	return r.GoldenBase + r.depthFraction(absDepth)*r.GoldenBonus
}

// BasicChance возвращает вероятность обычного сундука на глубине
func (r *ChestRoller) BasicChance(absDepth int) float64 {
	return r.BasicBase + r.depthFraction(absDepth)*r.BasicBonus
}

// Roll бросает сначала золотой сундук, затем обычный
func (r *ChestRoller) Roll(rng *rand.Rand, absDepth int) ChestKind {
	if rng.Float64() < r.GoldenChance(absDepth) {
		return ChestGolden
	}
	if rng.Float64() < r.BasicChance(absDepth) {
		return ChestBasic
	}
	return ChestNone
}

func (r *ChestRoller) depthFraction(absDepth int) float64 {
	if r.MaxDepth <= 0 || absDepth <= 0 {
		return 0
	}
	return float64(absDepth) / float64(r.MaxDepth)
}
