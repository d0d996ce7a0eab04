package mining

import (
	"math"
	"math/rand"
)

// OreType идентифицирует руду. Нулевое значение: отсутствие руды.
type OreType uint8

const (
	OreNone OreType = iota
	OreStone
	OreCoal
	OreCopper
	OreIron
	OreSilver
	OreGold
	OreRuby
	OreSapphire
	OreEmerald
	OreDiamond
	OreMithril
	OreVoidstone
)

var oreNames = map[OreType]string{
	OreNone:      "none",
	OreStone:     "stone",
	OreCoal:      "coal",
	OreCopper:    "copper",
	OreIron:      "iron",
	OreSilver:    "silver",
	OreGold:      "gold",
	OreRuby:      "ruby",
	OreSapphire:  "sapphire",
	OreEmerald:   "emerald",
	OreDiamond:   "diamond",
	OreMithril:   "mithril",
	OreVoidstone: "voidstone",
}

func (o OreType) String() string {
	if name, ok := oreNames[o]; ok {
		return name
	}
	return "unknown"
}

// ParseOreType возвращает руду по имени
func ParseOreType(name string) (OreType, bool) {
	for t, n := range oreNames {
		if n == name && t != OreNone {
			return t, true
		}
	}
	return OreNone, false
}

// Rarity: ступень редкости руды
type Rarity uint8

const (
	Common Rarity = iota
	Rare
	Epic
	Legendary
	Mythic
	Exotic
)

func (r Rarity) String() string {
	switch r {
	case Common:
		return "Common"
	case Rare:
		return "Rare"
	case Epic:
		return "Epic"
	case Legendary:
		return "Legendary"
	case Mythic:
		return "Mythic"
	case Exotic:
		return "Exotic"
	default:
		return "Unknown"
	}
}

// OreDef описывает руду: вес выпадения и кривую прочности по глубине
type OreDef struct {
	Type        OreType
	Rarity      Rarity
	Weight      float64 // базовый вес выпадения
	FirstDepth  int     // абсолютная глубина, с которой руда доступна
	FirstHealth float64 // прочность на FirstDepth
	LastHealth  float64 // прочность на LastDepth таблицы
}

// OreTable выбирает руду по глубине и удаче и считает её прочность
type OreTable struct {
	defs      []OreDef
	byType    map[OreType]int
	lastDepth int
}

// DefaultOreDefs возвращает стандартный набор руд
func DefaultOreDefs() []OreDef {
	return []OreDef{
		{Type: OreStone, Rarity: Common, Weight: 100, FirstDepth: 1, FirstHealth: 5, LastHealth: 300},
		{Type: OreCoal, Rarity: Common, Weight: 60, FirstDepth: 1, FirstHealth: 8, LastHealth: 360},
		{Type: OreCopper, Rarity: Common, Weight: 45, FirstDepth: 5, FirstHealth: 12, LastHealth: 420},
		{Type: OreIron, Rarity: Rare, Weight: 30, FirstDepth: 15, FirstHealth: 20, LastHealth: 520},
		{Type: OreSilver, Rarity: Rare, Weight: 22, FirstDepth: 30, FirstHealth: 30, LastHealth: 640},
		{Type: OreGold, Rarity: Epic, Weight: 14, FirstDepth: 60, FirstHealth: 45, LastHealth: 780},
		{Type: OreRuby, Rarity: Epic, Weight: 10, FirstDepth: 100, FirstHealth: 60, LastHealth: 900},
		{Type: OreSapphire, Rarity: Legendary, Weight: 6, FirstDepth: 160, FirstHealth: 80, LastHealth: 1100},
		{Type: OreEmerald, Rarity: Legendary, Weight: 5, FirstDepth: 240, FirstHealth: 110, LastHealth: 1300},
		{Type: OreDiamond, Rarity: Mythic, Weight: 3, FirstDepth: 350, FirstHealth: 150, LastHealth: 1600},
		{Type: OreMithril, Rarity: Mythic, Weight: 2, FirstDepth: 500, FirstHealth: 220, LastHealth: 2000},
		{Type: OreVoidstone, Rarity: Exotic, Weight: 1, FirstDepth: 700, FirstHealth: 320, LastHealth: 2600},
	}
}

// NewOreTable создаёт таблицу. lastDepth: глубина, на которой прочность достигает LastHealth.
func NewOreTable(defs []OreDef, lastDepth int) *OreTable {
	t := &OreTable{
		defs:      append([]OreDef(nil), defs...),
		byType:    make(map[OreType]int, len(defs)),
		lastDepth: lastDepth,
	}
	for i, d := range t.defs {
		t.byType[d.Type] = i
	}
	return t
}

// Def возвращает описание руды
func (t *OreTable) Def(ore OreType) (OreDef, bool) {
	i, ok := t.byType[ore]
	if !ok {
		return OreDef{}, false
	}
	return t.defs[i], true
}

// EffectiveWeight возвращает вес руды с учётом удачи: weight × (1 + luck).
// Исключение из формулы: руды редкости Common удачей не усиливаются
// и всегда весят базовый weight, так что удача смещает выбор к редким рудам.
// Отрицательная и нечисловая удача игнорируется.
func (t *OreTable) EffectiveWeight(def OreDef, luck float64) float64 {
	if def.Weight <= 0 {
		return 0
	}
	if def.Rarity == Common || luck <= 0 || math.IsNaN(luck) || math.IsInf(luck, 0) {
		return def.Weight
	}
	return def.Weight * (1 + luck)
}

// Candidates возвращает руды, доступные на глубине
func (t *OreTable) Candidates(absDepth int) []OreDef {
	out := make([]OreDef, 0, len(t.defs))
	for _, d := range t.defs {
		if d.FirstDepth <= absDepth {
			out = append(out, d)
		}
	}
	return out
}

// Generate выбирает руду для абсолютной глубины взвешенной выборкой.
// Если на глубине нет ни одной руды, возвращается первая руда таблицы.
func (t *OreTable) Generate(rng *rand.Rand, absDepth int, luck float64) OreType {
	candidates := t.Candidates(absDepth)
	if len(candidates) == 0 {
		if len(t.defs) == 0 {
			return OreNone
		}
		return t.defs[0].Type
	}

	total := 0.0
	for _, d := range candidates {
		total += t.EffectiveWeight(d, luck)
	}
	if total <= 0 {
		return candidates[0].Type
	}

	roll := rng.Float64() * total
	cumulative := 0.0
	for _, d := range candidates {
		cumulative += t.EffectiveWeight(d, luck)
		if roll < cumulative {
			return d.Type
		}
	}
	return candidates[len(candidates)-1].Type
}

// Health возвращает прочность руды на абсолютной глубине.
// Линейная интерполяция между (FirstDepth, FirstHealth) и (lastDepth, LastHealth),
// за пределами отрезка значение прижимается к ближайшему концу.
func (t *OreTable) Health(ore OreType, absDepth int) int {
	def, ok := t.Def(ore)
	if !ok {
		return 1
	}

	health := def.FirstHealth
	span := t.lastDepth - def.FirstDepth
	switch {
	case absDepth <= def.FirstDepth:
	case span <= 0 || absDepth >= t.lastDepth:
		health = def.LastHealth
	default:
		frac := float64(absDepth-def.FirstDepth) / float64(span)
		health = def.FirstHealth + frac*(def.LastHealth-def.FirstHealth)
	}

	h := int(math.Round(health))
	if h < 1 {
		h = 1
	}
	return h
}

// CombineLuck складывает удачу инструмента (десятичная доля) и удачу помощников
// (в процентах) в процентном пространстве и возвращает десятичную долю.
func CombineLuck(toolLuck, helperLuckPercent float64) float64 {
	luck := (toolLuck*100 + helperLuckPercent) / 100
	if math.IsNaN(luck) || math.IsInf(luck, 0) || luck < 0 {
		return 0
	}
	return luck
}
