package block

import "fmt"

// BlockID представляет идентификатор типа блока
type BlockID uint16

// Константы ID блоков
const (
	AirBlockID BlockID = 0

	// Материалы стен шахты (по одному на регион мира, начиная с 1)
	StoneBlockID      BlockID = 1
	BasaltBlockID     BlockID = 2
	SandstoneBlockID  BlockID = 3
	PermafrostBlockID BlockID = 4
	ObsidianBlockID   BlockID = 5
	MagmaRockBlockID  BlockID = 6

	// Служебные блоки шахты
	BedrockBlockID BlockID = 10 // Дно шахты
	CeilingBlockID BlockID = 11 // Крышка над входом

	// Руды (начиная с 100, смещение = номер руды)
	OreBlockBase BlockID = 100

	// Сундуки (начиная с 200)
	BasicChestBlockID  BlockID = 200
	GoldenChestBlockID BlockID = 201

	// Специальные блоки (начиная с 1000)
	WinBlockID BlockID = 1000 // Финальный блок шахты
)

// maxOreBlocks ограничивает диапазон ID руд
const maxOreBlocks = 99

// Definition описывает тип блока
type Definition struct {
	ID    BlockID
	Name  string
	Solid bool
}

var registry = make(map[BlockID]Definition)

// wallMaterials: материалы стен по кругу для регионов мира
var wallMaterials = []BlockID{
	StoneBlockID,
	BasaltBlockID,
	SandstoneBlockID,
	PermafrostBlockID,
	ObsidianBlockID,
	MagmaRockBlockID,
}

func init() {
	Register(Definition{ID: AirBlockID, Name: "air", Solid: false})
	Register(Definition{ID: StoneBlockID, Name: "stone", Solid: true})
	Register(Definition{ID: BasaltBlockID, Name: "basalt", Solid: true})
	Register(Definition{ID: SandstoneBlockID, Name: "sandstone", Solid: true})
	Register(Definition{ID: PermafrostBlockID, Name: "permafrost", Solid: true})
	Register(Definition{ID: ObsidianBlockID, Name: "obsidian", Solid: true})
	Register(Definition{ID: MagmaRockBlockID, Name: "magma_rock", Solid: true})
	Register(Definition{ID: BedrockBlockID, Name: "bedrock", Solid: true})
	Register(Definition{ID: CeilingBlockID, Name: "ceiling", Solid: true})
	Register(Definition{ID: BasicChestBlockID, Name: "basic_chest", Solid: true})
	Register(Definition{ID: GoldenChestBlockID, Name: "golden_chest", Solid: true})
	Register(Definition{ID: WinBlockID, Name: "win", Solid: true})

	for i := 1; i <= maxOreBlocks; i++ {
		id := OreBlockBase + BlockID(i)
		Register(Definition{ID: id, Name: fmt.Sprintf("ore_%d", i), Solid: true})
	}
}

// Register добавляет тип блока в регистр
func Register(def Definition) {
	registry[def.ID] = def
}

// Get возвращает описание блока для указанного ID
func Get(id BlockID) (Definition, bool) {
	def, exists := registry[id]
	return def, exists
}

// IsValidBlockID проверяет, является ли ID допустимым идентификатором блока
func IsValidBlockID(id BlockID) bool {
	_, exists := registry[id]
	return exists
}

// IsSolid возвращает true для блоков, которые останавливают луч
func IsSolid(id BlockID) bool {
	def, exists := registry[id]
	return exists && def.Solid
}

// OreBlockID возвращает ID блока для руды с указанным номером (1..99)
func OreBlockID(ore uint8) BlockID {
	if ore == 0 || int(ore) > maxOreBlocks {
		return StoneBlockID
	}
	return OreBlockBase + BlockID(ore)
}

// WallMaterial возвращает материал стен шахты для региона мира.
// Отрицательные ID регионов тоже поддерживаются.
func WallMaterial(regionID int) BlockID {
	n := len(wallMaterials)
	idx := ((regionID % n) + n) % n
	return wallMaterials[idx]
}
