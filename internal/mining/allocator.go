package mining

import (
	"sort"
	"sync"
)

// RegionOffset: сдвиг шахты игрока в общей сетке
type RegionOffset struct {
	X int `json:"x"`
	Z int `json:"z"`
}

// allocKey представляет ключ пары (игрок, регион)
type allocKey struct {
	player uint64
	region int
}

// Allocation: выданный слот, сохраняется вместе со снапшотом сетки
type Allocation struct {
	PlayerID uint64       `json:"player_id"`
	RegionID int          `json:"region_id"`
	Offset   RegionOffset `json:"offset"`
}

// regionSlots: счётчик слотов одного региона мира
type regionSlots struct {
	baseX int
	next  int
}

// Allocator раздаёт каждой паре (игрок, регион) непересекающийся слот в сетке.
// Слот 0 каждого региона зарезервирован под общую зону, счёт начинается с 1.
// Регионы получают непересекающиеся диапазоны X в порядке первого обращения.
type Allocator struct {
	mu       sync.Mutex
	columns  int
	spacing  int
	stride   int
	nextBase int // индекс диапазона X для следующего нового региона
	regions  map[int]*regionSlots
	assigned map[allocKey]RegionOffset
}

// NewAllocator создаёт аллокатор с сеткой columns слотов по X и шагом spacing
func NewAllocator(columns, spacing int) *Allocator {
	if columns <= 0 {
		columns = 1
	}
	if spacing <= 0 {
		spacing = 1
	}
	return &Allocator{
		columns:  columns,
		spacing:  spacing,
		stride:   (columns + 1) * spacing,
		regions:  make(map[int]*regionSlots),
		assigned: make(map[allocKey]RegionOffset),
	}
}

// Allocate возвращает сдвиг для пары (игрок, регион); повторный вызов возвращает тот же сдвиг
func (a *Allocator) Allocate(playerID uint64, regionID int) RegionOffset {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := allocKey{player: playerID, region: regionID}
	if off, ok := a.assigned[key]; ok {
		return off
	}

	slots, ok := a.regions[regionID]
	if !ok {
		slots = &regionSlots{
			baseX: a.nextBase * a.stride,
			next:  1,
		}
		a.nextBase++
		a.regions[regionID] = slots
	}

	n := slots.next
	slots.next++

	off := a.slotOffset(slots.baseX, n)
	a.assigned[key] = off
	return off
}

func (a *Allocator) slotOffset(baseX, n int) RegionOffset {
	return RegionOffset{
		X: baseX + (n%a.columns)*a.spacing,
		Z: (n / a.columns) * a.spacing,
	}
}

// Snapshot возвращает выданные слоты, отсортированные по (регион, игрок)
func (a *Allocator) Snapshot() []Allocation {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Allocation, 0, len(a.assigned))
	for key, off := range a.assigned {
		out = append(out, Allocation{PlayerID: key.player, RegionID: key.region, Offset: off})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RegionID != out[j].RegionID {
			return out[i].RegionID < out[j].RegionID
		}
		return out[i].PlayerID < out[j].PlayerID
	})
	return out
}

// Restore возвращает ранее выданные слоты, чтобы новые игроки не получили
// слот с чужими блоками из снапшота. Вызывается до первой выдачи.
// Записи, которые не ложатся в текущую сетку или конфликтуют с уже
// выданными слотами, пропускаются. Возвращает число пропущенных.
func (a *Allocator) Restore(allocs []Allocation) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	taken := make(map[RegionOffset]bool, len(a.assigned))
	for _, off := range a.assigned {
		taken[off] = true
	}

	skipped := 0
	for _, al := range allocs {
		key := allocKey{player: al.PlayerID, region: al.RegionID}
		n, baseIdx, ok := a.slotOf(al.Offset)
		if !ok || taken[al.Offset] {
			skipped++
			continue
		}
		if prev, exists := a.assigned[key]; exists && prev != al.Offset {
			skipped++
			continue
		}

		slots, exists := a.regions[al.RegionID]
		if !exists {
			if a.baseOwned(baseIdx) {
				skipped++
				continue
			}
			slots = &regionSlots{baseX: baseIdx * a.stride, next: 1}
			a.regions[al.RegionID] = slots
		} else if slots.baseX != baseIdx*a.stride {
			skipped++
			continue
		}

		a.assigned[key] = al.Offset
		taken[al.Offset] = true
		if n >= slots.next {
			slots.next = n + 1
		}
		if baseIdx >= a.nextBase {
			a.nextBase = baseIdx + 1
		}
	}
	return skipped
}

// slotOf восстанавливает номер слота и индекс диапазона X по сдвигу
func (a *Allocator) slotOf(off RegionOffset) (n, baseIdx int, ok bool) {
	if off.X < 0 || off.Z < 0 {
		return 0, 0, false
	}
	baseIdx = off.X / a.stride
	local := off.X - baseIdx*a.stride
	if local%a.spacing != 0 || off.Z%a.spacing != 0 {
		return 0, 0, false
	}
	col := local / a.spacing
	if col >= a.columns {
		return 0, 0, false
	}
	n = (off.Z/a.spacing)*a.columns + col
	if n == 0 {
		// слот 0 зарезервирован
		return 0, 0, false
	}
	return n, baseIdx, a.slotOffset(baseIdx*a.stride, n) == off
}

func (a *Allocator) baseOwned(baseIdx int) bool {
	for _, slots := range a.regions {
		if slots.baseX == baseIdx*a.stride {
			return true
		}
	}
	return false
}

// Lookup возвращает ранее выданный сдвиг без выделения нового
func (a *Allocator) Lookup(playerID uint64, regionID int) (RegionOffset, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	off, ok := a.assigned[allocKey{player: playerID, region: regionID}]
	return off, ok
}

// Count возвращает число выданных слотов
func (a *Allocator) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.assigned)
}
