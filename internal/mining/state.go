package mining

import (
	"time"

	"github.com/annel0/deepmine/internal/vec"
)

// MinerState: состояние игрока в шахте
type MinerState uint8

const (
	StateIdle    MinerState = iota // нет сессии
	StateActive                    // сессия есть, автоудар выключен
	StateLooping                   // работает цикл автоудара
)

func (s MinerState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateLooping:
		return "looping"
	default:
		return "idle"
	}
}

// HitResult: итог обработки одного удара
type HitResult uint8

const (
	HitNoSession HitResult = iota
	HitNoProgress
	HitTooSoon
	HitNoTarget
	HitOutOfFootprint
	HitWrongLevel
	HitCorrupt
	HitDamaged
	HitDestroyed
	HitWin
)

func (r HitResult) String() string {
	switch r {
	case HitNoSession:
		return "no_session"
	case HitNoProgress:
		return "no_progress"
	case HitTooSoon:
		return "too_soon"
	case HitNoTarget:
		return "no_target"
	case HitOutOfFootprint:
		return "out_of_footprint"
	case HitWrongLevel:
		return "wrong_level"
	case HitCorrupt:
		return "corrupt"
	case HitDamaged:
		return "damaged"
	case HitDestroyed:
		return "destroyed"
	case HitWin:
		return "win"
	default:
		return "unknown"
	}
}

// Applied сообщает, был ли удар засчитан (не отброшен)
func (r HitResult) Applied() bool {
	return r == HitDamaged || r == HitDestroyed || r == HitWin
}

// playerState: состояние шахты одного игрока в одном регионе мира.
// Принадлежит System и меняется только под её блокировкой.
type playerState struct {
	playerID uint64
	regionID int
	offset   RegionOffset

	contents         map[int]*Content
	currentLevel     int
	deepestGenerated int // -1 пока ничего не сгенерировано
	wallsBuiltTo     int // -1 пока стены не строились
	floorLevel       int // уровень, под которым стоит дно; -1: дна нет
	ceilingBuilt     bool
	winTriggered     bool

	lastHit time.Time
	loop    *holdLoop
	target  *vec.Vec3 // ячейка, по которой идёт автоудар
}

func newPlayerState(playerID uint64, regionID int, offset RegionOffset) *playerState {
	return &playerState{
		playerID:         playerID,
		regionID:         regionID,
		offset:           offset,
		contents:         make(map[int]*Content),
		deepestGenerated: -1,
		wallsBuiltTo:     -1,
		floorLevel:       -1,
	}
}

func (st *playerState) state() MinerState {
	if st.loop != nil {
		return StateLooping
	}
	return StateActive
}

// SessionInfo: снимок сессии только для чтения
type SessionInfo struct {
	PlayerID         uint64       `json:"player_id"`
	RegionID         int          `json:"region_id"`
	Offset           RegionOffset `json:"offset"`
	State            string       `json:"state"`
	CurrentLevel     int          `json:"current_level"`
	DeepestGenerated int          `json:"deepest_generated"`
	FloorLevel       int          `json:"floor_level"`
	CeilingBuilt     bool         `json:"ceiling_built"`
	WinTriggered     bool         `json:"win_triggered"`
	LevelsInMemory   int          `json:"levels_in_memory"`
	Target           *vec.Vec3    `json:"target,omitempty"`
}

func (st *playerState) info() SessionInfo {
	return SessionInfo{
		PlayerID:         st.playerID,
		RegionID:         st.regionID,
		Offset:           st.offset,
		State:            st.state().String(),
		CurrentLevel:     st.currentLevel,
		DeepestGenerated: st.deepestGenerated,
		FloorLevel:       st.floorLevel,
		CeilingBuilt:     st.ceilingBuilt,
		WinTriggered:     st.winTriggered,
		LevelsInMemory:   len(st.contents),
		Target:           st.target,
	}
}
