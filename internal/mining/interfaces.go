package mining

import (
	"context"

	"github.com/annel0/deepmine/internal/vec"
	"github.com/annel0/deepmine/internal/world/block"
)

// Grid: общая блочная сетка мира. Запись может завершиться ошибкой;
// шахта трактует запись как best-effort.
type Grid interface {
	SetBlock(pos vec.Vec3, id block.BlockID) error
	ClearBlock(pos vec.Vec3) error
	Block(pos vec.Vec3) (block.BlockID, bool)
	Probe(origin, dir vec.Vec3Float, maxDistance float64) (vec.Vec3, bool)
}

// Bodies управляет телами игроков. Позиция: точка ног.
type Bodies interface {
	Teleport(playerID uint64, pos vec.Vec3Float) error
	Position(playerID uint64) (vec.Vec3Float, bool)
	Remove(playerID uint64)
}

// Progress: снимок прогресса игрока, нужный шахте
type Progress struct {
	Power                  float64 `json:"power" bson:"power"`
	DamageMultiplier       float64 `json:"damage_multiplier" bson:"damage_multiplier"`
	ToolLuckBonus          float64 `json:"tool_luck_bonus" bson:"tool_luck_bonus"`                     // десятичная доля (0.25 = +25%)
	HelperLuckBonusPercent float64 `json:"helper_luck_bonus_percent" bson:"helper_luck_bonus_percent"` // в процентах
	ToolSpeedBonusPercent  float64 `json:"tool_speed_bonus_percent" bson:"tool_speed_bonus_percent"`   // в процентах
	WorldRegion            int     `json:"world_region" bson:"world_region"`
}

// Luck возвращает суммарную удачу как десятичную долю
func (p Progress) Luck() float64 {
	return CombineLuck(p.ToolLuckBonus, p.HelperLuckBonusPercent)
}

// ProgressStore читает прогресс игрока и начисляет награды
type ProgressStore interface {
	// Load возвращает прогресс; false, если игрок неизвестен
	Load(ctx context.Context, playerID uint64) (Progress, bool, error)
	// AddOre добавляет руду в инвентарь
	AddOre(ctx context.Context, playerID uint64, ore OreType, amount int) error
	// AddCurrency начисляет валюту
	AddCurrency(ctx context.Context, playerID uint64, amount int) error
}

// DamageEvent описывает нанесённый удар
type DamageEvent struct {
	PlayerID      uint64      `json:"player_id"`
	Level         int         `json:"level"`
	Damage        int         `json:"damage"`
	Kind          ContentKind `json:"-"`
	KindName      string      `json:"kind"`
	Ore           string      `json:"ore,omitempty"`
	CurrentHealth int         `json:"current_health"`
	MaxHealth     int         `json:"max_health"`
	IsChest       bool        `json:"is_chest"`
	ChestKind     string      `json:"chest_kind,omitempty"`
	RewardAmount  int         `json:"reward_amount,omitempty"`
}

// EventSink получает события шахты. Реализации не должны блокировать надолго:
// вызовы происходят под блокировкой системы.
type EventSink interface {
	OreMined(ctx context.Context, playerID uint64, ore OreType, amount int)
	DamageDealt(ctx context.Context, ev DamageEvent)
	ChestBroken(ctx context.Context, playerID uint64, reward int)
	WinReached(ctx context.Context, playerID uint64)
	BlockPreview(ctx context.Context, playerID uint64, preview Preview)
}

// NopSink игнорирует все события
type NopSink struct{}

func (NopSink) OreMined(context.Context, uint64, OreType, int) {}
func (NopSink) DamageDealt(context.Context, DamageEvent) {}
func (NopSink) ChestBroken(context.Context, uint64, int) {}
func (NopSink) WinReached(context.Context, uint64) {}
func (NopSink) BlockPreview(context.Context, uint64, Preview) {}
