package mining

import (
	"fmt"
	"time"
)

// RowsPerLevel: высота одного уровня шахты в рядах блоков
const RowsPerLevel = 3

// Config содержит настраиваемые параметры шахты.
// Теги yaml позволяют встраивать структуру в корневую конфигурацию сервера.
type Config struct {
	// Геометрия
	ShaftWidth       int `yaml:"shaft_width"`       // ширина копаемой области (X и Z)
	SurfaceY         int `yaml:"surface_y"`         // верхний ряд уровня 0
	InnerWallGap     int `yaml:"inner_wall_gap"`    // отступ внутренней стены от области
	OuterWallGap     int `yaml:"outer_wall_gap"`    // отступ внешней стены от области
	CeilingHeight    int `yaml:"ceiling_height"`    // рядов стен над входом
	FloorGap         int `yaml:"floor_gap"`         // рядов между последним уровнем и дном
	AllocatorColumns int `yaml:"allocator_columns"` // ширина сетки аллокатора в слотах
	AllocatorSpacing int `yaml:"allocator_spacing"` // расстояние между шахтами

	// Генерация
	TerminalLevel int `yaml:"terminal_level"` // уровень финального блока
	Lookahead     int `yaml:"lookahead"`      // уровней, генерируемых впереди игрока
	InitialBatch  int `yaml:"initial_batch"`  // уровней при входе в шахту
	ResetRange    int `yaml:"reset_range"`    // уровней, очищаемых при сбросе

	// Сундуки
	GoldenChestBase   float64 `yaml:"golden_chest_base"`
	GoldenChestBonus  float64 `yaml:"golden_chest_depth_bonus"`
	BasicChestBase    float64 `yaml:"basic_chest_base"`
	BasicChestBonus   float64 `yaml:"basic_chest_depth_bonus"`
	BasicChestHits    int     `yaml:"basic_chest_hits"`
	GoldenChestHits   int     `yaml:"golden_chest_hits"`
	BasicChestReward  int     `yaml:"basic_chest_reward"`
	GoldenChestReward int     `yaml:"golden_chest_reward"`

	// Удары
	BaseSwingRate   float64       `yaml:"base_swing_rate"` // ударов в секунду без бонусов
	ProbeDistance   float64       `yaml:"probe_distance"`
	FallbackDamage  int           `yaml:"fallback_damage"`
	ProgressTimeout time.Duration `yaml:"progress_timeout"`
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() Config {
	return Config{
		ShaftWidth:       4,
		SurfaceY:         0,
		InnerWallGap:     1,
		OuterWallGap:     10,
		CeilingHeight:    8,
		FloorGap:         10,
		AllocatorColumns: 128,
		AllocatorSpacing: 64,

		TerminalLevel: 1000,
		Lookahead:     20,
		InitialBatch:  40,
		ResetRange:    80,

		GoldenChestBase:   0.001,
		GoldenChestBonus:  0.009,
		BasicChestBase:    0.01,
		BasicChestBonus:   0.04,
		BasicChestHits:    3,
		GoldenChestHits:   6,
		BasicChestReward:  2,
		GoldenChestReward: 10,

		BaseSwingRate:   2.5,
		ProbeDistance:   4,
		FallbackDamage:  1,
		ProgressTimeout: 2 * time.Second,
	}
}

// Validate проверяет согласованность параметров
func (c Config) Validate() error {
	switch {
	case c.ShaftWidth <= 0:
		return fmt.Errorf("shaft_width must be positive, got %d", c.ShaftWidth)
	case c.InnerWallGap <= 0 || c.OuterWallGap <= c.InnerWallGap:
		return fmt.Errorf("wall gaps must satisfy 0 < inner (%d) < outer (%d)", c.InnerWallGap, c.OuterWallGap)
	case c.AllocatorColumns <= 0:
		return fmt.Errorf("allocator_columns must be positive, got %d", c.AllocatorColumns)
	case c.AllocatorSpacing <= c.ShaftWidth+2*c.OuterWallGap:
		return fmt.Errorf("allocator_spacing %d overlaps neighbouring wall boxes (need > %d)",
			c.AllocatorSpacing, c.ShaftWidth+2*c.OuterWallGap)
	case c.TerminalLevel <= 0:
		return fmt.Errorf("terminal_level must be positive, got %d", c.TerminalLevel)
	case c.Lookahead <= 0 || c.InitialBatch <= 0:
		return fmt.Errorf("lookahead (%d) and initial_batch (%d) must be positive", c.Lookahead, c.InitialBatch)
	case c.ResetRange < 0:
		return fmt.Errorf("reset_range must not be negative, got %d", c.ResetRange)
	case c.BasicChestHits <= 0 || c.GoldenChestHits <= 0:
		return fmt.Errorf("chest hit counts must be positive")
	case c.ProbeDistance <= 0:
		return fmt.Errorf("probe_distance must be positive")
	}
	return nil
}
