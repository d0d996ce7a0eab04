package mining

import (
	"context"
	"math"
	"time"

	"github.com/annel0/deepmine/internal/vec"
)

// maxDamage ограничивает урон, чтобы прочность сундука (урон × удары) не переполнилась
const maxDamage = 1 << 27

// DamageCurve переводит силу игрока в базовый урон
type DamageCurve func(power float64) float64

// IdentityDamageCurve: урон равен силе
func IdentityDamageCurve(power float64) float64 { return power }

// hit обрабатывает один удар игрока по текущему уровню. Вызывается под блокировкой.
func (s *System) hit(ctx context.Context, st *playerState, prog Progress) HitResult {
	now := s.now()
	if !st.lastHit.IsZero() && now.Sub(st.lastHit) < s.swingInterval(prog) {
		return HitTooSoon
	}

	cell, ok := s.probe(st)
	if !ok {
		return HitNoTarget
	}
	if !s.builder.InFootprint(st.offset, cell) {
		return HitOutOfFootprint
	}
	level, ok := s.builder.LevelOfRow(cell.Y)
	if !ok || level != st.currentLevel {
		return HitWrongLevel
	}

	c, ok := st.contents[level]
	if !ok {
		c = s.rollOre(level, prog.Luck())
		st.contents[level] = c
		s.log.Debug("⛏️ Игрок %d: нет содержимого уровня %d, создан запасной блок %s", st.playerID, level, c.Kind)
	}

	if c.Kind == KindWin {
		st.lastHit = now
		s.events.BlockPreview(ctx, st.playerID, previewOf(level, c))
		s.triggerWin(ctx, st)
		return HitWin
	}

	damage := s.damage(prog)
	if c.Kind == KindChest && !c.HealthInitialized() {
		c.MaxHealth = damage * s.chestHits(c.Chest)
		c.CurrentHealth = c.MaxHealth
	}
	if !c.Valid() {
		s.log.Warn("⚠️ Игрок %d: повреждённое содержимое уровня %d (hp %d/%d), удар пропущен",
			st.playerID, level, c.CurrentHealth, c.MaxHealth)
		return HitCorrupt
	}

	c.CurrentHealth -= damage
	if c.CurrentHealth < 0 {
		c.CurrentHealth = 0
	}
	st.lastHit = now
	if st.loop != nil {
		target := cell
		st.target = &target
	}

	ev := DamageEvent{
		PlayerID:      st.playerID,
		Level:         level,
		Damage:        damage,
		Kind:          c.Kind,
		KindName:      c.Kind.String(),
		CurrentHealth: c.CurrentHealth,
		MaxHealth:     c.MaxHealth,
	}
	switch c.Kind {
	case KindOre:
		ev.Ore = c.Ore.String()
	case KindChest:
		ev.IsChest = true
		ev.ChestKind = c.Chest.String()
		ev.RewardAmount = s.chestReward(c.Chest)
	}
	s.events.DamageDealt(ctx, ev)

	if c.CurrentHealth > 0 {
		return HitDamaged
	}
	s.destroy(ctx, st, level, c, prog)
	return HitDestroyed
}

// destroy выдаёт награду, стирает уровень и переводит игрока на следующий
func (s *System) destroy(ctx context.Context, st *playerState, level int, c *Content, prog Progress) {
	switch c.Kind {
	case KindOre:
		pctx, cancel := s.progressContext(ctx)
		if err := s.progress.AddOre(pctx, st.playerID, c.Ore, 1); err != nil {
			s.log.Warn("⚠️ Игрок %d: не удалось начислить руду %s: %v", st.playerID, c.Ore, err)
		}
		cancel()
		s.events.OreMined(ctx, st.playerID, c.Ore, 1)
	case KindChest:
		reward := s.chestReward(c.Chest)
		pctx, cancel := s.progressContext(ctx)
		if err := s.progress.AddCurrency(pctx, st.playerID, reward); err != nil {
			s.log.Warn("⚠️ Игрок %d: не удалось начислить %d валюты: %v", st.playerID, reward, err)
		}
		cancel()
		s.events.ChestBroken(ctx, st.playerID, reward)
		s.metrics.chestBroken(c.Chest)
	}
	s.metrics.blockDestroyed(c.Kind)

	delete(st.contents, level)
	s.builder.EraseLevel(st.offset, level)
	st.currentLevel = level + 1
	st.target = nil

	s.ensureGenerated(st, st.currentLevel, prog.Luck())
	if st.currentLevel >= s.cfg.TerminalLevel {
		s.triggerWin(ctx, st)
	}
	s.teleport(st)
}

// triggerWin отправляет событие победы не больше одного раза до сброса
func (s *System) triggerWin(ctx context.Context, st *playerState) {
	if st.winTriggered {
		return
	}
	st.winTriggered = true
	s.metrics.win()
	s.log.Info("🏆 Игрок %d достиг финального уровня %d", st.playerID, s.cfg.TerminalLevel)
	s.events.WinReached(ctx, st.playerID)
}

// probe ищет блок под ногами игрока
func (s *System) probe(st *playerState) (vec.Vec3, bool) {
	origin, ok := s.bodies.Position(st.playerID)
	if !ok || !origin.IsFinite() {
		origin = s.builder.SpawnPoint(st.offset, st.currentLevel)
	}
	return s.grid.Probe(origin, vec.Down, s.cfg.ProbeDistance)
}

func (s *System) teleport(st *playerState) {
	pos := s.builder.SpawnPoint(st.offset, st.currentLevel)
	if err := s.bodies.Teleport(st.playerID, pos); err != nil {
		s.log.Debug("Игрок %d: телепорт на уровень %d не выполнен: %v", st.playerID, st.currentLevel, err)
	}
}

// swingInterval: минимальный интервал между ударами
func (s *System) swingInterval(prog Progress) time.Duration {
	rate := s.cfg.BaseSwingRate * (1 + prog.ToolSpeedBonusPercent/100)
	if !isPositiveFinite(rate) {
		rate = s.cfg.BaseSwingRate
		if !isPositiveFinite(rate) {
			rate = DefaultConfig().BaseSwingRate
		}
	}
	return time.Duration(float64(time.Second) / rate)
}

// damage вычисляет урон удара; некорректные значения заменяются безопасными
func (s *System) damage(prog Progress) int {
	mult := prog.DamageMultiplier
	if !isPositiveFinite(mult) {
		mult = 1
	}
	d := math.Round(s.curve(prog.Power) * mult)
	if math.IsNaN(d) || d < 1 {
		return s.fallbackDamage()
	}
	if d > maxDamage {
		return maxDamage
	}
	return int(d)
}

func (s *System) fallbackDamage() int {
	if s.cfg.FallbackDamage < 1 {
		return 1
	}
	return s.cfg.FallbackDamage
}

func (s *System) chestHits(kind ChestKind) int {
	if kind == ChestGolden {
		return s.cfg.GoldenChestHits
	}
	return s.cfg.BasicChestHits
}

func (s *System) chestReward(kind ChestKind) int {
	if kind == ChestGolden {
		return s.cfg.GoldenChestReward
	}
	return s.cfg.BasicChestReward
}

func (s *System) progressContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.ProgressTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.ProgressTimeout)
}

func isPositiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
