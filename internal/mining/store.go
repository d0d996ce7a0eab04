package mining

// Хранилище содержимого уровней и генерация с опережением.
// Все функции вызываются под блокировкой System.

// rollContent бросает содержимое нового уровня
func (s *System) rollContent(level int, luck float64) *Content {
	if level == s.cfg.TerminalLevel {
		return NewWinContent()
	}
	depth := level + 1
	if chest := s.chests.Roll(s.rng, depth); chest != ChestNone {
		return NewChestContent(chest)
	}
	return s.rollOre(level, luck)
}

// rollOre создаёт руду без броска сундука (используется и как запасной блок)
func (s *System) rollOre(level int, luck float64) *Content {
	if level == s.cfg.TerminalLevel {
		return NewWinContent()
	}
	depth := level + 1
	ore := s.ores.Generate(s.rng, depth, luck)
	return NewOreContent(ore, s.ores.Health(ore, depth))
}

// materialize создаёт (если нужно) содержимое уровня и пишет его в сетку.
// Уже брошенное содержимое не перебрасывается до сброса шахты.
func (s *System) materialize(st *playerState, level int, luck float64) {
	c, ok := st.contents[level]
	if !ok {
		c = s.rollContent(level, luck)
		st.contents[level] = c
		s.metrics.levelGenerated()
	}

	withWalls := level > st.wallsBuiltTo
	s.builder.WriteLevel(st.offset, st.regionID, level, c.BlockID(), withWalls)
	if withWalls {
		st.wallsBuiltTo = level
	}
}

// materializeThrough генерирует уровни от deepestGenerated+1 до last включительно
func (s *System) materializeThrough(st *playerState, last int, luck float64) {
	if last > s.cfg.TerminalLevel {
		last = s.cfg.TerminalLevel
	}
	if last <= st.deepestGenerated {
		return
	}
	for level := st.deepestGenerated + 1; level <= last; level++ {
		s.materialize(st, level, luck)
	}
	st.deepestGenerated = last
	s.updateFloor(st)
}

// ensureGenerated держит окно Lookahead уровней ниже target
func (s *System) ensureGenerated(st *playerState, target int, luck float64) {
	s.materializeThrough(st, target+s.cfg.Lookahead, luck)
}

// generateInitial строит крышку (один раз) и первую пачку уровней
func (s *System) generateInitial(st *playerState, luck float64) {
	if !st.ceilingBuilt {
		s.builder.BuildCeiling(st.offset, st.regionID)
		st.ceilingBuilt = true
	}
	s.materializeThrough(st, s.cfg.InitialBatch-1, luck)
}

// updateFloor переносит дно под самый глубокий уровень; дно только опускается
func (s *System) updateFloor(st *playerState) {
	if st.deepestGenerated < 0 || st.floorLevel >= st.deepestGenerated {
		return
	}
	if st.floorLevel >= 0 {
		s.builder.EraseFloor(st.offset, s.builder.FloorRow(st.floorLevel))
	}
	s.builder.BuildFloor(st.offset, s.builder.FloorRow(st.deepestGenerated))
	st.floorLevel = st.deepestGenerated
}

// clearNearLevels стирает содержимое и блоки уровней 0..limit.
// Более глубокие уровни не трогаются.
func (s *System) clearNearLevels(st *playerState) {
	limit := s.cfg.ResetRange
	if deepest := max(st.deepestGenerated, st.currentLevel); deepest < limit {
		limit = deepest
	}
	for level := 0; level <= limit; level++ {
		delete(st.contents, level)
		s.builder.EraseLevel(st.offset, level)
	}
}
