package mining

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/annel0/deepmine/internal/vec"
	"github.com/annel0/deepmine/internal/world"
	"github.com/annel0/deepmine/internal/world/block"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const swing = 400 * time.Millisecond // интервал удара при BaseSwingRate 2.5

var basicProgress = Progress{Power: 50, DamageMultiplier: 1}

func TestEnterMineBuildsShaft(t *testing.T) {
	env := newTestEnv(t, testConfig())
	info := env.enter(t, 1, basicProgress)

	assert.Equal(t, RegionOffset{X: 64, Z: 0}, info.Offset, "первый слот региона 0")
	assert.Equal(t, 0, info.CurrentLevel)
	assert.Equal(t, 39, info.DeepestGenerated, "первая пачка — 40 уровней")
	assert.Equal(t, 39, info.FloorLevel)
	assert.True(t, info.CeilingBuilt)
	assert.Equal(t, StateActive.String(), info.State)

	off := info.Offset
	b := env.sys.Builder()

	t.Run("Уровень 0 заполнен рудой", func(t *testing.T) {
		for x := off.X; x < off.X+4; x++ {
			for z := off.Z; z < off.Z+4; z++ {
				for y := -2; y <= 0; y++ {
					id, ok := env.grid.Block(vec.Vec3{X: x, Y: y, Z: z})
					require.True(t, ok, "ячейка (%d,%d,%d) пуста", x, y, z)
					assert.Greater(t, id, block.OreBlockBase)
					assert.Less(t, id, block.BasicChestBlockID)
				}
			}
		}
	})

	t.Run("Стены двух коробок", func(t *testing.T) {
		wall := block.WallMaterial(0)
		id, _ := env.grid.Block(vec.Vec3{X: off.X - 1, Y: 0, Z: off.Z})
		assert.Equal(t, wall, id, "внутренняя стена")
		id, _ = env.grid.Block(vec.Vec3{X: off.X + 4 + 9, Y: -50, Z: off.Z + 2})
		assert.Equal(t, wall, id, "внешняя стена")
		_, ok := env.grid.Block(vec.Vec3{X: off.X - 2, Y: 0, Z: off.Z})
		assert.False(t, ok, "между коробками пусто")
	})

	t.Run("Крышка и дно", func(t *testing.T) {
		id, _ := env.grid.Block(vec.Vec3{X: off.X, Y: 9, Z: off.Z})
		assert.Equal(t, block.CeilingBlockID, id, "верхняя крышка")
		id, _ = env.grid.Block(vec.Vec3{X: off.X - 2, Y: 1, Z: off.Z - 2})
		assert.Equal(t, block.CeilingBlockID, id, "перекрытие полости")
		_, ok := env.grid.Block(vec.Vec3{X: off.X, Y: 1, Z: off.Z})
		assert.False(t, ok, "вход в шахту открыт")

		floorY := b.FloorRow(39)
		assert.Equal(t, -129, floorY)
		id, _ = env.grid.Block(vec.Vec3{X: off.X - 2, Y: floorY, Z: off.Z - 2})
		assert.Equal(t, block.BedrockBlockID, id)
	})

	t.Run("Игрок стоит на уровне 0", func(t *testing.T) {
		pos, ok := env.bodies.Position(1)
		require.True(t, ok)
		assert.Equal(t, vec.Vec3Float{X: 66, Y: 1, Z: 2}, pos)
	})

	t.Run("Повторный вход ничего не перегенерирует", func(t *testing.T) {
		before := env.state(t, 1, 0).contents[5]
		again := env.enter(t, 1, basicProgress)
		assert.Equal(t, info.Offset, again.Offset)
		assert.Same(t, before, env.state(t, 1, 0).contents[5])
		assert.Equal(t, 1, env.sys.ActiveSessions())
	})
}

func TestEnterMineRequiresProgress(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()

	_, err := env.sys.EnterMine(ctx, 7)
	assert.ErrorIs(t, err, ErrNoProgress)
	assert.Equal(t, HitNoProgress, env.sys.HandleHit(ctx, 7))

	env.progress.set(7, basicProgress)
	assert.Equal(t, HitNoSession, env.sys.HandleHit(ctx, 7), "прогресс есть, сессии нет")
	assert.Equal(t, 0, env.sink.damageCount())

	_, err = env.sys.ResetMine(ctx, 7)
	assert.ErrorIs(t, err, ErrNoSession)
	_, err = env.sys.StartLoop(ctx, 7)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestRegionsGetSeparateShafts(t *testing.T) {
	env := newTestEnv(t, testConfig())
	first := env.enter(t, 1, Progress{Power: 10, WorldRegion: 0})
	second := env.enter(t, 1, Progress{Power: 10, WorldRegion: 3})

	assert.NotEqual(t, first.Offset, second.Offset)
	assert.Equal(t, 2, env.sys.ActiveSessions())
	assert.Equal(t, block.WallMaterial(3), mustBlock(t, env, second.Offset.X-1, 0, second.Offset.Z))
}

func TestHitRateLimit(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.enter(t, 1, basicProgress)
	env.place(t, 1, 0, 0, NewOreContent(OreStone, 1000))

	assert.Equal(t, HitDamaged, env.hitAfter(1, 0))
	assert.Equal(t, HitTooSoon, env.hitAfter(1, 0), "второй удар в тот же момент")
	assert.Equal(t, HitTooSoon, env.hitAfter(1, swing-time.Millisecond))
	assert.Equal(t, 1, env.sink.damageCount(), "ровно одно событие урона")

	assert.Equal(t, HitDamaged, env.hitAfter(1, time.Millisecond))
	assert.Equal(t, 2, env.sink.damageCount())
	assert.Equal(t, 900, env.state(t, 1, 0).contents[0].CurrentHealth)
}

func TestSwingSpeedBonus(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.enter(t, 1, Progress{Power: 1, ToolSpeedBonusPercent: 100})
	env.place(t, 1, 0, 0, NewOreContent(OreStone, 1000))

	assert.Equal(t, HitDamaged, env.hitAfter(1, 0))
	assert.Equal(t, HitDamaged, env.hitAfter(1, 200*time.Millisecond), "бонус скорости 100% вдвое сокращает интервал")
}

func TestHealthNeverIncreases(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.enter(t, 1, Progress{Power: 37, DamageMultiplier: 1})
	env.place(t, 1, 0, 0, NewOreContent(OreCoal, 1000))

	prev := 1000
	for i := 0; i < 40; i++ {
		result := env.hitAfter(1, swing)
		if result == HitDestroyed {
			break
		}
		require.Equal(t, HitDamaged, result)
		ev := env.sink.lastDamage()
		assert.LessOrEqual(t, ev.CurrentHealth, prev)
		assert.GreaterOrEqual(t, ev.CurrentHealth, 0)
		prev = ev.CurrentHealth
	}
	assert.Equal(t, 0, env.sink.lastDamage().CurrentHealth, "последний удар прижат к нулю")
	assert.Equal(t, 1, env.state(t, 1, 0).currentLevel)
}

func TestDestroyOreAdvancesLevel(t *testing.T) {
	env := newTestEnv(t, testConfig())
	info := env.enter(t, 1, basicProgress)
	env.place(t, 1, 0, 0, NewOreContent(OreIron, 50))

	require.Equal(t, HitDestroyed, env.hitAfter(1, 0))

	st := env.state(t, 1, 0)
	assert.Equal(t, 1, st.currentLevel)
	_, exists := st.contents[0]
	assert.False(t, exists, "содержимое разрушенного уровня удалено")

	assert.Equal(t, 1, env.progress.oreCount(1))
	require.Len(t, env.sink.ores, 1)
	assert.Equal(t, OreIron, env.sink.ores[0].ore)
	assert.Equal(t, 1, env.sink.ores[0].amount)

	_, ok := env.grid.Block(vec.Vec3{X: info.Offset.X + 1, Y: -1, Z: info.Offset.Z + 1})
	assert.False(t, ok, "область уровня 0 стёрта")
	assert.Equal(t, block.WallMaterial(0), mustBlock(t, env, info.Offset.X-1, -1, info.Offset.Z), "стены остались")

	pos, _ := env.bodies.Position(1)
	assert.Equal(t, env.sys.Builder().SpawnPoint(info.Offset, 1), pos, "игрок перенесён на уровень 1")

	env.place(t, 1, 0, 1, NewOreContent(OreStone, 1000))
	assert.Equal(t, HitDamaged, env.hitAfter(1, swing), "удар после телепорта попадает в уровень 1")
	assert.Equal(t, 1, env.sink.lastDamage().Level)
}

func TestLookaheadAndFloorFollowPlayer(t *testing.T) {
	env := newTestEnv(t, testConfig())
	info := env.enter(t, 1, Progress{Power: 1e6})
	b := env.sys.Builder()
	oldFloor := b.FloorRow(39)

	for i := 0; i < 25; i++ {
		require.Equal(t, HitDestroyed, env.hitAfter(1, swing), "удар %d", i)
	}

	st := env.state(t, 1, 0)
	assert.Equal(t, 25, st.currentLevel)
	assert.Equal(t, 45, st.deepestGenerated, "окно опережения — 20 уровней")
	assert.Equal(t, 45, st.floorLevel)
	for level := 25; level <= 45; level++ {
		assert.Contains(t, st.contents, level)
	}

	off := info.Offset
	_, ok := env.grid.Block(vec.Vec3{X: off.X - 2, Y: oldFloor, Z: off.Z - 2})
	assert.False(t, ok, "старое дно убрано")
	assert.Equal(t, block.BedrockBlockID, mustBlock(t, env, off.X-2, b.FloorRow(45), off.Z-2))
	assert.Equal(t, 25, env.progress.oreCount(1))
}

func TestChestScenario(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.enter(t, 1, basicProgress)
	env.place(t, 1, 0, 0, NewChestContent(ChestBasic))

	preview, err := env.sys.DetectCurrentBlock(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "chest", preview.KindName)
	assert.Equal(t, "basic", preview.Chest)
	assert.Equal(t, 0, preview.MaxHealth, "прочность сундука не задана до первого удара")

	require.Equal(t, HitDamaged, env.hitAfter(1, 0))
	ev := env.sink.lastDamage()
	assert.Equal(t, 150, ev.MaxHealth)
	assert.Equal(t, 100, ev.CurrentHealth)
	assert.True(t, ev.IsChest)
	assert.Equal(t, "basic", ev.ChestKind)
	assert.Equal(t, 2, ev.RewardAmount)

	// другая сила не меняет уже заданную прочность
	env.progress.set(1, Progress{Power: 50, DamageMultiplier: 1})
	require.Equal(t, HitDamaged, env.hitAfter(1, swing))
	assert.Equal(t, 150, env.sink.lastDamage().MaxHealth)
	assert.Equal(t, 50, env.sink.lastDamage().CurrentHealth)

	require.Equal(t, HitDestroyed, env.hitAfter(1, swing))
	assert.Equal(t, 0, env.sink.lastDamage().CurrentHealth)
	assert.Equal(t, []int{2}, env.sink.chests)
	assert.Equal(t, 2, env.progress.currency[1])
	assert.Empty(t, env.sink.ores, "сундук не даёт руду")
	assert.Equal(t, 1, env.state(t, 1, 0).currentLevel)
}

func TestGoldenChestHealthAndReward(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.enter(t, 1, Progress{Power: 10})
	env.place(t, 1, 0, 0, NewChestContent(ChestGolden))

	require.Equal(t, HitDamaged, env.hitAfter(1, 0))
	assert.Equal(t, 60, env.sink.lastDamage().MaxHealth)
	assert.Equal(t, 10, env.sink.lastDamage().RewardAmount)

	// другая сила после первого удара
	env.progress.set(1, Progress{Power: 100})
	require.Equal(t, HitDestroyed, env.hitAfter(1, swing))
	assert.Equal(t, []int{10}, env.sink.chests)
}

func TestMissingContentCreatesFallback(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.enter(t, 1, Progress{Power: 1e6})
	require.Equal(t, HitDestroyed, env.hitAfter(1, 0))

	// рассинхрон: игрок снова на уровне 0, блоки есть, а содержимого нет
	env.sys.mu.Lock()
	st := env.sys.session(1, 0)
	st.currentLevel = 0
	env.sys.builder.WriteLevel(st.offset, st.regionID, 0, block.OreBlockID(uint8(OreStone)), false)
	env.sys.mu.Unlock()
	require.NoError(t, env.bodies.Teleport(1, env.sys.Builder().SpawnPoint(st.offset, 0)))

	_, exists := env.state(t, 1, 0).contents[0]
	require.False(t, exists)

	assert.Equal(t, HitDestroyed, env.hitAfter(1, swing), "запасной блок создан и разрушен")
	assert.Equal(t, 2, env.progress.oreCount(1))
}

func TestHitRejections(t *testing.T) {
	env := newTestEnv(t, testConfig())
	info := env.enter(t, 1, basicProgress)
	off := info.Offset

	t.Run("Нет цели", func(t *testing.T) {
		require.NoError(t, env.bodies.Teleport(1, vec.Vec3Float{X: 66, Y: 50, Z: 2}))
		assert.Equal(t, HitNoTarget, env.hitAfter(1, swing))
	})

	t.Run("Цель вне области", func(t *testing.T) {
		require.NoError(t, env.bodies.Teleport(1, vec.Vec3Float{X: float64(off.X) - 0.5, Y: 0.5, Z: float64(off.Z) + 0.5}))
		assert.Equal(t, HitOutOfFootprint, env.hitAfter(1, swing))
	})

	t.Run("Цель на другом уровне", func(t *testing.T) {
		require.NoError(t, env.bodies.Teleport(1, env.sys.Builder().SpawnPoint(off, 3)))
		assert.Equal(t, HitWrongLevel, env.hitAfter(1, swing))
	})

	t.Run("Повреждённое содержимое", func(t *testing.T) {
		require.NoError(t, env.bodies.Teleport(1, env.sys.Builder().SpawnPoint(off, 0)))
		env.place(t, 1, 0, 0, &Content{Kind: KindOre, Ore: OreStone, MaxHealth: 10, CurrentHealth: 20})
		assert.Equal(t, HitCorrupt, env.hitAfter(1, swing))
	})

	assert.Equal(t, 0, env.sink.damageCount(), "отклонённые удары не дают событий")
	assert.Equal(t, 0, env.state(t, 1, 0).currentLevel)
}

func TestWinTriggersOnce(t *testing.T) {
	cfg := testConfig()
	cfg.TerminalLevel = 5
	env := newTestEnv(t, cfg)
	info := env.enter(t, 1, Progress{Power: 1e6})
	assert.Equal(t, 5, info.DeepestGenerated, "генерация не идёт глубже финального уровня")
	assert.Equal(t, KindWin, env.state(t, 1, 0).contents[5].Kind)

	for i := 0; i < 5; i++ {
		require.Equal(t, HitDestroyed, env.hitAfter(1, swing))
	}
	assert.Equal(t, []uint64{1}, env.sink.wins, "победа при входе на финальный уровень")
	damageBefore := env.sink.damageCount()

	for i := 0; i < 3; i++ {
		assert.Equal(t, HitWin, env.hitAfter(1, swing))
	}
	assert.Len(t, env.sink.wins, 1, "победа срабатывает один раз")
	assert.Equal(t, damageBefore, env.sink.damageCount(), "финальный блок не получает урон")
	require.Len(t, env.sink.previews, 3)
	assert.Equal(t, "win", env.sink.previews[0].KindName)

	win := env.state(t, 1, 0).contents[5]
	assert.Equal(t, math.MaxInt32, win.CurrentHealth)

	t.Run("Сброс разрешает новую победу", func(t *testing.T) {
		_, err := env.sys.ResetMine(context.Background(), 1)
		require.NoError(t, err)
		for i := 0; i < 5; i++ {
			require.Equal(t, HitDestroyed, env.hitAfter(1, swing))
		}
		assert.Len(t, env.sink.wins, 2)
	})
}

func TestResetMine(t *testing.T) {
	env := newTestEnv(t, testConfig())
	info := env.enter(t, 1, basicProgress)
	b := env.sys.Builder()

	env.sys.mu.Lock()
	st := env.sys.session(1, 0)
	st.currentLevel = 120
	env.sys.ensureGenerated(st, 120, 0)
	deep := st.contents[100]
	env.sys.mu.Unlock()
	require.NotNil(t, deep)

	_, err := env.sys.StartLoop(context.Background(), 1)
	require.NoError(t, err)

	after, err := env.sys.ResetMine(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, info.Offset, after.Offset, "сдвиг сохраняется")
	assert.Equal(t, 0, after.CurrentLevel)
	assert.Equal(t, 39, after.DeepestGenerated)
	assert.Equal(t, 140, after.FloorLevel, "дно не поднимается")
	assert.False(t, after.WinTriggered)
	assert.Equal(t, StateActive.String(), after.State, "сброс останавливает автоудар")

	st = env.state(t, 1, 0)
	for level := 0; level <= 39; level++ {
		assert.Contains(t, st.contents, level)
	}
	for level := 40; level <= 80; level++ {
		assert.NotContains(t, st.contents, level)
	}
	assert.Same(t, deep, st.contents[100], "дальние уровни не трогаются")

	off := info.Offset
	top60, _ := b.LevelRows(60)
	_, ok := env.grid.Block(vec.Vec3{X: off.X, Y: top60, Z: off.Z})
	assert.False(t, ok, "уровень 60 стёрт")
	top100, _ := b.LevelRows(100)
	_, ok = env.grid.Block(vec.Vec3{X: off.X, Y: top100, Z: off.Z})
	assert.True(t, ok, "уровень 100 на месте")
	assert.Equal(t, block.BedrockBlockID, mustBlock(t, env, off.X-2, b.FloorRow(140), off.Z-2))

	pos, _ := env.bodies.Position(1)
	assert.Equal(t, b.SpawnPoint(off, 0), pos)
	assert.True(t, env.hitAfter(1, swing).Applied(), "после сброса можно копать уровень 0")
}

func TestHoldLoop(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.enter(t, 1, basicProgress)
	env.place(t, 1, 0, 0, NewOreContent(OreStone, 100000))
	ctx := context.Background()

	result, err := env.sys.StartLoop(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, HitDamaged, result, "первый удар сразу")
	assert.Equal(t, StateLooping, env.sys.State(1, 0))
	armed := env.sched.armed()
	require.Len(t, armed, 1)
	assert.Equal(t, swing, armed[0].delay)

	info, _ := env.sys.Session(1, 0)
	assert.NotNil(t, info.Target)

	// каждый тик засчитывается и взводит следующий ровно через интервал
	for i := 0; i < 5; i++ {
		env.clock.Advance(swing)
		env.sched.fire()
		armed = env.sched.armed()
		require.Len(t, armed, 1)
		assert.Equal(t, swing, armed[0].delay)
	}
	assert.Equal(t, 6, env.sink.damageCount(), "пять интервалов: шесть ударов")

	t.Run("Ручной удар сдвигает следующий тик", func(t *testing.T) {
		assert.Equal(t, HitDamaged, env.hitAfter(1, swing))
		env.clock.Advance(swing / 2)
		env.sched.fire()
		assert.Equal(t, 7, env.sink.damageCount())

		armed := env.sched.armed()
		require.Len(t, armed, 1)
		assert.Equal(t, swing/2, armed[0].delay, "тик ждёт остаток интервала")

		env.clock.Advance(swing / 2)
		env.sched.fire()
		assert.Equal(t, 8, env.sink.damageCount())
	})

	t.Run("Повторный запуск заменяет цикл", func(t *testing.T) {
		old := env.sched.armed()
		require.Len(t, old, 1)

		env.clock.Advance(swing)
		_, err := env.sys.StartLoop(ctx, 1)
		require.NoError(t, err)
		assert.True(t, old[0].isStopped())
		assert.Equal(t, 9, env.sink.damageCount())

		env.clock.Advance(swing)
		before := len(env.sched.armed())
		old[0].fn() // запоздавший тик старого цикла
		assert.Equal(t, 9, env.sink.damageCount())
		assert.Len(t, env.sched.armed(), before, "старый цикл не перевзводится")
	})

	t.Run("Остановка", func(t *testing.T) {
		armed := env.sched.armed()
		require.Len(t, armed, 1)

		env.sys.StopLoop(1)
		assert.True(t, armed[0].isStopped())
		assert.Empty(t, env.sched.armed())
		assert.Equal(t, StateActive, env.sys.State(1, 0))
		info, _ := env.sys.Session(1, 0)
		assert.Nil(t, info.Target)

		env.clock.Advance(swing)
		armed[0].fn()
		assert.Equal(t, 9, env.sink.damageCount(), "тик после остановки ничего не делает")
		assert.Empty(t, env.sched.armed())
	})

	t.Run("Отключение", func(t *testing.T) {
		env.clock.Advance(swing)
		_, err := env.sys.StartLoop(ctx, 1)
		require.NoError(t, err)
		armed := env.sched.armed()
		require.Len(t, armed, 1)
		env.sys.Disconnect(1)

		assert.True(t, armed[0].isStopped())
		assert.Equal(t, StateIdle, env.sys.State(1, 0))
		assert.Equal(t, 0, env.sys.ActiveSessions())
		assert.Equal(t, HitNoSession, env.hitAfter(1, swing))
	})
}

func TestDisconnectRemovesBody(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.enter(t, 1, basicProgress)
	env.enter(t, 2, basicProgress)
	require.Equal(t, 2, env.bodies.Count())

	env.sys.Disconnect(1)
	_, ok := env.bodies.Position(1)
	assert.False(t, ok, "тело отключившегося игрока удалено")
	assert.Equal(t, 1, env.bodies.Count())

	// повторный вход снова ставит тело в шахту
	info := env.enter(t, 1, basicProgress)
	pos, ok := env.bodies.Position(1)
	require.True(t, ok)
	assert.Equal(t, env.sys.Builder().SpawnPoint(info.Offset, 0), pos)
}

func TestRestoreAllocationsAfterRestart(t *testing.T) {
	before := newTestEnv(t, testConfig())
	first := before.enter(t, 1, basicProgress)
	second := before.enter(t, 2, basicProgress)
	saved := before.sys.Allocations()
	require.Len(t, saved, 2)

	// после перезапуска сетка восстановлена из снапшота, слоты тоже
	after := newTestEnv(t, testConfig(), func(d *Deps) { d.Grid = before.grid })
	assert.Equal(t, 0, after.sys.RestoreAllocations(saved))

	newcomer := after.enter(t, 3, basicProgress)
	assert.NotEqual(t, first.Offset, newcomer.Offset, "новый игрок не получает чужой слот")
	assert.NotEqual(t, second.Offset, newcomer.Offset)

	back := after.enter(t, 1, basicProgress)
	assert.Equal(t, first.Offset, back.Offset, "вернувшийся игрок получает свою шахту")
	assert.Len(t, after.sys.Allocations(), 3)
}

func TestHoldLoopWithoutTarget(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.enter(t, 1, basicProgress)
	ctx := context.Background()

	_, err := env.sys.StartLoop(ctx, 1)
	require.NoError(t, err)

	// тело игрока унесли из шахты: удары не засчитываются, но цикл
	// не крутится вхолостую и ждёт полный интервал
	require.NoError(t, env.bodies.Teleport(1, vec.Vec3Float{X: -500, Y: 10, Z: -500}))
	env.clock.Advance(swing * 3)
	env.sched.fire()

	armed := env.sched.armed()
	require.Len(t, armed, 1)
	assert.Equal(t, swing, armed[0].delay)
	assert.Equal(t, StateLooping, env.sys.State(1, 0))
}

func TestGridFailuresAreBestEffort(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	env := newTestEnv(t, testConfig(), func(d *Deps) {
		d.Grid = &failingGrid{
			Grid:   d.Grid.(*world.Grid),
			reject: func(pos vec.Vec3) bool { return pos.Y > 0 },
		}
		d.Metrics = metrics
	})

	info := env.enter(t, 1, basicProgress)
	assert.True(t, info.CeilingBuilt, "крышка отмечена построенной даже при ошибках записи")
	assert.Greater(t, testutil.ToFloat64(metrics.gridWriteFailures), 0.0)
	assert.Equal(t, HitDamaged, env.hitAfter(1, 0), "шахта работает несмотря на ошибки сетки")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.sessions))
}

func TestDamageAndSwingInterval(t *testing.T) {
	env := newTestEnv(t, testConfig())
	s := env.sys

	tests := []struct {
		name string
		prog Progress
		want int
	}{
		{"Сила как урон", Progress{Power: 50}, 50},
		{"Множитель", Progress{Power: 50, DamageMultiplier: 1.5}, 75},
		{"Округление", Progress{Power: 10, DamageMultiplier: 1.26}, 13},
		{"Множитель NaN", Progress{Power: 20, DamageMultiplier: math.NaN()}, 20},
		{"Отрицательный множитель", Progress{Power: 20, DamageMultiplier: -3}, 20},
		{"Нулевая сила", Progress{Power: 0}, 1},
		{"Сила NaN", Progress{Power: math.NaN()}, 1},
		{"Бесконечная сила", Progress{Power: math.Inf(1)}, maxDamage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.damage(tt.prog))
		})
	}

	assert.Equal(t, swing, s.swingInterval(Progress{}))
	assert.Equal(t, 200*time.Millisecond, s.swingInterval(Progress{ToolSpeedBonusPercent: 100}))
	assert.Equal(t, swing, s.swingInterval(Progress{ToolSpeedBonusPercent: -100}), "нулевая скорость заменяется базовой")
	assert.Equal(t, swing, s.swingInterval(Progress{ToolSpeedBonusPercent: math.NaN()}))
}

func TestNewSystemValidation(t *testing.T) {
	_, err := NewSystem(DefaultConfig(), Deps{})
	assert.Error(t, err, "без зависимостей")

	cfg := DefaultConfig()
	cfg.AllocatorSpacing = 20
	_, err = NewSystem(cfg, Deps{Progress: newFakeProgress()})
	assert.Error(t, err, "шахты соседей пересекались бы")
}

func mustBlock(t *testing.T, env *testEnv, x, y, z int) block.BlockID {
	t.Helper()
	id, ok := env.grid.Block(vec.Vec3{X: x, Y: y, Z: z})
	require.True(t, ok, "ячейка (%d,%d,%d) пуста", x, y, z)
	return id
}
