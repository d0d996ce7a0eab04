package mining

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/annel0/deepmine/internal/logging"
	"github.com/annel0/deepmine/internal/vec"
	"github.com/annel0/deepmine/internal/world"
	"github.com/annel0/deepmine/internal/world/block"
	"github.com/stretchr/testify/require"
)

// fakeProgress: прогресс игроков в памяти
type fakeProgress struct {
	mu       sync.Mutex
	players  map[uint64]Progress
	ores     map[uint64]map[OreType]int
	currency map[uint64]int
	failLoad error
}

func newFakeProgress() *fakeProgress {
	return &fakeProgress{
		players:  make(map[uint64]Progress),
		ores:     make(map[uint64]map[OreType]int),
		currency: make(map[uint64]int),
	}
}

func (p *fakeProgress) set(playerID uint64, prog Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.players[playerID] = prog
}

func (p *fakeProgress) Load(_ context.Context, playerID uint64) (Progress, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failLoad != nil {
		return Progress{}, false, p.failLoad
	}
	prog, ok := p.players[playerID]
	return prog, ok, nil
}

func (p *fakeProgress) AddOre(_ context.Context, playerID uint64, ore OreType, amount int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ores[playerID] == nil {
		p.ores[playerID] = make(map[OreType]int)
	}
	p.ores[playerID][ore] += amount
	return nil
}

func (p *fakeProgress) AddCurrency(_ context.Context, playerID uint64, amount int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currency[playerID] += amount
	return nil
}

func (p *fakeProgress) oreCount(playerID uint64) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.ores[playerID] {
		n += c
	}
	return n
}

type oreEvent struct {
	player uint64
	ore    OreType
	amount int
}

// recordingSink запоминает все события
type recordingSink struct {
	mu       sync.Mutex
	ores     []oreEvent
	damage   []DamageEvent
	chests   []int
	wins     []uint64
	previews []Preview
}

func (r *recordingSink) OreMined(_ context.Context, playerID uint64, ore OreType, amount int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ores = append(r.ores, oreEvent{player: playerID, ore: ore, amount: amount})
}

func (r *recordingSink) DamageDealt(_ context.Context, ev DamageEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.damage = append(r.damage, ev)
}

func (r *recordingSink) ChestBroken(_ context.Context, _ uint64, reward int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chests = append(r.chests, reward)
}

func (r *recordingSink) WinReached(_ context.Context, playerID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wins = append(r.wins, playerID)
}

func (r *recordingSink) BlockPreview(_ context.Context, _ uint64, p Preview) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.previews = append(r.previews, p)
}

func (r *recordingSink) damageCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.damage)
}

func (r *recordingSink) lastDamage() DamageEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.damage[len(r.damage)-1]
}

// fakeClock: управляемые часы
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// manualScheduler запускает колбэки только по вызову fire
type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	mu      sync.Mutex
	delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *manualTimer) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// take помечает таймер сработавшим; false, если он остановлен или уже сработал
func (t *manualTimer) take() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.fired = true
	return true
}

func (s *manualScheduler) After(delay time.Duration, fn func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{delay: delay, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

// fire вызывает колбэки взведённых таймеров по одному разу.
// Таймеры, взведённые во время fire, ждут следующего вызова.
func (s *manualScheduler) fire() {
	s.mu.Lock()
	timers := append([]*manualTimer(nil), s.timers...)
	s.mu.Unlock()
	for _, t := range timers {
		if t.take() {
			t.fn()
		}
	}
}

// armed возвращает таймеры, которые ещё не сработали и не остановлены
func (s *manualScheduler) armed() []*manualTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*manualTimer
	for _, t := range s.timers {
		t.mu.Lock()
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
		t.mu.Unlock()
	}
	return out
}

// failingGrid отклоняет запись в ячейки, для которых reject возвращает true
type failingGrid struct {
	*world.Grid
	reject func(pos vec.Vec3) bool
}

var errGridRejected = errors.New("grid write rejected")

func (g *failingGrid) SetBlock(pos vec.Vec3, id block.BlockID) error {
	if g.reject(pos) {
		return errGridRejected
	}
	return g.Grid.SetBlock(pos, id)
}

func (g *failingGrid) ClearBlock(pos vec.Vec3) error {
	if g.reject(pos) {
		return errGridRejected
	}
	return g.Grid.ClearBlock(pos)
}

// testEnv: система шахт с управляемым окружением
type testEnv struct {
	sys      *System
	grid     *world.Grid
	bodies   *world.Bodies
	progress *fakeProgress
	sink     *recordingSink
	clock    *fakeClock
	sched    *manualScheduler
}

// testConfig: конфигурация без случайных сундуков
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.GoldenChestBase = 0
	cfg.GoldenChestBonus = 0
	cfg.BasicChestBase = 0
	cfg.BasicChestBonus = 0
	return cfg
}

func newTestEnv(t *testing.T, cfg Config, opts ...func(*Deps)) *testEnv {
	t.Helper()

	env := &testEnv{
		grid:     world.NewGrid(),
		bodies:   world.NewBodies(),
		progress: newFakeProgress(),
		sink:     &recordingSink{},
		clock:    &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)},
		sched:    &manualScheduler{},
	}
	deps := Deps{
		Progress:  env.progress,
		Grid:      env.grid,
		Bodies:    env.bodies,
		Events:    env.sink,
		Scheduler: env.sched,
		Clock:     env.clock.Now,
		Rand:      rand.New(rand.NewSource(1)),
		Logger:    logging.NewWriterLogger("mining-test", testWriter{t}, logging.WARN),
	}
	for _, opt := range opts {
		opt(&deps)
	}

	sys, err := NewSystem(cfg, deps)
	require.NoError(t, err)
	env.sys = sys
	return env
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

// enter создаёт игрока с прогрессом и входит в шахту
func (e *testEnv) enter(t *testing.T, playerID uint64, prog Progress) SessionInfo {
	t.Helper()
	e.progress.set(playerID, prog)
	info, err := e.sys.EnterMine(context.Background(), playerID)
	require.NoError(t, err)
	return info
}

// place подменяет содержимое уровня и перерисовывает его в сетке
func (e *testEnv) place(t *testing.T, playerID uint64, regionID, level int, c *Content) {
	t.Helper()
	e.sys.mu.Lock()
	defer e.sys.mu.Unlock()
	st := e.sys.session(playerID, regionID)
	require.NotNil(t, st)
	st.contents[level] = c
	e.sys.builder.WriteLevel(st.offset, st.regionID, level, c.BlockID(), false)
}

// state возвращает внутреннее состояние сессии (только для чтения в тестах)
func (e *testEnv) state(t *testing.T, playerID uint64, regionID int) *playerState {
	t.Helper()
	e.sys.mu.Lock()
	defer e.sys.mu.Unlock()
	st := e.sys.session(playerID, regionID)
	require.NotNil(t, st)
	return st
}

// hitAfter сдвигает часы на d и наносит удар
func (e *testEnv) hitAfter(playerID uint64, d time.Duration) HitResult {
	e.clock.Advance(d)
	return e.sys.HandleHit(context.Background(), playerID)
}
