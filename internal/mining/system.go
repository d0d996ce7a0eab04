package mining

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/annel0/deepmine/internal/logging"
)

var (
	// ErrNoSession: у игрока нет шахты в текущем регионе
	ErrNoSession = errors.New("mining session not found")
	// ErrNoProgress: прогресс игрока не загружен
	ErrNoProgress = errors.New("player progress not loaded")
)

// Deps: внешние зависимости System
type Deps struct {
	Progress ProgressStore // обязательно
	Grid     Grid          // обязательно
	Bodies   Bodies        // обязательно

	Events      EventSink   // nil: NopSink
	Scheduler   Scheduler   // nil: TimerScheduler
	Clock       func() time.Time
	Rand        *rand.Rand // nil: генератор с сидом от времени
	Metrics     *Metrics
	DamageCurve DamageCurve // nil: IdentityDamageCurve
	Ores        []OreDef    // nil: DefaultOreDefs
	Logger      *logging.Logger
}

// System: фасад шахтёрского движка. Все изменения состояния
// сериализуются одним мьютексом: входящие удары, тики автоудара и
// административные вызовы не пересекаются.
type System struct {
	mu sync.Mutex

	cfg       Config
	allocator *Allocator
	ores      *OreTable
	chests    *ChestRoller
	builder   *ShaftBuilder

	progress  ProgressStore
	grid      Grid
	bodies    Bodies
	events    EventSink
	scheduler Scheduler
	now       func() time.Time
	rng       *rand.Rand
	metrics   *Metrics
	curve     DamageCurve
	log       *logging.Logger

	// игрок -> регион -> сессия
	sessions map[uint64]map[int]*playerState
}

// NewSystem создаёт систему шахт
func NewSystem(cfg Config, deps Deps) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mining config: %w", err)
	}
	if deps.Progress == nil || deps.Grid == nil || deps.Bodies == nil {
		return nil, errors.New("mining: progress, grid and bodies are required")
	}

	s := &System{
		cfg:       cfg,
		allocator: NewAllocator(cfg.AllocatorColumns, cfg.AllocatorSpacing),
		chests:    NewChestRoller(cfg),
		progress:  deps.Progress,
		grid:      deps.Grid,
		bodies:    deps.Bodies,
		events:    deps.Events,
		scheduler: deps.Scheduler,
		now:       deps.Clock,
		rng:       deps.Rand,
		metrics:   deps.Metrics,
		curve:     deps.DamageCurve,
		log:       deps.Logger,
		sessions:  make(map[uint64]map[int]*playerState),
	}

	defs := deps.Ores
	if defs == nil {
		defs = DefaultOreDefs()
	}
	s.ores = NewOreTable(defs, cfg.TerminalLevel+1)
	s.builder = NewShaftBuilder(deps.Grid, cfg, deps.Metrics)

	if s.events == nil {
		s.events = NopSink{}
	}
	if s.scheduler == nil {
		s.scheduler = TimerScheduler{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if s.curve == nil {
		s.curve = IdentityDamageCurve
	}
	if s.log == nil {
		s.log = logging.GetMiningLogger()
	}
	return s, nil
}

// Builder возвращает построитель шахт (для геометрических расчётов снаружи)
func (s *System) Builder() *ShaftBuilder {
	return s.builder
}

// EnterMine создаёт или возобновляет шахту игрока в его текущем регионе
// и перемещает игрока на текущий уровень.
func (s *System) EnterMine(ctx context.Context, playerID uint64) (SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prog, err := s.loadProgress(ctx, playerID)
	if err != nil {
		return SessionInfo{}, err
	}

	st := s.session(playerID, prog.WorldRegion)
	if st == nil {
		offset := s.allocator.Allocate(playerID, prog.WorldRegion)
		st = newPlayerState(playerID, prog.WorldRegion, offset)
		s.addSession(st)
		s.generateInitial(st, prog.Luck())
		s.log.Info("⛏️ Игрок %d вошёл в шахту: регион %d, сдвиг (%d, %d)",
			playerID, prog.WorldRegion, offset.X, offset.Z)
	} else {
		s.log.Debug("Игрок %d вернулся в шахту на уровень %d", playerID, st.currentLevel)
	}

	s.teleport(st)
	return st.info(), nil
}

// HandleHit обрабатывает одиночный удар игрока
func (s *System) HandleHit(ctx context.Context, playerID uint64) HitResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := s.handleHitLocked(ctx, playerID)
	s.metrics.hit(result)
	return result
}

func (s *System) handleHitLocked(ctx context.Context, playerID uint64) HitResult {
	prog, err := s.loadProgress(ctx, playerID)
	if err != nil {
		return HitNoProgress
	}
	st := s.session(playerID, prog.WorldRegion)
	if st == nil {
		return HitNoSession
	}
	return s.hit(ctx, st, prog)
}

// StartLoop включает автоудар: сразу бьёт один раз, затем повторяет
// с интервалом удара, пока цикл не остановят. Повторный вызов
// заменяет прежний цикл.
func (s *System) StartLoop(ctx context.Context, playerID uint64) (HitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prog, err := s.loadProgress(ctx, playerID)
	if err != nil {
		return HitNoProgress, err
	}
	st := s.session(playerID, prog.WorldRegion)
	if st == nil {
		return HitNoSession, ErrNoSession
	}

	s.stopLoopLocked(st)

	interval := s.swingInterval(prog)
	loop := &holdLoop{interval: interval}
	st.loop = loop
	s.metrics.loopsDelta(1)

	result := s.hit(ctx, st, prog)
	s.metrics.hit(result)
	s.armLoop(context.WithoutCancel(ctx), st, loop)

	s.log.Debug("🔁 Игрок %d: автоудар запущен, интервал %v", playerID, interval)
	return result, nil
}

// armLoop взводит следующий тик так, чтобы он пришёл ровно к концу
// интервала после последнего засчитанного удара. Вызывается под блокировкой.
func (s *System) armLoop(ctx context.Context, st *playerState, loop *holdLoop) {
	playerID, regionID := st.playerID, st.regionID
	delay := nextSwingDelay(st.lastHit, s.now(), loop.interval)
	loop.timer = s.scheduler.After(delay, func() {
		s.loopTick(ctx, playerID, regionID, loop)
	})
}

// loopTick: один тик автоудара. Тик устаревшего цикла ничего не делает
// и не перевзводится.
func (s *System) loopTick(ctx context.Context, playerID uint64, regionID int, loop *holdLoop) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.session(playerID, regionID)
	if st == nil || st.loop != loop {
		return
	}
	prog, err := s.loadProgress(ctx, playerID)
	if err != nil {
		// прогресс временно недоступен: пробуем на следующем интервале
		s.armLoop(ctx, st, loop)
		return
	}
	if prog.WorldRegion != regionID {
		// игрок сменил регион, старый цикл больше не нужен
		s.stopLoopLocked(st)
		return
	}
	loop.interval = s.swingInterval(prog)
	s.metrics.hit(s.hit(ctx, st, prog))
	if st.loop == loop {
		s.armLoop(ctx, st, loop)
	}
}

// StopLoop останавливает автоудар во всех шахтах игрока
func (s *System) StopLoop(playerID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range s.sessions[playerID] {
		s.stopLoopLocked(st)
	}
}

func (s *System) stopLoopLocked(st *playerState) {
	if st.loop == nil {
		return
	}
	st.loop.stop()
	st.loop = nil
	st.target = nil
	s.metrics.loopsDelta(-1)
}

// ResetMine возвращает игрока на уровень 0 с новым содержимым ближних уровней.
// Сдвиг шахты, крышка, стены и дно сохраняются.
func (s *System) ResetMine(ctx context.Context, playerID uint64) (SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prog, err := s.loadProgress(ctx, playerID)
	if err != nil {
		return SessionInfo{}, err
	}
	st := s.session(playerID, prog.WorldRegion)
	if st == nil {
		return SessionInfo{}, ErrNoSession
	}

	s.stopLoopLocked(st)
	from := st.currentLevel
	s.clearNearLevels(st)

	st.currentLevel = 0
	st.deepestGenerated = -1
	st.winTriggered = false
	s.generateInitial(st, prog.Luck())
	s.teleport(st)

	s.log.Info("🔄 Игрок %d сбросил шахту с уровня %d", playerID, from)
	return st.info(), nil
}

// Disconnect удаляет все сессии и тело игрока, останавливает циклы
func (s *System) Disconnect(playerID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bodies.Remove(playerID)
	regions, ok := s.sessions[playerID]
	if !ok {
		return
	}
	for _, st := range regions {
		s.stopLoopLocked(st)
		s.metrics.sessionsDelta(-1)
	}
	delete(s.sessions, playerID)
	s.log.Debug("Игрок %d отключился, сессий шахты закрыто: %d", playerID, len(regions))
}

// DetectCurrentBlock возвращает содержимое текущего уровня без изменений
func (s *System) DetectCurrentBlock(ctx context.Context, playerID uint64) (Preview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prog, err := s.loadProgress(ctx, playerID)
	if err != nil {
		return Preview{}, err
	}
	st := s.session(playerID, prog.WorldRegion)
	if st == nil {
		return Preview{}, ErrNoSession
	}
	c, ok := st.contents[st.currentLevel]
	if !ok {
		return Preview{
			Level:         st.currentLevel,
			AbsoluteDepth: st.currentLevel + 1,
			KindName:      KindNone.String(),
		}, nil
	}
	return previewOf(st.currentLevel, c), nil
}

// Session возвращает снимок сессии игрока в регионе
func (s *System) Session(playerID uint64, regionID int) (SessionInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.session(playerID, regionID)
	if st == nil {
		return SessionInfo{}, false
	}
	return st.info(), true
}

// State возвращает состояние игрока в регионе
func (s *System) State(playerID uint64, regionID int) MinerState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.session(playerID, regionID)
	if st == nil {
		return StateIdle
	}
	return st.state()
}

// ActiveSessions возвращает количество открытых сессий
func (s *System) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, regions := range s.sessions {
		n += len(regions)
	}
	return n
}

// Allocations возвращает выданные слоты шахт для сохранения рядом со снапшотом сетки
func (s *System) Allocations() []Allocation {
	return s.allocator.Snapshot()
}

// RestoreAllocations возвращает слоты из прошлого запуска. Вызывается до
// первого EnterMine, иначе новые игроки могут занять слот с чужими блоками.
func (s *System) RestoreAllocations(allocs []Allocation) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	skipped := s.allocator.Restore(allocs)
	s.log.Info("📍 Восстановлено слотов шахт: %d (пропущено %d)", len(allocs)-skipped, skipped)
	return skipped
}

// Shutdown останавливает все циклы автоудара
func (s *System) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, regions := range s.sessions {
		for _, st := range regions {
			s.stopLoopLocked(st)
		}
	}
}

func (s *System) loadProgress(ctx context.Context, playerID uint64) (Progress, error) {
	pctx, cancel := s.progressContext(ctx)
	defer cancel()

	prog, ok, err := s.progress.Load(pctx, playerID)
	if err != nil {
		s.log.Warn("⚠️ Игрок %d: ошибка загрузки прогресса: %v", playerID, err)
		return Progress{}, fmt.Errorf("%w: %v", ErrNoProgress, err)
	}
	if !ok {
		return Progress{}, ErrNoProgress
	}
	return prog, nil
}

func (s *System) session(playerID uint64, regionID int) *playerState {
	return s.sessions[playerID][regionID]
}

func (s *System) addSession(st *playerState) {
	regions, ok := s.sessions[st.playerID]
	if !ok {
		regions = make(map[int]*playerState)
		s.sessions[st.playerID] = regions
	}
	regions[st.regionID] = st
	s.metrics.sessionsDelta(1)
}
