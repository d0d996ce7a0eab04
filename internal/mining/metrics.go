package mining

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics: Prometheus-метрики шахты.
// Нулевой указатель допустим: все методы тогда ничего не делают.
//
// Метрики:
// * mining_hits_total{result}: counter
// * mining_blocks_destroyed_total{kind}: counter
// * mining_chests_broken_total{kind}: counter
// * mining_wins_total: counter
// * mining_grid_write_failures_total: counter
// * mining_levels_generated_total: counter
// * mining_active_sessions: gauge
// * mining_active_loops: gauge
type Metrics struct {
	hits              *prometheus.CounterVec
	destroyed         *prometheus.CounterVec
	chests            *prometheus.CounterVec
	wins              prometheus.Counter
	gridWriteFailures prometheus.Counter
	levelsGenerated   prometheus.Counter
	sessions          prometheus.Gauge
	loops             prometheus.Gauge
}

// NewMetrics создаёт метрики и регистрирует их в reg (nil: без регистрации).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mining",
			Name:      "hits_total",
			Help:      "Удары по результату обработки.",
		}, []string{"result"}),
		destroyed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mining",
			Name:      "blocks_destroyed_total",
			Help:      "Разрушенные блоки по виду содержимого.",
		}, []string{"kind"}),
		chests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mining",
			Name:      "chests_broken_total",
			Help:      "Открытые сундуки по виду.",
		}, []string{"kind"}),
		wins: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mining",
			Name:      "wins_total",
			Help:      "Сколько раз игроки достигли финального уровня.",
		}),
		gridWriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mining",
			Name:      "grid_write_failures_total",
			Help:      "Неудачные записи в блочную сетку (проигнорированы).",
		}),
		levelsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mining",
			Name:      "levels_generated_total",
			Help:      "Сгенерированные уровни шахт.",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mining",
			Name:      "active_sessions",
			Help:      "Текущее количество сессий шахт.",
		}),
		loops: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mining",
			Name:      "active_loops",
			Help:      "Текущее количество циклов автоудара.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.hits, m.destroyed, m.chests, m.wins,
			m.gridWriteFailures, m.levelsGenerated, m.sessions, m.loops)
	}
	return m
}

func (m *Metrics) hit(result HitResult) {
	if m == nil {
		return
	}
	m.hits.WithLabelValues(result.String()).Inc()
}

func (m *Metrics) blockDestroyed(kind ContentKind) {
	if m == nil {
		return
	}
	m.destroyed.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) chestBroken(kind ChestKind) {
	if m == nil {
		return
	}
	m.chests.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) win() {
	if m == nil {
		return
	}
	m.wins.Inc()
}

func (m *Metrics) gridWriteFailed() {
	if m == nil {
		return
	}
	m.gridWriteFailures.Inc()
}

func (m *Metrics) levelGenerated() {
	if m == nil {
		return
	}
	m.levelsGenerated.Inc()
}

func (m *Metrics) sessionsDelta(d float64) {
	if m == nil {
		return
	}
	m.sessions.Add(d)
}

func (m *Metrics) loopsDelta(d float64) {
	if m == nil {
		return
	}
	m.loops.Add(d)
}
