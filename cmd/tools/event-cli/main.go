package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/annel0/deepmine/internal/eventbus"
)

const (
	defaultNATSURL = "nats://localhost:4222"
	timeFormat     = "15:04:05.000"
)

func main() {
	var (
		natsURL    = flag.String("nats", defaultNATSURL, "адрес NATS JetStream")
		stream     = flag.String("stream", "", "имя потока (по умолчанию MINING)")
		command    = flag.String("cmd", "tail", "команда: tail, stats")
		eventTypes = flag.String("types", "", "фильтр типов событий через запятую")
		players    = flag.String("players", "", "фильтр ID игроков через запятую")
		duration   = flag.Duration("for", 0, "время работы (0 — до Ctrl+C)")
		limit      = flag.Int("limit", 0, "максимум событий для tail (0 — без ограничения)")
	)
	flag.Parse()

	playerFilter, err := parsePlayers(*players)
	if err != nil {
		log.Fatalf("❌ Неверный список игроков: %v", err)
	}

	bus, err := eventbus.NewJetStreamBus(*natsURL, *stream, 0)
	if err != nil {
		log.Fatalf("❌ Не удалось подключиться к %s: %v", *natsURL, err)
	}
	defer bus.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if *duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	filter := eventbus.Filter{Types: parseStringList(*eventTypes)}

	switch *command {
	case "tail":
		err = tailEvents(ctx, bus, filter, playerFilter, *limit, os.Stdout)
	case "stats":
		err = showStats(ctx, bus, filter, playerFilter, os.Stdout)
	default:
		fmt.Printf("❌ Неизвестная команда: %s\n", *command)
		fmt.Println("Доступные команды: tail, stats")
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("❌ %s: %v", *command, err)
	}
}

// tailEvents печатает события по мере поступления
func tailEvents(ctx context.Context, bus eventbus.EventBus, f eventbus.Filter, players map[uint64]bool, limit int, out io.Writer) error {
	fmt.Fprintf(out, "🎬 Слежение за событиями (limit: %d)\n", limit)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var mu sync.Mutex
	count := 0
	sub, err := bus.Subscribe(ctx, f, func(_ context.Context, ev *eventbus.Envelope) {
		if !matchPlayer(ev, players) {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if limit > 0 && count >= limit {
			return
		}
		printEvent(out, ev)
		count++
		if limit > 0 && count >= limit {
			cancel()
		}
	})
	if err != nil {
		return fmt.Errorf("подписка: %w", err)
	}
	defer sub.Unsubscribe()

	<-ctx.Done()
	mu.Lock()
	fmt.Fprintf(out, "\n📊 Всего событий: %d\n", count)
	mu.Unlock()
	return nil
}

// showStats считает события по типам до остановки
func showStats(ctx context.Context, bus eventbus.EventBus, f eventbus.Filter, players map[uint64]bool, out io.Writer) error {
	fmt.Fprintln(out, "📊 Сбор статистики событий...")

	stats := newEventStats()
	sub, err := bus.Subscribe(ctx, f, func(_ context.Context, ev *eventbus.Envelope) {
		if matchPlayer(ev, players) {
			stats.add(ev)
		}
	})
	if err != nil {
		return fmt.Errorf("подписка: %w", err)
	}
	defer sub.Unsubscribe()

	<-ctx.Done()
	stats.print(out)
	return nil
}

// eventStats агрегирует события по типам и игрокам
type eventStats struct {
	mu      sync.Mutex
	total   int
	byType  map[string]int
	players map[uint64]struct{}
	first   time.Time
	last    time.Time
}

func newEventStats() *eventStats {
	return &eventStats{
		byType:  make(map[string]int),
		players: make(map[uint64]struct{}),
	}
}

func (s *eventStats) add(ev *eventbus.Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	s.byType[ev.EventType]++
	if pid, ok := playerOf(ev); ok {
		s.players[pid] = struct{}{}
	}
	if s.first.IsZero() || ev.Timestamp.Before(s.first) {
		s.first = ev.Timestamp
	}
	if ev.Timestamp.After(s.last) {
		s.last = ev.Timestamp
	}
}

func (s *eventStats) print(out io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fmt.Fprintf(out, "Всего событий: %d, игроков: %d\n", s.total, len(s.players))
	if s.total == 0 {
		return
	}
	fmt.Fprintf(out, "Период: %s - %s\n", s.first.Format(timeFormat), s.last.Format(timeFormat))

	types := make([]string, 0, len(s.byType))
	for t := range s.byType {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return s.byType[types[i]] > s.byType[types[j]] })

	fmt.Fprintln(out)
	for _, t := range types {
		n := s.byType[t]
		fmt.Fprintf(out, "  %-14s %6d  %5.1f%%\n", t, n, float64(n)*100/float64(s.total))
	}
}

// printEvent выводит одно событие
func printEvent(out io.Writer, ev *eventbus.Envelope) {
	fmt.Fprintf(out, "%s %-14s prio=%d %s\n", ev.Timestamp.Format(timeFormat), ev.EventType, ev.Priority, ev.Payload)
}

// playerOf извлекает player_id из полезной нагрузки
func playerOf(ev *eventbus.Envelope) (uint64, bool) {
	var p struct {
		PlayerID *uint64 `json:"player_id"`
	}
	if err := json.Unmarshal(ev.Payload, &p); err != nil || p.PlayerID == nil {
		return 0, false
	}
	return *p.PlayerID, true
}

func matchPlayer(ev *eventbus.Envelope, players map[uint64]bool) bool {
	if len(players) == 0 {
		return true
	}
	pid, ok := playerOf(ev)
	return ok && players[pid]
}

func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parsePlayers(s string) (map[uint64]bool, error) {
	ids := parseStringList(s)
	if len(ids) == 0 {
		return nil, nil
	}
	out := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		pid, err := strconv.ParseUint(id, 10, 64)
		if err != nil {
			return nil, err
		}
		out[pid] = true
	}
	return out, nil
}
