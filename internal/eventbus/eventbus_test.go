package eventbus

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/annel0/deepmine/internal/mining"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collector собирает доставленные конверты
type collector struct {
	mu  sync.Mutex
	evs []*Envelope
}

func (c *collector) handle(_ context.Context, ev *Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evs = append(c.evs, ev)
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.evs)
}

func (c *collector) byType(eventType string) *Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ev := range c.evs {
		if ev.EventType == eventType {
			return ev
		}
	}
	return nil
}

func TestMemoryBusFilter(t *testing.T) {
	bus := NewMemoryBus(16)
	defer bus.Close()
	ctx := context.Background()

	all, wins := &collector{}, &collector{}
	_, err := bus.Subscribe(ctx, Filter{}, all.handle)
	require.NoError(t, err)
	_, err = bus.Subscribe(ctx, Filter{Types: []string{TypeWinReached}}, wins.handle)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, &Envelope{ID: "1", EventType: TypeOreMined, Priority: PriorityHigh}))
	require.NoError(t, bus.Publish(ctx, &Envelope{ID: "2", EventType: TypeWinReached, Priority: PriorityCritical}))

	require.Eventually(t, func() bool { return all.len() == 2 && wins.len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "2", wins.byType(TypeWinReached).ID)

	require.Eventually(t, func() bool { return bus.Metrics().Consumed == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(2), bus.Metrics().Published)
}

func TestMemoryBusUnsubscribeAndClose(t *testing.T) {
	bus := NewMemoryBus(4)
	ctx := context.Background()

	c := &collector{}
	sub, err := bus.Subscribe(ctx, Filter{}, c.handle)
	require.NoError(t, err)
	sub.Unsubscribe()

	require.NoError(t, bus.Publish(ctx, &Envelope{EventType: TypeOreMined}))
	require.NoError(t, bus.Close())
	assert.Equal(t, 0, c.len(), "отписанный обработчик не вызывается")

	assert.ErrorIs(t, bus.Publish(ctx, &Envelope{EventType: TypeOreMined}), ErrClosed)
	_, err = bus.Subscribe(ctx, Filter{}, c.handle)
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, bus.Close(), "повторное закрытие безопасно")
}

func TestMiningSinkPublishesEnvelopes(t *testing.T) {
	bus := NewMemoryBus(16)
	defer bus.Close()

	c := &collector{}
	_, err := bus.Subscribe(context.Background(), Filter{Sources: []string{SourceMining}}, c.handle)
	require.NoError(t, err)

	sink := NewMiningSink(bus)
	ctx := context.Background()
	sink.OreMined(ctx, 7, mining.OreGold, 1)
	sink.DamageDealt(ctx, mining.DamageEvent{PlayerID: 7, Damage: 50, KindName: "chest", IsChest: true, RewardAmount: 2})
	sink.ChestBroken(ctx, 7, 10)
	sink.WinReached(ctx, 7)
	sink.BlockPreview(ctx, 7, mining.Preview{Level: 3, AbsoluteDepth: 4, KindName: "ore", Ore: "gold"})

	require.Eventually(t, func() bool { return c.len() == 5 }, time.Second, 5*time.Millisecond)

	ore := c.byType(TypeOreMined)
	require.NotNil(t, ore)
	_, err = uuid.Parse(ore.ID)
	assert.NoError(t, err, "идентификатор — UUID")
	assert.Equal(t, PriorityHigh, ore.Priority)
	var orePayload OreMinedPayload
	require.NoError(t, json.Unmarshal(ore.Payload, &orePayload))
	assert.Equal(t, OreMinedPayload{PlayerID: 7, Ore: "gold", Amount: 1}, orePayload)

	dmg := c.byType(TypeDamageDealt)
	require.NotNil(t, dmg)
	var dmgPayload map[string]interface{}
	require.NoError(t, json.Unmarshal(dmg.Payload, &dmgPayload))
	assert.Equal(t, true, dmgPayload["is_chest"])
	assert.Equal(t, float64(2), dmgPayload["reward_amount"])

	win := c.byType(TypeWinReached)
	require.NotNil(t, win)
	assert.Equal(t, PriorityCritical, win.Priority)

	peek := c.byType(TypeBlockPeek)
	require.NotNil(t, peek)
	var peekPayload BlockPreviewPayload
	require.NoError(t, json.Unmarshal(peek.Payload, &peekPayload))
	assert.Equal(t, "gold", peekPayload.Preview.Ore)
	assert.Equal(t, 4, peekPayload.Preview.AbsoluteDepth)
}

func TestMetricsExporterCollect(t *testing.T) {
	bus := NewMemoryBus(8)
	defer bus.Close()
	reg := prometheus.NewRegistry()
	exp := NewMetricsExporter(bus, reg)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, bus.Publish(ctx, &Envelope{EventType: TypeOreMined}))
	}
	exp.collect()
	assert.Equal(t, 3.0, testutil.ToFloat64(exp.published))

	require.NoError(t, bus.Publish(ctx, &Envelope{EventType: TypeOreMined}))
	exp.collect()
	assert.Equal(t, 4.0, testutil.ToFloat64(exp.published), "учитывается только приращение")

	count, err := testutil.GatherAndCount(reg, "eventbus_messages_published_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
