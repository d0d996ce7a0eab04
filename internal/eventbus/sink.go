package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/annel0/deepmine/internal/logging"
	"github.com/annel0/deepmine/internal/mining"
	"github.com/google/uuid"
)

// SourceMining: источник событий шахты в конвертах
const SourceMining = "mining"

// Полезные нагрузки событий
type (
	OreMinedPayload struct {
		PlayerID uint64 `json:"player_id"`
		Ore      string `json:"ore"`
		Amount   int    `json:"amount"`
	}

	ChestBrokenPayload struct {
		PlayerID uint64 `json:"player_id"`
		Reward   int    `json:"reward"`
	}

	WinReachedPayload struct {
		PlayerID uint64 `json:"player_id"`
	}

	BlockPreviewPayload struct {
		PlayerID uint64         `json:"player_id"`
		Preview  mining.Preview `json:"preview"`
	}
)

// MiningSink публикует события шахты в шину.
// Ошибки публикации только логируются: удар уже применён.
type MiningSink struct {
	bus EventBus
	log *logging.Logger
	now func() time.Time
}

var _ mining.EventSink = (*MiningSink)(nil)

// NewMiningSink создаёт приёмник событий поверх шины
func NewMiningSink(bus EventBus) *MiningSink {
	return &MiningSink{
		bus: bus,
		log: logging.GetEventBusLogger(),
		now: time.Now,
	}
}

func (s *MiningSink) OreMined(ctx context.Context, playerID uint64, ore mining.OreType, amount int) {
	s.publish(ctx, TypeOreMined, PriorityHigh, OreMinedPayload{PlayerID: playerID, Ore: ore.String(), Amount: amount})
}

func (s *MiningSink) DamageDealt(ctx context.Context, ev mining.DamageEvent) {
	s.publish(ctx, TypeDamageDealt, PriorityNormal, ev)
}

func (s *MiningSink) ChestBroken(ctx context.Context, playerID uint64, reward int) {
	s.publish(ctx, TypeChestBroken, PriorityHigh, ChestBrokenPayload{PlayerID: playerID, Reward: reward})
}

func (s *MiningSink) WinReached(ctx context.Context, playerID uint64) {
	s.publish(ctx, TypeWinReached, PriorityCritical, WinReachedPayload{PlayerID: playerID})
}

func (s *MiningSink) BlockPreview(ctx context.Context, playerID uint64, preview mining.Preview) {
	s.publish(ctx, TypeBlockPeek, PriorityLow, BlockPreviewPayload{PlayerID: playerID, Preview: preview})
}

func (s *MiningSink) publish(ctx context.Context, eventType string, priority int, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error("Ошибка сериализации события %s: %v", eventType, err)
		return
	}

	ev := &Envelope{
		ID:        uuid.NewString(),
		Timestamp: s.now().UTC(),
		Source:    SourceMining,
		EventType: eventType,
		Version:   1,
		Priority:  priority,
		Payload:   data,
	}
	if err := s.bus.Publish(ctx, ev); err != nil {
		s.log.Warn("⚠️ Не удалось опубликовать %s: %v", eventType, err)
	}
}
