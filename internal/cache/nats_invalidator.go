package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/deepmine/internal/logging"
	"github.com/nats-io/nats.go"
)

// NATSInvalidator реализует CacheInvalidator через NATS Pub/Sub.
// Узлы с локальным кешем узнают об изменениях, сделанных на других узлах.
type NATSInvalidator struct {
	conn    *nats.Conn
	subject string
	nodeID  string
	log     *logging.Logger

	mu           sync.Mutex
	subscription *nats.Subscription
	handler      InvalidationHandler

	publishedCount atomic.Int64
	receivedCount  atomic.Int64
	errorsCount    atomic.Int64
}

// InvalidationMessage представляет сообщение об инвалидации кеша.
type InvalidationMessage struct {
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	NodeID    string    `json:"node_id"`
}

// NewNATSInvalidator подключается к NATS.
//
// Параметры:
//
//	url - адрес NATS
//	subject - тема инвалидаций ("": deepmine.cache.invalidation)
//	nodeID - уникальный идентификатор узла
func NewNATSInvalidator(url, subject, nodeID string) (*NATSInvalidator, error) {
	if subject == "" {
		subject = "deepmine.cache.invalidation"
	}
	log := logging.GetStorageLogger()

	opts := []nats.Option{
		nats.Name("deepmine-cache-" + nodeID),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected to %s", nc.ConnectedUrl())
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	log.Info("📨 NATS invalidator initialized: %s (subject: %s)", url, subject)
	return &NATSInvalidator{conn: conn, subject: subject, nodeID: nodeID, log: log}, nil
}

// PublishInvalidation отправляет уведомление об инвалидации ключа.
func (n *NATSInvalidator) PublishInvalidation(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(InvalidationMessage{Key: key, Timestamp: time.Now(), NodeID: n.nodeID})
	if err != nil {
		n.errorsCount.Add(1)
		return fmt.Errorf("failed to marshal invalidation message: %w", err)
	}

	if err := n.conn.Publish(n.subject, data); err != nil {
		n.errorsCount.Add(1)
		return fmt.Errorf("failed to publish invalidation: %w", err)
	}
	n.publishedCount.Add(1)
	return nil
}

// SubscribeInvalidations подписывается на уведомления других узлов.
func (n *NATSInvalidator) SubscribeInvalidations(handler InvalidationHandler) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.subscription != nil {
		return fmt.Errorf("already subscribed to invalidations")
	}
	n.handler = handler

	sub, err := n.conn.Subscribe(n.subject, n.handleInvalidationMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to invalidations: %w", err)
	}
	n.subscription = sub
	return nil
}

// handleInvalidationMessage обрабатывает входящие сообщения об инвалидации.
func (n *NATSInvalidator) handleInvalidationMessage(msg *nats.Msg) {
	n.receivedCount.Add(1)

	var inv InvalidationMessage
	if err := json.Unmarshal(msg.Data, &inv); err != nil {
		n.errorsCount.Add(1)
		n.log.Error("Failed to unmarshal invalidation message: %v", err)
		return
	}

	// Собственные сообщения уже применены локально
	if inv.NodeID == n.nodeID {
		return
	}

	n.mu.Lock()
	handler := n.handler
	n.mu.Unlock()

	if handler == nil {
		return
	}
	if err := handler(inv.Key); err != nil {
		n.errorsCount.Add(1)
		n.log.Error("Invalidation handler failed for key %s: %v", inv.Key, err)
	}
}

// Stats возвращает счётчики invalidator.
func (n *NATSInvalidator) Stats() (published, received, failed int64) {
	return n.publishedCount.Load(), n.receivedCount.Load(), n.errorsCount.Load()
}

// Close закрывает соединение с NATS.
func (n *NATSInvalidator) Close() error {
	n.mu.Lock()
	if n.subscription != nil {
		_ = n.subscription.Unsubscribe()
		n.subscription = nil
	}
	n.mu.Unlock()

	if n.conn != nil {
		n.conn.Close()
	}
	return nil
}
