package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/annel0/blockpos/internal/blockpos"
	"github.com/annel0/blockpos/internal/logging"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// BlockChange — сообщение об изменении блока.
type BlockChange struct {
	Packed    int64     `json:"packed"`
	X         int32     `json:"x"`
	Y         int32     `json:"y"`
	Z         int32     `json:"z"`
	Block     BlockID   `json:"block"`
	Timestamp time.Time `json:"timestamp"`
	Origin    string    `json:"origin,omitempty"` // узел, сделавший запись
}

// NewBlockChange заполняет сообщение для позиции.
func NewBlockChange(pos blockpos.Pos, id BlockID) BlockChange {
	return BlockChange{
		Packed:    pos.Pack(),
		X:         pos.X(),
		Y:         pos.Y(),
		Z:         pos.Z(),
		Block:     id,
		Timestamp: time.Now().UTC(),
	}
}

// Pos возвращает позицию изменения, восстановленную из упакованного слова.
func (c BlockChange) Pos() blockpos.Pos {
	return blockpos.FromPacked(c.Packed)
}

// Publisher — минимальный интерфейс публикации (реализуется *nats.Conn).
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NotifyingStore оборачивает BlockStore и публикует каждое успешное
// изменение в NATS. Ошибка публикации не отменяет запись, а лишь логируется.
type NotifyingStore struct {
	BlockStore
	pub     Publisher
	subject string
	origin  string

	published int64
	failed    int64
}

// NewNotifyingStore создаёт обёртку над store.
func NewNotifyingStore(store BlockStore, pub Publisher, subject string) *NotifyingStore {
	if subject == "" {
		subject = "blocks.changed"
	}
	return &NotifyingStore{
		BlockStore: store,
		pub:        pub,
		subject:    subject,
		origin:     uuid.NewString(),
	}
}

// Origin возвращает идентификатор узла, которым помечаются сообщения.
func (s *NotifyingStore) Origin() string {
	return s.origin
}

// Set записывает блок и публикует изменение.
func (s *NotifyingStore) Set(ctx context.Context, pos blockpos.Pos, id BlockID) error {
	if err := s.BlockStore.Set(ctx, pos, id); err != nil {
		return err
	}
	s.publish(NewBlockChange(pos, id))
	return nil
}

// Delete удаляет блок и публикует изменение на Air.
func (s *NotifyingStore) Delete(ctx context.Context, pos blockpos.Pos) error {
	return s.Set(ctx, pos, Air)
}

// BatchSet записывает блоки и публикует по сообщению на позицию.
func (s *NotifyingStore) BatchSet(ctx context.Context, blocks map[blockpos.Pos]BlockID) error {
	if err := s.BlockStore.BatchSet(ctx, blocks); err != nil {
		return err
	}
	for pos, id := range blocks {
		s.publish(NewBlockChange(pos, id))
	}
	return nil
}

func (s *NotifyingStore) publish(change BlockChange) {
	change.Origin = s.origin
	data, err := json.Marshal(change)
	if err == nil {
		err = s.pub.Publish(s.subject, data)
	}
	if err != nil {
		atomic.AddInt64(&s.failed, 1)
		logging.GetStorageLogger().Warn("не удалось опубликовать изменение %v: %v", change.Pos(), err)
		return
	}
	atomic.AddInt64(&s.published, 1)
}

// Stats возвращает число опубликованных и неудачных сообщений.
func (s *NotifyingStore) Stats() (published, failed int64) {
	return atomic.LoadInt64(&s.published), atomic.LoadInt64(&s.failed)
}

// ConnectNATS подключается к NATS с переподключением и логированием состояния.
func ConnectNATS(url string, maxReconnects int, reconnectWait time.Duration) (*nats.Conn, error) {
	log := logging.GetStorageLogger()

	opts := []nats.Option{
		nats.MaxReconnects(maxReconnects),
		nats.ReconnectWait(reconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Info("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return conn, nil
}

// SubscribeChanges подписывается на изменения блоков.
// Сообщения, которые не удалось разобрать, пропускаются с предупреждением.
func SubscribeChanges(conn *nats.Conn, subject string, handler func(BlockChange)) (*nats.Subscription, error) {
	if subject == "" {
		subject = "blocks.changed"
	}
	return conn.Subscribe(subject, func(msg *nats.Msg) {
		var change BlockChange
		if err := json.Unmarshal(msg.Data, &change); err != nil {
			logging.GetStorageLogger().Warn("некорректное сообщение об изменении блока: %v", err)
			return
		}
		handler(change)
	})
}
