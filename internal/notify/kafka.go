package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/model"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// kafkaBatchTimeout ограничивает ожидание пакета: события публикуются синхронно по одному.
const kafkaBatchTimeout = 10 * time.Millisecond

// KafkaNotifier публикует события о совпадениях в топик Kafka.
// Ключом сообщения служит идентификатор совпадения.
type KafkaNotifier struct {
	writer messageWriter
}

// NewKafkaNotifier создаёт издателя для указанных брокеров и топика.
func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			BatchTimeout:           kafkaBatchTimeout,
			AllowAutoTopicCreation: true,
		},
	}
}

// MatchCreated публикует событие о совпадении.
func (n *KafkaNotifier) MatchCreated(ctx context.Context, m model.Match) error {
	value, err := json.Marshal(NewMatchEvent(m))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(m.ID.String()),
		Value: value,
	}); err != nil {
		return fmt.Errorf("publish match %s: %w", m.ID, err)
	}
	return nil
}

// Close сбрасывает буферы и закрывает соединения с брокерами.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
