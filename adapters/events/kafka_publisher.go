package events

import (
	"context"
	"fmt"
	"time"

	"github.com/layer-3/rola/core"
	"github.com/layer-3/rola/ports"
	"github.com/segmentio/kafka-go"
)

// messageWriter is the subset of kafka.Writer used by the publisher
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes authentication events to a Kafka topic
type KafkaPublisher struct {
	writer messageWriter
}

var _ ports.EventPublisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a synchronous producer for the topic. Messages are keyed by
// wallet address so events of one wallet stay ordered within a partition.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return newKafkaPublisher(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		MaxAttempts:            3,
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	})
}

func newKafkaPublisher(writer messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

// PublishAuthEvent writes the event and waits for the broker acknowledgement
func (p *KafkaPublisher) PublishAuthEvent(ctx context.Context, event *core.AuthEvent) error {
	payload, err := encodeEvent(event)
	if err != nil {
		return err
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.WalletAddress),
		Value: payload,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "tx_id", Value: []byte(event.ID)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Close flushes pending writes and closes the producer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
