// Package broker abstracts message publication so the relay and the
// consumers can be driven by fakes in tests.
package broker

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// Publisher sends one message to a topic. Implementations must return only
// after the broker acknowledges the write.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// KafkaPublisher publishes through a shared kafka-go writer. The writer must
// be constructed without a fixed topic; the topic travels per message.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher wires a writer that requires acks from all replicas.
func NewKafkaPublisher(brokers []string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic string, key, value []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   key,
		Value: value,
		Time:  time.Now(),
	})
}

// Close flushes in-flight messages.
func (p *KafkaPublisher) Close() error { return p.writer.Close() }
