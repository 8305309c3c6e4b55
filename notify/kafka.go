/*
kafka.go - Event stream delivery

PURPOSE:
  Publishes notification events to a Kafka topic. Messages are keyed by
  recipient so one user's notifications land in the same partition and
  stay ordered; downstream consumers (mail, web push, the in-app feed)
  subscribe independently.

FAILURE MODE:
  WriteMessages errors are returned to the caller, which treats them as
  advisory - the originating mutation has already committed.
*/
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Kafka publishes events to a topic, one message per event.
type Kafka struct {
	writer *kafka.Writer
}

// NewKafka creates a producer for the given brokers and topic.
func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.Hash{}, // route by recipient key
		},
	}
}

func (k *Kafka) Emit(ctx context.Context, e Event) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(e.Recipient),
		Value: data,
		Time:  e.At,
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (k *Kafka) Close() error {
	return k.writer.Close()
}
