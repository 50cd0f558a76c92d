// Package publisher fans appended fingerprint records out to a message bus.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/locplace/fingerprint/internal/logstore"
)

// Publisher forwards a stored record to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, rec logstore.Record) error
	Close() error
}

// Nop discards every record.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, logstore.Record) error { return nil }

// Close implements Publisher.
func (Nop) Close() error { return nil }

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes each record as one JSON message keyed by public IP, so
// submissions from one address stay ordered within a partition.
type Kafka struct {
	w     messageWriter
	topic string
}

// NewKafka returns a publisher writing to topic on brokers.
func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
			Async:        false,
		},
		topic: topic,
	}
}

// Publish implements Publisher.
func (k *Kafka) Publish(ctx context.Context, rec logstore.Record) error {
	msg, err := Message(rec)
	if err != nil {
		return err
	}
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", k.topic, err)
	}
	return nil
}

// Close flushes pending messages and releases the writer.
func (k *Kafka) Close() error {
	return k.w.Close()
}

// Message encodes rec the way it is stored on disk.
func Message(rec logstore.Record) (kafka.Message, error) {
	value, err := json.Marshal(rec)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode record: %w", err)
	}
	msg := kafka.Message{Value: value}
	if rec.PublicIP.IsSet() {
		msg.Key = []byte(rec.PublicIP.String())
	}
	if rec.Timestamp.Valid() {
		msg.Time = rec.Timestamp.Time
	}
	return msg, nil
}
