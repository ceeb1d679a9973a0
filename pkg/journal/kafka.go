package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer used by KafkaHandler.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaHandler publishes entries as JSON. Entries are keyed by room so one
// room's entries stay ordered within a partition.
type KafkaHandler struct {
	writer MessageWriter
}

func NewKafkaHandler(w MessageWriter) *KafkaHandler {
	return &KafkaHandler{writer: w}
}

// NewKafkaWriter builds the producer used by the gateway.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
		// Entries are written one at a time by a Pump.
		BatchTimeout: 10 * time.Millisecond,
	}
}

func (h *KafkaHandler) Handle(ctx context.Context, e Entry) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	key := e.RoomID
	if key == "" {
		key = e.ConnectionID
	}
	if err := h.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  e.At,
	}); err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}
	return nil
}

// Decode parses a journal entry published by KafkaHandler.
func Decode(value []byte) (Entry, error) {
	var e Entry
	if err := json.Unmarshal(value, &e); err != nil {
		return Entry{}, fmt.Errorf("unmarshal entry: %w", err)
	}
	return e, nil
}
