package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mahaj/roomcast/pkg/journal"
	"github.com/mahaj/roomcast/pkg/model"
	"github.com/segmentio/kafka-go"
)

const retryDelay = time.Second

// EntryReader is the subset of *kafka.Reader the consumer uses.
type EntryReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type MessageArchive interface {
	InsertMessage(ctx context.Context, msg model.Message) error
}

// Consumer archives chat messages from the journal topic. Offsets are
// committed only after the message is stored.
type Consumer struct {
	reader  EntryReader
	archive MessageArchive
	logger  *slog.Logger
}

func NewConsumer(reader EntryReader, archive MessageArchive, logger *slog.Logger) *Consumer {
	return &Consumer{reader: reader, archive: archive, logger: logger}
}

func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
}

// Consume runs until ctx is cancelled.
func (c *Consumer) Consume(ctx context.Context) {
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("Error reading journal, retrying", "error", err.Error())
			if !sleep(ctx, retryDelay) {
				return
			}
			continue
		}

		if !c.process(ctx, m) {
			return
		}
		if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			c.logger.Warn("Commit failed", "offset", m.Offset, "error", err.Error())
		}
	}
}

// process stores m if it carries a chat message. It returns false only when
// ctx ends while retrying.
func (c *Consumer) process(ctx context.Context, m kafka.Message) bool {
	entry, err := journal.Decode(m.Value)
	if err != nil {
		c.logger.Warn("Skipping undecodable entry", "offset", m.Offset, "error", err.Error())
		return true
	}
	if entry.Kind != journal.KindMessage || entry.Message == nil {
		return true
	}

	for {
		err := c.archive.InsertMessage(ctx, *entry.Message)
		if err == nil {
			c.logger.Debug("Message archived", "message_id", entry.Message.ID, "room_id", entry.Message.RoomID)
			return true
		}
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return false
		}
		c.logger.Warn("Archive failed, retrying", "message_id", entry.Message.ID, "error", err.Error())
		if !sleep(ctx, retryDelay) {
			return false
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
