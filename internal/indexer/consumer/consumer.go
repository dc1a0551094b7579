// Package consumer reads page change events from Kafka and turns them into
// index rebuild requests.
package consumer

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/pages"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/kafka"
)

// RebuildTrigger is satisfied by *searcher.Service.
type RebuildTrigger interface {
	RequestRebuild()
}

// ChangeConsumer wraps a Kafka consumer subscribed to page changes.
type ChangeConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

// New creates a ChangeConsumer backed by the given Kafka consumer.
func New(kafkaConsumer *kafka.Consumer) *ChangeConsumer {
	return &ChangeConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "change-consumer"),
	}
}

// Start begins consuming Kafka messages. It blocks until ctx is cancelled.
func (cc *ChangeConsumer) Start(ctx context.Context) error {
	cc.logger.Info("change consumer starting")
	return cc.consumer.Start(ctx)
}

// HandlePageChanges returns a Kafka MessageHandler that requests a rebuild
// for every page change. Messages of another type and undecodable payloads
// are logged and committed so they never block the partition.
func HandlePageChanges(trigger RebuildTrigger) kafka.MessageHandler {
	logger := slog.Default().With("component", "change-consumer")
	return func(ctx context.Context, msg kafka.Message) error {
		if msg.Type != "" && msg.Type != pages.ChangeEventType {
			logger.Debug("ignoring message", "type", msg.Type)
			return nil
		}
		event, err := kafka.DecodeJSON[pages.ChangeEvent](msg.Value)
		if err != nil {
			logger.Error("failed to decode page change event",
				"error", err,
				"key", string(msg.Key),
			)
			return nil
		}

		logger.Info("page changed, requesting rebuild",
			"page_id", event.PageID,
			"action", event.Action,
		)
		trigger.RequestRebuild()
		return nil
	}
}
