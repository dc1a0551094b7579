package pages

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/kafka"
)

type ChangeAction string

const (
	ChangeUpserted ChangeAction = "upserted"
	ChangeDeleted  ChangeAction = "deleted"
)

// ChangeEventType is the Kafka type header of a ChangeEvent.
const ChangeEventType = "page.changed"

// ChangeEvent is the Kafka payload announcing that the page set changed.
// Consumers rebuild their index from the store; the event carries no content.
type ChangeEvent struct {
	PageID    string       `json:"page_id"`
	Action    ChangeAction `json:"action"`
	ChangedAt time.Time    `json:"changed_at"`
}

// EventPublisher is satisfied by *kafka.Producer.
type EventPublisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Notifier publishes ChangeEvents.
type Notifier struct {
	producer EventPublisher
	logger   *slog.Logger
}

func NewNotifier(producer EventPublisher) *Notifier {
	return &Notifier{
		producer: producer,
		logger:   slog.Default().With("component", "page-notifier"),
	}
}

// PageChanged publishes a ChangeEvent keyed by page id.
func (n *Notifier) PageChanged(ctx context.Context, pageID string, action ChangeAction) error {
	event := ChangeEvent{
		PageID:    pageID,
		Action:    action,
		ChangedAt: time.Now().UTC(),
	}
	if err := n.producer.Publish(ctx, kafka.Event{Key: pageID, Type: ChangeEventType, Value: event}); err != nil {
		return fmt.Errorf("publishing change for page %s: %w", pageID, err)
	}
	n.logger.Info("page change published", "page_id", pageID, "action", action)
	return nil
}
