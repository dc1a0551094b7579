package consumer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/pages"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/kafka"
)

type countingTrigger struct{ n int }

func (c *countingTrigger) RequestRebuild() { c.n++ }

func changeMessage(t *testing.T, msgType string) kafka.Message {
	t.Helper()
	value, err := json.Marshal(pages.ChangeEvent{
		PageID:    "vpn",
		Action:    pages.ChangeUpserted,
		ChangedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	return kafka.Message{Key: []byte("vpn"), Type: msgType, Value: value}
}

func TestHandlePageChangesRequestsRebuild(t *testing.T) {
	trigger := &countingTrigger{}
	handle := HandlePageChanges(trigger)

	require.NoError(t, handle(context.Background(), changeMessage(t, pages.ChangeEventType)))
	require.NoError(t, handle(context.Background(), changeMessage(t, "")))
	assert.Equal(t, 2, trigger.n)
}

func TestHandlePageChangesSkipsOtherMessages(t *testing.T) {
	trigger := &countingTrigger{}
	handle := HandlePageChanges(trigger)

	assert.NoError(t, handle(context.Background(), changeMessage(t, "search")))
	assert.NoError(t, handle(context.Background(), kafka.Message{Value: []byte("{not json")}))
	assert.Zero(t, trigger.n)
}
