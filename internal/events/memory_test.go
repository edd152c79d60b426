package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPublisherDeliversInOrder(t *testing.T) {
	pub := NewMemoryPublisher(4)
	ctx := context.Background()

	require.NoError(t, pub.Publish(ctx, InteractionEvent{MentionID: "1", Action: ActionRespond}))
	require.NoError(t, pub.Publish(ctx, InteractionEvent{MentionID: "2", Action: ActionIgnore}))
	require.NoError(t, pub.Close())

	var ids []string
	for event := range pub.Events() {
		ids = append(ids, event.MentionID)
	}
	assert.Equal(t, []string{"1", "2"}, ids)
	assert.Error(t, pub.Publish(ctx, InteractionEvent{MentionID: "3"}))
}

func TestMemoryPublisherRespectsContext(t *testing.T) {
	pub := NewMemoryPublisher(1)
	require.NoError(t, pub.Publish(context.Background(), InteractionEvent{MentionID: "1"}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, pub.Publish(ctx, InteractionEvent{MentionID: "2"}), context.DeadlineExceeded)
}

func TestEncodeEvent(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	payload, err := encode(InteractionEvent{MentionID: "1", Username: "alice", Qualified: true, Action: ActionRespond, Reply: "hi", OccurredAt: at})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, "RESPOND", decoded["action"])
	assert.Equal(t, "2024-01-02T03:04:05Z", decoded["occurred_at"])
	assert.NotContains(t, decoded, "error")
}
