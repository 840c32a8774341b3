package mesh

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBus_PublishSubscribe(t *testing.T) {
	b := NewLocalBus()

	var mu sync.Mutex
	var got []Event
	unsub, err := b.Subscribe(TopicHistoryLogged, func(_ context.Context, e Event) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	})
	require.NoError(t, err)
	_, err = b.Subscribe(TopicSessionOpened, func(context.Context, Event) {
		t.Error("handler for another topic was called")
	})
	require.NoError(t, err)

	e, err := NewEvent(TopicHistoryLogged, map[string]string{"id": "h1"})
	require.NoError(t, err)
	require.NoError(t, b.Publish(context.Background(), e))
	require.NoError(t, b.Close())

	mu.Lock()
	require.Len(t, got, 1)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(got[0].Payload, &payload))
	assert.Equal(t, "h1", payload["id"])
	assert.False(t, got[0].Timestamp.IsZero())
	mu.Unlock()

	unsub()
	require.NoError(t, b.Publish(context.Background(), e))
	require.NoError(t, b.Close())
	mu.Lock()
	assert.Len(t, got, 1)
	mu.Unlock()
}

func TestLocalBus_CancelledPublisherContext(t *testing.T) {
	b := NewLocalBus()
	done := make(chan error, 1)
	_, _ = b.Subscribe(TopicSessionClosed, func(ctx context.Context, _ Event) { done <- ctx.Err() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, b.Publish(ctx, Event{Topic: TopicSessionClosed}))
	assert.NoError(t, <-done)
}
