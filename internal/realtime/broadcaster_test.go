package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/logger"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBroadcaster(t *testing.T) (*Broadcaster, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewBroadcaster(client, "test:", logger.NewTestLogger(t)), mr
}

func TestBroadcaster_PublishSubscribe(t *testing.T) {
	b, _ := newTestBroadcaster(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := b.Subscribe(ctx, models.UserTopic("u1"), models.RoleTopic("admin"))
	require.NoError(t, err)

	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, b.Publish(ctx, models.RoleTopic("admin"), models.Event{
		Name:      models.EventNewAlert,
		Payload:   map[string]interface{}{"alertId": "a1"},
		Timestamp: ts,
	}))

	select {
	case msg := <-msgs:
		assert.Equal(t, "role:admin", msg.Topic)

		var got struct {
			Event   string                 `json:"event"`
			Payload map[string]interface{} `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(msg.Payload, &got))
		assert.Equal(t, models.EventNewAlert, got.Event)
		assert.Equal(t, "a1", got.Payload["alertId"])
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}

	cancel()
	assert.Eventually(t, func() bool {
		_, open := <-msgs
		return !open
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBroadcaster_PublishWithoutSubscribers(t *testing.T) {
	b, _ := newTestBroadcaster(t)

	assert.NoError(t, b.Publish(context.Background(), "user:nobody", models.Event{Name: models.EventAlertCancelled}))
}

func TestBroadcaster_PublishFailure(t *testing.T) {
	b, mr := newTestBroadcaster(t)
	mr.Close()

	err := b.Publish(context.Background(), "user:u1", models.Event{Name: models.EventNewAlert})
	assert.Error(t, err)
}

func TestBroadcaster_SubscribeRequiresTopics(t *testing.T) {
	b, _ := newTestBroadcaster(t)
	_, err := b.Subscribe(context.Background())
	assert.Error(t, err)
}
