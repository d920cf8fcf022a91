package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/elective-enrollment-api/internal/models"
)

func TestRedisPublisherChannel(t *testing.T) {
	publisher := NewRedisPublisher(nil, "enrollment")
	assert.Equal(t, "enrollment:audience.FACULTY", publisher.Channel(models.AudienceTopic(models.RoleFaculty)))
	assert.Equal(t, "topic", NewRedisPublisher(nil, "").Channel("topic"))
}

func TestRedisPublisherReportsUnreachableServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer client.Close()
	publisher := NewRedisPublisher(client, "enrollment")

	err := publisher.Publish(context.Background(), models.Event{Topic: "Cloud Computing_3_CSE", Type: models.EventSectionEnrolled})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis publish Cloud Computing_3_CSE")
}

func TestDecodeMessageFallsBackToChannelTopic(t *testing.T) {
	event, err := decodeMessage("enrollment", &redis.Message{Channel: "enrollment:Cloud Computing_3_CSE", Payload: `{"type":"section.enrollment_updated","data":{"new_count":3}}`})
	require.NoError(t, err)
	assert.Equal(t, "Cloud Computing_3_CSE", event.Topic)
	assert.Equal(t, models.EventSectionEnrolled, event.Type)

	_, err = decodeMessage("enrollment", &redis.Message{Channel: "enrollment:x", Payload: "not json"})
	assert.Error(t, err)
}

func TestBridgeReportsSubscribeFailure(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer client.Close()

	err := Bridge(context.Background(), client, "enrollment", NewHub(4, nil), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis psubscribe enrollment")
}

func TestKeepBridgedReconnectsUntilCancelled(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 20 * time.Millisecond, MaxRetries: -1})
	defer client.Close()
	core, logs := observer.New(zapcore.WarnLevel)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		KeepBridged(ctx, client, "enrollment", NewHub(4, nil), zap.New(core), BridgeBackoff{Initial: 5 * time.Millisecond, Max: 200 * time.Millisecond})
	}()

	require.Eventually(t, func() bool {
		return logs.FilterMessage("realtime bridge failed, reconnecting").Len() >= 3
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("bridge loop did not stop after cancellation")
	}

	attempts := logs.FilterMessage("realtime bridge failed, reconnecting").All()
	assert.Equal(t, 5*time.Millisecond, attempts[0].ContextMap()["retry_in"])
	assert.Equal(t, 10*time.Millisecond, attempts[1].ContextMap()["retry_in"])
	assert.Equal(t, 20*time.Millisecond, attempts[2].ContextMap()["retry_in"])
}
