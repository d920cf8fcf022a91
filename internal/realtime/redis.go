package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/elective-enrollment-api/internal/models"
)

// RedisPublisher pushes events to Redis channels named "<prefix>:<topic>".
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

// NewRedisPublisher constructs a publisher.
func NewRedisPublisher(client *redis.Client, prefix string) *RedisPublisher {
	return &RedisPublisher{client: client, prefix: prefix}
}

// Channel returns the Redis channel for a topic.
func (p *RedisPublisher) Channel(topic string) string {
	return channelName(p.prefix, topic)
}

// Publish sends the JSON encoded event.
func (p *RedisPublisher) Publish(ctx context.Context, event models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.Type, err)
	}
	if err := p.client.Publish(ctx, p.Channel(event.Topic), payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", event.Topic, err)
	}
	return nil
}

func channelName(prefix, topic string) string {
	if prefix == "" {
		return topic
	}
	return prefix + ":" + topic
}

// Bridge relays every event published under prefix into the local hub, so SSE
// clients of this instance see changes committed by any instance. It returns
// nil when ctx ends and an error when the subscription fails.
func Bridge(ctx context.Context, client *redis.Client, prefix string, hub *Hub, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	pubsub := client.PSubscribe(ctx, channelName(prefix, "*"))
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis psubscribe %s: %w", prefix, err)
	}
	logger.Info("realtime bridge subscribed", zap.String("pattern", channelName(prefix, "*")))

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("redis psubscribe %s: subscription closed", prefix)
			}
			event, err := decodeMessage(prefix, msg)
			if err != nil {
				logger.Warn("discarding malformed realtime message", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			_ = hub.Publish(ctx, event)
		}
	}
}

// BridgeBackoff bounds the delay between reconnect attempts of KeepBridged.
type BridgeBackoff struct {
	Initial time.Duration
	Max     time.Duration
}

// KeepBridged runs Bridge until ctx ends, reconnecting after every failure.
// The delay doubles per consecutive failure up to Max and resets once a
// subscription has stayed up for longer than Max.
func KeepBridged(ctx context.Context, client *redis.Client, prefix string, hub *Hub, logger *zap.Logger, backoff BridgeBackoff) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if backoff.Initial <= 0 {
		backoff.Initial = 500 * time.Millisecond
	}
	if backoff.Max < backoff.Initial {
		backoff.Max = 30 * time.Second
	}

	delay := backoff.Initial
	for {
		started := time.Now()
		err := Bridge(ctx, client, prefix, hub, logger)
		if ctx.Err() != nil {
			return
		}
		if time.Since(started) > backoff.Max {
			delay = backoff.Initial
		}
		logger.Warn("realtime bridge failed, reconnecting", zap.Duration("retry_in", delay), zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		delay *= 2
		if delay > backoff.Max {
			delay = backoff.Max
		}
	}
}

func decodeMessage(prefix string, msg *redis.Message) (models.Event, error) {
	var event models.Event
	if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
		return event, err
	}
	if event.Topic == "" {
		event.Topic = strings.TrimPrefix(msg.Channel, prefix+":")
	}
	return event, nil
}
