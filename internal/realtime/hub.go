// Package realtime fans allocation events out to topic subscribers, either in
// process or through Redis pub/sub.
package realtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/elective-enrollment-api/internal/models"
)

const defaultSubscriberBuffer = 16

// Subscription receives the events of one topic until Close is called.
type Subscription struct {
	topic   string
	events  chan models.Event
	done    chan struct{}
	once    sync.Once
	hub     *Hub
	dropped uint64
}

// Topic returns the subscribed topic.
func (s *Subscription) Topic() string { return s.topic }

// Events yields delivered events. The channel is never closed; select on Done
// to notice the end of the subscription.
func (s *Subscription) Events() <-chan models.Event { return s.events }

// Done is closed once the subscription ends.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Dropped returns how many events were discarded because the subscriber was
// not keeping up.
func (s *Subscription) Dropped() uint64 { return atomic.LoadUint64(&s.dropped) }

// Close detaches the subscription from its hub.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
		close(s.done)
	})
}

// Hub is an in-process topic registry. Publishing never blocks on a slow
// subscriber: a full subscriber buffer drops the event for that subscriber.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
	buffer int
	logger *zap.Logger
	now    func() time.Time
}

// NewHub constructs a hub with the given per-subscriber buffer.
func NewHub(buffer int, logger *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		topics: make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
		logger: logger,
		now:    time.Now,
	}
}

// Subscribe registers interest in a topic.
func (h *Hub) Subscribe(topic string) *Subscription {
	sub := &Subscription{
		topic:  topic,
		events: make(chan models.Event, h.buffer),
		done:   make(chan struct{}),
		hub:    h,
	}
	h.mu.Lock()
	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[*Subscription]struct{})
		h.topics[topic] = subs
	}
	subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.topics[sub.topic]
	if !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(h.topics, sub.topic)
	}
}

// SubscriberCount returns the number of live subscriptions on a topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Publish delivers event to every current subscriber of its topic.
func (h *Hub) Publish(_ context.Context, event models.Event) error {
	if event.PublishedAt.IsZero() {
		event.PublishedAt = h.now().UTC()
	}

	h.mu.RLock()
	subs := make([]*Subscription, 0, len(h.topics[event.Topic]))
	for sub := range h.topics[event.Topic] {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.events <- event:
		case <-sub.done:
		default:
			atomic.AddUint64(&sub.dropped, 1)
			h.logger.Debug("subscriber buffer full, event dropped",
				zap.String("topic", event.Topic),
				zap.String("type", event.Type))
		}
	}
	return nil
}
