package handler

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/elective-enrollment-api/internal/models"
	"github.com/noah-isme/elective-enrollment-api/internal/realtime"
	appErrors "github.com/noah-isme/elective-enrollment-api/pkg/errors"
	"github.com/noah-isme/elective-enrollment-api/pkg/response"
)

const defaultHeartbeat = 25 * time.Second

type topicSubscriber interface {
	Subscribe(topic string) *realtime.Subscription
}

// EventsHandler streams realtime topics as server-sent events.
type EventsHandler struct {
	hub       topicSubscriber
	heartbeat time.Duration
	logger    *zap.Logger
	closing   chan struct{}
	closeOnce sync.Once
}

// NewEventsHandler constructs EventsHandler. heartbeat <= 0 uses the default.
func NewEventsHandler(hub topicSubscriber, heartbeat time.Duration, logger *zap.Logger) *EventsHandler {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventsHandler{hub: hub, heartbeat: heartbeat, logger: logger, closing: make(chan struct{})}
}

// Shutdown ends every open stream so the HTTP server can drain.
func (h *EventsHandler) Shutdown() {
	h.closeOnce.Do(func() { close(h.closing) })
}

// Stream godoc
// @Summary Subscribe to a realtime topic
// @Description Section topics are named Subject_Year_Department. Staff may also subscribe to audience.FACULTY or audience.ADMIN.
// @Tags Events
// @Produce text/event-stream
// @Param topic query string true "Topic"
// @Param access_token query string false "Access token for EventSource clients"
// @Success 200 {string} string "event stream"
// @Router /events/stream [get]
func (h *EventsHandler) Stream(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	topic := strings.TrimSpace(c.Query("topic"))
	if topic == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "topic is required"))
		return
	}
	if err := authorizeTopic(claims, topic); err != nil {
		response.Error(c, err)
		return
	}

	sub := h.hub.Subscribe(topic)
	defer sub.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.SSEvent("subscribed", gin.H{"topic": topic})
	c.Writer.Flush()

	h.logger.Debug("event stream opened", zap.String("topic", topic), zap.String("user_id", claims.UserID))

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("event stream closed",
				zap.String("topic", topic),
				zap.String("user_id", claims.UserID),
				zap.Uint64("dropped", sub.Dropped()))
			return
		case <-h.closing:
			c.SSEvent("shutdown", gin.H{"reconnect": true})
			c.Writer.Flush()
			return
		case event := <-sub.Events():
			c.SSEvent(event.Type, event)
			c.Writer.Flush()
		case <-ticker.C:
			c.SSEvent("heartbeat", gin.H{"at": time.Now().UTC()})
			c.Writer.Flush()
		}
	}
}

// authorizeTopic keeps audience topics to the matching staff role. Admins may
// watch any audience.
func authorizeTopic(claims *models.JWTClaims, topic string) error {
	if !strings.HasPrefix(topic, models.AudienceTopicPrefix) {
		return nil
	}
	switch claims.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleFaculty:
		if topic == models.AudienceTopic(models.RoleFaculty) {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden, "topic not available for your role")
}
