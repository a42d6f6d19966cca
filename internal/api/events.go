package api

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/errors"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/models"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/realtime"

	"github.com/gin-gonic/gin"
)

// EventSource delivers realtime messages for a set of topics until ctx ends.
type EventSource interface {
	Subscribe(ctx context.Context, topics ...string) (<-chan realtime.Message, error)
}

var _ EventSource = (*realtime.Broadcaster)(nil)

// StreamEvents streams the events of the caller's user topic and role topics
// as server-sent events.
//
//	GET /api/v1/events?userId=u1&role=admin&role=responder
func (h *Handlers) StreamEvents(c *gin.Context) {
	topics := eventTopics(c.Query("userId"), c.QueryArray("role"))
	if len(topics) == 0 {
		h.respondError(c, errors.NewValidationFailedError("userId or role is required"))
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	messages, err := h.events.Subscribe(ctx, topics...)
	if err != nil {
		h.respondError(c, errors.NewInternalError(err))
		return
	}

	h.logger.Debug("event stream opened", map[string]interface{}{"topics": topics})

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		select {
		case msg, ok := <-messages:
			if !ok {
				return false
			}
			c.SSEvent(eventName(msg.Payload), string(msg.Payload))
			return true
		case <-heartbeat.C:
			c.SSEvent("heartbeat", time.Now().UTC().Format(time.RFC3339))
			return true
		case <-ctx.Done():
			return false
		}
	})

	h.logger.Debug("event stream closed", map[string]interface{}{"topics": topics})
}

func eventTopics(userID string, roles []string) []string {
	var topics []string
	if id := strings.TrimSpace(userID); id != "" {
		topics = append(topics, models.UserTopic(id))
	}
	seen := make(map[string]bool, len(roles))
	for _, role := range roles {
		role = strings.ToLower(strings.TrimSpace(role))
		if role == "" || seen[role] {
			continue
		}
		seen[role] = true
		topics = append(topics, models.RoleTopic(role))
	}
	return topics
}

// eventName reads the event name out of a published models.Event.
func eventName(payload []byte) string {
	var head struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal(payload, &head); err != nil || head.Event == "" {
		return "message"
	}
	return head.Event
}
