// Package realtime relays alert events over Redis pub/sub. Publishing is
// fire-and-forget; the database stays the system of record.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/alerts"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/logger"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/metrics"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/models"

	"github.com/redis/go-redis/v9"
)

const DefaultPrefix = "emergencyconnect:"

var _ alerts.Broadcaster = (*Broadcaster)(nil)

type Broadcaster struct {
	client *redis.Client
	prefix string
	logger logger.Logger
}

// Message is an event received on a subscribed topic. Payload is the JSON
// encoded models.Event.
type Message struct {
	Topic   string
	Payload []byte
}

func NewBroadcaster(client *redis.Client, prefix string, log logger.Logger) *Broadcaster {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Broadcaster{
		client: client,
		prefix: prefix,
		logger: log.WithFields(map[string]interface{}{"component": "realtime"}),
	}
}

func (b *Broadcaster) Publish(ctx context.Context, topic string, event models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		metrics.RealtimePublishFailures.Inc()
		return fmt.Errorf("encode event: %w", err)
	}

	receivers, err := b.client.Publish(ctx, b.prefix+topic, data).Result()
	if err != nil {
		metrics.RealtimePublishFailures.Inc()
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	b.logger.Debug("event published", map[string]interface{}{
		"topic":     topic,
		"event":     event.Name,
		"receivers": receivers,
	})
	return nil
}

// Subscribe listens on topics until ctx is done. The returned channel is
// closed when the subscription ends.
func (b *Broadcaster) Subscribe(ctx context.Context, topics ...string) (<-chan Message, error) {
	if len(topics) == 0 {
		return nil, fmt.Errorf("subscribe: no topics")
	}

	channels := make([]string, len(topics))
	for i, t := range topics {
		channels[i] = b.prefix + t
	}

	ps := b.client.Subscribe(ctx, channels...)
	for confirmed := 0; confirmed < len(channels); {
		msg, err := ps.Receive(ctx)
		if err != nil {
			_ = ps.Close()
			return nil, fmt.Errorf("subscribe: %w", err)
		}
		if _, ok := msg.(*redis.Subscription); ok {
			confirmed++
		}
	}

	out := make(chan Message)
	go func() {
		defer close(out)
		defer ps.Close()

		in := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- Message{Topic: strings.TrimPrefix(msg.Channel, b.prefix), Payload: []byte(msg.Payload)}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	b.logger.Debug("subscribed", map[string]interface{}{"topics": strings.Join(topics, ",")})
	return out, nil
}
