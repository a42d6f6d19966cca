// Package cache keeps the recipient directory in Redis so a burst of alerts
// does not reload every user from Postgres.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/alerts"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/logger"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultKey = "emergencyconnect:recipients"
	DefaultTTL = time.Minute
)

var (
	_ alerts.UserLoader  = (*Directory)(nil)
	_ alerts.Invalidator = (*Directory)(nil)
)

// Directory is a cache-aside alerts.UserLoader. Redis failures fall through
// to the wrapped loader.
type Directory struct {
	next   alerts.UserLoader
	redis  *redis.Client
	key    string
	ttl    time.Duration
	logger logger.Logger
}

func NewDirectory(next alerts.UserLoader, client *redis.Client, key string, ttl time.Duration, log logger.Logger) *Directory {
	if key == "" {
		key = DefaultKey
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Directory{
		next:   next,
		redis:  client,
		key:    key,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "recipient-cache"}),
	}
}

func (d *Directory) LoadUsers(ctx context.Context) ([]models.Recipient, error) {
	if val, err := d.redis.Get(ctx, d.key).Result(); err == nil {
		var users []models.Recipient
		if err := json.Unmarshal([]byte(val), &users); err == nil {
			return users, nil
		}
		d.logger.Warn("discarding unreadable recipient cache entry", map[string]interface{}{"key": d.key})
	} else if err != redis.Nil {
		d.logger.Warn("recipient cache read failed", map[string]interface{}{"error": err.Error()})
	}

	users, err := d.next.LoadUsers(ctx)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(users)
	if err != nil {
		return users, nil
	}
	if err := d.redis.Set(ctx, d.key, data, d.ttl).Err(); err != nil {
		d.logger.Warn("recipient cache write failed", map[string]interface{}{"error": err.Error()})
	}
	return users, nil
}

// Invalidate drops the cached directory. Called after a user changes.
func (d *Directory) Invalidate(ctx context.Context) error {
	if err := d.redis.Del(ctx, d.key).Err(); err != nil {
		return fmt.Errorf("invalidate recipient cache: %w", err)
	}
	return nil
}
