package models

import "time"

// Realtime event names published to user and role topics.
const (
	EventNewAlert          = "newAlert"
	EventAlertAcknowledged = "alertAcknowledged"
	EventAlertCancelled    = "alertCancelled"
)

type Event struct {
	Name      string      `json:"event"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

func UserTopic(userID string) string { return "user:" + userID }

func RoleTopic(role string) string { return "role:" + role }
