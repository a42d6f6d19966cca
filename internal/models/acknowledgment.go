package models

import "time"

// Acknowledgment records that a user has seen an alert. At most one exists
// per (AlertID, UserID).
type Acknowledgment struct {
	AlertID        string    `json:"alertId"`
	UserID         string    `json:"userId"`
	Notes          string    `json:"notes,omitempty"`
	AcknowledgedAt time.Time `json:"acknowledgedAt"`
}
