package models

import (
	"fmt"
	"time"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Urgent reports whether the severity warrants transactional delivery.
func (s Severity) Urgent() bool {
	return s == SeverityHigh || s == SeverityCritical
}

type AlertStatus string

const (
	AlertStatusPending   AlertStatus = "pending"
	AlertStatusSent      AlertStatus = "sent"
	AlertStatusCancelled AlertStatus = "cancelled"
	AlertStatusFailed    AlertStatus = "failed"
)

// CanTransition reports whether an alert may move from s to next.
// Only pending alerts change status.
func (s AlertStatus) CanTransition(next AlertStatus) bool {
	if s != AlertStatusPending {
		return false
	}
	switch next {
	case AlertStatusSent, AlertStatusCancelled, AlertStatusFailed:
		return true
	}
	return false
}

// Targeting selects recipients. The three fields are independent and their
// selections are unioned.
type Targeting struct {
	All     bool     `json:"all"`
	Roles   []string `json:"roles,omitempty"`
	UserIDs []string `json:"userIds,omitempty"`
}

// Empty reports whether no selection criterion is set.
func (t Targeting) Empty() bool {
	return !t.All && len(t.Roles) == 0 && len(t.UserIDs) == 0
}

// DeliveryStats summarizes the attempts of one dispatch.
type DeliveryStats struct {
	Total   int `json:"total"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Pending int `json:"pending"`
}

// Consistent reports whether Total == Sent + Failed + Pending.
func (d DeliveryStats) Consistent() bool {
	return d.Total == d.Sent+d.Failed+d.Pending
}

type Alert struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	Message         string           `json:"message"`
	Severity        Severity         `json:"severity"`
	CreatedBy       string           `json:"createdBy"`
	IncidentID      string           `json:"incidentId,omitempty"`
	Channels        []Channel        `json:"channels"`
	Targeting       Targeting        `json:"targeting"`
	Status          AlertStatus      `json:"status"`
	DeliveryStats   DeliveryStats    `json:"deliveryStats"`
	Acknowledgments []Acknowledgment `json:"acknowledgments"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
	SentAt          *time.Time       `json:"sentAt,omitempty"`
}

// Transition moves the alert to next, stamping UpdatedAt and, for a
// terminal dispatch outcome, SentAt.
func (a *Alert) Transition(next AlertStatus, at time.Time) error {
	if !a.Status.CanTransition(next) {
		return fmt.Errorf("alert %s: cannot move from %s to %s", a.ID, a.Status, next)
	}
	a.Status = next
	a.UpdatedAt = at
	if next == AlertStatusSent || next == AlertStatusFailed {
		sentAt := at
		a.SentAt = &sentAt
	}
	return nil
}

// Acknowledgeable reports whether users may acknowledge the alert: only
// after a dispatch, whatever its outcome.
func (a *Alert) Acknowledgeable() bool {
	return a.Status == AlertStatusSent || a.Status == AlertStatusFailed
}
