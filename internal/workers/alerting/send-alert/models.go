package sendalert

import "github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/models"

// Input either names an existing pending alert by AlertID or carries a new
// alert to create and send in one step.
type Input struct {
	AlertID    string           `json:"alertId,omitempty"`
	Title      string           `json:"title,omitempty"`
	Message    string           `json:"message,omitempty"`
	Severity   models.Severity  `json:"severity,omitempty"`
	Channels   []models.Channel `json:"channels,omitempty"`
	Targeting  models.Targeting `json:"targeting"`
	CreatedBy  string           `json:"createdBy,omitempty"`
	IncidentID string           `json:"incidentId,omitempty"`

	// JobKey is set from the activated job, not from process variables.
	JobKey string `json:"-"`
}

type Output struct {
	AlertID       string               `json:"alertId"`
	Status        models.AlertStatus   `json:"status"`
	DeliveryStats models.DeliveryStats `json:"deliveryStats"`
}
