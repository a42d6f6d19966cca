package models

import "time"

// Provider names the backend that handled a delivery attempt.
type Provider string

const (
	ProviderSES       Provider = "ses"
	ProviderSNS       Provider = "sns"
	ProviderExpo      Provider = "expo"
	ProviderSimulated Provider = "simulated"
	ProviderNone      Provider = "none"
)

// Reasons attached to attempts that did not go through a live provider.
const (
	ReasonMissingOrInvalidAddress = "missing_or_invalid_address"
	ReasonProviderNotConfigured   = "provider_not_configured"
	ReasonProviderError           = "provider_error"
	ReasonProviderTimeout         = "provider_timeout"
	ReasonNoProviderForTokenKind  = "no_provider_for_token_kind"
)

// DeliveryAttempt is the outcome of one adapter call for one
// (recipient, channel) pair.
type DeliveryAttempt struct {
	AlertID     string        `json:"alertId"`
	RecipientID string        `json:"recipientId"`
	Channel     Channel       `json:"channel"`
	Success     bool          `json:"success"`
	Provider    Provider      `json:"provider"`
	Reason      string        `json:"reason,omitempty"`
	Error       string        `json:"error,omitempty"`
	MessageID   string        `json:"messageId,omitempty"`
	AttemptedAt time.Time     `json:"attemptedAt"`
	Duration    time.Duration `json:"duration"`
}

// Outcome is the result label used for metrics and audit.
func (a DeliveryAttempt) Outcome() string {
	switch {
	case !a.Success:
		return "failed"
	case a.Provider == ProviderSimulated:
		return "simulated"
	default:
		return "sent"
	}
}
