// Package alerts owns the alert lifecycle: creation, dispatch, cancellation
// and acknowledgment. Persistence, broadcast and audit are collaborators
// reached through the interfaces below.
package alerts

import (
	"context"
	stderrors "errors"

	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/models"
)

// ErrDuplicateAcknowledgment is returned by Store.InsertAcknowledgment when
// the (alert, user) pair already has a record.
var ErrDuplicateAcknowledgment = stderrors.New("acknowledgment already exists")

// ErrStatusConflict is returned when the stored alert no longer has the
// status a write expected.
var ErrStatusConflict = stderrors.New("alert status changed")

// Store is the system of record for alerts and acknowledgments.
//
// Lookups of a missing alert return an ALERT_NOT_FOUND StandardError;
// InsertAcknowledgment and UpdatePushToken report an unknown user as
// USER_NOT_FOUND. SaveAlert only overwrites a pending alert and
// UpdateAlertStatus only applies while the stored status equals from; both
// return ErrStatusConflict otherwise.
type Store interface {
	UserLoader
	LoadAlert(ctx context.Context, alertID string) (*models.Alert, error)
	SaveAlert(ctx context.Context, alert *models.Alert) error
	UpdateAlertStatus(ctx context.Context, alert *models.Alert, from models.AlertStatus) error
	InsertAcknowledgment(ctx context.Context, ack models.Acknowledgment) (models.Acknowledgment, error)
	GetAcknowledgment(ctx context.Context, alertID, userID string) (models.Acknowledgment, error)
	CountAcknowledgments(ctx context.Context, alertID string) (int, error)
	ListAcknowledgments(ctx context.Context, alertID string) ([]models.Acknowledgment, error)
	UpdatePushToken(ctx context.Context, userID string, token models.PushToken) error
}

// UserLoader returns every user as a dispatch recipient.
type UserLoader interface {
	LoadUsers(ctx context.Context) ([]models.Recipient, error)
}

// Invalidator is implemented by user loaders that cache.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Dispatcher fans an alert out to its recipients.
type Dispatcher interface {
	Dispatch(ctx context.Context, alert *models.Alert, recipients []models.Recipient) []models.DeliveryAttempt
}

// Broadcaster publishes realtime events. Delivery is best-effort.
type Broadcaster interface {
	Publish(ctx context.Context, topic string, event models.Event) error
}

// Auditor keeps a searchable record of delivery attempts.
type Auditor interface {
	Record(ctx context.Context, alert *models.Alert, attempts []models.DeliveryAttempt) error
}
