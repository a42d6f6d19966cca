package alerts

import (
	"context"
	stderrors "errors"
	"strconv"
	"strings"
	"time"

	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/errors"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/logger"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/metrics"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/observability"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/models"
)

// AckRoleTopic receives every acknowledgment so dashboards can follow along.
const AckRoleTopic = "admin"

type AckResult struct {
	Created        bool                  `json:"created"`
	Acknowledgment models.Acknowledgment `json:"acknowledgment"`
	Total          int                   `json:"totalAcknowledgments"`
}

type AckStats struct {
	Total int `json:"total"`
}

// AckTracker records at most one acknowledgment per (alert, user). The
// uniqueness lives in the store; a duplicate insert is answered with the
// existing record.
type AckTracker struct {
	store   Store
	publish func(ctx context.Context, topics []string, event models.Event)
	obs     *observability.Observability
	logger  logger.Logger
	now     func() time.Time
}

func newAckTracker(store Store, publish func(context.Context, []string, models.Event), obs *observability.Observability, log logger.Logger, now func() time.Time) *AckTracker {
	return &AckTracker{store: store, publish: publish, obs: obs, logger: log, now: now}
}

func (t *AckTracker) Acknowledge(ctx context.Context, alertID, userID, notes string) (AckResult, error) {
	if strings.TrimSpace(userID) == "" {
		return AckResult{}, errors.NewValidationFailedError("userId is required")
	}

	alert, err := t.store.LoadAlert(ctx, alertID)
	if err != nil {
		return AckResult{}, err
	}
	if !alert.Acknowledgeable() {
		return AckResult{}, errors.NewAlertNotAcknowledgeableError(alertID, string(alert.Status))
	}

	created := true
	ack, err := t.store.InsertAcknowledgment(ctx, models.Acknowledgment{
		AlertID:        alertID,
		UserID:         userID,
		Notes:          notes,
		AcknowledgedAt: t.now(),
	})
	if stderrors.Is(err, ErrDuplicateAcknowledgment) {
		created = false
		ack, err = t.store.GetAcknowledgment(ctx, alertID, userID)
	}
	if err != nil {
		return AckResult{}, err
	}

	total, err := t.store.CountAcknowledgments(ctx, alertID)
	if err != nil {
		return AckResult{}, err
	}

	metrics.Acknowledgments.WithLabelValues(strconv.FormatBool(created)).Inc()
	t.obs.RecordAcknowledgment(ctx, created)

	t.logger.Info("alert acknowledged", map[string]interface{}{
		"alertId": alertID,
		"userId":  userID,
		"created": created,
		"total":   total,
	})

	if created {
		topics := []string{models.RoleTopic(AckRoleTopic)}
		if alert.CreatedBy != "" {
			topics = append([]string{models.UserTopic(alert.CreatedBy)}, topics...)
		}
		t.publish(ctx, topics, models.Event{
			Name: models.EventAlertAcknowledged,
			Payload: map[string]interface{}{
				"alertId":              alertID,
				"userId":               userID,
				"notes":                ack.Notes,
				"acknowledgedAt":       ack.AcknowledgedAt,
				"totalAcknowledgments": total,
			},
			Timestamp: t.now(),
		})
	}

	return AckResult{Created: created, Acknowledgment: ack, Total: total}, nil
}

// Stats counts the distinct users that acknowledged alertID.
func (t *AckTracker) Stats(ctx context.Context, alertID string) (AckStats, error) {
	if _, err := t.store.LoadAlert(ctx, alertID); err != nil {
		return AckStats{}, err
	}
	total, err := t.store.CountAcknowledgments(ctx, alertID)
	if err != nil {
		return AckStats{}, err
	}
	return AckStats{Total: total}, nil
}
