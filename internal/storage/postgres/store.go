// Package postgres is the PostgreSQL implementation of alerts.Store.
package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"time"

	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/alerts"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/errors"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/logger"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/models"

	"github.com/lib/pq"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

var _ alerts.Store = (*Store)(nil)

type Store struct {
	db     *sql.DB
	logger logger.Logger
}

func New(db *sql.DB, log logger.Logger) *Store {
	return &Store{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "postgres-store"}),
	}
}

const selectUsers = `
SELECT id, name, role, COALESCE(email, ''), COALESCE(phone, ''),
       COALESCE(push_token, ''), COALESCE(push_token_kind, ''),
       email_enabled, sms_enabled, push_enabled
FROM users
ORDER BY created_at, id`

func (s *Store) LoadUsers(ctx context.Context) ([]models.Recipient, error) {
	rows, err := s.db.QueryContext(ctx, selectUsers)
	if err != nil {
		return nil, errors.NewDatabaseQueryFailedError("load users", err)
	}
	defer rows.Close()

	users := make([]models.Recipient, 0)
	for rows.Next() {
		var (
			r    models.Recipient
			kind string
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.Role, &r.Email, &r.Phone,
			&r.PushToken.Value, &kind,
			&r.Channels.Email, &r.Channels.SMS, &r.Channels.Push); err != nil {
			return nil, errors.NewDatabaseQueryFailedError("scan user", err)
		}
		r.PushToken.Kind = models.PushTokenKind(kind)
		users = append(users, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseQueryFailedError("iterate users", err)
	}
	return users, nil
}

// UpsertUser inserts or replaces a user row.
func (s *Store) UpsertUser(ctx context.Context, r models.Recipient) error {
	const query = `
INSERT INTO users (id, name, role, email, phone, push_token, push_token_kind, email_enabled, sms_enabled, push_enabled)
VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8, $9, $10)
ON CONFLICT (id) DO UPDATE SET
    name = EXCLUDED.name,
    role = EXCLUDED.role,
    email = EXCLUDED.email,
    phone = EXCLUDED.phone,
    push_token = EXCLUDED.push_token,
    push_token_kind = EXCLUDED.push_token_kind,
    email_enabled = EXCLUDED.email_enabled,
    sms_enabled = EXCLUDED.sms_enabled,
    push_enabled = EXCLUDED.push_enabled,
    updated_at = NOW()`

	_, err := s.db.ExecContext(ctx, query, r.ID, r.Name, r.Role, r.Email, r.Phone,
		r.PushToken.Value, string(r.PushToken.Kind),
		r.Channels.Email, r.Channels.SMS, r.Channels.Push)
	if err != nil {
		return errors.NewDatabaseInsertFailedError("upsert user", err)
	}
	return nil
}

const selectAlert = `
SELECT id, title, message, severity, created_by, COALESCE(incident_id, ''), channels,
       target_all, target_roles, target_user_ids, status,
       stats_total, stats_sent, stats_failed, stats_pending,
       created_at, updated_at, sent_at
FROM alerts
WHERE id = $1`

func (s *Store) LoadAlert(ctx context.Context, alertID string) (*models.Alert, error) {
	var (
		a        models.Alert
		channels []string
		sentAt   sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, selectAlert, alertID).Scan(
		&a.ID, &a.Title, &a.Message, &a.Severity, &a.CreatedBy, &a.IncidentID, pq.Array(&channels),
		&a.Targeting.All, pq.Array(&a.Targeting.Roles), pq.Array(&a.Targeting.UserIDs), &a.Status,
		&a.DeliveryStats.Total, &a.DeliveryStats.Sent, &a.DeliveryStats.Failed, &a.DeliveryStats.Pending,
		&a.CreatedAt, &a.UpdatedAt, &sentAt,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewAlertNotFoundError(alertID)
	}
	if err != nil {
		return nil, errors.NewDatabaseQueryFailedError("load alert", err)
	}

	a.Channels = make([]models.Channel, len(channels))
	for i, c := range channels {
		a.Channels[i] = models.Channel(c)
	}
	if sentAt.Valid {
		t := sentAt.Time
		a.SentAt = &t
	}
	a.Acknowledgments = []models.Acknowledgment{}
	return &a, nil
}

const upsertAlert = `
INSERT INTO alerts (id, title, message, severity, created_by, incident_id, channels,
                    target_all, target_roles, target_user_ids, status,
                    stats_total, stats_sent, stats_failed, stats_pending,
                    created_at, updated_at, sent_at)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
ON CONFLICT (id) DO UPDATE SET
    status = EXCLUDED.status,
    stats_total = EXCLUDED.stats_total,
    stats_sent = EXCLUDED.stats_sent,
    stats_failed = EXCLUDED.stats_failed,
    stats_pending = EXCLUDED.stats_pending,
    updated_at = EXCLUDED.updated_at,
    sent_at = EXCLUDED.sent_at
WHERE alerts.status = 'pending'`

// SaveAlert inserts the alert, or updates its status, stats and timestamps
// while the stored row is still pending. Content fields are immutable after
// creation.
func (s *Store) SaveAlert(ctx context.Context, a *models.Alert) error {
	channels := make([]string, len(a.Channels))
	for i, c := range a.Channels {
		channels[i] = string(c)
	}
	res, err := s.db.ExecContext(ctx, upsertAlert,
		a.ID, a.Title, a.Message, string(a.Severity), a.CreatedBy, a.IncidentID, pq.Array(channels),
		a.Targeting.All, pq.Array(nonNil(a.Targeting.Roles)), pq.Array(nonNil(a.Targeting.UserIDs)), string(a.Status),
		a.DeliveryStats.Total, a.DeliveryStats.Sent, a.DeliveryStats.Failed, a.DeliveryStats.Pending,
		a.CreatedAt, a.UpdatedAt, nullTime(a.SentAt),
	)
	if err != nil {
		return errors.NewDatabaseInsertFailedError("save alert", err)
	}
	return expectOneRow(res, "save alert")
}

// UpdateAlertStatus is a compare-and-set on status: the row changes only if
// its status is still from, so of two racing transitions exactly one wins.
func (s *Store) UpdateAlertStatus(ctx context.Context, a *models.Alert, from models.AlertStatus) error {
	const query = `
UPDATE alerts SET
    status = $3,
    stats_total = $4,
    stats_sent = $5,
    stats_failed = $6,
    stats_pending = $7,
    updated_at = $8,
    sent_at = $9
WHERE id = $1 AND status = $2`

	res, err := s.db.ExecContext(ctx, query, a.ID, string(from), string(a.Status),
		a.DeliveryStats.Total, a.DeliveryStats.Sent, a.DeliveryStats.Failed, a.DeliveryStats.Pending,
		a.UpdatedAt, nullTime(a.SentAt))
	if err != nil {
		return errors.NewDatabaseInsertFailedError("update alert status", err)
	}
	return expectOneRow(res, "update alert status")
}

func expectOneRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.NewDatabaseInsertFailedError(op, err)
	}
	if n == 0 {
		return alerts.ErrStatusConflict
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// InsertAcknowledgment relies on the (alert_id, user_id) unique constraint:
// a second insert for the same pair returns alerts.ErrDuplicateAcknowledgment.
func (s *Store) InsertAcknowledgment(ctx context.Context, ack models.Acknowledgment) (models.Acknowledgment, error) {
	const query = `
INSERT INTO alert_acknowledgments (alert_id, user_id, notes, acknowledged_at)
VALUES ($1, $2, NULLIF($3, ''), $4)`

	_, err := s.db.ExecContext(ctx, query, ack.AlertID, ack.UserID, ack.Notes, ack.AcknowledgedAt)
	if err == nil {
		return ack, nil
	}

	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqUniqueViolation:
			return models.Acknowledgment{}, alerts.ErrDuplicateAcknowledgment
		case pqForeignKeyViolation:
			if pqErr.Constraint == constraintAckAlertFK {
				return models.Acknowledgment{}, errors.NewAlertNotFoundError(ack.AlertID)
			}
			return models.Acknowledgment{}, errors.NewUserNotFoundError(ack.UserID)
		}
	}
	return models.Acknowledgment{}, errors.NewDatabaseInsertFailedError("insert acknowledgment", err)
}

func (s *Store) GetAcknowledgment(ctx context.Context, alertID, userID string) (models.Acknowledgment, error) {
	const query = `
SELECT alert_id, user_id, COALESCE(notes, ''), acknowledged_at
FROM alert_acknowledgments
WHERE alert_id = $1 AND user_id = $2`

	var ack models.Acknowledgment
	err := s.db.QueryRowContext(ctx, query, alertID, userID).
		Scan(&ack.AlertID, &ack.UserID, &ack.Notes, &ack.AcknowledgedAt)
	if err != nil {
		return models.Acknowledgment{}, errors.NewDatabaseQueryFailedError("get acknowledgment", err)
	}
	return ack, nil
}

func (s *Store) CountAcknowledgments(ctx context.Context, alertID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alert_acknowledgments WHERE alert_id = $1`, alertID).Scan(&n)
	if err != nil {
		return 0, errors.NewDatabaseQueryFailedError("count acknowledgments", err)
	}
	return n, nil
}

func (s *Store) ListAcknowledgments(ctx context.Context, alertID string) ([]models.Acknowledgment, error) {
	const query = `
SELECT alert_id, user_id, COALESCE(notes, ''), acknowledged_at
FROM alert_acknowledgments
WHERE alert_id = $1
ORDER BY acknowledged_at, user_id`

	rows, err := s.db.QueryContext(ctx, query, alertID)
	if err != nil {
		return nil, errors.NewDatabaseQueryFailedError("list acknowledgments", err)
	}
	defer rows.Close()

	acks := make([]models.Acknowledgment, 0)
	for rows.Next() {
		var ack models.Acknowledgment
		if err := rows.Scan(&ack.AlertID, &ack.UserID, &ack.Notes, &ack.AcknowledgedAt); err != nil {
			return nil, errors.NewDatabaseQueryFailedError("scan acknowledgment", err)
		}
		acks = append(acks, ack)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseQueryFailedError("iterate acknowledgments", err)
	}
	return acks, nil
}

func (s *Store) UpdatePushToken(ctx context.Context, userID string, token models.PushToken) error {
	const query = `
UPDATE users SET push_token = $2, push_token_kind = $3, updated_at = NOW()
WHERE id = $1`

	res, err := s.db.ExecContext(ctx, query, userID, token.Value, string(token.Kind))
	if err != nil {
		return errors.NewDatabaseInsertFailedError("update push token", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.NewDatabaseInsertFailedError("update push token", err)
	}
	if n == 0 {
		return errors.NewUserNotFoundError(userID)
	}
	return nil
}

func nonNil(ss []string) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
