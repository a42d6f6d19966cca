package postgres

import (
	"context"
	"fmt"
)

// Constraint names referenced when mapping driver errors.
const (
	constraintAckUnique  = "alert_acknowledgments_alert_user_key"
	constraintAckUserFK  = "alert_acknowledgments_user_id_fkey"
	constraintAckAlertFK = "alert_acknowledgments_alert_id_fkey"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL DEFAULT '',
    role            TEXT NOT NULL DEFAULT 'user',
    email           TEXT,
    phone           TEXT,
    push_token      TEXT,
    push_token_kind TEXT,
    email_enabled   BOOLEAN NOT NULL DEFAULT TRUE,
    sms_enabled     BOOLEAN NOT NULL DEFAULT FALSE,
    push_enabled    BOOLEAN NOT NULL DEFAULT FALSE,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS alerts (
    id              TEXT PRIMARY KEY,
    title           TEXT NOT NULL,
    message         TEXT NOT NULL,
    severity        TEXT NOT NULL,
    created_by      TEXT NOT NULL,
    incident_id     TEXT,
    channels        TEXT[] NOT NULL,
    target_all      BOOLEAN NOT NULL DEFAULT FALSE,
    target_roles    TEXT[] NOT NULL DEFAULT '{}',
    target_user_ids TEXT[] NOT NULL DEFAULT '{}',
    status          TEXT NOT NULL,
    stats_total     INTEGER NOT NULL DEFAULT 0,
    stats_sent      INTEGER NOT NULL DEFAULT 0,
    stats_failed    INTEGER NOT NULL DEFAULT 0,
    stats_pending   INTEGER NOT NULL DEFAULT 0,
    created_at      TIMESTAMPTZ NOT NULL,
    updated_at      TIMESTAMPTZ NOT NULL,
    sent_at         TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS alerts_status_idx ON alerts (status);

CREATE TABLE IF NOT EXISTS alert_acknowledgments (
    alert_id        TEXT NOT NULL,
    user_id         TEXT NOT NULL,
    notes           TEXT,
    acknowledged_at TIMESTAMPTZ NOT NULL,
    CONSTRAINT ` + constraintAckUnique + ` UNIQUE (alert_id, user_id),
    CONSTRAINT ` + constraintAckAlertFK + ` FOREIGN KEY (alert_id) REFERENCES alerts (id) ON DELETE CASCADE,
    CONSTRAINT ` + constraintAckUserFK + ` FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
);
`

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	s.logger.Info("database schema ensured", nil)
	return nil
}
