package repository

import (
	"database/sql"
	"time"
)

// EscalationLogRepository records dispatched escalation events so the daily
// scan stays idempotent. The detector itself never writes here; only the
// dispatch job does, after a successful send.
type EscalationLogRepository struct {
	db *sql.DB
}

// NewEscalationLogRepository creates a new escalation log repository
func NewEscalationLogRepository(db *sql.DB) *EscalationLogRepository {
	return &EscalationLogRepository{db: db}
}

// WasDispatched reports whether a (plan/milestone, threshold) key has
// already been dispatched on the given day
func (r *EscalationLogRepository) WasDispatched(dedupeKey string, day time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM cap_escalation_log
			WHERE dedupe_key = $1 AND dispatched_on = $2::date
		)
	`

	var exists bool
	err := r.db.QueryRow(query, dedupeKey, day).Scan(&exists)
	return exists, err
}

// MarkDispatched records a dispatched event key for the given day
func (r *EscalationLogRepository) MarkDispatched(dedupeKey, eventID string, day time.Time) error {
	query := `
		INSERT INTO cap_escalation_log (dedupe_key, event_id, dispatched_on)
		VALUES ($1, $2, $3::date)
		ON CONFLICT (dedupe_key, dispatched_on) DO NOTHING
	`

	_, err := r.db.Exec(query, dedupeKey, eventID, day)
	return err
}
