package repository

import (
	"database/sql"

	"ans-review/internal/models"
)

// ConflictOverrideRepository handles database operations for conflict
// overrides. The table is append-only: revocation flags a row, rows are
// never deleted, so the audit history stays reconstructable.
type ConflictOverrideRepository struct {
	db *sql.DB
}

// NewConflictOverrideRepository creates a new conflict override repository
func NewConflictOverrideRepository(db *sql.DB) *ConflictOverrideRepository {
	return &ConflictOverrideRepository{db: db}
}

const conflictOverrideColumns = `id, reviewer_user_id, organization_id, review_id, justification,
	approved_by, approved_at, expires_at, is_revoked, revoked_by, revoked_at, created_at`

// Create inserts a new conflict override
func (r *ConflictOverrideRepository) Create(override *models.ConflictOverride) error {
	query := `
		INSERT INTO conflict_overrides (reviewer_user_id, organization_id, review_id, justification,
			approved_by, approved_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), $6)
		RETURNING id, approved_at, created_at
	`

	return r.db.QueryRow(
		query,
		override.ReviewerUserID,
		override.OrganizationID,
		override.ReviewID,
		override.Justification,
		override.ApprovedBy,
		override.ExpiresAt,
	).Scan(&override.ID, &override.ApprovedAt, &override.CreatedAt)
}

// GetByID retrieves an override by ID
func (r *ConflictOverrideRepository) GetByID(id uint) (*models.ConflictOverride, error) {
	query := `
		SELECT ` + conflictOverrideColumns + `
		FROM conflict_overrides
		WHERE id = $1
	`

	var override models.ConflictOverride
	err := r.db.QueryRow(query, id).Scan(
		&override.ID,
		&override.ReviewerUserID,
		&override.OrganizationID,
		&override.ReviewID,
		&override.Justification,
		&override.ApprovedBy,
		&override.ApprovedAt,
		&override.ExpiresAt,
		&override.IsRevoked,
		&override.RevokedBy,
		&override.RevokedAt,
		&override.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &override, nil
}

// GetForPair retrieves all overrides for a (reviewer, organization) pair,
// most recently approved first. The caller derives the current state as the
// latest valid entry.
func (r *ConflictOverrideRepository) GetForPair(reviewerID, orgID uint) ([]models.ConflictOverride, error) {
	query := `
		SELECT ` + conflictOverrideColumns + `
		FROM conflict_overrides
		WHERE reviewer_user_id = $1 AND organization_id = $2
		ORDER BY approved_at DESC
	`

	rows, err := r.db.Query(query, reviewerID, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	overrides := []models.ConflictOverride{}
	for rows.Next() {
		var override models.ConflictOverride
		err := rows.Scan(
			&override.ID,
			&override.ReviewerUserID,
			&override.OrganizationID,
			&override.ReviewID,
			&override.Justification,
			&override.ApprovedBy,
			&override.ApprovedAt,
			&override.ExpiresAt,
			&override.IsRevoked,
			&override.RevokedBy,
			&override.RevokedAt,
			&override.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		overrides = append(overrides, override)
	}

	return overrides, rows.Err()
}

// Revoke flags an override as revoked
func (r *ConflictOverrideRepository) Revoke(id, revokedBy uint) error {
	query := `
		UPDATE conflict_overrides
		SET is_revoked = true, revoked_by = $1, revoked_at = NOW()
		WHERE id = $2 AND is_revoked = false
	`

	result, err := r.db.Exec(query, revokedBy, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return sql.ErrNoRows
	}

	return nil
}
