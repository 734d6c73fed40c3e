package repository

import (
	"database/sql"
	"time"

	"ans-review/internal/models"
)

// ConflictRecordRepository handles database operations for conflict records
type ConflictRecordRepository struct {
	db *sql.DB
}

// NewConflictRecordRepository creates a new conflict record repository
func NewConflictRecordRepository(db *sql.DB) *ConflictRecordRepository {
	return &ConflictRecordRepository{db: db}
}

const conflictRecordColumns = `id, reviewer_user_id, organization_id, type, severity, details,
	is_auto_detected, start_date, end_date, is_active, declared_by, created_at, updated_at`

// Create inserts a new conflict record
func (r *ConflictRecordRepository) Create(record *models.ConflictRecord) error {
	query := `
		INSERT INTO conflict_records (reviewer_user_id, organization_id, type, severity, details,
			is_auto_detected, start_date, end_date, is_active, declared_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`

	return r.db.QueryRow(
		query,
		record.ReviewerUserID,
		record.OrganizationID,
		record.Type,
		record.Severity,
		record.Details,
		record.IsAutoDetected,
		record.StartDate,
		record.EndDate,
		record.IsActive,
		record.DeclaredBy,
	).Scan(&record.ID, &record.CreatedAt, &record.UpdatedAt)
}

// GetActiveForPair retrieves currently active conflict records for a
// (reviewer, organization) pair
func (r *ConflictRecordRepository) GetActiveForPair(reviewerID, orgID uint) ([]models.ConflictRecord, error) {
	query := `
		SELECT ` + conflictRecordColumns + `
		FROM conflict_records
		WHERE reviewer_user_id = $1 AND organization_id = $2
		  AND is_active = true
		  AND start_date <= NOW()
		  AND (end_date IS NULL OR end_date >= NOW())
		ORDER BY created_at
	`

	return r.queryRecords(query, reviewerID, orgID)
}

// GetAutoDetectedByType retrieves all active auto-detected records of a
// given type for a reviewer, across organizations
func (r *ConflictRecordRepository) GetAutoDetectedByType(reviewerID uint, conflictType string) ([]models.ConflictRecord, error) {
	query := `
		SELECT ` + conflictRecordColumns + `
		FROM conflict_records
		WHERE reviewer_user_id = $1 AND type = $2
		  AND is_auto_detected = true AND is_active = true
		ORDER BY organization_id
	`

	return r.queryRecords(query, reviewerID, conflictType)
}

// Retire deactivates a conflict record and closes its validity window
func (r *ConflictRecordRepository) Retire(id uint, endDate time.Time) error {
	query := `
		UPDATE conflict_records
		SET is_active = false, end_date = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.db.Exec(query, endDate, id)
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

func (r *ConflictRecordRepository) queryRecords(query string, args ...interface{}) ([]models.ConflictRecord, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []models.ConflictRecord{}
	for rows.Next() {
		var record models.ConflictRecord
		err := rows.Scan(
			&record.ID,
			&record.ReviewerUserID,
			&record.OrganizationID,
			&record.Type,
			&record.Severity,
			&record.Details,
			&record.IsAutoDetected,
			&record.StartDate,
			&record.EndDate,
			&record.IsActive,
			&record.DeclaredBy,
			&record.CreatedAt,
			&record.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, rows.Err()
}
