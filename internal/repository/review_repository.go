package repository

import (
	"database/sql"

	"ans-review/internal/models"
)

// ReviewRepository handles database operations for reviews
type ReviewRepository struct {
	db *sql.DB
}

// NewReviewRepository creates a new review repository
func NewReviewRepository(db *sql.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Create inserts a new review
func (r *ReviewRepository) Create(review *models.Review) error {
	query := `
		INSERT INTO reviews (organization_id, status, phase, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	return r.db.QueryRow(
		query,
		review.OrganizationID,
		review.Status,
		review.Phase,
		review.StartDate,
		review.EndDate,
	).Scan(&review.ID, &review.CreatedAt, &review.UpdatedAt)
}

// GetByID retrieves a review by ID
func (r *ReviewRepository) GetByID(id uint) (*models.Review, error) {
	query := `
		SELECT id, organization_id, status, phase, start_date, end_date, created_at, updated_at
		FROM reviews
		WHERE id = $1
	`

	return r.scanOne(r.db.QueryRow(query, id))
}

// GetByIDForUpdate retrieves a review inside a transaction with a row lock,
// so gate checks and the phase transition commit atomically.
func (r *ReviewRepository) GetByIDForUpdate(tx *sql.Tx, id uint) (*models.Review, error) {
	query := `
		SELECT id, organization_id, status, phase, start_date, end_date, created_at, updated_at
		FROM reviews
		WHERE id = $1
		FOR UPDATE
	`

	return r.scanOne(tx.QueryRow(query, id))
}

// UpdatePhaseTx updates a review's phase and status within a transaction
func (r *ReviewRepository) UpdatePhaseTx(tx *sql.Tx, id uint, phase, status string) error {
	query := `UPDATE reviews SET phase = $1, status = $2, updated_at = NOW() WHERE id = $3`

	result, err := tx.Exec(query, phase, status, id)
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

func (r *ReviewRepository) scanOne(row *sql.Row) (*models.Review, error) {
	var review models.Review
	err := row.Scan(
		&review.ID,
		&review.OrganizationID,
		&review.Status,
		&review.Phase,
		&review.StartDate,
		&review.EndDate,
		&review.CreatedAt,
		&review.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &review, nil
}
