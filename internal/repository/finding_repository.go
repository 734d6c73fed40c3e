package repository

import (
	"database/sql"

	"ans-review/internal/models"
)

// FindingRepository reads review findings for rule evaluation and CAP
// creation defaults.
type FindingRepository struct {
	db *sql.DB
}

// NewFindingRepository creates a new finding repository
func NewFindingRepository(db *sql.DB) *FindingRepository {
	return &FindingRepository{db: db}
}

const findingColumns = `f.id, f.review_id, f.severity, f.status, f.title, f.description, f.assigned_to,
	f.created_at, f.updated_at,
	(SELECT COUNT(*) FROM documents d WHERE d.finding_id = f.id AND d.category = 'EVIDENCE') AS evidence_count`

// GetByID retrieves a finding by ID with its evidence document count
func (r *FindingRepository) GetByID(id uint) (*models.Finding, error) {
	query := `
		SELECT ` + findingColumns + `
		FROM findings f
		WHERE f.id = $1
	`

	var finding models.Finding
	err := r.db.QueryRow(query, id).Scan(
		&finding.ID,
		&finding.ReviewID,
		&finding.Severity,
		&finding.Status,
		&finding.Title,
		&finding.Description,
		&finding.AssignedTo,
		&finding.CreatedAt,
		&finding.UpdatedAt,
		&finding.EvidenceCount,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &finding, nil
}

// GetByReview retrieves all findings of a review with evidence counts
func (r *FindingRepository) GetByReview(reviewID uint) ([]models.Finding, error) {
	query := `
		SELECT ` + findingColumns + `
		FROM findings f
		WHERE f.review_id = $1
		ORDER BY f.id
	`

	rows, err := r.db.Query(query, reviewID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	findings := []models.Finding{}
	for rows.Next() {
		var finding models.Finding
		err := rows.Scan(
			&finding.ID,
			&finding.ReviewID,
			&finding.Severity,
			&finding.Status,
			&finding.Title,
			&finding.Description,
			&finding.AssignedTo,
			&finding.CreatedAt,
			&finding.UpdatedAt,
			&finding.EvidenceCount,
		)
		if err != nil {
			return nil, err
		}
		findings = append(findings, finding)
	}

	return findings, rows.Err()
}

// Create inserts a finding. Used by integration tests and the finding flow.
func (r *FindingRepository) Create(finding *models.Finding) error {
	query := `
		INSERT INTO findings (review_id, severity, status, title, description, assigned_to)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	return r.db.QueryRow(
		query,
		finding.ReviewID,
		finding.Severity,
		finding.Status,
		finding.Title,
		finding.Description,
		finding.AssignedTo,
	).Scan(&finding.ID, &finding.CreatedAt, &finding.UpdatedAt)
}
