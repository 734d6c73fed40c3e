package repository

import (
	"database/sql"

	"ans-review/internal/models"
)

// DocumentRepository reads review documents. The document workflow is owned
// elsewhere; the rule engine only consumes category and status.
type DocumentRepository struct {
	db *sql.DB
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// GetByReview retrieves all documents of a review
func (r *DocumentRepository) GetByReview(reviewID uint) ([]models.Document, error) {
	query := `
		SELECT id, review_id, finding_id, category, status, file_name, uploaded_by, created_at, updated_at
		FROM documents
		WHERE review_id = $1
		ORDER BY id
	`

	rows, err := r.db.Query(query, reviewID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	documents := []models.Document{}
	for rows.Next() {
		var doc models.Document
		err := rows.Scan(
			&doc.ID,
			&doc.ReviewID,
			&doc.FindingID,
			&doc.Category,
			&doc.Status,
			&doc.FileName,
			&doc.UploadedBy,
			&doc.CreatedAt,
			&doc.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		documents = append(documents, doc)
	}

	return documents, rows.Err()
}

// Create inserts a document. Used by integration tests and the upload flow.
func (r *DocumentRepository) Create(doc *models.Document) error {
	query := `
		INSERT INTO documents (review_id, finding_id, category, status, file_name, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	return r.db.QueryRow(
		query,
		doc.ReviewID,
		doc.FindingID,
		doc.Category,
		doc.Status,
		doc.FileName,
		doc.UploadedBy,
	).Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt)
}
