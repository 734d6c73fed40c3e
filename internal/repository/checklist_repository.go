package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"ans-review/internal/models"
)

// ChecklistRepository handles database operations for checklist items
type ChecklistRepository struct {
	db *sql.DB
}

// NewChecklistRepository creates a new checklist repository
func NewChecklistRepository(db *sql.DB) *ChecklistRepository {
	return &ChecklistRepository{db: db}
}

const checklistColumns = `id, review_id, phase, code, title, rule, is_completed, completed_by, completed_at,
	is_overridden, override_justification, overridden_by, overridden_at, created_at, updated_at`

// InitializeForReview instantiates the fixed checklist template for a review.
// It refuses to run twice for the same review.
func (r *ChecklistRepository) InitializeForReview(reviewID uint) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var existing int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM checklist_items WHERE review_id = $1`, reviewID).Scan(&existing); err != nil {
		return err
	}
	if existing > 0 {
		return fmt.Errorf("checklist already initialized for review %d", reviewID)
	}

	query := `
		INSERT INTO checklist_items (review_id, phase, code, title, rule)
		VALUES ($1, $2, $3, $4, $5)
	`

	for _, item := range models.ChecklistTemplate {
		ruleJSON, err := json.Marshal(item.Rule)
		if err != nil {
			return fmt.Errorf("failed to encode rule for %s: %w", item.Code, err)
		}
		if _, err := tx.Exec(query, reviewID, item.Phase, item.Code, item.Title, ruleJSON); err != nil {
			return fmt.Errorf("failed to insert item %s: %w", item.Code, err)
		}
	}

	return tx.Commit()
}

// GetByReview retrieves all checklist items for a review in template order
func (r *ChecklistRepository) GetByReview(reviewID uint) ([]models.ChecklistItem, error) {
	query := `
		SELECT ` + checklistColumns + `
		FROM checklist_items
		WHERE review_id = $1
		ORDER BY id
	`
	return queryChecklistItems(r.db, query, reviewID)
}

// GetByReviewTx retrieves all checklist items of a review inside a
// transaction, share-locking the rows so a concurrent toggle cannot commit
// between the gate read and the phase transition.
func (r *ChecklistRepository) GetByReviewTx(tx *sql.Tx, reviewID uint) ([]models.ChecklistItem, error) {
	query := `
		SELECT ` + checklistColumns + `
		FROM checklist_items
		WHERE review_id = $1
		ORDER BY id
		FOR SHARE
	`
	return queryChecklistItems(tx, query, reviewID)
}

type queryer interface {
	Query(query string, args ...interface{}) (*sql.Rows, error)
}

func queryChecklistItems(q queryer, query string, reviewID uint) ([]models.ChecklistItem, error) {
	rows, err := q.Query(query, reviewID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.ChecklistItem{}
	for rows.Next() {
		item, err := scanChecklistItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}

	return items, rows.Err()
}

// GetByReviewAndCodeForUpdate retrieves one item inside a transaction with a
// row lock, so toggle and override decisions are re-checked at commit time.
func (r *ChecklistRepository) GetByReviewAndCodeForUpdate(tx *sql.Tx, reviewID uint, code string) (*models.ChecklistItem, error) {
	query := `
		SELECT ` + checklistColumns + `
		FROM checklist_items
		WHERE review_id = $1 AND code = $2
		FOR UPDATE
	`

	rows, err := tx.Query(query, reviewID, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanChecklistItem(rows)
}

// SetCompletionTx records or clears a completion within a transaction
func (r *ChecklistRepository) SetCompletionTx(tx *sql.Tx, itemID uint, completed bool, actorID *uint, at *time.Time) error {
	query := `
		UPDATE checklist_items
		SET is_completed = $1, completed_by = $2, completed_at = $3, updated_at = NOW()
		WHERE id = $4
	`

	_, err := tx.Exec(query, completed, actorID, at, itemID)
	return err
}

// SetOverrideTx records a coordinator override within a transaction
func (r *ChecklistRepository) SetOverrideTx(tx *sql.Tx, itemID uint, justification string, actorID uint) error {
	query := `
		UPDATE checklist_items
		SET is_overridden = true, override_justification = $1, overridden_by = $2, overridden_at = NOW(), updated_at = NOW()
		WHERE id = $3
	`

	_, err := tx.Exec(query, justification, actorID, itemID)
	return err
}

// ClearOverrideTx removes an override and restores ordinary validation
func (r *ChecklistRepository) ClearOverrideTx(tx *sql.Tx, itemID uint) error {
	query := `
		UPDATE checklist_items
		SET is_overridden = false, override_justification = NULL, overridden_by = NULL, overridden_at = NULL, updated_at = NOW()
		WHERE id = $1
	`

	_, err := tx.Exec(query, itemID)
	return err
}

func scanChecklistItem(rows *sql.Rows) (*models.ChecklistItem, error) {
	var item models.ChecklistItem
	err := rows.Scan(
		&item.ID,
		&item.ReviewID,
		&item.Phase,
		&item.Code,
		&item.Title,
		&item.RuleJSON,
		&item.IsCompleted,
		&item.CompletedBy,
		&item.CompletedAt,
		&item.IsOverridden,
		&item.OverrideJustification,
		&item.OverriddenBy,
		&item.OverriddenAt,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule, err := models.ParseValidationRule(item.RuleJSON)
	if err != nil {
		return nil, fmt.Errorf("item %s: %w", item.Code, err)
	}
	item.Rule = *rule

	return &item, nil
}
