package repository

import (
	"database/sql"

	"ans-review/internal/models"
)

// ReviewerRepository reads reviewer profiles and assignment history. The
// roster subsystem owns this data; the engine never writes it.
type ReviewerRepository struct {
	db *sql.DB
}

// NewReviewerRepository creates a new reviewer repository
func NewReviewerRepository(db *sql.DB) *ReviewerRepository {
	return &ReviewerRepository{db: db}
}

// GetProfile retrieves a reviewer profile by user ID
func (r *ReviewerRepository) GetProfile(userID uint) (*models.ReviewerProfile, error) {
	query := `
		SELECT user_id, home_organization_id, qualifications, created_at, updated_at
		FROM reviewer_profiles
		WHERE user_id = $1
	`

	var profile models.ReviewerProfile
	err := r.db.QueryRow(query, userID).Scan(
		&profile.UserID,
		&profile.HomeOrganizationID,
		&profile.Qualifications,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &profile, nil
}

// GetAssignmentHistory retrieves a reviewer's past team assignments joined
// with the status and end date of each review
func (r *ReviewerRepository) GetAssignmentHistory(userID uint) ([]models.TeamAssignment, error) {
	query := `
		SELECT ta.id, ta.review_id, ta.reviewer_user_id, ta.organization_id, ta.role_on_team,
		       rv.status, rv.end_date, ta.created_at
		FROM team_assignments ta
		JOIN reviews rv ON rv.id = ta.review_id
		WHERE ta.reviewer_user_id = $1
		ORDER BY rv.end_date DESC NULLS LAST
	`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assignments := []models.TeamAssignment{}
	for rows.Next() {
		var assignment models.TeamAssignment
		err := rows.Scan(
			&assignment.ID,
			&assignment.ReviewID,
			&assignment.ReviewerUserID,
			&assignment.OrganizationID,
			&assignment.RoleOnTeam,
			&assignment.ReviewStatus,
			&assignment.ReviewEndDate,
			&assignment.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, assignment)
	}

	return assignments, rows.Err()
}

// ListProfileUserIDs retrieves the user IDs of all reviewer profiles
func (r *ReviewerRepository) ListProfileUserIDs() ([]uint, error) {
	rows, err := r.db.Query(`SELECT user_id FROM reviewer_profiles ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []uint{}
	for rows.Next() {
		var id uint
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}
