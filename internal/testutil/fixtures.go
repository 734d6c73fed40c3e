package testutil

import (
	"database/sql"
	"fmt"
	"testing"
	"time"
)

// CreateUser inserts a user and returns its ID
func CreateUser(t *testing.T, db *sql.DB, email string, roles ...string) uint {
	t.Helper()

	var id uint
	err := db.QueryRow(`
		INSERT INTO users (email, password_hash, first_name, last_name)
		VALUES ($1, 'x', 'Test', 'User')
		RETURNING id
	`, email).Scan(&id)
	if err != nil {
		t.Fatalf("Failed to create user %s: %v", email, err)
	}

	for _, role := range roles {
		_, err := db.Exec(`
			INSERT INTO user_roles (user_id, role_id)
			SELECT $1, id FROM roles WHERE name = $2
		`, id, role)
		if err != nil {
			t.Fatalf("Failed to assign role %s: %v", role, err)
		}
	}

	return id
}

// CreateOrganization inserts an organization and returns its ID
func CreateOrganization(t *testing.T, db *sql.DB, name, code string) uint {
	t.Helper()

	var id uint
	err := db.QueryRow(`
		INSERT INTO organizations (name, code, country)
		VALUES ($1, $2, 'Testland')
		RETURNING id
	`, name, code).Scan(&id)
	if err != nil {
		t.Fatalf("Failed to create organization %s: %v", name, err)
	}
	return id
}

// CreateReviewerProfile inserts a reviewer profile
func CreateReviewerProfile(t *testing.T, db *sql.DB, userID, homeOrgID uint) {
	t.Helper()

	_, err := db.Exec(`
		INSERT INTO reviewer_profiles (user_id, home_organization_id)
		VALUES ($1, $2)
	`, userID, homeOrgID)
	if err != nil {
		t.Fatalf("Failed to create reviewer profile: %v", err)
	}
}

// CreateReview inserts a review and returns its ID
func CreateReview(t *testing.T, db *sql.DB, orgID uint, status, phase string, endDate *time.Time) uint {
	t.Helper()

	var id uint
	err := db.QueryRow(`
		INSERT INTO reviews (organization_id, status, phase, start_date, end_date)
		VALUES ($1, $2, $3, NOW(), $4)
		RETURNING id
	`, orgID, status, phase, endDate).Scan(&id)
	if err != nil {
		t.Fatalf("Failed to create review: %v", err)
	}
	return id
}

// CreateTeamAssignment links a reviewer to a review
func CreateTeamAssignment(t *testing.T, db *sql.DB, reviewID, userID, orgID uint) {
	t.Helper()

	_, err := db.Exec(`
		INSERT INTO team_assignments (review_id, reviewer_user_id, organization_id)
		VALUES ($1, $2, $3)
	`, reviewID, userID, orgID)
	if err != nil {
		t.Fatalf("Failed to create team assignment: %v", err)
	}
}

// CreateFinding inserts a finding and returns its ID
func CreateFinding(t *testing.T, db *sql.DB, reviewID uint, severity, status string) uint {
	t.Helper()

	var id uint
	err := db.QueryRow(`
		INSERT INTO findings (review_id, severity, status, title)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, reviewID, severity, status, fmt.Sprintf("%s finding", severity)).Scan(&id)
	if err != nil {
		t.Fatalf("Failed to create finding: %v", err)
	}
	return id
}

// CreateDocument inserts a document and returns its ID
func CreateDocument(t *testing.T, db *sql.DB, reviewID uint, findingID *uint, category, status string) uint {
	t.Helper()

	var id uint
	err := db.QueryRow(`
		INSERT INTO documents (review_id, finding_id, category, status, file_name)
		VALUES ($1, $2, $3, $4, 'test.pdf')
		RETURNING id
	`, reviewID, findingID, category, status).Scan(&id)
	if err != nil {
		t.Fatalf("Failed to create document: %v", err)
	}
	return id
}
