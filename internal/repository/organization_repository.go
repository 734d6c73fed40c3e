package repository

import (
	"database/sql"

	"ans-review/internal/models"
)

// OrganizationRepository handles database operations for organizations
type OrganizationRepository struct {
	db *sql.DB
}

// NewOrganizationRepository creates a new organization repository
func NewOrganizationRepository(db *sql.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

// Create inserts a new organization
func (r *OrganizationRepository) Create(org *models.Organization) error {
	query := `
		INSERT INTO organizations (name, code, country, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`

	return r.db.QueryRow(
		query,
		org.Name,
		org.Code,
		org.Country,
		org.IsActive,
	).Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
}

// GetByID retrieves an organization by ID
func (r *OrganizationRepository) GetByID(id uint) (*models.Organization, error) {
	query := `
		SELECT id, name, code, country, is_active, created_at, updated_at
		FROM organizations
		WHERE id = $1
	`

	var org models.Organization
	err := r.db.QueryRow(query, id).Scan(
		&org.ID,
		&org.Name,
		&org.Code,
		&org.Country,
		&org.IsActive,
		&org.CreatedAt,
		&org.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &org, nil
}

// GetFocalPointUserIDs retrieves the focal-point users of an organization.
// Focal points are users holding the focal_point role whose reviewer profile
// names the organization as home.
func (r *OrganizationRepository) GetFocalPointUserIDs(orgID uint) ([]uint, error) {
	query := `
		SELECT u.id
		FROM users u
		JOIN user_roles ur ON ur.user_id = u.id
		JOIN roles ro ON ro.id = ur.role_id
		JOIN reviewer_profiles rp ON rp.user_id = u.id
		WHERE ro.name = $1 AND rp.home_organization_id = $2 AND u.is_active = true
		ORDER BY u.id
	`

	rows, err := r.db.Query(query, models.RoleFocalPoint, orgID)
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
