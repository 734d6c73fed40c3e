package repository

import (
	"database/sql"
	"time"

	"github.com/lib/pq"

	"ans-review/internal/models"
)

// CAPRepository handles database operations for corrective action plans and
// their milestones
type CAPRepository struct {
	db *sql.DB
}

// NewCAPRepository creates a new CAP repository
func NewCAPRepository(db *sql.DB) *CAPRepository {
	return &CAPRepository{db: db}
}

const capColumns = `id, finding_id, status, description, due_date, assigned_to, submitted_at,
	accepted_at, completed_at, verified_at, closed_at, created_at, updated_at`

// Create inserts a new corrective action plan
func (r *CAPRepository) Create(plan *models.CorrectiveActionPlan) error {
	query := `
		INSERT INTO corrective_action_plans (finding_id, status, description, due_date, assigned_to)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	return r.db.QueryRow(
		query,
		plan.FindingID,
		plan.Status,
		plan.Description,
		plan.DueDate,
		plan.AssignedTo,
	).Scan(&plan.ID, &plan.CreatedAt, &plan.UpdatedAt)
}

// GetByID retrieves a plan by ID
func (r *CAPRepository) GetByID(id uint) (*models.CorrectiveActionPlan, error) {
	query := `
		SELECT ` + capColumns + `
		FROM corrective_action_plans
		WHERE id = $1
	`

	return r.scanPlan(r.db.QueryRow(query, id))
}

// GetByIDForUpdate retrieves a plan inside a transaction with a row lock, so
// the transition check is re-validated at commit time.
func (r *CAPRepository) GetByIDForUpdate(tx *sql.Tx, id uint) (*models.CorrectiveActionPlan, error) {
	query := `
		SELECT ` + capColumns + `
		FROM corrective_action_plans
		WHERE id = $1
		FOR UPDATE
	`

	return r.scanPlan(tx.QueryRow(query, id))
}

// UpdateStatusTx updates a plan's status and the matching timestamp column
// within a transaction
func (r *CAPRepository) UpdateStatusTx(tx *sql.Tx, id uint, status string, at time.Time) error {
	query := `UPDATE corrective_action_plans SET status = $1, updated_at = NOW()`
	switch status {
	case models.CAPStatusSubmitted:
		query += `, submitted_at = $3`
	case models.CAPStatusAccepted:
		query += `, accepted_at = $3`
	case models.CAPStatusCompleted:
		query += `, completed_at = $3`
	case models.CAPStatusVerified:
		query += `, verified_at = $3`
	case models.CAPStatusClosed:
		query += `, closed_at = $3`
	default:
		query += ` WHERE id = $2`
		_, err := tx.Exec(query, status, id)
		return err
	}
	query += ` WHERE id = $2`

	_, err := tx.Exec(query, status, id, at)
	return err
}

// GetAll retrieves every corrective action plan ordered by due date
func (r *CAPRepository) GetAll() ([]models.CorrectiveActionPlan, error) {
	query := `
		SELECT ` + capColumns + `
		FROM corrective_action_plans
		ORDER BY due_date
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	plans := []models.CorrectiveActionPlan{}
	for rows.Next() {
		plan, err := r.scanPlanRows(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *plan)
	}

	return plans, rows.Err()
}

// GetTrackedPlans retrieves all plans in trackable statuses joined with
// finding and organization context for the escalation detector
func (r *CAPRepository) GetTrackedPlans() ([]models.TrackedPlan, error) {
	query := `
		SELECT cap.id, cap.finding_id, cap.status, cap.description, cap.due_date, cap.assigned_to,
		       cap.submitted_at, cap.accepted_at, cap.completed_at, cap.verified_at, cap.closed_at,
		       cap.created_at, cap.updated_at,
		       f.title, f.severity, o.id, o.name
		FROM corrective_action_plans cap
		JOIN findings f ON f.id = cap.finding_id
		JOIN reviews rv ON rv.id = f.review_id
		JOIN organizations o ON o.id = rv.organization_id
		WHERE cap.status = ANY($1)
		ORDER BY cap.due_date
	`

	rows, err := r.db.Query(query, pq.Array(models.TrackableCAPStatuses))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tracked := []models.TrackedPlan{}
	for rows.Next() {
		var t models.TrackedPlan
		err := rows.Scan(
			&t.Plan.ID,
			&t.Plan.FindingID,
			&t.Plan.Status,
			&t.Plan.Description,
			&t.Plan.DueDate,
			&t.Plan.AssignedTo,
			&t.Plan.SubmittedAt,
			&t.Plan.AcceptedAt,
			&t.Plan.CompletedAt,
			&t.Plan.VerifiedAt,
			&t.Plan.ClosedAt,
			&t.Plan.CreatedAt,
			&t.Plan.UpdatedAt,
			&t.FindingTitle,
			&t.FindingSeverity,
			&t.OrganizationID,
			&t.OrganizationName,
		)
		if err != nil {
			return nil, err
		}
		tracked = append(tracked, t)
	}

	return tracked, rows.Err()
}

// GetMilestones retrieves a plan's milestones in sort order
func (r *CAPRepository) GetMilestones(planID uint) ([]models.Milestone, error) {
	query := `
		SELECT id, plan_id, title, status, target_date, completed_at, sort_order, created_at, updated_at
		FROM cap_milestones
		WHERE plan_id = $1
		ORDER BY sort_order, id
	`

	rows, err := r.db.Query(query, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	milestones := []models.Milestone{}
	for rows.Next() {
		var m models.Milestone
		err := rows.Scan(
			&m.ID,
			&m.PlanID,
			&m.Title,
			&m.Status,
			&m.TargetDate,
			&m.CompletedAt,
			&m.SortOrder,
			&m.CreatedAt,
			&m.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		milestones = append(milestones, m)
	}

	return milestones, rows.Err()
}

// GetOpenMilestonesPastTarget retrieves PENDING or IN_PROGRESS milestones of
// trackable plans whose target date has passed
func (r *CAPRepository) GetOpenMilestonesPastTarget(asOf time.Time) ([]models.Milestone, error) {
	query := `
		SELECT m.id, m.plan_id, m.title, m.status, m.target_date, m.completed_at, m.sort_order, m.created_at, m.updated_at
		FROM cap_milestones m
		JOIN corrective_action_plans cap ON cap.id = m.plan_id
		WHERE m.status IN ($1, $2) AND m.target_date < $3 AND cap.status = ANY($4)
		ORDER BY m.target_date
	`

	rows, err := r.db.Query(query, models.MilestonePending, models.MilestoneInProgress, asOf, pq.Array(models.TrackableCAPStatuses))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	milestones := []models.Milestone{}
	for rows.Next() {
		var m models.Milestone
		err := rows.Scan(
			&m.ID,
			&m.PlanID,
			&m.Title,
			&m.Status,
			&m.TargetDate,
			&m.CompletedAt,
			&m.SortOrder,
			&m.CreatedAt,
			&m.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		milestones = append(milestones, m)
	}

	return milestones, rows.Err()
}

// CreateMilestone inserts a milestone
func (r *CAPRepository) CreateMilestone(m *models.Milestone) error {
	query := `
		INSERT INTO cap_milestones (plan_id, title, status, target_date, sort_order)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	return r.db.QueryRow(
		query,
		m.PlanID,
		m.Title,
		m.Status,
		m.TargetDate,
		m.SortOrder,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
}

// CountMilestones returns total and completed milestone counts for a plan
func (r *CAPRepository) CountMilestones(planID uint) (total, completed int, err error) {
	query := `
		SELECT COUNT(*) FILTER (WHERE status != $1),
		       COUNT(*) FILTER (WHERE status = $2)
		FROM cap_milestones
		WHERE plan_id = $3
	`

	err = r.db.QueryRow(query, models.MilestoneCancelled, models.MilestoneCompleted, planID).Scan(&total, &completed)
	return total, completed, err
}

func (r *CAPRepository) scanPlan(row *sql.Row) (*models.CorrectiveActionPlan, error) {
	var plan models.CorrectiveActionPlan
	err := row.Scan(
		&plan.ID,
		&plan.FindingID,
		&plan.Status,
		&plan.Description,
		&plan.DueDate,
		&plan.AssignedTo,
		&plan.SubmittedAt,
		&plan.AcceptedAt,
		&plan.CompletedAt,
		&plan.VerifiedAt,
		&plan.ClosedAt,
		&plan.CreatedAt,
		&plan.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &plan, nil
}

func (r *CAPRepository) scanPlanRows(rows *sql.Rows) (*models.CorrectiveActionPlan, error) {
	var plan models.CorrectiveActionPlan
	err := rows.Scan(
		&plan.ID,
		&plan.FindingID,
		&plan.Status,
		&plan.Description,
		&plan.DueDate,
		&plan.AssignedTo,
		&plan.SubmittedAt,
		&plan.AcceptedAt,
		&plan.CompletedAt,
		&plan.VerifiedAt,
		&plan.ClosedAt,
		&plan.CreatedAt,
		&plan.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &plan, nil
}
