package service

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"ans-review/internal/models"
	"ans-review/internal/repository"
)

// DueSoonWindowDays bounds the "due soon" classification window
const DueSoonWindowDays = 7

// capReviewerTransitionRoles may perform the review-side transitions
// (accept, reject, verify, close) of a corrective action plan.
var capReviewerTransitionRoles = []string{models.RoleCoordinator, models.RoleTeamLead, models.RoleAdmin}

// reviewSideTransitions are the target statuses reserved to review-side
// roles. Everything else is available to the plan's assignee.
var reviewSideTransitions = map[string]bool{
	models.CAPStatusUnderReview: true,
	models.CAPStatusAccepted:    true,
	models.CAPStatusRejected:    true,
	models.CAPStatusVerified:    true,
	models.CAPStatusClosed:      true,
}

// CAPService manages corrective action plans: creation, the status state
// machine and deadline classification.
type CAPService struct {
	db          *sql.DB
	capRepo     *repository.CAPRepository
	findingRepo *repository.FindingRepository
	userRepo    *repository.UserRepository
	auditRepo   *repository.AuditRepository
}

// NewCAPService creates a new corrective action plan service
func NewCAPService(
	db *sql.DB,
	capRepo *repository.CAPRepository,
	findingRepo *repository.FindingRepository,
	userRepo *repository.UserRepository,
	auditRepo *repository.AuditRepository,
) *CAPService {
	return &CAPService{
		db:          db,
		capRepo:     capRepo,
		findingRepo: findingRepo,
		userRepo:    userRepo,
		auditRepo:   auditRepo,
	}
}

// CalculateDeadlineInfo classifies a plan's deadline at the given instant.
// Day arithmetic is calendar-based: a plan due later today is due in zero
// days, not overdue. Progress comes from milestones when any exist and
// falls back to the per-status estimate otherwise.
func CalculateDeadlineInfo(dueDate time.Time, status string, milestonesTotal, milestonesCompleted int, now time.Time) models.DeadlineInfo {
	days := calendarDaysUntil(now, dueDate)

	info := models.DeadlineInfo{
		DueDate:       dueDate,
		DaysRemaining: days,
		IsOverdue:     days < 0,
		IsDueToday:    days == 0,
		IsDueSoon:     days > 0 && days <= DueSoonWindowDays,
	}

	switch {
	case info.IsOverdue:
		info.UrgencyLevel = models.UrgencyOverdue
	case days <= 1:
		info.UrgencyLevel = models.UrgencyCritical
	case days <= DueSoonWindowDays:
		info.UrgencyLevel = models.UrgencyWarning
	default:
		info.UrgencyLevel = models.UrgencyNormal
	}

	if milestonesTotal > 0 {
		info.PercentComplete = milestonesCompleted * 100 / milestonesTotal
	} else {
		info.PercentComplete = models.CAPProgressEstimate(status)
	}
	return info
}

// CreateForFinding opens a corrective action plan against a finding. When no
// due date is given, one is suggested from the finding's severity.
func (s *CAPService) CreateForFinding(findingID uint, description string, assignedTo *uint, dueDate *time.Time, actorID uint) (*models.CorrectiveActionPlan, error) {
	finding, err := s.findingRepo.GetByID(findingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get finding: %w", err)
	}
	if finding == nil {
		return nil, ErrNotFound
	}

	due := models.SuggestedCAPDueDate(finding.Severity, time.Now())
	if dueDate != nil {
		due = *dueDate
	}

	plan := &models.CorrectiveActionPlan{
		FindingID:   findingID,
		Status:      models.CAPStatusDraft,
		Description: description,
		DueDate:     due,
		AssignedTo:  assignedTo,
	}
	if err := s.capRepo.Create(plan); err != nil {
		return nil, fmt.Errorf("failed to create corrective action plan: %w", err)
	}

	s.audit(actorID, "cap_created", fmt.Sprintf("plan %d for finding %d, due %s", plan.ID, findingID, due.Format("2006-01-02")))
	slog.Info("corrective action plan created",
		"plan_id", plan.ID,
		"finding_id", findingID,
		"severity", finding.Severity,
		"due_date", due.Format("2006-01-02"))
	return plan, nil
}

// GetPlan returns a plan with its milestones loaded.
func (s *CAPService) GetPlan(planID uint) (*models.CorrectiveActionPlan, error) {
	plan, err := s.capRepo.GetByID(planID)
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	if plan == nil {
		return nil, ErrNotFound
	}
	milestones, err := s.capRepo.GetMilestones(planID)
	if err != nil {
		return nil, fmt.Errorf("failed to get milestones: %w", err)
	}
	plan.Milestones = milestones
	return plan, nil
}

// TransitionStatus moves a plan along the status graph under a row lock.
// A no-op transition returns the plan unchanged. Review-side transitions
// require a coordinator or team lead; the remaining transitions are open
// to any authenticated actor, covering the plan's assignee.
func (s *CAPService) TransitionStatus(planID uint, to string, actorID uint) (*models.CorrectiveActionPlan, error) {
	if reviewSideTransitions[to] {
		roles, err := s.userRepo.GetUserRoleNames(actorID)
		if err != nil {
			return nil, fmt.Errorf("failed to get actor roles: %w", err)
		}
		if !hasAnyRole(roles, capReviewerTransitionRoles) {
			return nil, ErrPermissionDenied
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	plan, err := s.capRepo.GetByIDForUpdate(tx, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	if plan == nil {
		return nil, ErrNotFound
	}

	if plan.Status == to {
		return plan, nil
	}
	if !models.IsValidCAPTransition(plan.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, plan.Status, to)
	}

	now := time.Now()
	if err := s.capRepo.UpdateStatusTx(tx, planID, to, now); err != nil {
		return nil, fmt.Errorf("failed to update plan status: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	from := plan.Status
	plan.Status = to
	s.audit(actorID, "cap_status_changed", fmt.Sprintf("plan %d: %s -> %s", planID, from, to))
	slog.Info("corrective action plan transitioned",
		"plan_id", planID,
		"from", from,
		"to", to,
		"user_id", actorID)
	return plan, nil
}

// GetDeadlineInfo classifies one plan's deadline.
func (s *CAPService) GetDeadlineInfo(planID uint) (*models.DeadlineInfo, error) {
	plan, err := s.capRepo.GetByID(planID)
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	if plan == nil {
		return nil, ErrNotFound
	}
	total, completed, err := s.capRepo.CountMilestones(planID)
	if err != nil {
		return nil, fmt.Errorf("failed to count milestones: %w", err)
	}
	info := CalculateDeadlineInfo(plan.DueDate, plan.Status, total, completed, time.Now())
	return &info, nil
}

// GetOverduePlans returns every trackable plan past its due date.
func (s *CAPService) GetOverduePlans() ([]models.TrackedPlan, error) {
	return s.filterTracked(func(info models.DeadlineInfo) bool {
		return info.IsOverdue
	})
}

// GetPlansDueWithin returns every trackable plan due within the given
// number of calendar days, overdue plans excluded.
func (s *CAPService) GetPlansDueWithin(days int) ([]models.TrackedPlan, error) {
	return s.filterTracked(func(info models.DeadlineInfo) bool {
		return info.DaysRemaining >= 0 && info.DaysRemaining <= days
	})
}

func (s *CAPService) filterTracked(keep func(models.DeadlineInfo) bool) ([]models.TrackedPlan, error) {
	tracked, err := s.capRepo.GetTrackedPlans()
	if err != nil {
		return nil, fmt.Errorf("failed to get tracked plans: %w", err)
	}
	now := time.Now()
	var out []models.TrackedPlan
	for _, tp := range tracked {
		info := CalculateDeadlineInfo(tp.Plan.DueDate, tp.Plan.Status, 0, 0, now)
		if keep(info) {
			out = append(out, tp)
		}
	}
	return out, nil
}

// AddMilestone appends a dated step to a plan.
func (s *CAPService) AddMilestone(planID uint, title string, targetDate time.Time, sortOrder int, actorID uint) (*models.Milestone, error) {
	plan, err := s.capRepo.GetByID(planID)
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	if plan == nil {
		return nil, ErrNotFound
	}
	if plan.Status == models.CAPStatusClosed {
		return nil, fmt.Errorf("%w: plan %d is closed", ErrInvalidTransition, planID)
	}

	m := &models.Milestone{
		PlanID:     planID,
		Title:      title,
		Status:     models.MilestonePending,
		TargetDate: targetDate,
		SortOrder:  sortOrder,
	}
	if err := s.capRepo.CreateMilestone(m); err != nil {
		return nil, fmt.Errorf("failed to create milestone: %w", err)
	}

	s.audit(actorID, "cap_milestone_added", fmt.Sprintf("plan %d milestone %d", planID, m.ID))
	return m, nil
}

// GetStatistics aggregates plan counts by status and urgency.
func (s *CAPService) GetStatistics() (*models.CAPStatistics, error) {
	plans, err := s.capRepo.GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to get plans: %w", err)
	}

	now := time.Now()
	stats := &models.CAPStatistics{
		ByStatus:  make(map[string]int),
		ByUrgency: make(map[string]int),
	}
	for i := range plans {
		plan := &plans[i]
		stats.Total++
		stats.ByStatus[plan.Status]++

		if !containsString(models.TrackableCAPStatuses, plan.Status) {
			continue
		}
		total, completed, err := s.capRepo.CountMilestones(plan.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count milestones for plan %d: %w", plan.ID, err)
		}
		if total > 0 {
			stats.WithMilestones++
			stats.Milestones += total
		}
		info := CalculateDeadlineInfo(plan.DueDate, plan.Status, total, completed, now)
		stats.ByUrgency[info.UrgencyLevel]++
		if info.IsOverdue {
			stats.Overdue++
		} else if info.IsDueSoon {
			stats.DueSoon++
		}
	}
	return stats, nil
}

func (s *CAPService) audit(actorID uint, action, details string) {
	entry := &models.AuditLog{
		UserID:   &actorID,
		Action:   action,
		Resource: "corrective_action_plan",
		Details:  details,
	}
	if err := s.auditRepo.Create(entry); err != nil {
		slog.Error("failed to write audit log", "action", action, "error", err)
	}
}
