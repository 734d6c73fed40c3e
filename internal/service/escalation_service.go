package service

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ans-review/internal/models"
	"ans-review/internal/repository"
)

// EscalationService detects deadline threshold crossings on corrective
// action plans and their milestones. It only emits events; recording
// dispatch is the scheduler's job, which keeps the detector read-only and
// safe to run any number of times.
type EscalationService struct {
	capRepo   *repository.CAPRepository
	orgRepo   *repository.OrganizationRepository
	userRepo  *repository.UserRepository
	auditRepo *repository.AuditRepository
}

// NewEscalationService creates a new escalation service
func NewEscalationService(
	capRepo *repository.CAPRepository,
	orgRepo *repository.OrganizationRepository,
	userRepo *repository.UserRepository,
	auditRepo *repository.AuditRepository,
) *EscalationService {
	return &EscalationService{
		capRepo:   capRepo,
		orgRepo:   orgRepo,
		userRepo:  userRepo,
		auditRepo: auditRepo,
	}
}

// planThreshold maps a plan's days-remaining to the escalation threshold it
// is crossing today, if any. At most one threshold fires per plan per day.
func planThreshold(daysRemaining int) (string, bool) {
	switch {
	case daysRemaining < 0:
		return models.ThresholdOverdue, true
	case daysRemaining == 0:
		return models.ThresholdDueToday, true
	case daysRemaining == 1:
		return models.ThresholdOneDayBefore, true
	case daysRemaining == 7:
		return models.ThresholdSevenDaysBefore, true
	}
	return "", false
}

// BuildEscalationEvents computes the escalation events implied by the given
// tracked plans and overdue milestones at the given instant. Pure: no
// repository access, no side effects.
func BuildEscalationEvents(tracked []models.TrackedPlan, overdueMilestones []models.Milestone, now time.Time) []models.EscalationEvent {
	byPlan := make(map[uint]*models.TrackedPlan, len(tracked))
	events := []models.EscalationEvent{}

	for i := range tracked {
		tp := &tracked[i]
		byPlan[tp.Plan.ID] = tp

		days := calendarDaysUntil(now, tp.Plan.DueDate)
		threshold, ok := planThreshold(days)
		if !ok {
			continue
		}
		events = append(events, models.EscalationEvent{
			EventID:          uuid.NewString(),
			Threshold:        threshold,
			PlanID:           tp.Plan.ID,
			FindingID:        tp.Plan.FindingID,
			FindingTitle:     tp.FindingTitle,
			FindingSeverity:  tp.FindingSeverity,
			OrganizationID:   tp.OrganizationID,
			OrganizationName: tp.OrganizationName,
			DueDate:          tp.Plan.DueDate,
			DaysRemaining:    days,
			DetectedAt:       now,
		})
	}

	for i := range overdueMilestones {
		m := &overdueMilestones[i]
		tp, ok := byPlan[m.PlanID]
		if !ok {
			// Milestone of a plan no longer in a trackable status.
			continue
		}
		milestoneID := m.ID
		events = append(events, models.EscalationEvent{
			EventID:          uuid.NewString(),
			Threshold:        models.ThresholdMilestoneLate,
			PlanID:           m.PlanID,
			MilestoneID:      &milestoneID,
			FindingID:        tp.Plan.FindingID,
			FindingTitle:     tp.FindingTitle,
			FindingSeverity:  tp.FindingSeverity,
			OrganizationID:   tp.OrganizationID,
			OrganizationName: tp.OrganizationName,
			DueDate:          m.TargetDate,
			DaysRemaining:    calendarDaysUntil(now, m.TargetDate),
			DetectedAt:       now,
		})
	}

	return events
}

// DetectEscalationEvents scans all trackable plans and open milestones and
// returns the threshold crossings detected now, with recipients resolved.
// A recipient resolution failure degrades the event, not the scan.
func (s *EscalationService) DetectEscalationEvents() ([]models.EscalationEvent, error) {
	now := time.Now()

	tracked, err := s.capRepo.GetTrackedPlans()
	if err != nil {
		return nil, fmt.Errorf("failed to get tracked plans: %w", err)
	}
	overdueMilestones, err := s.capRepo.GetOpenMilestonesPastTarget(now)
	if err != nil {
		return nil, fmt.Errorf("failed to get overdue milestones: %w", err)
	}

	events := BuildEscalationEvents(tracked, overdueMilestones, now)

	byPlan := make(map[uint]*models.TrackedPlan, len(tracked))
	for i := range tracked {
		byPlan[tracked[i].Plan.ID] = &tracked[i]
	}
	for i := range events {
		event := &events[i]
		tp := byPlan[event.PlanID]
		recipients, err := s.resolveRecipients(tp)
		if err != nil {
			slog.Error("failed to resolve escalation recipients",
				"plan_id", event.PlanID,
				"threshold", event.Threshold,
				"error", err)
			continue
		}
		event.Recipients = recipients
	}

	if len(events) > 0 {
		slog.Info("escalation scan detected events", "count", len(events))
	}
	return events, nil
}

// resolveRecipients collects the plan assignee and the reviewed
// organization's focal points, deduplicated.
func (s *EscalationService) resolveRecipients(tp *models.TrackedPlan) ([]uint, error) {
	seen := make(map[uint]bool)
	recipients := []uint{}

	if tp.Plan.AssignedTo != nil {
		seen[*tp.Plan.AssignedTo] = true
		recipients = append(recipients, *tp.Plan.AssignedTo)
	}

	focalPoints, err := s.orgRepo.GetFocalPointUserIDs(tp.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get focal points: %w", err)
	}
	for _, id := range focalPoints {
		if !seen[id] {
			seen[id] = true
			recipients = append(recipients, id)
		}
	}
	return recipients, nil
}

// ResolveRecipientEmails maps recipient user IDs to email addresses,
// skipping inactive or missing accounts.
func (s *EscalationService) ResolveRecipientEmails(recipients []uint) ([]string, error) {
	emails := []string{}
	for _, id := range recipients {
		user, err := s.userRepo.GetByID(id)
		if err != nil {
			return nil, fmt.Errorf("failed to get user %d: %w", id, err)
		}
		if user == nil || !user.IsActive {
			continue
		}
		emails = append(emails, user.Email)
	}
	return emails, nil
}

// RecordDispatch audits a dispatched escalation.
func (s *EscalationService) RecordDispatch(event *models.EscalationEvent) {
	entry := &models.AuditLog{
		Action:   "escalation_dispatched",
		Resource: "corrective_action_plan",
		Details:  fmt.Sprintf("plan %d threshold %s (%s)", event.PlanID, event.Threshold, event.EventID),
	}
	if err := s.auditRepo.Create(entry); err != nil {
		slog.Error("failed to write audit log", "action", "escalation_dispatched", "error", err)
	}
}
