package service

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ans-review/internal/models"
	"ans-review/internal/repository"
)

// ChecklistOverrideJustificationMinLength is the minimum justification
// length for a checklist item override.
const ChecklistOverrideJustificationMinLength = 10

// checklistOverrideRoles may override checklist items
var checklistOverrideRoles = []string{models.RoleCoordinator, models.RoleAdmin}

// EvidentiaryState is the read-only snapshot a validation rule is evaluated
// against. ActorRoles is empty for display-only evaluation, where an
// APPROVAL_REQUIRED rule reports what it would take rather than who asked.
type EvidentiaryState struct {
	Documents  []models.Document
	Findings   []models.Finding
	Items      []models.ChecklistItem
	ActorRoles []string
}

// ChecklistService manages the per-review fieldwork checklist: rule
// evaluation, completion toggling, overrides and phase gating.
type ChecklistService struct {
	db            *sql.DB
	checklistRepo *repository.ChecklistRepository
	documentRepo  *repository.DocumentRepository
	findingRepo   *repository.FindingRepository
	reviewRepo    *repository.ReviewRepository
	userRepo      *repository.UserRepository
	auditRepo     *repository.AuditRepository
}

// NewChecklistService creates a new checklist service
func NewChecklistService(
	db *sql.DB,
	checklistRepo *repository.ChecklistRepository,
	documentRepo *repository.DocumentRepository,
	findingRepo *repository.FindingRepository,
	reviewRepo *repository.ReviewRepository,
	userRepo *repository.UserRepository,
	auditRepo *repository.AuditRepository,
) *ChecklistService {
	return &ChecklistService{
		db:            db,
		checklistRepo: checklistRepo,
		documentRepo:  documentRepo,
		findingRepo:   findingRepo,
		reviewRepo:    reviewRepo,
		userRepo:      userRepo,
		auditRepo:     auditRepo,
	}
}

// EvaluateRule evaluates a validation rule against live evidentiary state.
// The switch is exhaustive over the closed kind set; rule construction
// already rejected anything else.
func EvaluateRule(rule models.ValidationRule, item *models.ChecklistItem, state EvidentiaryState) models.RuleResult {
	switch rule.Kind {
	case models.RuleDocumentExists:
		count := countDocuments(state.Documents, rule.DocumentCategory, rule.RequiredStatuses)
		return models.RuleResult{
			Passed:   count >= rule.MinCount,
			Reason:   fmt.Sprintf("%d of %d required %s documents present", count, rule.MinCount, rule.DocumentCategory),
			Current:  count,
			Required: rule.MinCount,
		}

	case models.RuleDocumentsReviewed:
		total, reviewed := 0, 0
		for _, doc := range state.Documents {
			if doc.Category != rule.DocumentCategory {
				continue
			}
			total++
			if models.DocumentStatusAtLeast(doc.Status, models.DocStatusReviewed) {
				reviewed++
			}
		}
		if total == 0 {
			return models.RuleResult{
				Passed:   false,
				Reason:   fmt.Sprintf("no %s documents to review", rule.DocumentCategory),
				Required: 1,
			}
		}
		return models.RuleResult{
			Passed:   reviewed == total,
			Reason:   fmt.Sprintf("%d of %d %s documents reviewed", reviewed, total, rule.DocumentCategory),
			Current:  reviewed,
			Required: total,
		}

	case models.RuleFindingsExist:
		count := 0
		for _, f := range state.Findings {
			if rule.FindingStatus == "" || f.Status == rule.FindingStatus {
				count++
			}
		}
		return models.RuleResult{
			Passed:   count >= rule.MinCount,
			Reason:   fmt.Sprintf("%d of %d required findings recorded", count, rule.MinCount),
			Current:  count,
			Required: rule.MinCount,
		}

	case models.RuleFindingsHaveEvidence:
		total, supported := len(state.Findings), 0
		for _, f := range state.Findings {
			if f.EvidenceCount > 0 {
				supported++
			}
		}
		// Vacuously true with no findings; OS-03 guards against that case.
		return models.RuleResult{
			Passed:   supported == total,
			Reason:   fmt.Sprintf("%d of %d findings supported by evidence", supported, total),
			Current:  supported,
			Required: total,
		}

	case models.RulePrerequisiteItems:
		satisfied := 0
		var missing []string
		for _, code := range rule.PrerequisiteCodes {
			if itemSatisfied(state.Items, code) {
				satisfied++
			} else {
				missing = append(missing, code)
			}
		}
		result := models.RuleResult{
			Passed:   satisfied == len(rule.PrerequisiteCodes),
			Current:  satisfied,
			Required: len(rule.PrerequisiteCodes),
		}
		if result.Passed {
			result.Reason = "all prerequisite items satisfied"
		} else {
			result.Reason = fmt.Sprintf("waiting on %s", strings.Join(missing, ", "))
		}
		return result

	case models.RuleApprovalRequired:
		// A completed item was signed off by an authorized user at toggle
		// time; for an open item the rule asks whether the current actor
		// may sign it off.
		if item != nil && item.IsCompleted {
			return models.RuleResult{Passed: true, Reason: "signed off", Current: 1, Required: 1}
		}
		if hasAnyRole(state.ActorRoles, rule.ApproverRoles) {
			return models.RuleResult{Passed: true, Reason: "actor may sign off", Current: 1, Required: 1}
		}
		return models.RuleResult{
			Passed:   false,
			Reason:   fmt.Sprintf("requires sign-off by %s", strings.Join(rule.ApproverRoles, " or ")),
			Required: 1,
		}

	case models.RuleManualOrDocument:
		if rule.DocumentCategory != "" {
			if count := countDocuments(state.Documents, rule.DocumentCategory, rule.RequiredStatuses); count > 0 {
				return models.RuleResult{
					Passed:   true,
					Reason:   fmt.Sprintf("%s document present", rule.DocumentCategory),
					Current:  count,
					Required: 1,
				}
			}
		}
		if rule.AllowManual {
			return models.RuleResult{Passed: true, Reason: "manual attestation permitted", Required: 1}
		}
		return models.RuleResult{
			Passed:   false,
			Reason:   fmt.Sprintf("requires a %s document", rule.DocumentCategory),
			Required: 1,
		}

	case models.RuleAutoCheck:
		switch rule.Condition {
		case models.AutoCheckFindingsRecorded:
			count := len(state.Findings)
			return models.RuleResult{
				Passed:   count > 0,
				Reason:   fmt.Sprintf("%d findings recorded", count),
				Current:  count,
				Required: 1,
			}
		case models.AutoCheckAllCAPsSubmitted:
			total, covered := len(state.Findings), 0
			for _, f := range state.Findings {
				if f.Status != "open" && f.Status != "cap_required" {
					covered++
				}
			}
			return models.RuleResult{
				Passed:   covered == total,
				Reason:   fmt.Sprintf("%d of %d findings have a corrective action plan underway", covered, total),
				Current:  covered,
				Required: total,
			}
		}
	}

	// Unreachable for rules that passed construction-time validation.
	return models.RuleResult{Reason: fmt.Sprintf("unknown rule kind: %s", rule.Kind)}
}

func countDocuments(docs []models.Document, category string, requiredStatuses []string) int {
	count := 0
	for _, doc := range docs {
		if doc.Category != category {
			continue
		}
		if len(requiredStatuses) > 0 && !containsString(requiredStatuses, doc.Status) {
			continue
		}
		count++
	}
	return count
}

func clearOverrideState(item *models.ChecklistItem) {
	item.IsOverridden = false
	item.OverrideJustification = nil
	item.OverriddenBy = nil
	item.OverriddenAt = nil
}

func itemSatisfied(items []models.ChecklistItem, code string) bool {
	for i := range items {
		if items[i].Code == code {
			return items[i].Satisfied()
		}
	}
	return false
}

// ToggleOutcome is the result of a toggle attempt. A refused completion is
// reported through Result, not as an error.
type ToggleOutcome struct {
	Item    models.ChecklistItem `json:"item"`
	Result  models.RuleResult    `json:"result"`
	Toggled bool                 `json:"toggled"`
}

// InitializeChecklist instantiates the fixed checklist template for a
// review. Initializing twice is an error.
func (s *ChecklistService) InitializeChecklist(reviewID, actorID uint) ([]models.ChecklistItem, error) {
	review, err := s.reviewRepo.GetByID(reviewID)
	if err != nil {
		return nil, fmt.Errorf("failed to get review: %w", err)
	}
	if review == nil {
		return nil, ErrNotFound
	}

	if err := s.checklistRepo.InitializeForReview(reviewID); err != nil {
		return nil, err
	}

	items, err := s.checklistRepo.GetByReview(reviewID)
	if err != nil {
		return nil, fmt.Errorf("failed to get checklist items: %w", err)
	}

	s.audit(actorID, "checklist_initialized", fmt.Sprintf("review %d", reviewID))
	slog.Info("checklist initialized", "review_id", reviewID, "items", len(items))
	return items, nil
}

// GetChecklist returns all checklist items of a review with freshly
// evaluated rule results.
func (s *ChecklistService) GetChecklist(reviewID uint) ([]models.ItemStatus, error) {
	state, err := s.loadState(reviewID, nil)
	if err != nil {
		return nil, err
	}

	statuses := make([]models.ItemStatus, 0, len(state.Items))
	for i := range state.Items {
		item := state.Items[i]
		statuses = append(statuses, models.ItemStatus{
			Item:      item,
			Result:    EvaluateRule(item.Rule, &item, *state),
			Satisfied: item.Satisfied(),
		})
	}
	return statuses, nil
}

// ToggleItem flips an item's completion flag. Unchecking is always allowed;
// checking re-evaluates the item's rule under a row lock and refuses with
// the failed result when the rule does not pass. Toggling a currently
// overridden item clears the override first.
func (s *ChecklistService) ToggleItem(reviewID uint, code string, actorID uint) (*ToggleOutcome, error) {
	roles, err := s.userRepo.GetUserRoleNames(actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get actor roles: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	item, err := s.checklistRepo.GetByReviewAndCodeForUpdate(tx, reviewID, code)
	if err != nil {
		return nil, fmt.Errorf("failed to get checklist item: %w", err)
	}
	if item == nil {
		return nil, ErrNotFound
	}

	if item.IsOverridden {
		if err := s.checklistRepo.ClearOverrideTx(tx, item.ID); err != nil {
			return nil, fmt.Errorf("failed to clear override: %w", err)
		}
	}

	if item.IsCompleted {
		if err := s.checklistRepo.SetCompletionTx(tx, item.ID, false, nil, nil); err != nil {
			return nil, fmt.Errorf("failed to uncheck item: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit: %w", err)
		}
		clearOverrideState(item)
		item.IsCompleted = false
		item.CompletedBy = nil
		item.CompletedAt = nil
		s.audit(actorID, "checklist_item_unchecked", fmt.Sprintf("review %d item %s", reviewID, code))
		return &ToggleOutcome{Item: *item, Result: models.RuleResult{Passed: true, Reason: "unchecked"}, Toggled: true}, nil
	}

	state, err := s.loadState(reviewID, roles)
	if err != nil {
		return nil, err
	}
	result := EvaluateRule(item.Rule, item, *state)
	if !result.Passed {
		// The rollback keeps any override in place; report the item as it
		// stands in the database.
		return &ToggleOutcome{Item: *item, Result: result, Toggled: false}, nil
	}

	now := time.Now()
	if err := s.checklistRepo.SetCompletionTx(tx, item.ID, true, &actorID, &now); err != nil {
		return nil, fmt.Errorf("failed to complete item: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	clearOverrideState(item)
	item.IsCompleted = true
	item.CompletedBy = &actorID
	item.CompletedAt = &now
	s.audit(actorID, "checklist_item_completed", fmt.Sprintf("review %d item %s", reviewID, code))
	slog.Info("checklist item completed", "review_id", reviewID, "code", code, "user_id", actorID)
	return &ToggleOutcome{Item: *item, Result: result, Toggled: true}, nil
}

// OverrideItem marks an item satisfied by coordinator fiat, bypassing its
// rule. The justification is mandatory and the action is audited.
func (s *ChecklistService) OverrideItem(reviewID uint, code string, justification string, actorID uint) (*models.ChecklistItem, error) {
	roles, err := s.userRepo.GetUserRoleNames(actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get actor roles: %w", err)
	}
	if !hasAnyRole(roles, checklistOverrideRoles) {
		return nil, ErrPermissionDenied
	}
	if len(justification) < ChecklistOverrideJustificationMinLength {
		return nil, fmt.Errorf("%w: justification must be at least %d characters", ErrInvalidOverride, ChecklistOverrideJustificationMinLength)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	item, err := s.checklistRepo.GetByReviewAndCodeForUpdate(tx, reviewID, code)
	if err != nil {
		return nil, fmt.Errorf("failed to get checklist item: %w", err)
	}
	if item == nil {
		return nil, ErrNotFound
	}
	if item.IsOverridden {
		return nil, fmt.Errorf("%w: item %s is already overridden", ErrInvalidOverride, code)
	}

	if err := s.checklistRepo.SetOverrideTx(tx, item.ID, justification, actorID); err != nil {
		return nil, fmt.Errorf("failed to override item: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	now := time.Now()
	item.IsOverridden = true
	item.OverrideJustification = &justification
	item.OverriddenBy = &actorID
	item.OverriddenAt = &now
	s.audit(actorID, "checklist_item_overridden", fmt.Sprintf("review %d item %s: %s", reviewID, code, justification))
	slog.Info("checklist item overridden", "review_id", reviewID, "code", code, "user_id", actorID)
	return item, nil
}

// RemoveOverride clears an item's override, returning it to rule-governed
// state.
func (s *ChecklistService) RemoveOverride(reviewID uint, code string, actorID uint) (*models.ChecklistItem, error) {
	roles, err := s.userRepo.GetUserRoleNames(actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get actor roles: %w", err)
	}
	if !hasAnyRole(roles, checklistOverrideRoles) {
		return nil, ErrPermissionDenied
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	item, err := s.checklistRepo.GetByReviewAndCodeForUpdate(tx, reviewID, code)
	if err != nil {
		return nil, fmt.Errorf("failed to get checklist item: %w", err)
	}
	if item == nil {
		return nil, ErrNotFound
	}
	if !item.IsOverridden {
		return nil, fmt.Errorf("%w: item %s is not overridden", ErrInvalidOverride, code)
	}

	if err := s.checklistRepo.ClearOverrideTx(tx, item.ID); err != nil {
		return nil, fmt.Errorf("failed to clear override: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	clearOverrideState(item)
	s.audit(actorID, "checklist_override_removed", fmt.Sprintf("review %d item %s", reviewID, code))
	return item, nil
}

// GetCompletionStatus aggregates the whole checklist into per-phase progress
// and the fieldwork gate verdict.
func (s *ChecklistService) GetCompletionStatus(reviewID uint) (*models.CompletionStatus, error) {
	state, err := s.loadState(reviewID, nil)
	if err != nil {
		return nil, err
	}
	return buildCompletionStatus(reviewID, *state), nil
}

// buildCompletionStatus computes the gate verdict from an evidentiary
// snapshot.
func buildCompletionStatus(reviewID uint, state EvidentiaryState) *models.CompletionStatus {
	status := &models.CompletionStatus{
		ReviewID:   reviewID,
		TotalItems: len(state.Items),
		Blockers:   []string{},
	}

	phaseIndex := make(map[string]int)
	for i := range state.Items {
		item := state.Items[i]
		satisfied := item.Satisfied()

		status.Items = append(status.Items, models.ItemStatus{
			Item:      item,
			Result:    EvaluateRule(item.Rule, &item, state),
			Satisfied: satisfied,
		})
		if satisfied {
			status.SatisfiedItems++
		} else {
			status.Blockers = append(status.Blockers, item.Code)
		}

		idx, ok := phaseIndex[item.Phase]
		if !ok {
			idx = len(status.Phases)
			phaseIndex[item.Phase] = idx
			status.Phases = append(status.Phases, models.PhaseProgress{Phase: item.Phase})
		}
		status.Phases[idx].Total++
		if satisfied {
			status.Phases[idx].Satisfied++
		}
	}

	status.CanCompleteFieldwork = status.TotalItems > 0 && status.SatisfiedItems == status.TotalItems
	return status
}

// CompleteFieldwork transitions a review out of fieldwork into reporting.
// The gate holds unless every checklist item is satisfied; a refused
// attempt returns the current status together with ErrChecklistIncomplete
// so callers can render the blockers.
func (s *ChecklistService) CompleteFieldwork(reviewID, actorID uint) (*models.CompletionStatus, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	review, err := s.reviewRepo.GetByIDForUpdate(tx, reviewID)
	if err != nil {
		return nil, fmt.Errorf("failed to get review: %w", err)
	}
	if review == nil {
		return nil, ErrNotFound
	}
	if review.Status != models.ReviewStatusFieldwork {
		return nil, fmt.Errorf("%w: review %d is in status %s", ErrInvalidTransition, reviewID, review.Status)
	}

	// The item reads share-lock the rows inside this transaction, so a
	// concurrent uncheck cannot slip in between the gate check and the
	// phase transition commit.
	items, err := s.checklistRepo.GetByReviewTx(tx, reviewID)
	if err != nil {
		return nil, fmt.Errorf("failed to get checklist items: %w", err)
	}
	docs, err := s.documentRepo.GetByReview(reviewID)
	if err != nil {
		return nil, fmt.Errorf("failed to get documents: %w", err)
	}
	findings, err := s.findingRepo.GetByReview(reviewID)
	if err != nil {
		return nil, fmt.Errorf("failed to get findings: %w", err)
	}
	state := EvidentiaryState{Documents: docs, Findings: findings, Items: items}
	status := buildCompletionStatus(reviewID, state)
	if !status.CanCompleteFieldwork {
		return status, fmt.Errorf("%w: %d items remain", ErrChecklistIncomplete, len(status.Blockers))
	}

	if err := s.reviewRepo.UpdatePhaseTx(tx, reviewID, models.ReviewPhaseReporting, models.ReviewStatusReportDrafting); err != nil {
		return nil, fmt.Errorf("failed to transition review: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	s.audit(actorID, "fieldwork_completed", fmt.Sprintf("review %d", reviewID))
	slog.Info("fieldwork completed", "review_id", reviewID, "user_id", actorID)
	return status, nil
}

// loadState snapshots the evidentiary inputs of rule evaluation for one
// review.
func (s *ChecklistService) loadState(reviewID uint, actorRoles []string) (*EvidentiaryState, error) {
	items, err := s.checklistRepo.GetByReview(reviewID)
	if err != nil {
		return nil, fmt.Errorf("failed to get checklist items: %w", err)
	}
	docs, err := s.documentRepo.GetByReview(reviewID)
	if err != nil {
		return nil, fmt.Errorf("failed to get documents: %w", err)
	}
	findings, err := s.findingRepo.GetByReview(reviewID)
	if err != nil {
		return nil, fmt.Errorf("failed to get findings: %w", err)
	}
	return &EvidentiaryState{
		Documents:  docs,
		Findings:   findings,
		Items:      items,
		ActorRoles: actorRoles,
	}, nil
}

func (s *ChecklistService) audit(actorID uint, action, details string) {
	entry := &models.AuditLog{
		UserID:   &actorID,
		Action:   action,
		Resource: "checklist",
		Details:  details,
	}
	if err := s.auditRepo.Create(entry); err != nil {
		slog.Error("failed to write audit log", "action", action, "error", err)
	}
}
