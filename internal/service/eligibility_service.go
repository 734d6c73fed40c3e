package service

import (
	"fmt"
	"log/slog"
	"time"

	"ans-review/internal/models"
	"ans-review/internal/notification"
	"ans-review/internal/repository"
)

// RecentReviewCooldownDays is the window during which having served on a
// completed review of an organization counts as a RECENT_REVIEW conflict.
const RecentReviewCooldownDays = 730

// OverrideJustificationMinLength is the minimum justification length for a
// conflict override.
const OverrideJustificationMinLength = 10

// overrideIssuerRoles may issue and revoke conflict overrides
var overrideIssuerRoles = []string{models.RoleCoordinator, models.RoleAdmin}

// EligibilityService performs conflict-of-interest checks for reviewer
// assignments and manages the override ledger.
type EligibilityService struct {
	reviewerRepo    *repository.ReviewerRepository
	conflictRepo    *repository.ConflictRecordRepository
	overrideRepo    *repository.ConflictOverrideRepository
	userRepo        *repository.UserRepository
	orgRepo         *repository.OrganizationRepository
	auditRepo       *repository.AuditRepository
	notificationSvc *notification.Service
}

// NewEligibilityService creates a new eligibility service
func NewEligibilityService(
	reviewerRepo *repository.ReviewerRepository,
	conflictRepo *repository.ConflictRecordRepository,
	overrideRepo *repository.ConflictOverrideRepository,
	userRepo *repository.UserRepository,
	orgRepo *repository.OrganizationRepository,
	auditRepo *repository.AuditRepository,
	notificationSvc *notification.Service,
) *EligibilityService {
	return &EligibilityService{
		reviewerRepo:    reviewerRepo,
		conflictRepo:    conflictRepo,
		overrideRepo:    overrideRepo,
		userRepo:        userRepo,
		orgRepo:         orgRepo,
		auditRepo:       auditRepo,
		notificationSvc: notificationSvc,
	}
}

// DetectConflicts computes the auto-detectable conflicts of a reviewer
// against an organization from the reviewer's profile and assignment
// history. Records returned here are ephemeral (ID zero); persistence is
// SyncAutoDetectedConflicts' job.
func DetectConflicts(profile *models.ReviewerProfile, history []models.TeamAssignment, orgID uint, now time.Time) []models.ConflictRecord {
	var conflicts []models.ConflictRecord

	if profile.HomeOrganizationID == orgID {
		conflicts = append(conflicts, models.ConflictRecord{
			ReviewerUserID: profile.UserID,
			OrganizationID: orgID,
			Type:           models.ConflictHomeOrganization,
			Severity:       models.SeverityHardBlock,
			Details:        "reviewer's home organization",
			IsAutoDetected: true,
			StartDate:      now,
			IsActive:       true,
		})
	}

	if last := latestQualifyingReviewEnd(history, orgID, now); last != nil {
		conflicts = append(conflicts, models.ConflictRecord{
			ReviewerUserID: profile.UserID,
			OrganizationID: orgID,
			Type:           models.ConflictRecentReview,
			Severity:       models.SeveritySoftWarning,
			Details:        fmt.Sprintf("served on a review of this organization ending %s", last.Format("2006-01-02")),
			IsAutoDetected: true,
			StartDate:      *last,
			IsActive:       true,
		})
	}

	return conflicts
}

// latestQualifyingReviewEnd returns the most recent result-bearing review
// end date for the given organization inside the cooldown window, or nil.
func latestQualifyingReviewEnd(history []models.TeamAssignment, orgID uint, now time.Time) *time.Time {
	cutoff := now.AddDate(0, 0, -RecentReviewCooldownDays)
	var latest *time.Time
	for i := range history {
		a := &history[i]
		if a.OrganizationID != orgID || a.ReviewEndDate == nil {
			continue
		}
		if !containsString(models.ResultBearingReviewStatuses, a.ReviewStatus) {
			continue
		}
		if a.ReviewEndDate.Before(cutoff) || a.ReviewEndDate.After(now) {
			continue
		}
		if latest == nil || a.ReviewEndDate.After(*latest) {
			latest = a.ReviewEndDate
		}
	}
	return latest
}

// ResolveOverride picks the governing override from the append-only ledger:
// the most recently approved entry that is unrevoked, unexpired and applies
// to the given review. Overrides are expected newest-first.
func ResolveOverride(overrides []models.ConflictOverride, reviewID *uint, now time.Time) *models.ConflictOverride {
	for i := range overrides {
		o := &overrides[i]
		if o.IsValid(now) && o.AppliesTo(reviewID) {
			return o
		}
	}
	return nil
}

// BuildCheckResult merges detected and declared conflicts with the governing
// override into a single check outcome. An override neutralizes soft
// warnings only; a hard block is never overridable.
func BuildCheckResult(reviewerID, orgID uint, detected, declared []models.ConflictRecord, override *models.ConflictOverride, now time.Time) models.ConflictCheckResult {
	detectedTypes := make(map[string]bool, len(detected))
	conflicts := make([]models.ConflictRecord, 0, len(detected)+len(declared))
	for _, c := range detected {
		detectedTypes[c.Type] = true
		conflicts = append(conflicts, c)
	}
	for _, c := range declared {
		// Stored auto-detected records are reconciled copies of what was
		// just computed; skip them and anything duplicating a detected type.
		if c.IsAutoDetected || detectedTypes[c.Type] {
			continue
		}
		if !c.CurrentlyActive(now) {
			continue
		}
		conflicts = append(conflicts, c)
	}

	result := models.ConflictCheckResult{
		ReviewerUserID: reviewerID,
		OrganizationID: orgID,
		Conflicts:      conflicts,
	}
	for _, c := range conflicts {
		result.HasConflict = true
		switch c.Severity {
		case models.SeverityHardBlock:
			result.HasHardBlock = true
		case models.SeveritySoftWarning:
			result.HasSoftWarning = true
		}
	}
	if result.HasSoftWarning && !result.HasHardBlock && override != nil {
		result.Override = override
		result.CanProceedWithOverride = true
	}
	return result
}

// CheckReviewerConflicts runs a full conflict check for one reviewer against
// one organization, optionally scoped to a review.
func (s *EligibilityService) CheckReviewerConflicts(reviewerID, orgID uint, reviewID *uint) (*models.ConflictCheckResult, error) {
	profile, err := s.reviewerRepo.GetProfile(reviewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reviewer profile: %w", err)
	}
	if profile == nil {
		return nil, ErrNotFound
	}

	history, err := s.reviewerRepo.GetAssignmentHistory(reviewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment history: %w", err)
	}

	declared, err := s.conflictRepo.GetActiveForPair(reviewerID, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to get conflict records: %w", err)
	}

	overrides, err := s.overrideRepo.GetForPair(reviewerID, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to get overrides: %w", err)
	}

	now := time.Now()
	detected := DetectConflicts(profile, history, orgID, now)
	override := ResolveOverride(overrides, reviewID, now)
	result := BuildCheckResult(reviewerID, orgID, detected, declared, override, now)
	return &result, nil
}

// CheckTeamConflicts checks every proposed team member against the target
// organization and classifies each one. The team can proceed only when no
// member is hard-blocked.
func (s *EligibilityService) CheckTeamConflicts(reviewerIDs []uint, orgID uint, reviewID *uint) (*models.TeamCheckResult, error) {
	result := &models.TeamCheckResult{
		OrganizationID: orgID,
		CanProceed:     true,
		Members:        make([]models.TeamMemberResult, 0, len(reviewerIDs)),
	}

	for _, reviewerID := range reviewerIDs {
		check, err := s.CheckReviewerConflicts(reviewerID, orgID, reviewID)
		if err != nil {
			return nil, fmt.Errorf("failed to check reviewer %d: %w", reviewerID, err)
		}

		status := models.MemberStatusEligible
		switch {
		case check.HasHardBlock:
			status = models.MemberStatusBlocked
			result.CanProceed = false
		case check.HasSoftWarning && check.CanProceedWithOverride:
			status = models.MemberStatusOverrideActive
		case check.HasSoftWarning:
			status = models.MemberStatusWarning
		}

		result.Members = append(result.Members, models.TeamMemberResult{
			ReviewerUserID: reviewerID,
			Status:         status,
			Check:          *check,
		})
	}

	return result, nil
}

// SyncAutoDetectedConflicts reconciles the stored auto-detected conflict
// records of one reviewer with what is currently detectable: stale records
// are retired (never deleted), missing ones are created. The operation is
// idempotent; running it twice changes nothing on the second run.
func (s *EligibilityService) SyncAutoDetectedConflicts(reviewerID uint) (*models.COISyncResult, error) {
	profile, err := s.reviewerRepo.GetProfile(reviewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reviewer profile: %w", err)
	}
	if profile == nil {
		return nil, ErrNotFound
	}

	history, err := s.reviewerRepo.GetAssignmentHistory(reviewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment history: %w", err)
	}

	now := time.Now()
	result := &models.COISyncResult{ReviewerUserID: reviewerID}

	// Home organization: exactly one active record, pointing at the current
	// home org.
	stored, err := s.conflictRepo.GetAutoDetectedByType(reviewerID, models.ConflictHomeOrganization)
	if err != nil {
		return nil, fmt.Errorf("failed to get home organization records: %w", err)
	}
	haveHome := false
	for _, rec := range stored {
		if rec.OrganizationID == profile.HomeOrganizationID {
			haveHome = true
			continue
		}
		if err := s.conflictRepo.Retire(rec.ID, now); err != nil {
			return nil, fmt.Errorf("failed to retire conflict record %d: %w", rec.ID, err)
		}
		result.Retired++
	}
	if !haveHome {
		rec := &models.ConflictRecord{
			ReviewerUserID: reviewerID,
			OrganizationID: profile.HomeOrganizationID,
			Type:           models.ConflictHomeOrganization,
			Severity:       models.SeverityHardBlock,
			Details:        "reviewer's home organization",
			IsAutoDetected: true,
			StartDate:      now,
			IsActive:       true,
		}
		if err := s.conflictRepo.Create(rec); err != nil {
			return nil, fmt.Errorf("failed to create conflict record: %w", err)
		}
		result.Created++
	}

	// Recent reviews: one active record per organization with a qualifying
	// review end inside the cooldown window.
	cutoff := now.AddDate(0, 0, -RecentReviewCooldownDays)
	current := make(map[uint]time.Time)
	for i := range history {
		a := &history[i]
		if a.ReviewEndDate == nil || !containsString(models.ResultBearingReviewStatuses, a.ReviewStatus) {
			continue
		}
		if a.ReviewEndDate.Before(cutoff) || a.ReviewEndDate.After(now) {
			continue
		}
		if existing, ok := current[a.OrganizationID]; !ok || a.ReviewEndDate.After(existing) {
			current[a.OrganizationID] = *a.ReviewEndDate
		}
	}

	stored, err = s.conflictRepo.GetAutoDetectedByType(reviewerID, models.ConflictRecentReview)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent review records: %w", err)
	}
	storedOrgs := make(map[uint]bool, len(stored))
	for _, rec := range stored {
		if _, ok := current[rec.OrganizationID]; ok {
			storedOrgs[rec.OrganizationID] = true
			continue
		}
		if err := s.conflictRepo.Retire(rec.ID, now); err != nil {
			return nil, fmt.Errorf("failed to retire conflict record %d: %w", rec.ID, err)
		}
		result.Retired++
	}
	for orgID, end := range current {
		if storedOrgs[orgID] {
			continue
		}
		rec := &models.ConflictRecord{
			ReviewerUserID: reviewerID,
			OrganizationID: orgID,
			Type:           models.ConflictRecentReview,
			Severity:       models.SeveritySoftWarning,
			Details:        fmt.Sprintf("served on a review of this organization ending %s", end.Format("2006-01-02")),
			IsAutoDetected: true,
			StartDate:      end,
			IsActive:       true,
		}
		if err := s.conflictRepo.Create(rec); err != nil {
			return nil, fmt.Errorf("failed to create conflict record: %w", err)
		}
		result.Created++
	}

	slog.Info("synced auto-detected conflicts",
		"reviewer_id", reviewerID,
		"created", result.Created,
		"retired", result.Retired)
	return result, nil
}

// IssueOverride records a justified exception letting a reviewer proceed
// despite a SOFT_WARNING conflict. Only coordinators and admins may issue
// overrides, and a hard block can never be overridden.
func (s *EligibilityService) IssueOverride(reviewerID, orgID uint, reviewID *uint, justification string, expiresAt *time.Time, actorID uint) (*models.ConflictOverride, error) {
	roles, err := s.userRepo.GetUserRoleNames(actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get actor roles: %w", err)
	}
	if !hasAnyRole(roles, overrideIssuerRoles) {
		return nil, ErrPermissionDenied
	}

	if len(justification) < OverrideJustificationMinLength {
		return nil, fmt.Errorf("%w: justification must be at least %d characters", ErrInvalidOverride, OverrideJustificationMinLength)
	}
	if expiresAt != nil && !expiresAt.After(time.Now()) {
		return nil, fmt.Errorf("%w: expiry must be in the future", ErrInvalidOverride)
	}

	check, err := s.CheckReviewerConflicts(reviewerID, orgID, reviewID)
	if err != nil {
		return nil, err
	}
	if check.HasHardBlock {
		return nil, fmt.Errorf("%w: a hard-block conflict cannot be overridden", ErrInvalidOverride)
	}
	if !check.HasSoftWarning {
		return nil, fmt.Errorf("%w: no soft-warning conflict to override", ErrInvalidOverride)
	}

	override := &models.ConflictOverride{
		ReviewerUserID: reviewerID,
		OrganizationID: orgID,
		ReviewID:       reviewID,
		Justification:  justification,
		ApprovedBy:     actorID,
		ExpiresAt:      expiresAt,
	}
	if err := s.overrideRepo.Create(override); err != nil {
		return nil, fmt.Errorf("failed to create override: %w", err)
	}

	s.audit(actorID, "conflict_override_issued", fmt.Sprintf("override %d for reviewer %d / organization %d", override.ID, reviewerID, orgID))
	slog.Info("conflict override issued",
		"override_id", override.ID,
		"reviewer_id", reviewerID,
		"organization_id", orgID,
		"approved_by", actorID)

	s.notifyOverrideIssued(reviewerID, orgID, justification)

	return override, nil
}

// notifyOverrideIssued emails the reviewer about a newly issued override.
// Delivery failures are logged, never surfaced: the override is already on
// the ledger.
func (s *EligibilityService) notifyOverrideIssued(reviewerID, orgID uint, justification string) {
	if s.notificationSvc == nil {
		return
	}

	reviewer, err := s.userRepo.GetByID(reviewerID)
	if err != nil || reviewer == nil {
		slog.Error("Failed to load reviewer for override notice", "reviewer_id", reviewerID, "error", err)
		return
	}
	org, err := s.orgRepo.GetByID(orgID)
	if err != nil || org == nil {
		slog.Error("Failed to load organization for override notice", "organization_id", orgID, "error", err)
		return
	}

	reviewerName := fmt.Sprintf("%s %s", reviewer.FirstName, reviewer.LastName)
	if err := s.notificationSvc.SendOverrideIssuedNotice([]string{reviewer.Email}, reviewerName, org.Name, justification); err != nil {
		slog.Error("Failed to send override notice", "reviewer_id", reviewerID, "error", err)
	}
}

// RevokeOverride flags an override as revoked. The ledger entry itself is
// never deleted.
func (s *EligibilityService) RevokeOverride(overrideID, actorID uint) error {
	roles, err := s.userRepo.GetUserRoleNames(actorID)
	if err != nil {
		return fmt.Errorf("failed to get actor roles: %w", err)
	}
	if !hasAnyRole(roles, overrideIssuerRoles) {
		return ErrPermissionDenied
	}

	override, err := s.overrideRepo.GetByID(overrideID)
	if err != nil {
		return fmt.Errorf("failed to get override: %w", err)
	}
	if override == nil {
		return ErrNotFound
	}
	if override.IsRevoked {
		return fmt.Errorf("%w: override %d is already revoked", ErrInvalidOverride, overrideID)
	}

	if err := s.overrideRepo.Revoke(overrideID, actorID); err != nil {
		return fmt.Errorf("failed to revoke override: %w", err)
	}

	s.audit(actorID, "conflict_override_revoked", fmt.Sprintf("override %d", overrideID))
	slog.Info("conflict override revoked", "override_id", overrideID, "revoked_by", actorID)
	return nil
}

// DeclareConflict records a manually declared conflict for a reviewer.
func (s *EligibilityService) DeclareConflict(record *models.ConflictRecord, actorID uint) error {
	if record.Type == "" || record.Severity == "" {
		return fmt.Errorf("conflict type and severity are required")
	}
	if record.Severity != models.SeverityHardBlock && record.Severity != models.SeveritySoftWarning {
		return fmt.Errorf("unknown conflict severity: %s", record.Severity)
	}
	record.IsAutoDetected = false
	record.IsActive = true
	record.DeclaredBy = &actorID
	if record.StartDate.IsZero() {
		record.StartDate = time.Now()
	}
	if err := s.conflictRepo.Create(record); err != nil {
		return fmt.Errorf("failed to create conflict record: %w", err)
	}
	s.audit(actorID, "conflict_declared", fmt.Sprintf("conflict %d (%s) for reviewer %d / organization %d", record.ID, record.Type, record.ReviewerUserID, record.OrganizationID))
	return nil
}

func (s *EligibilityService) audit(actorID uint, action, details string) {
	entry := &models.AuditLog{
		UserID:   &actorID,
		Action:   action,
		Resource: "eligibility",
		Details:  details,
	}
	if err := s.auditRepo.Create(entry); err != nil {
		slog.Error("failed to write audit log", "action", action, "error", err)
	}
}
