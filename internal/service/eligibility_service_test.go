package service

import (
	"testing"
	"time"

	"ans-review/internal/models"
)

func datePtr(t time.Time) *time.Time { return &t }

func TestDetectConflictsHomeOrganization(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	profile := &models.ReviewerProfile{UserID: 7, HomeOrganizationID: 3}

	conflicts := DetectConflicts(profile, nil, 3, now)
	if len(conflicts) != 1 {
		t.Fatalf("Expected 1 conflict, got %d", len(conflicts))
	}
	c := conflicts[0]
	if c.Type != models.ConflictHomeOrganization {
		t.Errorf("Expected type %s, got %s", models.ConflictHomeOrganization, c.Type)
	}
	if c.Severity != models.SeverityHardBlock {
		t.Errorf("Expected severity %s, got %s", models.SeverityHardBlock, c.Severity)
	}
	if !c.IsAutoDetected {
		t.Error("Expected conflict to be auto-detected")
	}
}

func TestDetectConflictsNoConflict(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	profile := &models.ReviewerProfile{UserID: 7, HomeOrganizationID: 3}

	if conflicts := DetectConflicts(profile, nil, 8, now); len(conflicts) != 0 {
		t.Errorf("Expected no conflicts, got %d", len(conflicts))
	}
}

func TestDetectConflictsRecentReview(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	profile := &models.ReviewerProfile{UserID: 7, HomeOrganizationID: 3}

	history := []models.TeamAssignment{
		{
			OrganizationID: 8,
			ReviewStatus:   models.ReviewStatusCompleted,
			ReviewEndDate:  datePtr(now.AddDate(0, -6, 0)),
		},
	}

	conflicts := DetectConflicts(profile, history, 8, now)
	if len(conflicts) != 1 {
		t.Fatalf("Expected 1 conflict, got %d", len(conflicts))
	}
	if conflicts[0].Type != models.ConflictRecentReview {
		t.Errorf("Expected type %s, got %s", models.ConflictRecentReview, conflicts[0].Type)
	}
	if conflicts[0].Severity != models.SeveritySoftWarning {
		t.Errorf("Expected severity %s, got %s", models.SeveritySoftWarning, conflicts[0].Severity)
	}
}

func TestDetectConflictsCooldownBoundary(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	profile := &models.ReviewerProfile{UserID: 7, HomeOrganizationID: 3}

	tests := []struct {
		name     string
		end      time.Time
		status   string
		conflict bool
	}{
		{"inside window", now.AddDate(0, 0, -RecentReviewCooldownDays+1), models.ReviewStatusCompleted, true},
		{"exactly at cutoff", now.AddDate(0, 0, -RecentReviewCooldownDays), models.ReviewStatusCompleted, true},
		{"just outside window", now.AddDate(0, 0, -RecentReviewCooldownDays-1), models.ReviewStatusCompleted, false},
		{"future end date", now.AddDate(0, 0, 1), models.ReviewStatusCompleted, false},
		{"cancelled review", now.AddDate(0, -1, 0), models.ReviewStatusCancelled, false},
		{"planning review", now.AddDate(0, -1, 0), models.ReviewStatusPlanning, false},
		{"report drafting counts", now.AddDate(0, -1, 0), models.ReviewStatusReportDrafting, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			history := []models.TeamAssignment{
				{OrganizationID: 8, ReviewStatus: tt.status, ReviewEndDate: datePtr(tt.end)},
			}
			conflicts := DetectConflicts(profile, history, 8, now)
			if got := len(conflicts) == 1; got != tt.conflict {
				t.Errorf("Expected conflict=%v, got %d conflicts", tt.conflict, len(conflicts))
			}
		})
	}
}

func TestDetectConflictsPicksLatestEnd(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	profile := &models.ReviewerProfile{UserID: 7, HomeOrganizationID: 3}

	older := now.AddDate(0, -18, 0)
	newer := now.AddDate(0, -2, 0)
	history := []models.TeamAssignment{
		{OrganizationID: 8, ReviewStatus: models.ReviewStatusCompleted, ReviewEndDate: &older},
		{OrganizationID: 8, ReviewStatus: models.ReviewStatusCompleted, ReviewEndDate: &newer},
	}

	conflicts := DetectConflicts(profile, history, 8, now)
	if len(conflicts) != 1 {
		t.Fatalf("Expected 1 conflict, got %d", len(conflicts))
	}
	if !conflicts[0].StartDate.Equal(newer) {
		t.Errorf("Expected start date %v, got %v", newer, conflicts[0].StartDate)
	}
}

func TestResolveOverride(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reviewID := uint(40)
	otherReview := uint(41)

	tests := []struct {
		name      string
		overrides []models.ConflictOverride
		reviewID  *uint
		wantID    uint
	}{
		{
			name:      "no overrides",
			overrides: nil,
			reviewID:  &reviewID,
			wantID:    0,
		},
		{
			name: "revoked is skipped",
			overrides: []models.ConflictOverride{
				{ID: 1, IsRevoked: true},
			},
			reviewID: &reviewID,
			wantID:   0,
		},
		{
			name: "expired is skipped",
			overrides: []models.ConflictOverride{
				{ID: 1, ExpiresAt: datePtr(now.Add(-time.Hour))},
			},
			reviewID: &reviewID,
			wantID:   0,
		},
		{
			name: "review-agnostic applies",
			overrides: []models.ConflictOverride{
				{ID: 1},
			},
			reviewID: &reviewID,
			wantID:   1,
		},
		{
			name: "scoped to other review does not apply",
			overrides: []models.ConflictOverride{
				{ID: 1, ReviewID: &otherReview},
			},
			reviewID: &reviewID,
			wantID:   0,
		},
		{
			name: "newest valid entry wins",
			overrides: []models.ConflictOverride{
				{ID: 3, IsRevoked: true},
				{ID: 2},
				{ID: 1},
			},
			reviewID: &reviewID,
			wantID:   2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveOverride(tt.overrides, tt.reviewID, now)
			if tt.wantID == 0 {
				if got != nil {
					t.Errorf("Expected no override, got %d", got.ID)
				}
				return
			}
			if got == nil {
				t.Fatal("Expected an override, got nil")
			}
			if got.ID != tt.wantID {
				t.Errorf("Expected override %d, got %d", tt.wantID, got.ID)
			}
		})
	}
}

func TestBuildCheckResultOverrideNeutralizesSoftWarning(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	detected := []models.ConflictRecord{
		{Type: models.ConflictRecentReview, Severity: models.SeveritySoftWarning},
	}
	override := &models.ConflictOverride{ID: 5}

	result := BuildCheckResult(7, 8, detected, nil, override, now)
	if !result.HasConflict || !result.HasSoftWarning {
		t.Error("Expected soft-warning conflict to be reported")
	}
	if result.HasHardBlock {
		t.Error("Did not expect a hard block")
	}
	if !result.CanProceedWithOverride {
		t.Error("Expected override to permit proceeding")
	}
	if result.Override == nil || result.Override.ID != 5 {
		t.Error("Expected the governing override to be attached")
	}
}

func TestBuildCheckResultHardBlockNotOverridable(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	detected := []models.ConflictRecord{
		{Type: models.ConflictHomeOrganization, Severity: models.SeverityHardBlock},
		{Type: models.ConflictRecentReview, Severity: models.SeveritySoftWarning},
	}
	override := &models.ConflictOverride{ID: 5}

	result := BuildCheckResult(7, 8, detected, nil, override, now)
	if !result.HasHardBlock {
		t.Error("Expected a hard block")
	}
	if result.CanProceedWithOverride {
		t.Error("A hard block must never be overridable")
	}
	if result.Override != nil {
		t.Error("Override must not be attached when a hard block exists")
	}
}

func TestBuildCheckResultSkipsStoredAutoDetected(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	detected := []models.ConflictRecord{
		{Type: models.ConflictRecentReview, Severity: models.SeveritySoftWarning},
	}
	declared := []models.ConflictRecord{
		// Reconciled copy of what was just detected
		{Type: models.ConflictRecentReview, Severity: models.SeveritySoftWarning, IsAutoDetected: true, IsActive: true},
		// Manually declared, distinct type
		{Type: models.ConflictFamilyRelationship, Severity: models.SeverityHardBlock, IsActive: true},
		// Inactive record is ignored
		{Type: models.ConflictBusinessInterest, Severity: models.SeveritySoftWarning, IsActive: false},
	}

	result := BuildCheckResult(7, 8, detected, declared, nil, now)
	if len(result.Conflicts) != 2 {
		t.Fatalf("Expected 2 conflicts, got %d", len(result.Conflicts))
	}
	if !result.HasHardBlock {
		t.Error("Expected the declared family relationship to hard-block")
	}
}

func TestBuildCheckResultNoConflicts(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	result := BuildCheckResult(7, 8, nil, nil, nil, now)
	if result.HasConflict || result.HasHardBlock || result.HasSoftWarning {
		t.Error("Expected a clean result")
	}
	if len(result.Conflicts) != 0 {
		t.Errorf("Expected no conflicts, got %d", len(result.Conflicts))
	}
}
