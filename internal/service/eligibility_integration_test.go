package service_test

import (
	"testing"
	"time"

	"ans-review/internal/models"
	"ans-review/internal/repository"
	"ans-review/internal/service"
	"ans-review/internal/testutil"
)

func newEligibilityService(containers *testutil.TestContainers) *service.EligibilityService {
	db := containers.DB
	return service.NewEligibilityService(
		repository.NewReviewerRepository(db),
		repository.NewConflictRecordRepository(db),
		repository.NewConflictOverrideRepository(db),
		repository.NewUserRepository(db),
		repository.NewOrganizationRepository(db),
		repository.NewAuditRepository(db),
		nil,
	)
}

// TestEligibilityLifecycle walks the full conflict workflow against a real
// database: detection, team check, override issue and revocation.
func TestEligibilityLifecycle(t *testing.T) {
	containers := testutil.SetupTestContainers(t)
	defer containers.Cleanup(t)

	db := containers.DB
	svc := newEligibilityService(containers)

	homeOrg := testutil.CreateOrganization(t, db, "Skyway Control", "SWC")
	targetOrg := testutil.CreateOrganization(t, db, "Northern ANSP", "NOR")

	reviewer := testutil.CreateUser(t, db, "reviewer@test.aero", "reviewer")
	testutil.CreateReviewerProfile(t, db, reviewer, homeOrg)

	coordinator := testutil.CreateUser(t, db, "coordinator@test.aero", "coordinator")

	// A review of the target org that ended last year gives the reviewer a
	// recent-review warning.
	ended := time.Now().AddDate(-1, 0, 0)
	pastReview := testutil.CreateReview(t, db, targetOrg, models.ReviewStatusCompleted, models.ReviewPhaseReporting, &ended)
	testutil.CreateTeamAssignment(t, db, pastReview, reviewer, targetOrg)

	check, err := svc.CheckReviewerConflicts(reviewer, targetOrg, nil)
	if err != nil {
		t.Fatalf("CheckReviewerConflicts failed: %v", err)
	}
	if check.HasHardBlock {
		t.Error("expected no hard block against a foreign organization")
	}
	if !check.HasSoftWarning {
		t.Fatal("expected a recent-review soft warning")
	}
	if check.CanProceedWithOverride {
		t.Error("expected CanProceedWithOverride to be false before any override exists")
	}

	// Against the home organization the block is absolute.
	homeCheck, err := svc.CheckReviewerConflicts(reviewer, homeOrg, nil)
	if err != nil {
		t.Fatalf("CheckReviewerConflicts failed: %v", err)
	}
	if !homeCheck.HasHardBlock {
		t.Error("expected a hard block against the home organization")
	}

	// A coordinator override neutralizes the soft warning.
	override, err := svc.IssueOverride(reviewer, targetOrg, nil, "Reviewer rotated off the prior team", nil, coordinator)
	if err != nil {
		t.Fatalf("IssueOverride failed: %v", err)
	}

	check, err = svc.CheckReviewerConflicts(reviewer, targetOrg, nil)
	if err != nil {
		t.Fatalf("CheckReviewerConflicts failed: %v", err)
	}
	if !check.CanProceedWithOverride {
		t.Error("expected CanProceedWithOverride after a valid override")
	}
	if check.Override == nil || check.Override.ID != override.ID {
		t.Error("expected the issued override on the check result")
	}

	// Team check aggregates per-member states.
	cleanReviewer := testutil.CreateUser(t, db, "clean@test.aero", "reviewer")
	testutil.CreateReviewerProfile(t, db, cleanReviewer, homeOrg)

	team, err := svc.CheckTeamConflicts([]uint{reviewer, cleanReviewer}, targetOrg, nil)
	if err != nil {
		t.Fatalf("CheckTeamConflicts failed: %v", err)
	}
	if !team.CanProceed {
		t.Error("expected team to proceed with override active and no hard blocks")
	}
	statuses := map[uint]string{}
	for _, m := range team.Members {
		statuses[m.ReviewerUserID] = m.Status
	}
	if statuses[reviewer] != models.MemberStatusOverrideActive {
		t.Errorf("expected override_active for overridden reviewer, got %q", statuses[reviewer])
	}
	if statuses[cleanReviewer] != models.MemberStatusEligible {
		t.Errorf("expected eligible for clean reviewer, got %q", statuses[cleanReviewer])
	}

	// Revocation restores the warning. The ledger keeps the revoked row.
	if err := svc.RevokeOverride(override.ID, coordinator); err != nil {
		t.Fatalf("RevokeOverride failed: %v", err)
	}

	check, err = svc.CheckReviewerConflicts(reviewer, targetOrg, nil)
	if err != nil {
		t.Fatalf("CheckReviewerConflicts failed: %v", err)
	}
	if check.CanProceedWithOverride {
		t.Error("expected CanProceedWithOverride to be false after revocation")
	}

	var revoked bool
	if err := db.QueryRow(`SELECT is_revoked FROM conflict_overrides WHERE id = $1`, override.ID).Scan(&revoked); err != nil {
		t.Fatalf("Failed to query override row: %v", err)
	}
	if !revoked {
		t.Error("expected the override row to remain with is_revoked set")
	}
}

// TestSyncAutoDetectedConflictsIdempotent verifies that reconciliation
// creates records once and that a repeat run changes nothing.
func TestSyncAutoDetectedConflictsIdempotent(t *testing.T) {
	containers := testutil.SetupTestContainers(t)
	defer containers.Cleanup(t)

	db := containers.DB
	svc := newEligibilityService(containers)

	homeOrg := testutil.CreateOrganization(t, db, "Coastal ANSP", "CST")
	reviewer := testutil.CreateUser(t, db, "sync@test.aero", "reviewer")
	testutil.CreateReviewerProfile(t, db, reviewer, homeOrg)

	result, err := svc.SyncAutoDetectedConflicts(reviewer)
	if err != nil {
		t.Fatalf("SyncAutoDetectedConflicts failed: %v", err)
	}
	if result.Created != 1 {
		t.Errorf("expected 1 created record (home organization), got %d", result.Created)
	}

	result, err = svc.SyncAutoDetectedConflicts(reviewer)
	if err != nil {
		t.Fatalf("SyncAutoDetectedConflicts failed on second run: %v", err)
	}
	if result.Created != 0 || result.Retired != 0 {
		t.Errorf("expected second run to be a no-op, got created=%d retired=%d", result.Created, result.Retired)
	}

	var count int
	if err := db.QueryRow(`
		SELECT COUNT(*) FROM conflict_records
		WHERE reviewer_user_id = $1 AND is_auto_detected = true AND is_active = true
	`, reviewer).Scan(&count); err != nil {
		t.Fatalf("Failed to count conflict records: %v", err)
	}
	if count != 1 {
		t.Errorf("expected exactly 1 active auto-detected record, got %d", count)
	}
}
