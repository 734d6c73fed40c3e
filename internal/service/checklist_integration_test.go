package service_test

import (
	"errors"
	"testing"

	"ans-review/internal/models"
	"ans-review/internal/repository"
	"ans-review/internal/service"
	"ans-review/internal/testutil"
)

func newChecklistService(containers *testutil.TestContainers) *service.ChecklistService {
	db := containers.DB
	return service.NewChecklistService(
		db,
		repository.NewChecklistRepository(db),
		repository.NewDocumentRepository(db),
		repository.NewFindingRepository(db),
		repository.NewReviewRepository(db),
		repository.NewUserRepository(db),
		repository.NewAuditRepository(db),
	)
}

// TestChecklistLifecycle drives the full fieldwork checklist against a real
// database: initialization, refused and accepted toggles, overrides and the
// fieldwork completion gate.
func TestChecklistLifecycle(t *testing.T) {
	containers := testutil.SetupTestContainers(t)
	defer containers.Cleanup(t)

	db := containers.DB
	svc := newChecklistService(containers)

	org := testutil.CreateOrganization(t, db, "Eastern ANSP", "EST")
	coordinator := testutil.CreateUser(t, db, "coordinator@test.aero", "coordinator")
	reviewer := testutil.CreateUser(t, db, "reviewer@test.aero", "reviewer")

	review := testutil.CreateReview(t, db, org, models.ReviewStatusFieldwork, models.ReviewPhaseOnSite, nil)

	items, err := svc.InitializeChecklist(review, coordinator)
	if err != nil {
		t.Fatalf("InitializeChecklist failed: %v", err)
	}
	if len(items) != len(models.ChecklistTemplate) {
		t.Fatalf("expected %d checklist items, got %d", len(models.ChecklistTemplate), len(items))
	}
	if _, err := svc.InitializeChecklist(review, coordinator); err == nil {
		t.Error("expected a second initialization to fail")
	}

	// Checking PV-01 without its document is refused as data, not an error.
	outcome, err := svc.ToggleItem(review, "PV-01", reviewer)
	if err != nil {
		t.Fatalf("ToggleItem failed: %v", err)
	}
	if outcome.Toggled || outcome.Result.Passed {
		t.Error("expected PV-01 toggle to be refused without a pre-visit request document")
	}
	if outcome.Item.IsCompleted {
		t.Error("expected PV-01 to remain incomplete after refusal")
	}

	// Documents created here carry a NULL uploaded_by, which rule evaluation
	// must read back without complaint.
	testutil.CreateDocument(t, db, review, nil, models.DocPreVisitRequest, models.DocStatusUploaded)
	testutil.CreateDocument(t, db, review, nil, models.DocSelfAssessment, models.DocStatusReviewed)
	testutil.CreateDocument(t, db, review, nil, models.DocInterviewNotes, models.DocStatusUploaded)

	for _, code := range []string{"PV-01", "PV-02", "PV-03", "PV-04", "PV-05", "OS-01", "OS-02"} {
		outcome, err := svc.ToggleItem(review, code, reviewer)
		if err != nil {
			t.Fatalf("ToggleItem(%s) failed: %v", code, err)
		}
		if !outcome.Toggled || !outcome.Item.IsCompleted {
			t.Fatalf("expected %s to complete, got refusal: %s", code, outcome.Result.Reason)
		}
	}

	finding := testutil.CreateFinding(t, db, review, "major", "open")
	if outcome, err := svc.ToggleItem(review, "OS-03", reviewer); err != nil || !outcome.Toggled {
		t.Fatalf("expected OS-03 to complete with a finding recorded, err=%v", err)
	}

	// The finding has no evidence yet, so OS-04 is refused.
	outcome, err = svc.ToggleItem(review, "OS-04", reviewer)
	if err != nil {
		t.Fatalf("ToggleItem(OS-04) failed: %v", err)
	}
	if outcome.Toggled {
		t.Error("expected OS-04 toggle to be refused while the finding has no evidence")
	}

	// Only coordinators and admins may override, and only with a real
	// justification.
	if _, err := svc.OverrideItem(review, "OS-04", "Evidence accepted on paper during the visit", reviewer); !errors.Is(err, service.ErrPermissionDenied) {
		t.Errorf("expected ErrPermissionDenied for reviewer override, got %v", err)
	}
	if _, err := svc.OverrideItem(review, "OS-04", "ok", coordinator); !errors.Is(err, service.ErrInvalidOverride) {
		t.Errorf("expected ErrInvalidOverride for a short justification, got %v", err)
	}
	item, err := svc.OverrideItem(review, "OS-04", "Evidence accepted on paper during the visit", coordinator)
	if err != nil {
		t.Fatalf("OverrideItem failed: %v", err)
	}
	if !item.IsOverridden {
		t.Error("expected OS-04 to be overridden")
	}

	// Removing the override returns the item to rule-governed state.
	item, err = svc.RemoveOverride(review, "OS-04", coordinator)
	if err != nil {
		t.Fatalf("RemoveOverride failed: %v", err)
	}
	if item.IsOverridden {
		t.Error("expected OS-04 override to be cleared")
	}

	// With an evidence document attached the rule passes on its own.
	testutil.CreateDocument(t, db, review, &finding, models.DocEvidence, models.DocStatusUploaded)
	if outcome, err := svc.ToggleItem(review, "OS-04", reviewer); err != nil || !outcome.Toggled {
		t.Fatalf("expected OS-04 to complete with evidence attached, err=%v", err)
	}

	// Toggling an overridden item clears the override before completing.
	if _, err := svc.OverrideItem(review, "OS-05", "Closing briefing confirmed by the team lead", coordinator); err != nil {
		t.Fatalf("OverrideItem(OS-05) failed: %v", err)
	}
	outcome, err = svc.ToggleItem(review, "OS-05", reviewer)
	if err != nil {
		t.Fatalf("ToggleItem(OS-05) failed: %v", err)
	}
	if outcome.Item.IsOverridden {
		t.Error("expected the OS-05 override to be cleared by the toggle")
	}
	if !outcome.Toggled || !outcome.Item.IsCompleted {
		t.Error("expected OS-05 to complete after clearing the override")
	}

	testutil.CreateDocument(t, db, review, nil, models.DocDraftReport, models.DocStatusReviewed)
	for _, code := range []string{"PT-01", "PT-02", "PT-03"} {
		if outcome, err := svc.ToggleItem(review, code, reviewer); err != nil || !outcome.Toggled {
			t.Fatalf("expected %s to complete, err=%v", code, err)
		}
	}

	// The gate refuses while the sign-off item is open and reports it as a
	// blocker.
	status, err := svc.CompleteFieldwork(review, coordinator)
	if !errors.Is(err, service.ErrChecklistIncomplete) {
		t.Fatalf("expected ErrChecklistIncomplete, got %v", err)
	}
	if status == nil || len(status.Blockers) != 1 || status.Blockers[0] != "PT-04" {
		t.Fatalf("expected PT-04 as the sole blocker, got %+v", status)
	}

	// Sign-off requires an authorized actor.
	if outcome, err := svc.ToggleItem(review, "PT-04", reviewer); err != nil || outcome.Toggled {
		t.Errorf("expected PT-04 toggle by reviewer to be refused, err=%v", err)
	}
	if outcome, err := svc.ToggleItem(review, "PT-04", coordinator); err != nil || !outcome.Toggled {
		t.Fatalf("expected PT-04 sign-off by coordinator, err=%v", err)
	}

	status, err = svc.GetCompletionStatus(review)
	if err != nil {
		t.Fatalf("GetCompletionStatus failed: %v", err)
	}
	if !status.CanCompleteFieldwork || status.SatisfiedItems != status.TotalItems {
		t.Fatalf("expected a fully satisfied checklist, got %d/%d", status.SatisfiedItems, status.TotalItems)
	}

	status, err = svc.CompleteFieldwork(review, coordinator)
	if err != nil {
		t.Fatalf("CompleteFieldwork failed: %v", err)
	}
	if !status.CanCompleteFieldwork {
		t.Error("expected the returned status to reflect a passed gate")
	}

	var phase, reviewStatus string
	if err := db.QueryRow(`SELECT phase, status FROM reviews WHERE id = $1`, review).Scan(&phase, &reviewStatus); err != nil {
		t.Fatalf("Failed to query review row: %v", err)
	}
	if phase != models.ReviewPhaseReporting || reviewStatus != models.ReviewStatusReportDrafting {
		t.Errorf("expected reporting/report_drafting after completion, got %s/%s", phase, reviewStatus)
	}

	// Out of fieldwork the transition can not run again.
	if _, err := svc.CompleteFieldwork(review, coordinator); !errors.Is(err, service.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition on repeat completion, got %v", err)
	}
}

// TestCompleteFieldworkRereadsItems verifies that the gate decides on the
// checklist rows as they stand at transition time, not on an earlier
// snapshot. An item unchecked after the last status read must still hold the
// gate.
func TestCompleteFieldworkRereadsItems(t *testing.T) {
	containers := testutil.SetupTestContainers(t)
	defer containers.Cleanup(t)

	db := containers.DB
	svc := newChecklistService(containers)

	org := testutil.CreateOrganization(t, db, "Western ANSP", "WST")
	coordinator := testutil.CreateUser(t, db, "gatekeeper@test.aero", "coordinator")
	review := testutil.CreateReview(t, db, org, models.ReviewStatusFieldwork, models.ReviewPhaseOnSite, nil)

	if _, err := svc.InitializeChecklist(review, coordinator); err != nil {
		t.Fatalf("InitializeChecklist failed: %v", err)
	}

	finding := testutil.CreateFinding(t, db, review, "minor", "open")
	testutil.CreateDocument(t, db, review, nil, models.DocPreVisitRequest, models.DocStatusUploaded)
	testutil.CreateDocument(t, db, review, nil, models.DocSelfAssessment, models.DocStatusReviewed)
	testutil.CreateDocument(t, db, review, nil, models.DocInterviewNotes, models.DocStatusUploaded)
	testutil.CreateDocument(t, db, review, &finding, models.DocEvidence, models.DocStatusUploaded)
	testutil.CreateDocument(t, db, review, nil, models.DocDraftReport, models.DocStatusReviewed)

	codes := []string{"PV-01", "PV-02", "PV-03", "PV-04", "PV-05", "OS-01", "OS-02", "OS-03", "OS-04", "OS-05", "PT-01", "PT-02", "PT-03", "PT-04"}
	for _, code := range codes {
		if outcome, err := svc.ToggleItem(review, code, coordinator); err != nil || !outcome.Toggled {
			t.Fatalf("expected %s to complete, err=%v", code, err)
		}
	}

	// A fully satisfied status snapshot is now stale evidence: uncheck an
	// item behind its back.
	status, err := svc.GetCompletionStatus(review)
	if err != nil {
		t.Fatalf("GetCompletionStatus failed: %v", err)
	}
	if !status.CanCompleteFieldwork {
		t.Fatal("expected the checklist to be fully satisfied")
	}
	if outcome, err := svc.ToggleItem(review, "OS-05", coordinator); err != nil || !outcome.Toggled {
		t.Fatalf("expected OS-05 uncheck, err=%v", err)
	}

	status, err = svc.CompleteFieldwork(review, coordinator)
	if !errors.Is(err, service.ErrChecklistIncomplete) {
		t.Fatalf("expected ErrChecklistIncomplete after the uncheck, got %v", err)
	}
	if len(status.Blockers) != 1 || status.Blockers[0] != "OS-05" {
		t.Errorf("expected OS-05 as the blocker, got %v", status.Blockers)
	}

	var reviewStatus string
	if err := db.QueryRow(`SELECT status FROM reviews WHERE id = $1`, review).Scan(&reviewStatus); err != nil {
		t.Fatalf("Failed to query review row: %v", err)
	}
	if reviewStatus != models.ReviewStatusFieldwork {
		t.Errorf("expected the review to stay in fieldwork, got %s", reviewStatus)
	}
}
