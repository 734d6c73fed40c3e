package service

import (
	"strings"
	"testing"

	"ans-review/internal/models"
)

func TestEvaluateRuleDocumentExists(t *testing.T) {
	rule := models.ValidationRule{Kind: models.RuleDocumentExists, DocumentCategory: models.DocSelfAssessment, MinCount: 1}

	state := EvidentiaryState{}
	if result := EvaluateRule(rule, nil, state); result.Passed {
		t.Error("Expected failure with no documents")
	}

	state.Documents = []models.Document{
		{Category: models.DocSelfAssessment, Status: models.DocStatusUploaded},
		{Category: models.DocAgenda, Status: models.DocStatusUploaded},
	}
	result := EvaluateRule(rule, nil, state)
	if !result.Passed {
		t.Errorf("Expected pass, got %s", result.Reason)
	}
	if result.Current != 1 {
		t.Errorf("Expected current 1, got %d", result.Current)
	}
}

func TestEvaluateRuleDocumentExistsStatusFilter(t *testing.T) {
	rule := models.ValidationRule{
		Kind:             models.RuleDocumentExists,
		DocumentCategory: models.DocDraftReport,
		RequiredStatuses: []string{models.DocStatusApproved},
		MinCount:         1,
	}
	state := EvidentiaryState{
		Documents: []models.Document{
			{Category: models.DocDraftReport, Status: models.DocStatusUploaded},
		},
	}
	if result := EvaluateRule(rule, nil, state); result.Passed {
		t.Error("Expected failure when no document matches the required status")
	}

	state.Documents[0].Status = models.DocStatusApproved
	if result := EvaluateRule(rule, nil, state); !result.Passed {
		t.Errorf("Expected pass, got %s", result.Reason)
	}
}

func TestEvaluateRuleDocumentsReviewed(t *testing.T) {
	rule := models.ValidationRule{Kind: models.RuleDocumentsReviewed, DocumentCategory: models.DocSelfAssessment}

	// No documents of the category means nothing was reviewed
	if result := EvaluateRule(rule, nil, EvidentiaryState{}); result.Passed {
		t.Error("Expected failure with no documents in the category")
	}

	state := EvidentiaryState{
		Documents: []models.Document{
			{Category: models.DocSelfAssessment, Status: models.DocStatusReviewed},
			{Category: models.DocSelfAssessment, Status: models.DocStatusUploaded},
		},
	}
	result := EvaluateRule(rule, nil, state)
	if result.Passed {
		t.Error("Expected failure while one document is unreviewed")
	}
	if result.Current != 1 || result.Required != 2 {
		t.Errorf("Expected 1/2, got %d/%d", result.Current, result.Required)
	}

	// Statuses past REVIEWED also count
	state.Documents[1].Status = models.DocStatusApproved
	if result := EvaluateRule(rule, nil, state); !result.Passed {
		t.Errorf("Expected pass, got %s", result.Reason)
	}
}

func TestEvaluateRuleFindingsExist(t *testing.T) {
	rule := models.ValidationRule{Kind: models.RuleFindingsExist, MinCount: 1}

	result := EvaluateRule(rule, nil, EvidentiaryState{})
	if result.Passed {
		t.Error("Expected failure with no findings recorded")
	}
	if result.Current != 0 || result.Required != 1 {
		t.Errorf("Expected 0/1, got %d/%d", result.Current, result.Required)
	}

	state := EvidentiaryState{
		Findings: []models.Finding{
			{Status: "open"},
			{Status: "closed"},
		},
	}
	if result := EvaluateRule(rule, nil, state); !result.Passed || result.Current != 2 {
		t.Errorf("Expected pass with 2 findings, got passed=%v current=%d", result.Passed, result.Current)
	}

	// Status filter only counts findings in the named state
	filtered := models.ValidationRule{Kind: models.RuleFindingsExist, MinCount: 2, FindingStatus: "open"}
	result = EvaluateRule(filtered, nil, state)
	if result.Passed {
		t.Error("Expected failure, only one finding is open")
	}
	if result.Current != 1 || result.Required != 2 {
		t.Errorf("Expected 1/2, got %d/%d", result.Current, result.Required)
	}
}

func TestEvaluateRuleFindingsHaveEvidence(t *testing.T) {
	rule := models.ValidationRule{Kind: models.RuleFindingsHaveEvidence}

	// Vacuously true with no findings
	if result := EvaluateRule(rule, nil, EvidentiaryState{}); !result.Passed {
		t.Error("Expected vacuous pass with no findings")
	}

	state := EvidentiaryState{
		Findings: []models.Finding{
			{EvidenceCount: 2},
			{EvidenceCount: 0},
		},
	}
	result := EvaluateRule(rule, nil, state)
	if result.Passed {
		t.Error("Expected failure with an unsupported finding")
	}
	if result.Current != 1 || result.Required != 2 {
		t.Errorf("Expected 1/2, got %d/%d", result.Current, result.Required)
	}
}

func TestEvaluateRulePrerequisiteItems(t *testing.T) {
	rule := models.ValidationRule{Kind: models.RulePrerequisiteItems, PrerequisiteCodes: []string{"PV-01", "PV-02"}}

	state := EvidentiaryState{
		Items: []models.ChecklistItem{
			{Code: "PV-01", IsCompleted: true},
			{Code: "PV-02"},
		},
	}
	result := EvaluateRule(rule, nil, state)
	if result.Passed {
		t.Error("Expected failure while a prerequisite is open")
	}
	if !strings.Contains(result.Reason, "PV-02") {
		t.Errorf("Expected reason to name the open prerequisite, got %q", result.Reason)
	}

	// An overridden prerequisite counts as satisfied
	state.Items[1].IsOverridden = true
	if result := EvaluateRule(rule, nil, state); !result.Passed {
		t.Errorf("Expected pass, got %s", result.Reason)
	}
}

func TestEvaluateRuleApprovalRequired(t *testing.T) {
	rule := models.ValidationRule{Kind: models.RuleApprovalRequired, ApproverRoles: []string{models.RoleTeamLead, models.RoleCoordinator}}

	// Display-only evaluation names the required roles
	result := EvaluateRule(rule, nil, EvidentiaryState{})
	if result.Passed {
		t.Error("Expected failure without an authorized actor")
	}
	if !strings.Contains(result.Reason, models.RoleTeamLead) {
		t.Errorf("Expected reason to name approver roles, got %q", result.Reason)
	}

	// Actor with an approver role may sign off
	state := EvidentiaryState{ActorRoles: []string{models.RoleTeamLead}}
	if result := EvaluateRule(rule, nil, state); !result.Passed {
		t.Errorf("Expected pass for team lead, got %s", result.Reason)
	}

	// Actor without one may not
	state.ActorRoles = []string{models.RoleReviewer}
	if result := EvaluateRule(rule, nil, state); result.Passed {
		t.Error("Expected failure for plain reviewer")
	}

	// A completed item stays signed off regardless of who asks
	item := &models.ChecklistItem{IsCompleted: true}
	if result := EvaluateRule(rule, item, state); !result.Passed {
		t.Error("Expected completed item to remain signed off")
	}
}

func TestEvaluateRuleManualOrDocument(t *testing.T) {
	rule := models.ValidationRule{Kind: models.RuleManualOrDocument, DocumentCategory: models.DocAgenda, AllowManual: true}

	// Manual attestation permitted even without the document
	if result := EvaluateRule(rule, nil, EvidentiaryState{}); !result.Passed {
		t.Errorf("Expected pass via manual attestation, got %s", result.Reason)
	}

	// Without manual fallback the document is required
	strict := models.ValidationRule{Kind: models.RuleManualOrDocument, DocumentCategory: models.DocAgenda}
	if result := EvaluateRule(strict, nil, EvidentiaryState{}); result.Passed {
		t.Error("Expected failure without document or manual fallback")
	}
	state := EvidentiaryState{Documents: []models.Document{{Category: models.DocAgenda, Status: models.DocStatusUploaded}}}
	if result := EvaluateRule(strict, nil, state); !result.Passed {
		t.Errorf("Expected pass with document present, got %s", result.Reason)
	}
}

func TestEvaluateRuleAutoCheck(t *testing.T) {
	recorded := models.ValidationRule{Kind: models.RuleAutoCheck, Condition: models.AutoCheckFindingsRecorded}

	if result := EvaluateRule(recorded, nil, EvidentiaryState{}); result.Passed {
		t.Error("Expected failure with no findings recorded")
	}
	state := EvidentiaryState{Findings: []models.Finding{{Status: "open"}}}
	if result := EvaluateRule(recorded, nil, state); !result.Passed {
		t.Errorf("Expected pass with a finding recorded, got %s", result.Reason)
	}

	capsSubmitted := models.ValidationRule{Kind: models.RuleAutoCheck, Condition: models.AutoCheckAllCAPsSubmitted}

	state = EvidentiaryState{Findings: []models.Finding{
		{Status: "cap_in_progress"},
		{Status: "cap_required"},
	}}
	if result := EvaluateRule(capsSubmitted, nil, state); result.Passed {
		t.Error("Expected failure while a finding still requires a plan")
	}

	state.Findings[1].Status = "resolved"
	if result := EvaluateRule(capsSubmitted, nil, state); !result.Passed {
		t.Errorf("Expected pass with all findings covered, got %s", result.Reason)
	}
}

func TestBuildCompletionStatus(t *testing.T) {
	state := EvidentiaryState{
		Items: []models.ChecklistItem{
			{Code: "PV-01", Phase: models.PhasePreVisit, IsCompleted: true, Rule: models.ValidationRule{Kind: models.RuleManualOrDocument, AllowManual: true}},
			{Code: "PV-02", Phase: models.PhasePreVisit, Rule: models.ValidationRule{Kind: models.RuleManualOrDocument, AllowManual: true}},
			{Code: "OS-01", Phase: models.PhaseOnSite, IsOverridden: true, Rule: models.ValidationRule{Kind: models.RuleManualOrDocument, AllowManual: true}},
		},
	}

	status := buildCompletionStatus(42, state)
	if status.ReviewID != 42 {
		t.Errorf("Expected review 42, got %d", status.ReviewID)
	}
	if status.TotalItems != 3 || status.SatisfiedItems != 2 {
		t.Errorf("Expected 2/3 satisfied, got %d/%d", status.SatisfiedItems, status.TotalItems)
	}
	if status.CanCompleteFieldwork {
		t.Error("Gate must hold while an item is unsatisfied")
	}
	if len(status.Blockers) != 1 || status.Blockers[0] != "PV-02" {
		t.Errorf("Expected blocker PV-02, got %v", status.Blockers)
	}
	if len(status.Phases) != 2 {
		t.Fatalf("Expected 2 phases, got %d", len(status.Phases))
	}
	if status.Phases[0].Phase != models.PhasePreVisit || status.Phases[0].Satisfied != 1 || status.Phases[0].Total != 2 {
		t.Errorf("Unexpected pre-visit progress: %+v", status.Phases[0])
	}
}

func TestBuildCompletionStatusAllSatisfied(t *testing.T) {
	state := EvidentiaryState{
		Items: []models.ChecklistItem{
			{Code: "PV-01", Phase: models.PhasePreVisit, IsCompleted: true, Rule: models.ValidationRule{Kind: models.RuleManualOrDocument, AllowManual: true}},
		},
	}
	status := buildCompletionStatus(42, state)
	if !status.CanCompleteFieldwork {
		t.Error("Expected the gate to open with every item satisfied")
	}
	if len(status.Blockers) != 0 {
		t.Errorf("Expected no blockers, got %v", status.Blockers)
	}
}

func TestBuildCompletionStatusEmptyChecklist(t *testing.T) {
	status := buildCompletionStatus(42, EvidentiaryState{})
	if status.CanCompleteFieldwork {
		t.Error("An uninitialized checklist must not open the gate")
	}
}
