package models

import (
	"strings"
	"testing"
)

func TestChecklistTemplateIsValid(t *testing.T) {
	if err := ValidateChecklistTemplate(ChecklistTemplate); err != nil {
		t.Fatalf("Built-in template must validate: %v", err)
	}
	if len(ChecklistTemplate) != 14 {
		t.Errorf("Expected 14 template items, got %d", len(ChecklistTemplate))
	}

	phaseCounts := map[string]int{}
	for _, item := range ChecklistTemplate {
		phaseCounts[item.Phase]++
	}
	if phaseCounts[PhasePreVisit] != 5 || phaseCounts[PhaseOnSite] != 5 || phaseCounts[PhasePostVisit] != 4 {
		t.Errorf("Unexpected phase distribution: %v", phaseCounts)
	}
}

func TestValidateChecklistTemplateDuplicateCode(t *testing.T) {
	template := []ChecklistTemplateItem{
		{Phase: PhasePreVisit, Code: "PV-01", Rule: ValidationRule{Kind: RuleManualOrDocument, AllowManual: true}},
		{Phase: PhasePreVisit, Code: "PV-01", Rule: ValidationRule{Kind: RuleManualOrDocument, AllowManual: true}},
	}
	err := ValidateChecklistTemplate(template)
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("Expected duplicate-code error, got %v", err)
	}
}

func TestValidateChecklistTemplateDanglingReference(t *testing.T) {
	template := []ChecklistTemplateItem{
		{Phase: PhasePreVisit, Code: "PV-01", Rule: ValidationRule{Kind: RulePrerequisiteItems, PrerequisiteCodes: []string{"PV-99"}}},
	}
	err := ValidateChecklistTemplate(template)
	if err == nil || !strings.Contains(err.Error(), "unknown prerequisite") {
		t.Errorf("Expected dangling-reference error, got %v", err)
	}
}

func TestValidateChecklistTemplateSelfReference(t *testing.T) {
	template := []ChecklistTemplateItem{
		{Phase: PhasePreVisit, Code: "PV-01", Rule: ValidationRule{Kind: RulePrerequisiteItems, PrerequisiteCodes: []string{"PV-01"}}},
	}
	err := ValidateChecklistTemplate(template)
	if err == nil || !strings.Contains(err.Error(), "references itself") {
		t.Errorf("Expected self-reference error, got %v", err)
	}
}

func TestValidateChecklistTemplateCycle(t *testing.T) {
	template := []ChecklistTemplateItem{
		{Phase: PhasePreVisit, Code: "A", Rule: ValidationRule{Kind: RulePrerequisiteItems, PrerequisiteCodes: []string{"B"}}},
		{Phase: PhasePreVisit, Code: "B", Rule: ValidationRule{Kind: RulePrerequisiteItems, PrerequisiteCodes: []string{"C"}}},
		{Phase: PhasePreVisit, Code: "C", Rule: ValidationRule{Kind: RulePrerequisiteItems, PrerequisiteCodes: []string{"A"}}},
	}
	err := ValidateChecklistTemplate(template)
	if err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Errorf("Expected cycle error, got %v", err)
	}
}

func TestValidationRuleValidate(t *testing.T) {
	tests := []struct {
		name    string
		rule    ValidationRule
		wantErr bool
	}{
		{"unknown kind", ValidationRule{Kind: "NOPE"}, true},
		{"document exists ok", ValidationRule{Kind: RuleDocumentExists, DocumentCategory: DocAgenda, MinCount: 1}, false},
		{"document exists no category", ValidationRule{Kind: RuleDocumentExists, MinCount: 1}, true},
		{"document exists zero count", ValidationRule{Kind: RuleDocumentExists, DocumentCategory: DocAgenda}, true},
		{"documents reviewed ok", ValidationRule{Kind: RuleDocumentsReviewed, DocumentCategory: DocDraftReport}, false},
		{"documents reviewed no category", ValidationRule{Kind: RuleDocumentsReviewed}, true},
		{"findings exist ok", ValidationRule{Kind: RuleFindingsExist, MinCount: 1}, false},
		{"findings exist zero count", ValidationRule{Kind: RuleFindingsExist}, true},
		{"findings have evidence", ValidationRule{Kind: RuleFindingsHaveEvidence}, false},
		{"prerequisites ok", ValidationRule{Kind: RulePrerequisiteItems, PrerequisiteCodes: []string{"PV-01"}}, false},
		{"prerequisites empty", ValidationRule{Kind: RulePrerequisiteItems}, true},
		{"approval ok", ValidationRule{Kind: RuleApprovalRequired, ApproverRoles: []string{RoleTeamLead}}, false},
		{"approval no roles", ValidationRule{Kind: RuleApprovalRequired}, true},
		{"manual fallback ok", ValidationRule{Kind: RuleManualOrDocument, AllowManual: true}, false},
		{"manual neither", ValidationRule{Kind: RuleManualOrDocument}, true},
		{"auto check ok", ValidationRule{Kind: RuleAutoCheck, Condition: AutoCheckFindingsRecorded}, false},
		{"auto check bad condition", ValidationRule{Kind: RuleAutoCheck, Condition: "nonsense"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseValidationRule(t *testing.T) {
	rule, err := ParseValidationRule([]byte(`{"kind":"DOCUMENT_EXISTS","document_category":"AGENDA","min_count":2}`))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if rule.Kind != RuleDocumentExists || rule.MinCount != 2 {
		t.Errorf("Unexpected rule: %+v", rule)
	}

	if _, err := ParseValidationRule([]byte(`{"kind":"MADE_UP"}`)); err == nil {
		t.Error("Expected unknown kind to be rejected")
	}
	if _, err := ParseValidationRule([]byte(`{not json`)); err == nil {
		t.Error("Expected malformed JSON to be rejected")
	}
}

func TestDocumentStatusAtLeast(t *testing.T) {
	if !DocumentStatusAtLeast(DocStatusReviewed, DocStatusReviewed) {
		t.Error("A status must be at least itself")
	}
	if !DocumentStatusAtLeast(DocStatusApproved, DocStatusReviewed) {
		t.Error("APPROVED is past REVIEWED")
	}
	if DocumentStatusAtLeast(DocStatusUploaded, DocStatusReviewed) {
		t.Error("UPLOADED is before REVIEWED")
	}
	if DocumentStatusAtLeast(DocStatusRejected, DocStatusReviewed) {
		t.Error("REJECTED must not count as reviewed")
	}
}
