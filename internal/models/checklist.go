package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Checklist phases
const (
	PhasePreVisit  = "PRE_VISIT"
	PhaseOnSite    = "ON_SITE"
	PhasePostVisit = "POST_VISIT"
)

// Validation rule kinds. The set is closed: ParseValidationRule rejects
// anything else at construction time, so evaluation never sees an unknown
// kind.
const (
	RuleDocumentExists       = "DOCUMENT_EXISTS"
	RuleDocumentsReviewed    = "DOCUMENTS_REVIEWED"
	RuleFindingsExist        = "FINDINGS_EXIST"
	RuleFindingsHaveEvidence = "FINDINGS_HAVE_EVIDENCE"
	RulePrerequisiteItems    = "PREREQUISITE_ITEMS"
	RuleApprovalRequired     = "APPROVAL_REQUIRED"
	RuleManualOrDocument     = "MANUAL_OR_DOCUMENT"
	RuleAutoCheck            = "AUTO_CHECK"
)

// Named system conditions for AUTO_CHECK rules
const (
	AutoCheckFindingsRecorded = "findings_recorded"
	AutoCheckAllCAPsSubmitted = "all_caps_submitted"
)

// ValidationRule is the tagged variant attached to a checklist item. Exactly
// one parameter set is meaningful per kind; the rest stay zero.
type ValidationRule struct {
	Kind string `json:"kind"`

	// DOCUMENT_EXISTS, DOCUMENTS_REVIEWED, MANUAL_OR_DOCUMENT
	DocumentCategory string   `json:"document_category,omitempty"`
	RequiredStatuses []string `json:"required_statuses,omitempty"`

	// DOCUMENT_EXISTS, FINDINGS_EXIST
	MinCount int `json:"min_count,omitempty"`

	// FINDINGS_EXIST
	FindingStatus string `json:"finding_status,omitempty"`

	// PREREQUISITE_ITEMS
	PrerequisiteCodes []string `json:"prerequisite_codes,omitempty"`

	// APPROVAL_REQUIRED
	ApproverRoles []string `json:"approver_roles,omitempty"`

	// MANUAL_OR_DOCUMENT
	AllowManual bool `json:"allow_manual,omitempty"`

	// AUTO_CHECK
	Condition string `json:"condition,omitempty"`
}

// validRuleKinds is the closed set of accepted rule variants.
var validRuleKinds = map[string]bool{
	RuleDocumentExists:       true,
	RuleDocumentsReviewed:    true,
	RuleFindingsExist:        true,
	RuleFindingsHaveEvidence: true,
	RulePrerequisiteItems:    true,
	RuleApprovalRequired:     true,
	RuleManualOrDocument:     true,
	RuleAutoCheck:            true,
}

// Validate checks the rule's kind and per-kind parameters.
func (r *ValidationRule) Validate() error {
	if !validRuleKinds[r.Kind] {
		return fmt.Errorf("unknown validation rule kind: %s", r.Kind)
	}
	switch r.Kind {
	case RuleDocumentExists:
		if r.DocumentCategory == "" {
			return fmt.Errorf("%s requires a document category", r.Kind)
		}
		if r.MinCount < 1 {
			return fmt.Errorf("%s requires min_count >= 1", r.Kind)
		}
	case RuleDocumentsReviewed:
		if r.DocumentCategory == "" {
			return fmt.Errorf("%s requires a document category", r.Kind)
		}
	case RuleFindingsExist:
		if r.MinCount < 1 {
			return fmt.Errorf("%s requires min_count >= 1", r.Kind)
		}
	case RulePrerequisiteItems:
		if len(r.PrerequisiteCodes) == 0 {
			return fmt.Errorf("%s requires at least one prerequisite code", r.Kind)
		}
	case RuleApprovalRequired:
		if len(r.ApproverRoles) == 0 {
			return fmt.Errorf("%s requires at least one approver role", r.Kind)
		}
	case RuleManualOrDocument:
		if !r.AllowManual && r.DocumentCategory == "" {
			return fmt.Errorf("%s requires a document category or allow_manual", r.Kind)
		}
	case RuleAutoCheck:
		if r.Condition != AutoCheckFindingsRecorded && r.Condition != AutoCheckAllCAPsSubmitted {
			return fmt.Errorf("%s has unknown condition: %s", r.Kind, r.Condition)
		}
	}
	return nil
}

// ParseValidationRule decodes a stored rule and rejects unknown variants.
func ParseValidationRule(raw []byte) (*ValidationRule, error) {
	var rule ValidationRule
	if err := json.Unmarshal(raw, &rule); err != nil {
		return nil, fmt.Errorf("failed to decode validation rule: %w", err)
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return &rule, nil
}

// RuleResult is the outcome of evaluating a validation rule against live
// evidentiary state. It is returned as data, never as an error, because a
// failed rule is an expected condition the UI has to render.
type RuleResult struct {
	Passed   bool   `json:"passed"`
	Reason   string `json:"reason"`
	Current  int    `json:"current"`
	Required int    `json:"required"`
}

// ChecklistItem belongs to exactly one review. The stored IsCompleted flag is
// a record of user action; the rule outcome is recomputed on every read.
type ChecklistItem struct {
	ID                    uint           `json:"id" db:"id"`
	ReviewID              uint           `json:"review_id" db:"review_id"`
	Phase                 string         `json:"phase" db:"phase"`
	Code                  string         `json:"code" db:"code"`
	Title                 string         `json:"title" db:"title"`
	Rule                  ValidationRule `json:"rule" db:"-"`
	RuleJSON              []byte         `json:"-" db:"rule"`
	IsCompleted           bool           `json:"is_completed" db:"is_completed"`
	CompletedBy           *uint          `json:"completed_by,omitempty" db:"completed_by"`
	CompletedAt           *time.Time     `json:"completed_at,omitempty" db:"completed_at"`
	IsOverridden          bool           `json:"is_overridden" db:"is_overridden"`
	OverrideJustification *string        `json:"override_justification,omitempty" db:"override_justification"`
	OverriddenBy          *uint          `json:"overridden_by,omitempty" db:"overridden_by"`
	OverriddenAt          *time.Time     `json:"overridden_at,omitempty" db:"overridden_at"`
	CreatedAt             time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at" db:"updated_at"`
}

// Satisfied reports whether the item counts towards phase gating: completed
// by a user or overridden by a coordinator.
func (i *ChecklistItem) Satisfied() bool {
	return i.IsCompleted || i.IsOverridden
}

// ChecklistTemplateItem defines one of the fourteen fixed checklist items
// instantiated for every review.
type ChecklistTemplateItem struct {
	Phase string
	Code  string
	Title string
	Rule  ValidationRule
}

// ChecklistTemplate is the fixed fourteen-item fieldwork checklist. Items are
// instantiated once per review at initialization and never added or removed
// afterwards.
var ChecklistTemplate = []ChecklistTemplateItem{
	{
		Phase: PhasePreVisit,
		Code:  "PV-01",
		Title: "Pre-visit request received",
		Rule:  ValidationRule{Kind: RuleDocumentExists, DocumentCategory: DocPreVisitRequest, MinCount: 1},
	},
	{
		Phase: PhasePreVisit,
		Code:  "PV-02",
		Title: "Self-assessment submitted by organization",
		Rule:  ValidationRule{Kind: RuleDocumentExists, DocumentCategory: DocSelfAssessment, MinCount: 1},
	},
	{
		Phase: PhasePreVisit,
		Code:  "PV-03",
		Title: "Self-assessment reviewed by team",
		Rule:  ValidationRule{Kind: RuleDocumentsReviewed, DocumentCategory: DocSelfAssessment},
	},
	{
		Phase: PhasePreVisit,
		Code:  "PV-04",
		Title: "Visit agenda agreed",
		Rule:  ValidationRule{Kind: RuleManualOrDocument, DocumentCategory: DocAgenda, AllowManual: true},
	},
	{
		Phase: PhasePreVisit,
		Code:  "PV-05",
		Title: "Pre-visit preparation complete",
		Rule:  ValidationRule{Kind: RulePrerequisiteItems, PrerequisiteCodes: []string{"PV-01", "PV-02", "PV-03"}},
	},
	{
		Phase: PhaseOnSite,
		Code:  "OS-01",
		Title: "Opening briefing held",
		Rule:  ValidationRule{Kind: RuleManualOrDocument, AllowManual: true},
	},
	{
		Phase: PhaseOnSite,
		Code:  "OS-02",
		Title: "Interview notes recorded",
		Rule:  ValidationRule{Kind: RuleDocumentExists, DocumentCategory: DocInterviewNotes, MinCount: 1},
	},
	{
		Phase: PhaseOnSite,
		Code:  "OS-03",
		Title: "Findings recorded",
		Rule:  ValidationRule{Kind: RuleAutoCheck, Condition: AutoCheckFindingsRecorded},
	},
	{
		Phase: PhaseOnSite,
		Code:  "OS-04",
		Title: "All findings supported by evidence",
		Rule:  ValidationRule{Kind: RuleFindingsHaveEvidence},
	},
	{
		Phase: PhaseOnSite,
		Code:  "OS-05",
		Title: "Closing briefing held",
		Rule:  ValidationRule{Kind: RuleManualOrDocument, AllowManual: true},
	},
	{
		Phase: PhasePostVisit,
		Code:  "PT-01",
		Title: "On-site results consolidated",
		Rule:  ValidationRule{Kind: RulePrerequisiteItems, PrerequisiteCodes: []string{"OS-03", "OS-04"}},
	},
	{
		Phase: PhasePostVisit,
		Code:  "PT-02",
		Title: "Draft report uploaded",
		Rule:  ValidationRule{Kind: RuleDocumentExists, DocumentCategory: DocDraftReport, MinCount: 1},
	},
	{
		Phase: PhasePostVisit,
		Code:  "PT-03",
		Title: "Draft report reviewed",
		Rule:  ValidationRule{Kind: RuleDocumentsReviewed, DocumentCategory: DocDraftReport},
	},
	{
		Phase: PhasePostVisit,
		Code:  "PT-04",
		Title: "Fieldwork sign-off",
		Rule:  ValidationRule{Kind: RuleApprovalRequired, ApproverRoles: []string{RoleTeamLead, RoleCoordinator}},
	},
}

// ValidateChecklistTemplate checks every template rule and verifies that
// PREREQUISITE_ITEMS references resolve to existing codes and form no cycle.
// It runs once at process start; a broken template is a programming error.
func ValidateChecklistTemplate(template []ChecklistTemplateItem) error {
	byCode := make(map[string]ChecklistTemplateItem, len(template))
	for _, item := range template {
		if _, dup := byCode[item.Code]; dup {
			return fmt.Errorf("duplicate checklist item code: %s", item.Code)
		}
		if err := item.Rule.Validate(); err != nil {
			return fmt.Errorf("item %s: %w", item.Code, err)
		}
		byCode[item.Code] = item
	}

	// Dangling references
	for _, item := range template {
		for _, code := range item.Rule.PrerequisiteCodes {
			if _, ok := byCode[code]; !ok {
				return fmt.Errorf("item %s references unknown prerequisite %s", item.Code, code)
			}
			if code == item.Code {
				return fmt.Errorf("item %s references itself", item.Code)
			}
		}
	}

	// Cycle detection over the prerequisite DAG (three-color DFS)
	const (
		white = 0
		grey  = 1
		black = 2
	)
	color := make(map[string]int, len(template))
	var visit func(code string) error
	visit = func(code string) error {
		switch color[code] {
		case grey:
			return fmt.Errorf("prerequisite cycle involving item %s", code)
		case black:
			return nil
		}
		color[code] = grey
		for _, dep := range byCode[code].Rule.PrerequisiteCodes {
			if err := visit(dep); err != nil {
				return err
			}
		}
		color[code] = black
		return nil
	}
	for _, item := range template {
		if err := visit(item.Code); err != nil {
			return err
		}
	}

	return nil
}

func init() {
	if err := ValidateChecklistTemplate(ChecklistTemplate); err != nil {
		panic(err)
	}
}

// ItemStatus pairs a checklist item with its freshly computed rule outcome
type ItemStatus struct {
	Item      ChecklistItem `json:"item"`
	Result    RuleResult    `json:"result"`
	Satisfied bool          `json:"satisfied"`
}

// PhaseProgress aggregates completion for one checklist phase
type PhaseProgress struct {
	Phase     string `json:"phase"`
	Total     int    `json:"total"`
	Satisfied int    `json:"satisfied"`
}

// CompletionStatus aggregates the whole checklist and gates the fieldwork
// phase transition
type CompletionStatus struct {
	ReviewID              uint            `json:"review_id"`
	Items                 []ItemStatus    `json:"items"`
	Phases                []PhaseProgress `json:"phases"`
	TotalItems            int             `json:"total_items"`
	SatisfiedItems        int             `json:"satisfied_items"`
	CanCompleteFieldwork  bool            `json:"can_complete_fieldwork"`
	Blockers              []string        `json:"blockers"`
}
