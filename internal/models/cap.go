package models

import (
	"fmt"
	"time"
)

// CAP statuses (nine-state directed graph, terminal state CLOSED)
const (
	CAPStatusDraft       = "DRAFT"
	CAPStatusSubmitted   = "SUBMITTED"
	CAPStatusUnderReview = "UNDER_REVIEW"
	CAPStatusAccepted    = "ACCEPTED"
	CAPStatusRejected    = "REJECTED"
	CAPStatusInProgress  = "IN_PROGRESS"
	CAPStatusCompleted   = "COMPLETED"
	CAPStatusVerified    = "VERIFIED"
	CAPStatusClosed      = "CLOSED"
)

// capStatusTransitions defines the allowed corrective-action-plan status
// transitions. Any transition not listed here (other than a no-op) is
// rejected before mutation.
var capStatusTransitions = map[string][]string{
	CAPStatusDraft:       {CAPStatusSubmitted},
	CAPStatusSubmitted:   {CAPStatusUnderReview, CAPStatusDraft},
	CAPStatusUnderReview: {CAPStatusAccepted, CAPStatusRejected},
	CAPStatusRejected:    {CAPStatusDraft},
	CAPStatusAccepted:    {CAPStatusInProgress},
	CAPStatusInProgress:  {CAPStatusCompleted},
	CAPStatusCompleted:   {CAPStatusVerified, CAPStatusInProgress},
	CAPStatusVerified:    {CAPStatusClosed},
	CAPStatusClosed:      {},
}

// IsValidCAPTransition reports whether a corrective-action-plan status change
// is allowed by the transition graph.
func IsValidCAPTransition(from, to string) bool {
	allowed, ok := capStatusTransitions[from]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == to {
			return true
		}
	}
	return false
}

// TrackableCAPStatuses are statuses under which a plan still needs deadline
// tracking (everything except VERIFIED and CLOSED).
var TrackableCAPStatuses = []string{
	CAPStatusDraft,
	CAPStatusSubmitted,
	CAPStatusUnderReview,
	CAPStatusAccepted,
	CAPStatusRejected,
	CAPStatusInProgress,
	CAPStatusCompleted,
}

// capStatusProgress estimates completion per status, used when a plan has no
// milestones to derive progress from.
var capStatusProgress = map[string]int{
	CAPStatusDraft:       0,
	CAPStatusSubmitted:   10,
	CAPStatusUnderReview: 20,
	CAPStatusRejected:    10,
	CAPStatusAccepted:    25,
	CAPStatusInProgress:  50,
	CAPStatusCompleted:   90,
	CAPStatusVerified:    100,
	CAPStatusClosed:      100,
}

// CAPProgressEstimate returns the per-status completion estimate.
func CAPProgressEstimate(status string) int {
	return capStatusProgress[status]
}

// capDueDays suggests a remediation window in days from finding severity.
var capDueDays = map[string]int{
	FindingCritical:    30,
	FindingMajor:       60,
	FindingMinor:       90,
	FindingObservation: 180,
}

// SuggestedCAPDueDate computes the default due date for a plan created
// against a finding of the given severity. The suggestion may be overridden
// by a human at creation time.
func SuggestedCAPDueDate(severity string, from time.Time) time.Time {
	days, ok := capDueDays[severity]
	if !ok {
		days = capDueDays[FindingObservation]
	}
	return from.AddDate(0, 0, days)
}

// Milestone statuses
const (
	MilestonePending    = "PENDING"
	MilestoneInProgress = "IN_PROGRESS"
	MilestoneCompleted  = "COMPLETED"
	MilestoneOverdue    = "OVERDUE"
	MilestoneCancelled  = "CANCELLED"
)

// CorrectiveActionPlan tracks the remediation of a finding
type CorrectiveActionPlan struct {
	ID          uint       `json:"id" db:"id"`
	FindingID   uint       `json:"finding_id" db:"finding_id"`
	Status      string     `json:"status" db:"status"`
	Description string     `json:"description" db:"description"`
	DueDate     time.Time  `json:"due_date" db:"due_date"`
	AssignedTo  *uint      `json:"assigned_to,omitempty" db:"assigned_to"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty" db:"submitted_at"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty" db:"accepted_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	VerifiedAt  *time.Time `json:"verified_at,omitempty" db:"verified_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty" db:"closed_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
	Milestones  []Milestone `json:"milestones,omitempty" db:"-"` // loaded separately
}

// Milestone is one dated step inside a corrective action plan
type Milestone struct {
	ID          uint       `json:"id" db:"id"`
	PlanID      uint       `json:"plan_id" db:"plan_id"`
	Title       string     `json:"title" db:"title"`
	Status      string     `json:"status" db:"status"`
	TargetDate  time.Time  `json:"target_date" db:"target_date"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	SortOrder   int        `json:"sort_order" db:"sort_order"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// Urgency levels for deadline classification, highest first
const (
	UrgencyOverdue  = "overdue"
	UrgencyCritical = "critical"
	UrgencyWarning  = "warning"
	UrgencyNormal   = "normal"
)

// DeadlineInfo classifies a plan's deadline and milestone progress
type DeadlineInfo struct {
	DueDate         time.Time `json:"due_date"`
	DaysRemaining   int       `json:"days_remaining"`
	IsOverdue       bool      `json:"is_overdue"`
	IsDueToday      bool      `json:"is_due_today"`
	IsDueSoon       bool      `json:"is_due_soon"`
	UrgencyLevel    string    `json:"urgency_level"`
	PercentComplete int       `json:"percent_complete"`
}

// Escalation thresholds, matched in DetectEscalationEvents
const (
	ThresholdSevenDaysBefore = "DUE_IN_7_DAYS"
	ThresholdOneDayBefore    = "DUE_IN_1_DAY"
	ThresholdDueToday        = "DUE_TODAY"
	ThresholdOverdue         = "OVERDUE"
	ThresholdMilestoneLate   = "MILESTONE_OVERDUE"
)

// EscalationEvent is emitted when a plan crosses a deadline threshold or a
// milestone becomes overdue. The detector only emits; marking an event as
// dispatched is the collaborator's job.
type EscalationEvent struct {
	EventID          string    `json:"event_id"`
	Threshold        string    `json:"threshold"`
	PlanID           uint      `json:"plan_id"`
	MilestoneID      *uint     `json:"milestone_id,omitempty"`
	FindingID        uint      `json:"finding_id"`
	FindingTitle     string    `json:"finding_title"`
	FindingSeverity  string    `json:"finding_severity"`
	OrganizationID   uint      `json:"organization_id"`
	OrganizationName string    `json:"organization_name"`
	DueDate          time.Time `json:"due_date"`
	DaysRemaining    int       `json:"days_remaining"`
	Recipients       []uint    `json:"recipients"`
	DetectedAt       time.Time `json:"detected_at"`
}

// DedupeKey identifies the (plan/milestone, threshold) pair for idempotent
// delivery. Dispatching the same key twice on the same day is suppressed by
// the escalation log.
func (e *EscalationEvent) DedupeKey() string {
	if e.MilestoneID != nil {
		return fmt.Sprintf("milestone:%d:%s", *e.MilestoneID, e.Threshold)
	}
	return fmt.Sprintf("plan:%d:%s", e.PlanID, e.Threshold)
}

// TrackedPlan is a corrective action plan joined with its finding and
// organization context, as needed by the escalation detector.
type TrackedPlan struct {
	Plan             CorrectiveActionPlan
	FindingTitle     string
	FindingSeverity  string
	OrganizationID   uint
	OrganizationName string
}

// CAPStatistics aggregates plan counts for reporting
type CAPStatistics struct {
	Total          int            `json:"total"`
	ByStatus       map[string]int `json:"by_status"`
	ByUrgency      map[string]int `json:"by_urgency"`
	Overdue        int            `json:"overdue"`
	DueSoon        int            `json:"due_soon"`
	WithMilestones int            `json:"with_milestones"`
	Milestones     int            `json:"milestones_total"`
}
