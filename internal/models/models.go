package models

import (
	"time"
)

// User represents a user account in the system
type User struct {
	ID           uint       `json:"id" db:"id"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	FirstName    string     `json:"first_name" db:"first_name"`
	LastName     string     `json:"last_name" db:"last_name"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// Role represents a user role
type Role struct {
	ID          uint      `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Role name constants
const (
	RoleAdmin       = "admin"
	RoleCoordinator = "coordinator"
	RoleTeamLead    = "team_lead"
	RoleReviewer    = "reviewer"
	RoleFocalPoint  = "focal_point"
)

// Organization represents an air navigation service provider under review
type Organization struct {
	ID        uint      `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Code      string    `json:"code" db:"code"`
	Country   string    `json:"country" db:"country"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Review represents one peer review of an organization
type Review struct {
	ID             uint       `json:"id" db:"id"`
	OrganizationID uint       `json:"organization_id" db:"organization_id"`
	Status         string     `json:"status" db:"status"` // planning, fieldwork, report_drafting, report_review, completed, cancelled
	Phase          string     `json:"phase" db:"phase"`   // pre_visit, on_site, post_visit, reporting
	StartDate      *time.Time `json:"start_date,omitempty" db:"start_date"`
	EndDate        *time.Time `json:"end_date,omitempty" db:"end_date"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// Review phase constants
const (
	ReviewPhasePreVisit  = "pre_visit"
	ReviewPhaseOnSite    = "on_site"
	ReviewPhasePostVisit = "post_visit"
	ReviewPhaseReporting = "reporting"
)

// Review status constants
const (
	ReviewStatusPlanning       = "planning"
	ReviewStatusFieldwork      = "fieldwork"
	ReviewStatusReportDrafting = "report_drafting"
	ReviewStatusReportReview   = "report_review"
	ReviewStatusCompleted      = "completed"
	ReviewStatusCancelled      = "cancelled"
)

// ResultBearingReviewStatuses are review statuses under which review results
// exist and therefore count towards the recent-review cooldown.
var ResultBearingReviewStatuses = []string{
	ReviewStatusCompleted,
	ReviewStatusReportDrafting,
	ReviewStatusReportReview,
}

// ReviewerProfile represents a reviewer as seen by the conflict engine.
// Owned by the roster subsystem; the engine reads it, never writes it.
type ReviewerProfile struct {
	UserID             uint      `json:"user_id" db:"user_id"`
	HomeOrganizationID uint      `json:"home_organization_id" db:"home_organization_id"`
	Qualifications     *string   `json:"qualifications,omitempty" db:"qualifications"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// TeamAssignment links a reviewer to a review and its host organization
type TeamAssignment struct {
	ID             uint       `json:"id" db:"id"`
	ReviewID       uint       `json:"review_id" db:"review_id"`
	ReviewerUserID uint       `json:"reviewer_user_id" db:"reviewer_user_id"`
	OrganizationID uint       `json:"organization_id" db:"organization_id"`
	RoleOnTeam     string     `json:"role_on_team" db:"role_on_team"`
	ReviewStatus   string     `json:"review_status" db:"-"` // joined from reviews
	ReviewEndDate  *time.Time `json:"review_end_date,omitempty" db:"-"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// Conflict types
const (
	ConflictHomeOrganization   = "HOME_ORGANIZATION"
	ConflictFamilyRelationship = "FAMILY_RELATIONSHIP"
	ConflictFormerEmployee     = "FORMER_EMPLOYEE"
	ConflictBusinessInterest   = "BUSINESS_INTEREST"
	ConflictRecentReview       = "RECENT_REVIEW"
	ConflictOther              = "OTHER"
)

// Conflict severities
const (
	SeverityHardBlock   = "HARD_BLOCK"
	SeveritySoftWarning = "SOFT_WARNING"
)

// ConflictRecord represents a declared or auto-detected conflict of interest
// for a (reviewer, organization) pair. Auto-detected HOME_ORGANIZATION and
// RECENT_REVIEW records are the only ones the engine itself mutates; all
// others change only by explicit administrative action.
type ConflictRecord struct {
	ID             uint       `json:"id" db:"id"`
	ReviewerUserID uint       `json:"reviewer_user_id" db:"reviewer_user_id"`
	OrganizationID uint       `json:"organization_id" db:"organization_id"`
	Type           string     `json:"type" db:"type"`
	Severity       string     `json:"severity" db:"severity"`
	Details        string     `json:"details,omitempty" db:"details"`
	IsAutoDetected bool       `json:"is_auto_detected" db:"is_auto_detected"`
	StartDate      time.Time  `json:"start_date" db:"start_date"`
	EndDate        *time.Time `json:"end_date,omitempty" db:"end_date"`
	IsActive       bool       `json:"is_active" db:"is_active"`
	DeclaredBy     *uint      `json:"declared_by,omitempty" db:"declared_by"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// CurrentlyActive reports whether the record is active and inside its
// validity window at the given instant.
func (c *ConflictRecord) CurrentlyActive(now time.Time) bool {
	if !c.IsActive {
		return false
	}
	if c.StartDate.After(now) {
		return false
	}
	if c.EndDate != nil && c.EndDate.Before(now) {
		return false
	}
	return true
}

// ConflictOverride is a recorded, justified, time-bounded exception that lets
// a reviewer proceed despite a SOFT_WARNING conflict. Overrides are
// append-only: revocation flags the entry, it is never deleted.
type ConflictOverride struct {
	ID             uint       `json:"id" db:"id"`
	ReviewerUserID uint       `json:"reviewer_user_id" db:"reviewer_user_id"`
	OrganizationID uint       `json:"organization_id" db:"organization_id"`
	ReviewID       *uint      `json:"review_id,omitempty" db:"review_id"`
	Justification  string     `json:"justification" db:"justification"`
	ApprovedBy     uint       `json:"approved_by" db:"approved_by"`
	ApprovedAt     time.Time  `json:"approved_at" db:"approved_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	IsRevoked      bool       `json:"is_revoked" db:"is_revoked"`
	RevokedBy      *uint      `json:"revoked_by,omitempty" db:"revoked_by"`
	RevokedAt      *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// IsValid reports whether the override is in force at the given instant.
func (o *ConflictOverride) IsValid(now time.Time) bool {
	if o.IsRevoked {
		return false
	}
	if o.ExpiresAt != nil && !o.ExpiresAt.After(now) {
		return false
	}
	return true
}

// AppliesTo reports whether the override covers the given review. A nil
// ReviewID makes the override review-agnostic.
func (o *ConflictOverride) AppliesTo(reviewID *uint) bool {
	if o.ReviewID == nil {
		return true
	}
	return reviewID != nil && *o.ReviewID == *reviewID
}

// Team member eligibility statuses used in team conflict checks
const (
	MemberStatusBlocked        = "blocked"
	MemberStatusOverrideActive = "override_active"
	MemberStatusWarning        = "warning"
	MemberStatusEligible       = "eligible"
)

// ConflictCheckResult is the outcome of a single-reviewer conflict check
type ConflictCheckResult struct {
	ReviewerUserID         uint              `json:"reviewer_user_id"`
	OrganizationID         uint              `json:"organization_id"`
	HasConflict            bool              `json:"has_conflict"`
	HasHardBlock           bool              `json:"has_hard_block"`
	HasSoftWarning         bool              `json:"has_soft_warning"`
	CanProceedWithOverride bool              `json:"can_proceed_with_override"`
	Conflicts              []ConflictRecord  `json:"conflicts"`
	Override               *ConflictOverride `json:"override,omitempty"`
}

// TeamMemberResult classifies one team member in a team conflict check
type TeamMemberResult struct {
	ReviewerUserID uint                `json:"reviewer_user_id"`
	Status         string              `json:"status"` // blocked, override_active, warning, eligible
	Check          ConflictCheckResult `json:"check"`
}

// TeamCheckResult is the outcome of a team-level conflict check
type TeamCheckResult struct {
	OrganizationID uint               `json:"organization_id"`
	CanProceed     bool               `json:"can_proceed"`
	Members        []TeamMemberResult `json:"members"`
}

// COISyncResult summarizes one reconciliation run of auto-detected conflicts
type COISyncResult struct {
	ReviewerUserID uint `json:"reviewer_user_id"`
	Created        int  `json:"created"`
	Retired        int  `json:"retired"`
}

// Document categories
const (
	DocPreVisitRequest = "PRE_VISIT_REQUEST"
	DocSelfAssessment  = "SELF_ASSESSMENT"
	DocAgenda          = "AGENDA"
	DocRegulation      = "REGULATION"
	DocEvidence        = "EVIDENCE"
	DocInterviewNotes  = "INTERVIEW_NOTES"
	DocDraftReport     = "DRAFT_REPORT"
	DocFinalReport     = "FINAL_REPORT"
	DocOther           = "OTHER"
)

// Document statuses (six-stage workflow with a rejected branch)
const (
	DocStatusUploaded        = "UPLOADED"
	DocStatusUnderReview     = "UNDER_REVIEW"
	DocStatusReviewed        = "REVIEWED"
	DocStatusPendingApproval = "PENDING_APPROVAL"
	DocStatusApproved        = "APPROVED"
	DocStatusRejected        = "REJECTED"
)

// documentStatusRank orders document statuses along the workflow. REJECTED
// ranks below UPLOADED because a rejected document loops back to re-upload.
var documentStatusRank = map[string]int{
	DocStatusRejected:        0,
	DocStatusUploaded:        1,
	DocStatusUnderReview:     2,
	DocStatusReviewed:        3,
	DocStatusPendingApproval: 4,
	DocStatusApproved:        5,
}

// DocumentStatusAtLeast reports whether status has reached the given stage
// in the document workflow.
func DocumentStatusAtLeast(status, stage string) bool {
	return documentStatusRank[status] >= documentStatusRank[stage]
}

// Document represents an uploaded review document. Read-only to the engine.
type Document struct {
	ID         uint      `json:"id" db:"id"`
	ReviewID   uint      `json:"review_id" db:"review_id"`
	FindingID  *uint     `json:"finding_id,omitempty" db:"finding_id"`
	Category   string    `json:"category" db:"category"`
	Status     string    `json:"status" db:"status"`
	FileName   string    `json:"file_name" db:"file_name"`
	UploadedBy *uint     `json:"uploaded_by,omitempty" db:"uploaded_by"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// Finding severities
const (
	FindingCritical    = "CRITICAL"
	FindingMajor       = "MAJOR"
	FindingMinor       = "MINOR"
	FindingObservation = "OBSERVATION"
)

// Finding represents a review finding. Read-only to the engine.
type Finding struct {
	ID            uint      `json:"id" db:"id"`
	ReviewID      uint      `json:"review_id" db:"review_id"`
	Severity      string    `json:"severity" db:"severity"`
	Status        string    `json:"status" db:"status"` // open, cap_required, cap_in_progress, resolved, closed
	Title         string    `json:"title" db:"title"`
	Description   string    `json:"description,omitempty" db:"description"`
	EvidenceCount int       `json:"evidence_count" db:"-"` // joined from documents
	AssignedTo    *uint     `json:"assigned_to,omitempty" db:"assigned_to"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// AuditLog represents an audit log entry
type AuditLog struct {
	ID        uint      `json:"id" db:"id"`
	UserID    *uint     `json:"user_id,omitempty" db:"user_id"`
	Action    string    `json:"action" db:"action"`
	Resource  string    `json:"resource" db:"resource"`
	Details   string    `json:"details,omitempty" db:"details"`
	IPAddress string    `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent string    `json:"user_agent,omitempty" db:"user_agent"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
