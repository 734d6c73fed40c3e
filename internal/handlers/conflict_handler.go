package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"ans-review/internal/middleware"
	"ans-review/internal/models"
	"ans-review/internal/service"
)

// ConflictHandler handles conflict-of-interest requests
type ConflictHandler struct {
	eligibilityService *service.EligibilityService
}

// NewConflictHandler creates a new conflict handler
func NewConflictHandler(eligibilityService *service.EligibilityService) *ConflictHandler {
	return &ConflictHandler{eligibilityService: eligibilityService}
}

// CheckReviewer checks one reviewer against an organization
// @Summary Check reviewer conflicts
// @Description Run a conflict-of-interest check for a reviewer against an organization
// @Tags Conflicts
// @Produce json
// @Security BearerAuth
// @Param reviewer_id query int true "Reviewer user ID"
// @Param organization_id query int true "Organization ID"
// @Param review_id query int false "Review ID the check is scoped to"
// @Success 200 {object} models.ConflictCheckResult "Check result"
// @Failure 404 {object} map[string]string "Reviewer not found"
// @Router /conflicts/check [get]
func (h *ConflictHandler) CheckReviewer(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	reviewerID, ok := queryUint(r, "reviewer_id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "reviewer_id is required")
		return
	}
	orgID, ok := queryUint(r, "organization_id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "organization_id is required")
		return
	}
	reviewID := queryUintOptional(r, "review_id")

	result, err := h.eligibilityService.CheckReviewerConflicts(reviewerID, orgID, reviewID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// TeamCheckRequest represents a team conflict check request
type TeamCheckRequest struct {
	ReviewerIDs    []uint `json:"reviewer_ids"`
	OrganizationID uint   `json:"organization_id"`
	ReviewID       *uint  `json:"review_id,omitempty"`
}

// CheckTeam checks a proposed team against an organization
// @Summary Check team conflicts
// @Description Classify every proposed team member against the target organization
// @Tags Conflicts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body TeamCheckRequest true "Team composition"
// @Success 200 {object} models.TeamCheckResult "Team check result"
// @Router /conflicts/check-team [post]
func (h *ConflictHandler) CheckTeam(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req TeamCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}
	if len(req.ReviewerIDs) == 0 || req.OrganizationID == 0 {
		respondWithError(w, http.StatusBadRequest, "reviewer_ids and organization_id are required")
		return
	}

	result, err := h.eligibilityService.CheckTeamConflicts(req.ReviewerIDs, req.OrganizationID, req.ReviewID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// DeclareRequest represents a manual conflict declaration
type DeclareRequest struct {
	ReviewerUserID uint       `json:"reviewer_user_id"`
	OrganizationID uint       `json:"organization_id"`
	Type           string     `json:"type"`
	Severity       string     `json:"severity"`
	Details        string     `json:"details"`
	StartDate      *time.Time `json:"start_date,omitempty"`
	EndDate        *time.Time `json:"end_date,omitempty"`
}

// Declare records a manually declared conflict
// @Summary Declare a conflict
// @Description Record a manually declared conflict of interest for a reviewer
// @Tags Conflicts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body DeclareRequest true "Conflict details"
// @Success 201 {object} models.ConflictRecord "Created record"
// @Router /conflicts/declare [post]
func (h *ConflictHandler) Declare(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	actorID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	var req DeclareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}
	if req.ReviewerUserID == 0 || req.OrganizationID == 0 {
		respondWithError(w, http.StatusBadRequest, "reviewer_user_id and organization_id are required")
		return
	}

	record := &models.ConflictRecord{
		ReviewerUserID: req.ReviewerUserID,
		OrganizationID: req.OrganizationID,
		Type:           req.Type,
		Severity:       req.Severity,
		Details:        req.Details,
		EndDate:        req.EndDate,
	}
	if req.StartDate != nil {
		record.StartDate = *req.StartDate
	}

	if err := h.eligibilityService.DeclareConflict(record, actorID); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithJSON(w, http.StatusCreated, record)
}

// Sync reconciles auto-detected conflicts for a reviewer
// @Summary Sync auto-detected conflicts
// @Description Reconcile stored auto-detected conflict records with the reviewer's current profile and history
// @Tags Conflicts
// @Produce json
// @Security BearerAuth
// @Param reviewer_id query int true "Reviewer user ID"
// @Success 200 {object} models.COISyncResult "Sync result"
// @Failure 404 {object} map[string]string "Reviewer not found"
// @Router /conflicts/sync [post]
func (h *ConflictHandler) Sync(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	reviewerID, ok := queryUint(r, "reviewer_id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "reviewer_id is required")
		return
	}

	result, err := h.eligibilityService.SyncAutoDetectedConflicts(reviewerID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// OverrideRequest represents an override issuance request
type OverrideRequest struct {
	ReviewerUserID uint       `json:"reviewer_user_id"`
	OrganizationID uint       `json:"organization_id"`
	ReviewID       *uint      `json:"review_id,omitempty"`
	Justification  string     `json:"justification"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

// IssueOverride issues a conflict override
// @Summary Issue an override
// @Description Record a justified exception letting a reviewer proceed despite a soft-warning conflict
// @Tags Conflicts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body OverrideRequest true "Override details"
// @Success 201 {object} models.ConflictOverride "Created override"
// @Failure 403 {object} map[string]string "Insufficient permissions"
// @Failure 422 {object} map[string]string "Invalid override"
// @Router /conflicts/overrides/create [post]
func (h *ConflictHandler) IssueOverride(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	actorID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	var req OverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}
	if req.ReviewerUserID == 0 || req.OrganizationID == 0 {
		respondWithError(w, http.StatusBadRequest, "reviewer_user_id and organization_id are required")
		return
	}

	override, err := h.eligibilityService.IssueOverride(
		req.ReviewerUserID, req.OrganizationID, req.ReviewID,
		req.Justification, req.ExpiresAt, actorID,
	)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, override)
}

// RevokeOverrideRequest represents an override revocation request
type RevokeOverrideRequest struct {
	OverrideID uint `json:"override_id"`
}

// RevokeOverride revokes a conflict override
// @Summary Revoke an override
// @Description Flag an override as revoked; the ledger entry itself is kept
// @Tags Conflicts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body RevokeOverrideRequest true "Override to revoke"
// @Success 200 {object} map[string]string "Revoked"
// @Failure 403 {object} map[string]string "Insufficient permissions"
// @Failure 404 {object} map[string]string "Override not found"
// @Router /conflicts/overrides/revoke [post]
func (h *ConflictHandler) RevokeOverride(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	actorID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	var req RevokeOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}
	if req.OverrideID == 0 {
		respondWithError(w, http.StatusBadRequest, "override_id is required")
		return
	}

	if err := h.eligibilityService.RevokeOverride(req.OverrideID, actorID); err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Override revoked"})
}
