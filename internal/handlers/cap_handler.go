package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"ans-review/internal/middleware"
	"ans-review/internal/service"
)

// CAPHandler handles corrective action plan requests
type CAPHandler struct {
	capService *service.CAPService
}

// NewCAPHandler creates a new CAP handler
func NewCAPHandler(capService *service.CAPService) *CAPHandler {
	return &CAPHandler{capService: capService}
}

// CreateCAPRequest represents a plan creation request
type CreateCAPRequest struct {
	FindingID   uint       `json:"finding_id"`
	Description string     `json:"description"`
	AssignedTo  *uint      `json:"assigned_to,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// Create creates a corrective action plan for a finding
// @Summary Create corrective action plan
// @Description Create a plan for a finding; the due date defaults from the finding's severity when omitted
// @Tags CAPs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateCAPRequest true "Plan details"
// @Success 201 {object} models.CorrectiveActionPlan "Created plan"
// @Failure 404 {object} map[string]string "Finding not found"
// @Router /caps/create [post]
func (h *CAPHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	actorID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	var req CreateCAPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}
	if req.FindingID == 0 || req.Description == "" {
		respondWithError(w, http.StatusBadRequest, "finding_id and description are required")
		return
	}

	plan, err := h.capService.CreateForFinding(req.FindingID, req.Description, req.AssignedTo, req.DueDate, actorID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, plan)
}

// Get returns a plan with its milestones
// @Summary Get corrective action plan
// @Description Return a plan together with its milestones
// @Tags CAPs
// @Produce json
// @Security BearerAuth
// @Param id query int true "Plan ID"
// @Success 200 {object} models.CorrectiveActionPlan "Plan"
// @Failure 404 {object} map[string]string "Plan not found"
// @Router /caps/get [get]
func (h *CAPHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	planID, ok := queryUint(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "id is required")
		return
	}

	plan, err := h.capService.GetPlan(planID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, plan)
}

// TransitionRequest represents a plan status transition request
type TransitionRequest struct {
	PlanID uint   `json:"plan_id"`
	Status string `json:"status"`
}

// Transition moves a plan to a new status
// @Summary Transition plan status
// @Description Move a plan along its status graph; review-side transitions require a coordinating role
// @Tags CAPs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body TransitionRequest true "Target status"
// @Success 200 {object} models.CorrectiveActionPlan "Updated plan"
// @Failure 403 {object} map[string]string "Insufficient permissions"
// @Failure 409 {object} map[string]string "Invalid transition"
// @Router /caps/transition [post]
func (h *CAPHandler) Transition(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	actorID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	var req TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}
	if req.PlanID == 0 || req.Status == "" {
		respondWithError(w, http.StatusBadRequest, "plan_id and status are required")
		return
	}

	plan, err := h.capService.TransitionStatus(req.PlanID, req.Status, actorID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, plan)
}

// Deadline returns deadline classification for a plan
// @Summary Get plan deadline info
// @Description Return days remaining, urgency band and progress for a plan
// @Tags CAPs
// @Produce json
// @Security BearerAuth
// @Param id query int true "Plan ID"
// @Success 200 {object} models.DeadlineInfo "Deadline info"
// @Failure 404 {object} map[string]string "Plan not found"
// @Router /caps/deadline [get]
func (h *CAPHandler) Deadline(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	planID, ok := queryUint(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "id is required")
		return
	}

	info, err := h.capService.GetDeadlineInfo(planID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, info)
}

// Overdue lists plans past their due date
// @Summary List overdue plans
// @Description Return every trackable plan whose due date has passed
// @Tags CAPs
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.TrackedPlan "Overdue plans"
// @Router /caps/overdue [get]
func (h *CAPHandler) Overdue(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	plans, err := h.capService.GetOverduePlans()
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, plans)
}

// DueSoon lists plans approaching their due date
// @Summary List plans due soon
// @Description Return trackable plans due within the given number of days (default 7)
// @Tags CAPs
// @Produce json
// @Security BearerAuth
// @Param days query int false "Window in days"
// @Success 200 {array} models.TrackedPlan "Plans due soon"
// @Router /caps/due-soon [get]
func (h *CAPHandler) DueSoon(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	days := service.DueSoonWindowDays
	if v := queryUintOptional(r, "days"); v != nil {
		days = int(*v)
	}

	plans, err := h.capService.GetPlansDueWithin(days)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, plans)
}

// Statistics returns aggregate plan counts
// @Summary Get plan statistics
// @Description Return aggregate counts by status and urgency across all plans
// @Tags CAPs
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.CAPStatistics "Statistics"
// @Router /caps/statistics [get]
func (h *CAPHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	stats, err := h.capService.GetStatistics()
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, stats)
}

// AddMilestoneRequest represents a milestone creation request
type AddMilestoneRequest struct {
	PlanID     uint      `json:"plan_id"`
	Title      string    `json:"title"`
	TargetDate time.Time `json:"target_date"`
	SortOrder  int       `json:"sort_order"`
}

// AddMilestone adds a milestone to a plan
// @Summary Add milestone
// @Description Add an intermediate milestone to a plan; closed plans refuse new milestones
// @Tags CAPs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body AddMilestoneRequest true "Milestone details"
// @Success 201 {object} models.Milestone "Created milestone"
// @Failure 409 {object} map[string]string "Plan is closed"
// @Router /caps/milestones/add [post]
func (h *CAPHandler) AddMilestone(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	actorID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	var req AddMilestoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}
	if req.PlanID == 0 || req.Title == "" || req.TargetDate.IsZero() {
		respondWithError(w, http.StatusBadRequest, "plan_id, title and target_date are required")
		return
	}

	milestone, err := h.capService.AddMilestone(req.PlanID, req.Title, req.TargetDate, req.SortOrder, actorID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, milestone)
}
