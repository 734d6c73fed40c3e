package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"ans-review/internal/middleware"
	"ans-review/internal/service"
)

// ChecklistHandler handles review checklist requests
type ChecklistHandler struct {
	checklistService *service.ChecklistService
}

// NewChecklistHandler creates a new checklist handler
func NewChecklistHandler(checklistService *service.ChecklistService) *ChecklistHandler {
	return &ChecklistHandler{checklistService: checklistService}
}

// Initialize creates the checklist items for a review
// @Summary Initialize checklist
// @Description Create the full set of checklist items for a review from the built-in template
// @Tags Checklist
// @Produce json
// @Security BearerAuth
// @Param review_id query int true "Review ID"
// @Success 201 {array} models.ChecklistItem "Created items"
// @Failure 404 {object} map[string]string "Review not found"
// @Router /reviews/checklist/initialize [post]
func (h *ChecklistHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	actorID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}
	reviewID, ok := queryUint(r, "review_id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "review_id is required")
		return
	}

	items, err := h.checklistService.InitializeChecklist(reviewID, actorID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, items)
}

// Get returns the checklist with live rule evaluation
// @Summary Get checklist
// @Description Return every checklist item for a review with its current rule evaluation
// @Tags Checklist
// @Produce json
// @Security BearerAuth
// @Param review_id query int true "Review ID"
// @Success 200 {array} models.ItemStatus "Checklist items"
// @Failure 404 {object} map[string]string "Review not found"
// @Router /reviews/checklist [get]
func (h *ChecklistHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	reviewID, ok := queryUint(r, "review_id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "review_id is required")
		return
	}

	items, err := h.checklistService.GetChecklist(reviewID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, items)
}

// Status returns the per-phase completion summary
// @Summary Get completion status
// @Description Return per-phase progress, blockers and whether fieldwork can be completed
// @Tags Checklist
// @Produce json
// @Security BearerAuth
// @Param review_id query int true "Review ID"
// @Success 200 {object} models.CompletionStatus "Completion status"
// @Failure 404 {object} map[string]string "Review not found"
// @Router /reviews/checklist/status [get]
func (h *ChecklistHandler) Status(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	reviewID, ok := queryUint(r, "review_id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "review_id is required")
		return
	}

	status, err := h.checklistService.GetCompletionStatus(reviewID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, status)
}

// ToggleRequest identifies the checklist item to toggle
type ToggleRequest struct {
	ReviewID uint   `json:"review_id"`
	Code     string `json:"code"`
}

// Toggle flips a checklist item's completion state
// @Summary Toggle checklist item
// @Description Check or uncheck an item; checking is refused when the item's rule is not satisfied
// @Tags Checklist
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ToggleRequest true "Item to toggle"
// @Success 200 {object} service.ToggleOutcome "Toggle outcome"
// @Failure 404 {object} map[string]string "Item not found"
// @Router /reviews/checklist/toggle [post]
func (h *ChecklistHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	actorID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	var req ToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}
	if req.ReviewID == 0 || req.Code == "" {
		respondWithError(w, http.StatusBadRequest, "review_id and code are required")
		return
	}

	outcome, err := h.checklistService.ToggleItem(req.ReviewID, req.Code, actorID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	// A refused check is a normal outcome, not an error
	respondWithJSON(w, http.StatusOK, outcome)
}

// ItemOverrideRequest represents a checklist item override request
type ItemOverrideRequest struct {
	ReviewID      uint   `json:"review_id"`
	Code          string `json:"code"`
	Justification string `json:"justification"`
}

// Override marks an item as satisfied despite a failing rule
// @Summary Override checklist item
// @Description Mark an item as satisfied with a recorded justification
// @Tags Checklist
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ItemOverrideRequest true "Override details"
// @Success 200 {object} models.ChecklistItem "Updated item"
// @Failure 403 {object} map[string]string "Insufficient permissions"
// @Failure 422 {object} map[string]string "Invalid override"
// @Router /reviews/checklist/override [post]
func (h *ChecklistHandler) Override(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	actorID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	var req ItemOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}
	if req.ReviewID == 0 || req.Code == "" {
		respondWithError(w, http.StatusBadRequest, "review_id and code are required")
		return
	}

	item, err := h.checklistService.OverrideItem(req.ReviewID, req.Code, req.Justification, actorID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, item)
}

// RemoveOverride clears an item override
// @Summary Remove checklist item override
// @Description Clear a previously recorded override so the item's rule applies again
// @Tags Checklist
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ToggleRequest true "Item to clear"
// @Success 200 {object} models.ChecklistItem "Updated item"
// @Failure 403 {object} map[string]string "Insufficient permissions"
// @Failure 404 {object} map[string]string "Item not found"
// @Router /reviews/checklist/override/remove [post]
func (h *ChecklistHandler) RemoveOverride(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	actorID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	var req ToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}
	if req.ReviewID == 0 || req.Code == "" {
		respondWithError(w, http.StatusBadRequest, "review_id and code are required")
		return
	}

	item, err := h.checklistService.RemoveOverride(req.ReviewID, req.Code, actorID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, item)
}

// CompleteFieldwork attempts the fieldwork-to-reporting transition
// @Summary Complete fieldwork
// @Description Transition a review from fieldwork to report drafting once all gating items are satisfied
// @Tags Checklist
// @Produce json
// @Security BearerAuth
// @Param review_id query int true "Review ID"
// @Success 200 {object} models.CompletionStatus "Transition done"
// @Failure 409 {object} map[string]string "Review not in fieldwork"
// @Failure 422 {object} models.CompletionStatus "Gating items incomplete"
// @Router /reviews/complete-fieldwork [post]
func (h *ChecklistHandler) CompleteFieldwork(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	actorID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}
	reviewID, ok := queryUint(r, "review_id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "review_id is required")
		return
	}

	status, err := h.checklistService.CompleteFieldwork(reviewID, actorID)
	if err != nil {
		if errors.Is(err, service.ErrChecklistIncomplete) {
			respondWithJSON(w, http.StatusUnprocessableEntity, status)
			return
		}
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, status)
}
