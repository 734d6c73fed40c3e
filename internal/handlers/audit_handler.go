package handlers

import (
	"net/http"

	"ans-review/internal/repository"
)

// AuditHandler handles audit log requests
type AuditHandler struct {
	auditRepo *repository.AuditRepository
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(auditRepo *repository.AuditRepository) *AuditHandler {
	return &AuditHandler{auditRepo: auditRepo}
}

// GetRecent returns the most recent audit log entries
// @Summary Get audit logs
// @Description Return the most recent audit log entries, newest first
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Maximum entries to return (default 100)"
// @Success 200 {array} models.AuditLog "Audit entries"
// @Failure 403 {object} map[string]string "Insufficient permissions"
// @Router /admin/audit-logs [get]
func (h *AuditHandler) GetRecent(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	limit := 100
	if v := queryUintOptional(r, "limit"); v != nil && *v > 0 && *v <= 1000 {
		limit = int(*v)
	}

	logs, err := h.auditRepo.GetRecent(limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, ErrMsgInternalServer)
		return
	}

	respondWithJSON(w, http.StatusOK, logs)
}
