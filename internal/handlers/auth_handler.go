package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"ans-review/internal/auth"
	"ans-review/internal/middleware"
	"ans-review/internal/repository"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService *auth.Service
	userRepo    *repository.UserRepository
	auditMw     *middleware.AuditMiddleware
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *auth.Service, userRepo *repository.UserRepository, auditMw *middleware.AuditMiddleware) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		userRepo:    userRepo,
		auditMw:     auditMw,
	}
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates a user and issues a JWT
// @Summary Log in
// @Description Authenticate with email and password and receive a JWT carrying the user's roles
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} map[string]interface{} "Token and user details"
// @Failure 401 {object} map[string]string "Invalid credentials"
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}
	if req.Email == "" || req.Password == "" {
		respondWithError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := h.userRepo.GetByEmail(req.Email)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to look up user")
		return
	}
	if user == nil || !user.IsActive {
		respondWithError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if err := h.authService.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		_ = h.auditMw.LogAction(&user.ID, "user.login.failed", "users", "Invalid password", getIP(r), r.UserAgent())
		respondWithError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	roles, err := h.userRepo.GetUserRoleNames(user.ID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get user roles")
		return
	}

	token, err := h.authService.GenerateToken(user.ID, user.Email, roles)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	_ = h.userRepo.UpdateLastLogin(user.ID)
	_ = h.auditMw.LogAction(&user.ID, "user.login", "users", "User logged in", getIP(r), r.UserAgent())
	slog.Info("User logged in", "user_id", user.ID, "ip", getIP(r))

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user": map[string]interface{}{
			"id":         user.ID,
			"email":      user.Email,
			"first_name": user.FirstName,
			"last_name":  user.LastName,
			"roles":      roles,
		},
	})
}

// Me returns the authenticated user's profile
// @Summary Current user
// @Description Return the authenticated user's account and roles
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{} "User details"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Router /auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	user, err := h.userRepo.GetByID(userID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to look up user")
		return
	}
	if user == nil {
		respondWithError(w, http.StatusNotFound, "User not found")
		return
	}

	roles, err := h.userRepo.GetUserRoleNames(userID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get user roles")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"id":         user.ID,
		"email":      user.Email,
		"first_name": user.FirstName,
		"last_name":  user.LastName,
		"roles":      roles,
	})
}
