package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"ans-review/internal/service"
)

// Common error message constants shared across handlers
const (
	ErrMsgInvalidRequestBody = "Invalid request body"
	ErrMsgMethodNotAllowed   = "Method not allowed"
	ErrMsgUnauthorized       = "Unauthorized"
	ErrMsgInternalServer     = "Internal server error"
)

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := JSONResponse(w, payload); err != nil {
		w.Write([]byte(`{"error":"Internal server error"}`))
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithServiceError maps service sentinel errors onto HTTP status
// codes. Anything unrecognized is an internal error.
func respondWithServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "Resource not found")
	case errors.Is(err, service.ErrPermissionDenied):
		respondWithError(w, http.StatusForbidden, "Insufficient permissions")
	case errors.Is(err, service.ErrInvalidTransition):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidOverride):
		respondWithError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// requireMethod enforces the HTTP method; returns false after responding
// when it does not match.
func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		respondWithError(w, http.StatusMethodNotAllowed, ErrMsgMethodNotAllowed)
		return false
	}
	return true
}

// queryUint parses an unsigned integer query parameter
func queryUint(r *http.Request, name string) (uint, bool) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return 0, false
	}
	parsed, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(parsed), true
}

// queryUintOptional parses an optional unsigned integer query parameter,
// returning nil when absent
func queryUintOptional(r *http.Request, name string) *uint {
	if value, ok := queryUint(r, name); ok {
		return &value
	}
	return nil
}

func getIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}
