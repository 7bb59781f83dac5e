package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/backpackr/backpackr-server/internal/services"
)

// AuthResponse is the envelope shared by all auth endpoints. User and Agency
// carry the public principal view; only one is ever set.
type AuthResponse struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
	User    map[string]interface{} `json:"user,omitempty"`
	Agency  map[string]interface{} `json:"agency,omitempty"`
	Token   string                 `json:"token,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, AuthResponse{Success: false, Message: message})
}

// writeServiceError maps service sentinels onto the HTTP error taxonomy.
// Unexpected errors become a generic 500 without detail.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, services.ErrPendingApproval):
		writeError(w, http.StatusForbidden, "Your account is pending approval from admin")
	case errors.Is(err, services.ErrDuplicateEmail):
		writeError(w, http.StatusBadRequest, "Account already exists with this email")
	case errors.Is(err, services.ErrDuplicateContact):
		writeError(w, http.StatusBadRequest, "This contact number is already registered. Please use a different number.")
	case errors.Is(err, services.ErrInvalidResetToken):
		writeError(w, http.StatusBadRequest, "Invalid or expired reset token")
	case errors.Is(err, services.ErrTooManyAttempts):
		writeError(w, http.StatusTooManyRequests, "Too many reset attempts. Please request a new password reset.")
	case errors.Is(err, services.ErrResetEmailFailed):
		writeError(w, http.StatusInternalServerError, "Failed to send password reset email. Please try again later.")
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, "Account not found")
	case errors.Is(err, services.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "Not authorized to access this route")
	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "Something went wrong. Please try again later.")
	}
}
