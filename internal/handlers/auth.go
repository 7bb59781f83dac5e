package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/backpackr/backpackr-server/internal/middleware"
	"github.com/backpackr/backpackr-server/internal/models"
	"github.com/backpackr/backpackr-server/internal/services"
)

// AuthHandler exposes registration, login, the current-principal endpoint
// and the password-reset endpoints.
type AuthHandler struct {
	auth  *services.AuthService
	reset *services.ResetService
}

func NewAuthHandler(auth *services.AuthService, reset *services.ResetService) *AuthHandler {
	return &AuthHandler{auth: auth, reset: reset}
}

type RegisterUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterAgencyRequest struct {
	AgencyName    string `json:"agencyName"`
	Email         string `json:"email"`
	Password      string `json:"password"`
	ContactNumber string `json:"contactNumber"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ForgotPasswordRequest struct {
	Email    string `json:"email"`
	UserType string `json:"userType"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
	UserType    string `json:"userType"`
}

// RegisterUser handles traveler registration with immediate session.
func (h *AuthHandler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req RegisterUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.auth.RegisterUser(r.Context(), services.RegisterUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	message := "User registered successfully"
	if result.Token == "" {
		// Account created but session could not be established.
		message = "Registration successful! Please log in."
	}
	writeJSON(w, http.StatusCreated, AuthResponse{
		Success: true,
		Message: message,
		Token:   result.Token,
		User:    result.Principal.Public(),
	})
}

// LoginUser handles traveler login.
func (h *AuthHandler) LoginUser(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, models.KindUser)
}

// RegisterAgency handles agency registration; accounts start unapproved.
func (h *AuthHandler) RegisterAgency(w http.ResponseWriter, r *http.Request) {
	var req RegisterAgencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.auth.RegisterAgency(r.Context(), services.RegisterAgencyInput{
		AgencyName:    req.AgencyName,
		Email:         req.Email,
		Password:      req.Password,
		ContactNumber: req.ContactNumber,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{
		Success: true,
		Message: "Agency registered successfully. Waiting for admin approval.",
		Token:   result.Token,
		Agency:  result.Principal.Public(),
	})
}

// LoginAgency handles agency login; unapproved agencies are rejected with 403.
func (h *AuthHandler) LoginAgency(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, models.KindAgency)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request, kind models.Kind) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.auth.Login(r.Context(), kind, req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := AuthResponse{Success: true, Message: "Login successful", Token: result.Token}
	if kind == models.KindAgency {
		resp.Agency = result.Principal.Public()
	} else {
		resp.User = result.Principal.Public()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Me returns the principal resolved by the session gate.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Please login to access this resource")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    p.Public(),
	})
}

// ForgotPassword starts a password reset. The response is identical whether
// or not the email is registered.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "Please provide your email address")
		return
	}

	if err := h.reset.Request(r.Context(), models.ParseKind(req.UserType), req.Email); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{
		Success: true,
		Message: "If an account exists with this email, a password reset link has been sent.",
	})
}

// ResetPassword redeems a reset token for a new password.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.reset.Redeem(r.Context(), models.ParseKind(req.UserType), req.Token, req.NewPassword); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{
		Success: true,
		Message: "Password reset successfully. You can now sign in with your new password.",
	})
}
