package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/backpackr/backpackr-server/internal/middleware"
	"github.com/backpackr/backpackr-server/internal/services"
)

// ProfileHandler covers the post-registration profile completion step for
// both account kinds.
type ProfileHandler struct {
	auth *services.AuthService
}

func NewProfileHandler(auth *services.AuthService) *ProfileHandler {
	return &ProfileHandler{auth: auth}
}

type CompleteUserProfileRequest struct {
	Name          string `json:"name"`
	ContactNumber string `json:"contactNumber"`
	DateOfBirth   string `json:"dateOfBirth"`
	Nationality   string `json:"nationality"`
}

type CompleteAgencyProfileRequest struct {
	AgencyName    string `json:"agencyName"`
	ContactNumber string `json:"contactNumber"`
	LicenseNumber string `json:"licenseNumber"`
	Address       string `json:"address"`
	Description   string `json:"description"`
}

// CompleteUser fills in the traveler profile fields and marks the profile
// completed. Omitted fields keep their stored values.
func (h *ProfileHandler) CompleteUser(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Please login to access this resource")
		return
	}

	var req CompleteUserProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	input := services.CompleteUserProfileInput{
		Name:          req.Name,
		ContactNumber: req.ContactNumber,
		Nationality:   req.Nationality,
	}
	if req.DateOfBirth != "" {
		dob, err := time.Parse("2006-01-02", req.DateOfBirth)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date of birth, expected YYYY-MM-DD")
			return
		}
		input.DateOfBirth = &dob
	}

	updated, err := h.auth.CompleteUserProfile(r.Context(), p.ID.Hex(), input)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{
		Success: true,
		Message: "Profile completed successfully",
		User:    updated.Public(),
	})
}

// CompleteAgency fills in the agency profile fields. Approval status is not
// touched here; only an admin can change it.
func (h *ProfileHandler) CompleteAgency(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Please login to access this resource")
		return
	}

	var req CompleteAgencyProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	updated, err := h.auth.CompleteAgencyProfile(r.Context(), p.ID.Hex(), services.CompleteAgencyProfileInput{
		AgencyName:    req.AgencyName,
		ContactNumber: req.ContactNumber,
		LicenseNumber: req.LicenseNumber,
		Address:       req.Address,
		Description:   req.Description,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{
		Success: true,
		Message: "Profile completed successfully",
		Agency:  updated.Public(),
	})
}
