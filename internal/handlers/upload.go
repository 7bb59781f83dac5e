package handlers

import (
	"log"
	"net/http"

	"github.com/backpackr/backpackr-server/internal/middleware"
	"github.com/backpackr/backpackr-server/internal/services"
)

const maxLicenseSize = 10 << 20 // 10 MB

// UploadHandler accepts agency license documents and stores them in
// Cloudinary. The Cloudinary service is optional; when the credentials are
// missing the endpoint reports that uploads are disabled instead of
// crashing the rest of the API.
type UploadHandler struct {
	cloudinary *services.CloudinaryService
	auth       *services.AuthService
	logger     *log.Logger
}

func NewUploadHandler(cloudinary *services.CloudinaryService, auth *services.AuthService, logger *log.Logger) *UploadHandler {
	return &UploadHandler{cloudinary: cloudinary, auth: auth, logger: logger}
}

// License handles the multipart upload of an agency license document and
// records its URL on the agency account.
func (h *UploadHandler) License(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Please login to access this resource")
		return
	}

	if h.cloudinary == nil {
		writeError(w, http.StatusServiceUnavailable, "File uploads are not configured")
		return
	}

	if err := r.ParseMultipartForm(maxLicenseSize); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form or file too large")
		return
	}

	file, header, err := r.FormFile("license")
	if err != nil {
		writeError(w, http.StatusBadRequest, "License file is required")
		return
	}
	file.Close()

	url, err := h.cloudinary.UploadFileFromHeader(r.Context(), header, services.LicenseFolder)
	if err != nil {
		h.logger.Printf("⚠️ License upload failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to upload license document")
		return
	}

	updated, err := h.auth.AttachLicenseDocument(r.Context(), p.ID.Hex(), url)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{
		Success: true,
		Message: "License document uploaded successfully",
		Agency:  updated.Public(),
	})
}
