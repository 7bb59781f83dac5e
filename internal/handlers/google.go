package handlers

import (
	"fmt"
	"log"
	"net/http"
	"net/url"

	"github.com/backpackr/backpackr-server/internal/models"
	"github.com/backpackr/backpackr-server/internal/services"
)

// GoogleHandler exposes the Google OAuth begin and callback endpoints.
type GoogleHandler struct {
	google    *services.GoogleService
	clientURL string
	logger    *log.Logger
}

func NewGoogleHandler(google *services.GoogleService, clientURL string, logger *log.Logger) *GoogleHandler {
	return &GoogleHandler{google: google, clientURL: clientURL, logger: logger}
}

// Begin returns the Google consent URL for the requested account kind.
func (h *GoogleHandler) Begin(w http.ResponseWriter, r *http.Request) {
	kind := models.ParseKind(r.URL.Query().Get("userType"))

	authURL, err := h.google.AuthURL(r.Context(), kind)
	if err != nil {
		h.logger.Printf("⚠️ Failed to build Google auth URL: %v", err)
		writeError(w, http.StatusInternalServerError, "Google sign-in is not available right now")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"authUrl": authURL,
	})
}

// Callback completes the OAuth flow. On any failure the browser is sent back
// to the client login page rather than shown a JSON error.
func (h *GoogleHandler) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")

	result, kind, err := h.google.Callback(r.Context(), code, state)
	if err != nil {
		h.logger.Printf("⚠️ Google callback failed: %v", err)
		http.Redirect(w, r, fmt.Sprintf("%s/auth/login/%s?error=google_auth_failed", h.clientURL, kind), http.StatusFound)
		return
	}

	redirect := fmt.Sprintf("%s/auth/callback?token=%s&userType=%s",
		h.clientURL, url.QueryEscape(result.Token), kind)
	http.Redirect(w, r, redirect, http.StatusFound)
}
