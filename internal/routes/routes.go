package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/backpackr/backpackr-server/internal/handlers"
	"github.com/backpackr/backpackr-server/internal/middleware"
	"github.com/backpackr/backpackr-server/internal/models"
)

// Handlers bundles everything SetupRoutes mounts.
type Handlers struct {
	Auth    *handlers.AuthHandler
	Google  *handlers.GoogleHandler
	Profile *handlers.ProfileHandler
	Admin   *handlers.AdminHandler
	Upload  *handlers.UploadHandler
}

func SetupRoutes(r *chi.Mux, h Handlers, authn *middleware.Authenticator) {
	// Public auth routes
	r.Post("/api/auth/register", h.Auth.RegisterUser)
	r.Post("/api/auth/login", h.Auth.LoginUser)
	r.Post("/api/auth/agency/register", h.Auth.RegisterAgency)
	r.Post("/api/auth/agency/login", h.Auth.LoginAgency)
	r.Post("/api/auth/forgot-password", h.Auth.ForgotPassword)
	r.Post("/api/auth/reset-password", h.Auth.ResetPassword)

	// Google OAuth routes
	r.Get("/api/auth/google", h.Google.Begin)
	r.Get("/api/auth/google/callback", h.Google.Callback)

	// Routes behind the session gate
	r.Group(func(r chi.Router) {
		r.Use(authn.Authenticate)

		r.Get("/api/auth/me", h.Auth.Me)

		r.With(middleware.RequireRoles(models.KindUser)).
			Put("/api/auth/user/complete-profile", h.Profile.CompleteUser)

		r.With(middleware.RequireRoles(models.KindAgency)).
			Put("/api/auth/agency/complete-profile", h.Profile.CompleteAgency)
		r.With(middleware.RequireRoles(models.KindAgency)).
			Post("/api/auth/agency/license", h.Upload.License)
	})

	// Admin routes for the agency approval queue
	r.Get("/api/admin/agencies/pending", h.Admin.PendingAgencies)
	r.Get("/api/admin/agencies/approved", h.Admin.ApprovedAgencies)
	r.Put("/api/admin/agencies/approve", h.Admin.Approve)
	r.Delete("/api/admin/agencies/reject", h.Admin.Reject)
}
