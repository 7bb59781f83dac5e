package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/backpackr/backpackr-server/internal/models"
	"github.com/backpackr/backpackr-server/internal/services"
)

type contextKey string

// principalKey carries the resolved principal through the request context.
const principalKey contextKey = "principal"

// Authenticator is the session gate: it verifies bearer tokens and resolves
// the principal before any protected handler runs.
type Authenticator struct {
	tokens *services.TokenService
	store  services.PrincipalStore
}

func NewAuthenticator(tokens *services.TokenService, store services.PrincipalStore) *Authenticator {
	return &Authenticator{tokens: tokens, store: store}
}

// PrincipalFrom returns the principal attached by Authenticate, if any.
func PrincipalFrom(ctx context.Context) (*models.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*models.Principal)
	return p, ok
}

// Authenticate rejects requests without a valid bearer token, or whose
// principal no longer exists, with 401 before reaching the handler.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			unauthorized(w, "Please login to access this resource")
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))

		id, role, err := a.tokens.Verify(token)
		if err != nil {
			unauthorized(w, "Not authorized to access this route")
			return
		}

		p, err := a.store.FindByID(r.Context(), role, id)
		if err != nil {
			// Covers principals deleted after token issuance.
			unauthorized(w, "User not found with this token")
			return
		}
		p.Role = role

		ctx := context.WithValue(r.Context(), principalKey, p)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRoles rejects with 403 when the resolved principal's role is not in
// the allowed set. Approval gating stays in the agency-specific routes.
func RequireRoles(roles ...models.Kind) func(http.Handler) http.Handler {
	allowed := make(map[models.Kind]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				unauthorized(w, "Please login to access this resource")
				return
			}
			if !allowed[p.Role] {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				w.Write([]byte(`{"success":false,"message":"Role (` + string(p.Role) + `) is not allowed to access this resource"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"success":false,"message":"` + message + `"}`))
}
