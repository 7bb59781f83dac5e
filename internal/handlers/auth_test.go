package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/backpackr/backpackr-server/internal/middleware"
	"github.com/backpackr/backpackr-server/internal/models"
	"github.com/backpackr/backpackr-server/internal/repository"
	"github.com/backpackr/backpackr-server/internal/services"
)

// memStore is a minimal in-memory services.PrincipalStore for router tests.
type memStore struct {
	mu         sync.Mutex
	principals map[models.Kind]map[string]*models.Principal
}

func newMemStore() *memStore {
	return &memStore{principals: map[models.Kind]map[string]*models.Principal{
		models.KindUser:   {},
		models.KindAgency: {},
	}}
}

func (m *memStore) FindByEmail(ctx context.Context, kind models.Kind, email string) (*models.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.principals[kind] {
		if p.Email == email {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) FindByID(ctx context.Context, kind models.Kind, id string) (*models.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.principals[kind][id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) FindByResetToken(ctx context.Context, kind models.Kind, tokenHash string) (*models.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for _, p := range m.principals[kind] {
		if p.PasswordResetToken == tokenHash && p.PasswordResetExpires != nil && p.PasswordResetExpires.After(now) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) FindByContactNumber(ctx context.Context, kind models.Kind, contact string) (*models.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.principals[kind] {
		if p.ContactNumber != "" && p.ContactNumber == contact {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) Create(ctx context.Context, p *models.Principal) (*models.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.principals[p.Role] {
		if existing.Email == p.Email {
			return nil, repository.ErrDuplicate
		}
	}
	p.ID = primitive.NewObjectID()
	cp := *p
	m.principals[p.Role][p.ID.Hex()] = &cp
	return p, nil
}

func (m *memStore) Update(ctx context.Context, p *models.Principal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.principals[p.Role][p.ID.Hex()]; !ok {
		return repository.ErrNotFound
	}
	cp := *p
	m.principals[p.Role][p.ID.Hex()] = &cp
	return nil
}

// recordingMailer captures the raw token instead of sending mail.
type recordingMailer struct {
	mu     sync.Mutex
	tokens []string
}

func (m *recordingMailer) SendPasswordReset(ctx context.Context, email, rawToken string, kind models.Kind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = append(m.tokens, rawToken)
	return nil
}

func (m *recordingMailer) SendPasswordResetConfirmation(ctx context.Context, email string, kind models.Kind) error {
	return nil
}

func newAuthRouter(t *testing.T) (*chi.Mux, *memStore, *recordingMailer) {
	t.Helper()
	store := newMemStore()
	mailer := &recordingMailer{}
	logger := log.New(&bytes.Buffer{}, "", 0)

	tokens := services.NewTokenService("test-secret", time.Hour)
	authSvc := services.NewAuthService(store, tokens)
	resetSvc := services.NewResetService(store, mailer, logger)
	h := NewAuthHandler(authSvc, resetSvc)
	authn := middleware.NewAuthenticator(tokens, store)

	r := chi.NewRouter()
	r.Post("/api/auth/register", h.RegisterUser)
	r.Post("/api/auth/login", h.LoginUser)
	r.Post("/api/auth/agency/register", h.RegisterAgency)
	r.Post("/api/auth/agency/login", h.LoginAgency)
	r.Post("/api/auth/forgot-password", h.ForgotPassword)
	r.Post("/api/auth/reset-password", h.ResetPassword)
	r.With(authn.Authenticate).Get("/api/auth/me", h.Me)
	return r, store, mailer
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}, headers map[string]string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	decoded := map[string]interface{}{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestRegisterThenMe(t *testing.T) {
	r, _, _ := newAuthRouter(t)

	rec, body := doJSON(t, r, http.MethodPost, "/api/auth/register", map[string]string{
		"name": "Ana", "email": "ana@example.com", "password": "wanderlust",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, true, body["success"])

	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	user, _ := body["user"].(map[string]interface{})
	require.NotNil(t, user)
	assert.Equal(t, "ana@example.com", user["email"])
	assert.Equal(t, "user", user["role"])
	assert.Equal(t, false, user["profileCompleted"])
	assert.NotContains(t, user, "password")

	rec, body = doJSON(t, r, http.MethodGet, "/api/auth/me", nil, map[string]string{
		"Authorization": "Bearer " + token,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	data, _ := body["data"].(map[string]interface{})
	require.NotNil(t, data)
	assert.Equal(t, "ana@example.com", data["email"])
}

func TestRegisterDuplicate(t *testing.T) {
	r, _, _ := newAuthRouter(t)

	in := map[string]string{"name": "Ana", "email": "ana@example.com", "password": "wanderlust"}
	rec, _ := doJSON(t, r, http.MethodPost, "/api/auth/register", in, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, body := doJSON(t, r, http.MethodPost, "/api/auth/register", in, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["message"], "already exists")
}

func TestAgencyLoginPendingApproval(t *testing.T) {
	r, store, _ := newAuthRouter(t)

	rec, body := doJSON(t, r, http.MethodPost, "/api/auth/agency/register", map[string]string{
		"agencyName": "Trek Co", "email": "trek@example.com", "password": "agencypass",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	agency, _ := body["agency"].(map[string]interface{})
	require.NotNil(t, agency)
	assert.Equal(t, false, agency["isApproved"])

	login := map[string]string{"email": "trek@example.com", "password": "agencypass"}
	rec, body = doJSON(t, r, http.MethodPost, "/api/auth/agency/login", login, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, body["message"], "pending approval")

	// Approve out of band and retry.
	id, _ := agency["id"].(string)
	store.mu.Lock()
	store.principals[models.KindAgency][id].IsApproved = true
	store.mu.Unlock()

	rec, body = doJSON(t, r, http.MethodPost, "/api/auth/agency/login", login, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, body["token"])
}

func TestLoginWrongPassword(t *testing.T) {
	r, _, _ := newAuthRouter(t)

	doJSON(t, r, http.MethodPost, "/api/auth/register", map[string]string{
		"name": "Ana", "email": "ana@example.com", "password": "wanderlust",
	}, nil)

	rec, body := doJSON(t, r, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "ana@example.com", "password": "nope-nope",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, false, body["success"])
}

func TestForgotPasswordEnumerationSafe(t *testing.T) {
	r, _, _ := newAuthRouter(t)

	doJSON(t, r, http.MethodPost, "/api/auth/register", map[string]string{
		"name": "Ana", "email": "ana@example.com", "password": "wanderlust",
	}, nil)

	known, knownBody := doJSON(t, r, http.MethodPost, "/api/auth/forgot-password", map[string]string{
		"email": "ana@example.com", "userType": "user",
	}, nil)
	unknown, unknownBody := doJSON(t, r, http.MethodPost, "/api/auth/forgot-password", map[string]string{
		"email": "ghost@example.com", "userType": "user",
	}, nil)

	assert.Equal(t, http.StatusOK, known.Code)
	assert.Equal(t, http.StatusOK, unknown.Code)
	assert.Equal(t, knownBody, unknownBody, "registered and unregistered emails must be indistinguishable")
}

func TestResetPasswordFlow(t *testing.T) {
	r, _, mailer := newAuthRouter(t)

	doJSON(t, r, http.MethodPost, "/api/auth/register", map[string]string{
		"name": "Ana", "email": "ana@example.com", "password": "wanderlust",
	}, nil)
	rec, _ := doJSON(t, r, http.MethodPost, "/api/auth/forgot-password", map[string]string{
		"email": "ana@example.com", "userType": "user",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, mailer.tokens, 1)

	rec, _ = doJSON(t, r, http.MethodPost, "/api/auth/reset-password", map[string]string{
		"token": mailer.tokens[0], "newPassword": "new-password-1", "userType": "user",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Old password dead, new one works.
	rec, _ = doJSON(t, r, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "ana@example.com", "password": "wanderlust",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec, _ = doJSON(t, r, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "ana@example.com", "password": "new-password-1",
	}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Replay of the redeemed token.
	rec, body := doJSON(t, r, http.MethodPost, "/api/auth/reset-password", map[string]string{
		"token": mailer.tokens[0], "newPassword": "new-password-2", "userType": "user",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["message"], "Invalid or expired")
}

func TestMeWithoutToken(t *testing.T) {
	r, _, _ := newAuthRouter(t)

	rec, body := doJSON(t, r, http.MethodGet, "/api/auth/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, false, body["success"])
}
