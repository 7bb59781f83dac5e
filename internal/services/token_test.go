package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backpackr/backpackr-server/internal/models"
)

func TestTokenService_IssueAndVerify(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)

	token, err := svc.Issue("64f1b2c3d4e5f60718293a4b", models.KindAgency)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	id, role, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "64f1b2c3d4e5f60718293a4b", id)
	assert.Equal(t, models.KindAgency, role)
}

func TestTokenService_DefaultLifetime(t *testing.T) {
	svc := NewTokenService("test-secret", 0)
	assert.Equal(t, 7*24*time.Hour, svc.lifetime)
}

func TestTokenService_Expired(t *testing.T) {
	svc := &TokenService{secret: []byte("test-secret"), lifetime: -time.Hour}

	token, err := svc.Issue("64f1b2c3d4e5f60718293a4b", models.KindUser)
	require.NoError(t, err)

	_, _, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_Tampered(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)
	other := NewTokenService("another-secret", time.Hour)

	token, err := svc.Issue("64f1b2c3d4e5f60718293a4b", models.KindUser)
	require.NoError(t, err)

	_, _, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, _, err = svc.Verify(token + "x")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, _, err = svc.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_RejectsUnknownRole(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)

	token, err := svc.Issue("64f1b2c3d4e5f60718293a4b", models.Kind("admin"))
	require.NoError(t, err)

	_, _, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
