package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/backpackr/backpackr-server/internal/models"
)

// ErrInvalidToken signals a malformed, tampered or expired session token.
var ErrInvalidToken = errors.New("invalid or expired token")

// TokenService issues and verifies the signed session tokens carrying
// principal id and role. Expiry is the only invalidation mechanism; there is
// no revocation list.
type TokenService struct {
	secret   []byte
	lifetime time.Duration
}

func NewTokenService(secret string, lifetime time.Duration) *TokenService {
	if lifetime <= 0 {
		lifetime = 7 * 24 * time.Hour
	}
	return &TokenService{secret: []byte(secret), lifetime: lifetime}
}

// Issue produces a signed token embedding {id, role}.
func (s *TokenService) Issue(principalID string, role models.Kind) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":   principalID,
		"role": string(role),
		"iat":  now.Unix(),
		"exp":  now.Add(s.lifetime).Unix(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a token and returns the embedded principal id and role.
func (s *TokenService) Verify(tokenString string) (string, models.Kind, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", ErrInvalidToken
	}
	id, ok := claims["id"].(string)
	if !ok || id == "" {
		return "", "", ErrInvalidToken
	}
	roleStr, ok := claims["role"].(string)
	if !ok {
		return "", "", ErrInvalidToken
	}
	role := models.Kind(roleStr)
	if !role.Valid() {
		return "", "", ErrInvalidToken
	}
	return id, role, nil
}
