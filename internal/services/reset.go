package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/backpackr/backpackr-server/internal/models"
	"github.com/backpackr/backpackr-server/internal/repository"
	"github.com/backpackr/backpackr-server/pkg/utils"
)

var (
	// ErrInvalidResetToken covers unknown, expired and non-matching tokens.
	ErrInvalidResetToken = errors.New("invalid or expired reset token")
	// ErrTooManyAttempts signals an exhausted reset token; its fields have
	// been cleared and a new reset must be requested.
	ErrTooManyAttempts = errors.New("too many reset attempts")
	// ErrResetEmailFailed signals the reset mail could not be sent; the
	// pending reset was rolled back.
	ErrResetEmailFailed = errors.New("failed to send password reset email")
)

const (
	resetTokenLifetime = 15 * time.Minute
	maxResetAttempts   = 3
)

// ResetService drives the password-reset token lifecycle:
// NoResetPending → ResetPending → {Redeemed, Expired, Exhausted}.
type ResetService struct {
	store  PrincipalStore
	mailer Mailer
	logger *log.Logger
}

func NewResetService(store PrincipalStore, mailer Mailer, logger *log.Logger) *ResetService {
	return &ResetService{store: store, mailer: mailer, logger: logger}
}

// Request issues a reset token for the given email and mails it. An unknown
// email returns nil without any state change, so callers cannot distinguish
// registered from unregistered addresses.
func (s *ResetService) Request(ctx context.Context, kind models.Kind, email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}

	p, err := s.store.FindByEmail(ctx, kind, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}

	raw, hashed, err := utils.NewResetToken()
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}

	expires := time.Now().Add(resetTokenLifetime)
	p.PasswordResetToken = hashed
	p.PasswordResetExpires = &expires
	p.PasswordResetAttempts = 0
	if err := s.store.Update(ctx, p); err != nil {
		return err
	}

	if err := s.mailer.SendPasswordReset(ctx, p.Email, raw, kind); err != nil {
		s.logger.Printf("reset email to %s failed: %v", p.Email, err)
		// Roll back to NoResetPending so the dangling token can't be used.
		p.ClearResetFields()
		if uerr := s.store.Update(ctx, p); uerr != nil {
			s.logger.Printf("clear reset fields after send failure: %v", uerr)
		}
		return ErrResetEmailFailed
	}
	return nil
}

// Redeem exchanges a raw reset token for a new password. Expiry and the
// attempt budget are both enforced here, against whatever is currently
// stored.
func (s *ResetService) Redeem(ctx context.Context, kind models.Kind, rawToken, newPassword string) error {
	if rawToken == "" || newPassword == "" {
		return fmt.Errorf("%w: reset token and new password are required", ErrValidation)
	}
	if len(newPassword) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least 6 characters", ErrValidation)
	}

	p, err := s.store.FindByResetToken(ctx, kind, utils.HashResetToken(rawToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}

	if p.PasswordResetAttempts >= maxResetAttempts {
		// Exhausted: force-clear so even the correct token is dead.
		p.ClearResetFields()
		if uerr := s.store.Update(ctx, p); uerr != nil {
			s.logger.Printf("clear exhausted reset fields: %v", uerr)
		}
		return ErrTooManyAttempts
	}

	if !s.tokenValid(p, rawToken) {
		p.PasswordResetAttempts++
		if uerr := s.store.Update(ctx, p); uerr != nil {
			s.logger.Printf("record failed reset attempt: %v", uerr)
		}
		return ErrInvalidResetToken
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	p.Password = hash
	p.ClearResetFields()
	if err := s.store.Update(ctx, p); err != nil {
		return err
	}

	// Best effort; the password change stands even if this fails.
	if err := s.mailer.SendPasswordResetConfirmation(ctx, p.Email, kind); err != nil {
		s.logger.Printf("reset confirmation email to %s failed: %v", p.Email, err)
	}
	return nil
}

func (s *ResetService) tokenValid(p *models.Principal, rawToken string) bool {
	if p.PasswordResetToken == "" || p.PasswordResetExpires == nil {
		return false
	}
	if p.PasswordResetExpires.Before(time.Now()) {
		return false
	}
	if p.PasswordResetAttempts >= maxResetAttempts {
		return false
	}
	return p.PasswordResetToken == utils.HashResetToken(rawToken)
}
