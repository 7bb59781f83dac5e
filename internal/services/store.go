package services

import (
	"context"

	"github.com/backpackr/backpackr-server/internal/models"
)

// PrincipalStore is the storage contract the auth services need. Implemented
// by repository.PrincipalRepo; tests use an in-memory fake.
type PrincipalStore interface {
	FindByEmail(ctx context.Context, kind models.Kind, email string) (*models.Principal, error)
	FindByID(ctx context.Context, kind models.Kind, id string) (*models.Principal, error)
	FindByResetToken(ctx context.Context, kind models.Kind, tokenHash string) (*models.Principal, error)
	FindByContactNumber(ctx context.Context, kind models.Kind, contact string) (*models.Principal, error)
	Create(ctx context.Context, p *models.Principal) (*models.Principal, error)
	Update(ctx context.Context, p *models.Principal) error
}

// Mailer sends the password-reset mails. Send failures on the request leg
// roll back the pending reset; confirmation failures are ignored.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, rawToken string, kind models.Kind) error
	SendPasswordResetConfirmation(ctx context.Context, email string, kind models.Kind) error
}
