package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/backpackr/backpackr-server/internal/models"
	"github.com/backpackr/backpackr-server/internal/repository"
	"github.com/backpackr/backpackr-server/pkg/utils"
)

var (
	// ErrInvalidCredentials signals a wrong email or password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrDuplicateEmail signals an email already registered for that kind.
	ErrDuplicateEmail = errors.New("account already exists with this email")
	// ErrDuplicateContact signals a contact number used by another account.
	ErrDuplicateContact = errors.New("contact number already registered")
	// ErrPendingApproval signals an agency that has not been approved yet.
	ErrPendingApproval = errors.New("account is pending approval from admin")
	// ErrValidation signals missing or malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound signals a principal that no longer exists.
	ErrNotFound = errors.New("account not found")
)

var emailRegex = regexp.MustCompile(`^\S+@\S+\.\S+$`)

const minPasswordLength = 6

// AuthService implements registration, login and profile completion for
// both principal kinds.
type AuthService struct {
	store  PrincipalStore
	tokens *TokenService
}

func NewAuthService(store PrincipalStore, tokens *TokenService) *AuthService {
	return &AuthService{store: store, tokens: tokens}
}

// LoginResult bundles the session token with the authenticated principal.
type LoginResult struct {
	Token     string
	Principal *models.Principal
}

// RegisterUserInput carries the traveler registration form.
type RegisterUserInput struct {
	Name     string
	Email    string
	Password string
}

// RegisterAgencyInput carries the agency registration form.
type RegisterAgencyInput struct {
	AgencyName    string
	Email         string
	Password      string
	ContactNumber string
}

// NormalizeEmail lowercases and trims an email, matching what is stored.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmailPassword(email, password string) error {
	if email == "" || password == "" {
		return fmt.Errorf("%w: email and password are required", ErrValidation)
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("%w: please enter a valid email", ErrValidation)
	}
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least 6 characters", ErrValidation)
	}
	return nil
}

// RegisterUser creates a traveler account and issues a session token, so the
// caller observes a single created+session result rather than a two-step.
// If token issuance fails the account still exists and the caller is told to
// log in manually (Token is empty, error is nil).
func (s *AuthService) RegisterUser(ctx context.Context, in RegisterUserInput) (LoginResult, error) {
	in.Email = NormalizeEmail(in.Email)
	if in.Name == "" {
		return LoginResult{}, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if err := validateEmailPassword(in.Email, in.Password); err != nil {
		return LoginResult{}, err
	}

	if _, err := s.store.FindByEmail(ctx, models.KindUser, in.Email); err == nil {
		return LoginResult{}, ErrDuplicateEmail
	} else if !errors.Is(err, repository.ErrNotFound) {
		return LoginResult{}, err
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return LoginResult{}, fmt.Errorf("hash password: %w", err)
	}

	p, err := s.store.Create(ctx, &models.Principal{
		Name:     in.Name,
		Email:    in.Email,
		Password: hash,
		Role:     models.KindUser,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return LoginResult{}, ErrDuplicateEmail
		}
		return LoginResult{}, err
	}

	token, err := s.tokens.Issue(p.ID.Hex(), p.Role)
	if err != nil {
		// Account exists; downgrade to "registered, log in manually".
		return LoginResult{Principal: p}, nil
	}
	return LoginResult{Token: token, Principal: p}, nil
}

// RegisterAgency creates an unapproved agency account. Agencies receive a
// token for profile completion but cannot log in until approved.
func (s *AuthService) RegisterAgency(ctx context.Context, in RegisterAgencyInput) (LoginResult, error) {
	in.Email = NormalizeEmail(in.Email)
	if in.AgencyName == "" {
		return LoginResult{}, fmt.Errorf("%w: agency name is required", ErrValidation)
	}
	if err := validateEmailPassword(in.Email, in.Password); err != nil {
		return LoginResult{}, err
	}

	if _, err := s.store.FindByEmail(ctx, models.KindAgency, in.Email); err == nil {
		return LoginResult{}, ErrDuplicateEmail
	} else if !errors.Is(err, repository.ErrNotFound) {
		return LoginResult{}, err
	}

	// Contact numbers are unique across both collections.
	if in.ContactNumber != "" {
		for _, kind := range []models.Kind{models.KindAgency, models.KindUser} {
			if _, err := s.store.FindByContactNumber(ctx, kind, in.ContactNumber); err == nil {
				return LoginResult{}, ErrDuplicateContact
			} else if !errors.Is(err, repository.ErrNotFound) {
				return LoginResult{}, err
			}
		}
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return LoginResult{}, fmt.Errorf("hash password: %w", err)
	}

	p, err := s.store.Create(ctx, &models.Principal{
		AgencyName:    in.AgencyName,
		Email:         in.Email,
		Password:      hash,
		ContactNumber: in.ContactNumber,
		Role:          models.KindAgency,
		IsApproved:    false,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return LoginResult{}, ErrDuplicateEmail
		}
		return LoginResult{}, err
	}

	token, err := s.tokens.Issue(p.ID.Hex(), p.Role)
	if err != nil {
		return LoginResult{Principal: p}, nil
	}
	return LoginResult{Token: token, Principal: p}, nil
}

// Login authenticates a principal of the given kind. Unapproved agencies
// fail with ErrPendingApproval even when the credentials are correct.
func (s *AuthService) Login(ctx context.Context, kind models.Kind, email, password string) (LoginResult, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return LoginResult{}, fmt.Errorf("%w: email and password are required", ErrValidation)
	}

	p, err := s.store.FindByEmail(ctx, kind, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	// Fails closed when the stored hash is absent (Google-only account).
	ok, err := utils.VerifyPassword(password, p.Password)
	if err != nil || !ok {
		return LoginResult{}, ErrInvalidCredentials
	}

	if kind == models.KindAgency && !p.IsApproved {
		return LoginResult{}, ErrPendingApproval
	}

	token, err := s.tokens.Issue(p.ID.Hex(), p.Role)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}
	return LoginResult{Token: token, Principal: p}, nil
}

// GetPrincipal resolves {id, role} against the matching collection.
func (s *AuthService) GetPrincipal(ctx context.Context, kind models.Kind, id string) (*models.Principal, error) {
	p, err := s.store.FindByID(ctx, kind, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// CompleteUserProfileInput holds the mandatory traveler profile fields.
type CompleteUserProfileInput struct {
	Name          string
	ContactNumber string
	DateOfBirth   *time.Time
	Nationality   string
}

// CompleteUserProfile fills the traveler profile and marks it complete.
// Empty fields keep their stored values.
func (s *AuthService) CompleteUserProfile(ctx context.Context, id string, in CompleteUserProfileInput) (*models.Principal, error) {
	p, err := s.GetPrincipal(ctx, models.KindUser, id)
	if err != nil {
		return nil, err
	}

	if in.Name != "" {
		p.Name = in.Name
	}
	if in.ContactNumber != "" {
		p.ContactNumber = in.ContactNumber
	}
	if in.DateOfBirth != nil {
		p.DateOfBirth = in.DateOfBirth
	}
	if in.Nationality != "" {
		p.Nationality = in.Nationality
	}
	p.ProfileCompleted = true

	if err := s.store.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// CompleteAgencyProfileInput holds the mandatory agency profile fields.
type CompleteAgencyProfileInput struct {
	AgencyName    string
	ContactNumber string
	LicenseNumber string
	Address       string
	Description   string
}

// CompleteAgencyProfile fills the agency profile and marks it complete.
func (s *AuthService) CompleteAgencyProfile(ctx context.Context, id string, in CompleteAgencyProfileInput) (*models.Principal, error) {
	p, err := s.GetPrincipal(ctx, models.KindAgency, id)
	if err != nil {
		return nil, err
	}

	if in.AgencyName != "" {
		p.AgencyName = in.AgencyName
	}
	if in.ContactNumber != "" {
		p.ContactNumber = in.ContactNumber
	}
	if in.LicenseNumber != "" {
		p.LicenseNumber = in.LicenseNumber
	}
	if in.Address != "" {
		p.Address = in.Address
	}
	if in.Description != "" {
		p.Description = in.Description
	}
	p.ProfileCompleted = true

	if err := s.store.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// AttachLicenseDocument stores the uploaded license document URL on an
// agency account.
func (s *AuthService) AttachLicenseDocument(ctx context.Context, id, url string) (*models.Principal, error) {
	p, err := s.GetPrincipal(ctx, models.KindAgency, id)
	if err != nil {
		return nil, err
	}
	p.LicenseDocument = url
	if err := s.store.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}
