package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/backpackr/backpackr-server/internal/models"
	"github.com/backpackr/backpackr-server/internal/repository"
	"github.com/backpackr/backpackr-server/pkg/utils"
)

// ErrExternalAuthFailed covers every provider-side failure: unreachable
// provider, invalid/expired code, malformed state, or a lost create race.
var ErrExternalAuthFailed = errors.New("failed to authenticate with Google")

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// ExternalIdentity is the provider-verified profile used for linking.
type ExternalIdentity struct {
	Subject string
	Email   string
	Name    string
}

// IdentityFetcher exchanges an authorization code for an external identity.
type IdentityFetcher interface {
	Fetch(ctx context.Context, code string) (*ExternalIdentity, error)
}

// googleFetcher exchanges against Google's OAuth2 endpoint.
type googleFetcher struct {
	cfg *oauth2.Config
}

func (g *googleFetcher) Fetch(ctx context.Context, code string) (*ExternalIdentity, error) {
	token, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	resp, err := g.cfg.Client(ctx, token).Get(googleUserInfoURL)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch userinfo: status %d", resp.StatusCode)
	}

	var info struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	if info.ID == "" || info.Email == "" {
		return nil, errors.New("userinfo missing id or email")
	}
	return &ExternalIdentity{Subject: info.ID, Email: info.Email, Name: info.Name}, nil
}

// GoogleService runs the OAuth linking workflow: state round-trip, code
// exchange, link-or-create, session token.
type GoogleService struct {
	store   PrincipalStore
	tokens  *TokenService
	states  StateStore
	fetcher IdentityFetcher
	cfg     *oauth2.Config
	logger  *log.Logger
}

// NewGoogleService wires the real Google endpoint.
func NewGoogleService(store PrincipalStore, tokens *TokenService, states StateStore, clientID, clientSecret, redirectURI string, logger *log.Logger) *GoogleService {
	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Endpoint:     google.Endpoint,
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
	}
	return &GoogleService{
		store:   store,
		tokens:  tokens,
		states:  states,
		fetcher: &googleFetcher{cfg: cfg},
		cfg:     cfg,
		logger:  logger,
	}
}

// NewGoogleServiceWithFetcher lets tests inject a fake provider.
func NewGoogleServiceWithFetcher(store PrincipalStore, tokens *TokenService, states StateStore, fetcher IdentityFetcher, logger *log.Logger) *GoogleService {
	return &GoogleService{store: store, tokens: tokens, states: states, fetcher: fetcher, logger: logger}
}

// AuthURL returns the provider authorization URL for the intended kind.
// The kind travels through an opaque single-use state nonce, not the URL.
func (s *GoogleService) AuthURL(ctx context.Context, kind models.Kind) (string, error) {
	state, err := s.states.Issue(ctx, kind)
	if err != nil {
		return "", err
	}
	if s.cfg == nil {
		return "", errors.New("google oauth is not configured")
	}
	return s.cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent")), nil
}

// CallbackResult reports what the client needs to route after the redirect:
// first-time external logins and incomplete profiles both go to the
// profile-completion step.
type CallbackResult struct {
	Token                 string
	Principal             *models.Principal
	IsFirstTimeGoogleUser bool
}

// Callback runs the whole linking workflow for a provider redirect.
// At most one principal write happens: either a create, or setting the
// google id on a previously password-registered account. The kind is
// returned even on failure so callers can route the browser back to the
// right login page; it defaults to the user kind when the state nonce is
// unknown.
func (s *GoogleService) Callback(ctx context.Context, code, state string) (*CallbackResult, models.Kind, error) {
	kind, err := s.states.Consume(ctx, state)
	if err != nil {
		s.logger.Printf("google callback state rejected: %v", err)
		return nil, models.KindUser, ErrExternalAuthFailed
	}
	if code == "" {
		return nil, kind, ErrExternalAuthFailed
	}

	identity, err := s.fetcher.Fetch(ctx, code)
	if err != nil {
		s.logger.Printf("google exchange failed: %v", err)
		return nil, kind, ErrExternalAuthFailed
	}

	email := NormalizeEmail(identity.Email)
	p, err := s.store.FindByEmail(ctx, kind, email)
	switch {
	case err == nil:
		// Existing account: link the external id once, keep password and
		// profile untouched so password login still works.
		if p.GoogleID == "" {
			p.GoogleID = identity.Subject
			p.IsVerified = true
			if uerr := s.store.Update(ctx, p); uerr != nil {
				s.logger.Printf("link google id: %v", uerr)
				return nil, kind, ErrExternalAuthFailed
			}
		}
		token, terr := s.tokens.Issue(p.ID.Hex(), p.Role)
		if terr != nil {
			return nil, kind, ErrExternalAuthFailed
		}
		return &CallbackResult{Token: token, Principal: p}, kind, nil

	case errors.Is(err, repository.ErrNotFound):
		placeholder, perr := utils.PlaceholderPassword()
		if perr != nil {
			return nil, kind, ErrExternalAuthFailed
		}
		hash, perr := utils.HashPassword(placeholder)
		if perr != nil {
			return nil, kind, ErrExternalAuthFailed
		}

		created := &models.Principal{
			Email:            email,
			Password:         hash,
			GoogleID:         identity.Subject,
			Role:             kind,
			IsVerified:       true,
			ProfileCompleted: false,
		}
		if kind == models.KindAgency {
			created.AgencyName = identity.Name
			created.IsApproved = false
		} else {
			created.Name = identity.Name
		}

		created, cerr := s.store.Create(ctx, created)
		if cerr != nil {
			// A concurrent callback may have won the unique-email race.
			s.logger.Printf("google create failed: %v", cerr)
			return nil, kind, ErrExternalAuthFailed
		}
		token, terr := s.tokens.Issue(created.ID.Hex(), created.Role)
		if terr != nil {
			return nil, kind, ErrExternalAuthFailed
		}
		return &CallbackResult{Token: token, Principal: created, IsFirstTimeGoogleUser: true}, kind, nil

	default:
		return nil, kind, ErrExternalAuthFailed
	}
}
