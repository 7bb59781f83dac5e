package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/backpackr/backpackr-server/internal/models"
	"github.com/backpackr/backpackr-server/internal/repository"
)

// fakeStore is an in-memory PrincipalStore, keyed the same way the real
// repository is: one bucket per kind, unique email within a bucket.
type fakeStore struct {
	mu         sync.Mutex
	principals map[models.Kind]map[string]*models.Principal // kind -> id hex -> principal
	failUpdate error
}

func newFakeStore() *fakeStore {
	return &fakeStore{principals: map[models.Kind]map[string]*models.Principal{
		models.KindUser:   {},
		models.KindAgency: {},
	}}
}

func (f *fakeStore) FindByEmail(ctx context.Context, kind models.Kind, email string) (*models.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.principals[kind] {
		if p.Email == email {
			return clonePrincipal(p), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeStore) FindByID(ctx context.Context, kind models.Kind, id string) (*models.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.principals[kind][id]; ok {
		return clonePrincipal(p), nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeStore) FindByResetToken(ctx context.Context, kind models.Kind, tokenHash string) (*models.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	for _, p := range f.principals[kind] {
		if p.PasswordResetToken == tokenHash && p.PasswordResetExpires != nil && p.PasswordResetExpires.After(now) {
			return clonePrincipal(p), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeStore) FindByContactNumber(ctx context.Context, kind models.Kind, contact string) (*models.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.principals[kind] {
		if p.ContactNumber != "" && p.ContactNumber == contact {
			return clonePrincipal(p), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeStore) Create(ctx context.Context, p *models.Principal) (*models.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.principals[p.Role] {
		if existing.Email == p.Email {
			return nil, repository.ErrDuplicate
		}
	}
	p.ID = primitive.NewObjectID()
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	f.principals[p.Role][p.ID.Hex()] = clonePrincipal(p)
	return clonePrincipal(p), nil
}

func (f *fakeStore) Update(ctx context.Context, p *models.Principal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdate != nil {
		return f.failUpdate
	}
	if _, ok := f.principals[p.Role][p.ID.Hex()]; !ok {
		return repository.ErrNotFound
	}
	p.UpdatedAt = time.Now()
	f.principals[p.Role][p.ID.Hex()] = clonePrincipal(p)
	return nil
}

// stored returns the persisted copy, bypassing the clone, for assertions.
func (f *fakeStore) stored(kind models.Kind, id string) *models.Principal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.principals[kind][id]
}

func clonePrincipal(p *models.Principal) *models.Principal {
	cp := *p
	if p.PasswordResetExpires != nil {
		t := *p.PasswordResetExpires
		cp.PasswordResetExpires = &t
	}
	if p.DateOfBirth != nil {
		t := *p.DateOfBirth
		cp.DateOfBirth = &t
	}
	return &cp
}

// fakeMailer records sends and can be told to fail the reset leg.
type fakeMailer struct {
	mu            sync.Mutex
	resetSends    []string // raw tokens, in order
	confirmations []string // recipient emails
	failReset     error
}

func (m *fakeMailer) SendPasswordReset(ctx context.Context, email, rawToken string, kind models.Kind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failReset != nil {
		return m.failReset
	}
	m.resetSends = append(m.resetSends, rawToken)
	return nil
}

func (m *fakeMailer) SendPasswordResetConfirmation(ctx context.Context, email string, kind models.Kind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confirmations = append(m.confirmations, email)
	return nil
}

func (m *fakeMailer) lastResetToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.resetSends) == 0 {
		return ""
	}
	return m.resetSends[len(m.resetSends)-1]
}

// fakeStateStore is an in-memory single-use StateStore.
type fakeStateStore struct {
	mu     sync.Mutex
	next   int
	states map[string]models.Kind
}

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{states: map[string]models.Kind{}}
}

func (s *fakeStateStore) Issue(ctx context.Context, kind models.Kind) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	state := fmt.Sprintf("state-%d", s.next)
	s.states[state] = kind
	return state, nil
}

func (s *fakeStateStore) Consume(ctx context.Context, state string) (models.Kind, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kind, ok := s.states[state]
	if !ok {
		return "", ErrUnknownState
	}
	delete(s.states, state)
	return kind, nil
}

// fakeFetcher returns a canned identity or an error.
type fakeFetcher struct {
	identity *ExternalIdentity
	err      error
}

func (f *fakeFetcher) Fetch(ctx context.Context, code string) (*ExternalIdentity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.identity, nil
}

var errSMTPDown = errors.New("smtp connection refused")
