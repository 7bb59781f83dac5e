// Package authclient is a small SDK for the Backpackr auth API. It mirrors
// the web client's auth context: it holds one session, persists it through a
// Store, and normalizes user and agency responses into a single Account
// shape.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Kinds accepted by the kind-parameterized calls.
const (
	KindUser   = "user"
	KindAgency = "agency"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}

// State is a snapshot of the client's session state.
type State struct {
	Account *Account
	Token   string
	Loading bool
	Err     error
}

// Client talks to the auth API and keeps the current session. All methods
// are safe for concurrent use. No method retries automatically; callers
// inspect the returned error and decide.
type Client struct {
	baseURL string
	httpc   *http.Client
	store   Store

	mu      sync.Mutex
	account *Account
	token   string
	loading bool
	err     error
}

// New builds a client and restores any persisted session from the store.
func New(baseURL string, store Store) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 15 * time.Second},
		store:   store,
		loading: true,
	}
	c.restore()
	return c
}

// restore loads the persisted token and account, if any.
func (c *Client) restore() {
	defer func() {
		c.mu.Lock()
		c.loading = false
		c.mu.Unlock()
	}()

	token, err := c.store.Get(keyToken)
	if err != nil {
		return
	}
	raw, err := c.store.Get(keyUser)
	if err != nil {
		return
	}
	var account Account
	if err := json.Unmarshal([]byte(raw), &account); err != nil {
		return
	}

	c.mu.Lock()
	c.token = token
	c.account = &account
	c.mu.Unlock()
}

// State returns a snapshot of the session.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{Account: c.account, Token: c.token, Loading: c.loading, Err: c.err}
}

// Token returns the current session token, empty when logged out.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

type envelope struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Token   string       `json:"token"`
	User    *wireAccount `json:"user"`
	Agency  *wireAccount `json:"agency"`
	Data    *wireAccount `json:"data"`
}

// accountFrom picks whichever shape the server filled in.
func (e *envelope) accountFrom() *wireAccount {
	switch {
	case e.User != nil:
		return e.User
	case e.Agency != nil:
		return e.Agency
	default:
		return e.Data
	}
}

// Login authenticates with email and password and persists the session.
func (c *Client) Login(ctx context.Context, email, password, kind string) (*Account, error) {
	path := "/api/auth/login"
	if kind == KindAgency {
		path = "/api/auth/agency/login"
	}

	env, err := c.post(ctx, path, map[string]string{"email": email, "password": password})
	if err != nil {
		c.setErr(err)
		return nil, err
	}
	wire := env.accountFrom()
	if env.Token == "" || wire == nil {
		err := &APIError{StatusCode: http.StatusOK, Message: "malformed login response"}
		c.setErr(err)
		return nil, err
	}

	account := normalize(*wire)
	if err := c.persist(env.Token, account); err != nil {
		c.setErr(err)
		return nil, err
	}
	return account, nil
}

// RegisterInput carries the registration fields for either kind. Name is
// used for travelers, AgencyName and ContactNumber for agencies.
type RegisterInput struct {
	Name          string
	AgencyName    string
	ContactNumber string
	Email         string
	Password      string
}

// RegisterResult reports registration as one workflow: whether the account
// was created, and whether a usable session came back with it. Travelers
// are logged in on the spot; agencies must wait for approval, so no session
// is kept for them.
type RegisterResult struct {
	Created            bool
	SessionEstablished bool
	Account            *Account
}

// Register creates an account of the given kind.
func (c *Client) Register(ctx context.Context, in RegisterInput, kind string) (RegisterResult, error) {
	var (
		path string
		body interface{}
	)
	if kind == KindAgency {
		path = "/api/auth/agency/register"
		body = map[string]string{
			"agencyName":    in.AgencyName,
			"email":         in.Email,
			"password":      in.Password,
			"contactNumber": in.ContactNumber,
		}
	} else {
		path = "/api/auth/register"
		body = map[string]string{
			"name":     in.Name,
			"email":    in.Email,
			"password": in.Password,
		}
	}

	env, err := c.post(ctx, path, body)
	if err != nil {
		c.setErr(err)
		return RegisterResult{}, err
	}

	result := RegisterResult{Created: true}
	if wire := env.accountFrom(); wire != nil {
		result.Account = normalize(*wire)
	}
	if kind != KindAgency && env.Token != "" && result.Account != nil {
		if err := c.persist(env.Token, result.Account); err != nil {
			c.setErr(err)
			return result, err
		}
		result.SessionEstablished = true
	}
	return result, nil
}

// ValidateExternalToken checks a token handed back by the OAuth redirect
// against the server and, when valid, adopts it as the session.
func (c *Client) ValidateExternalToken(ctx context.Context, token string) (*Account, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/auth/me", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	env, err := c.do(req)
	if err != nil {
		c.setErr(err)
		return nil, err
	}
	wire := env.accountFrom()
	if wire == nil {
		err := &APIError{StatusCode: http.StatusOK, Message: "malformed session response"}
		c.setErr(err)
		return nil, err
	}

	account := normalize(*wire)
	if err := c.persist(token, account); err != nil {
		c.setErr(err)
		return nil, err
	}
	return account, nil
}

// Logout clears the persisted session unconditionally.
func (c *Client) Logout() {
	c.store.Delete(keyToken)
	c.store.Delete(keyUser)

	c.mu.Lock()
	c.token = ""
	c.account = nil
	c.err = nil
	c.mu.Unlock()
}

func (c *Client) persist(token string, account *Account) error {
	raw, err := json.Marshal(account)
	if err != nil {
		return err
	}
	if err := c.store.Set(keyToken, token); err != nil {
		return err
	}
	if err := c.store.Set(keyUser, string(raw)); err != nil {
		return err
	}

	c.mu.Lock()
	c.token = token
	c.account = account
	c.err = nil
	c.mu.Unlock()
	return nil
}

func (c *Client) setErr(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

func (c *Client) post(ctx context.Context, path string, body interface{}) (*envelope, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*envelope, error) {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= 400 {
			return nil, &APIError{StatusCode: resp.StatusCode}
		}
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: env.Message}
	}
	return &env, nil
}
