// Package authapi talks to the account service: sign-up, login, profile
// management, password recovery and support contact. It also owns the local
// sign-in state that chat sessions are activated with.
package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nfrund/roomchat/internal/domain"
	"github.com/nfrund/roomchat/internal/domain/auth_errors"
)

const (
	// DefaultBaseURL is where the account service listens in development.
	DefaultBaseURL = "http://localhost:8085/api"

	defaultContactTimeout = 30 * time.Second
	maxResponseBytes      = 1 << 20
)

// APIError is a request the server refused. Err, when set, is the
// auth_errors sentinel the status maps to.
type APIError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s: %s (HTTP %d)", e.Op, msg, e.Status)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// envelope is the body shape of every response.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Token   string          `json:"token"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

// Session is the result of a successful sign-in or sign-up.
type Session struct {
	Token string
	User  domain.User
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// WithContactTimeout overrides the 30 second support contact timeout.
func WithContactTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.contactTimeout = d
	}
}

// Client is the HTTP client of the account service. Requests carry the
// stored bearer token; any 401 response clears the stored credentials.
type Client struct {
	baseURL        string
	http           *http.Client
	store          *CredentialStore
	validate       *requestValidator
	contactTimeout time.Duration
	logger         *slog.Logger

	unauthorized func()
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, store *CredentialStore, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &http.Client{},
		store:          store,
		validate:       newRequestValidator(),
		contactTimeout: defaultContactTimeout,
		logger:         slog.Default().With("component", "authapi"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Signup creates an account and signs it in.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (Session, error) {
	if err := c.check(&req); err != nil {
		return Session{}, err
	}
	env, err := c.do(ctx, "signup", http.MethodPost, "/users", req)
	if err != nil {
		return Session{}, err
	}
	return sessionFrom(env)
}

// Login signs in with email and password.
func (c *Client) Login(ctx context.Context, req LoginRequest) (Session, error) {
	if err := c.check(&req); err != nil {
		return Session{}, err
	}
	env, err := c.do(ctx, "login", http.MethodPost, "/users/login", req)
	if err != nil {
		return Session{}, err
	}
	return sessionFrom(env)
}

// Logout ends the server side session.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, "logout", http.MethodPost, "/users/logout", nil)
	return err
}

// CurrentUser fetches the signed-in user.
func (c *Client) CurrentUser(ctx context.Context) (domain.User, error) {
	env, err := c.do(ctx, "current user", http.MethodGet, "/users/me", nil)
	if err != nil {
		return domain.User{}, err
	}
	return userFrom(env)
}

// ForgotPassword asks for a reset link to be mailed.
func (c *Client) ForgotPassword(ctx context.Context, req ForgotPasswordRequest) error {
	if err := c.check(&req); err != nil {
		return err
	}
	_, err := c.do(ctx, "forgot password", http.MethodPost, "/users/forgot-password", req)
	return err
}

// ResetPassword sets a new password with a mailed token.
func (c *Client) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if err := c.check(&req); err != nil {
		return err
	}
	path := "/users/reset-password/" + url.PathEscape(req.Token)
	_, err := c.do(ctx, "reset password", http.MethodPost, path, req)
	return err
}

// UpdateUser changes the profile of user id and returns the updated user.
func (c *Client) UpdateUser(ctx context.Context, id string, req UpdateUserRequest) (domain.User, error) {
	if err := c.check(&req); err != nil {
		return domain.User{}, err
	}
	env, err := c.do(ctx, "update user", http.MethodPut, "/users/"+url.PathEscape(id), req)
	if err != nil {
		return domain.User{}, err
	}
	return userFrom(env)
}

// DeleteUser removes the account id.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	_, err := c.do(ctx, "delete user", http.MethodDelete, "/users/"+url.PathEscape(id), nil)
	return err
}

// ContactSupport sends a support message. It gives up after the contact
// timeout even when ctx allows longer.
func (c *Client) ContactSupport(ctx context.Context, req ContactRequest) error {
	if err := c.check(&req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.contactTimeout)
	defer cancel()
	_, err := c.do(ctx, "contact", http.MethodPost, "/contact", req)
	return err
}

func (c *Client) check(req normalizer) error {
	req.normalize()
	return c.validate.Validate(req)
}

func (c *Client) do(ctx context.Context, op, method, path string, body any) (envelope, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return envelope{}, fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return envelope{}, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token := c.store.Token(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return envelope{}, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return envelope{}, fmt.Errorf("%s: read response: %w", op, err)
	}
	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	// A refused login means wrong credentials, not an expired session.
	if resp.StatusCode == http.StatusUnauthorized && op != "login" && op != "signup" {
		c.signedOut(ctx)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return envelope{}, c.apiError(op, resp.StatusCode, env)
	}
	if decodeErr != nil {
		return envelope{}, fmt.Errorf("%s: decode response: %w", op, decodeErr)
	}
	if !env.Success {
		return envelope{}, c.apiError(op, resp.StatusCode, env)
	}
	return env, nil
}

// signedOut drops local credentials after the server rejected them.
func (c *Client) signedOut(ctx context.Context) {
	if err := c.store.Clear(ctx); err != nil {
		c.logger.Warn("Failed to clear stored credentials", "error", err)
	}
	if c.unauthorized != nil {
		c.unauthorized()
	}
}

func (c *Client) apiError(op string, status int, env envelope) *APIError {
	msg := env.Error
	if msg == "" {
		msg = env.Message
	}
	e := &APIError{Op: op, Status: status, Message: msg}
	switch {
	case op == "login" && (status == http.StatusUnauthorized || status == http.StatusBadRequest):
		e.Err = auth_errors.ErrInvalidCredentials
	case op == "signup" && status == http.StatusConflict:
		e.Err = auth_errors.ErrUserAlreadyExists
	case op == "reset password" && (status == http.StatusBadRequest || status == http.StatusNotFound):
		e.Err = auth_errors.ErrInvalidResetToken
	case status == http.StatusUnauthorized:
		e.Err = auth_errors.ErrUnauthorized
	}
	c.logger.Debug("Request refused", "op", op, "status", status, "message", msg)
	return e
}

func sessionFrom(env envelope) (Session, error) {
	user, err := userFrom(env)
	if err != nil {
		return Session{}, err
	}
	if env.Token == "" {
		return Session{}, errors.New("response carried no token")
	}
	return Session{Token: env.Token, User: user}, nil
}

func userFrom(env envelope) (domain.User, error) {
	var user domain.User
	if err := json.Unmarshal(env.Data, &user); err != nil {
		return domain.User{}, fmt.Errorf("decode user: %w", err)
	}
	return user, nil
}
