package authapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/roomchat/internal/domain"
	"github.com/nfrund/roomchat/internal/domain/auth_errors"
	"github.com/nfrund/roomchat/internal/storage"
)

var bob = domain.User{ID: "u-1", Username: "bob", Email: "bob@example.com"}

// accountService is an in-memory stand-in for the account API.
type accountService struct {
	mu       sync.Mutex
	requests []recordedRequest
	password string
	user     domain.User
	failNext int
	slow     bool
}

type recordedRequest struct {
	Method string
	Path   string
	Auth   string
	Body   map[string]any
}

func newAccountService() *accountService {
	return &accountService{password: "secret1", user: bob}
}

func (s *accountService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /users", func(w http.ResponseWriter, r *http.Request) {
		body := s.record(r)
		if body["email"] == s.user.Email {
			writeJSON(w, http.StatusConflict, map[string]any{"success": false, "error": "Email already registered"})
			return
		}
		u := domain.User{ID: "u-2", Username: body["username"].(string), Email: body["email"].(string)}
		writeJSON(w, http.StatusCreated, map[string]any{"success": true, "data": u, "token": "tok-new"})
	})
	mux.HandleFunc("POST /users/login", func(w http.ResponseWriter, r *http.Request) {
		body := s.record(r)
		if body["email"] != s.user.Email || body["password"] != s.password {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "Invalid email or password"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": s.user, "token": "tok-1"})
	})
	mux.HandleFunc("POST /users/logout", func(w http.ResponseWriter, r *http.Request) {
		s.record(r)
		if s.shouldFail() {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "boom"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	})
	mux.HandleFunc("GET /users/me", func(w http.ResponseWriter, r *http.Request) {
		s.record(r)
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "Token expired"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": s.user})
	})
	mux.HandleFunc("POST /users/forgot-password", func(w http.ResponseWriter, r *http.Request) {
		s.record(r)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "sent"})
	})
	mux.HandleFunc("POST /users/reset-password/{token}", func(w http.ResponseWriter, r *http.Request) {
		s.record(r)
		if r.PathValue("token") != "good-token" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "Token is invalid or has expired"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	})
	mux.HandleFunc("PUT /users/{id}", func(w http.ResponseWriter, r *http.Request) {
		body := s.record(r)
		s.mu.Lock()
		if name, ok := body["username"].(string); ok {
			s.user.Username = name
		}
		u := s.user
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": u})
	})
	mux.HandleFunc("DELETE /users/{id}", func(w http.ResponseWriter, r *http.Request) {
		s.record(r)
		if s.shouldFail() {
			writeJSON(w, http.StatusForbidden, map[string]any{"success": false, "error": "Not allowed"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	})
	mux.HandleFunc("POST /contact", func(w http.ResponseWriter, r *http.Request) {
		s.record(r)
		s.mu.Lock()
		slow := s.slow
		s.mu.Unlock()
		if slow {
			<-r.Context().Done()
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	})
	return http.StripPrefix("/api", mux)
}

func (s *accountService) record(r *http.Request) map[string]any {
	body := map[string]any{}
	_ = json.NewDecoder(r.Body).Decode(&body)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Auth:   r.Header.Get("Authorization"),
		Body:   body,
	})
	return body
}

func (s *accountService) failOnce() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = 1
}

func (s *accountService) setSlow() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slow = true
}

func (s *accountService) shouldFail() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext > 0 {
		s.failNext--
		return true
	}
	return false
}

func (s *accountService) Requests() []recordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]recordedRequest(nil), s.requests...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type fixture struct {
	svc     *accountService
	srv     *httptest.Server
	kv      storage.KV
	store   *CredentialStore
	client  *Client
	manager *Manager
}

func newFixture(t *testing.T, opts ...ClientOption) *fixture {
	t.Helper()
	svc := newAccountService()
	srv := httptest.NewServer(svc.handler())
	t.Cleanup(srv.Close)

	kv, err := storage.NewAferoStore(afero.NewMemMapFs(), "/auth")
	require.NoError(t, err)
	store := NewCredentialStore(kv)
	client := NewClient(srv.URL+"/api/", store, opts...)
	return &fixture{
		svc:     svc,
		srv:     srv,
		kv:      kv,
		store:   store,
		client:  client,
		manager: NewManager(client, store),
	}
}

func TestClient_LoginSendsCredentials(t *testing.T) {
	f := newFixture(t)

	s, err := f.client.Login(context.Background(), LoginRequest{Email: "  bob@example.com ", Password: "secret1"})

	require.NoError(t, err)
	assert.Equal(t, Session{Token: "tok-1", User: bob}, s)
	reqs := f.svc.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "bob@example.com", reqs[0].Body["email"])
	assert.Empty(t, reqs[0].Auth)
}

func TestClient_ValidatesBeforeSending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"login bad email", func() error {
			_, err := f.client.Login(ctx, LoginRequest{Email: "not-an-email", Password: "secret1"})
			return err
		}},
		{"login missing password", func() error {
			_, err := f.client.Login(ctx, LoginRequest{Email: "bob@example.com"})
			return err
		}},
		{"signup short name", func() error {
			_, err := f.client.Signup(ctx, SignupRequest{Username: " a ", Email: "a@example.com", Password: "secret1"})
			return err
		}},
		{"signup short password", func() error {
			_, err := f.client.Signup(ctx, SignupRequest{Username: "amy", Email: "a@example.com", Password: "12345"})
			return err
		}},
		{"reset without token", func() error {
			return f.client.ResetPassword(ctx, ResetPasswordRequest{NewPassword: "secret2"})
		}},
		{"contact short message", func() error {
			return f.client.ContactSupport(ctx, ContactRequest{Name: "Bob", Email: "bob@example.com", Message: "help"})
		}},
		{"update short password", func() error {
			_, err := f.client.UpdateUser(ctx, "u-1", UpdateUserRequest{Password: "123"})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.call(), ErrInvalidRequest)
		})
	}
	assert.Empty(t, f.svc.Requests())
}

func TestClient_MapsRefusals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.client.Login(ctx, LoginRequest{Email: "bob@example.com", Password: "wrong!"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Invalid email or password", apiErr.Message)
	assert.ErrorIs(t, err, auth_errors.ErrInvalidCredentials)

	_, err = f.client.Signup(ctx, SignupRequest{Username: "bobby", Email: "bob@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, auth_errors.ErrUserAlreadyExists)

	err = f.client.ResetPassword(ctx, ResetPasswordRequest{Token: "stale", NewPassword: "secret2"})
	assert.ErrorIs(t, err, auth_errors.ErrInvalidResetToken)
}

func TestClient_ResetPasswordPutsTokenInPath(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.client.ResetPassword(context.Background(), ResetPasswordRequest{Token: "good-token", NewPassword: "secret2"}))

	reqs := f.svc.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/users/reset-password/good-token", reqs[0].Path)
	assert.Equal(t, map[string]any{"newPassword": "secret2"}, reqs[0].Body)
}

func TestClient_UnauthorizedClearsCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Save(ctx, "tok-expired", bob))

	_, err := f.client.CurrentUser(ctx)

	assert.ErrorIs(t, err, auth_errors.ErrUnauthorized)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, "Bearer tok-expired", f.svc.Requests()[0].Auth)
	assert.Empty(t, f.store.Token(ctx))
	_, err = f.kv.Get(ctx, keyUser)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestClient_ContactTimeout(t *testing.T) {
	f := newFixture(t, WithContactTimeout(50*time.Millisecond))
	req := ContactRequest{Name: "Bob", Email: "bob@example.com", Message: "please help me out"}

	require.NoError(t, f.client.ContactSupport(context.Background(), req))

	f.svc.setSlow()
	start := time.Now()
	err := f.client.ContactSupport(context.Background(), req)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestManager_LoginPersistsAndRestores(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.manager.Login(ctx, "bob@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, bob, user)
	auth := f.manager.Context()
	assert.True(t, auth.IsAuthenticated)
	assert.Equal(t, "bob", auth.Username())

	restored := NewManager(NewClient(f.srv.URL+"/api", f.store), f.store).Restore(ctx)
	assert.True(t, restored.IsAuthenticated)
	assert.Equal(t, bob, *restored.User)

	me, err := f.client.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, bob, me)
}

func TestManager_RestoreClearsCorruptState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.kv.Set(ctx, keyToken, []byte("tok-1")))
	require.NoError(t, f.kv.Set(ctx, keyUser, []byte("{not json")))

	auth := f.manager.Restore(ctx)

	assert.False(t, auth.IsAuthenticated)
	_, err := f.kv.Get(ctx, keyToken)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestManager_RestoreWithoutState(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, domain.Anonymous, f.manager.Restore(context.Background()))
}

func TestManager_SignupSignsIn(t *testing.T) {
	f := newFixture(t)

	user, err := f.manager.Signup(context.Background(), "  amy  ", "amy@example.com", "secret1")

	require.NoError(t, err)
	assert.Equal(t, "amy", user.Username)
	assert.Equal(t, "tok-new", f.store.Token(context.Background()))
	assert.True(t, f.manager.Context().IsAuthenticated)
}

func TestManager_LogoutClearsStateWhenRequestFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.manager.Login(ctx, "bob@example.com", "secret1")
	require.NoError(t, err)
	signedOut := 0
	f.manager.OnSignOut(func() { signedOut++ })
	f.svc.failOnce()

	require.NoError(t, f.manager.Logout(ctx))

	assert.False(t, f.manager.Context().IsAuthenticated)
	assert.Empty(t, f.store.Token(ctx))
	assert.Equal(t, 1, signedOut)
}

func TestManager_WrongPasswordKeepsSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.manager.Login(ctx, "bob@example.com", "secret1")
	require.NoError(t, err)

	err = f.manager.VerifyPassword(ctx, "nope!!")

	assert.ErrorIs(t, err, auth_errors.ErrInvalidCredentials)
	assert.True(t, f.manager.Context().IsAuthenticated)
	assert.Equal(t, "tok-1", f.store.Token(ctx))
}

func TestManager_UpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.manager.Login(ctx, "bob@example.com", "secret1")
	require.NoError(t, err)

	_, err = f.manager.UpdateProfile(ctx, "bob", "wrong!", "newsecret")
	assert.ErrorIs(t, err, auth_errors.ErrInvalidCredentials)

	updated, err := f.manager.UpdateProfile(ctx, " robert ", "", "")
	require.NoError(t, err)
	assert.Equal(t, "robert", updated.Username)
	assert.Equal(t, "robert", f.manager.Context().Username())

	_, user, err := f.store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "robert", user.Username)

	reqs := f.svc.Requests()
	last := reqs[len(reqs)-1]
	assert.Equal(t, http.MethodPut, last.Method)
	assert.Equal(t, "/users/u-1", last.Path)
	assert.Equal(t, "Bearer tok-1", last.Auth)
	assert.Equal(t, map[string]any{"username": "robert"}, last.Body)
}

func TestManager_DeleteAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.manager.Login(ctx, "bob@example.com", "secret1")
	require.NoError(t, err)
	signedOut := 0
	f.manager.OnSignOut(func() { signedOut++ })

	f.svc.failOnce()
	require.Error(t, f.manager.DeleteAccount(ctx, "secret1"))
	assert.True(t, f.manager.Context().IsAuthenticated, "failed deletion keeps the user signed in")

	require.NoError(t, f.manager.DeleteAccount(ctx, "secret1"))
	assert.False(t, f.manager.Context().IsAuthenticated)
	assert.Equal(t, 1, signedOut)
}

func TestManager_RequiresSignIn(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.UpdateProfile(context.Background(), "x", "", "")
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
	assert.ErrorIs(t, f.manager.DeleteAccount(context.Background(), "secret1"), domain.ErrNotAuthenticated)
}
