package authapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nfrund/roomchat/internal/domain"
	"github.com/nfrund/roomchat/internal/domain/auth_errors"
)

// Manager holds the local sign-in state. It is the only source of the
// domain.AuthContext handed to chat sessions.
type Manager struct {
	client *Client
	store  *CredentialStore
	logger *slog.Logger

	mu    sync.RWMutex
	user  *domain.User
	hooks []func()
}

// NewManager creates a manager in the signed-out state. Call Restore to pick
// up a previous sign-in.
func NewManager(client *Client, store *CredentialStore) *Manager {
	m := &Manager{
		client: client,
		store:  store,
		logger: slog.Default().With("component", "auth_manager"),
	}
	client.unauthorized = m.dropSession
	return m
}

// Restore loads a previous sign-in from storage without contacting the
// server. Unreadable stored state is cleared and reported as signed out.
func (m *Manager) Restore(ctx context.Context) domain.AuthContext {
	_, user, err := m.store.Load(ctx)
	switch {
	case errors.Is(err, errNoCredentials):
	case err != nil:
		m.logger.Warn("Discarding unreadable stored credentials", "error", err)
		if err := m.store.Clear(ctx); err != nil {
			m.logger.Warn("Failed to clear stored credentials", "error", err)
		}
	default:
		m.setUser(&user)
	}
	return m.Context()
}

// Context returns the current identity.
func (m *Manager) Context() domain.AuthContext {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return domain.Anonymous
	}
	u := *m.user
	return domain.AuthContext{User: &u, IsAuthenticated: true}
}

// OnSignOut registers f to run after logout, account deletion, or a rejected
// token.
func (m *Manager) OnSignOut(f func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, f)
}

// Login signs in and persists the session.
func (m *Manager) Login(ctx context.Context, email, password string) (domain.User, error) {
	s, err := m.client.Login(ctx, LoginRequest{Email: email, Password: password})
	if err != nil {
		return domain.User{}, err
	}
	return m.signedIn(ctx, s)
}

// Signup creates the account, signs it in and persists the session.
func (m *Manager) Signup(ctx context.Context, name, email, password string) (domain.User, error) {
	s, err := m.client.Signup(ctx, SignupRequest{Username: name, Email: email, Password: password})
	if err != nil {
		return domain.User{}, err
	}
	return m.signedIn(ctx, s)
}

func (m *Manager) signedIn(ctx context.Context, s Session) (domain.User, error) {
	if err := m.store.Save(ctx, s.Token, s.User); err != nil {
		return domain.User{}, err
	}
	m.setUser(&s.User)
	m.logger.Info("Signed in", "user_id", s.User.ID, "username", s.User.Username)
	return s.User, nil
}

// Logout ends the session. Local state is cleared even when the server call
// fails; that failure is only logged.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.client.Logout(ctx); err != nil {
		m.logger.Warn("Logout request failed", "error", err)
	}
	if err := m.store.Clear(ctx); err != nil {
		m.logger.Warn("Failed to clear stored credentials", "error", err)
	}
	m.dropSession()
	return nil
}

// VerifyPassword checks password against the signed-in account by signing
// in again. The new token is discarded.
func (m *Manager) VerifyPassword(ctx context.Context, password string) error {
	user, err := m.current()
	if err != nil {
		return err
	}
	if _, err := m.client.Login(ctx, LoginRequest{Email: user.Email, Password: password}); err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	return nil
}

// UpdateProfile changes the username and, when newPassword is set, the
// password. A password change requires the current password.
func (m *Manager) UpdateProfile(ctx context.Context, username, currentPassword, newPassword string) (domain.User, error) {
	user, err := m.current()
	if err != nil {
		return domain.User{}, err
	}
	req := UpdateUserRequest{Username: username, Password: newPassword}
	req.normalize()
	if req.Username == user.Username {
		req.Username = ""
	}
	if req.Password != "" {
		if err := m.VerifyPassword(ctx, currentPassword); err != nil {
			return domain.User{}, err
		}
	}
	updated, err := m.client.UpdateUser(ctx, user.ID, req)
	if err != nil {
		return domain.User{}, err
	}
	if err := m.store.SaveUser(ctx, updated); err != nil {
		return domain.User{}, err
	}
	m.setUser(&updated)
	return updated, nil
}

// DeleteAccount verifies password, deletes the account and logs out. When
// deletion fails the user stays signed in.
func (m *Manager) DeleteAccount(ctx context.Context, password string) error {
	user, err := m.current()
	if err != nil {
		return err
	}
	if err := m.VerifyPassword(ctx, password); err != nil {
		return err
	}
	if err := m.client.DeleteUser(ctx, user.ID); err != nil {
		return err
	}
	m.logger.Info("Account deleted", "user_id", user.ID)
	return m.Logout(ctx)
}

func (m *Manager) current() (domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return domain.User{}, domain.ErrNotAuthenticated
	}
	return *m.user, nil
}

func (m *Manager) setUser(u *domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = u
}

// dropSession forgets the in-memory user and runs the sign-out hooks when a
// user was signed in.
func (m *Manager) dropSession() {
	m.mu.Lock()
	wasSignedIn := m.user != nil
	m.user = nil
	hooks := append([]func(){}, m.hooks...)
	m.mu.Unlock()

	if !wasSignedIn {
		return
	}
	for _, f := range hooks {
		f()
	}
}

// IsUnauthorized reports whether err means the stored session was rejected.
func IsUnauthorized(err error) bool {
	return errors.Is(err, auth_errors.ErrUnauthorized)
}
