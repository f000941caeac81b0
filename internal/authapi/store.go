package authapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nfrund/roomchat/internal/domain"
	"github.com/nfrund/roomchat/internal/storage"
)

const (
	keyToken = "token"
	keyUser  = "user"
)

// errNoCredentials means nothing is stored.
var errNoCredentials = errors.New("no stored credentials")

// CredentialStore persists the bearer token and the signed-in user.
type CredentialStore struct {
	kv storage.KV
}

// NewCredentialStore stores credentials in kv.
func NewCredentialStore(kv storage.KV) *CredentialStore {
	return &CredentialStore{kv: kv}
}

// Token returns the stored token, or "" when there is none.
func (s *CredentialStore) Token(ctx context.Context) string {
	token, err := s.kv.Get(ctx, keyToken)
	if err != nil {
		return ""
	}
	return string(token)
}

// Load returns the stored token and user. Both must be present.
func (s *CredentialStore) Load(ctx context.Context) (string, domain.User, error) {
	token, err := s.kv.Get(ctx, keyToken)
	if errors.Is(err, storage.ErrNotFound) {
		return "", domain.User{}, errNoCredentials
	}
	if err != nil {
		return "", domain.User{}, err
	}
	raw, err := s.kv.Get(ctx, keyUser)
	if errors.Is(err, storage.ErrNotFound) {
		return "", domain.User{}, errNoCredentials
	}
	if err != nil {
		return "", domain.User{}, err
	}
	var user domain.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return "", domain.User{}, fmt.Errorf("decode stored user: %w", err)
	}
	return string(token), user, nil
}

// Save stores a fresh sign-in.
func (s *CredentialStore) Save(ctx context.Context, token string, user domain.User) error {
	if err := s.kv.Set(ctx, keyToken, []byte(token)); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	return s.SaveUser(ctx, user)
}

// SaveUser replaces the stored user, keeping the token.
func (s *CredentialStore) SaveUser(ctx context.Context, user domain.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := s.kv.Set(ctx, keyUser, raw); err != nil {
		return fmt.Errorf("store user: %w", err)
	}
	return nil
}

// Clear removes both keys.
func (s *CredentialStore) Clear(ctx context.Context) error {
	return errors.Join(s.kv.Delete(ctx, keyToken), s.kv.Delete(ctx, keyUser))
}
