package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// AferoStore keeps one file per key under a root directory of an afero.Fs.
// With afero.NewOsFs it is durable; with afero.NewMemMapFs it lives only as
// long as the process, which is what tests and the "memory" backend use.
type AferoStore struct {
	fs   afero.Fs
	root string
}

// NewAferoStore creates a new AferoStore rooted at root.
func NewAferoStore(fs afero.Fs, root string) (*AferoStore, error) {
	if err := fs.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &AferoStore{fs: fs, root: root}, nil
}

// path escapes key so any string maps to a single file inside root.
func (s *AferoStore) path(key string) string {
	return filepath.Join(s.root, url.PathEscape(key))
}

// Get reads the value stored under key.
func (s *AferoStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", key, err)
	}
	return data, nil
}

// Set writes value to a temporary file and renames it over the old one, so a
// reader never sees a half-written value.
func (s *AferoStore) Set(ctx context.Context, key string, value []byte) error {
	dst := s.path(key)
	tmp := dst + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, value, 0o600); err != nil {
		return fmt.Errorf("write %q: %w", key, err)
	}
	if err := s.fs.Rename(tmp, dst); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("commit %q: %w", key, err)
	}
	return nil
}

// Delete removes the file for key.
func (s *AferoStore) Delete(ctx context.Context, key string) error {
	err := s.fs.Remove(s.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// Close is a no-op; files are closed after every operation.
func (s *AferoStore) Close() error {
	return nil
}
