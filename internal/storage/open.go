package storage

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendPebble = "pebble"
	BackendMemory = "memory"
)

// Options selects and sizes a KV backend.
type Options struct {
	Backend       string
	Dir           string
	MaxValueBytes int
}

// Open builds the configured backend, wrapped with the value size limit.
func Open(opts Options) (KV, error) {
	var (
		kv  KV
		err error
	)
	switch opts.Backend {
	case BackendFile, "":
		kv, err = NewAferoStore(afero.NewOsFs(), filepath.Join(opts.Dir, "kv"))
	case BackendPebble:
		kv, err = OpenPebbleStore(filepath.Join(opts.Dir, "pebble"), nil)
	case BackendMemory:
		kv, err = NewAferoStore(afero.NewMemMapFs(), "/kv")
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
	if err != nil {
		return nil, err
	}
	return Limit(kv, opts.MaxValueBytes), nil
}
