package storage

import (
	"context"
	"fmt"
)

// limited rejects values above a size ceiling, the way a browser refuses a
// localStorage write once the origin's quota is used up.
type limited struct {
	KV
	maxBytes int
}

// Limit wraps kv so that Set fails with ErrQuotaExceeded for values larger
// than maxBytes. A non-positive maxBytes disables the limit.
func Limit(kv KV, maxBytes int) KV {
	if maxBytes <= 0 {
		return kv
	}
	return &limited{KV: kv, maxBytes: maxBytes}
}

func (l *limited) Set(ctx context.Context, key string, value []byte) error {
	if len(value) > l.maxBytes {
		return fmt.Errorf("%w: %d bytes for %q exceeds %d", ErrQuotaExceeded, len(value), key, l.maxBytes)
	}
	return l.KV.Set(ctx, key, value)
}
