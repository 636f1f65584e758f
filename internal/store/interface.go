package store

import (
	"context"
	"time"
)

// Store is the key-value boundary the cache depends on. Payloads are opaque
// bytes; encoding is the caller's concern.
//
// Implementations must be safe for concurrent use and must return errors
// from the backend rather than reporting them as misses.
type Store interface {
	// Get returns (payload, true, nil) when the key exists, including an
	// empty payload, and (nil, false, nil) when it is absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// SetEx stores value under key. ttl of zero means no expiry.
	SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources owned by the store
	Close() error
}

// Scanner is implemented by stores that can list their keys
type Scanner interface {
	// Keys returns the keys matching a glob-style pattern ("*" for all)
	Keys(ctx context.Context, pattern string) ([]string, error)
}
