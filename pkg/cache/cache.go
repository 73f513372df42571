// Package cache stores fetched and rendered assets by key.
//
// Three backends share the [Cache] interface: [FileCache] for the CLI
// (entries under the user cache directory), [RedisCache] for the HTTP
// server, and [NullCache] when caching is disabled. Keys come from a
// [Keyer] so every backend uses the same naming scheme.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with per-entry expiry.
type Cache interface {
	// Get returns the value for key. The boolean is false on a miss or an
	// expired entry.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}
