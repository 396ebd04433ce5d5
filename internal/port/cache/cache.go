// Package cache defines the byte-cache port (interface).
package cache

import (
	"context"
	"time"
)

// Cache is the port interface for a key/value byte cache. Implementations
// back the optimization-record hot path; the database remains the source
// of truth, so entries may be evicted at any time.
type Cache interface {
	// Get retrieves a value. ok is false on a miss; a miss is not an error.
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)

	// Set stores a value with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
