// Package ttlstore provides the shared expiring key/value store used by the
// paragraph cache and the rate limiter.
package ttlstore

import (
	"context"
	"time"
)

// Store is a string key/value store with per-key expiry.
type Store interface {
	// Get returns the value and true, or "" and false when the key is absent or expired.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	// Increment atomically adds one to the counter at key and returns the new
	// value. ttl is armed only when the counter goes from 0 to 1.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// TTL returns the remaining lifetime of key, 0 when absent or persistent.
	TTL(ctx context.Context, key string) (time.Duration, error)
	Delete(ctx context.Context, keys ...string) error
	Close() error
}
