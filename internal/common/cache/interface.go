// Package cache is the shared key-value store the supervisor publishes
// health snapshots and restart history into.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque values and capped recent-first lists.
type Cache interface {
	// Put stores value under key. A zero ttl never expires.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns ok=false for a missing key.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// PushCapped prepends value and keeps only the newest limit entries.
	PushCapped(ctx context.Context, key string, value []byte, limit int64) error

	// Recent returns up to n entries, newest first.
	Recent(ctx context.Context, key string, n int64) ([][]byte, error)

	Close() error
}
