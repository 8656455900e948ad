// Package cache provides in-process memoization of expensive external
// fetches. Entries carry a time-to-live; an expired entry is never
// returned and is removed lazily by the lookup that finds it.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key is absent or its entry has expired.
var ErrNotFound = errors.New("key not found")

// Cache defines the memoization interface.
type Cache interface {
	// Get retrieves a value by key. Returns ErrNotFound if not present
	// or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the given TTL, overwriting any existing
	// entry with a fresh timestamp. Zero TTL falls back to the cache's
	// default TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key from the cache.
	Delete(ctx context.Context, key string) error

	// Has checks if a key exists and is not expired.
	Has(ctx context.Context, key string) bool

	// Clear removes all entries.
	Clear(ctx context.Context) error

	// Stats returns cache counters.
	Stats() Stats

	// Close releases resources.
	Close() error
}

// Stats holds cache performance counters.
type Stats struct {
	Hits        int64
	Misses      int64
	Sets        int64
	Deletes     int64
	Evictions   int64
	Expirations int64
	Size        int64
	MaxSize     int64
}

// HitRate returns the hit rate as a percentage.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// Config holds cache configuration.
type Config struct {
	// MaxSize caps the number of entries; the least recently used entry
	// is evicted when the cap is reached (0 = unlimited).
	MaxSize int64

	// DefaultTTL applies to entries stored without an explicit TTL.
	DefaultTTL time.Duration

	// CleanupInterval is how often the background sweep removes expired
	// entries (0 = lazy expiry only).
	CleanupInterval time.Duration

	// Clock returns the current time. Defaults to time.Now. Tests inject
	// a fake clock to control TTL behavior.
	Clock func() time.Time
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxSize:         10000,
		DefaultTTL:      10 * time.Minute,
		CleanupInterval: time.Minute,
	}
}

// Entry is a cached item.
type Entry struct {
	Key       string
	Value     []byte
	StoredAt  time.Time
	ExpiresAt time.Time
}

// expired reports whether the entry is past its TTL at time now.
func (e Entry) expired(now time.Time) bool {
	if e.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(e.ExpiresAt)
}
