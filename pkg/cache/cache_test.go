package cache

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced clock for TTL tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryCache_GetSet(t *testing.T) {
	cache := NewMemoryCache(Config{MaxSize: 100, DefaultTTL: time.Hour})
	defer func() { _ = cache.Close() }()

	ctx := context.Background()

	if err := cache.Set(ctx, "key1", []byte("value1"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	value, err := cache.Get(ctx, "key1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(value) != "value1" {
		t.Errorf("expected 'value1', got '%s'", string(value))
	}

	if _, err := cache.Get(ctx, "nonexistent"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryCache_TTLExpiry(t *testing.T) {
	clock := newFakeClock()
	cache := NewMemoryCache(Config{MaxSize: 100, DefaultTTL: 10 * time.Minute, Clock: clock.Now})
	defer func() { _ = cache.Close() }()

	ctx := context.Background()
	_ = cache.Set(ctx, "query", []byte("result"), 0)

	// Just before the TTL the entry is still served.
	clock.Advance(10*time.Minute - time.Second)
	if _, err := cache.Get(ctx, "query"); err != nil {
		t.Fatalf("entry expired before TTL: %v", err)
	}

	// At exactly the TTL the entry is no longer servable.
	clock.Advance(time.Second)
	if _, err := cache.Get(ctx, "query"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound at TTL boundary, got %v", err)
	}

	stats := cache.Stats()
	if stats.Expirations != 1 {
		t.Errorf("expected 1 expiration, got %d", stats.Expirations)
	}
	if stats.Size != 0 {
		t.Errorf("expired entry not removed lazily, size = %d", stats.Size)
	}
}

func TestMemoryCache_OverwriteRefreshesTimestamp(t *testing.T) {
	clock := newFakeClock()
	cache := NewMemoryCache(Config{MaxSize: 100, DefaultTTL: time.Minute, Clock: clock.Now})
	defer func() { _ = cache.Close() }()

	ctx := context.Background()
	_ = cache.Set(ctx, "k", []byte("old"), 0)

	clock.Advance(50 * time.Second)
	_ = cache.Set(ctx, "k", []byte("new"), 0)

	// The original entry would have expired here; the overwrite reset
	// the clock.
	clock.Advance(30 * time.Second)
	value, err := cache.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get after overwrite: %v", err)
	}
	if string(value) != "new" {
		t.Errorf("expected 'new', got '%s'", string(value))
	}
}

func TestMemoryCache_LRUEviction(t *testing.T) {
	cache := NewMemoryCache(Config{MaxSize: 2, DefaultTTL: time.Hour})
	defer func() { _ = cache.Close() }()

	ctx := context.Background()
	_ = cache.Set(ctx, "a", []byte("1"), 0)
	_ = cache.Set(ctx, "b", []byte("2"), 0)

	// Touch "a" so "b" becomes the eviction candidate.
	_, _ = cache.Get(ctx, "a")

	_ = cache.Set(ctx, "c", []byte("3"), 0)

	if cache.Has(ctx, "b") {
		t.Error("expected 'b' to be evicted")
	}
	if !cache.Has(ctx, "a") || !cache.Has(ctx, "c") {
		t.Error("expected 'a' and 'c' to survive")
	}
	if stats := cache.Stats(); stats.Evictions != 1 {
		t.Errorf("expected 1 eviction, got %d", stats.Evictions)
	}
}

func TestMemoryCache_DeleteClear(t *testing.T) {
	cache := NewMemoryCache(DefaultConfig())
	defer func() { _ = cache.Close() }()

	ctx := context.Background()
	_ = cache.Set(ctx, "key1", []byte("value1"), 0)
	_ = cache.Set(ctx, "key2", []byte("value2"), 0)

	if err := cache.Delete(ctx, "key1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := cache.Delete(ctx, "key1"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for deleted key, got %v", err)
	}

	if err := cache.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if stats := cache.Stats(); stats.Size != 0 {
		t.Errorf("expected size 0 after clear, got %d", stats.Size)
	}
}

func TestDefaultKeyer_Determinism(t *testing.T) {
	keyer := NewDefaultKeyer()

	k1, err := keyer.Key("arxiv_search", map[string]any{"query": "quantum+computing", "max_results": 5})
	if err != nil {
		t.Fatalf("Key failed: %v", err)
	}
	k2, err := keyer.Key("arxiv_search", map[string]any{"max_results": 5, "query": "quantum+computing"})
	if err != nil {
		t.Fatalf("Key failed: %v", err)
	}
	if k1 != k2 {
		t.Errorf("identical inputs produced different keys: %q vs %q", k1, k2)
	}

	k3, _ := keyer.Key("arxiv_search", map[string]any{"query": "quantum+computing", "max_results": 10})
	if k1 == k3 {
		t.Error("different max_results collided on the same key")
	}

	k4, _ := keyer.Key("other_op", map[string]any{"query": "quantum+computing", "max_results": 5})
	if k1 == k4 {
		t.Error("different operations collided on the same key")
	}
}

func TestShortKey(t *testing.T) {
	a := ShortKey("history", "conv-123")
	b := ShortKey("history", "conv-123")
	c := ShortKey("history", "conv-124")

	if a != b {
		t.Errorf("same input produced different keys: %q vs %q", a, b)
	}
	if a == c {
		t.Error("different conversation ids collided")
	}
}
