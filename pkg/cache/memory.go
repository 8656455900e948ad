package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryCache is a mutex-guarded in-memory cache with TTL expiry and an
// LRU size cap. Lookup and store on the same key are each a single
// critical section, so concurrent callers never observe a torn entry.
type MemoryCache struct {
	mu      sync.RWMutex
	items   map[string]*list.Element
	lru     *list.List
	cfg     Config
	now     func() time.Time
	stats   Stats
	stopCh  chan struct{}
	stopped atomic.Bool
}

type cacheItem struct {
	entry Entry
}

// NewMemoryCache creates an in-memory cache.
func NewMemoryCache(cfg Config) *MemoryCache {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	c := &MemoryCache{
		items:  make(map[string]*list.Element),
		lru:    list.New(),
		cfg:    cfg,
		now:    cfg.Clock,
		stopCh: make(chan struct{}),
		stats:  Stats{MaxSize: cfg.MaxSize},
	}

	if cfg.CleanupInterval > 0 {
		go c.cleanupLoop()
	}

	return c
}

// Get retrieves a value by key, lazily removing it when expired.
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		atomic.AddInt64(&c.stats.Misses, 1)
		return nil, ErrNotFound
	}

	item := elem.Value.(*cacheItem)
	if item.entry.expired(c.now()) {
		c.removeElement(elem)
		atomic.AddInt64(&c.stats.Misses, 1)
		atomic.AddInt64(&c.stats.Expirations, 1)
		return nil, ErrNotFound
	}

	c.lru.MoveToFront(elem)
	atomic.AddInt64(&c.stats.Hits, 1)

	return item.entry.Value, nil
}

// Set stores a value, overwriting any existing entry with a fresh timestamp.
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}

	now := c.now()
	entry := Entry{
		Key:      key,
		Value:    value,
		StoredAt: now,
	}
	if ttl > 0 {
		entry.ExpiresAt = now.Add(ttl)
	}

	if elem, ok := c.items[key]; ok {
		elem.Value = &cacheItem{entry: entry}
		c.lru.MoveToFront(elem)
		atomic.AddInt64(&c.stats.Sets, 1)
		return nil
	}

	for c.cfg.MaxSize > 0 && atomic.LoadInt64(&c.stats.Size) >= c.cfg.MaxSize {
		c.evictOldest()
	}

	elem := c.lru.PushFront(&cacheItem{entry: entry})
	c.items[key] = elem
	atomic.AddInt64(&c.stats.Size, 1)
	atomic.AddInt64(&c.stats.Sets, 1)

	return nil
}

// Delete removes a key.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return ErrNotFound
	}

	c.removeElement(elem)
	atomic.AddInt64(&c.stats.Deletes, 1)
	return nil
}

// Has checks if a key exists and is not expired.
func (c *MemoryCache) Has(ctx context.Context, key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	elem, ok := c.items[key]
	if !ok {
		return false
	}
	return !elem.Value.(*cacheItem).entry.expired(c.now())
}

// Clear removes all entries.
func (c *MemoryCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.lru.Init()
	atomic.StoreInt64(&c.stats.Size, 0)

	return nil
}

// Stats returns a snapshot of the counters.
func (c *MemoryCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Stats{
		Hits:        atomic.LoadInt64(&c.stats.Hits),
		Misses:      atomic.LoadInt64(&c.stats.Misses),
		Sets:        atomic.LoadInt64(&c.stats.Sets),
		Deletes:     atomic.LoadInt64(&c.stats.Deletes),
		Evictions:   atomic.LoadInt64(&c.stats.Evictions),
		Expirations: atomic.LoadInt64(&c.stats.Expirations),
		Size:        atomic.LoadInt64(&c.stats.Size),
		MaxSize:     c.cfg.MaxSize,
	}
}

// Close stops the background sweep.
func (c *MemoryCache) Close() error {
	if c.stopped.CompareAndSwap(false, true) {
		close(c.stopCh)
	}
	return nil
}

func (c *MemoryCache) evictOldest() {
	elem := c.lru.Back()
	if elem == nil {
		return
	}
	c.removeElement(elem)
	atomic.AddInt64(&c.stats.Evictions, 1)
}

func (c *MemoryCache) removeElement(elem *list.Element) {
	item := elem.Value.(*cacheItem)
	delete(c.items, item.entry.Key)
	c.lru.Remove(elem)
	atomic.AddInt64(&c.stats.Size, -1)
}

func (c *MemoryCache) cleanupLoop() {
	ticker := time.NewTicker(c.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopCh:
			return
		}
	}
}

func (c *MemoryCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var toRemove []*list.Element

	for elem := c.lru.Back(); elem != nil; elem = elem.Prev() {
		if elem.Value.(*cacheItem).entry.expired(now) {
			toRemove = append(toRemove, elem)
		}
	}

	for _, elem := range toRemove {
		c.removeElement(elem)
		atomic.AddInt64(&c.stats.Expirations, 1)
	}
}

var _ Cache = (*MemoryCache)(nil)
