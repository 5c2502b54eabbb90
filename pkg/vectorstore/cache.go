package vectorstore

import (
	"sync"
	"time"
)

type cacheEntry struct {
	doc        *Document
	lastAccess time.Time
}

// CacheStats is a point-in-time snapshot of the memory cache counters.
type CacheStats struct {
	Entries   int   `json:"entries"`
	Capacity  int   `json:"capacity"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

// MemoryCache holds a handful of fully loaded books so hot documents skip the
// gunzip/decode round trip. Eviction is least-recently-used at capacity, and
// a background sweep drops entries whose last access is older than the TTL.
// All mutation runs under one mutex; the cache is a pure accelerator and
// callers fall through to the DiskStore on a miss.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[int64]*cacheEntry

	capacity int
	ttl      time.Duration

	hits      int64
	misses    int64
	evictions int64

	stop     chan struct{}
	stopOnce sync.Once
}

func NewMemoryCache(capacity int, ttl, sweepEvery time.Duration) *MemoryCache {
	if capacity < 1 {
		capacity = 1
	}
	c := &MemoryCache{
		entries:  make(map[int64]*cacheEntry),
		capacity: capacity,
		ttl:      ttl,
		stop:     make(chan struct{}),
	}
	if sweepEvery > 0 {
		go c.sweepLoop(sweepEvery)
	}
	return c
}

// Get returns the cached document and refreshes its last-access time. An
// entry past its TTL counts as a miss and is dropped on the spot.
func (c *MemoryCache) Get(bookID int64) (*Document, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[bookID]
	if !ok {
		c.misses++
		return nil, false
	}

	now := time.Now()
	if c.ttl > 0 && now.Sub(entry.lastAccess) > c.ttl {
		delete(c.entries, bookID)
		c.evictions++
		c.misses++
		return nil, false
	}

	entry.lastAccess = now
	c.hits++
	return entry.doc, true
}

// Put inserts a document, evicting the least-recently-used entry when the
// cache is at capacity.
func (c *MemoryCache) Put(bookID int64, doc *Document) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[bookID]; ok {
		entry.doc = doc
		entry.lastAccess = time.Now()
		return
	}

	if len(c.entries) >= c.capacity {
		c.evictOldestLocked()
	}
	c.entries[bookID] = &cacheEntry{doc: doc, lastAccess: time.Now()}
}

// Delete removes a book's entry, if present. Called on clear so a stale
// cached copy can never outlive the disk artifacts.
func (c *MemoryCache) Delete(bookID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, bookID)
}

func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemoryCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Entries:   len(c.entries),
		Capacity:  c.capacity,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

// Close stops the sweeper goroutine.
func (c *MemoryCache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *MemoryCache) evictOldestLocked() {
	var oldestID int64
	var oldest time.Time
	first := true
	for id, entry := range c.entries {
		if first || entry.lastAccess.Before(oldest) {
			oldestID = id
			oldest = entry.lastAccess
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestID)
		c.evictions++
	}
}

func (c *MemoryCache) sweep(now time.Time) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, entry := range c.entries {
		if now.Sub(entry.lastAccess) > c.ttl {
			delete(c.entries, id)
			c.evictions++
		}
	}
}

func (c *MemoryCache) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep(time.Now())
		case <-c.stop:
			return
		}
	}
}
