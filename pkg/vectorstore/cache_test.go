package vectorstore

import (
	"fmt"
	"testing"
	"time"
)

func newTestCache(capacity int, ttl time.Duration) *MemoryCache {
	// Sweep interval 0 disables the background goroutine so tests drive
	// expiry deterministically through sweep().
	return NewMemoryCache(capacity, ttl, 0)
}

func docN(n int) *Document {
	return &Document{
		Chunks:  []string{fmt.Sprintf("chunk %d", n)},
		Vectors: [][]float32{{float32(n)}},
	}
}

func TestMemoryCachePutGet(t *testing.T) {
	cache := newTestCache(3, 30*time.Minute)
	defer cache.Close()

	cache.Put(1, docN(1))
	got, ok := cache.Get(1)
	if !ok {
		t.Fatal("Get(1) = miss, want hit")
	}
	if got.Chunks[0] != "chunk 1" {
		t.Errorf("Get(1) chunk = %q, want %q", got.Chunks[0], "chunk 1")
	}
	if _, ok := cache.Get(2); ok {
		t.Fatal("Get(2) = hit, want miss")
	}

	stats := cache.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("stats = %d hits %d misses, want 1/1", stats.Hits, stats.Misses)
	}
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	cache := newTestCache(3, 30*time.Minute)
	defer cache.Close()

	cache.Put(1, docN(1))
	cache.Put(2, docN(2))
	cache.Put(3, docN(3))

	// Touch 1 so 2 becomes the least recently used entry.
	if _, ok := cache.Get(1); !ok {
		t.Fatal("Get(1) = miss, want hit")
	}

	cache.Put(4, docN(4))

	if _, ok := cache.Get(2); ok {
		t.Error("book 2 survived eviction, want it dropped as LRU")
	}
	for _, id := range []int64{1, 3, 4} {
		if _, ok := cache.Get(id); !ok {
			t.Errorf("book %d evicted, want it retained", id)
		}
	}
	if cache.Len() != 3 {
		t.Errorf("Len = %d, want 3", cache.Len())
	}
	if evictions := cache.Stats().Evictions; evictions != 1 {
		t.Errorf("Evictions = %d, want 1", evictions)
	}
}

func TestMemoryCachePutExistingUpdates(t *testing.T) {
	cache := newTestCache(2, 30*time.Minute)
	defer cache.Close()

	cache.Put(1, docN(1))
	cache.Put(1, docN(100))

	got, ok := cache.Get(1)
	if !ok {
		t.Fatal("Get(1) = miss, want hit")
	}
	if got.Chunks[0] != "chunk 100" {
		t.Errorf("Get(1) chunk = %q, want replacement", got.Chunks[0])
	}
	if cache.Len() != 1 {
		t.Errorf("Len = %d, want 1", cache.Len())
	}
}

func TestMemoryCacheGetExpiresStaleEntry(t *testing.T) {
	cache := newTestCache(3, 30*time.Minute)
	defer cache.Close()

	cache.Put(1, docN(1))
	cache.mu.Lock()
	cache.entries[1].lastAccess = time.Now().Add(-31 * time.Minute)
	cache.mu.Unlock()

	if _, ok := cache.Get(1); ok {
		t.Fatal("Get returned an entry older than the TTL")
	}
	if cache.Len() != 0 {
		t.Errorf("Len = %d after expiry, want 0", cache.Len())
	}
}

func TestMemoryCacheSweepRemovesStaleEntries(t *testing.T) {
	cache := newTestCache(3, 30*time.Minute)
	defer cache.Close()

	cache.Put(1, docN(1))
	cache.Put(2, docN(2))
	cache.mu.Lock()
	cache.entries[1].lastAccess = time.Now().Add(-45 * time.Minute)
	cache.mu.Unlock()

	cache.sweep(time.Now())

	if _, ok := cache.Get(1); ok {
		t.Error("stale book 1 survived the sweep")
	}
	if _, ok := cache.Get(2); !ok {
		t.Error("fresh book 2 was swept")
	}
}

func TestMemoryCacheDelete(t *testing.T) {
	cache := newTestCache(3, 30*time.Minute)
	defer cache.Close()

	cache.Put(1, docN(1))
	cache.Delete(1)
	if _, ok := cache.Get(1); ok {
		t.Fatal("Get(1) = hit after Delete")
	}
	// Deleting an absent entry is a no-op.
	cache.Delete(77)
}
