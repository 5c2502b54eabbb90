package memory

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"ai-bookchat-be/internal/pkg/logger"

	gocache "github.com/patrickmn/go-cache"
)

// ResponseCache remembers chat answers per (book, question) so repeating a
// question does not burn another LLM call. Keys are the book id plus an md5
// of the normalized question. A hard entry cap bounds memory: when full, the
// entry closest to expiry is dropped to make room.
type ResponseCache struct {
	cache      *gocache.Cache
	maxEntries int
	log        logger.ILogger
}

type CachedResponse struct {
	Answer  string
	Sources []string
}

func NewResponseCache(ttl time.Duration, maxEntries int, log logger.ILogger) *ResponseCache {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &ResponseCache{
		cache:      gocache.New(ttl, ttl/2),
		maxEntries: maxEntries,
		log:        log,
	}
}

func (c *ResponseCache) key(bookID int64, message string) string {
	normalized := strings.ToLower(strings.TrimSpace(message))
	sum := md5.Sum([]byte(normalized))
	return fmt.Sprintf("%d:%s", bookID, hex.EncodeToString(sum[:]))
}

func (c *ResponseCache) Get(bookID int64, message string) (*CachedResponse, bool) {
	v, found := c.cache.Get(c.key(bookID, message))
	if !found {
		return nil, false
	}
	resp, ok := v.(*CachedResponse)
	return resp, ok
}

func (c *ResponseCache) Put(bookID int64, message string, resp *CachedResponse) {
	if c.cache.ItemCount() >= c.maxEntries {
		c.evictSoonest()
	}
	c.cache.SetDefault(c.key(bookID, message), resp)
}

// evictSoonest drops the entry closest to its expiry.
func (c *ResponseCache) evictSoonest() {
	var victim string
	var soonest int64
	for k, item := range c.cache.Items() {
		if victim == "" || item.Expiration < soonest {
			victim = k
			soonest = item.Expiration
		}
	}
	if victim != "" {
		c.cache.Delete(victim)
		if c.log != nil {
			c.log.Debug("ResponseCache", "Evicted entry at capacity", map[string]interface{}{
				"key": victim,
			})
		}
	}
}

// Purge drops every cached answer for one book. Called when a book's
// embeddings are cleared or rebuilt so stale answers cannot survive.
func (c *ResponseCache) Purge(bookID int64) {
	prefix := fmt.Sprintf("%d:", bookID)
	for k := range c.cache.Items() {
		if strings.HasPrefix(k, prefix) {
			c.cache.Delete(k)
		}
	}
}

func (c *ResponseCache) Len() int {
	return c.cache.ItemCount()
}

func (c *ResponseCache) MaxEntries() int {
	return c.maxEntries
}
