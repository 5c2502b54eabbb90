package memory

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseCacheHitAndMiss(t *testing.T) {
	c := NewResponseCache(time.Hour, 10, nil)

	_, found := c.Get(1, "what happens in chapter one?")
	assert.False(t, found)

	c.Put(1, "what happens in chapter one?", &CachedResponse{Answer: "a storm"})

	got, found := c.Get(1, "what happens in chapter one?")
	require.True(t, found)
	assert.Equal(t, "a storm", got.Answer)

	// Same question, different book: separate entry.
	_, found = c.Get(2, "what happens in chapter one?")
	assert.False(t, found)
}

func TestResponseCacheNormalizesQuestion(t *testing.T) {
	c := NewResponseCache(time.Hour, 10, nil)

	c.Put(7, "Who is the narrator?", &CachedResponse{Answer: "Ishmael"})

	got, found := c.Get(7, "  who is the narrator?  ")
	require.True(t, found)
	assert.Equal(t, "Ishmael", got.Answer)
}

func TestResponseCacheEvictsAtCapacity(t *testing.T) {
	c := NewResponseCache(time.Hour, 3, nil)

	for i := 0; i < 3; i++ {
		c.Put(1, fmt.Sprintf("question %d", i), &CachedResponse{Answer: fmt.Sprintf("answer %d", i)})
	}
	assert.Equal(t, 3, c.Len())

	c.Put(1, "question 3", &CachedResponse{Answer: "answer 3"})
	assert.Equal(t, 3, c.Len())

	_, found := c.Get(1, "question 3")
	assert.True(t, found)
}

func TestResponseCachePurgeByBook(t *testing.T) {
	c := NewResponseCache(time.Hour, 10, nil)

	c.Put(1, "q1", &CachedResponse{Answer: "a1"})
	c.Put(1, "q2", &CachedResponse{Answer: "a2"})
	c.Put(2, "q1", &CachedResponse{Answer: "other"})

	c.Purge(1)

	_, found := c.Get(1, "q1")
	assert.False(t, found)
	_, found = c.Get(1, "q2")
	assert.False(t, found)

	got, found := c.Get(2, "q1")
	require.True(t, found)
	assert.Equal(t, "other", got.Answer)
}

func TestResponseCacheExpiry(t *testing.T) {
	c := NewResponseCache(30*time.Millisecond, 10, nil)

	c.Put(1, "q", &CachedResponse{Answer: "a"})
	time.Sleep(60 * time.Millisecond)

	_, found := c.Get(1, "q")
	assert.False(t, found)
}
