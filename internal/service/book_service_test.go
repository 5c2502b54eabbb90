package service

import (
	"context"
	"testing"
	"time"

	"ai-bookchat-be/internal/dto"
	"ai-bookchat-be/internal/pkg/serverutils"
	"ai-bookchat-be/internal/repository/memory"
	"ai-bookchat-be/pkg/pipeline"
	"ai-bookchat-be/pkg/progress"
	"ai-bookchat-be/pkg/vectorstore"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// emptyReader is a persistent store holding nothing.
type emptyReader struct{}

func (emptyReader) Exists(bookID int64) bool { return false }
func (emptyReader) Load(bookID int64) (*vectorstore.Document, *vectorstore.Meta, error) {
	return nil, nil, vectorstore.ErrNotFound
}
func (emptyReader) Clear(bookID int64) error { return nil }

func newQueryBookService(t *testing.T, repo *fakeBookRepo) (IBookService, *vectorstore.MemoryCache) {
	t.Helper()
	cache := vectorstore.NewMemoryCache(3, time.Minute, time.Minute)
	t.Cleanup(cache.Close)

	svc := NewBookService(
		&fakeFactory{uow: &fakeUow{books: repo}},
		nil,
		pipeline.NewRegistry(),
		&fakeResolver{provider: &fakeProvider{}},
		emptyReader{},
		cache,
		progress.NewBus(nil, nil),
		memory.NewResponseCache(time.Hour, 10, nil),
		nil,
		5,
		nopLogger{},
	)
	return svc, cache
}

func TestQueryUnprocessedBookReturnsNotProcessed(t *testing.T) {
	book := testBook(20, "Uploaded but never embedded.")
	svc, _ := newQueryBookService(t, newFakeBookRepo(book))

	res, err := svc.Query(context.Background(), book.UserId, book.Id, &dto.QueryBookRequest{
		Query: "what happens in chapter one?",
	})
	require.Error(t, err)
	assert.Nil(t, res)

	// The caller gets a typed conflict, not an empty result set.
	var typed serverutils.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, fiber.StatusConflict, typed.Code)
	assert.Contains(t, typed.Message, "not been processed")
}

func TestQueryServesFromMemoryCache(t *testing.T) {
	book := testBook(21, "Cached content.")
	svc, cache := newQueryBookService(t, newFakeBookRepo(book))

	cache.Put(book.Id, &vectorstore.Document{
		Chunks:  []string{"The harpoon flew.", "The storm passed."},
		Vectors: [][]float32{{1, 0, 0}, {0, 1, 0}},
	})

	res, err := svc.Query(context.Background(), book.UserId, book.Id, &dto.QueryBookRequest{
		Query: "what about the harpoon?",
		TopK:  1,
	})
	require.NoError(t, err)
	require.Len(t, res.Excerpts, 1)
	// fakeProvider embeds every query as the first basis vector.
	assert.Equal(t, 0, res.Excerpts[0].ChunkIndex)
	assert.Equal(t, "The harpoon flew.", res.Excerpts[0].Text)
}
