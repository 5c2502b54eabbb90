package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"ai-bookchat-be/internal/config"
	"ai-bookchat-be/internal/dto"
	"ai-bookchat-be/internal/entity"
	"ai-bookchat-be/internal/repository/contract"
	"ai-bookchat-be/internal/repository/memory"
	"ai-bookchat-be/internal/repository/specification"
	"ai-bookchat-be/internal/repository/unitofwork"
	"ai-bookchat-be/pkg/embedding"
	"ai-bookchat-be/pkg/pipeline"
	"ai-bookchat-be/pkg/progress"
	"ai-bookchat-be/pkg/vectorstore"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

type fakeBookRepo struct {
	mu              sync.Mutex
	books           map[int64]*entity.Book
	statuses        []string
	counts          []int
	updateStatusErr error
}

func newFakeBookRepo(books ...*entity.Book) *fakeBookRepo {
	m := make(map[int64]*entity.Book)
	for _, b := range books {
		m[b.Id] = b
	}
	return &fakeBookRepo{books: m}
}

func (r *fakeBookRepo) Create(ctx context.Context, book *entity.Book) error { return nil }
func (r *fakeBookRepo) Update(ctx context.Context, book *entity.Book) error { return nil }
func (r *fakeBookRepo) Delete(ctx context.Context, id int64) error          { return nil }

func (r *fakeBookRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, spec := range specs {
		if byID, ok := spec.(specification.ByBookID); ok {
			return r.books[byID.BookID], nil
		}
	}
	return nil, nil
}

func (r *fakeBookRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Book, error) {
	return nil, nil
}

func (r *fakeBookRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	return 0, nil
}

func (r *fakeBookRepo) UpdateStatus(ctx context.Context, id int64, status entity.BookStatus, statusError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateStatusErr != nil {
		return r.updateStatusErr
	}
	r.statuses = append(r.statuses, string(status))
	if b, ok := r.books[id]; ok {
		b.Status = status
		b.StatusError = statusError
	}
	return nil
}

func (r *fakeBookRepo) UpdateCounts(ctx context.Context, id int64, chunkCount, wordCount, tokenCount int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts = []int{chunkCount, wordCount, tokenCount}
	return nil
}

func (r *fakeBookRepo) statusTrail() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.statuses...)
}

type fakeUow struct {
	books *fakeBookRepo
}

func (u *fakeUow) Begin(ctx context.Context) error { return nil }
func (u *fakeUow) Commit() error                   { return nil }
func (u *fakeUow) Rollback() error                 { return nil }

func (u *fakeUow) UserRepository() contract.UserRepository                   { return nil }
func (u *fakeUow) BookRepository() contract.BookRepository                   { return u.books }
func (u *fakeUow) ApiCredentialRepository() contract.ApiCredentialRepository { return nil }
func (u *fakeUow) ChatSessionRepository() contract.ChatSessionRepository     { return nil }
func (u *fakeUow) ChatMessageRepository() contract.ChatMessageRepository     { return nil }

type fakeFactory struct {
	uow *fakeUow
}

func (f *fakeFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork { return f.uow }

type fakeProvider struct {
	mu    sync.Mutex
	calls int
	fail  error
}

func (p *fakeProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	p.calls++
	fail := p.fail
	p.mu.Unlock()
	if fail != nil {
		return nil, fail
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(len(texts[i])), 1, 0}
	}
	return vectors, nil
}

func (p *fakeProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (p *fakeProvider) Dimensions() int   { return 3 }
func (p *fakeProvider) ModelName() string { return "fake-embedder" }

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fakeResolver struct {
	provider *fakeProvider
}

func (r *fakeResolver) ProviderFor(ctx context.Context, userID uuid.UUID) (embedding.EmbeddingProvider, error) {
	return r.provider, nil
}

// gatedResolver blocks every job at provider resolution until released,
// recording how many jobs were inside at once.
type gatedResolver struct {
	provider *fakeProvider
	entered  chan struct{}
	release  chan struct{}

	mu       sync.Mutex
	inFlight int
	peak     int
}

func newGatedResolver(provider *fakeProvider) *gatedResolver {
	return &gatedResolver{
		provider: provider,
		entered:  make(chan struct{}, 16),
		release:  make(chan struct{}),
	}
}

func (r *gatedResolver) ProviderFor(ctx context.Context, userID uuid.UUID) (embedding.EmbeddingProvider, error) {
	r.mu.Lock()
	r.inFlight++
	if r.inFlight > r.peak {
		r.peak = r.inFlight
	}
	r.mu.Unlock()

	r.entered <- struct{}{}
	<-r.release

	r.mu.Lock()
	r.inFlight--
	r.mu.Unlock()
	return r.provider, nil
}

func (r *gatedResolver) peakInFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.peak
}

type fakeStore struct {
	mu     sync.Mutex
	exists bool
	saved  map[int64]*vectorstore.Document
}

func newFakeStore() *fakeStore {
	return &fakeStore{saved: make(map[int64]*vectorstore.Document)}
}

func (s *fakeStore) Exists(bookID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exists {
		return true
	}
	_, ok := s.saved[bookID]
	return ok
}

func (s *fakeStore) Save(bookID int64, doc *vectorstore.Document, model string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved[bookID] = doc
	return nil
}

func (s *fakeStore) savedDoc(bookID int64) *vectorstore.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved[bookID]
}

// --- harness ---

type consumerHarness struct {
	consumer  *consumerService
	pubSub    *gochannel.GoChannel
	registry  *pipeline.Registry
	books     *fakeBookRepo
	provider  *fakeProvider
	store     *fakeStore
	cache     *vectorstore.MemoryCache
	bus       *progress.Bus
	respCache *memory.ResponseCache
}

func newConsumerHarness(t *testing.T, books ...*entity.Book) *consumerHarness {
	t.Helper()
	return newConsumerHarnessMax(t, 1, books...)
}

func newConsumerHarnessMax(t *testing.T, maxBooks int, books ...*entity.Book) *consumerHarness {
	t.Helper()

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	repo := newFakeBookRepo(books...)
	provider := &fakeProvider{}
	store := newFakeStore()
	cache := vectorstore.NewMemoryCache(3, time.Minute, time.Minute)
	t.Cleanup(cache.Close)
	bus := progress.NewBus(nil, nil)
	respCache := memory.NewResponseCache(time.Hour, 100, nil)
	registry := pipeline.NewRegistry()

	cfg := config.PipelineConfig{
		ChunkSize:          100,
		ChunkOverlap:       20,
		BatchSize:          2,
		MaxConcurrent:      2,
		BatchDelayMs:       0,
		MaxRetries:         1,
		MaxConcurrentBooks: maxBooks,
		DispatchDelayMs:    0,
	}

	svc := NewConsumerService(
		pubSub, "EMBED_BOOK_CONTENT",
		&fakeFactory{uow: &fakeUow{books: repo}},
		registry,
		&fakeResolver{provider: provider},
		store, cache, bus, respCache,
		nil, nil,
		cfg, nopLogger{},
	)

	return &consumerHarness{
		consumer:  svc.(*consumerService),
		pubSub:    pubSub,
		registry:  registry,
		books:     repo,
		provider:  provider,
		store:     store,
		cache:     cache,
		bus:       bus,
		respCache: respCache,
	}
}

func (h *consumerHarness) run(t *testing.T, job *pipeline.Job) {
	t.Helper()
	require.True(t, h.registry.Add(job))

	payload, err := json.Marshal(dto.PublishEmbedBookMessage{
		BookId: job.BookID,
		UserId: job.UserID,
		RunId:  job.RunID,
		Force:  job.Force,
	})
	require.NoError(t, err)

	h.consumer.processMessage(context.Background(), message.NewMessage(watermill.NewUUID(), payload))
}

func testBook(id int64, content string) *entity.Book {
	return &entity.Book{
		Id:      id,
		UserId:  uuid.New(),
		Title:   "The Test Book",
		Content: content,
		Status:  entity.BookStatusPending,
	}
}

// --- tests ---

func TestConsumerEmbedsBook(t *testing.T) {
	book := testBook(1, "First sentence here. Second sentence follows. Third one closes the paragraph. And more text to force several chunks out of the splitter, sentence after sentence after sentence.")
	h := newConsumerHarness(t, book)

	job := pipeline.NewJob(book.Id, book.UserId, book.Content, false)
	h.run(t, job)

	select {
	case <-job.Done():
	default:
		t.Fatal("job not completed")
	}
	require.NoError(t, job.Err())

	doc := h.store.savedDoc(1)
	require.NotNil(t, doc)
	assert.Equal(t, len(doc.Chunks), len(doc.Vectors))
	assert.Greater(t, doc.WordCount, 0)

	// Status went processing then completed.
	assert.Equal(t, []string{"processing", "completed"}, h.books.statusTrail())
	assert.Equal(t, entity.BookStatusCompleted, book.Status)

	// Hot cache primed for immediate querying.
	cached, ok := h.cache.Get(1)
	require.True(t, ok)
	assert.Equal(t, doc.Chunks, cached.Chunks)

	// Late subscribers see the terminal snapshot.
	evt, ok := h.bus.Snapshot(1)
	require.True(t, ok)
	assert.Equal(t, progress.StatusCompleted, evt.Status)
	assert.Equal(t, evt.Total, evt.Processed)

	// Registry slot freed for the next run.
	_, tracked := h.registry.Get(1)
	assert.False(t, tracked)
}

func TestConsumerSkipsAlreadyEmbedded(t *testing.T) {
	book := testBook(2, "Some content. More content.")
	book.ChunkCount = 4
	h := newConsumerHarness(t, book)
	h.store.exists = true

	job := pipeline.NewJob(book.Id, book.UserId, book.Content, false)
	h.run(t, job)

	require.NoError(t, job.Err())
	assert.Equal(t, 0, h.provider.callCount())
	assert.Equal(t, []string{"completed"}, h.books.statusTrail())

	evt, ok := h.bus.Snapshot(2)
	require.True(t, ok)
	assert.Equal(t, progress.StatusCompleted, evt.Status)
	assert.Equal(t, 4, evt.Total)
}

func TestConsumerForceReembeds(t *testing.T) {
	book := testBook(3, "Chapter one. Chapter two. Chapter three.")
	h := newConsumerHarness(t, book)
	h.store.exists = true
	h.respCache.Put(3, "a question", &memory.CachedResponse{Answer: "stale"})

	job := pipeline.NewJob(book.Id, book.UserId, book.Content, true)
	h.run(t, job)

	require.NoError(t, job.Err())
	assert.Greater(t, h.provider.callCount(), 0)
	require.NotNil(t, h.store.savedDoc(3))

	// Answers derived from the old vectors are gone.
	_, found := h.respCache.Get(3, "a question")
	assert.False(t, found)
}

func TestConsumerRecordsFailure(t *testing.T) {
	book := testBook(4, "Content that will fail to embed.")
	h := newConsumerHarness(t, book)
	h.provider.fail = errors.New("provider exploded")

	job := pipeline.NewJob(book.Id, book.UserId, book.Content, false)
	h.run(t, job)

	require.Error(t, job.Err())
	assert.Equal(t, entity.BookStatusError, book.Status)
	assert.Contains(t, book.StatusError, "provider exploded")

	evt, ok := h.bus.Snapshot(4)
	require.True(t, ok)
	assert.Equal(t, progress.StatusError, evt.Status)

	// Nothing was persisted for the failed run.
	assert.Nil(t, h.store.savedDoc(4))

	_, tracked := h.registry.Get(4)
	assert.False(t, tracked)
}

func TestConsumerDropsUnknownBook(t *testing.T) {
	h := newConsumerHarness(t)

	job := pipeline.NewJob(99, uuid.New(), "orphan", false)
	h.run(t, job)

	require.Error(t, job.Err())
	assert.Equal(t, 0, h.provider.callCount())
}

func TestConsumerSkipToleratesStatusWriteFailure(t *testing.T) {
	book := testBook(6, "Already on disk. The row update is best effort.")
	book.ChunkCount = 2
	h := newConsumerHarness(t, book)
	h.store.exists = true
	h.books.updateStatusErr = errors.New("db unavailable")

	job := pipeline.NewJob(book.Id, book.UserId, book.Content, false)
	h.run(t, job)

	// The vectors exist, so a failed status write doesn't fail the job.
	require.NoError(t, job.Err())
	assert.Equal(t, 0, h.provider.callCount())

	evt, ok := h.bus.Snapshot(6)
	require.True(t, ok)
	assert.Equal(t, progress.StatusCompleted, evt.Status)
}

func TestConsumerRunsBooksConcurrently(t *testing.T) {
	bookA := testBook(10, "First book with enough words to chunk and embed like any other.")
	bookB := testBook(11, "Second book queued right behind it, embedding at the same time.")
	h := newConsumerHarnessMax(t, 2, bookA, bookB)

	gate := newGatedResolver(h.provider)
	h.consumer.resolver = gate

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, h.consumer.Consume(ctx))

	var jobs []*pipeline.Job
	for _, book := range []*entity.Book{bookA, bookB} {
		job := pipeline.NewJob(book.Id, book.UserId, book.Content, false)
		require.True(t, h.registry.Add(job))
		jobs = append(jobs, job)

		payload, err := json.Marshal(dto.PublishEmbedBookMessage{
			BookId: book.Id,
			UserId: book.UserId,
			RunId:  job.RunID,
		})
		require.NoError(t, err)
		require.NoError(t, h.pubSub.Publish("EMBED_BOOK_CONTENT", message.NewMessage(watermill.NewUUID(), payload)))
	}

	// Both jobs must be inside the pipeline before either is released.
	for i := 0; i < 2; i++ {
		select {
		case <-gate.entered:
		case <-time.After(5 * time.Second):
			t.Fatalf("only %d job(s) started; the second is stuck behind the first", i)
		}
	}
	assert.Equal(t, 2, gate.peakInFlight())

	close(gate.release)
	for _, job := range jobs {
		select {
		case <-job.Done():
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for job")
		}
		require.NoError(t, job.Err())
	}
	assert.NotNil(t, h.store.savedDoc(10))
	assert.NotNil(t, h.store.savedDoc(11))
}

func TestConsumerEndToEndThroughQueue(t *testing.T) {
	book := testBook(5, "Queued through the real channel. It should arrive and embed. No manual dispatch involved.")
	h := newConsumerHarness(t, book)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, h.consumer.Consume(ctx))

	job := pipeline.NewJob(book.Id, book.UserId, book.Content, false)
	require.True(t, h.registry.Add(job))

	payload, err := json.Marshal(dto.PublishEmbedBookMessage{
		BookId: book.Id,
		UserId: book.UserId,
		RunId:  job.RunID,
	})
	require.NoError(t, err)
	require.NoError(t, h.pubSub.Publish("EMBED_BOOK_CONTENT", message.NewMessage(watermill.NewUUID(), payload)))

	select {
	case <-job.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for job")
	}
	require.NoError(t, job.Err())
	assert.NotNil(t, h.store.savedDoc(5))
}
