package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ai-bookchat-be/internal/dto"
	"ai-bookchat-be/internal/entity"
	"ai-bookchat-be/internal/pkg/logger"
	"ai-bookchat-be/internal/pkg/serverutils"
	"ai-bookchat-be/internal/repository/memory"
	"ai-bookchat-be/internal/repository/specification"
	"ai-bookchat-be/internal/repository/unitofwork"
	"ai-bookchat-be/pkg/events"
	pktNats "ai-bookchat-be/pkg/nats"
	"ai-bookchat-be/pkg/pipeline"
	"ai-bookchat-be/pkg/progress"
	"ai-bookchat-be/pkg/vectorstore"

	"github.com/google/uuid"
)

// VectorReader is the read/clear slice of the persistent store used by the
// request path. *vectorstore.DiskStore satisfies it.
type VectorReader interface {
	Exists(bookID int64) bool
	Load(bookID int64) (*vectorstore.Document, *vectorstore.Meta, error)
	Clear(bookID int64) error
}

type IBookService interface {
	Create(ctx context.Context, userId uuid.UUID, req *dto.UploadBookRequest) (*dto.UploadBookResponse, error)
	List(ctx context.Context, userId uuid.UUID) ([]*dto.BookListItemResponse, error)
	Show(ctx context.Context, userId uuid.UUID, id int64) (*dto.ShowBookResponse, error)
	Delete(ctx context.Context, userId uuid.UUID, id int64) error
	StartProcessing(ctx context.Context, userId uuid.UUID, id int64, force bool) (*dto.ProcessBookResponse, error)
	GetStatus(ctx context.Context, userId uuid.UUID, id int64) (*dto.BookStatusResponse, error)
	Query(ctx context.Context, userId uuid.UUID, id int64, req *dto.QueryBookRequest) (*dto.QueryBookResponse, error)
	ClearEmbeddings(ctx context.Context, userId uuid.UUID, id int64) (*dto.ClearEmbeddingsResponse, error)
}

type bookService struct {
	uowFactory       unitofwork.RepositoryFactory
	publisherService IPublisherService
	registry         *pipeline.Registry
	resolver         ProviderResolver
	store            VectorReader
	cache            *vectorstore.MemoryCache
	bus              *progress.Bus
	respCache        *memory.ResponseCache
	eventPublisher   *pktNats.Publisher
	topK             int
	log              logger.ILogger
}

func NewBookService(
	uowFactory unitofwork.RepositoryFactory,
	publisherService IPublisherService,
	registry *pipeline.Registry,
	resolver ProviderResolver,
	store VectorReader,
	cache *vectorstore.MemoryCache,
	bus *progress.Bus,
	respCache *memory.ResponseCache,
	eventPublisher *pktNats.Publisher,
	topK int,
	log logger.ILogger,
) IBookService {
	if topK <= 0 {
		topK = 5
	}
	return &bookService{
		uowFactory:       uowFactory,
		publisherService: publisherService,
		registry:         registry,
		resolver:         resolver,
		store:            store,
		cache:            cache,
		bus:              bus,
		respCache:        respCache,
		eventPublisher:   eventPublisher,
		topK:             topK,
		log:              log,
	}
}

func (s *bookService) Create(ctx context.Context, userId uuid.UUID, req *dto.UploadBookRequest) (*dto.UploadBookResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	book := entity.Book{
		UserId:    userId,
		Title:     req.Title,
		Author:    req.Author,
		Content:   req.Content,
		Status:    entity.BookStatusPending,
		CreatedAt: time.Now(),
	}

	if err := uow.BookRepository().Create(ctx, &book); err != nil {
		return nil, err
	}

	if s.eventPublisher != nil {
		evt := events.BaseEvent{
			Type: events.TypeBookCreated,
			Data: map[string]interface{}{
				"book_id": book.Id,
				"title":   book.Title,
				"user_id": userId.String(),
			},
			OccurredAt: time.Now(),
		}
		if err := s.eventPublisher.Publish(ctx, evt); err != nil {
			s.log.Warn("BookService", "Failed to publish BOOK_CREATED event", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	// Uploads go straight into the embedding queue.
	if _, err := s.enqueue(ctx, &book, false); err != nil {
		s.log.Warn("BookService", "Failed to enqueue new book", map[string]interface{}{
			"book_id": book.Id,
			"error":   err.Error(),
		})
	}

	return &dto.UploadBookResponse{
		Id:     book.Id,
		Status: string(book.Status),
	}, nil
}

func (s *bookService) List(ctx context.Context, userId uuid.UUID) ([]*dto.BookListItemResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	books, err := uow.BookRepository().FindAll(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "created_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.BookListItemResponse, len(books))
	for i, b := range books {
		items[i] = &dto.BookListItemResponse{
			Id:         b.Id,
			Title:      b.Title,
			Author:     b.Author,
			Status:     string(b.Status),
			ChunkCount: b.ChunkCount,
			WordCount:  b.WordCount,
			CreatedAt:  b.CreatedAt,
			UpdatedAt:  b.UpdatedAt,
		}
	}
	return items, nil
}

func (s *bookService) Show(ctx context.Context, userId uuid.UUID, id int64) (*dto.ShowBookResponse, error) {
	book, err := s.ownedBook(ctx, s.uowFactory.NewUnitOfWork(ctx), userId, id)
	if err != nil {
		return nil, err
	}

	return &dto.ShowBookResponse{
		Id:          book.Id,
		Title:       book.Title,
		Author:      book.Author,
		Status:      string(book.Status),
		StatusError: book.StatusError,
		ChunkCount:  book.ChunkCount,
		WordCount:   book.WordCount,
		TokenCount:  book.TokenCount,
		CreatedAt:   book.CreatedAt,
		UpdatedAt:   book.UpdatedAt,
	}, nil
}

func (s *bookService) Delete(ctx context.Context, userId uuid.UUID, id int64) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	book, err := s.ownedBook(ctx, uow, userId, id)
	if err != nil {
		return err
	}

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	// Chat history hangs off sessions, sessions hang off the book.
	sessions, err := uow.ChatSessionRepository().FindAll(ctx, specification.SessionForBook{BookID: id})
	if err != nil {
		return err
	}
	for _, session := range sessions {
		if err := uow.ChatMessageRepository().DeleteAllBySessionId(ctx, session.Id); err != nil {
			return err
		}
	}
	if err := uow.ChatSessionRepository().DeleteAllForBook(ctx, id); err != nil {
		return err
	}
	if err := uow.BookRepository().Delete(ctx, id); err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return err
	}

	// Stored artifacts and caches go after the row is gone; a failure here
	// leaves orphans on disk, not dangling references.
	if err := s.store.Clear(id); err != nil {
		s.log.Warn("BookService", "Failed to clear stored embeddings", map[string]interface{}{
			"book_id": id,
			"error":   err.Error(),
		})
	}
	s.cache.Delete(id)
	s.bus.Forget(id)
	s.respCache.Purge(id)

	if s.eventPublisher != nil {
		evt := events.BaseEvent{
			Type: events.TypeBookDeleted,
			Data: map[string]interface{}{
				"book_id": id,
				"title":   book.Title,
				"user_id": userId.String(),
			},
			OccurredAt: time.Now(),
		}
		if err := s.eventPublisher.Publish(ctx, evt); err != nil {
			s.log.Warn("BookService", "Failed to publish BOOK_DELETED event", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	return nil
}

func (s *bookService) StartProcessing(ctx context.Context, userId uuid.UUID, id int64, force bool) (*dto.ProcessBookResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	book, err := s.ownedBook(ctx, uow, userId, id)
	if err != nil {
		return nil, err
	}

	enqueued, err := s.enqueue(ctx, book, force)
	if err != nil {
		return nil, err
	}

	status := book.Status
	if enqueued {
		status = entity.BookStatusPending
	}
	return &dto.ProcessBookResponse{
		Id:       id,
		Status:   string(status),
		Enqueued: enqueued,
	}, nil
}

// enqueue registers a job and publishes it. A book already queued or running
// is left alone: the response says so and nothing is published twice.
func (s *bookService) enqueue(ctx context.Context, book *entity.Book, force bool) (bool, error) {
	job := pipeline.NewJob(book.Id, book.UserId, book.Content, force)
	if !s.registry.Add(job) {
		s.log.Info("BookService", "Book already queued, ignoring", map[string]interface{}{
			"book_id": book.Id,
		})
		return false, nil
	}

	payload, err := json.Marshal(dto.PublishEmbedBookMessage{
		BookId: book.Id,
		UserId: book.UserId,
		RunId:  job.RunID,
		Force:  force,
	})
	if err != nil {
		s.registry.Remove(book.Id)
		return false, err
	}

	if err := s.publisherService.Publish(ctx, payload); err != nil {
		s.registry.Remove(book.Id)
		return false, fmt.Errorf("enqueue book %d: %w", book.Id, err)
	}

	s.bus.Publish(progress.Event{
		BookID: book.Id,
		RunID:  job.RunID,
		Status: progress.StatusPending,
		At:     time.Now(),
	})

	return true, nil
}

func (s *bookService) GetStatus(ctx context.Context, userId uuid.UUID, id int64) (*dto.BookStatusResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	book, err := s.ownedBook(ctx, uow, userId, id)
	if err != nil {
		return nil, err
	}

	resp := &dto.BookStatusResponse{
		Id:     id,
		Status: string(book.Status),
		Error:  book.StatusError,
	}

	_, resp.InQueue = s.registry.Get(id)
	if evt, ok := s.bus.Snapshot(id); ok {
		resp.Processed = evt.Processed
		resp.Total = evt.Total
		resp.Message = evt.Message
		// The live run is ahead of the persisted row while processing.
		if evt.Status != "" {
			resp.Status = evt.Status
		}
	}

	return resp, nil
}

func (s *bookService) Query(ctx context.Context, userId uuid.UUID, id int64, req *dto.QueryBookRequest) (*dto.QueryBookResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	if _, err := s.ownedBook(ctx, uow, userId, id); err != nil {
		return nil, err
	}

	doc, err := s.loadDocument(id)
	if err != nil {
		return nil, err
	}

	provider, err := s.resolver.ProviderFor(ctx, userId)
	if err != nil {
		return nil, err
	}
	queryVector, err := provider.EmbedQuery(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	scored, err := vectorstore.RankChunks(queryVector, doc.Vectors)
	if err != nil {
		return nil, err
	}

	k := req.TopK
	if k <= 0 {
		k = s.topK
	}
	top := vectorstore.TopK(scored, k)

	excerpts := make([]dto.BookExcerptDTO, len(top))
	for i, sc := range top {
		excerpts[i] = dto.BookExcerptDTO{
			ChunkIndex: sc.Index,
			Text:       doc.Chunks[sc.Index],
			Score:      sc.Score,
		}
	}

	return &dto.QueryBookResponse{
		BookId:   id,
		Query:    req.Query,
		Excerpts: excerpts,
	}, nil
}

func (s *bookService) ClearEmbeddings(ctx context.Context, userId uuid.UUID, id int64) (*dto.ClearEmbeddingsResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	if _, err := s.ownedBook(ctx, uow, userId, id); err != nil {
		return nil, err
	}

	if err := s.store.Clear(id); err != nil {
		return nil, err
	}
	s.cache.Delete(id)
	s.bus.Forget(id)
	s.respCache.Purge(id)

	if err := uow.BookRepository().UpdateStatus(ctx, id, entity.BookStatusPending, ""); err != nil {
		return nil, err
	}
	if err := uow.BookRepository().UpdateCounts(ctx, id, 0, 0, 0); err != nil {
		return nil, err
	}

	s.log.Info("BookService", "Embeddings cleared", map[string]interface{}{
		"book_id": id,
	})

	return &dto.ClearEmbeddingsResponse{
		Id:      id,
		Status:  string(entity.BookStatusPending),
		Cleared: true,
	}, nil
}

// loadDocument resolves a book's vectors, memory cache first, then disk. A
// book with no stored vectors is reported as not processed so callers can
// tell the user to run processing first.
func (s *bookService) loadDocument(id int64) (*vectorstore.Document, error) {
	if doc, ok := s.cache.Get(id); ok {
		return doc, nil
	}

	doc, _, err := s.store.Load(id)
	if err != nil {
		if errors.Is(err, vectorstore.ErrNotFound) {
			return nil, serverutils.ErrNotProcessed(id)
		}
		return nil, err
	}
	s.cache.Put(id, doc)
	return doc, nil
}

func (s *bookService) ownedBook(ctx context.Context, uow unitofwork.UnitOfWork, userId uuid.UUID, id int64) (*entity.Book, error) {
	book, err := uow.BookRepository().FindOne(ctx,
		specification.ByBookID{BookID: id},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, serverutils.ErrNotFound(id, "book")
	}
	return book, nil
}
