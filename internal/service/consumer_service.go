package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ai-bookchat-be/internal/config"
	"ai-bookchat-be/internal/dto"
	"ai-bookchat-be/internal/entity"
	"ai-bookchat-be/internal/pkg/logger"
	"ai-bookchat-be/internal/pkg/mailer"
	"ai-bookchat-be/internal/repository/memory"
	"ai-bookchat-be/internal/repository/specification"
	"ai-bookchat-be/internal/repository/unitofwork"
	"ai-bookchat-be/pkg/embedding"
	"ai-bookchat-be/pkg/events"
	pktNats "ai-bookchat-be/pkg/nats"
	"ai-bookchat-be/pkg/pipeline"
	"ai-bookchat-be/pkg/progress"
	"ai-bookchat-be/pkg/utils"
	"ai-bookchat-be/pkg/vectorstore"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// ProviderResolver builds the embedding provider for one book owner.
// Satisfied by embedding.Resolver.
type ProviderResolver interface {
	ProviderFor(ctx context.Context, userID uuid.UUID) (embedding.EmbeddingProvider, error)
}

// VectorStore is the slice of the persistent store the worker needs.
type VectorStore interface {
	Exists(bookID int64) bool
	Save(bookID int64, doc *vectorstore.Document, model string) error
}

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	pubSub         *gochannel.GoChannel
	topicName      string
	uowFactory     unitofwork.RepositoryFactory
	registry       *pipeline.Registry
	resolver       ProviderResolver
	store          VectorStore
	cache          *vectorstore.MemoryCache
	bus            *progress.Bus
	respCache      *memory.ResponseCache
	eventPublisher *pktNats.Publisher
	emailService   mailer.IEmailService
	cfg            config.PipelineConfig
	log            logger.ILogger

	// sem caps how many books embed at once; queued jobs wait here in
	// arrival order.
	sem *semaphore.Weighted
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	registry *pipeline.Registry,
	resolver ProviderResolver,
	store VectorStore,
	cache *vectorstore.MemoryCache,
	bus *progress.Bus,
	respCache *memory.ResponseCache,
	eventPublisher *pktNats.Publisher,
	emailService mailer.IEmailService,
	cfg config.PipelineConfig,
	log logger.ILogger,
) IConsumerService {
	maxBooks := cfg.MaxConcurrentBooks
	if maxBooks <= 0 {
		maxBooks = 1
	}
	return &consumerService{
		pubSub:         pubSub,
		topicName:      topicName,
		uowFactory:     uowFactory,
		registry:       registry,
		resolver:       resolver,
		store:          store,
		cache:          cache,
		bus:            bus,
		respCache:      respCache,
		eventPublisher: eventPublisher,
		emailService:   emailService,
		cfg:            cfg,
		log:            log,
		sem:            semaphore.NewWeighted(int64(maxBooks)),
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			// Acquiring before dispatch keeps jobs starting in arrival
			// order even when the semaphore allows more than one at a time.
			if err := cs.sem.Acquire(ctx, 1); err != nil {
				msg.Nack()
				return
			}
			go func(msg *message.Message) {
				defer cs.sem.Release(1)
				cs.processMessage(ctx, msg)
			}(msg)

			// The channel withholds the next message until this one is
			// acked, so ack on dispatch and let the semaphore bound how
			// many books embed at once. Job outcomes live on the book row,
			// not in redelivery.
			msg.Ack()

			if cs.cfg.DispatchDelayMs > 0 {
				select {
				case <-time.After(time.Duration(cs.cfg.DispatchDelayMs) * time.Millisecond):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PublishEmbedBookMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.log.Error("ConsumerService", "Failed to unmarshal message, dropping", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	job, ok := cs.registry.Get(payload.BookId)
	if !ok {
		// Message outlived its registry entry (restart, replay). Rebuild a
		// job from the payload so tracking and completion still work.
		job = pipeline.NewJob(payload.BookId, payload.UserId, "", payload.Force)
		cs.registry.Add(job)
	}

	err := cs.processBook(ctx, job)

	cs.registry.Remove(job.BookID)
	job.Complete(err)
}

func (cs *consumerService) processBook(ctx context.Context, job *pipeline.Job) error {
	cs.log.Info("ConsumerService", "Processing book", map[string]interface{}{
		"book_id": job.BookID,
		"run_id":  job.RunID,
		"force":   job.Force,
	})

	uow := cs.uowFactory.NewUnitOfWork(ctx)

	book, err := uow.BookRepository().FindOne(ctx, specification.ByBookID{BookID: job.BookID})
	if err != nil {
		return cs.fail(ctx, uow, job, nil, fmt.Errorf("load book: %w", err))
	}
	if book == nil {
		cs.log.Warn("ConsumerService", "Book not found, dropping job", map[string]interface{}{
			"book_id": job.BookID,
		})
		return errors.New("book not found")
	}

	if cs.store.Exists(job.BookID) && !job.Force {
		cs.log.Info("ConsumerService", "Embeddings already stored, skipping", map[string]interface{}{
			"book_id": job.BookID,
		})
		if err := uow.BookRepository().UpdateStatus(ctx, job.BookID, entity.BookStatusCompleted, ""); err != nil {
			cs.log.Warn("ConsumerService", "Failed to confirm completed status", map[string]interface{}{
				"book_id": job.BookID,
				"error":   err.Error(),
			})
		}
		cs.bus.Publish(progress.Event{
			BookID:    job.BookID,
			RunID:     job.RunID,
			Status:    progress.StatusCompleted,
			Processed: book.ChunkCount,
			Total:     book.ChunkCount,
			Message:   "already embedded",
			At:        time.Now(),
		})
		return nil
	}

	if job.Force {
		// A rebuild invalidates any answer derived from the old vectors.
		cs.respCache.Purge(job.BookID)
		cs.cache.Delete(job.BookID)
	}

	text := job.Text
	if text == "" {
		text = book.Content
	}

	if err := uow.BookRepository().UpdateStatus(ctx, job.BookID, entity.BookStatusProcessing, ""); err != nil {
		return cs.fail(ctx, uow, job, book, fmt.Errorf("mark processing: %w", err))
	}

	chunks := utils.SplitText(text, cs.cfg.ChunkSize, cs.cfg.ChunkOverlap)
	words := utils.CountWords(text)
	tokens := utils.EstimateTokens(words)

	cs.log.Info("ConsumerService", "Book chunked", map[string]interface{}{
		"book_id": job.BookID,
		"chunks":  len(chunks),
		"words":   words,
	})

	cs.bus.Publish(progress.Event{
		BookID:    job.BookID,
		RunID:     job.RunID,
		Status:    progress.StatusProcessing,
		Processed: 0,
		Total:     len(chunks),
		At:        time.Now(),
	})

	provider, err := cs.resolver.ProviderFor(ctx, book.UserId)
	if err != nil {
		return cs.fail(ctx, uow, job, book, fmt.Errorf("resolve provider: %w", err))
	}

	batcher := embedding.NewBatchEmbedder(provider, embedding.BatchOptions{
		BatchSize:     cs.cfg.BatchSize,
		MaxConcurrent: cs.cfg.MaxConcurrent,
		DispatchDelay: time.Duration(cs.cfg.BatchDelayMs) * time.Millisecond,
		MaxRetries:    cs.cfg.MaxRetries,
	}, cs.log)

	vectors, err := batcher.EmbedAll(ctx, chunks, func(processed, total int) {
		cs.bus.Publish(progress.Event{
			BookID:    job.BookID,
			RunID:     job.RunID,
			Status:    progress.StatusProcessing,
			Processed: processed,
			Total:     total,
			At:        time.Now(),
		})
	})
	if err != nil {
		return cs.fail(ctx, uow, job, book, fmt.Errorf("embed: %w", err))
	}

	doc := &vectorstore.Document{
		Chunks:     chunks,
		Vectors:    vectors,
		WordCount:  words,
		TokenCount: tokens,
	}

	if err := cs.store.Save(job.BookID, doc, provider.ModelName()); err != nil {
		return cs.fail(ctx, uow, job, book, fmt.Errorf("persist vectors: %w", err))
	}
	cs.cache.Put(job.BookID, doc)

	if err := uow.BookRepository().UpdateCounts(ctx, job.BookID, len(chunks), words, tokens); err != nil {
		return cs.fail(ctx, uow, job, book, fmt.Errorf("update counts: %w", err))
	}
	if err := uow.BookRepository().UpdateStatus(ctx, job.BookID, entity.BookStatusCompleted, ""); err != nil {
		return cs.fail(ctx, uow, job, book, fmt.Errorf("mark completed: %w", err))
	}

	cs.bus.Publish(progress.Event{
		BookID:    job.BookID,
		RunID:     job.RunID,
		Status:    progress.StatusCompleted,
		Processed: len(chunks),
		Total:     len(chunks),
		At:        time.Now(),
	})

	cs.log.Info("ConsumerService", "Book embedded", map[string]interface{}{
		"book_id": job.BookID,
		"chunks":  len(chunks),
		"model":   provider.ModelName(),
	})

	if cs.eventPublisher != nil {
		evt := events.BaseEvent{
			Type: events.TypeBookProcessed,
			Data: map[string]interface{}{
				"book_id": job.BookID,
				"title":   book.Title,
				"user_id": book.UserId.String(),
				"chunks":  len(chunks),
			},
			OccurredAt: time.Now(),
		}
		if err := cs.eventPublisher.Publish(ctx, evt); err != nil {
			cs.log.Warn("ConsumerService", "Failed to publish BOOK_PROCESSED event", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	cs.notifyByEmail(ctx, uow, book, nil)

	return nil
}

// fail records the failure on the book row and fans it out to every surface
// that tracks the run. The returned error is the job's terminal error.
func (cs *consumerService) fail(ctx context.Context, uow unitofwork.UnitOfWork, job *pipeline.Job, book *entity.Book, cause error) error {
	cs.log.Error("ConsumerService", "Book processing failed", map[string]interface{}{
		"book_id": job.BookID,
		"run_id":  job.RunID,
		"error":   cause.Error(),
	})

	if updErr := uow.BookRepository().UpdateStatus(ctx, job.BookID, entity.BookStatusError, cause.Error()); updErr != nil {
		cs.log.Error("ConsumerService", "Failed to record error status", map[string]interface{}{
			"book_id": job.BookID,
			"error":   updErr.Error(),
		})
	}

	cs.bus.Publish(progress.Event{
		BookID:  job.BookID,
		RunID:   job.RunID,
		Status:  progress.StatusError,
		Message: cause.Error(),
		At:      time.Now(),
	})

	if cs.eventPublisher != nil && book != nil {
		evt := events.BaseEvent{
			Type: events.TypeBookProcessingFailed,
			Data: map[string]interface{}{
				"book_id": job.BookID,
				"title":   book.Title,
				"user_id": book.UserId.String(),
				"reason":  cause.Error(),
			},
			OccurredAt: time.Now(),
		}
		if err := cs.eventPublisher.Publish(ctx, evt); err != nil {
			cs.log.Warn("ConsumerService", "Failed to publish BOOK_PROCESSING_FAILED event", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	if book != nil {
		cs.notifyByEmail(ctx, uow, book, cause)
	}

	return cause
}

func (cs *consumerService) notifyByEmail(ctx context.Context, uow unitofwork.UnitOfWork, book *entity.Book, cause error) {
	if cs.emailService == nil {
		return
	}
	owner, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: book.UserId})
	if err != nil || owner == nil {
		return
	}

	go func(email, title string) {
		var sendErr error
		if cause == nil {
			sendErr = cs.emailService.SendBookReady(email, title)
		} else {
			sendErr = cs.emailService.SendBookFailed(email, title, cause.Error())
		}
		if sendErr != nil {
			cs.log.Warn("ConsumerService", "Failed to send status email", map[string]interface{}{
				"error": sendErr.Error(),
			})
		}
	}(owner.Email, book.Title)
}
