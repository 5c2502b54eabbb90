package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ai-bookchat-be/internal/constant"
	"ai-bookchat-be/internal/dto"
	"ai-bookchat-be/internal/entity"
	"ai-bookchat-be/internal/pkg/logger"
	"ai-bookchat-be/internal/pkg/serverutils"
	"ai-bookchat-be/internal/repository/memory"
	"ai-bookchat-be/internal/repository/specification"
	"ai-bookchat-be/internal/repository/unitofwork"
	"ai-bookchat-be/pkg/llm"
	"ai-bookchat-be/pkg/vectorstore"

	"github.com/google/uuid"
)

type IChatService interface {
	CreateSession(ctx context.Context, userId uuid.UUID, req *dto.CreateSessionRequest) (*dto.CreateSessionResponse, error)
	GetAllSessions(ctx context.Context, userId uuid.UUID, bookId int64) ([]*dto.GetAllSessionsResponse, error)
	GetChatHistory(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) ([]*dto.GetChatHistoryResponse, error)
	SendChat(ctx context.Context, userId uuid.UUID, req *dto.SendChatRequest) (*dto.SendChatResponse, error)
	DeleteSession(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) error
}

type chatService struct {
	uowFactory  unitofwork.RepositoryFactory
	resolver    ProviderResolver
	llmProvider llm.LLMProvider
	store       VectorReader
	cache       *vectorstore.MemoryCache
	respCache   *memory.ResponseCache
	topK        int
	log         logger.ILogger
}

func NewChatService(
	uowFactory unitofwork.RepositoryFactory,
	resolver ProviderResolver,
	llmProvider llm.LLMProvider,
	store VectorReader,
	cache *vectorstore.MemoryCache,
	respCache *memory.ResponseCache,
	topK int,
	log logger.ILogger,
) IChatService {
	if topK <= 0 {
		topK = 5
	}
	return &chatService{
		uowFactory:  uowFactory,
		resolver:    resolver,
		llmProvider: llmProvider,
		store:       store,
		cache:       cache,
		respCache:   respCache,
		topK:        topK,
		log:         log,
	}
}

func (s *chatService) CreateSession(ctx context.Context, userId uuid.UUID, req *dto.CreateSessionRequest) (*dto.CreateSessionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	book, err := uow.BookRepository().FindOne(ctx,
		specification.ByBookID{BookID: req.BookId},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, serverutils.ErrNotFound(req.BookId, "book")
	}

	title := req.Title
	if title == "" {
		title = fmt.Sprintf("Chat about %s", book.Title)
	}

	session := entity.ChatSession{
		Id:        uuid.New(),
		UserId:    userId,
		BookId:    req.BookId,
		Title:     title,
		CreatedAt: time.Now(),
	}
	if err := uow.ChatSessionRepository().Create(ctx, &session); err != nil {
		return nil, err
	}

	return &dto.CreateSessionResponse{Id: session.Id}, nil
}

func (s *chatService) GetAllSessions(ctx context.Context, userId uuid.UUID, bookId int64) ([]*dto.GetAllSessionsResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	specs := []specification.Specification{
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "created_at", Desc: true},
	}
	if bookId > 0 {
		specs = append(specs, specification.SessionForBook{BookID: bookId})
	}

	sessions, err := uow.ChatSessionRepository().FindAll(ctx, specs...)
	if err != nil {
		return nil, err
	}

	resp := make([]*dto.GetAllSessionsResponse, len(sessions))
	for i, session := range sessions {
		resp[i] = &dto.GetAllSessionsResponse{
			Id:        session.Id,
			BookId:    session.BookId,
			Title:     session.Title,
			CreatedAt: session.CreatedAt,
			UpdatedAt: session.UpdatedAt,
		}
	}
	return resp, nil
}

func (s *chatService) GetChatHistory(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) ([]*dto.GetChatHistoryResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	if _, err := s.ownedSession(ctx, uow, userId, sessionId); err != nil {
		return nil, err
	}

	messages, err := uow.ChatMessageRepository().FindAll(ctx,
		specification.ByChatSessionID{ChatSessionID: sessionId},
		specification.OrderBy{Field: "created_at", Desc: false},
	)
	if err != nil {
		return nil, err
	}

	resp := make([]*dto.GetChatHistoryResponse, len(messages))
	for i, msg := range messages {
		resp[i] = &dto.GetChatHistoryResponse{
			Id:        msg.Id,
			Role:      msg.Role,
			Chat:      msg.Chat,
			Sources:   msg.Sources,
			Cached:    msg.Cached,
			CreatedAt: msg.CreatedAt,
		}
	}
	return resp, nil
}

func (s *chatService) SendChat(ctx context.Context, userId uuid.UUID, req *dto.SendChatRequest) (*dto.SendChatResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	session, err := s.ownedSession(ctx, uow, userId, req.ChatSessionId)
	if err != nil {
		return nil, err
	}

	answer, sources, cached, err := s.answer(ctx, uow, userId, session, req.Chat)
	if err != nil {
		return nil, err
	}

	userMessage := entity.ChatMessage{
		Id:            uuid.New(),
		Chat:          req.Chat,
		Role:          constant.ChatMessageRoleUser,
		ChatSessionId: session.Id,
		CreatedAt:     time.Now(),
	}
	modelMessage := entity.ChatMessage{
		Id:            uuid.New(),
		Chat:          answer,
		Role:          constant.ChatMessageRoleModel,
		ChatSessionId: session.Id,
		Sources:       sources,
		Cached:        cached,
		CreatedAt:     time.Now(),
	}

	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	if err := uow.ChatMessageRepository().Create(ctx, &userMessage); err != nil {
		return nil, err
	}
	if err := uow.ChatMessageRepository().Create(ctx, &modelMessage); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}

	return &dto.SendChatResponse{
		ChatSessionId:    session.Id,
		ChatSessionTitle: session.Title,
		Sent: &dto.SendChatResponseChat{
			Id:        userMessage.Id,
			Chat:      userMessage.Chat,
			Role:      userMessage.Role,
			CreatedAt: userMessage.CreatedAt,
		},
		Reply: &dto.SendChatResponseChat{
			Id:        modelMessage.Id,
			Chat:      modelMessage.Chat,
			Role:      modelMessage.Role,
			Sources:   modelMessage.Sources,
			Cached:    modelMessage.Cached,
			CreatedAt: modelMessage.CreatedAt,
		},
	}, nil
}

// answer produces the model reply for one question: response cache first,
// then retrieval over the book's vectors and a grounded LLM call.
func (s *chatService) answer(ctx context.Context, uow unitofwork.UnitOfWork, userId uuid.UUID, session *entity.ChatSession, question string) (string, []string, bool, error) {
	if hit, ok := s.respCache.Get(session.BookId, question); ok {
		s.log.Debug("ChatService", "Response cache hit", map[string]interface{}{
			"book_id": session.BookId,
		})
		return hit.Answer, hit.Sources, true, nil
	}

	doc, err := s.loadDocument(session.BookId)
	if err != nil {
		return "", nil, false, err
	}

	provider, err := s.resolver.ProviderFor(ctx, userId)
	if err != nil {
		return "", nil, false, err
	}
	queryVector, err := provider.EmbedQuery(ctx, question)
	if err != nil {
		return "", nil, false, err
	}

	scored, err := vectorstore.RankChunks(queryVector, doc.Vectors)
	if err != nil {
		return "", nil, false, err
	}
	top := vectorstore.TopK(scored, s.topK)

	sources := make([]string, len(top))
	var contextBuilder strings.Builder
	contextBuilder.WriteString(constant.BookChatContextPrompt)
	for i, sc := range top {
		excerpt := doc.Chunks[sc.Index]
		sources[i] = excerpt
		contextBuilder.WriteString(fmt.Sprintf("\n--- EXCERPT %d ---\n%s\n", i+1, excerpt))
	}
	contextBuilder.WriteString("\n=== END EXCERPTS ===\n")

	history, err := s.recentHistory(ctx, uow, session.Id)
	if err != nil {
		return "", nil, false, err
	}

	messages := make([]llm.Message, 0, len(history)+3)
	messages = append(messages, llm.Message{Role: "system", Content: contextBuilder.String()})
	messages = append(messages, llm.Message{Role: "assistant", Content: constant.BookChatInitialModelPrompt})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: "user", Content: question})

	answer, err := s.llmProvider.Chat(ctx, messages)
	if err != nil {
		return "", nil, false, fmt.Errorf("llm chat: %w", err)
	}

	s.respCache.Put(session.BookId, question, &memory.CachedResponse{
		Answer:  answer,
		Sources: sources,
	})

	return answer, sources, false, nil
}

// recentHistory replays the last turns of the session, oldest first.
func (s *chatService) recentHistory(ctx context.Context, uow unitofwork.UnitOfWork, sessionId uuid.UUID) ([]llm.Message, error) {
	recent, err := uow.ChatMessageRepository().FindAll(ctx,
		specification.ByChatSessionID{ChatSessionID: sessionId},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: constant.ChatHistoryLimit, Offset: 0},
	)
	if err != nil {
		return nil, err
	}

	messages := make([]llm.Message, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		role := "user"
		if recent[i].Role == constant.ChatMessageRoleModel {
			role = "assistant"
		}
		messages = append(messages, llm.Message{Role: role, Content: recent[i].Chat})
	}
	return messages, nil
}

func (s *chatService) DeleteSession(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	if _, err := s.ownedSession(ctx, uow, userId, sessionId); err != nil {
		return err
	}

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.ChatMessageRepository().DeleteAllBySessionId(ctx, sessionId); err != nil {
		return err
	}
	if err := uow.ChatSessionRepository().Delete(ctx, sessionId); err != nil {
		return err
	}
	return uow.Commit()
}

func (s *chatService) loadDocument(id int64) (*vectorstore.Document, error) {
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

func (s *chatService) ownedSession(ctx context.Context, uow unitofwork.UnitOfWork, userId uuid.UUID, sessionId uuid.UUID) (*entity.ChatSession, error) {
	session, err := uow.ChatSessionRepository().FindOne(ctx,
		specification.ByID{ID: sessionId},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, serverutils.ErrNotFound(sessionId, "chat session")
	}
	return session, nil
}
