package bootstrap

import (
	"context"
	"log"
	"time"

	"ai-bookchat-be/internal/config"
	"ai-bookchat-be/internal/controller"
	"ai-bookchat-be/internal/handler"
	"ai-bookchat-be/internal/pkg/logger"
	"ai-bookchat-be/internal/pkg/mailer"
	"ai-bookchat-be/internal/repository/implementation"
	"ai-bookchat-be/internal/repository/memory"
	"ai-bookchat-be/internal/repository/unitofwork"
	"ai-bookchat-be/internal/service"
	"ai-bookchat-be/internal/websocket"
	"ai-bookchat-be/pkg/embedding"
	"ai-bookchat-be/pkg/llm/factory"
	pktNats "ai-bookchat-be/pkg/nats"
	"ai-bookchat-be/pkg/pipeline"
	"ai-bookchat-be/pkg/progress"
	"ai-bookchat-be/pkg/vectorstore"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	AuthController controller.IAuthController
	UserController controller.IUserController
	BookController controller.IBookController
	ChatController controller.IChatController
	OpsController  controller.IOpsController

	// Background services (main.go runs these)
	ConsumerService service.IConsumerService

	// WebSockets
	NotificationHandler *handler.NotificationHandler
	ProgressHandler     *handler.ProgressHandler
	WebSocketHub        *websocket.Hub
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	emailService := mailer.NewEmailService(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Email,
		cfg.SMTP.Password,
		cfg.SMTP.Email,
	)

	// 2. Event bus for embedding jobs
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// Embedding resolver: per-user stored keys first, process default second.
	resolver := embedding.NewResolver(embedding.ResolverConfig{
		Provider:      cfg.Ai.EmbeddingProvider,
		Model:         embeddingModelFor(cfg),
		DefaultApiKey: embeddingKeyFor(cfg),
		OllamaBaseURL: cfg.Ai.OllamaBaseURL,
	}, service.NewCredentialStore(uowFactory), sysLogger)
	log.Printf("[INFO] Embedding provider: %s", cfg.Ai.EmbeddingProvider)

	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		llmKeyFor(cfg),
		cfg.Ai.OllamaBaseURL,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM provider: %v", err)
	}
	log.Printf("[INFO] LLM provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// 2.5 Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS publisher: %v", err)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS subscriber: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
		rdb = nil
	}

	// Embedding storage: compressed artifacts on disk, hot documents in memory.
	store, err := vectorstore.NewDiskStore(cfg.Pipeline.EmbeddingsDir, sysLogger)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize embeddings store: %v", err)
	}
	cache := vectorstore.NewMemoryCache(
		cfg.Cache.MaxBooks,
		time.Duration(cfg.Cache.TTLMinutes)*time.Minute,
		time.Duration(cfg.Cache.SweepMinutes)*time.Minute,
	)
	respCache := memory.NewResponseCache(
		time.Duration(cfg.Cache.ResponseTTLHours)*time.Hour,
		cfg.Cache.ResponseMaxEntries,
		sysLogger,
	)

	// Progress fan-out and job tracking
	bus := progress.NewBus(rdb, sysLogger)
	go bus.Run()
	registry := pipeline.NewRegistry()

	// WebSocket hub
	wsLogger := logger.NewIsolatedLogger("logs/notification.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// 3. Services
	publisherService := service.NewPublisherService(cfg.Keys.EmbedTopic, pubSub)
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.Keys.EmbedTopic,
		uowFactory,
		registry,
		resolver,
		store,
		cache,
		bus,
		respCache,
		natsPub,
		emailService,
		cfg.Pipeline,
		sysLogger,
	)

	authService := service.NewAuthService(uowFactory, natsPub)
	userService := service.NewUserService(uowFactory)

	bookService := service.NewBookService(
		uowFactory,
		publisherService,
		registry,
		resolver,
		store,
		cache,
		bus,
		respCache,
		natsPub,
		cfg.Cache.RetrievalTopK,
		sysLogger,
	)

	chatService := service.NewChatService(
		uowFactory,
		resolver,
		llmProvider,
		store,
		cache,
		respCache,
		cfg.Cache.RetrievalTopK,
		sysLogger,
	)

	// 3.5 Notifications
	notifRepo := implementation.NewNotificationRepository(db)
	notifService := service.NewNotificationService(notifRepo, natsSub, wsHub, wsLogger)

	if natsSub != nil {
		go notifService.Start()
	}

	notifHandler := handler.NewNotificationHandler(notifService, wsHub, wsLogger)
	progressHandler := handler.NewProgressHandler(bus, uowFactory, sysLogger)

	// 4. Controllers
	return &Container{
		AuthController: controller.NewAuthController(authService),
		UserController: controller.NewUserController(userService),
		BookController: controller.NewBookController(bookService),
		ChatController: controller.NewChatController(chatService),
		OpsController:  controller.NewOpsController(store, cache, respCache, registry, bus),

		ConsumerService: consumerService,

		NotificationHandler: notifHandler,
		ProgressHandler:     progressHandler,
		WebSocketHub:        wsHub,
	}
}

// embeddingModelFor picks the model name, letting the Ollama-specific
// override win when Ollama is the provider.
func embeddingModelFor(cfg *config.Config) string {
	if cfg.Ai.EmbeddingProvider == embedding.ProviderOllama && cfg.Ai.OllamaEmbedModel != "" {
		return cfg.Ai.OllamaEmbedModel
	}
	return cfg.Ai.EmbeddingModel
}

func embeddingKeyFor(cfg *config.Config) string {
	switch cfg.Ai.EmbeddingProvider {
	case embedding.ProviderGemini:
		return cfg.Keys.GoogleGemini
	case embedding.ProviderJina:
		return cfg.Keys.Jina
	default:
		return cfg.Keys.OpenAI
	}
}

func llmKeyFor(cfg *config.Config) string {
	switch cfg.Ai.LLMProvider {
	case "huggingface":
		return cfg.Keys.HuggingFace
	default:
		return cfg.Keys.OpenAI
	}
}
