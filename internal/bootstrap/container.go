package bootstrap

import (
	"context"
	"log"

	"ai-docqa-be/internal/config"
	"ai-docqa-be/internal/controller"
	"ai-docqa-be/internal/handler"
	"ai-docqa-be/internal/pkg/logger"
	"ai-docqa-be/internal/repository/implementation"
	"ai-docqa-be/internal/repository/memory"
	"ai-docqa-be/internal/service"
	"ai-docqa-be/internal/websocket"
	"ai-docqa-be/pkg/chunkstore"
	"ai-docqa-be/pkg/embedding"
	"ai-docqa-be/pkg/extract"
	"ai-docqa-be/pkg/ingest"
	"ai-docqa-be/pkg/llm/factory"
	"ai-docqa-be/pkg/pagestore"
	"ai-docqa-be/pkg/rag/router"
	"ai-docqa-be/pkg/vectorindex/pgvector"

	pktNats "ai-docqa-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	DocumentController controller.IDocumentController
	ChatController     controller.IChatController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	// WebSockets
	IngestionHandler *handler.IngestionHandler
	WebSocketHub     *websocket.Hub
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	stdLogger := log.Default()

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. AI Providers
	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "openai" {
		embeddingProvider = embedding.NewOpenAIProvider(cfg.Keys.OpenAI, "")
		log.Printf("[INFO] Using Embedding Provider: OPENAI")
	} else {
		embeddingProvider = embedding.NewOllamaProvider(
			cfg.Ai.OllamaBaseURL,
			cfg.Ai.OllamaModel,
		)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.OllamaModel)
	}

	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.LLMBaseURL,
		cfg.Keys.HF,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// 4. Retrieval Core
	vectorIndex := pgvector.NewIndex(db, embeddingProvider, 0)
	chunkStore := chunkstore.NewStore(vectorIndex, stdLogger)
	pageStore := pagestore.NewStore(cfg.Storage.PageDir)
	filterCfg := pagestore.FilterConfig{
		NumberLineRatio: cfg.Retrieval.NumberLineRatio,
		HTTPOccurrences: cfg.Retrieval.HTTPOccurrences,
	}

	pipeline, err := ingest.NewPipeline(
		chunkStore,
		pageStore,
		filterCfg,
		stdLogger,
		ingest.WithChunkSize(cfg.Retrieval.ChunkSize),
		ingest.WithChunkOverlap(cfg.Retrieval.ChunkOverlap),
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to build ingestion pipeline: %v", err)
	}

	extractor := extract.NewClient(cfg.Ai.ParseServiceURL, cfg.Keys.OpenAI, stdLogger)

	// 5. Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
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
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/ingestion.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// 6. Repositories & Services
	fileRepo := implementation.NewUploadedFileRepository(db)
	taskRepo := memory.NewTaskRepository()

	documentService := service.NewDocumentService(
		fileRepo,
		taskRepo,
		chunkStore,
		pageStore,
		pubSub,
		cfg.Keys.IngestTopic,
		cfg.Storage.UploadDir,
		cfg.App.BaseURL,
		sysLogger,
	)

	queryRouter := router.NewRouter(
		chunkStore,
		pageStore,
		documentService, // serves raw text for the summary fallback
		llmProvider,
		filterCfg,
		stdLogger,
		router.WithTopK(cfg.Retrieval.TopK),
		router.WithSummaryBudget(cfg.Retrieval.SummaryBudget),
	)

	chatService := service.NewChatService(queryRouter, llmProvider, sysLogger)

	consumerService := service.NewConsumerService(
		pubSub,
		cfg.Keys.IngestTopic,
		fileRepo,
		taskRepo,
		documentService,
		extractor,
		pipeline,
		natsPub,
		wsHub,
	)

	ingestionHandler := handler.NewIngestionHandler(wsHub, wsLogger)

	return &Container{
		DocumentController: controller.NewDocumentController(documentService),
		ChatController:     controller.NewChatController(chatService),
		ConsumerService:    consumerService,
		IngestionHandler:   ingestionHandler,
		WebSocketHub:       wsHub,
	}
}
