package bootstrap

import (
	"log"

	"pdf-qa-be/internal/config"
	"pdf-qa-be/internal/controller"
	"pdf-qa-be/internal/pkg/logger"
	"pdf-qa-be/internal/service"
	"pdf-qa-be/pkg/embedding"
	"pdf-qa-be/pkg/engine"
	"pdf-qa-be/pkg/llm/factory"
	"pdf-qa-be/pkg/processor"
	"pdf-qa-be/pkg/session"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type Container struct {
	// Controllers
	DocumentController controller.IDocumentController
	ChatController     controller.IChatController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService
}

func NewContainer(cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. Providers
	embeddingProvider := embedding.NewOllamaProvider(
		cfg.Ai.OllamaBaseURL,
		cfg.Ai.OllamaModel,
	)
	log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.OllamaModel)

	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
		cfg.Ai.GroqAPIKey,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// 4. Session Store (in-memory, single source of truth for live indexes)
	store := session.NewStore(session.Options{
		Logger:   sysLogger,
		MaxTurns: cfg.Rag.HistoryMaxTurns,
	})

	// 5. Domain Components
	textProcessor := processor.NewTextProcessor(embeddingProvider, cfg.Rag.ChunkSize, cfg.Rag.ChunkOverlap, nil)
	answerEngine := engine.NewGenerator(llmProvider, nil)

	// 6. Services
	publisherService := service.NewPublisherService(pubSub, session.LifecycleTopic)
	documentService := service.NewDocumentService(store, textProcessor, publisherService, sysLogger)
	chatService := service.NewChatService(store, answerEngine, sysLogger)
	consumerService := service.NewConsumerService(pubSub, session.LifecycleTopic, sysLogger)

	// 7. Controllers
	return &Container{
		DocumentController: controller.NewDocumentController(documentService),
		ChatController:     controller.NewChatController(chatService),
		ConsumerService:    consumerService,
	}
}
