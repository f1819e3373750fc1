package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"biblo-chat-be/internal/config"
	"biblo-chat-be/internal/controller"
	"biblo-chat-be/internal/handler"
	"biblo-chat-be/internal/pkg/logger"
	"biblo-chat-be/internal/repository/contract"
	"biblo-chat-be/internal/repository/implementation"
	"biblo-chat-be/internal/repository/memory"
	"biblo-chat-be/internal/service"
	"biblo-chat-be/internal/websocket"
	"biblo-chat-be/pkg/classifier"
	"biblo-chat-be/pkg/embedding"
	"biblo-chat-be/pkg/embedding/jina"
	"biblo-chat-be/pkg/llm/factory"
	pktNats "biblo-chat-be/pkg/nats"
	"biblo-chat-be/pkg/rag/prompt"
	"biblo-chat-be/pkg/rag/search"
	sessionEvents "biblo-chat-be/pkg/session/events"
	"biblo-chat-be/pkg/store"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	Logger        logger.ILogger
	SessionLogger logger.ILogger

	// Controllers & Handlers
	SessionController controller.ISessionController
	ChatHandler       *handler.ChatHandler

	// Background Services (Exposed for main.go to run). ConsumerService is nil without a database.
	SessionService  service.ISessionService
	ConsumerService service.IConsumerService
	WebSocketHub    *websocket.Hub

	closers []func()
}

// NewContainer wires every component. db may be nil; the knowledge base and the
// session archive are then disabled.
func NewContainer(db *gorm.DB, cfg *config.Config, sysLogger logger.ILogger) (*Container, error) {
	c := &Container{
		Logger:        sysLogger,
		SessionLogger: logger.NewIsolatedLogger(cfg.App.SessionLogFilePath),
	}

	// 1. Session storage
	sessionRepo := memory.NewSessionRepository(memory.SessionRepositoryConfig{
		TTL:           cfg.Session.TTL,
		SweepInterval: cfg.Session.SweepInterval,
		Session: store.Options{
			History: store.HistoryLimits{
				MaxMessages: cfg.Session.HistoryMaxTurns * 2,
				MaxChars:    cfg.Session.HistoryMaxChars,
			},
			Pairing: pairingFrom(cfg.Session.ChatLogPairing),
		},
	})

	// 2. AI collaborators
	embeddingProvider := newEmbeddingProvider(cfg, sysLogger)
	domainClassifier := newClassifier(cfg, sysLogger)

	llmProvider, err := factory.NewLLMProvider(factory.Settings{
		Provider:    cfg.Ai.LLMProvider,
		Model:       cfg.Ai.LLMModel,
		BaseURL:     llmBaseURL(cfg),
		APIKey:      llmAPIKey(cfg),
		Temperature: cfg.Ai.LLMTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize LLM provider: %w", err)
	}
	sysLogger.Info("BOOTSTRAP", "LLM provider ready", map[string]interface{}{
		"provider": cfg.Ai.LLMProvider,
		"model":    cfg.Ai.LLMModel,
	})

	var chunks contract.KnowledgeChunkRepository
	var archive contract.SessionLogRepository
	if db != nil {
		chunks = implementation.NewKnowledgeChunkRepository(db)
		archive = implementation.NewSessionLogRepository(db)
	} else {
		sysLogger.Warn("BOOTSTRAP", "No database configured, retrieval and session archive disabled", nil)
	}
	retriever := search.NewRetriever(embeddingProvider, chunks, cfg.Ai.RetrievalTopK, sysLogger)
	if chunks != nil {
		checkCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		empty, err := retriever.EmptyCollections(checkCtx)
		cancel()
		if err != nil {
			sysLogger.Warn("BOOTSTRAP", "Could not inspect knowledge collections", map[string]interface{}{"error": err.Error()})
		} else if len(empty) > 0 {
			sysLogger.Warn("BOOTSTRAP", "Knowledge collections are empty, answers will have no context", map[string]interface{}{"collections": empty})
		}
	}

	// 3. Event Bus
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermill.NewStdLogger(false, false),
	)
	c.closers = append(c.closers, func() { _ = pubSub.Close() })
	publisherService := service.NewPublisherService(cfg.Session.ArchiveTopicName, pubSub)
	if archive != nil {
		c.ConsumerService = service.NewConsumerService(pubSub, cfg.Session.ArchiveTopicName, archive, sysLogger)
	}

	var sink sessionEvents.EventSink
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			sysLogger.Warn("BOOTSTRAP", "Failed to connect to NATS, domain events disabled", map[string]interface{}{"error": err.Error()})
		} else {
			sink = natsPub
			c.closers = append(c.closers, natsPub.Close)
		}
	}
	eventPublisher := sessionEvents.NewNatsPublisher(sink, sysLogger)

	// 4. Liveness hub (Redis only when several instances share sessions' sockets)
	rdb := newRedis(cfg.App.RedisURL, sysLogger)
	if rdb != nil {
		c.closers = append(c.closers, func() { _ = rdb.Close() })
	}

	var sessionService service.ISessionService
	hub := websocket.NewHub(rdb, func(id string) bool { return sessionService.Touch(id) }, sysLogger)
	c.WebSocketHub = hub

	// 5. Services
	sessionService = service.NewSessionService(
		sessionRepo,
		archive,
		publisherService,
		eventPublisher,
		hub,
		sysLogger,
		c.SessionLogger,
	)
	c.SessionService = sessionService

	chatbotService := service.NewChatbotService(
		sessionRepo,
		domainClassifier,
		retriever,
		llmProvider,
		prompt.NewBuilder(),
		sysLogger,
	)

	// 6. Controllers
	c.SessionController = controller.NewSessionController(sessionService)
	c.ChatHandler = handler.NewChatHandler(chatbotService, sessionService, hub, sysLogger)

	return c, nil
}

// Close releases connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	_ = c.SessionLogger.Sync()
}

func pairingFrom(s string) store.ChatLogPairing {
	if s == "role" {
		return store.PairByRole
	}
	return store.PairByPosition
}

func newEmbeddingProvider(cfg *config.Config, log logger.ILogger) embedding.EmbeddingProvider {
	provider := strings.ToLower(cfg.Ai.EmbeddingProvider)
	log.Info("BOOTSTRAP", "Using embedding provider", map[string]interface{}{"provider": provider})

	switch provider {
	case "ollama":
		return embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.OllamaModel)
	case "gemini":
		return embedding.NewGeminiProvider(cfg.Keys.GoogleGemini)
	case "jina":
		return jina.NewJinaProvider(cfg.Keys.Jina)
	default:
		return embedding.NewHuggingFaceProvider(cfg.Keys.HuggingFace, cfg.Ai.EmbeddingModel)
	}
}

func newClassifier(cfg *config.Config, log logger.ILogger) classifier.Classifier {
	if strings.ToLower(cfg.Ai.ClassifierProvider) == "keyword" || cfg.Keys.HuggingFace == "" {
		log.Info("BOOTSTRAP", "Using keyword classifier", nil)
		return classifier.NewKeywordClassifier()
	}
	log.Info("BOOTSTRAP", "Using Hugging Face classifier", map[string]interface{}{"model": cfg.Ai.ClassifierModel})
	return classifier.NewHuggingFaceClassifier(cfg.Keys.HuggingFace, "", cfg.Ai.ClassifierModel)
}

func llmAPIKey(cfg *config.Config) string {
	switch strings.ToLower(cfg.Ai.LLMProvider) {
	case "huggingface":
		return cfg.Keys.HuggingFace
	case "openai":
		return cfg.Keys.OpenAI
	default:
		return ""
	}
}

func llmBaseURL(cfg *config.Config) string {
	if cfg.Ai.LLMBaseURL == "" && strings.ToLower(cfg.Ai.LLMProvider) == "ollama" {
		return cfg.Ai.OllamaBaseURL
	}
	return cfg.Ai.LLMBaseURL
}

func newRedis(url string, log logger.ILogger) *redis.Client {
	if url == "" {
		return nil
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Warn("BOOTSTRAP", "Failed to parse Redis URL, using it as address", map[string]interface{}{"error": err.Error()})
		opt = &redis.Options{Addr: url}
	}
	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("BOOTSTRAP", "Failed to connect to Redis, liveness fan-out is local only", map[string]interface{}{"error": err.Error()})
		_ = rdb.Close()
		return nil
	}
	return rdb
}
