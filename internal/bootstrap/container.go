package bootstrap

import (
	"context"
	"log"
	"time"

	"ai-research-be/internal/config"
	"ai-research-be/internal/controller"
	"ai-research-be/internal/pkg/logger"
	"ai-research-be/internal/repository/memory"
	"ai-research-be/internal/repository/unitofwork"
	"ai-research-be/internal/service"
	"ai-research-be/internal/websocket"
	"ai-research-be/pkg/embedding"
	"ai-research-be/pkg/enrichment"
	"ai-research-be/pkg/llm/factory"
	"ai-research-be/pkg/progress"
	"ai-research-be/pkg/research/content"
	"ai-research-be/pkg/research/dispatch"
	"ai-research-be/pkg/research/intent"
	"ai-research-be/pkg/research/quality"

	pkgNats "ai-research-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	ResearchController controller.IResearchController

	// Infrastructure the server and main need to run or shut down.
	WebSocketHub *websocket.Hub
	ProgressBus  *progress.Bus

	// Background workers, started by main.
	NatsForwarder *progress.Forwarder
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. AI providers
	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		embeddingProvider = embedding.NewOllamaProvider(
			cfg.Ai.OllamaBaseURL,
			cfg.Ai.OllamaModel,
		)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.OllamaModel)
	} else {
		embeddingProvider = embedding.NewGeminiProvider(cfg.Keys.GoogleGemini)
		log.Printf("[INFO] Using Embedding Provider: GEMINI")
	}

	llmBaseURL := cfg.Ai.OllamaBaseURL
	if cfg.Ai.LLMProvider == "openai" {
		llmBaseURL = cfg.Ai.OpenAIBaseURL
	}
	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		llmBaseURL,
		cfg.Keys.OpenAI,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// 3. Infrastructure
	natsPub, err := pkgNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}

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

	// 4. Progress pipeline
	watermillLogger := watermill.NewStdLogger(false, false)
	progressBus := progress.NewBus(watermillLogger, sysLogger)

	var forwarder *progress.Forwarder
	if natsPub != nil {
		forwarder = progress.NewForwarder(progressBus, natsPub, sysLogger)
	}

	wsLogger := logger.NewIsolatedLogger("logs/websocket.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// 5. Research pipeline
	sessionRepo := memory.NewSessionRepository()
	contentStore := content.NewStore(uowFactory, embeddingProvider, sysLogger)

	enricher := enrichment.NewPipeline(
		rdb,
		time.Duration(cfg.Research.ScrapeCacheTTLHours)*time.Hour,
		sysLogger,
	)

	gate := quality.NewGate(
		contentStore,
		llmProvider,
		enricher,
		quality.Thresholds{
			MinUniqueDocs:   cfg.Research.MinUniqueDocs,
			MinQualityScore: cfg.Research.MinQualityScore,
			SampleSize:      cfg.Research.QualitySampleSize,
			ProbeLimit:      cfg.Research.QualityProbeLimit,
		},
		sysLogger,
	)

	classifier := intent.NewClassifier(llmProvider, sysLogger)

	dispatcher := dispatch.NewDispatcher(
		llmProvider,
		cfg.Research.MaxWorkers,
		time.Duration(cfg.Research.TaskTimeoutSeconds)*time.Second,
		sysLogger,
	)

	researchService := service.NewResearchService(
		sessionRepo,
		contentStore,
		classifier,
		gate,
		dispatcher,
		llmProvider,
		uowFactory,
		progressBus,
		sysLogger,
	)

	return &Container{
		ResearchController: controller.NewResearchController(researchService),
		WebSocketHub:       wsHub,
		ProgressBus:        progressBus,
		NatsForwarder:      forwarder,
	}
}
