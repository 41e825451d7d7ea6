package bootstrap

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"ai-finagent-be/internal/config"
	"ai-finagent-be/internal/controller"
	"ai-finagent-be/internal/handler"
	"ai-finagent-be/internal/pkg/logger"
	"ai-finagent-be/internal/repository/unitofwork"
	"ai-finagent-be/internal/service"
	"ai-finagent-be/internal/websocket"
	"ai-finagent-be/pkg/agent"
	"ai-finagent-be/pkg/cache"
	"ai-finagent-be/pkg/pipeline"
	"ai-finagent-be/pkg/storage"

	pktNats "ai-finagent-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	QueryController controller.IQueryController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService
	ProgressService *service.ProgressService

	// WebSockets
	ProgressHandler *handler.ProgressHandler
	WebSocketHub    *websocket.Hub
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 2.5 Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
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

	// Result cache based on Config
	var resultCache cache.ResultCache
	if cfg.Pipeline.CacheProvider == "memory" {
		resultCache = cache.NewMemoryCache()
		log.Printf("[INFO] Using Result Cache: MEMORY")
	} else {
		resultCache = cache.NewRedisCache(rdb)
		log.Printf("[INFO] Using Result Cache: REDIS")
	}

	// Illustration storage
	imageStorage, err := storage.NewLocalStorage(cfg.App.ImagesDir)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize image storage: %v", err)
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/progress.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// 3. Pipeline
	agentClient := agent.NewHTTPAgentClient(map[agent.Stage]string{
		agent.StageIntention: cfg.Agents.Intention.URL,
		agent.StageRetriever: cfg.Agents.Retriever.URL,
		agent.StageReason:    cfg.Agents.Reason.URL,
		agent.StageWriter:    cfg.Agents.Writer.URL,
		agent.StageDesigner:  cfg.Agents.Designer.URL,
	})

	policies := pipeline.BuildPolicies(map[agent.Stage]pipeline.PolicyKnobs{
		agent.StageIntention: stageKnobs(cfg.Agents.Intention),
		agent.StageRetriever: stageKnobs(cfg.Agents.Retriever),
		agent.StageReason:    stageKnobs(cfg.Agents.Reason),
		agent.StageWriter:    stageKnobs(cfg.Agents.Writer),
		agent.StageDesigner:  stageKnobs(cfg.Agents.Designer),
	})

	publisherService := service.NewPublisherService(cfg.Pipeline.EventTopic, pubSub)
	sessionRecorder := service.NewSessionRecorder(uowFactory)

	executor := pipeline.NewExecutor(
		agentClient,
		resultCache,
		sessionRecorder,
		imageStorage,
		publisherService,
		policies,
		cfg.Pipeline.OverallDeadline,
		cfg.Pipeline.RetrievalTimeBucket,
		initPipelineLogger(),
	)

	consumerService := service.NewConsumerService(
		pubSub,
		cfg.Pipeline.EventTopic,
		natsPub,
	)

	progressService := service.NewProgressService(natsSub, wsHub, wsLogger)
	if natsSub != nil {
		go progressService.Start()
	}

	queryService := service.NewQueryService(uowFactory, executor)

	// Handler
	progressHandler := handler.NewProgressHandler(wsHub, wsLogger)

	sysLogger.Info("Bootstrap", "Container initialized", map[string]interface{}{
		"cache_provider": cfg.Pipeline.CacheProvider,
		"event_topic":    cfg.Pipeline.EventTopic,
	})

	return &Container{
		QueryController: controller.NewQueryController(queryService),

		ConsumerService: consumerService,
		ProgressService: progressService,

		ProgressHandler: progressHandler,
		WebSocketHub:    wsHub,
	}
}

func stageKnobs(sc config.StageConfig) pipeline.PolicyKnobs {
	return pipeline.PolicyKnobs{
		Timeout:   sc.Timeout,
		Retries:   sc.Retries,
		Cacheable: sc.Cacheable,
		TTL:       sc.CacheTTL,
	}
}

func initPipelineLogger() *log.Logger {
	logPath := filepath.Join(".", "logs", "pipeline.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		log.Printf("Failed to create logs directory: %v", err)
	}
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return log.New(os.Stdout, "[PIPELINE] ", log.LstdFlags)
	}
	return log.New(file, "", log.LstdFlags)
}
