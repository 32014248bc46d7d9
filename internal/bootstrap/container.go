package bootstrap

import (
	"context"
	"log"
	"time"

	"slingshot-be/internal/config"
	"slingshot-be/internal/controller"
	"slingshot-be/internal/handler"
	"slingshot-be/internal/metrics"
	"slingshot-be/internal/pkg/logger"
	"slingshot-be/internal/pkg/serverutils"
	"slingshot-be/internal/repository/unitofwork"
	"slingshot-be/internal/service"
	"slingshot-be/internal/websocket"
	"slingshot-be/pkg/events"
	"slingshot-be/pkg/ratelimit"
	"slingshot-be/pkg/research/broadcast"
	"slingshot-be/pkg/research/pipeline"
	"slingshot-be/pkg/research/session"
	"slingshot-be/pkg/research/step"
	"slingshot-be/pkg/research/tool"
	"slingshot-be/pkg/research/tool/catalog"

	pktNats "slingshot-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ResearchController  controller.IResearchController
	MacroController     controller.IMacroController
	PortfolioController controller.IPortfolioController
	ToolController      controller.IToolController
	HistoryController   controller.IHistoryController
	HealthController    controller.IHealthController

	// Background Services (Exposed for main.go to run)
	Orchestrator    *pipeline.Orchestrator
	Sessions        *session.Registry
	ConsumerService service.IConsumerService
	Lifecycle       *service.LifecycleService

	// WebSockets
	StreamHandler *handler.StreamHandler
	WebSocketHub  *websocket.Hub

	Logger logger.ILogger

	closers []func()
}

// NewContainer wires the application. db may be nil, in which case sessions
// are not archived and the history endpoint answers 503.
func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	wsLogger := logger.NewIsolatedLogger(cfg.App.WsLogFilePath)
	c := &Container{Logger: sysLogger}

	// 1. Research core
	tools := tool.NewRegistry(cfg.Research.ToolTimeout)
	catalog.RegisterAll(tools, catalog.Options{Latency: cfg.Research.ToolLatency})
	tools.Observe(metrics.ObserveTool)

	executor := step.NewExecutor(tools, step.Policy{
		MinCitations:        cfg.Research.MinCitations,
		RequiredSourceTypes: cfg.Research.RequiredSourceTypes,
	})
	executor.SetConcurrency(cfg.Research.ToolConcurrency)

	sessions := session.NewRegistry(cfg.Research.IdleTTL)
	bus := broadcast.New(cfg.Research.SubscriberBuffer)
	orchestrator := pipeline.New(pipeline.Config{
		RetryBudget: cfg.Research.RetryBudget,
		RetryWait:   cfg.Research.RetryWait,
	}, sessions, bus, executor, sysLogger)
	orchestrator.Observe(metrics.Observer{})

	c.Orchestrator = orchestrator
	c.Sessions = sessions

	// 2. Event Bus (archive hand-off)
	var archive service.IArchiveService
	if db != nil {
		pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
		c.closers = append(c.closers, func() { _ = pubSub.Close() })

		archive = service.NewArchiveService(unitofwork.NewRepositoryFactory(db), sysLogger)
		orchestrator.UseArchive(archive)
		orchestrator.Observe(service.NewPublisherService(cfg.Research.ArchiveTopic, pubSub, sysLogger))
		c.ConsumerService = service.NewConsumerService(pubSub, cfg.Research.ArchiveTopic, archive, sysLogger)
	} else {
		log.Printf("[WARN] DB_CONNECTION_STRING not set, sessions will not be archived")
	}

	// 3. NATS lifecycle events and remote cancellation
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		} else {
			c.closers = append(c.closers, natsPub.Close)
			c.Lifecycle = service.NewLifecycleService(natsPub, orchestrator, sysLogger)
			orchestrator.Observe(c.Lifecycle)
		}

		natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
		} else if c.Lifecycle != nil {
			c.closers = append(c.closers, natsSub.Close)
			// Every instance must see every cancel request, so the consumer is ephemeral.
			if err := natsSub.Subscribe(events.SessionCancel, "", c.Lifecycle.HandleCancel); err != nil {
				log.Printf("[WARN] Failed to subscribe to %s: %v", events.SessionCancel, err)
			}
		} else {
			natsSub.Close()
		}
	}

	// 4. Rate limiting
	var limiter ratelimit.Limiter = ratelimit.NewMemoryLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{Addr: cfg.App.RedisURL}
		}
		rdb := redis.NewClient(opt)
		c.closers = append(c.closers, func() { _ = rdb.Close() })

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if _, err := rdb.Ping(ctx).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v", err)
		}
		cancel()

		limiter = ratelimit.NewFallback(
			ratelimit.NewRedisLimiter(rdb, cfg.RateLimit.Requests, cfg.RateLimit.Window),
			limiter,
			sysLogger,
		)
	}
	limit := serverutils.RateLimitMiddleware(limiter)

	// 5. Services
	researchService := service.NewResearchService(orchestrator, sessions, tools)

	// WebSocket Hub
	wsHub := websocket.NewHub(wsLogger)
	c.WebSocketHub = wsHub
	c.StreamHandler = handler.NewStreamHandler(researchService, wsHub, cfg.Research.CloseGrace, wsLogger)

	// 6. Controllers
	c.ResearchController = controller.NewResearchController(researchService, limit)
	c.MacroController = controller.NewMacroController(researchService, limit)
	c.PortfolioController = controller.NewPortfolioController(researchService, limit)
	c.ToolController = controller.NewToolController(researchService)
	c.HistoryController = controller.NewHistoryController(archive)
	c.HealthController = controller.NewHealthController(researchService, cfg.App.ServiceName)

	return c
}

// Close releases broker and cache connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	_ = c.Logger.Sync()
}
