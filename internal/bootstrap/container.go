package bootstrap

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"transcript-review-be/internal/config"
	"transcript-review-be/internal/controller"
	"transcript-review-be/internal/handler"
	"transcript-review-be/internal/pkg/logger"
	"transcript-review-be/internal/repository/implementation"
	"transcript-review-be/internal/repository/memory"
	"transcript-review-be/internal/repository/unitofwork"
	"transcript-review-be/internal/service"
	"transcript-review-be/internal/websocket"
	"transcript-review-be/pkg/review/batch"
	reviewsession "transcript-review-be/pkg/review/session"

	pktNats "transcript-review-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ConversationController controller.IConversationController
	RuleController         controller.IRuleController
	ReviewController       controller.IReviewController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	// WebSockets & Notification
	NotificationHandler *handler.NotificationHandler
	WebSocketHub        *websocket.Hub
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

	// Initialize In-Memory Session Storage
	sessionRepo := memory.NewReviewSessionRepository(
		time.Duration(cfg.Review.SessionTTLMinutes)*time.Minute,
		time.Duration(cfg.Review.SweepIntervalMinutes)*time.Minute,
	)
	sessionManager := reviewsession.NewManager(sessionRepo)
	batchManager := batch.NewManager(initBatchLogger())

	// 2.5 Infrastructure (Moved up for dependency injection)
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

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/notification.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// 3. Services
	publisherService := service.NewPublisherService(cfg.Keys.SummaryTopic, pubSub)
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.Keys.SummaryTopic,
		uowFactory,
	)

	conversationService := service.NewConversationService(uowFactory, natsPub)
	ruleService := service.NewRuleService(uowFactory, natsPub)

	reviewService := service.NewReviewService(
		uowFactory,
		sessionManager,
		batchManager,
		publisherService,
		natsPub,
		sysLogger,
	)

	// 3.5 Notification System Infrastructure
	// Notification Domain
	notifRepo := implementation.NewNotificationRepository(db)
	notifService := service.NewNotificationService(notifRepo, natsSub, wsHub, wsLogger) // Hub implements NotificationDelivery

	// Start Service (Worker)
	if natsSub != nil {
		go notifService.Start()
	}

	// Handler
	notifHandler := handler.NewNotificationHandler(notifService, natsPub, wsHub, wsLogger)

	// 4. Controllers
	// Note: We return the container with public fields for the server to register
	return &Container{
		NotificationHandler: notifHandler,
		WebSocketHub:        wsHub,

		ConversationController: controller.NewConversationController(conversationService),
		RuleController:         controller.NewRuleController(ruleService),
		ReviewController:       controller.NewReviewController(reviewService),

		ConsumerService: consumerService,
	}
}

func initBatchLogger() *log.Logger {
	logPath := filepath.Join(".", "logs", "review_batch.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		log.Printf("Failed to create logs directory: %v", err)
	}
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return log.New(os.Stdout, "[BATCH] ", log.LstdFlags)
	}
	return log.New(file, "", log.LstdFlags)
}
