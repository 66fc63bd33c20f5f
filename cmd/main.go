package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/motorly/fleet-alerts/internal/config"
	"github.com/motorly/fleet-alerts/internal/handlers"
	"github.com/motorly/fleet-alerts/internal/ledger"
	"github.com/motorly/fleet-alerts/internal/middleware"
	"github.com/motorly/fleet-alerts/internal/push"
	"github.com/motorly/fleet-alerts/internal/queue"
	"github.com/motorly/fleet-alerts/internal/scanner"
	"github.com/motorly/fleet-alerts/internal/scheduler"
	"github.com/motorly/fleet-alerts/internal/store"
	redisinit "github.com/motorly/fleet-alerts/pkg/redis"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Failed to create logger", err)
	}
	defer logger.Sync()

	if cfg.Cron.Secret == "" {
		logger.Warn("CRON_SECRET not configured, trigger endpoints are open")
	}

	db, err := store.Open(cfg.Postgres.DSN)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	subscriptions := store.NewSubscriptionStore(db)
	documents := store.NewDocumentStore(db)

	redisClient, err := redisinit.InitRedis(cfg.Redis)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	sentLedger := ledger.NewSentLedger(redisClient)

	rabbitClient, err := queue.NewRabbitMqService(cfg.RabbitMQ, logger)
	if err != nil {
		logger.Fatal("failed to connect to rabbitmq", zap.Error(err))
	}
	defer rabbitClient.CloseConnection()
	if err := rabbitClient.SetUpExchangeAndQueue(); err != nil {
		logger.Fatal("failed to set up rabbitmq topology", zap.Error(err))
	}

	engine := push.NewEngine(cfg.Push, logger)
	dispatcher := push.NewBatchDispatcher(engine, logger)
	scan := scanner.NewScanner(documents, subscriptions, dispatcher, sentLedger,
		cfg.Cron.HorizonDays, cfg.App.BaseURL, logger)

	sched := scheduler.NewScheduler(logger)
	sched.Register(scheduler.JobExpiryScan, func(ctx context.Context) (interface{}, error) {
		report, err := scan.Scan(ctx, time.Now())
		return report, err
	})
	reminder := scheduler.NewReminder(subscriptions, dispatcher, cfg.App.BaseURL, logger)
	sched.Register(scheduler.JobDailyReminder, reminder.Run)

	// Delivery worker for queued ad-hoc sends.
	worker := queue.NewPushWorker(subscriptions, dispatcher, logger)
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	go func() {
		if err := rabbitClient.ConsumePush(consumerCtx, worker.Handle); err != nil && consumerCtx.Err() == nil {
			logger.Error("push consumer stopped", zap.Error(err))
		}
	}()

	cronHandler := handlers.NewCronHandler(sched, logger)
	scanHandler := handlers.NewScanHandler(scan, logger)
	notificationHandler := handlers.NewNotificationHandler(rabbitClient, redisClient, logger)
	subscriptionHandler := handlers.NewSubscriptionHandler(subscriptions, cfg.Push.VAPIDPublicKey, logger)
	healthHandler := handlers.NewHealthHandler(db, redisClient, rabbitClient)

	r := gin.New()
	r.Use(gin.Recovery(), middleware.CorrelationID())

	r.GET("/health", healthHandler.HealthCheck)

	api := r.Group("/api")

	cron := api.Group("/cron", middleware.CronAuth(cfg.Cron.Secret))
	cron.POST("", cronHandler.Dispatch)
	cron.POST("/expiry-scan", scanHandler.TriggerScan)
	cron.POST("/notifications/send", notificationHandler.SendPush)

	subs := api.Group("/subscriptions")
	subs.GET("/vapid-key", subscriptionHandler.VapidKey)
	authed := subs.Group("", middleware.UserAuth(cfg.Auth.JWTSecret))
	authed.POST("", subscriptionHandler.Subscribe)
	authed.DELETE("", subscriptionHandler.Unsubscribe)

	api.POST("/me/expiry-scan",
		middleware.UserAuth(cfg.Auth.JWTSecret), scanHandler.TriggerUserScan)

	logger.Info("starting server",
		zap.String("port", cfg.Server.Port),
		zap.Int("horizon_days", cfg.Cron.HorizonDays),
		zap.Ints("thresholds", scanner.Thresholds))
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}
