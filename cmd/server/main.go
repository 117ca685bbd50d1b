package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/cascadefinds/comms/internal/api"
	"github.com/cascadefinds/comms/internal/config"
	"github.com/cascadefinds/comms/internal/db"
	"github.com/cascadefinds/comms/internal/observ"
	"github.com/cascadefinds/comms/internal/realtime"
	"github.com/cascadefinds/comms/internal/repository/postgres"
	"github.com/cascadefinds/comms/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	// Startup has no parent deadline; request contexts take over once
	// the server is running.
	ctx := context.Background()

	if err := db.Migrate(cfg.DatabaseURL, logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	database, err := db.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	bus, err := realtime.NewBus(ctx, cfg.RedisURL, logger)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer bus.Close()

	pool := database.Pool()
	channelRepo := postgres.NewChannelStore(pool)
	participantRepo := postgres.NewParticipantStore(pool)
	messageRepo := postgres.NewMessageStore(pool)
	notificationRepo := postgres.NewNotificationStore(pool)
	userRepo := postgres.NewUserStore(pool)

	channelSvc := service.NewChannelService(channelRepo, participantRepo, messageRepo, notificationRepo, logger)
	messageSvc := service.NewMessageService(messageRepo, channelRepo, participantRepo, notificationRepo, userRepo, bus, logger)
	announcementSvc := service.NewAnnouncementService(messageSvc, messageRepo, channelRepo, participantRepo, notificationRepo, logger)
	commSvc := service.NewCommunicationService(channelSvc, channelRepo, notificationRepo, logger)

	hub := realtime.NewHub()
	defer hub.Close()

	subCtx, cancelSub := context.WithCancel(ctx)
	defer cancelSub()
	go bus.Subscribe(subCtx, hub)

	wsHandler := realtime.NewHandler(hub, channelSvc, logger)

	router := api.NewRouter(api.Handlers{
		Auth:          api.NewAuthHandler(userRepo, cfg.JWTSecret, logger),
		Users:         api.NewUserHandler(userRepo, logger),
		Channels:      api.NewChannelHandler(channelSvc, commSvc, logger),
		Messages:      api.NewMessageHandler(messageSvc, logger),
		Announcements: api.NewAnnouncementHandler(announcementSvc, logger),
		Notifications: api.NewNotificationHandler(commSvc, logger),
		ServeWS:       wsHandler.ServeWS,
		DB:            database,
		Redis:         bus,
	}, cfg.JWTSecret)

	logger.Info("starting comms server",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
	)

	return router.Run(":" + cfg.Port)
}
