package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"petaverse-chat/config"
	"petaverse-chat/internal/handler"
	"petaverse-chat/internal/mail"
	"petaverse-chat/internal/outbox"
	"petaverse-chat/internal/proxy"
	"petaverse-chat/internal/redis"
	"petaverse-chat/internal/repository"
	"petaverse-chat/internal/server"
	"petaverse-chat/internal/services"
	"petaverse-chat/internal/storage"
	"petaverse-chat/internal/websocket"
	"petaverse-chat/pkg/database"
	"petaverse-chat/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.LoadConfig()

	l := logger.New(cfg.AppMode)
	logger.SetGlobalLogger(l)
	defer l.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, l); err != nil {
		l.Logger.Error("server exited", zap.Error(err))
		l.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, l *logger.Logger) error {
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := database.ApplyMigrations(ctx, db)
	if err != nil {
		return err
	}
	if len(applied) > 0 {
		l.Infof("Applied migrations: %v", applied)
	}

	redisClient := redis.NewClient(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()
	if err := redis.Ping(ctx, redisClient); err != nil {
		return err
	}

	roomRepo := repository.NewRoomRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)
	directoryRepo := repository.NewDirectoryRepository(db)

	access := proxy.NewAccessControl(roomRepo, notificationRepo)
	directory := services.NewCachedDirectory(directoryRepo, redis.NewCacheStore(redisClient, cfg.DirectoryCacheTTL), l)
	presence := redis.NewPresenceStore(redisClient, 0)
	realtime := redis.NewRealtimeTransport(redis.NewPublisher(redisClient))
	limiter := redis.NewRateLimiter(redisClient, redis.RateLimitConfig{
		MessageLimit:  cfg.MessageRateLimit,
		MessageWindow: redis.DefaultRateLimitConfig().MessageWindow,
	})

	// Leave the interface nil when SMTP is off so email is simply not applicable.
	var mailer services.Mailer
	if cfg.SMTPEnabled {
		m, err := mail.NewMailer(mail.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
		if err != nil {
			return err
		}
		mailer = m
	}

	var signer handler.AttachmentSigner
	if cfg.S3Enabled() {
		s3Client, err := storage.NewClient(ctx, storage.S3Config{
			Region:     cfg.S3Region,
			Bucket:     cfg.S3Bucket,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
			Endpoint:   cfg.S3Endpoint,
			PresignTTL: cfg.S3PresignTTL,
		})
		if err != nil {
			return err
		}
		signer = s3Client
	}

	dispatcher := services.NewDeliveryDispatcher(realtime, presence, mailer, directory, notificationRepo,
		services.DispatcherConfig{PushTimeout: cfg.PushTimeout}, l)
	reads := services.NewReadTracker(messageRepo, notificationRepo, access, dispatcher, l)
	notifications := services.NewNotificationService(notificationRepo, directory, access, reads, dispatcher, l)
	rooms := services.NewChatRoomManager(roomRepo, messageRepo, directory, access, dispatcher, l)
	messages := services.NewMessageStore(messageRepo, access, reads, dispatcher, notifications,
		services.MessageStoreConfig{NotifyOnMessage: cfg.NotifyOnMessage}, l)
	auth := services.NewAuthService(cfg.JWTSecret)

	hub := websocket.NewHub()
	bridge := websocket.NewRedisBridge(redis.NewSubscriber(redisClient), hub, l)
	wsHandler := websocket.NewHandler(websocket.HandlerDeps{
		Auth:       auth,
		Hub:        hub,
		Authorizer: websocket.NewChannelAuthorizer(access),
		Messages:   messages,
		Reads:      reads,
		Presence:   presence,
		Limiter:    limiter,
	}, l)

	srv := server.New(cfg, l)
	srv.SetupRoutes(&server.Handlers{
		Rooms:         handler.NewRoomHandler(rooms),
		Messages:      handler.NewMessageHandler(messages, reads, signer, l),
		Notifications: handler.NewNotificationHandler(notifications),
		WebSocket:     wsHandler,
	}, server.Dependencies{
		Auth:    auth,
		Limiter: limiter,
		DB:      db,
	})

	outboxRunner := outbox.NewRunner(outbox.DefaultProcessor(outboxRepo, notifications, cfg.OutboxBatchSize, cfg.OutboxInterval, l))
	platformEvents := services.NewPlatformEventConsumer(redis.NewSubscriber(redisClient), notifications, l)
	janitor := services.NewNotificationJanitor(notificationRepo, cfg.NotificationRetention, cfg.JanitorInterval, l)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return bridge.Run(gctx) })
	g.Go(func() error { return outboxRunner.Run(gctx) })
	g.Go(func() error { return platformEvents.Run(gctx) })
	g.Go(func() error { return janitor.Run(gctx) })

	if err := g.Wait(); err != nil {
		return err
	}
	l.Infof("Shutdown complete")
	return nil
}
