package main

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"marketplace-chat/config"
	"marketplace-chat/internal/auth"
	"marketplace-chat/internal/events"
	"marketplace-chat/internal/handler"
	"marketplace-chat/internal/realtime"
	redisstore "marketplace-chat/internal/redis"
	"marketplace-chat/internal/repository"
	"marketplace-chat/internal/server"
	"marketplace-chat/internal/services"
	"marketplace-chat/internal/storage"
	"marketplace-chat/pkg/database"
	"marketplace-chat/pkg/logger"
	"marketplace-chat/pkg/tracing"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()

	appLogger := logger.New(cfg.LogMode)
	logger.SetGlobalLogger(appLogger)
	defer appLogger.Sync()
	zlog := appLogger.Logger

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetry, err := tracing.Setup(ctx, tracing.Config{ServiceName: cfg.ServiceName, Endpoint: cfg.OTLPEndpoint})
	if err != nil {
		zlog.Warn("tracing disabled", zap.Error(err))
	}

	database.Connect(cfg)
	if err := database.RunFullMigration(); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	rdb := redisstore.NewClient(redisstore.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := redisstore.Ping(ctx, rdb); err != nil {
		// sessions, presence and rate limits degrade; the API still serves token auth
		zlog.Warn("redis unreachable at startup", zap.String("addr", cfg.RedisHost+":"+cfg.RedisPort), zap.Error(err))
	}

	userRepo := repository.NewUserRepository(database.DB)
	conversationRepo := repository.NewConversationRepository(database.DB)
	messageRepo := repository.NewMessageRepository(database.DB)
	notificationRepo := repository.NewNotificationRepository(database.DB)

	resolver := auth.NewResolver(
		auth.Step{Provider: auth.NewCookieSessionProvider(cfg.SessionCookie, redisstore.NewSessionStore(rdb, cfg.SessionTTL))},
		auth.Step{Provider: auth.NewTokenSessionProvider(cfg.TokenCookie, cfg.JWTSecret, userRepo), RetryWithBearer: true},
	)

	// presence keys must outlive several ping ticks
	presenceTTL := 5 * time.Minute
	if ttl := 3 * cfg.WSPongTimeout; ttl > presenceTTL {
		presenceTTL = ttl
	}
	presence := redisstore.NewPresenceStore(rdb, presenceTTL)
	hub := realtime.NewHub(presence, zlog)
	go hub.Run(ctx)

	srv := server.New(cfg, appLogger)

	var emitter events.Emitter = hub
	switch strings.ToLower(cfg.FanoutBroker) {
	case "redis":
		emitter = events.NewBrokerEmitter(redisstore.NewPublisher(rdb), events.DefaultRedisChannel)
		startBridge(ctx, events.NewBridge(redisstore.NewSubscriber(rdb), events.DefaultRedisChannel, hub, zlog), zlog)
	case "nats":
		conn, err := events.ConnectNATS(cfg.NATSURL, zlog)
		if err != nil {
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
		subject := cfg.NATSSubject
		if subject == "" {
			subject = events.DefaultNATSSubject
		}
		emitter = events.NewBrokerEmitter(events.NewNATSPublisher(conn), subject)
		startBridge(ctx, events.NewBridge(events.NewNATSSubscriber(conn), subject, hub, zlog), zlog)
		srv.OnShutdown("nats", func(context.Context) error { return drain(conn) })
	case "", "local":
	default:
		zlog.Warn("unknown fanout broker, delivering locally", zap.String("broker", cfg.FanoutBroker))
	}
	notifier := events.NewNotifier(emitter, zlog)

	var (
		presigner services.Presigner
		files     services.FileLocator
	)
	if cfg.S3Enabled() {
		s3Client, err := storage.NewClient(ctx, storage.S3Config{
			Region:     cfg.S3Region,
			Bucket:     cfg.S3Bucket,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
			Endpoint:   cfg.S3Endpoint,
			PublicBase: cfg.S3PublicBase,
			PresignTTL: cfg.S3PresignTTL,
		})
		if err != nil {
			zlog.Warn("attachment storage disabled", zap.Error(err))
		} else {
			presigner = s3Client
			files = s3Client
		}
	}

	conversationService := services.NewConversationService(userRepo, conversationRepo, messageRepo, presence, files)
	notificationService := services.NewNotificationService(notificationRepo, notifier)
	messageService := services.NewMessageService(conversationService, conversationRepo, messageRepo, userRepo, notificationService, notifier, files, cfg.MaxFileSize)
	attachmentService := services.NewAttachmentService(conversationService, presigner, cfg.MaxFileSize)

	handlers := &server.Handlers{
		API: handler.Routes{
			Conversations: handler.NewConversationHandler(conversationService),
			Messages:      handler.NewMessageHandler(messageService, attachmentService),
			Notifications: handler.NewNotificationHandler(notificationService),
		},
		Health: handler.NewHealthHandler(map[string]handler.HealthCheck{
			"database": func(context.Context) error { return database.HealthCheck() },
			"redis":    func(ctx context.Context) error { return redisstore.Ping(ctx, rdb) },
		}),
		Realtime: realtime.NewHandler(hub, resolver, realtime.Options{
			PingInterval:   cfg.WSPingInterval,
			PongTimeout:    cfg.WSPongTimeout,
			AllowedOrigins: cfg.CORSAllowedOrigins,
		}),
	}

	srv.SetupRoutes(handlers, server.Dependencies{
		Resolver: resolver,
		MessageLimiter: redisstore.NewRateLimiter(rdb, redisstore.RateLimitConfig{
			MessageLimit:  cfg.MessageRateLimit,
			MessageWindow: cfg.MessageRateWindow,
		}),
	})

	// registered in start order; they run in reverse
	srv.OnShutdown("tracing", telemetry.Shutdown)
	srv.OnShutdown("database", func(context.Context) error { database.Close(); return nil })
	srv.OnShutdown("redis", func(context.Context) error { return rdb.Close() })
	srv.OnShutdown("realtime", func(context.Context) error { cancel(); return nil })

	if err := srv.Start(); err != nil {
		zlog.Error("server exited", zap.Error(err))
	}
}

// startBridge runs the broker subscription until shutdown. Run resubscribes on
// its own, so it only returns once ctx is done.
func startBridge(ctx context.Context, bridge *events.Bridge, zlog *zap.Logger) {
	go func() {
		if err := bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			zlog.Error("fanout bridge stopped", zap.Error(err))
		}
	}()
}

func drain(conn *nats.Conn) error {
	if conn == nil || conn.IsClosed() {
		return nil
	}
	return conn.Drain()
}
