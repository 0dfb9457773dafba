package main

// @title           Zawj Chat API
// @version         1.0
// @description     Connection-gated one-to-one chat service
// @host            localhost:8080
// @BasePath        /api/v1
// @schemes         http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "zawj-chat/docs"
	"zawj-chat/internal/adapters/kafka"
	"zawj-chat/internal/adapters/storage"
	"zawj-chat/internal/api/middleware"
	"zawj-chat/internal/api/routes"
	"zawj-chat/internal/backend"
	"zawj-chat/internal/config"
	"zawj-chat/internal/database"
	"zawj-chat/internal/realtime"
	"zawj-chat/internal/repositories/postgres"
	"zawj-chat/internal/services"
	"zawj-chat/internal/websocket"
	"zawj-chat/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logg, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatal("Failed to create logger:", err)
	}
	defer logg.Sync()

	logg.Info("Starting chat server", "dbDriver", cfg.Database.Driver, "realtime", cfg.Realtime.Driver)

	db, err := database.NewSQLConnection(cfg.Database, logg)
	if err != nil {
		logg.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db, logg); err != nil {
		logg.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}
	store := postgres.NewStore(db)

	// Redis carries the realtime bus, presence and HTTP rate limits. With the
	// memory driver it is optional.
	var (
		redisClient  *database.RedisClient
		redisService *services.RedisService
		limiter      middleware.Limiter
		presence     websocket.Presence
		bus          realtime.Bus
	)
	redisClient, err = database.NewRedisConnection(cfg.Redis, logg)
	switch {
	case err == nil:
		defer redisClient.Close()
		redisService = services.NewRedisService(redisClient, logg)
		limiter = redisService
		presence = redisService
		if err := redisService.SetMigrationState(context.Background(), "1.0.0", "ready"); err != nil {
			logg.Warn("Failed to set migration state", "error", err)
		}
	case cfg.Realtime.Driver == "redis":
		logg.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	default:
		logg.Warn("Redis unavailable, running without presence and rate limits", "error", err)
	}

	if cfg.Realtime.Driver == "redis" {
		bus = realtime.NewRedisBus(redisClient.GetClient(), logg)
	} else {
		bus = realtime.NewMemoryBus()
	}
	defer bus.Close()

	var backendOpts []backend.Option
	if cfg.Kafka.Enabled() {
		producer, err := kafka.InitKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			logg.Error("Failed to create Kafka producer", "error", err)
			os.Exit(1)
		}
		exporter := kafka.NewEventExporter(producer, cfg.Kafka.Topic, logg)
		defer exporter.Close()
		backendOpts = append(backendOpts, backend.WithSink(exporter))
		logg.Info("Exporting chat events to Kafka", "topic", cfg.Kafka.Topic)
	}
	be := backend.New(store, bus, logg, backendOpts...)

	var presigner services.Presigner
	if cfg.Storage.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		minioClient, err := storage.NewMinIOClient(ctx, cfg.Storage, logg)
		cancel()
		if err != nil {
			logg.Error("Failed to connect to MinIO", "error", err)
			os.Exit(1)
		}
		presigner = minioClient
	}

	loc := cfg.Chat.Location()
	svc := routes.Services{
		Users:         services.NewUserService(store.Users, cfg.JWT.Secret, cfg.JWT.ExpirationTime, logg),
		Conversations: services.NewConversationService(store, loc, logg),
		Connections:   services.NewConnectionService(be, store, logg),
		Blocks:        services.NewBlockService(be, store.Users, logg),
		Attachments:   services.NewAttachmentService(store, presigner),
		Reports:       services.NewReportService(store.Reports, store.Users, logg),
	}

	hub := websocket.NewHub(be, svc.Conversations, presence, websocket.Options{
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		FramesPerSecond: cfg.RateLimit.WSFramesPerSecond,
		Burst:           cfg.RateLimit.WSBurst,
		Location:        loc,
		ResubscribeMin:  cfg.Realtime.ResubscribeMin,
		ResubscribeMax:  cfg.Realtime.ResubscribeMax,
	}, logg)
	go hub.Run()

	health := func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := sqlDB.PingContext(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
		if redisClient != nil {
			if err := redisClient.Ping(ctx); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		return nil
	}

	router := routes.NewRouter(hub, svc, limiter, cfg.JWT.Secret, cfg.Server.AllowedOrigins, health)
	router.SetupRoutes()

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.GetEngine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logg.Info("Server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logg.Info("Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop the hub first so open chats release their subscriptions.
	hub.Stop()

	if err := server.Shutdown(ctx); err != nil {
		logg.Error("Server forced to shutdown", "error", err)
	}

	logg.Info("Server stopped")
}
