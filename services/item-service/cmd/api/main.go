package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/floroz/accio/pkg/auth"
	"github.com/floroz/accio/pkg/config"
	pkgdb "github.com/floroz/accio/pkg/database"
	"github.com/floroz/accio/pkg/storage"
	"github.com/floroz/accio/services/item-service/internal/adapters/api"
	"github.com/floroz/accio/services/item-service/internal/adapters/database"
	"github.com/floroz/accio/services/item-service/internal/adapters/events"
	redisadapter "github.com/floroz/accio/services/item-service/internal/adapters/redis"
	"github.com/floroz/accio/services/item-service/internal/adapters/vision"
	"github.com/floroz/accio/services/item-service/internal/domain/analysis"
	"github.com/floroz/accio/services/item-service/internal/domain/bids"
	"github.com/floroz/accio/services/item-service/internal/domain/chat"
	"github.com/floroz/accio/services/item-service/internal/domain/items"
	"github.com/floroz/accio/services/item-service/migrations"
)

const (
	visionTimeout   = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid config", "error", err)
		os.Exit(1)
	}
	if cfg.RedisAddr == "" || cfg.JWTPublicKeyPath == "" {
		logger.Error("ACCIO_REDIS_ADDR and ACCIO_JWT_PUBLIC_KEY_PATH must be set")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Postgres
	if cfg.AutoMigrate {
		if err := pkgdb.Migrate(cfg.DatabaseURL, migrations.FS); err != nil {
			logger.Error("Failed to migrate database", "error", err)
			os.Exit(1)
		}
		logger.Info("Migrations applied")
	}

	pool, err := pkgdb.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("Failed to connect to Postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("Postgres Connected")

	// 2. RabbitMQ
	amqpConn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()
	logger.Info("RabbitMQ Connected")

	producer, err := events.NewItemEventsProducer(pool, amqpConn, events.RelayOptions{
		BatchSize:   cfg.RelayBatch,
		Interval:    cfg.RelayInterval,
		LockTimeout: cfg.LockTimeout,
	}, logger)
	if err != nil {
		logger.Error("Failed to create producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	// 3. Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	logger.Info("Redis Connected")

	// 4. Object storage
	s3Client, err := storage.NewS3Client(ctx, cfg.S3)
	if err != nil {
		logger.Error("Failed to create S3 client", "error", err)
		os.Exit(1)
	}
	photoStore, err := storage.NewS3PhotoStore(s3Client, cfg.S3.Bucket, cfg.S3.PublicBaseURL)
	if err != nil {
		logger.Error("Failed to create photo store", "error", err)
		os.Exit(1)
	}

	// 5. Token verification
	publicKey, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		logger.Error("Failed to read JWT public key", "error", err)
		os.Exit(1)
	}
	verifier, err := auth.NewSignerFromPublicKey(publicKey, cfg.JWTIssuer)
	if err != nil {
		logger.Error("Failed to create token verifier", "error", err)
		os.Exit(1)
	}

	// 6. Image analysis
	gemini, err := vision.NewGeminiClient(ctx, cfg.Vision.Endpoint, cfg.Vision.Model, cfg.Vision.APIKey, visionTimeout)
	if err != nil {
		logger.Error("Failed to create image analysis client", "error", err)
		os.Exit(1)
	}

	// 7. Repositories and services
	txManager := pkgdb.NewPostgresTransactionManager(pool, cfg.LockTimeout)
	itemRepo := database.NewPostgresItemRepository(pool)
	outboxRepo := database.NewPostgresOutboxRepository(pool)
	ledgerRepo := database.NewPostgresLedgerRepository(pool)
	messageRepo := database.NewPostgresMessageRepository(pool)

	itemService := items.NewService(txManager, itemRepo, outboxRepo, ledgerRepo, photoStore, cfg.WatchInterval, logger)
	bidValidator := bids.NewValidator(txManager, itemRepo, ledgerRepo)
	commitService := bids.NewCommitService(bidValidator, ledgerRepo, logger)
	analysisService := analysis.NewService(gemini)
	chatService := chat.NewService(messageRepo, redisadapter.NewChatBroadcaster(rdb, logger), logger)

	handler := api.NewHandler(itemService, bidValidator, commitService, analysisService, chatService, logger)

	// Use h2c for HTTP/2 without TLS (common for internal services / local dev)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h2c.NewHandler(handler.Routes(verifier), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting Item Service API", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting Outbox Relay...")
		return producer.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Item Service stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("Item Service stopped")
}
