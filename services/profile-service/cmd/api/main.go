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
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/floroz/accio/pkg/auth"
	"github.com/floroz/accio/pkg/config"
	pkgdb "github.com/floroz/accio/pkg/database"
	"github.com/floroz/accio/pkg/storage"
	"github.com/floroz/accio/services/profile-service/internal/adapters/api"
	"github.com/floroz/accio/services/profile-service/internal/adapters/database"
	"github.com/floroz/accio/services/profile-service/internal/adapters/events"
	"github.com/floroz/accio/services/profile-service/internal/domain/profiles"
	"github.com/floroz/accio/services/profile-service/migrations"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Load JWT Public Key for token validation
	if cfg.JWTPublicKeyPath == "" {
		logger.Error("ACCIO_JWT_PUBLIC_KEY_PATH is not set")
		os.Exit(1)
	}
	publicKeyPEM, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		logger.Error("Failed to read public key", "path", cfg.JWTPublicKeyPath, "error", err)
		os.Exit(1)
	}
	verifier, err := auth.NewSignerFromPublicKey(publicKeyPEM, cfg.JWTIssuer)
	if err != nil {
		logger.Error("Failed to create token verifier", "error", err)
		os.Exit(1)
	}

	// 2. Postgres
	if cfg.AutoMigrate {
		if err := pkgdb.Migrate(cfg.DatabaseURL, migrations.FS); err != nil {
			logger.Error("Failed to migrate database", "error", err)
			os.Exit(1)
		}
	}
	pool, err := pkgdb.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("Failed to connect to Postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("Postgres Connected")

	// 3. RabbitMQ
	amqpConn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()
	logger.Info("RabbitMQ Connected")

	// 4. Object storage for profile pictures
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

	// 5. Initialize Dependencies
	txManager := pkgdb.NewPostgresTransactionManager(pool, cfg.LockTimeout)
	activityService := profiles.NewService(database.NewActivityRepository(pool), txManager)
	profileService := profiles.NewProfileService(database.NewProfileRepository(pool), photoStore, logger)
	consumer := events.NewItemConsumer(amqpConn, activityService, logger)
	handler := api.NewProfileHandler(activityService, profileService, logger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h2c.NewHandler(handler.Routes(verifier), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting Profile Service API", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return consumer.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Profile Service stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("Profile Service stopped")
}
