package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"net/http"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/referral-engine/internal/api"
	"github.com/ignite/referral-engine/internal/attribution"
	"github.com/ignite/referral-engine/internal/clickqueue"
	"github.com/ignite/referral-engine/internal/config"
	"github.com/ignite/referral-engine/internal/pkg/logger"
	"github.com/ignite/referral-engine/internal/repository/postgres"
	"github.com/ignite/referral-engine/internal/session"

	_ "github.com/lib/pq" // PostgreSQL driver
)

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactPII(cfg.Logging.RedactEnabled())

	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	if cfg.Attribution.FingerprintSalt == "" {
		log.Fatal("FINGERPRINT_SALT is required")
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	if err := db.Ping(); err != nil {
		log.Fatalf("ping database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			// Debounce fast-path only; the engine runs without it.
			log.Printf("WARN redis unavailable, debounce fast-path disabled: %v", err)
			redisClient = nil
		}
		cancel()
	}

	sessionRepo := postgres.NewSessionRepo(db)
	directoryRepo := postgres.NewDirectoryRepo(db)
	ledgerRepo := postgres.NewLedgerRepo(db)
	clickRepo := postgres.NewClickRepo(db)

	fp := attribution.NewFingerprinter(cfg.Attribution.FingerprintSalt)
	resolver := attribution.NewResolver(sessionRepo, directoryRepo, ledgerRepo, fp, cfg.Attribution.FallbackWindow())
	sessions := session.NewService(sessionRepo, clickRepo, directoryRepo, fp, redisClient,
		cfg.Attribution.SessionTTL(), cfg.Attribution.ClickDebounce())

	if cfg.Queue.ClickQueueURL != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
		if err != nil {
			log.Fatalf("aws config: %v", err)
		}
		sqsClient := sqs.NewFromConfig(awsCfg)
		sessions.SetPublisher(clickqueue.NewSQSPublisher(sqsClient, cfg.Queue.ClickQueueURL))
		log.Printf("click events -> SQS (%s)", cfg.Queue.ClickQueueURL)
	} else {
		sessions.SetPublisher(clickqueue.NewDirectPublisher(sessions))
		log.Println("click events applied in-process (no queue configured)")
	}

	handlers := api.NewHandlers(resolver, sessions, directoryRepo, ledgerRepo,
		cfg.Attribution.CookieName, cfg.Attribution.SessionTTL(), cfg.Attribution.RedirectBaseURL)
	srv := api.NewServer(cfg.Server, handlers)

	go func() {
		log.Printf("referral engine listening on %s", srv.Addr())
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down referral engine...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}
