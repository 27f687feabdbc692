package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/referral-engine/internal/attribution"
	"github.com/ignite/referral-engine/internal/clickqueue"
	"github.com/ignite/referral-engine/internal/config"
	"github.com/ignite/referral-engine/internal/pkg/logger"
	"github.com/ignite/referral-engine/internal/repository/postgres"
	"github.com/ignite/referral-engine/internal/session"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// The worker drains the click-event queue and applies the debounced
// inserts. It shares the session service's apply path with the server's
// in-process mode, so both paths enforce the same debounce window.
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
	if cfg.Queue.ClickQueueURL == "" {
		log.Fatal("SQS_CLICK_QUEUE_URL is required")
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
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
	}

	fp := attribution.NewFingerprinter(cfg.Attribution.FingerprintSalt)
	sessions := session.NewService(
		postgres.NewSessionRepo(db),
		postgres.NewClickRepo(db),
		postgres.NewDirectoryRepo(db),
		fp, redisClient,
		cfg.Attribution.SessionTTL(), cfg.Attribution.ClickDebounce())

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatalf("aws config: %v", err)
	}
	sqsClient := sqs.NewFromConfig(awsCfg)

	ctx, cancel := context.WithCancel(context.Background())
	consumer := clickqueue.NewConsumer(sqsClient, cfg.Queue.ClickQueueURL, sessions)
	consumer.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down click worker...")
	consumer.Stop()
	cancel()
	time.Sleep(time.Second)
}
