// The reply worker drains the inbound chat queue and answers patient texts:
// a clinic short code gets the clinic's queue card, a booking keyword gets
// the booking link, anything else gets the help prompt.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/klinicq/queue-platform/cmd/mainconfig"
	"github.com/klinicq/queue-platform/internal/clinic"
	appconfig "github.com/klinicq/queue-platform/internal/config"
	"github.com/klinicq/queue-platform/internal/events"
	"github.com/klinicq/queue-platform/internal/messaging"
	"github.com/klinicq/queue-platform/internal/messaging/waclient"
	"github.com/klinicq/queue-platform/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.InboundQueueURL == "" {
		logger.Error("reply worker requires INBOUND_QUEUE_URL")
		os.Exit(1)
	}

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	dynamoClient := dynamodb.NewFromConfig(awsCfg)
	clinicStore := clinic.NewStore(dynamoClient, cfg.ClinicsTable, cfg.ClinicCodesTable, logger)
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	directory := clinic.NewDirectory(clinicStore, rdb, logger)

	var sender messaging.TextSender
	if cfg.ChatAccessToken == "" || cfg.ChatPhoneNumberID == "" {
		logger.Warn("chat credentials not configured, using stub sender")
		sender = waclient.NewStubSender(logger)
	} else {
		client, err := waclient.New(waclient.Config{
			BaseURL:       cfg.ChatAPIBaseURL,
			AccessToken:   cfg.ChatAccessToken,
			PhoneNumberID: cfg.ChatPhoneNumberID,
			Timeout:       cfg.ChatSendTimeout,
			MaxRetries:    cfg.ChatMaxRetries,
			Logger:        logger,
		})
		if err != nil {
			logger.Error("failed to create chat client", "error", err)
			os.Exit(1)
		}
		sender = client
	}

	workerOpts := []messaging.WorkerOption{
		messaging.WithWorkerCount(cfg.WorkerCount),
	}
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		workerOpts = append(workerOpts, messaging.WithDedupeStore(events.NewProcessedStore(pool)))
	} else {
		logger.Warn("DATABASE_URL not set; inbound dedupe disabled")
	}

	sqsQueue := messaging.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.InboundQueueURL)
	worker := messaging.NewWorker(sqsQueue, directory, sender, cfg.PublicBaseURL, logger, workerOpts...)
	worker.Start(ctx)
	logger.Info("reply worker started", "workers", cfg.WorkerCount, "queue", cfg.InboundQueueURL)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("reply worker shutting down")
	cancel()
	worker.Wait()
}
