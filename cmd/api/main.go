package main

import (
	"context"
	"crypto/tls"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/klinicq/queue-platform/cmd/mainconfig"
	"github.com/klinicq/queue-platform/internal/api/router"
	"github.com/klinicq/queue-platform/internal/appointment"
	"github.com/klinicq/queue-platform/internal/clinic"
	appconfig "github.com/klinicq/queue-platform/internal/config"
	"github.com/klinicq/queue-platform/internal/events"
	"github.com/klinicq/queue-platform/internal/http/handlers"
	"github.com/klinicq/queue-platform/internal/messaging"
	"github.com/klinicq/queue-platform/internal/messaging/waclient"
	"github.com/klinicq/queue-platform/internal/notify"
	"github.com/klinicq/queue-platform/internal/observability/metrics"
	"github.com/klinicq/queue-platform/internal/queue"
	"github.com/klinicq/queue-platform/internal/redislock"
	"github.com/klinicq/queue-platform/internal/reminder"
	"github.com/klinicq/queue-platform/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting klinicq API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	if err := validateQueueConfig(cfg); err != nil {
		logger.Error("invalid queue configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	dynamoClient := dynamodb.NewFromConfig(awsCfg)

	rdb := newRedisClient(cfg)
	pool := connectPostgresPool(ctx, cfg.DatabaseURL, logger)
	if pool != nil {
		defer pool.Close()
	}

	registry := prometheus.NewRegistry()
	queueMetrics := metrics.NewQueueMetrics(registry)
	reminderMetrics := metrics.NewReminderMetrics(registry)
	webhookMetrics := metrics.NewWebhookMetrics(registry)

	// Queue engine
	clinicStore := clinic.NewStore(dynamoClient, cfg.ClinicsTable, cfg.ClinicCodesTable, logger)
	directory := clinic.NewDirectory(clinicStore, rdb, logger)
	apptStore := appointment.NewStore(dynamoClient, cfg.AppointmentsTable, logger)
	allocator := queue.NewAllocator(dynamoClient, cfg.AppointmentsTable, logger,
		queue.WithMaxRetries(cfg.AllocateMaxRetries),
		queue.WithQueueMetrics(queueMetrics),
	)
	bookingService := appointment.NewService(clinicStore, allocator, apptStore, cfg.DefaultSessionStride, logger)

	// Outbound chat channel
	sender := newChatSender(cfg, logger)

	// Reminder dispatch
	locker := redislock.NewLocker(rdb, cfg.ReminderLockTTL, logger)
	dispatcherOpts := []reminder.Option{
		reminder.WithSendTimeout(cfg.ReminderSendTimeout),
		reminder.WithMetrics(reminderMetrics),
	}
	if pool != nil {
		dispatcherOpts = append(dispatcherOpts, reminder.WithDispatchLog(reminder.NewDispatchLog(pool)))
	}
	if opsNotifier := newOpsNotifier(cfg, awsCfg, logger); opsNotifier != nil {
		dispatcherOpts = append(dispatcherOpts, reminder.WithNotifier(opsNotifier))
	}
	dispatcher := reminder.NewDispatcher(clinicStore, apptStore, sender, locker, logger, dispatcherOpts...)

	// Inbound chat pipeline. The SQS queue is drained by the reply-worker
	// binary; the in-memory queue has no other process, so consume inline.
	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()

	var publisher *messaging.Publisher
	var worker *messaging.Worker
	if cfg.UseMemoryQueue {
		memQueue := messaging.NewMemoryQueue(100)
		publisher = messaging.NewPublisher(memQueue, logger)
		workerOpts := []messaging.WorkerOption{
			messaging.WithWorkerCount(cfg.WorkerCount),
			messaging.WithWorkerMetrics(webhookMetrics),
		}
		if pool != nil {
			workerOpts = append(workerOpts, messaging.WithDedupeStore(events.NewProcessedStore(pool)))
		}
		worker = messaging.NewWorker(memQueue, directory, sender, cfg.PublicBaseURL, logger, workerOpts...)
		worker.Start(workerCtx)
	} else {
		sqsQueue := messaging.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.InboundQueueURL)
		publisher = messaging.NewPublisher(sqsQueue, logger)
	}

	webhookOpts := []messaging.HandlerOption{messaging.WithWebhookMetrics(webhookMetrics)}
	if cfg.ChatAppSecret != "" {
		webhookOpts = append(webhookOpts, messaging.WithAppSecret(cfg.ChatAppSecret))
	}
	chatWebhook := messaging.NewHandler(cfg.ChatVerifyToken, publisher, logger, webhookOpts...)

	// Health checks
	health := handlers.NewHealthHandler(logger)
	health.AddCheck("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	if pool != nil {
		health.AddCheck("postgres", pool.Ping)
	}

	// Setup router
	routerCfg := &router.Config{
		Logger:             logger,
		Appointments:       handlers.NewAppointmentsHandler(bookingService, apptStore, logger),
		Directory:          handlers.NewDirectoryHandler(directory, logger),
		ClinicAdmin:        clinic.NewHandler(clinicStore, directory, logger),
		ChatWebhook:        chatWebhook,
		Reminders:          handlers.NewRemindersHandler(dispatcher, logger),
		DispatchStats:      handlers.NewDispatchStatsHandler(registry, logger),
		Health:             health,
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		SchedulerSecret:    cfg.SchedulerSecret,
		CORSAllowedOrigins: corsOrigins(cfg),
		AdminRatePerSecond: 5,
		AdminBurst:         10,
	}
	r := router.New(routerCfg)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	stopWorker()
	if worker != nil {
		worker.Wait()
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// newRedisClient builds the shared Redis client for the short-code cache and
// the dispatcher run locks.
// validateQueueConfig rejects startup configurations the inbound chat queue
// wiring cannot satisfy.
func validateQueueConfig(cfg *appconfig.Config) error {
	if !cfg.UseMemoryQueue && cfg.InboundQueueURL == "" {
		return errors.New("INBOUND_QUEUE_URL is required unless USE_MEMORY_QUEUE is set")
	}
	return nil
}

func newRedisClient(cfg *appconfig.Config) *redis.Client {
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return redis.NewClient(opts)
}

// connectPostgresPool connects the pgx pool for the dispatch log and the
// inbound dedupe ledger. Without DATABASE_URL those features stay off and
// the pool is nil.
func connectPostgresPool(ctx context.Context, databaseURL string, logger *logging.Logger) *pgxpool.Pool {
	if strings.TrimSpace(databaseURL) == "" {
		logger.Warn("DATABASE_URL not set; dispatch log and inbound dedupe disabled")
		return nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		os.Exit(1)
	}
	return pool
}

// newChatSender returns the WhatsApp client when credentials are configured
// and the logging stub otherwise.
func newChatSender(cfg *appconfig.Config, logger *logging.Logger) messaging.TextSender {
	if cfg.ChatAccessToken == "" || cfg.ChatPhoneNumberID == "" {
		logger.Warn("chat credentials not configured, using stub sender")
		return waclient.NewStubSender(logger)
	}
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
	return client
}

// newOpsNotifier wires the dispatch-report email, preferring SendGrid and
// falling back to SES. Nil when no recipient is configured.
func newOpsNotifier(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) *notify.Service {
	if cfg.OpsReportEmail == "" {
		return nil
	}
	var sender notify.EmailSender
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		sender = sg
	} else if cfg.SESFromEmail != "" {
		sender = notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
		}, logger)
	} else {
		sender = notify.NewStubEmailSender(logger)
	}
	return notify.NewService(sender, strings.Split(cfg.OpsReportEmail, ","), logger)
}

func corsOrigins(cfg *appconfig.Config) []string {
	if cfg.PublicBaseURL == "" {
		return nil
	}
	return []string{cfg.PublicBaseURL}
}
