package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/klinicq/queue-platform/internal/clinic"
	"github.com/klinicq/queue-platform/internal/observability/metrics"
	"github.com/klinicq/queue-platform/pkg/logging"
)

const (
	defaultWorkerCount   = 2
	defaultWaitSeconds   = 2
	defaultBatchSize     = 5
	maxWaitSeconds       = 20
	maxReceiveBatchSize  = 10
	replyTimeoutSeconds  = 10
	deleteTimeoutSeconds = 5
)

// directoryResolver resolves short codes to clinic records.
type directoryResolver interface {
	Resolve(ctx context.Context, code string) (*clinic.Clinic, error)
}

// dedupeStore claims inbound provider message IDs exactly once, so a
// redelivered webhook does not produce a second reply.
type dedupeStore interface {
	MarkProcessed(ctx context.Context, messageID string) (bool, error)
}

// Worker consumes queued inbound messages, classifies them, and replies over
// the text sender.
type Worker struct {
	queue     queueClient
	directory directoryResolver
	sender    TextSender
	processed dedupeStore
	metrics   *metrics.WebhookMetrics
	composer  replyComposer
	logger    *logging.Logger

	cfg workerConfig
	wg  sync.WaitGroup
}

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	processed        dedupeStore
	metrics          *metrics.WebhookMetrics
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the SQS long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// WithDedupeStore enables at-most-once replies across webhook redeliveries.
func WithDedupeStore(store dedupeStore) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.processed = store
	}
}

// WithWorkerMetrics attaches reply outcome counters.
func WithWorkerMetrics(m *metrics.WebhookMetrics) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.metrics = m
	}
}

// NewWorker creates the reply worker. publicBaseURL is the site root used in
// booking links.
func NewWorker(queue queueClient, directory directoryResolver, sender TextSender, publicBaseURL string, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if queue == nil {
		panic("messaging: queue cannot be nil")
	}
	if directory == nil {
		panic("messaging: directory cannot be nil")
	}
	if sender == nil {
		panic("messaging: sender cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Worker{
		queue:     queue,
		directory: directory,
		sender:    sender,
		processed: cfg.processed,
		metrics:   cfg.metrics,
		composer:  replyComposer{baseURL: publicBaseURL},
		logger:    logger,
		cfg:       cfg,
	}
}

// Start launches the consumer goroutines. They run until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all consumer goroutines have exited.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("reply worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("reply worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("failed to receive inbound jobs", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg queueMessage) {
	var payload queuePayload
	if err := json.Unmarshal([]byte(msg.Body), &payload); err != nil {
		w.logger.Error("failed to decode inbound job", "error", err)
		w.deleteMessage(context.Background(), msg.ReceiptHandle)
		return
	}
	if payload.Kind != jobKindInbound || payload.Inbound == nil {
		w.logger.Warn("discarding job of unknown kind", "kind", string(payload.Kind), "job_id", payload.ID)
		w.deleteMessage(context.Background(), msg.ReceiptHandle)
		return
	}

	inbound := *payload.Inbound

	if w.processed != nil && inbound.MessageID != "" {
		claimed, err := w.processed.MarkProcessed(ctx, inbound.MessageID)
		if err != nil {
			w.logger.Warn("dedupe check failed, processing anyway", "error", err, "message_id", inbound.MessageID)
		} else if !claimed {
			w.logger.Info("skipping redelivered message", "message_id", inbound.MessageID, "job_id", payload.ID)
			w.deleteMessage(context.Background(), msg.ReceiptHandle)
			return
		}
	}

	kind, code := classify(inbound.Text)
	body := w.composeReply(ctx, kind, code)

	replyCtx, cancel := context.WithTimeout(ctx, replyTimeoutSeconds*time.Second)
	err := w.sender.SendText(replyCtx, inbound.From, body)
	cancel()

	if err != nil {
		w.logger.Error("failed to send reply", "error", err, "intent", string(kind), "job_id", payload.ID)
		w.metrics.ObserveReply(string(kind), "failed")
	} else {
		w.logger.Info("replied to inbound message", "intent", string(kind), "job_id", payload.ID)
		w.metrics.ObserveReply(string(kind), "sent")
	}

	// The dedupe row is already claimed, so a redelivery would be skipped
	// anyway. Delete rather than letting a failed send loop forever.
	w.deleteMessage(context.Background(), msg.ReceiptHandle)
}

func (w *Worker) composeReply(ctx context.Context, kind intent, code string) string {
	switch kind {
	case intentClinicCode:
		cl, err := w.directory.Resolve(ctx, code)
		if err != nil {
			if errors.Is(err, clinic.ErrCodeNotFound) || errors.Is(err, clinic.ErrMalformedCode) {
				return w.composer.unknownCode(code)
			}
			w.logger.Error("short code lookup failed", "error", err, "code", code)
			return w.composer.lookupUnavailable()
		}
		return w.composer.clinicDirectory(cl)
	case intentBooking:
		return w.composer.bookingPrompt()
	default:
		return w.composer.help()
	}
}

func (w *Worker) deleteMessage(ctx context.Context, receiptHandle string) {
	if receiptHandle == "" {
		return
	}

	deleteCtx, cancel := context.WithTimeout(ctx, deleteTimeoutSeconds*time.Second)
	defer cancel()

	if err := w.queue.Delete(deleteCtx, receiptHandle); err != nil {
		w.logger.Error("failed to delete inbound job", "error", err)
	}
}
