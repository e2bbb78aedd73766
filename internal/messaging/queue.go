package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/klinicq/queue-platform/pkg/logging"
)

type queueClient interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

type jobKind string

const jobKindInbound jobKind = "inbound_message.v1"

type queuePayload struct {
	ID      string          `json:"id"`
	Kind    jobKind         `json:"kind"`
	Inbound *InboundMessage `json:"inbound,omitempty"`
}

func encodePayload(payload queuePayload) (queuePayload, string, error) {
	if payload.ID == "" {
		payload.ID = uuid.NewString()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return queuePayload{}, "", fmt.Errorf("messaging: encode payload: %w", err)
	}

	return payload, string(body), nil
}

// Publisher enqueues inbound messages for the reply worker.
type Publisher struct {
	queue  queueClient
	logger *logging.Logger
}

// NewPublisher creates a publisher over the given queue.
func NewPublisher(queue queueClient, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("messaging: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, logger: logger}
}

// PublishInbound queues one inbound message job.
func (p *Publisher) PublishInbound(ctx context.Context, msg InboundMessage) error {
	payload, body, err := encodePayload(queuePayload{Kind: jobKindInbound, Inbound: &msg})
	if err != nil {
		return err
	}

	if err := p.queue.Send(ctx, body); err != nil {
		return fmt.Errorf("messaging: enqueue inbound message: %w", err)
	}

	p.logger.Debug("queued inbound message", "job_id", payload.ID, "message_id", msg.MessageID)
	return nil
}
