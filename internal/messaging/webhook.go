// Package messaging receives patient texts from the WhatsApp webhook, queues
// them for the reply worker, and sends replies through the provider client.
package messaging

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/klinicq/queue-platform/internal/observability/metrics"
	"github.com/klinicq/queue-platform/pkg/logging"
)

var webhookTracer = otel.Tracer("klinicq.internal.messaging.webhook")

type inboundPublisher interface {
	PublishInbound(ctx context.Context, msg InboundMessage) error
}

// Handler serves the provider webhook: the GET subscription handshake and
// POST message deliveries.
type Handler struct {
	verifyToken string
	appSecret   string
	publisher   inboundPublisher
	metrics     *metrics.WebhookMetrics
	logger      *logging.Logger
}

// HandlerOption customizes webhook handler behavior.
type HandlerOption func(*Handler)

// WithAppSecret enables X-Hub-Signature-256 verification on POST deliveries.
func WithAppSecret(secret string) HandlerOption {
	return func(h *Handler) {
		h.appSecret = secret
	}
}

// WithWebhookMetrics attaches inbound delivery counters.
func WithWebhookMetrics(m *metrics.WebhookMetrics) HandlerOption {
	return func(h *Handler) {
		h.metrics = m
	}
}

// NewHandler creates the webhook handler. verifyToken is the shared secret
// echoed during the provider's subscription handshake.
func NewHandler(verifyToken string, publisher inboundPublisher, logger *logging.Logger, opts ...HandlerOption) *Handler {
	if publisher == nil {
		panic("messaging: publisher cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	h := &Handler{
		verifyToken: verifyToken,
		publisher:   publisher,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes mounts the webhook endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Verify)
	r.Post("/", h.Receive)
	return r
}

// Verify answers the provider's GET subscription handshake by echoing the
// challenge when the verify token matches.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "subscribe" && token == h.verifyToken {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, challenge)
		return
	}

	http.Error(w, "Forbidden", http.StatusForbidden)
}

// Receive accepts POST message deliveries. The provider retries any non-2xx
// response, so once the signature checks out we ack with 200 even when the
// payload is unusable, and rely on logs and counters to surface problems.
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	ctx, span := webhookTracer.Start(r.Context(), "messaging.webhook.receive")
	defer span.End()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		span.RecordError(err)
		return
	}

	if h.appSecret != "" {
		if !VerifySignature(h.appSecret, body, r.Header.Get("X-Hub-Signature-256")) {
			h.logger.Warn("invalid webhook signature")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			span.RecordError(errors.New("invalid webhook signature"))
			return
		}
	}

	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.logger.Warn("undecodable webhook payload", "error", err)
		h.metrics.ObserveInbound("malformed")
		span.RecordError(err)
		h.ack(w)
		return
	}

	messages := ParseWebhookEvent(event)
	span.SetAttributes(attribute.Int("klinicq.webhook.messages", len(messages)))

	for _, msg := range messages {
		if err := h.publisher.PublishInbound(ctx, msg); err != nil {
			h.logger.Error("failed to enqueue inbound message", "error", err, "message_id", msg.MessageID)
			h.metrics.ObserveInbound("dropped")
			span.RecordError(err)
			continue
		}
		h.metrics.ObserveInbound("accepted")
	}

	h.ack(w)
}

func (h *Handler) ack(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "EVENT_RECEIVED")
}

// VerifySignature checks the X-Hub-Signature-256 header against the raw
// request body.
func VerifySignature(appSecret string, body []byte, signature string) bool {
	if appSecret == "" || signature == "" {
		return false
	}

	const prefix = "sha256="
	if len(signature) <= len(prefix) {
		return false
	}
	sigHex := signature[len(prefix):]

	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(sigHex))
}
