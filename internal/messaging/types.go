package messaging

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// TextSender delivers one outbound chat message to a patient. Production
// wiring uses the WhatsApp Cloud API client; development uses a logging stub.
type TextSender interface {
	SendText(ctx context.Context, to, body string) error
}

// InboundMessage is one patient text lifted out of the provider webhook
// envelope and normalized for the reply worker.
type InboundMessage struct {
	MessageID  string    `json:"messageId"`
	From       string    `json:"from"`
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"receivedAt,omitempty"`
}

// WebhookEvent is the WhatsApp Cloud API webhook envelope. One delivery can
// carry several entries, each with several change batches.
type WebhookEvent struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry is one webhook entry (one WhatsApp business account).
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change is one change batch inside an entry. Message deliveries arrive on
// the "messages" field; other fields carry status callbacks we do not use.
type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

// ChangeValue holds the messages of one change batch.
type ChangeValue struct {
	MessagingProduct string         `json:"messaging_product,omitempty"`
	Messages         []EntryMessage `json:"messages,omitempty"`
}

// EntryMessage is one raw inbound message. Timestamp is epoch seconds as a
// decimal string, per the provider wire format.
type EntryMessage struct {
	ID        string     `json:"id"`
	From      string     `json:"from"`
	Timestamp string     `json:"timestamp,omitempty"`
	Type      string     `json:"type,omitempty"`
	Text      *EntryText `json:"text,omitempty"`
}

// EntryText is the text body of an inbound message.
type EntryText struct {
	Body string `json:"body"`
}

// ParseWebhookEvent extracts normalized inbound text messages from a webhook
// event. Status callbacks and non-text messages (media, reactions) are
// skipped.
func ParseWebhookEvent(event WebhookEvent) []InboundMessage {
	var messages []InboundMessage

	for _, entry := range event.Entry {
		for _, change := range entry.Changes {
			if change.Field != "" && change.Field != "messages" {
				continue
			}
			for _, m := range change.Value.Messages {
				if m.Text == nil || strings.TrimSpace(m.Text.Body) == "" {
					continue
				}
				messages = append(messages, InboundMessage{
					MessageID:  m.ID,
					From:       m.From,
					Text:       m.Text.Body,
					ReceivedAt: parseEpochSeconds(m.Timestamp),
				})
			}
		}
	}

	return messages
}

func parseEpochSeconds(raw string) time.Time {
	secs, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || secs <= 0 {
		return time.Time{}
	}
	return time.Unix(secs, 0).UTC()
}
