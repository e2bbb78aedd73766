package waclient

import (
	"context"

	"github.com/klinicq/queue-platform/pkg/logging"
)

// StubSender logs outbound messages instead of delivering them. It stands in
// for the real client whenever WhatsApp credentials are not configured, so
// local development and tests never hit the Graph API.
type StubSender struct {
	logger *logging.Logger
}

// NewStubSender creates a logging stub sender.
func NewStubSender(logger *logging.Logger) *StubSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubSender{logger: logger}
}

// SendText logs the message and reports success.
func (s *StubSender) SendText(_ context.Context, to, body string) error {
	s.logger.Info("stub text send", "to", to, "body", body)
	return nil
}
