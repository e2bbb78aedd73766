package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/klinicq/queue-platform/internal/reminder"
	"github.com/klinicq/queue-platform/pkg/logging"
)

// Service emails operational summaries to the configured recipients.
type Service struct {
	email      EmailSender
	recipients []string
	logger     *logging.Logger
}

// NewService creates a notification service. With no sender or recipients the
// service is a silent no-op, so callers never have to branch on config.
func NewService(email EmailSender, recipients []string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		email:      email,
		recipients: recipients,
		logger:     logger,
	}
}

// NotifyDispatchReport mails a summary of a reminder run to the ops
// recipients. Failures are per recipient; partial delivery reports an error
// but never blocks the dispatcher.
func (s *Service) NotifyDispatchReport(ctx context.Context, rep *reminder.Report) error {
	if rep == nil {
		return nil
	}
	if s.email == nil || len(s.recipients) == 0 {
		s.logger.Debug("notify: ops email not configured, skipping dispatch report")
		return nil
	}

	subject, body := formatDispatchReport(rep)

	var errs []error
	for _, recipient := range s.recipients {
		msg := EmailMessage{
			To:      recipient,
			Subject: subject,
			Body:    body,
		}
		if err := s.email.Send(ctx, msg); err != nil {
			s.logger.Error("notify: failed to send dispatch report", "error", err, "to", recipient)
			errs = append(errs, err)
			continue
		}
		s.logger.Info("notify: dispatch report sent", "to", recipient, "run_id", rep.RunID)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d notification(s) failed", len(errs))
	}
	return nil
}

func formatDispatchReport(rep *reminder.Report) (subject, body string) {
	failed := 0
	for _, d := range rep.Details {
		if d.Status == reminder.StatusFailed {
			failed++
		}
	}

	subject = fmt.Sprintf("Reminder dispatch: %d clinic(s) processed", rep.Count)
	if failed > 0 {
		subject = fmt.Sprintf("Reminder dispatch: %d clinic(s) processed, %d FAILED", rep.Count, failed)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Run %s\n%s\n", rep.RunID, rep.Message)
	if len(rep.Details) > 0 {
		b.WriteString("\nPer clinic:\n")
		for _, d := range rep.Details {
			fmt.Fprintf(&b, "- %s: %s (%d appointment(s))", d.ClinicID, d.Status, d.Appointments)
			if d.Error != "" {
				fmt.Fprintf(&b, ", error: %s", d.Error)
			}
			b.WriteString("\n")
		}
	}
	return subject, b.String()
}
