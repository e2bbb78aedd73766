package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/klinicq/queue-platform/internal/reminder"
	"github.com/klinicq/queue-platform/pkg/logging"
)

type dispatchRunner interface {
	RunDailyBatch(ctx context.Context, now time.Time) (*reminder.Report, error)
}

// RemindersHandler triggers the daily reminder batch. The route sits behind
// the scheduler shared secret, never on the public surface.
type RemindersHandler struct {
	dispatcher dispatchRunner
	logger     *logging.Logger
}

// NewRemindersHandler creates the internal reminders handler.
func NewRemindersHandler(dispatcher dispatchRunner, logger *logging.Logger) *RemindersHandler {
	if dispatcher == nil {
		panic("handlers: dispatcher cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RemindersHandler{dispatcher: dispatcher, logger: logger}
}

// Run executes the batch and returns the per-clinic report. Per-clinic
// failures live inside the report; only a failure to run at all is a 500.
// POST /internal/reminders/run
func (h *RemindersHandler) Run(w http.ResponseWriter, r *http.Request) {
	report, err := h.dispatcher.RunDailyBatch(r.Context(), time.Now())
	if err != nil {
		h.logger.Error("reminder batch failed", "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "reminder batch failed", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, report, h.logger)
}
