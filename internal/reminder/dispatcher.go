// Package reminder runs the daily appointment-reminder batch. Each clinic is
// visited at most once per calendar day inside its configured send window,
// guarded by a per-clinic Redis lock so overlapping scheduler invocations
// never double-send.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/klinicq/queue-platform/internal/appointment"
	"github.com/klinicq/queue-platform/internal/clinic"
	"github.com/klinicq/queue-platform/internal/observability/metrics"
	"github.com/klinicq/queue-platform/internal/redislock"
	"github.com/klinicq/queue-platform/pkg/logging"
)

// DefaultSendTimeout bounds one clinic's outbound sends.
const DefaultSendTimeout = 30 * time.Second

type clinicSource interface {
	List(ctx context.Context) ([]clinic.Clinic, error)
	MarkReminderRun(ctx context.Context, id, date string) error
}

type appointmentSource interface {
	ListUnnotified(ctx context.Context, clinicID, date string) ([]appointment.Appointment, error)
	MarkReminderSent(ctx context.Context, a *appointment.Appointment, at time.Time) error
}

type textSender interface {
	SendText(ctx context.Context, to, body string) error
}

type runLocker interface {
	WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error
}

type dispatchRecorder interface {
	Record(ctx context.Context, e LogEntry) error
}

type reportNotifier interface {
	NotifyDispatchReport(ctx context.Context, rep *Report) error
}

// Dispatcher orchestrates one reminder run across all clinics.
type Dispatcher struct {
	clinics      clinicSource
	appointments appointmentSource
	sender       textSender
	locker       runLocker
	dispatchLog  dispatchRecorder
	notifier     reportNotifier
	metrics      *metrics.ReminderMetrics
	sendTimeout  time.Duration
	logger       *logging.Logger
}

// Option configures optional dispatcher collaborators.
type Option func(*Dispatcher)

// WithSendTimeout overrides the per-clinic send deadline.
func WithSendTimeout(d time.Duration) Option {
	return func(dp *Dispatcher) {
		if d > 0 {
			dp.sendTimeout = d
		}
	}
}

// WithDispatchLog records one audit row per processed clinic.
func WithDispatchLog(l dispatchRecorder) Option {
	return func(dp *Dispatcher) { dp.dispatchLog = l }
}

// WithNotifier sends an ops summary after each run.
func WithNotifier(n reportNotifier) Option {
	return func(dp *Dispatcher) { dp.notifier = n }
}

// WithMetrics publishes dispatch counters and latency.
func WithMetrics(m *metrics.ReminderMetrics) Option {
	return func(dp *Dispatcher) { dp.metrics = m }
}

// NewDispatcher creates a Dispatcher. Clinic source, appointment source,
// sender and locker are required.
func NewDispatcher(clinics clinicSource, appointments appointmentSource, sender textSender, locker runLocker, logger *logging.Logger, opts ...Option) *Dispatcher {
	if clinics == nil {
		panic("reminder: clinic source is required")
	}
	if appointments == nil {
		panic("reminder: appointment source is required")
	}
	if sender == nil {
		panic("reminder: sender is required")
	}
	if locker == nil {
		panic("reminder: locker is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	d := &Dispatcher{
		clinics:      clinics,
		appointments: appointments,
		sender:       sender,
		locker:       locker,
		sendTimeout:  DefaultSendTimeout,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RunDailyBatch processes every clinic whose reminder window contains now and
// whose batch has not run today. One clinic's failure never aborts the rest;
// it is captured in the report and the clinic is still marked as run so the
// same day is not retried.
func (d *Dispatcher) RunDailyBatch(ctx context.Context, now time.Time) (*Report, error) {
	started := time.Now()
	runID := uuid.NewString()
	logger := d.logger.With("run_id", runID)

	clinics, err := d.clinics.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("reminder: list clinics: %w", err)
	}

	report := &Report{RunID: runID}
	if len(clinics) == 0 {
		report.Message = "no clinics registered, nothing to dispatch"
		logger.Info("reminder dispatch complete", "clinics", 0)
		return report, nil
	}

	for i := range clinics {
		c := &clinics[i]
		if !clinic.ReminderEligible(c, now) {
			continue
		}
		res := d.processClinic(ctx, logger, c, now)
		report.Details = append(report.Details, res)
		if res.Status != StatusSkipped {
			report.Count++
		}
		d.metrics.ObserveClinic(res.Status)
		d.record(ctx, logger, runID, c, now, res)
	}
	report.Message = fmt.Sprintf("reminders dispatched for %d clinic(s)", report.Count)

	d.metrics.ObserveBatchDuration(time.Since(started).Seconds())
	d.notify(ctx, logger, report)
	logger.Info("reminder dispatch complete",
		"clinics", report.Count,
		"eligible", len(report.Details),
		"duration", time.Since(started).String())
	return report, nil
}

func (d *Dispatcher) processClinic(ctx context.Context, logger *logging.Logger, c *clinic.Clinic, now time.Time) ClinicResult {
	res := ClinicResult{ClinicID: c.ID}
	date := c.LocalDate(now)

	err := d.locker.WithLock(ctx, "reminder:run:"+c.ID, func(ctx context.Context) error {
		appts, err := d.appointments.ListUnnotified(ctx, c.ID, date)
		if err != nil {
			return fmt.Errorf("list unnotified: %w", err)
		}
		res.Appointments = len(appts)

		sent, sendErr := d.sendBatch(ctx, logger, c, appts, now)

		// The day is marked consumed whether or not every send landed;
		// a failed clinic is not retried until tomorrow.
		if markErr := d.clinics.MarkReminderRun(ctx, c.ID, date); markErr != nil && !errors.Is(markErr, clinic.ErrAlreadyMarked) {
			logger.Error("failed to mark reminder run", "clinic_id", c.ID, "date", date, "error", markErr)
		}
		d.metrics.ObserveMessagesSent(sent)
		return sendErr
	})

	switch {
	case errors.Is(err, redislock.ErrNotAcquired):
		res.Status = StatusSkipped
		logger.Info("clinic held by another dispatcher, skipping", "clinic_id", c.ID)
	case err != nil:
		res.Status = StatusFailed
		res.Error = err.Error()
		logger.Error("reminder batch failed", "clinic_id", c.ID, "error", err)
	default:
		res.Status = StatusSuccess
		logger.Info("reminder batch sent", "clinic_id", c.ID, "appointments", res.Appointments)
	}
	return res
}

// sendBatch delivers one message per patient covering all of their entries,
// under the per-clinic send deadline. It returns how many messages went out.
func (d *Dispatcher) sendBatch(ctx context.Context, logger *logging.Logger, c *clinic.Clinic, appts []appointment.Appointment, now time.Time) (int, error) {
	if len(appts) == 0 {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	batches, noPhone := groupByPatient(appts)
	if noPhone > 0 {
		logger.Warn("entries without a phone number skipped", "clinic_id", c.ID, "count", noPhone)
	}

	sent := 0
	failures := 0
	for _, batch := range batches {
		body := buildReminder(c, batch.appts)
		if err := d.sender.SendText(ctx, batch.phone, body); err != nil {
			failures++
			logger.Warn("reminder send failed", "clinic_id", c.ID, "to", batch.phone, "error", err)
			continue
		}
		sent++
		for i := range batch.appts {
			if err := d.appointments.MarkReminderSent(ctx, &batch.appts[i], now); err != nil {
				logger.Error("failed to mark reminder sent", "appointment_id", batch.appts[i].ID, "error", err)
			}
		}
	}
	if failures > 0 {
		return sent, fmt.Errorf("send reminders: %d of %d patient message(s) failed", failures, len(batches))
	}
	return sent, nil
}

type patientBatch struct {
	phone string
	appts []appointment.Appointment
}

// groupByPatient buckets entries by phone number, preserving queue order, and
// reports how many entries carried no phone at all.
func groupByPatient(appts []appointment.Appointment) ([]patientBatch, int) {
	index := make(map[string]int)
	var batches []patientBatch
	noPhone := 0
	for _, a := range appts {
		if a.PatientPhone == "" {
			noPhone++
			continue
		}
		i, ok := index[a.PatientPhone]
		if !ok {
			i = len(batches)
			index[a.PatientPhone] = i
			batches = append(batches, patientBatch{phone: a.PatientPhone})
		}
		batches[i].appts = append(batches[i].appts, a)
	}
	return batches, noPhone
}

func (d *Dispatcher) record(ctx context.Context, logger *logging.Logger, runID string, c *clinic.Clinic, now time.Time, res ClinicResult) {
	if d.dispatchLog == nil {
		return
	}
	entry := LogEntry{
		RunID:        runID,
		ClinicID:     res.ClinicID,
		RunDate:      c.LocalDate(now),
		Status:       res.Status,
		Appointments: res.Appointments,
		Error:        res.Error,
	}
	if err := d.dispatchLog.Record(ctx, entry); err != nil {
		logger.Warn("failed to record dispatch log", "clinic_id", res.ClinicID, "error", err)
	}
}

func (d *Dispatcher) notify(ctx context.Context, logger *logging.Logger, report *Report) {
	if d.notifier == nil {
		return
	}
	if err := d.notifier.NotifyDispatchReport(ctx, report); err != nil {
		logger.Warn("dispatch report notification failed", "error", err)
	}
}
