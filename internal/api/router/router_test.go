package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/klinicq/queue-platform/internal/appointment"
	"github.com/klinicq/queue-platform/internal/clinic"
	"github.com/klinicq/queue-platform/internal/http/handlers"
	"github.com/klinicq/queue-platform/internal/messaging"
	"github.com/klinicq/queue-platform/internal/reminder"
	"github.com/klinicq/queue-platform/pkg/logging"
)

type stubBooking struct {
	appt *appointment.Appointment
}

func (s *stubBooking) BookWalkIn(context.Context, appointment.WalkInRequest) (*appointment.Appointment, error) {
	return s.appt, nil
}

func (s *stubBooking) BookPrebooked(context.Context, appointment.PrebookedRequest) (*appointment.Appointment, error) {
	return s.appt, nil
}

func (s *stubBooking) Confirm(context.Context, string) (*appointment.Appointment, error) {
	return s.appt, nil
}

func (s *stubBooking) Complete(context.Context, string) (*appointment.Appointment, error) {
	return s.appt, nil
}

func (s *stubBooking) Skip(context.Context, string) (*appointment.Appointment, error) {
	return s.appt, nil
}

func (s *stubBooking) MarkNoShow(context.Context, string) (*appointment.Appointment, error) {
	return s.appt, nil
}

func (s *stubBooking) Cancel(context.Context, string) (*appointment.Appointment, error) {
	return s.appt, nil
}

type stubReader struct{}

func (stubReader) GetByID(context.Context, string) (*appointment.Appointment, error) {
	return &appointment.Appointment{ID: "apt-1"}, nil
}

func (stubReader) ListDay(context.Context, string, string) ([]appointment.Appointment, error) {
	return nil, nil
}

type stubResolver struct{}

func (stubResolver) Resolve(_ context.Context, code string) (*clinic.Clinic, error) {
	if code != "KQ-7P2M" {
		return nil, clinic.ErrCodeNotFound
	}
	return &clinic.Clinic{ID: "clinic-1", Name: "City Care Clinic", ShortCode: code}, nil
}

type stubDispatch struct{}

func (stubDispatch) RunDailyBatch(context.Context, time.Time) (*reminder.Report, error) {
	return &reminder.Report{RunID: "run-1", Message: "reminders sent", Count: 1}, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	logger := logging.Default()
	booking := &stubBooking{appt: &appointment.Appointment{ID: "apt-1", TokenNumber: "W1"}}
	webhook := messaging.NewHandler("verify-token",
		messaging.NewPublisher(messaging.NewMemoryQueue(8), logger), logger)

	cfg := &Config{
		Logger:          logger,
		Appointments:    handlers.NewAppointmentsHandler(booking, stubReader{}, logger),
		Directory:       handlers.NewDirectoryHandler(stubResolver{}, logger),
		ChatWebhook:     webhook,
		Reminders:       handlers.NewRemindersHandler(stubDispatch{}, logger),
		Health:          handlers.NewHealthHandler(logger),
		SchedulerSecret: "topsecret",
	}

	return New(cfg)
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestRouterWalkInBooking(t *testing.T) {
	router := newTestRouter(t)

	body := strings.NewReader(`{"clinicId":"clinic-1","patientId":"patient-9"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/walkins", body)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rr.Code, rr.Body.String())
	}
}

func TestRouterShortCodeLookup(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/clinics/by-code/KQ-7P2M", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "City Care Clinic") {
		t.Errorf("expected clinic payload, got %s", rr.Body.String())
	}
}

// The static by-code route and the mounted {clinicID}/queue route share the
// /api/clinics prefix; both must stay reachable.
func TestRouterQueueViewReachesMountedRoutes(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/clinics/clinic-1/queue?date=2026-03-14", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
}

func TestRouterWebhookVerification(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet,
		"/webhooks/chat?hub.mode=subscribe&hub.verify_token=verify-token&hub.challenge=42", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if rr.Body.String() != "42" {
		t.Errorf("expected challenge echo, got %q", rr.Body.String())
	}
}

func TestRouterSchedulerTriggerRequiresSecret(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/internal/reminders/run", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}
}

func TestRouterSchedulerTriggerRuns(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/internal/reminders/run", nil)
	req.Header.Set("Authorization", "Bearer topsecret")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}

	var report reminder.Report
	if err := json.NewDecoder(rr.Body).Decode(&report); err != nil {
		t.Fatalf("failed to decode report: %v", err)
	}
	if report.RunID != "run-1" {
		t.Errorf("expected run id 'run-1', got %q", report.RunID)
	}
}

func TestRouterSchedulerTriggerFailsClosedWithoutSecret(t *testing.T) {
	logger := logging.Default()
	cfg := &Config{
		Logger:    logger,
		Reminders: handlers.NewRemindersHandler(stubDispatch{}, logger),
		Health:    handlers.NewHealthHandler(logger),
	}
	router := New(cfg)

	req := httptest.NewRequest(http.MethodPost, "/internal/reminders/run", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, rr.Code)
	}
}
