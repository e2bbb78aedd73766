package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/klinicq/queue-platform/internal/appointment"
	"github.com/klinicq/queue-platform/internal/clinic"
	"github.com/klinicq/queue-platform/internal/queue"
	"github.com/klinicq/queue-platform/pkg/logging"
)

type bookingService interface {
	BookWalkIn(ctx context.Context, req appointment.WalkInRequest) (*appointment.Appointment, error)
	BookPrebooked(ctx context.Context, req appointment.PrebookedRequest) (*appointment.Appointment, error)
	Confirm(ctx context.Context, id string) (*appointment.Appointment, error)
	Complete(ctx context.Context, id string) (*appointment.Appointment, error)
	Skip(ctx context.Context, id string) (*appointment.Appointment, error)
	MarkNoShow(ctx context.Context, id string) (*appointment.Appointment, error)
	Cancel(ctx context.Context, id string) (*appointment.Appointment, error)
}

type appointmentReader interface {
	GetByID(ctx context.Context, id string) (*appointment.Appointment, error)
	ListDay(ctx context.Context, clinicID, date string) ([]appointment.Appointment, error)
}

// AppointmentsHandler serves booking, status transitions, and the live queue
// view.
type AppointmentsHandler struct {
	svc    bookingService
	store  appointmentReader
	logger *logging.Logger
}

// NewAppointmentsHandler creates the public appointments handler.
func NewAppointmentsHandler(svc bookingService, store appointmentReader, logger *logging.Logger) *AppointmentsHandler {
	if svc == nil {
		panic("handlers: booking service cannot be nil")
	}
	if store == nil {
		panic("handlers: appointment store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AppointmentsHandler{svc: svc, store: store, logger: logger}
}

// Routes returns the /api routes for bookings, transitions, and queue views.
func (h *AppointmentsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/walkins", h.BookWalkIn)
	r.Post("/appointments", h.BookPrebooked)
	r.Get("/appointments/{id}", h.GetAppointment)
	r.Post("/appointments/{id}/confirm", h.transition(h.svc.Confirm))
	r.Post("/appointments/{id}/complete", h.transition(h.svc.Complete))
	r.Post("/appointments/{id}/skip", h.transition(h.svc.Skip))
	r.Post("/appointments/{id}/no-show", h.transition(h.svc.MarkNoShow))
	r.Post("/appointments/{id}/cancel", h.transition(h.svc.Cancel))
	r.Get("/clinics/{clinicID}/queue", h.GetQueue)
	return r
}

// BookWalkIn books a walk-in into the currently open session.
// POST /api/walkins
func (h *AppointmentsHandler) BookWalkIn(w http.ResponseWriter, r *http.Request) {
	var req appointment.WalkInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, "invalid JSON body", h.logger)
		return
	}

	appt, err := h.svc.BookWalkIn(r.Context(), req)
	if err != nil {
		h.writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt, h.logger)
}

// BookPrebooked books an app appointment for a requested clock time.
// POST /api/appointments
func (h *AppointmentsHandler) BookPrebooked(w http.ResponseWriter, r *http.Request) {
	var req appointment.PrebookedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, "invalid JSON body", h.logger)
		return
	}

	appt, err := h.svc.BookPrebooked(r.Context(), req)
	if err != nil {
		h.writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt, h.logger)
}

func (h *AppointmentsHandler) writeBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointment.ErrValidation):
		writeError(w, http.StatusBadRequest, CodeValidation, err.Error(), h.logger)
	case errors.Is(err, appointment.ErrClinicNotFound), errors.Is(err, clinic.ErrNotFound):
		writeError(w, http.StatusNotFound, CodeClinicNotFound, "clinic not found", h.logger)
	case errors.Is(err, appointment.ErrNoActiveSession):
		writeError(w, http.StatusConflict, CodeNoActiveSession, "no session is open for the requested time", h.logger)
	case errors.Is(err, queue.ErrSessionFull):
		writeError(w, http.StatusConflict, CodeSessionFull, "session has reached capacity", h.logger)
	default:
		h.logger.Error("booking failed", "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "internal server error", h.logger)
	}
}

// GetAppointment returns one appointment by id.
// GET /api/appointments/{id}
func (h *AppointmentsHandler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	appt, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, appointment.ErrNotFound) {
			writeError(w, http.StatusNotFound, CodeAppointmentNotFound, "appointment not found", h.logger)
			return
		}
		h.logger.Error("failed to load appointment", "appointment_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "internal server error", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, appt, h.logger)
}

type transitionFunc func(ctx context.Context, id string) (*appointment.Appointment, error)

// transition wraps a status-change call with the shared error mapping: an
// unknown id is 404 and a rejected edge is 409 with nothing mutated.
func (h *AppointmentsHandler) transition(fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		appt, err := fn(r.Context(), id)
		if err != nil {
			switch {
			case errors.Is(err, appointment.ErrNotFound):
				writeError(w, http.StatusNotFound, CodeAppointmentNotFound, "appointment not found", h.logger)
			case errors.Is(err, appointment.ErrInvalidTransition):
				writeError(w, http.StatusConflict, CodeInvalidTransition, err.Error(), h.logger)
			default:
				h.logger.Error("status transition failed", "appointment_id", id, "error", err)
				writeError(w, http.StatusInternalServerError, CodeInternal, "internal server error", h.logger)
			}
			return
		}
		writeJSON(w, http.StatusOK, appt, h.logger)
	}
}

type queueView struct {
	ClinicID string                    `json:"clinicId"`
	Date     string                    `json:"date"`
	Entries  []appointment.Appointment `json:"entries"`
}

// GetQueue lists a clinic's queue entries for one day in slot order.
// GET /api/clinics/{clinicID}/queue?date=YYYY-MM-DD
func (h *AppointmentsHandler) GetQueue(w http.ResponseWriter, r *http.Request) {
	clinicID := chi.URLParam(r, "clinicID")
	date := r.URL.Query().Get("date")
	if date == "" {
		writeError(w, http.StatusBadRequest, CodeValidation, "date query parameter required (YYYY-MM-DD)", h.logger)
		return
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, "date must be YYYY-MM-DD", h.logger)
		return
	}

	entries, err := h.store.ListDay(r.Context(), clinicID, date)
	if err != nil {
		h.logger.Error("failed to list queue", "clinic_id", clinicID, "date", date, "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "internal server error", h.logger)
		return
	}
	if entries == nil {
		entries = []appointment.Appointment{}
	}

	writeJSON(w, http.StatusOK, queueView{ClinicID: clinicID, Date: date, Entries: entries}, h.logger)
}
