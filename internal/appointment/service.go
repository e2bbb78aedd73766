package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/klinicq/queue-platform/internal/clinic"
	"github.com/klinicq/queue-platform/internal/queue"
	"github.com/klinicq/queue-platform/pkg/logging"
)

var (
	// ErrValidation indicates a request rejected before any state changed.
	ErrValidation = errors.New("appointment: invalid request")
	// ErrClinicNotFound indicates the requested clinic is not registered.
	ErrClinicNotFound = errors.New("appointment: clinic not found")
	// ErrNoActiveSession indicates no session window covers the requested time.
	ErrNoActiveSession = errors.New("appointment: no session is open")
)

type clinicRegistry interface {
	Get(ctx context.Context, id string) (*clinic.Clinic, error)
}

type slotAllocator interface {
	Allocate(ctx context.Context, req queue.AllocationRequest) (queue.Slot, error)
}

// Service orchestrates bookings and status changes. Booking is a pipeline of
// distinct failure modes: validation, clinic resolution, session resolution,
// then the allocator's atomic position grab, which also persists the entry.
type Service struct {
	clinics       clinicRegistry
	allocator     slotAllocator
	store         *Store
	defaultStride int
	now           func() time.Time
	logger        *logging.Logger
}

// ServiceOption customizes the service.
type ServiceOption func(*Service)

// WithClock overrides the wall clock, mainly for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService wires the booking pipeline together.
func NewService(clinics clinicRegistry, allocator slotAllocator, store *Store, defaultStride int, logger *logging.Logger, opts ...ServiceOption) *Service {
	if clinics == nil {
		panic("appointment: clinic registry cannot be nil")
	}
	if allocator == nil {
		panic("appointment: allocator cannot be nil")
	}
	if store == nil {
		panic("appointment: store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if defaultStride <= 0 {
		defaultStride = queue.DefaultSessionStride
	}
	s := &Service{
		clinics:       clinics,
		allocator:     allocator,
		store:         store,
		defaultStride: defaultStride,
		now:           time.Now,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WalkInRequest books a patient standing at the front desk into whichever
// session is open right now.
type WalkInRequest struct {
	ClinicID     string `json:"clinicId"`
	PatientID    string `json:"patientId,omitempty"`
	PatientName  string `json:"patientName,omitempty"`
	PatientPhone string `json:"patientPhone,omitempty"`
	DoctorID     string `json:"doctorId,omitempty"`
}

func (r WalkInRequest) validate() error {
	if strings.TrimSpace(r.ClinicID) == "" {
		return fmt.Errorf("%w: clinicId required", ErrValidation)
	}
	if strings.TrimSpace(r.PatientID) == "" &&
		(strings.TrimSpace(r.PatientName) == "" || strings.TrimSpace(r.PatientPhone) == "") {
		return fmt.Errorf("%w: patientId or patientName+patientPhone required", ErrValidation)
	}
	return nil
}

// PrebookedRequest books a patient through the app for a requested clock
// time. The date defaults to the clinic's current local day.
type PrebookedRequest struct {
	ClinicID     string `json:"clinicId"`
	PatientID    string `json:"patientId,omitempty"`
	PatientName  string `json:"patientName,omitempty"`
	PatientPhone string `json:"patientPhone,omitempty"`
	DoctorID     string `json:"doctorId,omitempty"`
	Time         string `json:"time"`
	Date         string `json:"date,omitempty"`
}

func (r PrebookedRequest) validate() error {
	if err := (WalkInRequest{
		ClinicID:     r.ClinicID,
		PatientID:    r.PatientID,
		PatientName:  r.PatientName,
		PatientPhone: r.PatientPhone,
	}).validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.Time) == "" {
		return fmt.Errorf("%w: time required", ErrValidation)
	}
	return nil
}

// BookWalkIn books into the session open at the current clinic-local time.
// A doctorId preference restricts resolution to that doctor's sessions.
func (s *Service) BookWalkIn(ctx context.Context, req WalkInRequest) (*Appointment, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	cl, err := s.resolveClinic(ctx, req.ClinicID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	sess, ok := cl.ActiveSessionFor(now, req.DoctorID)
	if !ok {
		return nil, fmt.Errorf("appointment: clinic %s has no open session at %s: %w",
			cl.ID, now.In(cl.Location()).Format("15:04"), ErrNoActiveSession)
	}

	appt, err := s.allocate(ctx, cl, sess, req.PatientID, req.PatientName, req.PatientPhone, queue.ViaWalkIn, now)
	if err != nil {
		return nil, err
	}
	s.logger.Info("walk-in booked",
		"clinic_id", cl.ID, "appointment_id", appt.ID, "token", appt.TokenNumber,
		"session", sess.Index, "date", appt.Date)
	return appt, nil
}

// BookPrebooked books through the app for a requested clock time. Unparseable
// times fall back to midnight inside ParseClockTime (with a warning), which
// lands outside every session and surfaces as ErrNoActiveSession.
func (s *Service) BookPrebooked(ctx context.Context, req PrebookedRequest) (*Appointment, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	cl, err := s.resolveClinic(ctx, req.ClinicID)
	if err != nil {
		return nil, err
	}

	day := s.now().In(cl.Location())
	if req.Date != "" {
		day, err = time.ParseInLocation("2006-01-02", req.Date, cl.Location())
		if err != nil {
			return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrValidation)
		}
	}
	apptTime := queue.ParseClockTime(req.Time, day, s.logger)

	sess, ok := cl.ActiveSessionFor(apptTime, req.DoctorID)
	if !ok {
		return nil, fmt.Errorf("appointment: clinic %s has no session covering %s: %w",
			cl.ID, apptTime.In(cl.Location()).Format("15:04"), ErrNoActiveSession)
	}

	appt, err := s.allocate(ctx, cl, sess, req.PatientID, req.PatientName, req.PatientPhone, queue.ViaApp, apptTime)
	if err != nil {
		return nil, err
	}
	s.logger.Info("prebooked appointment created",
		"clinic_id", cl.ID, "appointment_id", appt.ID, "token", appt.TokenNumber,
		"session", sess.Index, "date", appt.Date, "arrive_by", appt.ArriveBy)
	return appt, nil
}

// allocate runs the allocator transaction; the built entry is persisted by
// the same TransactWriteItems that claims the position, so a half-completed
// allocation cannot occur.
func (s *Service) allocate(ctx context.Context, cl *clinic.Clinic, sess clinic.Session, patientID, patientName, patientPhone string, via queue.BookedVia, apptTime time.Time) (*Appointment, error) {
	if patientID == "" {
		patientID = uuid.NewString()
	}
	date := cl.LocalDate(apptTime)
	created := s.now().UTC().Format(time.RFC3339)

	var appt *Appointment
	_, err := s.allocator.Allocate(ctx, queue.AllocationRequest{
		ClinicID:     cl.ID,
		SessionIndex: sess.Index,
		Date:         date,
		Via:          via,
		Stride:       cl.StrideOrDefault(s.defaultStride),
		BuildItem: func(slot queue.Slot) (map[string]types.AttributeValue, error) {
			a := &Appointment{
				ID:           uuid.NewString(),
				ClinicID:     cl.ID,
				Date:         date,
				SessionIndex: sess.Index,
				Position:     slot.Position,
				SlotIndex:    slot.SlotIndex,
				TokenNumber:  slot.TokenNumber,
				BookedVia:    via,
				Status:       StatusPending,
				PatientID:    patientID,
				PatientName:  patientName,
				PatientPhone: patientPhone,
				DoctorID:     sess.DoctorID,
				Time:         apptTime.UTC().Format(time.RFC3339),
				ArriveBy:     queue.ArriveBy(apptTime, via).UTC().Format(time.RFC3339),
				CreatedAt:    created,
				UpdatedAt:    created,
			}
			a.SetKeys()
			item, err := attributevalue.MarshalMap(a)
			if err != nil {
				return nil, fmt.Errorf("appointment: failed to marshal appointment: %w", err)
			}
			appt = a
			return item, nil
		},
	})
	if err != nil {
		return nil, err
	}
	return appt, nil
}

func (s *Service) resolveClinic(ctx context.Context, clinicID string) (*clinic.Clinic, error) {
	cl, err := s.clinics.Get(ctx, clinicID)
	if err != nil {
		if errors.Is(err, clinic.ErrNotFound) {
			return nil, fmt.Errorf("appointment: clinic %s: %w", clinicID, ErrClinicNotFound)
		}
		return nil, err
	}
	return cl, nil
}

// Confirm marks the patient as checked in.
func (s *Service) Confirm(ctx context.Context, id string) (*Appointment, error) {
	return s.transition(ctx, id, StatusConfirmed)
}

// Complete marks the consultation finished.
func (s *Service) Complete(ctx context.Context, id string) (*Appointment, error) {
	return s.transition(ctx, id, StatusCompleted)
}

// Skip marks that the queue passed the patient; a returning patient gets a
// fresh entry, never this one back.
func (s *Service) Skip(ctx context.Context, id string) (*Appointment, error) {
	return s.transition(ctx, id, StatusSkipped)
}

// MarkNoShow records that the patient never appeared; stamps noShowTime.
func (s *Service) MarkNoShow(ctx context.Context, id string) (*Appointment, error) {
	return s.transition(ctx, id, StatusNoShow)
}

// Cancel withdraws the entry. The consumed position is not reused.
func (s *Service) Cancel(ctx context.Context, id string) (*Appointment, error) {
	return s.transition(ctx, id, StatusCancelled)
}

// SetCutoff stamps the hard arrival deadline on a still-active entry.
func (s *Service) SetCutoff(ctx context.Context, id string, cutoff time.Time) (*Appointment, error) {
	appt, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.store.SetCutoff(ctx, appt, cutoff)
}

func (s *Service) transition(ctx context.Context, id string, to Status) (*Appointment, error) {
	appt, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !appt.Status.CanTransitionTo(to) {
		s.logger.Error("invalid status transition rejected",
			"appointment_id", id, "from", appt.Status, "to", to)
		return nil, fmt.Errorf("appointment: %s %s -> %s: %w", id, appt.Status, to, ErrInvalidTransition)
	}

	updated, err := s.store.UpdateStatus(ctx, appt, to, s.now())
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			s.logger.Error("status transition lost a concurrent race",
				"appointment_id", id, "from", appt.Status, "to", to)
		}
		return nil, err
	}
	s.logger.Info("appointment status changed",
		"appointment_id", id, "from", appt.Status, "to", to, "token", updated.TokenNumber)
	return updated, nil
}
