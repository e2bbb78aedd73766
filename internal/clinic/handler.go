package clinic

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/klinicq/queue-platform/pkg/logging"
)

// Handler provides HTTP endpoints for clinic registry management.
type Handler struct {
	store     *Store
	directory *Directory
	logger    *logging.Logger
}

// NewHandler creates a new clinic admin HTTP handler.
func NewHandler(store *Store, directory *Directory, logger *logging.Logger) *Handler {
	if store == nil {
		panic("clinic: store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		store:     store,
		directory: directory,
		logger:    logger,
	}
}

// Routes returns a chi router with clinic admin routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.CreateClinic)
	r.Get("/{clinicID}", h.GetClinic)
	r.Put("/{clinicID}/sessions", h.UpdateSessions)
	r.Put("/{clinicID}/reminder-window", h.UpdateReminderWindow)
	r.Post("/{clinicID}/short-code", h.AssignShortCode)
	return r
}

// CreateClinicRequest is the request body for registering a clinic.
type CreateClinicRequest struct {
	ID            string          `json:"id,omitempty"`
	Name          string          `json:"name"`
	Timezone      string          `json:"timezone"`
	Address       string          `json:"address,omitempty"`
	Phone         string          `json:"phone,omitempty"`
	SessionStride int             `json:"sessionStride,omitempty"`
	Sessions      []Session       `json:"sessions,omitempty"`
	Reminder      *ReminderWindow `json:"reminder,omitempty"`
}

// CreateClinic registers a new clinic.
// POST /admin/clinics
func (h *Handler) CreateClinic(w http.ResponseWriter, r *http.Request) {
	var req CreateClinicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body", h.logger)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondError(w, http.StatusBadRequest, "name required", h.logger)
		return
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil || req.Timezone == "" {
		respondError(w, http.StatusBadRequest, "valid timezone required", h.logger)
		return
	}
	if req.SessionStride < 0 {
		respondError(w, http.StatusBadRequest, "sessionStride must be >= 0", h.logger)
		return
	}
	if err := ValidateSessions(req.Sessions); err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), h.logger)
		return
	}

	c := &Clinic{
		ID:            req.ID,
		Name:          req.Name,
		Timezone:      req.Timezone,
		Address:       req.Address,
		Phone:         req.Phone,
		SessionStride: req.SessionStride,
		Sessions:      req.Sessions,
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if req.Reminder != nil {
		if err := req.Reminder.Validate(); err != nil {
			respondError(w, http.StatusBadRequest, err.Error(), h.logger)
			return
		}
		c.Reminder = *req.Reminder
	}

	if err := h.store.Create(r.Context(), c); err != nil {
		if errors.Is(err, ErrExists) {
			respondError(w, http.StatusConflict, "clinic already exists", h.logger)
			return
		}
		h.logger.Error("failed to create clinic", "clinic_id", c.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal server error", h.logger)
		return
	}

	h.logger.Info("clinic registered", "clinic_id", c.ID, "name", c.Name)
	respondJSON(w, http.StatusCreated, c, h.logger)
}

// GetClinic returns the clinic record.
// GET /admin/clinics/{clinicID}
func (h *Handler) GetClinic(w http.ResponseWriter, r *http.Request) {
	clinicID := chi.URLParam(r, "clinicID")
	if clinicID == "" {
		respondError(w, http.StatusBadRequest, "clinic_id required", h.logger)
		return
	}

	c, err := h.store.Get(r.Context(), clinicID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respondError(w, http.StatusNotFound, "clinic not found", h.logger)
			return
		}
		h.logger.Error("failed to get clinic", "clinic_id", clinicID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal server error", h.logger)
		return
	}
	respondJSON(w, http.StatusOK, c, h.logger)
}

// UpdateSessionsRequest is the request body for replacing a clinic's
// session table.
type UpdateSessionsRequest struct {
	Sessions      []Session `json:"sessions"`
	SessionStride int       `json:"sessionStride,omitempty"`
}

// UpdateSessions replaces the clinic's consulting sessions.
// PUT /admin/clinics/{clinicID}/sessions
func (h *Handler) UpdateSessions(w http.ResponseWriter, r *http.Request) {
	clinicID := chi.URLParam(r, "clinicID")
	if clinicID == "" {
		respondError(w, http.StatusBadRequest, "clinic_id required", h.logger)
		return
	}

	var req UpdateSessionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body", h.logger)
		return
	}
	if req.SessionStride < 0 {
		respondError(w, http.StatusBadRequest, "sessionStride must be >= 0", h.logger)
		return
	}
	if err := ValidateSessions(req.Sessions); err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), h.logger)
		return
	}

	c, err := h.store.UpdateSessions(r.Context(), clinicID, req.Sessions, req.SessionStride)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respondError(w, http.StatusNotFound, "clinic not found", h.logger)
			return
		}
		h.logger.Error("failed to update sessions", "clinic_id", clinicID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal server error", h.logger)
		return
	}

	h.logger.Info("clinic sessions updated", "clinic_id", clinicID, "sessions", len(req.Sessions))
	h.invalidateDirectory(r.Context(), c)
	respondJSON(w, http.StatusOK, c, h.logger)
}

// UpdateReminderWindow replaces the clinic's reminder dispatch window.
// PUT /admin/clinics/{clinicID}/reminder-window
func (h *Handler) UpdateReminderWindow(w http.ResponseWriter, r *http.Request) {
	clinicID := chi.URLParam(r, "clinicID")
	if clinicID == "" {
		respondError(w, http.StatusBadRequest, "clinic_id required", h.logger)
		return
	}

	var req ReminderWindow
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body", h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), h.logger)
		return
	}

	c, err := h.store.UpdateReminderWindow(r.Context(), clinicID, req)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respondError(w, http.StatusNotFound, "clinic not found", h.logger)
			return
		}
		h.logger.Error("failed to update reminder window", "clinic_id", clinicID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal server error", h.logger)
		return
	}

	h.logger.Info("clinic reminder window updated", "clinic_id", clinicID, "enabled", req.Enabled)
	h.invalidateDirectory(r.Context(), c)
	respondJSON(w, http.StatusOK, c, h.logger)
}

// AssignCodeRequest is the request body for assigning a short code. An
// empty code asks the directory to generate one.
type AssignCodeRequest struct {
	Code string `json:"code,omitempty"`
}

// AssignShortCode assigns a directory short code to the clinic.
// POST /admin/clinics/{clinicID}/short-code
func (h *Handler) AssignShortCode(w http.ResponseWriter, r *http.Request) {
	clinicID := chi.URLParam(r, "clinicID")
	if clinicID == "" {
		respondError(w, http.StatusBadRequest, "clinic_id required", h.logger)
		return
	}
	if h.directory == nil {
		respondError(w, http.StatusServiceUnavailable, "directory not configured", h.logger)
		return
	}

	var req AssignCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid JSON body", h.logger)
		return
	}

	c, err := h.directory.AssignCode(r.Context(), clinicID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respondError(w, http.StatusNotFound, "clinic not found", h.logger)
		case errors.Is(err, ErrMalformedCode):
			respondError(w, http.StatusBadRequest, "short code must look like KQ-XXXX", h.logger)
		case errors.Is(err, ErrCodeTaken):
			respondError(w, http.StatusConflict, "short code already taken", h.logger)
		case errors.Is(err, ErrCodeAlreadyAssigned):
			respondError(w, http.StatusConflict, "clinic already has a short code", h.logger)
		default:
			h.logger.Error("failed to assign short code", "clinic_id", clinicID, "error", err)
			respondError(w, http.StatusInternalServerError, "internal server error", h.logger)
		}
		return
	}
	respondJSON(w, http.StatusOK, c, h.logger)
}

// invalidateDirectory drops the cached directory entry so by-code lookups
// see the updated record.
func (h *Handler) invalidateDirectory(ctx context.Context, c *Clinic) {
	if h.directory == nil || c == nil || c.ShortCode == "" {
		return
	}
	h.directory.Invalidate(ctx, c.ShortCode)
}

func respondJSON(w http.ResponseWriter, status int, v any, logger *logging.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string, logger *logging.Logger) {
	respondJSON(w, status, map[string]string{"error": msg}, logger)
}
