package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/klinicq/queue-platform/internal/clinic"
	"github.com/klinicq/queue-platform/pkg/logging"
)

type codeResolver interface {
	Resolve(ctx context.Context, code string) (*clinic.Clinic, error)
}

// DirectoryHandler serves public short-code resolution for poster QR codes
// and chat links.
type DirectoryHandler struct {
	directory codeResolver
	logger    *logging.Logger
}

// NewDirectoryHandler creates the directory handler.
func NewDirectoryHandler(directory codeResolver, logger *logging.Logger) *DirectoryHandler {
	if directory == nil {
		panic("handlers: directory cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DirectoryHandler{directory: directory, logger: logger}
}

// Resolve returns the clinic registered for a short code.
// GET /api/clinics/by-code/{code}
func (h *DirectoryHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	cl, err := h.directory.Resolve(r.Context(), code)
	if err != nil {
		switch {
		case errors.Is(err, clinic.ErrMalformedCode):
			writeError(w, http.StatusBadRequest, CodeMalformedCode, "short code must look like KQ-XXXX", h.logger)
		case errors.Is(err, clinic.ErrCodeNotFound):
			writeError(w, http.StatusNotFound, CodeCodeNotFound, "no clinic registered for that code", h.logger)
		default:
			h.logger.Error("short code resolution failed", "code", code, "error", err)
			writeError(w, http.StatusInternalServerError, CodeInternal, "internal server error", h.logger)
		}
		return
	}
	writeJSON(w, http.StatusOK, cl, h.logger)
}
