// Package handlers contains the HTTP handlers for the public booking API,
// the admin operations endpoints, and the internal dispatcher trigger.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/klinicq/queue-platform/pkg/logging"
)

// Error codes carried in JSON error bodies so clients can branch without
// parsing messages.
const (
	CodeValidation          = "validation"
	CodeMalformedCode       = "malformed_code"
	CodeClinicNotFound      = "clinic_not_found"
	CodeCodeNotFound        = "code_not_found"
	CodeAppointmentNotFound = "appointment_not_found"
	CodeSessionFull         = "session_full"
	CodeNoActiveSession     = "no_active_session"
	CodeInvalidTransition   = "invalid_transition"
	CodeInternal            = "internal"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *logging.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && logger != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string, logger *logging.Logger) {
	writeJSON(w, status, errorBody{Error: message, Code: code}, logger)
}
