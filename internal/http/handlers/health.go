package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/klinicq/queue-platform/pkg/logging"
)

const healthCheckTimeout = 2 * time.Second

// HealthHandler answers liveness probes and pings registered dependencies.
type HealthHandler struct {
	logger *logging.Logger
	names  []string
	checks map[string]func(ctx context.Context) error
}

// NewHealthHandler creates a health handler with no dependency checks.
func NewHealthHandler(logger *logging.Logger) *HealthHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &HealthHandler{
		logger: logger,
		checks: map[string]func(ctx context.Context) error{},
	}
}

// AddCheck registers a named dependency ping. Checks run on every request,
// so they should be cheap (a Redis PING, a DynamoDB DescribeTable).
func (h *HealthHandler) AddCheck(name string, check func(ctx context.Context) error) {
	if name == "" || check == nil {
		return
	}
	if _, ok := h.checks[name]; !ok {
		h.names = append(h.names, name)
	}
	h.checks[name] = check
}

type healthResponse struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// Check reports 200 when every dependency ping succeeds and 503 otherwise.
// GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := healthResponse{Status: "ok"}
	if len(h.names) > 0 {
		resp.Dependencies = make(map[string]string, len(h.names))
	}

	status := http.StatusOK
	for _, name := range h.names {
		if err := h.checks[name](ctx); err != nil {
			h.logger.Warn("dependency check failed", "dependency", name, "error", err)
			resp.Dependencies[name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Dependencies[name] = "ok"
	}

	writeJSON(w, status, resp, h.logger)
}
