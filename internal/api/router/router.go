// Package router assembles the HTTP surface: the public booking API, the
// chat webhook, the admin operations endpoints, and the internal scheduler
// trigger.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/klinicq/queue-platform/internal/clinic"
	"github.com/klinicq/queue-platform/internal/http/handlers"
	httpmiddleware "github.com/klinicq/queue-platform/internal/http/middleware"
	"github.com/klinicq/queue-platform/internal/messaging"
	"github.com/klinicq/queue-platform/pkg/logging"
)

// Config holds router configuration. Nil handlers leave their routes off,
// which lets the reply worker and tests run a partial surface.
type Config struct {
	Logger             *logging.Logger
	Appointments       *handlers.AppointmentsHandler
	Directory          *handlers.DirectoryHandler
	ClinicAdmin        *clinic.Handler
	ChatWebhook        *messaging.Handler
	Reminders          *handlers.RemindersHandler
	DispatchStats      *handlers.DispatchStatsHandler
	Health             *handlers.HealthHandler
	MetricsHandler     http.Handler
	SchedulerSecret    string
	CORSAllowedOrigins []string

	// Admin surface rate limit, requests per second per IP. Zero disables.
	AdminRatePerSecond float64
	AdminBurst         int
}

// New creates a chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (booking API, directory, webhooks, health)
	r.Group(func(public chi.Router) {
		if cfg.Health != nil {
			public.Get("/health", cfg.Health.Check)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.Directory != nil {
			public.Get("/api/clinics/by-code/{code}", cfg.Directory.Resolve)
		}
		if cfg.Appointments != nil {
			public.Mount("/api", cfg.Appointments.Routes())
		}
		if cfg.ChatWebhook != nil {
			public.Mount("/webhooks/chat", cfg.ChatWebhook.Routes())
		}
	})

	// Admin operations endpoints. Authentication is handled upstream at the
	// gateway; the app only rate-limits.
	r.Route("/admin", func(admin chi.Router) {
		if cfg.AdminRatePerSecond > 0 {
			admin.Use(httpmiddleware.RateLimit(cfg.AdminRatePerSecond, cfg.AdminBurst))
		}
		if cfg.ClinicAdmin != nil {
			admin.Mount("/clinics", cfg.ClinicAdmin.Routes())
		}
		if cfg.DispatchStats != nil {
			admin.Get("/dispatch/stats", cfg.DispatchStats.GetStats)
		}
	})

	// Internal endpoints, reachable only with the scheduler shared secret.
	if cfg.Reminders != nil {
		r.Route("/internal", func(internal chi.Router) {
			internal.Use(httpmiddleware.SchedulerAuth(cfg.SchedulerSecret))
			internal.Post("/reminders/run", cfg.Reminders.Run)
		})
	}

	return r
}
