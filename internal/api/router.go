package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type RouterConfig struct {
	Bookings BookingService
	Stats    StatsService
	Tokens   TokenParser
	PgPool   *pgxpool.Pool
	Redis    *redis.Client
	Logger   zerolog.Logger
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(chiMiddleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	h := NewHandler(cfg.Bookings, cfg.Stats, cfg.Logger)

	r.Group(func(protected chi.Router) {
		protected.Use(Authenticate(cfg.Tokens))

		// Appointment endpoints
		protected.Route("/appointments", func(ar chi.Router) {
			ar.Post("/", h.bookAppointment)
			ar.Get("/mine", h.listMyAppointments)
			ar.With(RequireStaff).Get("/", h.listAppointments)
			ar.Get("/{id}", h.getAppointment)
			ar.Post("/{id}/cancel", h.cancelAppointment)
			ar.Put("/{id}/status", h.updateAppointmentStatus)
			ar.With(RequireStaff).Put("/{id}/payment", h.updatePaymentStatus)
		})

		// Lab test endpoints
		protected.Route("/lab-tests", func(lr chi.Router) {
			lr.Post("/", h.bookLabTest)
			lr.Get("/mine", h.listMyLabTests)
			lr.With(RequireStaff).Get("/", h.listLabTests)
			lr.Get("/{id}", h.getLabTest)
			lr.With(RequireStaff).Put("/{id}/status", h.updateLabTestStatus)
			lr.With(RequireStaff).Put("/{id}/report", h.uploadLabReport)
		})

		protected.Route("/admin", func(admin chi.Router) {
			admin.Use(RequireStaff)
			admin.Get("/dashboard", h.dashboard)
			admin.Get("/monthly", h.monthly)
		})
	})

	return r
}
