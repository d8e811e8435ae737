package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Service        BookingService
	Resolver       AvailabilityResolver
	Postgres       Pinger
	Redis          Pinger
	Logger         *zap.Logger
	CORSOrigins    []string
	RequestTimeout time.Duration
	Env            string
	Version        string
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(cfg.CORSOrigins))

	health := NewHealthHandler(cfg.Postgres, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Group(func(r chi.Router) {
		if cfg.RequestTimeout > 0 {
			r.Use(middleware.Timeout(cfg.RequestTimeout))
		}

		r.Get("/providers/{providerID}/availability", getAvailabilityHandler(cfg.Resolver, logger))
		r.Get("/providers/{providerID}/availability/range", getAvailabilityRangeHandler(cfg.Resolver, logger))

		r.Post("/appointments", createAppointmentHandler(cfg.Service, cfg.Resolver, logger))
		r.Get("/appointments", listAppointmentsHandler(cfg.Service, logger))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service, logger))
		r.Post("/appointments/{id}/confirm", confirmAppointmentHandler(cfg.Service, logger))
		r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Service, logger))
	})

	return r
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}).Handler
}
