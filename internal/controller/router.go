package controller

import (
	"net/http"
	"time"

	appPayment "github.com/cassiomorais/payorders/internal/application/payment"
	"github.com/cassiomorais/payorders/internal/domain/method"
	"github.com/cassiomorais/payorders/internal/infrastructure/config"
	"github.com/cassiomorais/payorders/internal/infrastructure/observability"
	customMW "github.com/cassiomorais/payorders/internal/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterDeps struct {
	Service        *appPayment.Service
	Catalog        *method.Catalog
	Metrics        *observability.Metrics
	MetricsHandler http.Handler // defaults to promhttp.Handler()
	Checks         map[string]Pinger
	Idempotency    customMW.IdempotencyStore // nil disables replay
	IdempotencyTTL time.Duration
	Server         config.ServerConfig
	Auth           config.AuthConfig
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(customMW.SecurityHeaders())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Server.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", customMW.IdempotencyKeyHeader},
		ExposedHeaders:   []string{"Location", "X-Idempotency-Replayed"},
		AllowCredentials: deps.Server.CORS.AllowCredentials,
		MaxAge:           300,
	}))
	if deps.Metrics != nil {
		r.Use(customMW.Metrics(deps.Metrics))
	}

	healthH := NewHealthController(deps.Checks)
	paymentH := NewPaymentController(deps.Service)
	methodH := NewMethodController(deps.Catalog)

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	metricsHandler := deps.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Handle("/metrics", metricsHandler)

	r.Route("/api/v1", func(r chi.Router) {
		if deps.Auth.Enabled {
			r.Use(customMW.RequireAuth(deps.Auth.JWTSecret))
		}
		r.Use(customMW.RateLimit(deps.Server.RateLimit))

		create := http.HandlerFunc(paymentH.CreatePayment)
		if deps.Idempotency != nil {
			r.With(customMW.Idempotency(deps.Idempotency, deps.IdempotencyTTL)).Post("/payments", create)
		} else {
			r.Post("/payments", create)
		}
		r.Get("/payments/{id}", paymentH.GetPayment)
		r.Post("/payments/{id}/process", paymentH.ProcessPayment)
		r.Post("/payments/{id}/cancel", paymentH.CancelPayment)
		r.Post("/payments/{id}/refund", paymentH.RefundPayment)

		r.With(customMW.RequireOwner("userID")).Get("/users/{userID}/payments", paymentH.GetUserHistory)
		r.Get("/statistics", paymentH.GetStatistics)
		r.Get("/methods", methodH.ListMethods)
	})

	return r
}
