package inspect

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robertarktes/payment-fulfillment/internal/observability"
	"github.com/robertarktes/payment-fulfillment/internal/rateLimit"
)

func SetupRouter(h *Handlers, logger observability.Logger, rl *rateLimit.RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(RateLimitMiddleware(rl))

	r.Get("/v1/payments/{id}", h.GetEntry)
	r.Get("/v1/users/{id}/payments", h.ListUserEntries)
	r.Get("/v1/users/{id}/holds", h.ListUserHolds)
	r.Get("/v1/healthz", h.Healthz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
