package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Routes builds the gateway's chi router (spec §6).
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware(s.RequestIDHeader))
	r.Use(middleware.Logger)
	r.Use(s.RequestMetricsMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.Healthz)
	r.Get("/readyz", s.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/oauth/token", s.Token)

	r.Group(func(r chi.Router) {
		r.Use(s.AuthMiddleware)

		r.Group(func(r chi.Router) {
			r.Use(s.HMACMiddleware)
			r.Use(s.RateLimitMiddleware)
			r.Use(RequireScope("underwrite:create"))
			r.Post("/v1/underwrite", s.Underwrite)
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireScope("underwrite:read"))
			r.Get("/v1/jobs/{id}", s.GetJob)
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireScope("underwrite:create"))
			r.Post("/v1/jobs/pull", s.PullJobs)
			r.Post("/v1/jobs/complete", s.CompleteJob)
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireScope("dashboard:read"))
			r.Get("/v1/dashboard/tenant/jobs", s.TenantJobs)
			r.Get("/v1/dashboard/tenant/jobs/{id}", s.TenantJobDetail)
			r.Get("/v1/dashboard/tenant/summary", s.TenantSummary)
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireScope("dashboard:admin"))
			r.Get("/v1/dashboard/admin/tenants", s.AdminTenants)
			r.Get("/v1/dashboard/admin/jobs", s.AdminJobs)
			r.Get("/v1/dashboard/admin/jobs/{id}", s.AdminJobDetail)
		})
	})

	log.Info().Msg("HTTP routes registered")
	return r
}
