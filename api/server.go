/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and routes. Pure wiring;
  entitlement decisions live in the entitlement package.

ROUTE GROUPS:
  /api/employees/*       Registration glue + engine endpoints per employee
  /api/visits/verify/*   Card-scan verification lookup
  /metrics               Prometheus metrics

SECURITY NOTE:
  No authentication middleware. Session and device trust are owned by the
  surrounding application, not this engine.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Route("/{empNo}", func(r chi.Router) {
				r.Get("/", h.GetEmployee)
				r.Get("/eligibility", h.CheckEligibility)
				r.Post("/visits", h.CommitVisit)
				r.Get("/visits", h.GetRecentVisits)
				r.Get("/balance", h.GetBalance)
				r.Put("/policy", h.SetPolicy)
			})
		})

		r.Get("/visits/verify/{code}", h.VerifyCode)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
