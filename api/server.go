/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request for tracing
  2. RequestLogger: zap line per request, tagged with the request ID
  3. Recoverer:     Panic recovery (500 instead of crash)
  4. CleanPath:     Collapses duplicate slashes
  5. Heartbeat:     GET /health for load balancers
  6. CORS:          Cross-origin requests for frontends

ROUTE GROUPS:
  /api/punches          Raw punch ingestion
  /api/employees/*      Employees and their attendance
  /api/sequence/*       Work code sequence validation
  /api/overtime/*       Stateless overtime computation
  /api/payroll/*        Period summaries
  /api/holidays/*       Holiday calendar
  /api/policies         Active policies
  /api/scenarios/*      Demo scenarios
  /api/admin/*          Daily close

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, logger *zap.Logger) *chi.Mux {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.CleanPath)
	r.Use(middleware.Heartbeat("/health"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/punches", h.IngestPunches)

		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Get("/{id}", h.GetEmployee)

			r.Route("/{id}/attendance", func(r chi.Router) {
				r.Get("/", h.ListAttendance)
				r.Route("/{date}", func(r chi.Router) {
					r.Get("/", h.GetAttendance)
					r.Post("/entry", h.RegisterEntry)
					r.Post("/exit", h.RegisterExit)
					r.Post("/lunch", h.SetLunch)
					r.Post("/correction", h.Correct)
					r.Post("/leave", h.ApplyLeave)
					r.Delete("/leave", h.ClearLeave)
					r.Post("/review", h.FlagReview)
					r.Post("/recalculate", h.Recalculate)
					r.Post("/rebuild", h.Rebuild)
				})
			})
		})

		r.Post("/sequence/validate", h.ValidateSequence)

		r.Route("/overtime", func(r chi.Router) {
			r.Post("/compute", h.ComputeOvertime)
			r.Post("/combine", h.CombineOvertime)
		})

		r.Get("/payroll/summary", h.PayrollSummary)

		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", h.ListHolidays)
			r.Post("/", h.CreateHoliday)
			r.Delete("/{date}", h.DeleteHoliday)
		})

		r.Route("/policies", func(r chi.Router) {
			r.Get("/", h.ListPolicies)
			r.Post("/", h.UpdatePolicy)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})

		r.Post("/admin/close-day", h.CloseDay)
	})

	return r
}
