/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request for tracing
  2. RequestLogger: One zap line per request (status, latency, request id)
  3. Recoverer:     Panic recovery (500 instead of crash)
  4. CORS:          Cross-origin requests for the school portal

ROUTE GROUPS:
  /api/teachers/*        Directory and per-teacher views
  /api/leave-requests/*  Leave request lifecycle
  /api/meetings          Parent-teacher meetings
  /api/categories        Leave categories
  /api/notifications/*   Notification inbox
  /api/scenarios/*       Demo scenarios
  /healthz               Liveness

SECURITY NOTE:
  No authentication middleware. The acting teacher id is part of each
  request body.

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Request logging
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
// allowedOrigins feeds the CORS middleware.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(h.logger.Named("http")))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.Health)

	r.Route("/api", func(r chi.Router) {
		// Teacher routes
		r.Route("/teachers", func(r chi.Router) {
			r.Get("/", h.ListTeachers)
			r.Post("/", h.CreateTeacher)
			r.Get("/{id}/balance", h.GetBalance)
			r.Get("/{id}/leave-requests", h.ListTeacherLeaveRequests)
			r.Get("/{id}/relief-requests", h.ListReliefRequests)
			r.Get("/{id}/relief-candidates", h.ListReliefCandidates)
			r.Get("/{id}/notifications", h.ListNotifications)
		})

		// Leave request routes
		r.Route("/leave-requests", func(r chi.Router) {
			r.Post("/", h.SubmitLeaveRequest)
			r.Get("/pending", h.ListPendingLeaveRequests)
			r.Get("/{id}", h.GetLeaveRequest)
			r.Post("/{id}/relief", h.RespondToRelief)
			r.Post("/{id}/resolve", h.ResolveLeaveRequest)
			r.Post("/{id}/cancel", h.CancelLeaveRequest)
		})

		// Directory routes
		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.ListCategories)
			r.Post("/", h.UpsertCategories)
		})
		r.Route("/meetings", func(r chi.Router) {
			r.Get("/", h.ListMeetings)
			r.Post("/", h.CreateMeeting)
		})
		r.Post("/notifications/{id}/read", h.MarkNotificationRead)

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}
