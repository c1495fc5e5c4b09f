/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     One logrus entry per request (carries request_id)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the calendar front end

ROUTE GROUPS:
  /api/conflicts/*   Read-only conflict check
  /api/tasks/*       Task occurrences
  /api/leaves/*      Leave requests and review
  /api/workers/*     Roster and calendar feeds
  /api/task-types    Roster
  /api/workload      Monthly workload report
  /api/audit/*       Schedule audit runs
  /api/scenarios/*   Demo scenarios (resets the schedule)

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Post("/conflicts/check", h.CheckConflicts)

		// Task routes
		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", h.ListTasks)
			r.Post("/", h.CreateTasks)
			r.Get("/{id}", h.GetTask)
			r.Put("/{id}", h.EditTask)
		})

		// Leave routes
		r.Route("/leaves", func(r chi.Router) {
			r.Get("/", h.ListLeaves)
			r.Post("/", h.CreateLeave)
			r.Post("/{id}/review", h.ReviewLeave)
			r.Delete("/{id}", h.DeleteLeave)
		})

		// Roster routes
		r.Route("/workers", func(r chi.Router) {
			r.Get("/", h.ListWorkers)
			r.Get("/{id}/calendar.ics", h.WorkerCalendar)
		})
		r.Get("/task-types", h.ListTaskTypes)

		// Reports
		r.Get("/workload", h.GetWorkload)
		r.Route("/audit", func(r chi.Router) {
			r.Get("/runs", h.ListAuditRuns)
			r.Post("/run", h.RunAudit)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}

// requestLogger emits one access-log entry per request.
func requestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				entry := log.WithFields(logrus.Fields{
					"request_id": middleware.GetReqID(r.Context()),
					"method":     r.Method,
					"path":       r.URL.Path,
					"status":     ww.Status(),
					"bytes":      ww.BytesWritten(),
					"duration":   time.Since(start).String(),
				})
				switch {
				case ww.Status() >= 500:
					entry.Error("request")
				case ww.Status() >= 400:
					entry.Warn("request")
				default:
					entry.Info("request")
				}
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
