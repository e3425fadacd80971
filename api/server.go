/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address behind proxies
  3. Logger:     Request logging
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for frontends
  6. Context logger: handler-scoped slog logger carrying the request ID

ROUTE GROUPS:
  /api/employees/*       Employees, schedules, balances, per-user lists
  /api/clock/*           Clock in / out
  /api/early-attempts/*  Early clock-in approvals
  /api/time-entries/*    Manual and single entries
  /api/corrections/*     Correction workflow
  /api/time-off/*        Time-off workflow
  /api/time-off-rules    Entitlement rules
  /api/adjustments       Manual balance adjustments
  /api/holidays/*        Holiday calendar
  /api/pay-periods/*     Periods, payroll, export
  /api/scenarios/*       Demo data
  /api/admin/jobs/run    Manual background job pass
  /healthz               Liveness

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/timeclock-engine/logging"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(h.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Get("/{id}", h.GetEmployee)
			r.Put("/{id}", h.UpdateEmployee)
			r.Get("/{id}/schedule", h.GetSchedule)
			r.Put("/{id}/schedule", h.ReplaceSchedule)
			r.Get("/{id}/balances", h.GetBalances)
			r.Get("/{id}/time-entries", h.ListEmployeeEntries)
			r.Get("/{id}/time-off", h.ListEmployeeTimeOff)
			r.Get("/{id}/corrections", h.ListEmployeeCorrections)
		})

		r.Route("/clock", func(r chi.Router) {
			r.Post("/in", h.ClockIn)
			r.Post("/out", h.ClockOut)
			r.Get("/active/{userID}", h.GetActiveEntry)
		})

		r.Route("/early-attempts", func(r chi.Router) {
			r.Get("/", h.ListPendingAttempts)
			r.Post("/{id}/decision", h.DecideAttempt)
		})

		r.Route("/time-entries", func(r chi.Router) {
			r.Post("/", h.RecordManualEntry)
			r.Get("/{id}", h.GetTimeEntry)
		})

		r.Route("/corrections", func(r chi.Router) {
			r.Post("/", h.ProposeCorrection)
			r.Get("/pending", h.ListPendingCorrections)
			r.Get("/{id}", h.GetCorrection)
			r.Post("/{id}/decision", h.DecideCorrection)
		})

		r.Route("/time-off", func(r chi.Router) {
			r.Post("/", h.SubmitTimeOff)
			r.Get("/pending", h.ListPendingTimeOff)
			r.Get("/{id}", h.GetTimeOff)
			r.Post("/{id}/decision", h.DecideTimeOff)
		})

		r.Get("/time-off-rules", h.ListRules)
		r.Post("/time-off-rules", h.SaveRule)
		r.Post("/adjustments", h.CreateAdjustment)

		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", h.ListHolidays)
			r.Post("/", h.CreateHoliday)
			r.Delete("/{id}", h.DeleteHoliday)
		})

		r.Route("/pay-periods", func(r chi.Router) {
			r.Get("/", h.ListPayPeriods)
			r.Post("/generate", h.GeneratePayPeriods)
			r.Post("/{id}/close", h.ClosePayPeriod)
			r.Get("/{id}/payroll", h.ListPayroll)
			r.Post("/{id}/payroll", h.ComputePayroll)
			r.Post("/{id}/payroll/{userID}", h.ComputeEmployeePayroll)
			r.Get("/{id}/export", h.ExportPayroll)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})

		r.Post("/admin/jobs/run", h.RunJobs)
	})

	return r
}

// requestLogger puts a logger tagged with the request ID in the context so
// service logs can be correlated with the access log.
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := h.Logger.With("request_id", middleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r.WithContext(logging.ContextWithLogger(r.Context(), logger)))
	})
}
