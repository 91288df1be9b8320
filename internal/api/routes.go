package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates a new router with all routes configured
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/daily", h.DailyMetrics)
			r.Get("/daily/{date}", h.DailyMetric)
			r.Get("/activities", h.Activities)
			r.Get("/activities/{activityID}", h.Activity)
			r.Get("/activities/{activityID}/sets", h.ExerciseSets)
			r.Get("/activities/{activityID}/splits", h.ActivitySplits)
			r.Get("/timeseries/{metric}", h.Timeseries)
			r.Get("/sync/status", h.SyncStatus)
			r.Get("/sync/runs", h.SyncRuns)
		})
	})

	return r
}
