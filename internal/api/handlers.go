// Package api exposes the synced health database as a read-only JSON
// surface. It never writes; the sync engine owns all mutations.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hyperengineering/vitals/internal/store"
	"github.com/hyperengineering/vitals/internal/types"
)

// ReadStore defines the store reads the query API serves.
type ReadStore interface {
	DailyMetrics(ctx context.Context, userID int64, start, end time.Time) ([]store.DailyMetricRecord, error)
	DailyMetric(ctx context.Context, userID int64, date time.Time) (*store.DailyMetricRecord, error)
	Activities(ctx context.Context, userID int64, start, end time.Time) ([]types.Activity, error)
	Activity(ctx context.Context, userID int64, activityID string) (*types.Activity, error)
	ExerciseSets(ctx context.Context, userID int64, activityID string) ([]types.ExerciseSet, error)
	ActivitySplits(ctx context.Context, userID int64, activityID string) ([]types.ActivitySplit, error)
	TimeseriesRange(ctx context.Context, userID int64, metric types.MetricType, startMs, endMs int64) ([]types.TimeseriesPoint, error)
	SyncStatusesInRange(ctx context.Context, userID int64, start, end time.Time) ([]types.SyncEntry, error)
	ListRuns(ctx context.Context, userID int64, limit int) ([]types.RunRecord, error)
}

// Handler holds the API dependencies.
type Handler struct {
	store ReadStore
}

// NewHandler creates an API handler over the given store.
func NewHandler(s ReadStore) *Handler {
	return &Handler{store: s}
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// DailyMetrics serves the daily rows for a date range.
func (h *Handler) DailyMetrics(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	start, end, ok := dateRangeQuery(w, r)
	if !ok {
		return
	}

	records, err := h.store.DailyMetrics(r.Context(), userID, start, end)
	if err != nil {
		internalError(w, r, "query daily metrics", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"daily_metrics": records})
}

// DailyMetric serves one day's row.
func (h *Handler) DailyMetric(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	date, err := time.Parse(types.DateFormat, chi.URLParam(r, "date"))
	if err != nil {
		WriteProblem(w, r, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	rec, err := h.store.DailyMetric(r.Context(), userID, date)
	if errors.Is(err, store.ErrNotFound) {
		WriteProblem(w, r, http.StatusNotFound, "no metrics for that date")
		return
	}
	if err != nil {
		internalError(w, r, "query daily metric", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Activities serves activities in a date range.
func (h *Handler) Activities(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	start, end, ok := dateRangeQuery(w, r)
	if !ok {
		return
	}

	activities, err := h.store.Activities(r.Context(), userID, start, end)
	if err != nil {
		internalError(w, r, "query activities", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activities": activities})
}

// Activity serves one activity summary.
func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	act, err := h.store.Activity(r.Context(), userID, chi.URLParam(r, "activityID"))
	if errors.Is(err, store.ErrActivityNotFound) {
		WriteProblem(w, r, http.StatusNotFound, "activity not found")
		return
	}
	if err != nil {
		internalError(w, r, "query activity", err)
		return
	}
	writeJSON(w, http.StatusOK, act)
}

// ExerciseSets serves an activity's strength sets.
func (h *Handler) ExerciseSets(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	sets, err := h.store.ExerciseSets(r.Context(), userID, chi.URLParam(r, "activityID"))
	if err != nil {
		internalError(w, r, "query exercise sets", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"exercise_sets": sets})
}

// ActivitySplits serves an activity's lap splits.
func (h *Handler) ActivitySplits(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	splits, err := h.store.ActivitySplits(r.Context(), userID, chi.URLParam(r, "activityID"))
	if err != nil {
		internalError(w, r, "query activity splits", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity_splits": splits})
}

// Timeseries serves samples for one metric within a millisecond range.
func (h *Handler) Timeseries(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	metric := types.MetricType(chi.URLParam(r, "metric"))
	if !types.TimeseriesMetrics[metric] {
		WriteProblem(w, r, http.StatusBadRequest, "metric does not carry timeseries data")
		return
	}

	startMs, err := msQuery(r, "start_ms", 0)
	if err != nil {
		WriteProblem(w, r, http.StatusBadRequest, "start_ms must be an integer")
		return
	}
	endMs, err := msQuery(r, "end_ms", time.Now().UnixMilli())
	if err != nil {
		WriteProblem(w, r, http.StatusBadRequest, "end_ms must be an integer")
		return
	}

	points, err := h.store.TimeseriesRange(r.Context(), userID, metric, startMs, endMs)
	if err != nil {
		internalError(w, r, "query timeseries", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"metric": metric, "points": points})
}

// SyncStatus serves the ledger entries for a date range.
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	start, end, ok := dateRangeQuery(w, r)
	if !ok {
		return
	}

	entries, err := h.store.SyncStatusesInRange(r.Context(), userID, start, end)
	if err != nil {
		internalError(w, r, "query sync status", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sync_status": entries})
}

// SyncRuns serves recent run history.
func (h *Handler) SyncRuns(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			WriteProblem(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := h.store.ListRuns(r.Context(), userID, limit)
	if err != nil {
		internalError(w, r, "query sync runs", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func userIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID < 1 {
		WriteProblem(w, r, http.StatusBadRequest, "userID must be a positive integer")
		return 0, false
	}
	return userID, true
}

// dateRangeQuery reads optional start/end query params, defaulting to the
// last 7 days.
func dateRangeQuery(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	end := time.Now().UTC().Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -6)

	if raw := r.URL.Query().Get("start"); raw != "" {
		t, err := time.Parse(types.DateFormat, raw)
		if err != nil {
			WriteProblem(w, r, http.StatusBadRequest, "start must be YYYY-MM-DD")
			return start, end, false
		}
		start = t
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		t, err := time.Parse(types.DateFormat, raw)
		if err != nil {
			WriteProblem(w, r, http.StatusBadRequest, "end must be YYYY-MM-DD")
			return start, end, false
		}
		end = t
	}
	if end.Before(start) {
		WriteProblem(w, r, http.StatusBadRequest, "end before start")
		return start, end, false
	}
	return start, end, true
}

func msQuery(r *http.Request, name string, fallback int64) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	slog.Error("api error", "op", op, "path", r.URL.Path, "error", err)
	WriteProblem(w, r, http.StatusInternalServerError, "internal error")
}
