package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hyperengineering/vitals/internal/fetch"
	"github.com/hyperengineering/vitals/internal/types"
)

// StrengthTypes are the activity types whose detail records are exercise
// sets.
var StrengthTypes = []string{"strength_training", "indoor_cardio", "fitness_equipment"}

// CardioTypes are the activity types whose detail records are lap splits.
var CardioTypes = []string{"running", "trail_running", "treadmill_running", "cycling", "road_biking", "mountain_biking", "walking", "hiking", "open_water_swimming", "lap_swimming"}

// BackfillStore defines the store operations the backfill engine needs.
type BackfillStore interface {
	ActivitiesNeedingSetBackfill(ctx context.Context, userID int64, activityTypes []string, limit int) ([]types.Activity, error)
	ActivitiesNeedingSplitBackfill(ctx context.Context, userID int64, activityTypes []string, limit int) ([]types.Activity, error)
	ReplaceExerciseSets(ctx context.Context, userID int64, activityID string, sets []types.ExerciseSet) error
	ReplaceActivitySplits(ctx context.Context, userID int64, activityID string, splits []types.ActivitySplit) error
	RecordRun(ctx context.Context, run types.RunRecord) error
}

// BackfillEngine fills in per-activity detail records that the regular
// sync leaves behind: exercise sets for strength work, lap splits for
// cardio. Candidates are processed oldest first so repeated bounded runs
// eventually converge on a fully detailed history.
type BackfillEngine struct {
	store   BackfillStore
	fetcher fetch.Fetcher
}

// NewBackfillEngine creates a backfill engine.
func NewBackfillEngine(store BackfillStore, fetcher fetch.Fetcher) *BackfillEngine {
	return &BackfillEngine{store: store, fetcher: fetcher}
}

// BackfillSets fetches and stores exercise sets for up to limit strength
// activities that have not been detailed yet. A failure on one activity
// is counted and the pass moves on.
func (b *BackfillEngine) BackfillSets(ctx context.Context, userID int64, limit int) (types.RunStats, error) {
	return b.run(ctx, userID, limit, types.RunBackfillSets)
}

// BackfillSplits is the lap-split pass over cardio activities.
func (b *BackfillEngine) BackfillSplits(ctx context.Context, userID int64, limit int) (types.RunStats, error) {
	return b.run(ctx, userID, limit, types.RunBackfillSplits)
}

func (b *BackfillEngine) run(ctx context.Context, userID int64, limit int, kind types.RunKind) (types.RunStats, error) {
	var stats types.RunStats
	if limit <= 0 {
		return stats, fmt.Errorf("backfill limit must be positive, got %d", limit)
	}

	var candidates []types.Activity
	var err error
	switch kind {
	case types.RunBackfillSets:
		candidates, err = b.store.ActivitiesNeedingSetBackfill(ctx, userID, StrengthTypes, limit)
	case types.RunBackfillSplits:
		candidates, err = b.store.ActivitiesNeedingSplitBackfill(ctx, userID, CardioTypes, limit)
	default:
		return stats, fmt.Errorf("unknown backfill kind %q", kind)
	}
	if err != nil {
		return stats, fmt.Errorf("list backfill candidates: %w", err)
	}

	stats.Total = len(candidates)
	if len(candidates) == 0 {
		return stats, nil
	}

	runID := ulid.Make().String()
	startedAt := time.Now().UTC()
	slog.Info("backfill run started",
		"run_id", runID,
		"user_id", userID,
		"kind", kind,
		"candidates", len(candidates),
		"component", "syncer",
	)

	for _, act := range candidates {
		if ctx.Err() != nil {
			break
		}
		if err := b.backfillActivity(ctx, userID, act.ActivityID, kind); err != nil {
			stats.Failed++
			slog.Warn("backfill failed for activity",
				"user_id", userID,
				"activity_id", act.ActivityID,
				"kind", kind,
				"error", err,
				"component", "syncer",
			)
			continue
		}
		stats.Completed++
	}

	run := types.RunRecord{
		RunID:      runID,
		UserID:     userID,
		Kind:       kind,
		StartedAt:  startedAt,
		FinishedAt: time.Now().UTC(),
		Stats:      stats,
	}
	if err := b.store.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		slog.Error("failed to record backfill run",
			"run_id", runID,
			"error", err,
			"component", "syncer",
		)
	}

	return stats, ctx.Err()
}

func (b *BackfillEngine) backfillActivity(ctx context.Context, userID int64, activityID string, kind types.RunKind) error {
	switch kind {
	case types.RunBackfillSets:
		sets, err := b.fetcher.FetchExerciseSets(ctx, userID, activityID)
		if err != nil && !errors.Is(err, fetch.ErrNoData) {
			return err
		}
		// No detail data upstream still marks the activity done so it is
		// not re-selected forever.
		return b.store.ReplaceExerciseSets(ctx, userID, activityID, sets)

	default:
		splits, err := b.fetcher.FetchSplits(ctx, userID, activityID)
		if err != nil && !errors.Is(err, fetch.ErrNoData) {
			return err
		}
		return b.store.ReplaceActivitySplits(ctx, userID, activityID, splits)
	}
}
