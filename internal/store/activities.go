package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hyperengineering/vitals/internal/types"
)

// UpsertActivities writes activity summary rows. On conflict every summary
// column is overwritten but sets_synced and splits_synced keep their stored
// values: a re-sync of the summary never undoes a detail backfill.
func (s *SQLiteStore) UpsertActivities(ctx context.Context, activities []types.Activity) error {
	return upsertActivities(ctx, s.db, activities)
}

func upsertActivities(ctx context.Context, q dbtx, activities []types.Activity) error {
	if len(activities) == 0 {
		return nil
	}

	stmt, err := q.PrepareContext(ctx, `
		INSERT INTO activities (
			user_id, activity_id, activity_date, activity_name, activity_type,
			start_time, duration_seconds, distance_meters, calories,
			elevation_gain, elevation_loss, avg_speed, max_speed,
			avg_heart_rate, max_heart_rate, training_load,
			total_sets, total_reps, total_weight_kg,
			sets_synced, splits_synced, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?)
		ON CONFLICT(user_id, activity_id) DO UPDATE SET
			activity_date = excluded.activity_date,
			activity_name = excluded.activity_name,
			activity_type = excluded.activity_type,
			start_time = excluded.start_time,
			duration_seconds = excluded.duration_seconds,
			distance_meters = excluded.distance_meters,
			calories = excluded.calories,
			elevation_gain = excluded.elevation_gain,
			elevation_loss = excluded.elevation_loss,
			avg_speed = excluded.avg_speed,
			max_speed = excluded.max_speed,
			avg_heart_rate = excluded.avg_heart_rate,
			max_heart_rate = excluded.max_heart_rate,
			training_load = excluded.training_load,
			total_sets = excluded.total_sets,
			total_reps = excluded.total_reps,
			total_weight_kg = excluded.total_weight_kg,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("prepare activity upsert: %w", err)
	}
	defer stmt.Close()

	now := nowRFC3339()
	for _, a := range activities {
		_, err := stmt.ExecContext(ctx,
			a.UserID, a.ActivityID, formatDate(a.ActivityDate), a.ActivityName, a.ActivityType,
			a.StartTime, deref(a.DurationSeconds), deref(a.DistanceMeters), deref(a.Calories),
			deref(a.ElevationGain), deref(a.ElevationLoss), deref(a.AvgSpeed), deref(a.MaxSpeed),
			deref(a.AvgHeartRate), deref(a.MaxHeartRate), deref(a.TrainingLoad),
			deref(a.TotalSets), deref(a.TotalReps), deref(a.TotalWeightKg),
			now, now)
		if err != nil {
			return fmt.Errorf("upsert activity %s: %w", a.ActivityID, err)
		}
	}
	return nil
}

func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

// ReplaceExerciseSets replaces every exercise set of one activity and
// marks sets_synced in the same transaction. The flag flips only when the
// full replacement committed, so a crash mid-write leaves the activity
// still eligible for backfill. Returns ErrActivityNotFound when the
// parent activity row does not exist.
func (s *SQLiteStore) ReplaceExerciseSets(ctx context.Context, userID int64, activityID string, sets []types.ExerciseSet) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace sets: %w", err)
	}
	defer tx.Rollback()

	if err := activityExists(ctx, tx, userID, activityID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM exercise_sets WHERE user_id = ? AND activity_id = ?",
		userID, activityID); err != nil {
		return fmt.Errorf("delete exercise sets: %w", err)
	}

	now := nowRFC3339()
	for _, set := range sets {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO exercise_sets (
				user_id, activity_id, set_order, exercise_category, exercise_name,
				set_type, repetition_count, weight_grams, duration_seconds, start_time, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, userID, activityID, set.SetOrder, set.ExerciseCategory, set.ExerciseName,
			set.SetType, deref(set.RepetitionCount), deref(set.WeightGrams),
			deref(set.DurationSeconds), set.StartTime, now)
		if err != nil {
			return fmt.Errorf("insert exercise set: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE activities SET sets_synced = 1, updated_at = ? WHERE user_id = ? AND activity_id = ?",
		now, userID, activityID); err != nil {
		return fmt.Errorf("mark sets synced: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace sets: %w", err)
	}
	return nil
}

// ReplaceActivitySplits replaces every lap split of one activity and marks
// splits_synced in the same transaction. Same semantics as
// ReplaceExerciseSets.
func (s *SQLiteStore) ReplaceActivitySplits(ctx context.Context, userID int64, activityID string, splits []types.ActivitySplit) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace splits: %w", err)
	}
	defer tx.Rollback()

	if err := activityExists(ctx, tx, userID, activityID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM activity_splits WHERE user_id = ? AND activity_id = ?",
		userID, activityID); err != nil {
		return fmt.Errorf("delete activity splits: %w", err)
	}

	now := nowRFC3339()
	for _, sp := range splits {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO activity_splits (
				user_id, activity_id, lap_index, start_time, duration_seconds,
				moving_duration_seconds, distance_meters, avg_speed, max_speed,
				avg_moving_speed, avg_heart_rate, max_heart_rate,
				elevation_gain, elevation_loss, max_elevation, min_elevation,
				avg_cadence, max_cadence, calories,
				start_latitude, start_longitude, end_latitude, end_longitude,
				intensity_type, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, userID, activityID, sp.LapIndex, sp.StartTime, deref(sp.DurationSeconds),
			deref(sp.MovingDurationSeconds), deref(sp.DistanceMeters), deref(sp.AvgSpeed), deref(sp.MaxSpeed),
			deref(sp.AvgMovingSpeed), deref(sp.AvgHeartRate), deref(sp.MaxHeartRate),
			deref(sp.ElevationGain), deref(sp.ElevationLoss), deref(sp.MaxElevation), deref(sp.MinElevation),
			deref(sp.AvgCadence), deref(sp.MaxCadence), deref(sp.Calories),
			deref(sp.StartLatitude), deref(sp.StartLongitude), deref(sp.EndLatitude), deref(sp.EndLongitude),
			sp.IntensityType, now)
		if err != nil {
			return fmt.Errorf("insert activity split: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE activities SET splits_synced = 1, updated_at = ? WHERE user_id = ? AND activity_id = ?",
		now, userID, activityID); err != nil {
		return fmt.Errorf("mark splits synced: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace splits: %w", err)
	}
	return nil
}

func activityExists(ctx context.Context, q dbtx, userID int64, activityID string) error {
	var one int
	err := q.QueryRowContext(ctx,
		"SELECT 1 FROM activities WHERE user_id = ? AND activity_id = ?",
		userID, activityID).Scan(&one)
	if err == sql.ErrNoRows {
		return ErrActivityNotFound
	}
	if err != nil {
		return fmt.Errorf("check activity: %w", err)
	}
	return nil
}

// ActivitiesNeedingSetBackfill returns activities of the given types whose
// exercise sets have not been fetched yet, oldest first, capped at limit.
func (s *SQLiteStore) ActivitiesNeedingSetBackfill(ctx context.Context, userID int64, activityTypes []string, limit int) ([]types.Activity, error) {
	return s.activitiesNeedingBackfill(ctx, userID, "sets_synced", activityTypes, limit)
}

// ActivitiesNeedingSplitBackfill is the lap-split analog of
// ActivitiesNeedingSetBackfill.
func (s *SQLiteStore) ActivitiesNeedingSplitBackfill(ctx context.Context, userID int64, activityTypes []string, limit int) ([]types.Activity, error) {
	return s.activitiesNeedingBackfill(ctx, userID, "splits_synced", activityTypes, limit)
}

func (s *SQLiteStore) activitiesNeedingBackfill(ctx context.Context, userID int64, flagCol string, activityTypes []string, limit int) ([]types.Activity, error) {
	if len(activityTypes) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(activityTypes))
	args := []any{userID}
	for i, t := range activityTypes {
		placeholders[i] = "?"
		args = append(args, t)
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT %s
		FROM activities
		WHERE user_id = ? AND %s = 0 AND activity_type IN (%s)
		ORDER BY activity_date ASC, activity_id ASC
		LIMIT ?`,
		activityColumns, flagCol, strings.Join(placeholders, ", "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query backfill candidates: %w", err)
	}
	defer rows.Close()

	return scanActivities(rows)
}

// Activities returns a user's activities within the inclusive date range,
// ordered by date ascending.
func (s *SQLiteStore) Activities(ctx context.Context, userID int64, start, end time.Time) ([]types.Activity, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM activities
		WHERE user_id = ? AND activity_date >= ? AND activity_date <= ?
		ORDER BY activity_date ASC, activity_id ASC`, activityColumns)

	rows, err := s.db.QueryContext(ctx, query, userID, formatDate(start), formatDate(end))
	if err != nil {
		return nil, fmt.Errorf("query activities: %w", err)
	}
	defer rows.Close()

	return scanActivities(rows)
}

// Activity returns one activity, or ErrActivityNotFound.
func (s *SQLiteStore) Activity(ctx context.Context, userID int64, activityID string) (*types.Activity, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM activities
		WHERE user_id = ? AND activity_id = ?`, activityColumns)

	rows, err := s.db.QueryContext(ctx, query, userID, activityID)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	activities, err := scanActivities(rows)
	if err != nil {
		return nil, err
	}
	if len(activities) == 0 {
		return nil, ErrActivityNotFound
	}
	return &activities[0], nil
}

const activityColumns = `user_id, activity_id, activity_date, activity_name, activity_type,
		start_time, duration_seconds, distance_meters, calories,
		elevation_gain, elevation_loss, avg_speed, max_speed,
		avg_heart_rate, max_heart_rate, training_load,
		total_sets, total_reps, total_weight_kg,
		sets_synced, splits_synced, created_at, updated_at`

func scanActivities(rows *sql.Rows) ([]types.Activity, error) {
	var activities []types.Activity
	for rows.Next() {
		var a types.Activity
		var dateStr, createdAt, updatedAt string
		var name, actType, startTime sql.NullString
		var duration, calories, avgHR, maxHR, totalSets, totalReps sql.NullInt64
		var distance, elevGain, elevLoss, avgSpeed, maxSpeed, load, weight sql.NullFloat64
		var setsSynced, splitsSynced int

		err := rows.Scan(&a.UserID, &a.ActivityID, &dateStr, &name, &actType,
			&startTime, &duration, &distance, &calories,
			&elevGain, &elevLoss, &avgSpeed, &maxSpeed,
			&avgHR, &maxHR, &load,
			&totalSets, &totalReps, &weight,
			&setsSynced, &splitsSynced, &createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}

		a.ActivityDate, err = parseDate(dateStr)
		if err != nil {
			return nil, err
		}
		a.ActivityName = stringOrEmpty(name)
		a.ActivityType = stringOrEmpty(actType)
		a.StartTime = stringOrEmpty(startTime)
		a.DurationSeconds = nullInt(duration)
		a.DistanceMeters = nullFloat(distance)
		a.Calories = nullInt(calories)
		a.ElevationGain = nullFloat(elevGain)
		a.ElevationLoss = nullFloat(elevLoss)
		a.AvgSpeed = nullFloat(avgSpeed)
		a.MaxSpeed = nullFloat(maxSpeed)
		a.AvgHeartRate = nullInt(avgHR)
		a.MaxHeartRate = nullInt(maxHR)
		a.TrainingLoad = nullFloat(load)
		a.TotalSets = nullInt(totalSets)
		a.TotalReps = nullInt(totalReps)
		a.TotalWeightKg = nullFloat(weight)
		a.SetsSynced = setsSynced != 0
		a.SplitsSynced = splitsSynced != 0
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			a.CreatedAt = t
		}
		if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
			a.UpdatedAt = t
		}
		activities = append(activities, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activities: %w", err)
	}
	return activities, nil
}

// ExerciseSets returns the stored sets of one activity in set order.
func (s *SQLiteStore) ExerciseSets(ctx context.Context, userID int64, activityID string) ([]types.ExerciseSet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, activity_id, set_order, exercise_category, exercise_name,
			set_type, repetition_count, weight_grams, duration_seconds, start_time
		FROM exercise_sets
		WHERE user_id = ? AND activity_id = ?
		ORDER BY set_order ASC
	`, userID, activityID)
	if err != nil {
		return nil, fmt.Errorf("query exercise sets: %w", err)
	}
	defer rows.Close()

	var sets []types.ExerciseSet
	for rows.Next() {
		var set types.ExerciseSet
		var category, exName, setType, startTime sql.NullString
		var reps sql.NullInt64
		var weight, duration sql.NullFloat64

		err := rows.Scan(&set.UserID, &set.ActivityID, &set.SetOrder, &category, &exName,
			&setType, &reps, &weight, &duration, &startTime)
		if err != nil {
			return nil, fmt.Errorf("scan exercise set: %w", err)
		}

		set.ExerciseCategory = stringOrEmpty(category)
		set.ExerciseName = stringOrEmpty(exName)
		set.SetType = stringOrEmpty(setType)
		set.RepetitionCount = nullInt(reps)
		set.WeightGrams = nullFloat(weight)
		set.DurationSeconds = nullFloat(duration)
		set.StartTime = stringOrEmpty(startTime)
		sets = append(sets, set)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exercise sets: %w", err)
	}
	return sets, nil
}

// ActivitySplits returns the stored lap splits of one activity in lap order.
func (s *SQLiteStore) ActivitySplits(ctx context.Context, userID int64, activityID string) ([]types.ActivitySplit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, activity_id, lap_index, start_time, duration_seconds,
			moving_duration_seconds, distance_meters, avg_speed, max_speed,
			avg_moving_speed, avg_heart_rate, max_heart_rate,
			elevation_gain, elevation_loss, max_elevation, min_elevation,
			avg_cadence, max_cadence, calories,
			start_latitude, start_longitude, end_latitude, end_longitude,
			intensity_type
		FROM activity_splits
		WHERE user_id = ? AND activity_id = ?
		ORDER BY lap_index ASC
	`, userID, activityID)
	if err != nil {
		return nil, fmt.Errorf("query activity splits: %w", err)
	}
	defer rows.Close()

	var splits []types.ActivitySplit
	for rows.Next() {
		var sp types.ActivitySplit
		var startTime, intensity sql.NullString
		var avgHR, maxHR sql.NullInt64
		var duration, movingDuration, distance, avgSpeed, maxSpeed, avgMovingSpeed sql.NullFloat64
		var elevGain, elevLoss, maxElev, minElev, avgCadence, maxCadence, calories sql.NullFloat64
		var startLat, startLon, endLat, endLon sql.NullFloat64

		err := rows.Scan(&sp.UserID, &sp.ActivityID, &sp.LapIndex, &startTime, &duration,
			&movingDuration, &distance, &avgSpeed, &maxSpeed,
			&avgMovingSpeed, &avgHR, &maxHR,
			&elevGain, &elevLoss, &maxElev, &minElev,
			&avgCadence, &maxCadence, &calories,
			&startLat, &startLon, &endLat, &endLon,
			&intensity)
		if err != nil {
			return nil, fmt.Errorf("scan activity split: %w", err)
		}

		sp.StartTime = stringOrEmpty(startTime)
		sp.DurationSeconds = nullFloat(duration)
		sp.MovingDurationSeconds = nullFloat(movingDuration)
		sp.DistanceMeters = nullFloat(distance)
		sp.AvgSpeed = nullFloat(avgSpeed)
		sp.MaxSpeed = nullFloat(maxSpeed)
		sp.AvgMovingSpeed = nullFloat(avgMovingSpeed)
		sp.AvgHeartRate = nullInt(avgHR)
		sp.MaxHeartRate = nullInt(maxHR)
		sp.ElevationGain = nullFloat(elevGain)
		sp.ElevationLoss = nullFloat(elevLoss)
		sp.MaxElevation = nullFloat(maxElev)
		sp.MinElevation = nullFloat(minElev)
		sp.AvgCadence = nullFloat(avgCadence)
		sp.MaxCadence = nullFloat(maxCadence)
		sp.Calories = nullFloat(calories)
		sp.StartLatitude = nullFloat(startLat)
		sp.StartLongitude = nullFloat(startLon)
		sp.EndLatitude = nullFloat(endLat)
		sp.EndLongitude = nullFloat(endLon)
		sp.IntensityType = stringOrEmpty(intensity)
		splits = append(splits, sp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity splits: %w", err)
	}
	return splits, nil
}
