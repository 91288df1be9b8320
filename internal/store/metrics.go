package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hyperengineering/vitals/internal/types"
)

// DailyMetricRecord is one full daily_health_metrics row as read back
// from the store.
type DailyMetricRecord struct {
	UserID     int64     `json:"user_id"`
	MetricDate time.Time `json:"metric_date"`
	types.DailyUpdate
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UpsertDailyMetrics merge-writes a sparse update into the daily row for
// (userID, date). Only the columns the update carries are assigned, so
// fields populated by other metric syncs for the same day survive. An
// empty update is a no-op.
func (s *SQLiteStore) UpsertDailyMetrics(ctx context.Context, userID int64, date time.Time, update *types.DailyUpdate) error {
	return upsertDailyMetrics(ctx, s.db, userID, date, update)
}

func upsertDailyMetrics(ctx context.Context, q dbtx, userID int64, date time.Time, update *types.DailyUpdate) error {
	cols, args := update.Columns()
	if len(cols) == 0 {
		return nil
	}

	now := nowRFC3339()

	insertCols := append([]string{"user_id", "metric_date"}, cols...)
	insertCols = append(insertCols, "created_at", "updated_at")

	placeholders := make([]string, len(insertCols))
	for i := range placeholders {
		placeholders[i] = "?"
	}

	assignments := make([]string, 0, len(cols)+1)
	for _, col := range cols {
		assignments = append(assignments, fmt.Sprintf("%s = excluded.%s", col, col))
	}
	assignments = append(assignments, "updated_at = excluded.updated_at")

	query := fmt.Sprintf(`
		INSERT INTO daily_health_metrics (%s)
		VALUES (%s)
		ON CONFLICT(user_id, metric_date) DO UPDATE SET %s`,
		strings.Join(insertCols, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(assignments, ", "))

	queryArgs := append([]any{userID, formatDate(date)}, args...)
	queryArgs = append(queryArgs, now, now)

	if _, err := q.ExecContext(ctx, query, queryArgs...); err != nil {
		return fmt.Errorf("upsert daily metrics: %w", err)
	}
	return nil
}

// UpsertTimeseries writes high-frequency samples for one metric type.
// Points keyed on (user, metric, timestamp) replace earlier values, so
// re-syncing a day cannot duplicate samples.
func (s *SQLiteStore) UpsertTimeseries(ctx context.Context, userID int64, metric types.MetricType, points []types.TimeseriesPoint) error {
	return upsertTimeseries(ctx, s.db, userID, metric, points)
}

func upsertTimeseries(ctx context.Context, q dbtx, userID int64, metric types.MetricType, points []types.TimeseriesPoint) error {
	if len(points) == 0 {
		return nil
	}

	stmt, err := q.PrepareContext(ctx, `
		INSERT INTO timeseries (user_id, metric_type, timestamp, value, metadata)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, metric_type, timestamp) DO UPDATE SET
			value = excluded.value,
			metadata = excluded.metadata
	`)
	if err != nil {
		return fmt.Errorf("prepare timeseries upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		var metadata any
		if len(p.Metadata) > 0 {
			raw, err := json.Marshal(p.Metadata)
			if err != nil {
				return fmt.Errorf("encode timeseries metadata: %w", err)
			}
			metadata = string(raw)
		}
		if _, err := stmt.ExecContext(ctx, userID, string(metric), p.Timestamp, p.Value, metadata); err != nil {
			return fmt.Errorf("upsert timeseries point: %w", err)
		}
	}
	return nil
}

// DailyMetrics returns the daily rows for a user within the inclusive
// date range, ordered by date ascending.
func (s *SQLiteStore) DailyMetrics(ctx context.Context, userID int64, start, end time.Time) ([]DailyMetricRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, metric_date,
			total_steps, step_goal, total_distance_meters,
			total_calories, active_calories, bmr_calories,
			resting_heart_rate, max_heart_rate, min_heart_rate, average_heart_rate,
			avg_stress_level, max_stress_level,
			body_battery_high, body_battery_low,
			sleep_duration_hours, deep_sleep_hours, light_sleep_hours, rem_sleep_hours, awake_hours,
			deep_sleep_percentage, light_sleep_percentage, rem_sleep_percentage, awake_percentage,
			sleep_score, sleep_score_qualifier, sleep_bedtime, sleep_wake_time, sleep_need_minutes,
			average_spo2, average_respiration,
			training_readiness_score, training_readiness_level, training_readiness_feedback,
			hrv_weekly_avg, hrv_last_night_avg, hrv_status,
			avg_waking_respiration_value, avg_sleep_respiration_value,
			lowest_respiration_value, highest_respiration_value,
			skin_temp_deviation_c,
			created_at, updated_at
		FROM daily_health_metrics
		WHERE user_id = ? AND metric_date >= ? AND metric_date <= ?
		ORDER BY metric_date ASC
	`, userID, formatDate(start), formatDate(end))
	if err != nil {
		return nil, fmt.Errorf("query daily metrics: %w", err)
	}
	defer rows.Close()

	var records []DailyMetricRecord
	for rows.Next() {
		rec, err := scanDailyMetric(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily metrics: %w", err)
	}
	return records, nil
}

// DailyMetric returns one daily row, or ErrNotFound.
func (s *SQLiteStore) DailyMetric(ctx context.Context, userID int64, date time.Time) (*DailyMetricRecord, error) {
	records, err := s.DailyMetrics(ctx, userID, date, date)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return &records[0], nil
}

func scanDailyMetric(rows *sql.Rows) (*DailyMetricRecord, error) {
	var rec DailyMetricRecord
	var dateStr, createdAt, updatedAt string

	var (
		totalSteps, stepGoal                                     sql.NullInt64
		totalDistance                                            sql.NullFloat64
		totalCalories, activeCalories, bmrCalories               sql.NullInt64
		restingHR, maxHR, minHR, avgHR                           sql.NullInt64
		avgStress, maxStress                                     sql.NullInt64
		bbHigh, bbLow                                            sql.NullInt64
		sleepDuration, deepSleep, lightSleep, remSleep, awake    sql.NullFloat64
		deepPct, lightPct, remPct, awakePct                      sql.NullFloat64
		sleepScore                                               sql.NullInt64
		sleepQualifier, sleepBedtime, sleepWakeTime              sql.NullString
		sleepNeed                                                sql.NullInt64
		avgSpO2, avgRespiration                                  sql.NullFloat64
		trScore                                                  sql.NullInt64
		trLevel, trFeedback                                      sql.NullString
		hrvWeekly, hrvLastNight                                  sql.NullFloat64
		hrvStatus                                                sql.NullString
		wakingResp, sleepResp, lowestResp, highestResp, skinTemp sql.NullFloat64
	)

	err := rows.Scan(&rec.UserID, &dateStr,
		&totalSteps, &stepGoal, &totalDistance,
		&totalCalories, &activeCalories, &bmrCalories,
		&restingHR, &maxHR, &minHR, &avgHR,
		&avgStress, &maxStress,
		&bbHigh, &bbLow,
		&sleepDuration, &deepSleep, &lightSleep, &remSleep, &awake,
		&deepPct, &lightPct, &remPct, &awakePct,
		&sleepScore, &sleepQualifier, &sleepBedtime, &sleepWakeTime, &sleepNeed,
		&avgSpO2, &avgRespiration,
		&trScore, &trLevel, &trFeedback,
		&hrvWeekly, &hrvLastNight, &hrvStatus,
		&wakingResp, &sleepResp, &lowestResp, &highestResp,
		&skinTemp,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan daily metrics: %w", err)
	}

	rec.MetricDate, err = parseDate(dateStr)
	if err != nil {
		return nil, err
	}
	rec.TotalSteps = nullInt(totalSteps)
	rec.StepGoal = nullInt(stepGoal)
	rec.TotalDistanceMeters = nullFloat(totalDistance)
	rec.TotalCalories = nullInt(totalCalories)
	rec.ActiveCalories = nullInt(activeCalories)
	rec.BMRCalories = nullInt(bmrCalories)
	rec.RestingHeartRate = nullInt(restingHR)
	rec.MaxHeartRate = nullInt(maxHR)
	rec.MinHeartRate = nullInt(minHR)
	rec.AverageHeartRate = nullInt(avgHR)
	rec.AvgStressLevel = nullInt(avgStress)
	rec.MaxStressLevel = nullInt(maxStress)
	rec.BodyBatteryHigh = nullInt(bbHigh)
	rec.BodyBatteryLow = nullInt(bbLow)
	rec.SleepDurationHours = nullFloat(sleepDuration)
	rec.DeepSleepHours = nullFloat(deepSleep)
	rec.LightSleepHours = nullFloat(lightSleep)
	rec.REMSleepHours = nullFloat(remSleep)
	rec.AwakeHours = nullFloat(awake)
	rec.DeepSleepPercentage = nullFloat(deepPct)
	rec.LightSleepPercentage = nullFloat(lightPct)
	rec.REMSleepPercentage = nullFloat(remPct)
	rec.AwakePercentage = nullFloat(awakePct)
	rec.SleepScore = nullInt(sleepScore)
	rec.SleepScoreQualifier = nullString(sleepQualifier)
	rec.SleepBedtime = nullString(sleepBedtime)
	rec.SleepWakeTime = nullString(sleepWakeTime)
	rec.SleepNeedMinutes = nullInt(sleepNeed)
	rec.AverageSpO2 = nullFloat(avgSpO2)
	rec.AverageRespiration = nullFloat(avgRespiration)
	rec.TrainingReadinessScore = nullInt(trScore)
	rec.TrainingReadinessLevel = nullString(trLevel)
	rec.TrainingReadinessFeedback = nullString(trFeedback)
	rec.HRVWeeklyAvg = nullFloat(hrvWeekly)
	rec.HRVLastNightAvg = nullFloat(hrvLastNight)
	rec.HRVStatus = nullString(hrvStatus)
	rec.AvgWakingRespirationValue = nullFloat(wakingResp)
	rec.AvgSleepRespirationValue = nullFloat(sleepResp)
	rec.LowestRespirationValue = nullFloat(lowestResp)
	rec.HighestRespirationValue = nullFloat(highestResp)
	rec.SkinTempDeviationC = nullFloat(skinTemp)

	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		rec.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		rec.UpdatedAt = t
	}
	return &rec, nil
}

// TimeseriesRange returns samples for one metric within [startMs, endMs],
// ordered by timestamp ascending.
func (s *SQLiteStore) TimeseriesRange(ctx context.Context, userID int64, metric types.MetricType, startMs, endMs int64) ([]types.TimeseriesPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, value, metadata
		FROM timeseries
		WHERE user_id = ? AND metric_type = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`, userID, string(metric), startMs, endMs)
	if err != nil {
		return nil, fmt.Errorf("query timeseries: %w", err)
	}
	defer rows.Close()

	var points []types.TimeseriesPoint
	for rows.Next() {
		var p types.TimeseriesPoint
		var metadata sql.NullString
		if err := rows.Scan(&p.Timestamp, &p.Value, &metadata); err != nil {
			return nil, fmt.Errorf("scan timeseries point: %w", err)
		}
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &p.Metadata); err != nil {
				return nil, fmt.Errorf("decode timeseries metadata: %w", err)
			}
		}
		points = append(points, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timeseries: %w", err)
	}
	return points, nil
}
