// Package types defines the entities shared across the vitals engine:
// metric identifiers, sync ledger states, and the records written into
// the local health database.
package types

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DateFormat is the canonical storage format for calendar dates.
const DateFormat = "2006-01-02"

// MetricType identifies one synchronizable health metric.
type MetricType string

const (
	MetricDailySummary      MetricType = "daily_summary"
	MetricSleep             MetricType = "sleep"
	MetricActivities        MetricType = "activities"
	MetricBodyBattery       MetricType = "body_battery"
	MetricStress            MetricType = "stress"
	MetricHeartRate         MetricType = "heart_rate"
	MetricTrainingReadiness MetricType = "training_readiness"
	MetricHRV               MetricType = "hrv"
	MetricRespiration       MetricType = "respiration"
	MetricSteps             MetricType = "steps"
	MetricCalories          MetricType = "calories"
)

// AllMetrics lists every metric in scheduling priority order: the daily
// summary is synced before dependent metrics because presence checks for
// the dependent types are only meaningful once the day's summary exists.
var AllMetrics = []MetricType{
	MetricDailySummary,
	MetricSleep,
	MetricTrainingReadiness,
	MetricHRV,
	MetricSteps,
	MetricCalories,
	MetricHeartRate,
	MetricStress,
	MetricBodyBattery,
	MetricRespiration,
	MetricActivities,
}

// TimeseriesMetrics are the metrics whose fetch payloads carry
// point-granularity samples in addition to daily summary fields.
var TimeseriesMetrics = map[MetricType]bool{
	MetricBodyBattery: true,
	MetricStress:      true,
	MetricHeartRate:   true,
	MetricRespiration: true,
}

// Priority returns the scheduling rank of m. Unknown metrics sort last.
func (m MetricType) Priority() int {
	for i, known := range AllMetrics {
		if known == m {
			return i
		}
	}
	return len(AllMetrics)
}

// Valid reports whether m is a known metric type.
func (m MetricType) Valid() bool {
	return m.Priority() < len(AllMetrics)
}

// ParseMetrics parses a comma-separated metric list. An empty input
// yields all metrics in priority order.
func ParseMetrics(s string) ([]MetricType, error) {
	if strings.TrimSpace(s) == "" {
		return append([]MetricType(nil), AllMetrics...), nil
	}

	seen := make(map[MetricType]bool)
	var metrics []MetricType
	for _, name := range strings.Split(s, ",") {
		m := MetricType(strings.ToLower(strings.TrimSpace(name)))
		if !m.Valid() {
			return nil, fmt.Errorf("unknown metric %q (available: %s)", name, availableMetricNames())
		}
		if seen[m] {
			continue
		}
		seen[m] = true
		metrics = append(metrics, m)
	}

	sort.Slice(metrics, func(i, j int) bool {
		return metrics[i].Priority() < metrics[j].Priority()
	})
	return metrics, nil
}

func availableMetricNames() string {
	names := make([]string, len(AllMetrics))
	for i, m := range AllMetrics {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

// SyncState is the ledger status of one sync unit.
type SyncState string

const (
	SyncPending   SyncState = "pending"
	SyncCompleted SyncState = "completed"
	SyncFailed    SyncState = "failed"
	SyncSkipped   SyncState = "skipped"
)

// SyncEntry is one row of the sync ledger: the last-known outcome for a
// (user, date, metric) unit. It is an overwrite record, not a history.
type SyncEntry struct {
	UserID       int64      `json:"user_id"`
	SyncDate     time.Time  `json:"sync_date"`
	MetricType   MetricType `json:"metric_type"`
	Status       SyncState  `json:"status"`
	SyncedAt     *time.Time `json:"synced_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// DailyUpdate is a sparse partial update of one daily_health_metrics row.
// Only non-nil fields are written; columns populated by other metric
// types for the same day are left untouched by the merge-write.
type DailyUpdate struct {
	TotalSteps          *int64   `json:"total_steps,omitempty"`
	StepGoal            *int64   `json:"step_goal,omitempty"`
	TotalDistanceMeters *float64 `json:"total_distance_meters,omitempty"`

	TotalCalories  *int64 `json:"total_calories,omitempty"`
	ActiveCalories *int64 `json:"active_calories,omitempty"`
	BMRCalories    *int64 `json:"bmr_calories,omitempty"`

	RestingHeartRate *int64 `json:"resting_heart_rate,omitempty"`
	MaxHeartRate     *int64 `json:"max_heart_rate,omitempty"`
	MinHeartRate     *int64 `json:"min_heart_rate,omitempty"`
	AverageHeartRate *int64 `json:"average_heart_rate,omitempty"`

	AvgStressLevel *int64 `json:"avg_stress_level,omitempty"`
	MaxStressLevel *int64 `json:"max_stress_level,omitempty"`

	BodyBatteryHigh *int64 `json:"body_battery_high,omitempty"`
	BodyBatteryLow  *int64 `json:"body_battery_low,omitempty"`

	SleepDurationHours   *float64 `json:"sleep_duration_hours,omitempty"`
	DeepSleepHours       *float64 `json:"deep_sleep_hours,omitempty"`
	LightSleepHours      *float64 `json:"light_sleep_hours,omitempty"`
	REMSleepHours        *float64 `json:"rem_sleep_hours,omitempty"`
	AwakeHours           *float64 `json:"awake_hours,omitempty"`
	DeepSleepPercentage  *float64 `json:"deep_sleep_percentage,omitempty"`
	LightSleepPercentage *float64 `json:"light_sleep_percentage,omitempty"`
	REMSleepPercentage   *float64 `json:"rem_sleep_percentage,omitempty"`
	AwakePercentage      *float64 `json:"awake_percentage,omitempty"`
	SleepScore           *int64   `json:"sleep_score,omitempty"`
	SleepScoreQualifier  *string  `json:"sleep_score_qualifier,omitempty"`
	SleepBedtime         *string  `json:"sleep_bedtime,omitempty"`
	SleepWakeTime        *string  `json:"sleep_wake_time,omitempty"`
	SleepNeedMinutes     *int64   `json:"sleep_need_minutes,omitempty"`

	AverageSpO2        *float64 `json:"average_spo2,omitempty"`
	AverageRespiration *float64 `json:"average_respiration,omitempty"`

	TrainingReadinessScore    *int64  `json:"training_readiness_score,omitempty"`
	TrainingReadinessLevel    *string `json:"training_readiness_level,omitempty"`
	TrainingReadinessFeedback *string `json:"training_readiness_feedback,omitempty"`

	HRVWeeklyAvg    *float64 `json:"hrv_weekly_avg,omitempty"`
	HRVLastNightAvg *float64 `json:"hrv_last_night_avg,omitempty"`
	HRVStatus       *string  `json:"hrv_status,omitempty"`

	AvgWakingRespirationValue *float64 `json:"avg_waking_respiration_value,omitempty"`
	AvgSleepRespirationValue  *float64 `json:"avg_sleep_respiration_value,omitempty"`
	LowestRespirationValue    *float64 `json:"lowest_respiration_value,omitempty"`
	HighestRespirationValue   *float64 `json:"highest_respiration_value,omitempty"`

	SkinTempDeviationC *float64 `json:"skin_temp_deviation_c,omitempty"`
}

// Columns returns the column assignments carried by this update, in a
// stable order. The column names form the closed set the merge-write may
// touch; anything outside this list never appears in the statement.
func (u *DailyUpdate) Columns() ([]string, []any) {
	if u == nil {
		return nil, nil
	}

	var cols []string
	var args []any
	add := func(name string, v any, set bool) {
		if set {
			cols = append(cols, name)
			args = append(args, v)
		}
	}

	add("total_steps", deref(u.TotalSteps), u.TotalSteps != nil)
	add("step_goal", deref(u.StepGoal), u.StepGoal != nil)
	add("total_distance_meters", deref(u.TotalDistanceMeters), u.TotalDistanceMeters != nil)
	add("total_calories", deref(u.TotalCalories), u.TotalCalories != nil)
	add("active_calories", deref(u.ActiveCalories), u.ActiveCalories != nil)
	add("bmr_calories", deref(u.BMRCalories), u.BMRCalories != nil)
	add("resting_heart_rate", deref(u.RestingHeartRate), u.RestingHeartRate != nil)
	add("max_heart_rate", deref(u.MaxHeartRate), u.MaxHeartRate != nil)
	add("min_heart_rate", deref(u.MinHeartRate), u.MinHeartRate != nil)
	add("average_heart_rate", deref(u.AverageHeartRate), u.AverageHeartRate != nil)
	add("avg_stress_level", deref(u.AvgStressLevel), u.AvgStressLevel != nil)
	add("max_stress_level", deref(u.MaxStressLevel), u.MaxStressLevel != nil)
	add("body_battery_high", deref(u.BodyBatteryHigh), u.BodyBatteryHigh != nil)
	add("body_battery_low", deref(u.BodyBatteryLow), u.BodyBatteryLow != nil)
	add("sleep_duration_hours", deref(u.SleepDurationHours), u.SleepDurationHours != nil)
	add("deep_sleep_hours", deref(u.DeepSleepHours), u.DeepSleepHours != nil)
	add("light_sleep_hours", deref(u.LightSleepHours), u.LightSleepHours != nil)
	add("rem_sleep_hours", deref(u.REMSleepHours), u.REMSleepHours != nil)
	add("awake_hours", deref(u.AwakeHours), u.AwakeHours != nil)
	add("deep_sleep_percentage", deref(u.DeepSleepPercentage), u.DeepSleepPercentage != nil)
	add("light_sleep_percentage", deref(u.LightSleepPercentage), u.LightSleepPercentage != nil)
	add("rem_sleep_percentage", deref(u.REMSleepPercentage), u.REMSleepPercentage != nil)
	add("awake_percentage", deref(u.AwakePercentage), u.AwakePercentage != nil)
	add("sleep_score", deref(u.SleepScore), u.SleepScore != nil)
	add("sleep_score_qualifier", deref(u.SleepScoreQualifier), u.SleepScoreQualifier != nil)
	add("sleep_bedtime", deref(u.SleepBedtime), u.SleepBedtime != nil)
	add("sleep_wake_time", deref(u.SleepWakeTime), u.SleepWakeTime != nil)
	add("sleep_need_minutes", deref(u.SleepNeedMinutes), u.SleepNeedMinutes != nil)
	add("average_spo2", deref(u.AverageSpO2), u.AverageSpO2 != nil)
	add("average_respiration", deref(u.AverageRespiration), u.AverageRespiration != nil)
	add("training_readiness_score", deref(u.TrainingReadinessScore), u.TrainingReadinessScore != nil)
	add("training_readiness_level", deref(u.TrainingReadinessLevel), u.TrainingReadinessLevel != nil)
	add("training_readiness_feedback", deref(u.TrainingReadinessFeedback), u.TrainingReadinessFeedback != nil)
	add("hrv_weekly_avg", deref(u.HRVWeeklyAvg), u.HRVWeeklyAvg != nil)
	add("hrv_last_night_avg", deref(u.HRVLastNightAvg), u.HRVLastNightAvg != nil)
	add("hrv_status", deref(u.HRVStatus), u.HRVStatus != nil)
	add("avg_waking_respiration_value", deref(u.AvgWakingRespirationValue), u.AvgWakingRespirationValue != nil)
	add("avg_sleep_respiration_value", deref(u.AvgSleepRespirationValue), u.AvgSleepRespirationValue != nil)
	add("lowest_respiration_value", deref(u.LowestRespirationValue), u.LowestRespirationValue != nil)
	add("highest_respiration_value", deref(u.HighestRespirationValue), u.HighestRespirationValue != nil)
	add("skin_temp_deviation_c", deref(u.SkinTempDeviationC), u.SkinTempDeviationC != nil)

	return cols, args
}

// Empty reports whether the update carries no column assignments.
func (u *DailyUpdate) Empty() bool {
	cols, _ := u.Columns()
	return len(cols) == 0
}

func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

// TimeseriesPoint is one high-frequency sample. Timestamp is Unix
// milliseconds, matching the remote source's sample resolution.
type TimeseriesPoint struct {
	Timestamp int64          `json:"timestamp"`
	Value     float64        `json:"value"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Activity is a workout summary row. SetsSynced and SplitsSynced are the
// per-detail completeness flags consumed by the backfill passes; a regular
// activity sync never resets them.
type Activity struct {
	UserID          int64     `json:"user_id"`
	ActivityID      string    `json:"activity_id"`
	ActivityDate    time.Time `json:"activity_date"`
	ActivityName    string    `json:"activity_name,omitempty"`
	ActivityType    string    `json:"activity_type,omitempty"`
	StartTime       string    `json:"start_time,omitempty"`
	DurationSeconds *int64    `json:"duration_seconds,omitempty"`
	DistanceMeters  *float64  `json:"distance_meters,omitempty"`
	Calories        *int64    `json:"calories,omitempty"`
	ElevationGain   *float64  `json:"elevation_gain,omitempty"`
	ElevationLoss   *float64  `json:"elevation_loss,omitempty"`
	AvgSpeed        *float64  `json:"avg_speed,omitempty"`
	MaxSpeed        *float64  `json:"max_speed,omitempty"`
	AvgHeartRate    *int64    `json:"avg_heart_rate,omitempty"`
	MaxHeartRate    *int64    `json:"max_heart_rate,omitempty"`
	TrainingLoad    *float64  `json:"training_load,omitempty"`
	TotalSets       *int64    `json:"total_sets,omitempty"`
	TotalReps       *int64    `json:"total_reps,omitempty"`
	TotalWeightKg   *float64  `json:"total_weight_kg,omitempty"`
	SetsSynced      bool      `json:"sets_synced"`
	SplitsSynced    bool      `json:"splits_synced"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
	UpdatedAt       time.Time `json:"updated_at,omitempty"`
}

// ExerciseSet is one strength-training set, child of an Activity.
// Sets are only ever written as a complete replacement per activity.
type ExerciseSet struct {
	UserID           int64    `json:"user_id"`
	ActivityID       string   `json:"activity_id"`
	SetOrder         int      `json:"set_order"`
	ExerciseCategory string   `json:"exercise_category,omitempty"`
	ExerciseName     string   `json:"exercise_name,omitempty"`
	SetType          string   `json:"set_type,omitempty"`
	RepetitionCount  *int64   `json:"repetition_count,omitempty"`
	WeightGrams      *float64 `json:"weight_grams,omitempty"`
	DurationSeconds  *float64 `json:"duration_seconds,omitempty"`
	StartTime        string   `json:"start_time,omitempty"`
}

// ActivitySplit is one lap of a cardio activity, child of an Activity.
// Same full-replacement semantics as ExerciseSet.
type ActivitySplit struct {
	UserID                int64    `json:"user_id"`
	ActivityID            string   `json:"activity_id"`
	LapIndex              int      `json:"lap_index"`
	StartTime             string   `json:"start_time,omitempty"`
	DurationSeconds       *float64 `json:"duration_seconds,omitempty"`
	MovingDurationSeconds *float64 `json:"moving_duration_seconds,omitempty"`
	DistanceMeters        *float64 `json:"distance_meters,omitempty"`
	AvgSpeed              *float64 `json:"avg_speed,omitempty"`
	MaxSpeed              *float64 `json:"max_speed,omitempty"`
	AvgMovingSpeed        *float64 `json:"avg_moving_speed,omitempty"`
	AvgHeartRate          *int64   `json:"avg_heart_rate,omitempty"`
	MaxHeartRate          *int64   `json:"max_heart_rate,omitempty"`
	ElevationGain         *float64 `json:"elevation_gain,omitempty"`
	ElevationLoss         *float64 `json:"elevation_loss,omitempty"`
	MaxElevation          *float64 `json:"max_elevation,omitempty"`
	MinElevation          *float64 `json:"min_elevation,omitempty"`
	AvgCadence            *float64 `json:"avg_cadence,omitempty"`
	MaxCadence            *float64 `json:"max_cadence,omitempty"`
	Calories              *float64 `json:"calories,omitempty"`
	StartLatitude         *float64 `json:"start_latitude,omitempty"`
	StartLongitude        *float64 `json:"start_longitude,omitempty"`
	EndLatitude           *float64 `json:"end_latitude,omitempty"`
	EndLongitude          *float64 `json:"end_longitude,omitempty"`
	IntensityType         string   `json:"intensity_type,omitempty"`
}

// UnitData bundles the typed records one fetch produced for a sync unit.
type UnitData struct {
	Daily      *DailyUpdate      `json:"daily,omitempty"`
	Points     []TimeseriesPoint `json:"points,omitempty"`
	Activities []Activity        `json:"activities,omitempty"`
}

// Empty reports whether the fetch produced nothing storable.
func (d *UnitData) Empty() bool {
	if d == nil {
		return true
	}
	return d.Daily.Empty() && len(d.Points) == 0 && len(d.Activities) == 0
}

// RunKind distinguishes sync_runs rows by the pass that produced them.
type RunKind string

const (
	RunSync           RunKind = "sync"
	RunBackfillSets   RunKind = "backfill_sets"
	RunBackfillSplits RunKind = "backfill_splits"
)

// RunStats aggregates per-outcome unit counts for one run. A run reports
// counts rather than a boolean; individual unit failures never abort it.
type RunStats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// RunRecord is one row of run history.
type RunRecord struct {
	RunID      string    `json:"run_id"`
	UserID     int64     `json:"user_id"`
	Kind       RunKind   `json:"kind"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Stats      RunStats  `json:"stats"`
}
