package store

import (
	"context"
	"testing"

	"github.com/hyperengineering/vitals/internal/types"
)

func TestApplyUnit_WritesDataAndLedgerTogether(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	date := testDate("2024-01-15")

	data := &types.UnitData{
		Daily: &types.DailyUpdate{
			SleepDurationHours: float64p(7.2),
			SleepScore:         int64p(80),
		},
	}
	if err := s.ApplyUnit(ctx, 1, date, types.MetricSleep, data); err != nil {
		t.Fatal(err)
	}

	rec, err := s.DailyMetric(ctx, 1, date)
	if err != nil {
		t.Fatal(err)
	}
	if rec.SleepScore == nil || *rec.SleepScore != 80 {
		t.Errorf("Expected sleep_score 80, got %v", rec.SleepScore)
	}

	state, err := s.SyncStatus(ctx, 1, date, types.MetricSleep)
	if err != nil {
		t.Fatal(err)
	}
	if state != types.SyncCompleted {
		t.Errorf("Expected completed ledger mark, got %s", state)
	}
}

func TestApplyUnit_TimeseriesMetric(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	date := testDate("2024-01-15")

	data := &types.UnitData{
		Daily: &types.DailyUpdate{
			BodyBatteryHigh: int64p(90),
			BodyBatteryLow:  int64p(25),
		},
		Points: []types.TimeseriesPoint{
			{Timestamp: 1705305600000, Value: 88},
			{Timestamp: 1705309200000, Value: 84},
		},
	}
	if err := s.ApplyUnit(ctx, 1, date, types.MetricBodyBattery, data); err != nil {
		t.Fatal(err)
	}

	points, err := s.TimeseriesRange(ctx, 1, types.MetricBodyBattery, 0, 1705392000000)
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 2 {
		t.Fatalf("Expected 2 points, got %d", len(points))
	}
}

func TestApplyUnit_ActivitiesMetric(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	date := testDate("2024-01-15")

	data := &types.UnitData{
		Activities: []types.Activity{
			testActivity("a1", "2024-01-15", "running"),
			testActivity("a2", "2024-01-15", "strength_training"),
		},
	}
	if err := s.ApplyUnit(ctx, 1, date, types.MetricActivities, data); err != nil {
		t.Fatal(err)
	}

	acts, err := s.Activities(ctx, 1, date, date)
	if err != nil {
		t.Fatal(err)
	}
	if len(acts) != 2 {
		t.Fatalf("Expected 2 activities, got %d", len(acts))
	}
}

func TestApplyUnit_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	date := testDate("2024-01-15")

	data := &types.UnitData{
		Daily:  &types.DailyUpdate{TotalSteps: int64p(8000)},
		Points: []types.TimeseriesPoint{{Timestamp: 1705305600000, Value: 70}},
		Activities: []types.Activity{
			testActivity("a1", "2024-01-15", "running"),
		},
	}

	// Applying the same unit twice must leave state identical to once.
	if err := s.ApplyUnit(ctx, 1, date, types.MetricHeartRate, data); err != nil {
		t.Fatal(err)
	}
	if err := s.ApplyUnit(ctx, 1, date, types.MetricHeartRate, data); err != nil {
		t.Fatal(err)
	}

	records, err := s.DailyMetrics(ctx, 1, date, date)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected a single daily row, got %d", len(records))
	}
	points, err := s.TimeseriesRange(ctx, 1, types.MetricHeartRate, 0, 1705392000000)
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 1 {
		t.Fatalf("Expected a single point, got %d", len(points))
	}
	acts, err := s.Activities(ctx, 1, date, date)
	if err != nil {
		t.Fatal(err)
	}
	if len(acts) != 1 {
		t.Fatalf("Expected a single activity, got %d", len(acts))
	}
}

func TestApplyUnit_NilDataOnlyMarksLedger(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	date := testDate("2024-01-15")

	if err := s.ApplyUnit(ctx, 1, date, types.MetricHRV, nil); err != nil {
		t.Fatal(err)
	}

	state, err := s.SyncStatus(ctx, 1, date, types.MetricHRV)
	if err != nil {
		t.Fatal(err)
	}
	if state != types.SyncCompleted {
		t.Errorf("Expected completed, got %s", state)
	}
	if _, err := s.DailyMetric(ctx, 1, date); err != ErrNotFound {
		t.Errorf("Expected no daily row, got %v", err)
	}
}
