package types

import (
	"strings"
	"testing"
)

func TestParseMetrics_EmptyYieldsAll(t *testing.T) {
	metrics, err := ParseMetrics("")
	if err != nil {
		t.Fatalf("ParseMetrics() error = %v", err)
	}
	if len(metrics) != len(AllMetrics) {
		t.Fatalf("Expected %d metrics, got %d", len(AllMetrics), len(metrics))
	}
	for i, m := range AllMetrics {
		if metrics[i] != m {
			t.Errorf("metrics[%d] = %s, want %s", i, metrics[i], m)
		}
	}

	// Returned slice must be a copy, not AllMetrics itself.
	metrics[0] = MetricType("mutated")
	if AllMetrics[0] != MetricDailySummary {
		t.Error("ParseMetrics returned a slice aliasing AllMetrics")
	}
}

func TestParseMetrics_SortsByPriority(t *testing.T) {
	metrics, err := ParseMetrics("stress,sleep,daily_summary")
	if err != nil {
		t.Fatalf("ParseMetrics() error = %v", err)
	}

	want := []MetricType{MetricDailySummary, MetricSleep, MetricStress}
	if len(metrics) != len(want) {
		t.Fatalf("Expected %d metrics, got %d", len(want), len(metrics))
	}
	for i := range want {
		if metrics[i] != want[i] {
			t.Errorf("metrics[%d] = %s, want %s", i, metrics[i], want[i])
		}
	}
}

func TestParseMetrics_DeduplicatesAndTrims(t *testing.T) {
	metrics, err := ParseMetrics(" sleep , SLEEP,sleep ")
	if err != nil {
		t.Fatalf("ParseMetrics() error = %v", err)
	}
	if len(metrics) != 1 || metrics[0] != MetricSleep {
		t.Errorf("Expected [sleep], got %v", metrics)
	}
}

func TestParseMetrics_UnknownMetric(t *testing.T) {
	_, err := ParseMetrics("sleep,bogus")
	if err == nil {
		t.Fatal("Expected error for unknown metric")
	}
	if !strings.Contains(err.Error(), "bogus") {
		t.Errorf("Error should name the bad metric, got: %v", err)
	}
	if !strings.Contains(err.Error(), "daily_summary") {
		t.Errorf("Error should list available metrics, got: %v", err)
	}
}

func TestMetricType_Priority(t *testing.T) {
	if p := MetricDailySummary.Priority(); p != 0 {
		t.Errorf("daily_summary priority = %d, want 0", p)
	}
	if MetricSleep.Priority() >= MetricActivities.Priority() {
		t.Error("sleep should schedule before activities")
	}
	if p := MetricType("bogus").Priority(); p != len(AllMetrics) {
		t.Errorf("Unknown metric priority = %d, want %d", p, len(AllMetrics))
	}
}

func TestMetricType_Valid(t *testing.T) {
	for _, m := range AllMetrics {
		if !m.Valid() {
			t.Errorf("%s should be valid", m)
		}
	}
	if MetricType("bogus").Valid() {
		t.Error("bogus should not be valid")
	}
}

func TestTimeseriesMetrics_Membership(t *testing.T) {
	if !TimeseriesMetrics[MetricHeartRate] {
		t.Error("heart_rate should carry timeseries samples")
	}
	if TimeseriesMetrics[MetricSleep] {
		t.Error("sleep should not carry timeseries samples")
	}
}

func TestDailyUpdate_Columns_Sparse(t *testing.T) {
	steps := int64(9200)
	score := int64(82)
	u := &DailyUpdate{TotalSteps: &steps, SleepScore: &score}

	cols, args := u.Columns()
	if len(cols) != 2 || len(args) != 2 {
		t.Fatalf("Expected 2 columns, got %d cols / %d args", len(cols), len(args))
	}
	if cols[0] != "total_steps" || cols[1] != "sleep_score" {
		t.Errorf("Unexpected columns: %v", cols)
	}
	if args[0] != int64(9200) || args[1] != int64(82) {
		t.Errorf("Unexpected args: %v", args)
	}
}

func TestDailyUpdate_Empty(t *testing.T) {
	var nilUpdate *DailyUpdate
	if !nilUpdate.Empty() {
		t.Error("nil update should be empty")
	}
	if !(&DailyUpdate{}).Empty() {
		t.Error("zero update should be empty")
	}

	hr := int64(58)
	if (&DailyUpdate{RestingHeartRate: &hr}).Empty() {
		t.Error("update with a field should not be empty")
	}
}

func TestUnitData_Empty(t *testing.T) {
	var nilData *UnitData
	if !nilData.Empty() {
		t.Error("nil data should be empty")
	}
	if !(&UnitData{Daily: &DailyUpdate{}}).Empty() {
		t.Error("data with empty update should be empty")
	}
	if (&UnitData{Points: []TimeseriesPoint{{Timestamp: 1, Value: 60}}}).Empty() {
		t.Error("data with points should not be empty")
	}
	if (&UnitData{Activities: []Activity{{ActivityID: "a1"}}}).Empty() {
		t.Error("data with activities should not be empty")
	}
}
