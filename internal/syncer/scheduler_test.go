package syncer

import (
	"testing"
	"time"

	"github.com/hyperengineering/vitals/internal/types"
)

func testDate(s string) time.Time {
	t, err := time.Parse(types.DateFormat, s)
	if err != nil {
		panic(err)
	}
	return t
}

func entry(date string, metric types.MetricType, status types.SyncState) types.SyncEntry {
	return types.SyncEntry{
		UserID:     1,
		SyncDate:   testDate(date),
		MetricType: metric,
		Status:     status,
	}
}

func TestPlan_CoversEveryUnitExactlyOnce(t *testing.T) {
	start := testDate("2024-01-10")
	end := testDate("2024-01-12")

	units := Plan(nil, start, end, types.AllMetrics, false, true)

	want := 3 * len(types.AllMetrics)
	if len(units) != want {
		t.Fatalf("Expected %d units, got %d", want, len(units))
	}

	seen := make(map[string]bool)
	for _, u := range units {
		key := u.Date.Format(types.DateFormat) + "/" + string(u.Metric)
		if seen[key] {
			t.Errorf("Unit %s planned twice", key)
		}
		seen[key] = true
	}
}

func TestPlan_OrderedByDateThenPriority(t *testing.T) {
	start := testDate("2024-01-10")
	end := testDate("2024-01-11")

	// Metrics given out of priority order must still plan in priority order.
	metrics := []types.MetricType{types.MetricActivities, types.MetricSleep, types.MetricDailySummary}
	units := Plan(nil, start, end, metrics, false, true)

	if len(units) != 6 {
		t.Fatalf("Expected 6 units, got %d", len(units))
	}
	for i := 1; i < len(units); i++ {
		prev, cur := units[i-1], units[i]
		if cur.Date.Before(prev.Date) {
			t.Fatal("Expected dates ascending")
		}
		if cur.Date.Equal(prev.Date) && cur.Metric.Priority() < prev.Metric.Priority() {
			t.Fatalf("Expected %s before %s on %s", cur.Metric, prev.Metric, cur.Date.Format(types.DateFormat))
		}
	}
	if units[0].Metric != types.MetricDailySummary {
		t.Errorf("Expected daily_summary first, got %s", units[0].Metric)
	}
}

func TestPlan_ExcludesCompletedAndSkipped(t *testing.T) {
	ledger := []types.SyncEntry{
		entry("2024-01-10", types.MetricSleep, types.SyncCompleted),
		entry("2024-01-11", types.MetricSleep, types.SyncSkipped),
		entry("2024-01-12", types.MetricSleep, types.SyncPending),
	}

	units := Plan(ledger, testDate("2024-01-10"), testDate("2024-01-12"), []types.MetricType{types.MetricSleep}, false, true)

	if len(units) != 1 {
		t.Fatalf("Expected 1 unit, got %d", len(units))
	}
	if !units[0].Date.Equal(testDate("2024-01-12")) {
		t.Errorf("Expected only the pending date planned, got %s", units[0].Date.Format(types.DateFormat))
	}
}

func TestPlan_FailedUnitsFollowRetryPolicy(t *testing.T) {
	ledger := []types.SyncEntry{
		entry("2024-01-10", types.MetricSteps, types.SyncFailed),
	}
	start, end := testDate("2024-01-10"), testDate("2024-01-10")
	metrics := []types.MetricType{types.MetricSteps}

	if units := Plan(ledger, start, end, metrics, false, true); len(units) != 1 {
		t.Errorf("Expected failed unit replanned when retries enabled, got %d units", len(units))
	}
	if units := Plan(ledger, start, end, metrics, false, false); len(units) != 0 {
		t.Errorf("Expected failed unit excluded when retries disabled, got %d units", len(units))
	}
}

func TestPlan_ForceIncludesEverything(t *testing.T) {
	ledger := []types.SyncEntry{
		entry("2024-01-10", types.MetricSleep, types.SyncCompleted),
		entry("2024-01-10", types.MetricSteps, types.SyncSkipped),
		entry("2024-01-10", types.MetricHRV, types.SyncFailed),
	}
	metrics := []types.MetricType{types.MetricSleep, types.MetricSteps, types.MetricHRV}

	units := Plan(ledger, testDate("2024-01-10"), testDate("2024-01-10"), metrics, true, false)
	if len(units) != 3 {
		t.Errorf("Expected force to replan all 3 units, got %d", len(units))
	}
}

func TestPlan_AbsentLedgerEntryMeansPending(t *testing.T) {
	units := Plan(nil, testDate("2024-01-10"), testDate("2024-01-10"), []types.MetricType{types.MetricSleep}, false, true)
	if len(units) != 1 {
		t.Errorf("Expected unit with no ledger entry to be planned, got %d units", len(units))
	}
}
