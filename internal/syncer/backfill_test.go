package syncer

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/hyperengineering/vitals/internal/fetch"
	"github.com/hyperengineering/vitals/internal/types"
)

type mockBackfillStore struct {
	activities map[string]*types.Activity
	replaceErr map[string]error
	replaced   []string
	runs       []types.RunRecord
}

func newMockBackfillStore(activities ...types.Activity) *mockBackfillStore {
	m := &mockBackfillStore{
		activities: make(map[string]*types.Activity),
		replaceErr: make(map[string]error),
	}
	for i := range activities {
		a := activities[i]
		m.activities[a.ActivityID] = &a
	}
	return m
}

func (m *mockBackfillStore) candidates(flagged func(*types.Activity) bool, activityTypes []string, limit int) []types.Activity {
	typeSet := make(map[string]bool)
	for _, t := range activityTypes {
		typeSet[t] = true
	}
	var out []types.Activity
	for _, a := range m.activities {
		if typeSet[a.ActivityType] && !flagged(a) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ActivityDate.Before(out[j].ActivityDate) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m *mockBackfillStore) ActivitiesNeedingSetBackfill(ctx context.Context, userID int64, activityTypes []string, limit int) ([]types.Activity, error) {
	return m.candidates(func(a *types.Activity) bool { return a.SetsSynced }, activityTypes, limit), nil
}

func (m *mockBackfillStore) ActivitiesNeedingSplitBackfill(ctx context.Context, userID int64, activityTypes []string, limit int) ([]types.Activity, error) {
	return m.candidates(func(a *types.Activity) bool { return a.SplitsSynced }, activityTypes, limit), nil
}

func (m *mockBackfillStore) ReplaceExerciseSets(ctx context.Context, userID int64, activityID string, sets []types.ExerciseSet) error {
	if err := m.replaceErr[activityID]; err != nil {
		return err
	}
	m.activities[activityID].SetsSynced = true
	m.replaced = append(m.replaced, activityID)
	return nil
}

func (m *mockBackfillStore) ReplaceActivitySplits(ctx context.Context, userID int64, activityID string, splits []types.ActivitySplit) error {
	if err := m.replaceErr[activityID]; err != nil {
		return err
	}
	m.activities[activityID].SplitsSynced = true
	m.replaced = append(m.replaced, activityID)
	return nil
}

func (m *mockBackfillStore) RecordRun(ctx context.Context, run types.RunRecord) error {
	m.runs = append(m.runs, run)
	return nil
}

type mockDetailFetcher struct {
	setsErr   map[string]error
	splitsErr map[string]error
}

func (f *mockDetailFetcher) FetchUnit(ctx context.Context, userID int64, date time.Time, metric types.MetricType) (*types.UnitData, error) {
	return nil, fetch.ErrNoData
}

func (f *mockDetailFetcher) FetchExerciseSets(ctx context.Context, userID int64, activityID string) ([]types.ExerciseSet, error) {
	if err := f.setsErr[activityID]; err != nil {
		return nil, err
	}
	return []types.ExerciseSet{{UserID: userID, ActivityID: activityID, SetOrder: 0, ExerciseName: "SQUAT"}}, nil
}

func (f *mockDetailFetcher) FetchSplits(ctx context.Context, userID int64, activityID string) ([]types.ActivitySplit, error) {
	if err := f.splitsErr[activityID]; err != nil {
		return nil, err
	}
	return []types.ActivitySplit{{UserID: userID, ActivityID: activityID, LapIndex: 0}}, nil
}

func strengthActivity(id, date string) types.Activity {
	return types.Activity{UserID: 1, ActivityID: id, ActivityDate: testDate(date), ActivityType: "strength_training"}
}

func TestBackfillSets_LimitBoundedOldestFirst(t *testing.T) {
	store := newMockBackfillStore(
		strengthActivity("c", "2024-03-01"),
		strengthActivity("a", "2024-01-01"),
		strengthActivity("b", "2024-02-01"),
		strengthActivity("d", "2024-04-01"),
		strengthActivity("e", "2024-05-01"),
	)
	engine := NewBackfillEngine(store, &mockDetailFetcher{})

	stats, err := engine.BackfillSets(context.Background(), 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 2 || stats.Completed != 2 {
		t.Errorf("Expected 2 of 5 processed, got %+v", stats)
	}
	if len(store.replaced) != 2 || store.replaced[0] != "a" || store.replaced[1] != "b" {
		t.Errorf("Expected oldest two activities [a b], got %v", store.replaced)
	}

	// The next bounded run picks up where this one left off.
	stats, err = engine.BackfillSets(context.Background(), 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Completed != 2 || store.replaced[2] != "c" {
		t.Errorf("Expected next run to continue with c, got %v", store.replaced)
	}
}

func TestBackfillSets_FailureIsolation(t *testing.T) {
	store := newMockBackfillStore(
		strengthActivity("a", "2024-01-01"),
		strengthActivity("b", "2024-02-01"),
		strengthActivity("c", "2024-03-01"),
	)
	fetcher := &mockDetailFetcher{
		setsErr: map[string]error{"b": &fetch.Error{Op: "sets", Err: errors.New("503"), Transient: true}},
	}
	engine := NewBackfillEngine(store, fetcher)

	stats, err := engine.BackfillSets(context.Background(), 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Completed != 2 || stats.Failed != 1 {
		t.Errorf("Expected one failure not to abort the pass, got %+v", stats)
	}
	if store.activities["b"].SetsSynced {
		t.Error("Expected failed activity to stay eligible for the next pass")
	}
}

func TestBackfillSets_NoDataStillMarksSynced(t *testing.T) {
	store := newMockBackfillStore(strengthActivity("a", "2024-01-01"))
	fetcher := &mockDetailFetcher{setsErr: map[string]error{"a": fetch.ErrNoData}}
	engine := NewBackfillEngine(store, fetcher)

	stats, err := engine.BackfillSets(context.Background(), 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Completed != 1 {
		t.Errorf("Expected empty detail payload to complete, got %+v", stats)
	}
	if !store.activities["a"].SetsSynced {
		t.Error("Expected activity with no upstream sets marked synced")
	}
}

func TestBackfillSplits_CardioOnly(t *testing.T) {
	run := types.Activity{UserID: 1, ActivityID: "run", ActivityDate: testDate("2024-01-10"), ActivityType: "running"}
	lift := strengthActivity("lift", "2024-01-11")
	store := newMockBackfillStore(run, lift)
	engine := NewBackfillEngine(store, &mockDetailFetcher{})

	stats, err := engine.BackfillSplits(context.Background(), 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 1 || stats.Completed != 1 {
		t.Errorf("Expected only the cardio activity processed, got %+v", stats)
	}
	if !store.activities["run"].SplitsSynced {
		t.Error("Expected running activity splits marked synced")
	}
	if store.activities["lift"].SplitsSynced {
		t.Error("Expected strength activity excluded from split backfill")
	}

	if len(store.runs) != 1 || store.runs[0].Kind != types.RunBackfillSplits {
		t.Errorf("Expected a recorded backfill_splits run, got %v", store.runs)
	}
}

func TestBackfill_InvalidLimit(t *testing.T) {
	engine := NewBackfillEngine(newMockBackfillStore(), &mockDetailFetcher{})
	if _, err := engine.BackfillSets(context.Background(), 1, 0); err == nil {
		t.Error("Expected error for non-positive limit")
	}
}
