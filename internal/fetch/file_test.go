package fetch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperengineering/vitals/internal/types"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestFileFetcher_FetchUnit(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "2024-01-15", "steps.json"),
		`{"daily": {"total_steps": 9200, "step_goal": 10000}}`)

	f := NewFileFetcher(root)
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	data, err := f.FetchUnit(context.Background(), 1, date, types.MetricSteps)
	if err != nil {
		t.Fatal(err)
	}
	if data.Daily == nil || data.Daily.TotalSteps == nil || *data.Daily.TotalSteps != 9200 {
		t.Errorf("Expected total_steps 9200, got %+v", data.Daily)
	}
}

func TestFileFetcher_MissingFileMeansNoData(t *testing.T) {
	f := NewFileFetcher(t.TempDir())
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	_, err := f.FetchUnit(context.Background(), 1, date, types.MetricSleep)
	if !errors.Is(err, ErrNoData) {
		t.Errorf("Expected ErrNoData, got %v", err)
	}
}

func TestFileFetcher_MissingRootMeansUnavailable(t *testing.T) {
	f := NewFileFetcher(filepath.Join(t.TempDir(), "does-not-exist"))
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	_, err := f.FetchUnit(context.Background(), 1, date, types.MetricSteps)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}
}

func TestFileFetcher_MalformedPayloadIsPermanent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "2024-01-15", "steps.json"), `{not json`)

	f := NewFileFetcher(root)
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	_, err := f.FetchUnit(context.Background(), 1, date, types.MetricSteps)
	if err == nil {
		t.Fatal("Expected parse error")
	}
	if Transient(err) {
		t.Error("Expected malformed payload to be permanent, not transient")
	}
}

func TestFileFetcher_ActivityOwnershipStamped(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "2024-01-15", "activities.json"),
		`{"activities": [{"activity_id": "a1", "activity_type": "running"}]}`)

	f := NewFileFetcher(root)
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	data, err := f.FetchUnit(context.Background(), 7, date, types.MetricActivities)
	if err != nil {
		t.Fatal(err)
	}
	if len(data.Activities) != 1 {
		t.Fatalf("Expected 1 activity, got %d", len(data.Activities))
	}
	if data.Activities[0].UserID != 7 {
		t.Errorf("Expected user ID stamped, got %d", data.Activities[0].UserID)
	}
	if !data.Activities[0].ActivityDate.Equal(date) {
		t.Errorf("Expected activity date defaulted to unit date, got %s", data.Activities[0].ActivityDate)
	}
}

func TestFileFetcher_FetchExerciseSets(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "activities", "a1", "sets.json"),
		`[{"set_order": 0, "exercise_name": "SQUAT", "repetition_count": 5}]`)

	f := NewFileFetcher(root)
	sets, err := f.FetchExerciseSets(context.Background(), 1, "a1")
	if err != nil {
		t.Fatal(err)
	}
	if len(sets) != 1 || sets[0].ExerciseName != "SQUAT" {
		t.Errorf("Expected one squat set, got %v", sets)
	}
	if sets[0].UserID != 1 || sets[0].ActivityID != "a1" {
		t.Errorf("Expected ownership stamped, got %+v", sets[0])
	}

	if _, err := f.FetchSplits(context.Background(), 1, "a1"); !errors.Is(err, ErrNoData) {
		t.Errorf("Expected ErrNoData for missing splits, got %v", err)
	}
}
