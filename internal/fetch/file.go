package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hyperengineering/vitals/internal/types"
)

// FileFetcher reads unit payloads from a local export directory. Layout:
//
//	<root>/<YYYY-MM-DD>/<metric>.json          one UnitData per unit
//	<root>/activities/<activity_id>/sets.json   exercise set detail
//	<root>/activities/<activity_id>/splits.json lap split detail
//
// A missing file means the remote had no data for that unit; a missing
// root means the source is unavailable. Talking to a live remote is a
// separate adapter's job; this one serves offline drops and tests.
type FileFetcher struct {
	root string
}

// NewFileFetcher creates a fetcher over an export directory.
func NewFileFetcher(root string) *FileFetcher {
	return &FileFetcher{root: root}
}

// FetchUnit reads one (date, metric) payload.
func (f *FileFetcher) FetchUnit(ctx context.Context, userID int64, date time.Time, metric types.MetricType) (*types.UnitData, error) {
	if err := f.checkRoot(); err != nil {
		return nil, err
	}
	path := filepath.Join(f.root, date.Format(types.DateFormat), string(metric)+".json")

	var data types.UnitData
	if err := f.readJSON(path, &data); err != nil {
		return nil, err
	}
	for i := range data.Activities {
		data.Activities[i].UserID = userID
		if data.Activities[i].ActivityDate.IsZero() {
			data.Activities[i].ActivityDate = date
		}
	}
	return &data, nil
}

// FetchExerciseSets reads one activity's set detail.
func (f *FileFetcher) FetchExerciseSets(ctx context.Context, userID int64, activityID string) ([]types.ExerciseSet, error) {
	if err := f.checkRoot(); err != nil {
		return nil, err
	}
	var sets []types.ExerciseSet
	if err := f.readJSON(filepath.Join(f.root, "activities", activityID, "sets.json"), &sets); err != nil {
		return nil, err
	}
	for i := range sets {
		sets[i].UserID = userID
		sets[i].ActivityID = activityID
	}
	return sets, nil
}

// FetchSplits reads one activity's lap detail.
func (f *FileFetcher) FetchSplits(ctx context.Context, userID int64, activityID string) ([]types.ActivitySplit, error) {
	if err := f.checkRoot(); err != nil {
		return nil, err
	}
	var splits []types.ActivitySplit
	if err := f.readJSON(filepath.Join(f.root, "activities", activityID, "splits.json"), &splits); err != nil {
		return nil, err
	}
	for i := range splits {
		splits[i].UserID = userID
		splits[i].ActivityID = activityID
	}
	return splits, nil
}

func (f *FileFetcher) checkRoot() error {
	if _, err := os.Stat(f.root); err != nil {
		return fmt.Errorf("export directory %s: %w", f.root, ErrUnavailable)
	}
	return nil
}

func (f *FileFetcher) readJSON(path string, v any) error {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return ErrNoData
	}
	if err != nil {
		return &Error{Op: "read " + path, Err: err, Transient: true}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		// A malformed file will not fix itself on retry.
		return &Error{Op: "parse " + path, Err: err, Transient: false}
	}
	return nil
}
