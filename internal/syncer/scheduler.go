// Package syncer drives synchronization: planning which (date, metric)
// units need work, fetching them with bounded concurrency and retry, and
// committing results through the store.
package syncer

import (
	"sort"
	"time"

	"github.com/hyperengineering/vitals/internal/types"
)

// Unit is one schedulable (date, metric) pair for a user.
type Unit struct {
	Date   time.Time
	Metric types.MetricType
}

// Plan computes the work list for one run from a ledger snapshot. It is
// pure: no I/O, no clock. Units already completed or skipped are excluded
// unless force is set; failed units are excluded when retryFailed is
// false. The result is ordered by date ascending, then metric priority,
// so interrupting a run always leaves the oldest dates most complete.
func Plan(ledger []types.SyncEntry, start, end time.Time, metrics []types.MetricType, force, retryFailed bool) []Unit {
	states := make(map[string]types.SyncState, len(ledger))
	for _, e := range ledger {
		states[ledgerKey(e.SyncDate, e.MetricType)] = e.Status
	}

	ordered := append([]types.MetricType(nil), metrics...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority() < ordered[j].Priority()
	})

	var units []Unit
	for date := start; !date.After(end); date = date.AddDate(0, 0, 1) {
		for _, metric := range ordered {
			if !force {
				switch states[ledgerKey(date, metric)] {
				case types.SyncCompleted, types.SyncSkipped:
					continue
				case types.SyncFailed:
					if !retryFailed {
						continue
					}
				}
			}
			units = append(units, Unit{Date: date, Metric: metric})
		}
	}
	return units
}

func ledgerKey(date time.Time, metric types.MetricType) string {
	return date.Format(types.DateFormat) + "/" + string(metric)
}
