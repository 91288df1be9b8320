// Package fetch defines the boundary between the sync engine and the
// remote health-tracking API. The engine never parses remote response
// shapes; implementations of Fetcher hand it already-typed records.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperengineering/vitals/internal/types"
)

// ErrNoData signals that the remote source has nothing for the requested
// unit (sensor not worn, no workout that day). The unit resolves to
// skipped, not failed.
var ErrNoData = errors.New("no data available")

// ErrUnavailable signals that the remote service cannot be reached at
// all. Unlike unit-level fetch errors it aborts the whole run.
var ErrUnavailable = errors.New("remote service unavailable")

// Error is a unit-level fetch failure. Transient errors (network
// timeouts, rate limiting) are retried with backoff; permanent errors
// (rejected authentication, malformed request) fail the unit immediately.
type Error struct {
	Op        string
	Err       error
	Transient bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transient reports whether err is a retryable fetch error.
func Transient(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Transient
}

// Fetcher supplies typed records for sync units and backfill detail.
// All methods honor ctx cancellation and deadlines.
type Fetcher interface {
	// FetchUnit returns the records for one (user, date, metric) unit.
	// Returns ErrNoData when the source has nothing for the unit.
	FetchUnit(ctx context.Context, userID int64, date time.Time, metric types.MetricType) (*types.UnitData, error)

	// FetchExerciseSets returns the complete strength-set detail for an
	// activity.
	FetchExerciseSets(ctx context.Context, userID int64, activityID string) ([]types.ExerciseSet, error)

	// FetchSplits returns the complete lap detail for an activity.
	FetchSplits(ctx context.Context, userID int64, activityID string) ([]types.ActivitySplit, error)
}
