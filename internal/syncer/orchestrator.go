package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hyperengineering/vitals/internal/fetch"
	"github.com/hyperengineering/vitals/internal/types"
)

// Store defines the store operations the orchestrator needs.
type Store interface {
	SyncStatusesInRange(ctx context.Context, userID int64, start, end time.Time) ([]types.SyncEntry, error)
	EnsurePending(ctx context.Context, userID int64, date time.Time, metric types.MetricType) error
	ApplyUnit(ctx context.Context, userID int64, date time.Time, metric types.MetricType, data *types.UnitData) error
	MarkSync(ctx context.Context, userID int64, date time.Time, metric types.MetricType, state types.SyncState, errMsg string) error
	RecordRun(ctx context.Context, run types.RunRecord) error
}

// Options tunes one orchestrator.
type Options struct {
	MaxSyncDays  int
	MaxAttempts  int
	BackoffBase  time.Duration
	BackoffMax   time.Duration
	Concurrency  int
	FetchTimeout time.Duration
	RetryFailed  bool
}

// Orchestrator runs sync passes: it plans units, fetches them across a
// bounded worker pool, and serializes all store writes through a single
// loop so SQLite only ever sees one writer.
type Orchestrator struct {
	store   Store
	fetcher fetch.Fetcher
	opts    Options

	// sleep is swappable so retry tests don't wait out real backoff.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator creates an orchestrator. Zero or negative option values
// fall back to safe minimums.
func NewOrchestrator(store Store, fetcher fetch.Fetcher, opts Options) *Orchestrator {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 500 * time.Millisecond
	}
	if opts.BackoffMax < opts.BackoffBase {
		opts.BackoffMax = opts.BackoffBase
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 30 * time.Second
	}
	return &Orchestrator{
		store:   store,
		fetcher: fetcher,
		opts:    opts,
		sleep:   sleepCtx,
	}
}

// outcome is one fetched unit's result, produced by a fetch worker and
// consumed by the write loop.
type outcome struct {
	unit  Unit
	data  *types.UnitData
	skip  bool
	fatal bool
	err   error
}

// Run executes one sync pass over [start, end] for the given metrics.
// Unit failures are counted, not propagated; the returned error is
// non-nil only for run-level faults such as an unreachable remote or an
// oversized date range. Interrupted or aborted units stay pending so the
// next run resumes where this one stopped.
func (o *Orchestrator) Run(ctx context.Context, userID int64, start, end time.Time, metrics []types.MetricType, force bool) (types.RunStats, error) {
	var stats types.RunStats

	days := int(end.Sub(start).Hours()/24) + 1
	if days < 1 {
		return stats, fmt.Errorf("invalid date range: %s after %s", start.Format(types.DateFormat), end.Format(types.DateFormat))
	}
	if o.opts.MaxSyncDays > 0 && days > o.opts.MaxSyncDays {
		return stats, fmt.Errorf("date range spans %d days, limit is %d", days, o.opts.MaxSyncDays)
	}

	ledger, err := o.store.SyncStatusesInRange(ctx, userID, start, end)
	if err != nil {
		return stats, fmt.Errorf("read sync ledger: %w", err)
	}

	units := Plan(ledger, start, end, metrics, force, o.opts.RetryFailed)
	stats.Total = len(units)
	if len(units) == 0 {
		slog.Info("nothing to sync",
			"user_id", userID,
			"start", start.Format(types.DateFormat),
			"end", end.Format(types.DateFormat),
			"component", "syncer",
		)
		return stats, nil
	}

	for _, u := range units {
		if err := o.store.EnsurePending(ctx, userID, u.Date, u.Metric); err != nil {
			return stats, fmt.Errorf("seed pending units: %w", err)
		}
	}

	runID := ulid.Make().String()
	startedAt := time.Now().UTC()
	slog.Info("sync run started",
		"run_id", runID,
		"user_id", userID,
		"units", len(units),
		"workers", o.opts.Concurrency,
		"component", "syncer",
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan Unit)
	outcomes := make(chan outcome)

	var wg sync.WaitGroup
	for i := 0; i < o.opts.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.fetchWorker(runCtx, userID, jobs, outcomes)
		}()
	}
	go func() {
		wg.Wait()
		close(outcomes)
	}()
	go func() {
		defer close(jobs)
		for _, u := range units {
			select {
			case jobs <- u:
			case <-runCtx.Done():
				return
			}
		}
	}()

	var fatalErr error
	for oc := range outcomes {
		if fatalErr != nil || runCtx.Err() != nil {
			// Drain without writing; untouched units stay pending.
			continue
		}
		o.applyOutcome(runCtx, userID, oc, &stats, &fatalErr, cancel)
	}

	run := types.RunRecord{
		RunID:      runID,
		UserID:     userID,
		Kind:       types.RunSync,
		StartedAt:  startedAt,
		FinishedAt: time.Now().UTC(),
		Stats:      stats,
	}
	if err := o.store.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		slog.Error("failed to record sync run",
			"run_id", runID,
			"error", err,
			"component", "syncer",
		)
	}

	slog.Info("sync run finished",
		"run_id", runID,
		"user_id", userID,
		"total", stats.Total,
		"completed", stats.Completed,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"component", "syncer",
	)

	if fatalErr != nil {
		return stats, fatalErr
	}
	return stats, ctx.Err()
}

func (o *Orchestrator) applyOutcome(ctx context.Context, userID int64, oc outcome, stats *types.RunStats, fatalErr *error, cancel context.CancelFunc) {
	date := oc.unit.Date.Format(types.DateFormat)

	switch {
	case oc.fatal:
		*fatalErr = fmt.Errorf("sync aborted: %w", oc.err)
		cancel()
		slog.Error("remote unavailable, aborting run",
			"user_id", userID,
			"date", date,
			"metric", oc.unit.Metric,
			"error", oc.err,
			"component", "syncer",
		)

	case oc.err != nil:
		stats.Failed++
		if err := o.store.MarkSync(ctx, userID, oc.unit.Date, oc.unit.Metric, types.SyncFailed, oc.err.Error()); err != nil {
			slog.Error("failed to mark unit failed",
				"date", date,
				"metric", oc.unit.Metric,
				"error", err,
				"component", "syncer",
			)
			return
		}
		slog.Warn("unit failed",
			"user_id", userID,
			"date", date,
			"metric", oc.unit.Metric,
			"error", oc.err,
			"component", "syncer",
		)

	case oc.skip || oc.data.Empty():
		stats.Skipped++
		if err := o.store.MarkSync(ctx, userID, oc.unit.Date, oc.unit.Metric, types.SyncSkipped, ""); err != nil {
			slog.Error("failed to mark unit skipped",
				"date", date,
				"metric", oc.unit.Metric,
				"error", err,
				"component", "syncer",
			)
		}

	default:
		// Data and the completed mark commit in one transaction. A write
		// failure marks the unit failed without retrying the fetch.
		if err := o.store.ApplyUnit(ctx, userID, oc.unit.Date, oc.unit.Metric, oc.data); err != nil {
			stats.Failed++
			if markErr := o.store.MarkSync(ctx, userID, oc.unit.Date, oc.unit.Metric, types.SyncFailed, err.Error()); markErr != nil {
				slog.Error("failed to mark unit failed after write error",
					"date", date,
					"metric", oc.unit.Metric,
					"error", markErr,
					"component", "syncer",
				)
			}
			slog.Error("unit write failed",
				"user_id", userID,
				"date", date,
				"metric", oc.unit.Metric,
				"error", err,
				"component", "syncer",
			)
			return
		}
		stats.Completed++
	}
}

func (o *Orchestrator) fetchWorker(ctx context.Context, userID int64, jobs <-chan Unit, outcomes chan<- outcome) {
	for u := range jobs {
		if ctx.Err() != nil {
			return
		}
		oc := o.fetchUnit(ctx, userID, u)
		select {
		case outcomes <- oc:
		case <-ctx.Done():
			return
		}
	}
}

// fetchUnit fetches one unit, retrying transient errors with bounded
// exponential backoff. The backoff wait blocks only this unit's worker.
func (o *Orchestrator) fetchUnit(ctx context.Context, userID int64, u Unit) outcome {
	var lastErr error
	for attempt := 1; attempt <= o.opts.MaxAttempts; attempt++ {
		fctx, cancel := context.WithTimeout(ctx, o.opts.FetchTimeout)
		data, err := o.fetcher.FetchUnit(fctx, userID, u.Date, u.Metric)
		cancel()

		if err == nil {
			return outcome{unit: u, data: data}
		}
		if errors.Is(err, fetch.ErrNoData) {
			return outcome{unit: u, skip: true}
		}
		if errors.Is(err, fetch.ErrUnavailable) {
			return outcome{unit: u, err: err, fatal: true}
		}
		if !fetch.Transient(err) {
			return outcome{unit: u, err: err}
		}

		lastErr = err
		if attempt < o.opts.MaxAttempts {
			slog.Debug("transient fetch error, backing off",
				"date", u.Date.Format(types.DateFormat),
				"metric", u.Metric,
				"attempt", attempt,
				"error", err,
				"component", "syncer",
			)
			if serr := o.sleep(ctx, o.backoff(attempt)); serr != nil {
				return outcome{unit: u, err: lastErr}
			}
		}
	}
	return outcome{unit: u, err: fmt.Errorf("exhausted %d attempts: %w", o.opts.MaxAttempts, lastErr)}
}

func (o *Orchestrator) backoff(attempt int) time.Duration {
	d := o.opts.BackoffBase << (attempt - 1)
	if d > o.opts.BackoffMax || d <= 0 {
		d = o.opts.BackoffMax
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
