package store

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperengineering/vitals/internal/types"
)

// ApplyUnit commits one sync unit's data and its completed ledger mark in
// a single transaction. Either all writes land together with the
// completed status, or none do and the unit stays eligible for re-sync.
func (s *SQLiteStore) ApplyUnit(ctx context.Context, userID int64, date time.Time, metric types.MetricType, data *types.UnitData) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin unit transaction: %w", err)
	}
	defer tx.Rollback()

	if data != nil {
		if err := upsertDailyMetrics(ctx, tx, userID, date, data.Daily); err != nil {
			return err
		}
		if err := upsertTimeseries(ctx, tx, userID, metric, data.Points); err != nil {
			return err
		}
		if err := upsertActivities(ctx, tx, data.Activities); err != nil {
			return err
		}
	}

	if err := markSync(ctx, tx, userID, date, metric, types.SyncCompleted, ""); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit unit transaction: %w", err)
	}
	return nil
}
