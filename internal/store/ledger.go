package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hyperengineering/vitals/internal/types"
)

// SyncStatus returns the ledger status for one (user, date, metric) unit.
// Returns ErrNotFound when no entry exists.
func (s *SQLiteStore) SyncStatus(ctx context.Context, userID int64, date time.Time, metric types.MetricType) (types.SyncState, error) {
	var status string
	err := s.db.QueryRowContext(ctx, `
		SELECT status FROM sync_status
		WHERE user_id = ? AND sync_date = ? AND metric_type = ?
	`, userID, formatDate(date), string(metric)).Scan(&status)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query sync status: %w", err)
	}
	return types.SyncState(status), nil
}

// MarkSync records the outcome for one unit, overwriting any prior entry.
// Marking completed or skipped clears a previous error message; synced_at
// is set for every terminal state and left null for pending.
func (s *SQLiteStore) MarkSync(ctx context.Context, userID int64, date time.Time, metric types.MetricType, state types.SyncState, errMsg string) error {
	return markSync(ctx, s.db, userID, date, metric, state, errMsg)
}

func markSync(ctx context.Context, q dbtx, userID int64, date time.Time, metric types.MetricType, state types.SyncState, errMsg string) error {
	var syncedAt, message any
	if state != types.SyncPending {
		syncedAt = nowRFC3339()
	}
	if state == types.SyncFailed && errMsg != "" {
		message = errMsg
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO sync_status (user_id, sync_date, metric_type, status, synced_at, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, sync_date, metric_type) DO UPDATE SET
			status = excluded.status,
			synced_at = excluded.synced_at,
			error_message = excluded.error_message
	`, userID, formatDate(date), string(metric), string(state), syncedAt, message, nowRFC3339())
	if err != nil {
		return fmt.Errorf("mark sync status: %w", err)
	}
	return nil
}

// EnsurePending creates a pending ledger entry for a unit if none exists.
// An existing entry, whatever its status, is left untouched.
func (s *SQLiteStore) EnsurePending(ctx context.Context, userID int64, date time.Time, metric types.MetricType) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO sync_status (user_id, sync_date, metric_type, status, synced_at, error_message, created_at)
		VALUES (?, ?, ?, 'pending', NULL, NULL, ?)
	`, userID, formatDate(date), string(metric), nowRFC3339())
	if err != nil {
		return fmt.Errorf("ensure pending sync status: %w", err)
	}
	return nil
}

// SyncStatusesInRange returns all ledger entries for a user within the
// inclusive date range, ordered by date ascending.
func (s *SQLiteStore) SyncStatusesInRange(ctx context.Context, userID int64, start, end time.Time) ([]types.SyncEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, sync_date, metric_type, status, synced_at, error_message
		FROM sync_status
		WHERE user_id = ? AND sync_date >= ? AND sync_date <= ?
		ORDER BY sync_date ASC, metric_type ASC
	`, userID, formatDate(start), formatDate(end))
	if err != nil {
		return nil, fmt.Errorf("query sync statuses: %w", err)
	}
	defer rows.Close()

	return scanSyncEntries(rows)
}

// ListSync returns a user's ledger entries ordered by date ascending,
// optionally filtered to one status.
func (s *SQLiteStore) ListSync(ctx context.Context, userID int64, statusFilter types.SyncState) ([]types.SyncEntry, error) {
	query := `
		SELECT user_id, sync_date, metric_type, status, synced_at, error_message
		FROM sync_status
		WHERE user_id = ?`
	args := []any{userID}
	if statusFilter != "" {
		query += " AND status = ?"
		args = append(args, string(statusFilter))
	}
	query += " ORDER BY sync_date ASC, metric_type ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sync statuses: %w", err)
	}
	defer rows.Close()

	return scanSyncEntries(rows)
}

func scanSyncEntries(rows *sql.Rows) ([]types.SyncEntry, error) {
	var entries []types.SyncEntry
	for rows.Next() {
		var e types.SyncEntry
		var dateStr, status string
		var syncedAt, errMsg sql.NullString

		if err := rows.Scan(&e.UserID, &dateStr, &e.MetricType, &status, &syncedAt, &errMsg); err != nil {
			return nil, fmt.Errorf("scan sync status: %w", err)
		}

		var parseErr error
		e.SyncDate, parseErr = parseDate(dateStr)
		if parseErr != nil {
			return nil, parseErr
		}
		e.Status = types.SyncState(status)
		if syncedAt.Valid {
			if t, err := time.Parse(time.RFC3339, syncedAt.String); err == nil {
				e.SyncedAt = &t
			}
		}
		e.ErrorMessage = stringOrEmpty(errMsg)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync statuses: %w", err)
	}
	return entries, nil
}

// ResetSync removes ledger entries so the scheduler treats the matching
// units as pending again. The default clears only failed entries; force
// clears matching entries regardless of status. Optional metric and date
// filters narrow the match. Returns the number of entries cleared.
func (s *SQLiteStore) ResetSync(ctx context.Context, userID int64, metrics []types.MetricType, start, end *time.Time, force bool) (int64, error) {
	query := "DELETE FROM sync_status WHERE user_id = ?"
	args := []any{userID}

	if !force {
		query += " AND status = ?"
		args = append(args, string(types.SyncFailed))
	}
	if len(metrics) > 0 {
		placeholders := make([]string, len(metrics))
		for i, m := range metrics {
			placeholders[i] = "?"
			args = append(args, string(m))
		}
		query += fmt.Sprintf(" AND metric_type IN (%s)", strings.Join(placeholders, ", "))
	}
	if start != nil {
		query += " AND sync_date >= ?"
		args = append(args, formatDate(*start))
	}
	if end != nil {
		query += " AND sync_date <= ?"
		args = append(args, formatDate(*end))
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("reset sync statuses: %w", err)
	}
	return result.RowsAffected()
}

// RecordRun appends one run-history row.
func (s *SQLiteStore) RecordRun(ctx context.Context, run types.RunRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_runs (run_id, user_id, kind, started_at, finished_at, total, completed, skipped, failed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.RunID, run.UserID, string(run.Kind),
		run.StartedAt.UTC().Format(time.RFC3339),
		run.FinishedAt.UTC().Format(time.RFC3339),
		run.Stats.Total, run.Stats.Completed, run.Stats.Skipped, run.Stats.Failed)
	if err != nil {
		return fmt.Errorf("record sync run: %w", err)
	}
	return nil
}

// ListRuns returns a user's most recent runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, userID int64, limit int) ([]types.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, user_id, kind, started_at, finished_at, total, completed, skipped, failed
		FROM sync_runs
		WHERE user_id = ?
		ORDER BY started_at DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list sync runs: %w", err)
	}
	defer rows.Close()

	var runs []types.RunRecord
	for rows.Next() {
		var r types.RunRecord
		var kind, startedAt, finishedAt string
		if err := rows.Scan(&r.RunID, &r.UserID, &kind, &startedAt, &finishedAt,
			&r.Stats.Total, &r.Stats.Completed, &r.Stats.Skipped, &r.Stats.Failed); err != nil {
			return nil, fmt.Errorf("scan sync run: %w", err)
		}
		r.Kind = types.RunKind(kind)
		if t, err := time.Parse(time.RFC3339, startedAt); err == nil {
			r.StartedAt = t
		}
		if t, err := time.Parse(time.RFC3339, finishedAt); err == nil {
			r.FinishedAt = t
		}
		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync runs: %w", err)
	}
	return runs, nil
}
