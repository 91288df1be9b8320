package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/vitals/internal/fetch"
	"github.com/hyperengineering/vitals/internal/syncer"
	"github.com/hyperengineering/vitals/internal/types"
)

var (
	syncStartFlag    string
	syncEndFlag      string
	syncLastDaysFlag int
	syncMetricsFlag  string
	syncForceFlag    bool
	syncSourceFlag   string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync health metrics for a date range",
	Long: `Sync plans one unit per (date, metric) pair in the range, skipping
units already completed, and fetches them concurrently. Interrupting a
run is safe; the next run resumes the remaining units.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncStartFlag, "start", "", "Start date (YYYY-MM-DD)")
	syncCmd.Flags().StringVar(&syncEndFlag, "end", "", "End date (YYYY-MM-DD, default today)")
	syncCmd.Flags().IntVar(&syncLastDaysFlag, "last-days", 7, "Sync the last N days when no range is given")
	syncCmd.Flags().StringVar(&syncMetricsFlag, "metrics", "", "Comma-separated metric list (default all)")
	syncCmd.Flags().BoolVar(&syncForceFlag, "force", false, "Re-sync units even if already completed or skipped")
	syncCmd.Flags().StringVar(&syncSourceFlag, "source", "", "Export directory to fetch from (overrides config)")
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	start, end, err := resolveRange(syncStartFlag, syncEndFlag, syncLastDaysFlag)
	if err != nil {
		return err
	}
	metrics, err := types.ParseMetrics(syncMetricsFlag)
	if err != nil {
		return err
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	sourceDir := cfg.Sync.SourceDir
	if syncSourceFlag != "" {
		sourceDir = syncSourceFlag
	}
	fetcher := fetch.NewFileFetcher(sourceDir)

	o := syncer.NewOrchestrator(s, fetcher, syncer.Options{
		MaxSyncDays:  cfg.Sync.MaxSyncDays,
		MaxAttempts:  cfg.Sync.MaxAttempts,
		BackoffBase:  time.Duration(cfg.Sync.BackoffBase),
		BackoffMax:   time.Duration(cfg.Sync.BackoffMax),
		Concurrency:  cfg.Sync.Concurrency,
		FetchTimeout: time.Duration(cfg.Sync.FetchTimeout),
		RetryFailed:  cfg.Sync.RetryFailed,
	})

	stats, err := o.Run(ctx, userIDFlag, start, end, metrics, syncForceFlag)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, stats)
	}
	fmt.Fprintf(out, "Synced %s to %s: %d units, %d completed, %d skipped, %d failed\n",
		start.Format(types.DateFormat), end.Format(types.DateFormat),
		stats.Total, stats.Completed, stats.Skipped, stats.Failed)
	return nil
}
