package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/vitals/internal/fetch"
	"github.com/hyperengineering/vitals/internal/syncer"
	"github.com/hyperengineering/vitals/internal/types"
)

var (
	backfillLimitFlag  int
	backfillSourceFlag string
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Fetch per-activity detail left behind by regular syncs",
}

var backfillSetsCmd = &cobra.Command{
	Use:   "sets",
	Short: "Backfill exercise sets for strength activities",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBackfill(cmd, types.RunBackfillSets)
	},
}

var backfillSplitsCmd = &cobra.Command{
	Use:   "splits",
	Short: "Backfill lap splits for cardio activities",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBackfill(cmd, types.RunBackfillSplits)
	},
}

func init() {
	backfillCmd.PersistentFlags().IntVar(&backfillLimitFlag, "limit", 0,
		"Maximum activities to process in this pass (default: config batch_size)")
	backfillCmd.PersistentFlags().StringVar(&backfillSourceFlag, "source", "",
		"Export directory to fetch from (overrides config)")

	backfillCmd.AddCommand(backfillSetsCmd)
	backfillCmd.AddCommand(backfillSplitsCmd)
}

func runBackfill(cmd *cobra.Command, kind types.RunKind) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	sourceDir := cfg.Sync.SourceDir
	if backfillSourceFlag != "" {
		sourceDir = backfillSourceFlag
	}
	engine := syncer.NewBackfillEngine(s, fetch.NewFileFetcher(sourceDir))
	limit := backfillLimit(backfillLimitFlag, cfg.Sync.BatchSize)

	var stats types.RunStats
	if kind == types.RunBackfillSets {
		stats, err = engine.BackfillSets(ctx, userIDFlag, limit)
	} else {
		stats, err = engine.BackfillSplits(ctx, userIDFlag, limit)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, stats)
	}
	fmt.Fprintf(out, "Backfill %s: %d candidates, %d completed, %d failed\n",
		kind, stats.Total, stats.Completed, stats.Failed)
	if stats.Total == limit {
		fmt.Fprintln(out, "More candidates may remain; run again to continue.")
	}
	return nil
}

// backfillLimit resolves the pass size: an explicit --limit wins,
// otherwise the configured batch size applies.
func backfillLimit(flagValue, batchSize int) int {
	if flagValue > 0 {
		return flagValue
	}
	return batchSize
}
