package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/vitals/internal/types"
)

var (
	resetStartFlag   string
	resetEndFlag     string
	resetMetricsFlag string
	resetForceFlag   bool
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear sync ledger entries so units are re-synced",
	Long: `Reset removes ledger entries, returning the matching units to the
pending state. By default only failed entries are cleared; --force clears
matching entries regardless of status. Synced data is never touched.`,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().StringVar(&resetStartFlag, "start", "", "Only reset entries on or after this date (YYYY-MM-DD)")
	resetCmd.Flags().StringVar(&resetEndFlag, "end", "", "Only reset entries on or before this date (YYYY-MM-DD)")
	resetCmd.Flags().StringVar(&resetMetricsFlag, "metrics", "", "Comma-separated metric list (default all)")
	resetCmd.Flags().BoolVar(&resetForceFlag, "force", false, "Clear entries regardless of status, not just failed")
}

func runReset(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	var metrics []types.MetricType
	if resetMetricsFlag != "" {
		var err error
		metrics, err = types.ParseMetrics(resetMetricsFlag)
		if err != nil {
			return err
		}
	}

	var start, end *time.Time
	if resetStartFlag != "" {
		t, err := time.Parse(types.DateFormat, resetStartFlag)
		if err != nil {
			return fmt.Errorf("invalid start date %q (want YYYY-MM-DD)", resetStartFlag)
		}
		start = &t
	}
	if resetEndFlag != "" {
		t, err := time.Parse(types.DateFormat, resetEndFlag)
		if err != nil {
			return fmt.Errorf("invalid end date %q (want YYYY-MM-DD)", resetEndFlag)
		}
		end = &t
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	cleared, err := s.ResetSync(ctx, userIDFlag, metrics, start, end, resetForceFlag)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, map[string]any{"cleared": cleared})
	}
	if resetForceFlag {
		fmt.Fprintf(out, "Cleared %d ledger entries\n", cleared)
	} else {
		fmt.Fprintf(out, "Cleared %d failed ledger entries\n", cleared)
	}
	return nil
}
