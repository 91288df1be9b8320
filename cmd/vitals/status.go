package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/vitals/internal/types"
)

var (
	statusStartFlag    string
	statusEndFlag      string
	statusLastDaysFlag int
	statusFilterFlag   string
	statusRunsFlag     int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the sync ledger and recent runs",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusStartFlag, "start", "", "Start date (YYYY-MM-DD)")
	statusCmd.Flags().StringVar(&statusEndFlag, "end", "", "End date (YYYY-MM-DD, default today)")
	statusCmd.Flags().IntVar(&statusLastDaysFlag, "last-days", 7, "Show the last N days when no range is given")
	statusCmd.Flags().StringVar(&statusFilterFlag, "filter", "", "Only show entries with this status (pending|completed|failed|skipped)")
	statusCmd.Flags().IntVar(&statusRunsFlag, "runs", 5, "Number of recent runs to show")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	start, end, err := resolveRange(statusStartFlag, statusEndFlag, statusLastDaysFlag)
	if err != nil {
		return err
	}

	filter := types.SyncState(statusFilterFlag)
	switch filter {
	case "", types.SyncPending, types.SyncCompleted, types.SyncFailed, types.SyncSkipped:
	default:
		return fmt.Errorf("unknown status filter %q", statusFilterFlag)
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	entries, err := s.SyncStatusesInRange(ctx, userIDFlag, start, end)
	if err != nil {
		return err
	}
	if filter != "" {
		kept := entries[:0]
		for _, e := range entries {
			if e.Status == filter {
				kept = append(kept, e)
			}
		}
		entries = kept
	}

	runs, err := s.ListRuns(ctx, userIDFlag, statusRunsFlag)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, map[string]any{"entries": entries, "runs": runs})
	}

	var counts types.RunStats
	for _, e := range entries {
		switch e.Status {
		case types.SyncCompleted:
			counts.Completed++
		case types.SyncSkipped:
			counts.Skipped++
		case types.SyncFailed:
			counts.Failed++
		}
	}

	fmt.Fprintf(out, "Ledger %s to %s: %d entries (%d completed, %d skipped, %d failed)\n\n",
		start.Format(types.DateFormat), end.Format(types.DateFormat),
		len(entries), counts.Completed, counts.Skipped, counts.Failed)

	if len(entries) > 0 {
		tw := newTabWriter(out)
		fmt.Fprintln(tw, "DATE\tMETRIC\tSTATUS\tERROR")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
				e.SyncDate.Format(types.DateFormat), e.MetricType, e.Status, e.ErrorMessage)
		}
		tw.Flush()
	}

	if len(runs) > 0 {
		fmt.Fprintf(out, "\nRecent runs:\n")
		tw := newTabWriter(out)
		fmt.Fprintln(tw, "RUN\tKIND\tSTARTED\tTOTAL\tCOMPLETED\tSKIPPED\tFAILED")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
				r.RunID, r.Kind, r.StartedAt.Format("2006-01-02 15:04:05"),
				r.Stats.Total, r.Stats.Completed, r.Stats.Skipped, r.Stats.Failed)
		}
		tw.Flush()
	}

	return nil
}
