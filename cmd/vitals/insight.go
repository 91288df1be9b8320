package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/vitals/internal/insight"
)

var insightDaysFlag int

var insightCmd = &cobra.Command{
	Use:   "insight",
	Short: "Generate a natural-language report over recent data",
	RunE:  runInsight,
}

func init() {
	insightCmd.Flags().IntVar(&insightDaysFlag, "days", 7, "Number of recent days to analyze")
}

func runInsight(cmd *cobra.Command, args []string) error {
	if cfg.Insight.APIKey == "" {
		return errors.New("OPENAI_API_KEY is not set")
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	reporter := insight.NewReporter(s, cfg.Insight.APIKey, cfg.Insight.Model)
	report, err := reporter.Report(context.Background(), userIDFlag, insightDaysFlag)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, map[string]any{"report": report, "days": insightDaysFlag})
	}
	fmt.Fprintln(out, report)
	return nil
}
