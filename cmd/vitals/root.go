package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/vitals/internal/config"
	"github.com/hyperengineering/vitals/internal/store"
	"github.com/hyperengineering/vitals/internal/types"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var (
	cfg *config.Config

	configPathFlag string
	dbPathFlag     string
	userIDFlag     int64
	jsonOutput     bool
)

var rootCmd = &cobra.Command{
	Use:               "vitals",
	Short:             "Vitals - local health-data sync engine",
	Long:              "Vitals synchronizes per-day health metrics and workouts into a local SQLite database.",
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPathFlag, "config", "",
		"Config file path (overrides VITALS_CONFIG_PATH)")
	rootCmd.PersistentFlags().StringVar(&dbPathFlag, "db", "",
		"Database path (overrides config)")
	rootCmd.PersistentFlags().Int64Var(&userIDFlag, "user-id", 1,
		"User whose data to operate on")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Output in JSON format")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(backfillCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(insightCmd)
}

// setup loads configuration and installs the default logger before any
// subcommand runs.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	if configPathFlag != "" {
		cfg, err = config.LoadFromFile(configPathFlag)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if dbPathFlag != "" {
		cfg.Database.Path = dbPathFlag
	}
	if userIDFlag < 1 {
		return fmt.Errorf("user-id must be positive, got %d", userIDFlag)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Log.Level)}
	if cfg.Log.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))

	return nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// openStore opens the configured database, creating it on first use.
func openStore() (*store.SQLiteStore, error) {
	s, err := store.NewSQLiteStore(cfg.Database.Path, time.Duration(cfg.Database.BusyTimeout))
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.Database.Path, err)
	}
	return s, nil
}

// resolveRange turns --start/--end/--last-days flags into an inclusive
// date range. With no explicit range, the last `lastDays` days ending
// today are used.
func resolveRange(startFlag, endFlag string, lastDays int) (time.Time, time.Time, error) {
	today := time.Now().UTC().Truncate(24 * time.Hour)

	if startFlag == "" && endFlag == "" {
		if lastDays < 1 {
			return time.Time{}, time.Time{}, fmt.Errorf("last-days must be positive, got %d", lastDays)
		}
		return today.AddDate(0, 0, -(lastDays - 1)), today, nil
	}
	if startFlag == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("start is required when end is given")
	}

	start, err := time.Parse(types.DateFormat, startFlag)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q (want YYYY-MM-DD)", startFlag)
	}
	end := today
	if endFlag != "" {
		end, err = time.Parse(types.DateFormat, endFlag)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q (want YYYY-MM-DD)", endFlag)
		}
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end %s before start %s", end.Format(types.DateFormat), start.Format(types.DateFormat))
	}
	return start, end, nil
}

// printJSON marshals v to JSON and writes to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTabWriter returns a configured tabwriter for aligned columns.
func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}
