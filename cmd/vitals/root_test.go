package main

import (
	"strings"
	"testing"
	"time"

	"github.com/hyperengineering/vitals/internal/types"
)

func TestResolveRange_LastDaysDefault(t *testing.T) {
	start, end, err := resolveRange("", "", 7)
	if err != nil {
		t.Fatal(err)
	}
	if got := int(end.Sub(start).Hours()/24) + 1; got != 7 {
		t.Errorf("Expected a 7 day window, got %d days", got)
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	if !end.Equal(today) {
		t.Errorf("Expected window to end today, got %s", end.Format(types.DateFormat))
	}
}

func TestResolveRange_ExplicitRange(t *testing.T) {
	start, end, err := resolveRange("2024-01-10", "2024-01-15", 7)
	if err != nil {
		t.Fatal(err)
	}
	if start.Format(types.DateFormat) != "2024-01-10" || end.Format(types.DateFormat) != "2024-01-15" {
		t.Errorf("Expected explicit range honored, got %s to %s",
			start.Format(types.DateFormat), end.Format(types.DateFormat))
	}
}

func TestResolveRange_StartWithoutEnd(t *testing.T) {
	_, end, err := resolveRange("2024-01-10", "", 7)
	if err != nil {
		t.Fatal(err)
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	if !end.Equal(today) {
		t.Errorf("Expected open end to default to today, got %s", end.Format(types.DateFormat))
	}
}

func TestResolveRange_EndWithoutStart(t *testing.T) {
	_, _, err := resolveRange("", "2024-01-15", 7)
	if err == nil {
		t.Fatal("Expected error when end is given without start")
	}
	if !strings.Contains(err.Error(), "start is required") {
		t.Errorf("Expected error to say start is required, got: %v", err)
	}
}

func TestResolveRange_Invalid(t *testing.T) {
	if _, _, err := resolveRange("2024-01-15", "2024-01-10", 7); err == nil {
		t.Error("Expected error when end precedes start")
	}
	if _, _, err := resolveRange("15/01/2024", "", 7); err == nil {
		t.Error("Expected error for malformed start date")
	}
	if _, _, err := resolveRange("", "", 0); err == nil {
		t.Error("Expected error for non-positive last-days")
	}
}

func TestBackfillLimit(t *testing.T) {
	if got := backfillLimit(0, 50); got != 50 {
		t.Errorf("Expected configured batch size 50 when no flag is set, got %d", got)
	}
	if got := backfillLimit(10, 50); got != 10 {
		t.Errorf("Expected explicit limit 10 to win over batch size, got %d", got)
	}
}

func TestRootCommand_SubcommandsRegistered(t *testing.T) {
	want := []string{"sync", "status", "reset", "backfill", "serve", "backup", "insight"}
	have := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		have[c.Name()] = true
	}
	for _, name := range want {
		if !have[name] {
			t.Errorf("Expected subcommand %q registered", name)
		}
	}
}
