package commands

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/systmms/secretseed/internal/config"
	"github.com/systmms/secretseed/internal/history"
	"gopkg.in/yaml.v3"
)

// NewHistoryCommand creates the history command
func NewHistoryCommand(cfg *config.Config) *cobra.Command {
	var (
		historyDir    string
		historyDB     string
		historyLimit  int
		historyStatus string
		historyFormat string
		pruneOlder    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded publish runs",
		Long: `Display past publish runs, newest first.

Runs are not idempotent, so the history is the place to find which
resources an earlier run created. Pass a run ID (or a unique prefix of
one) to show every identifier that run printed.`,
		Example: `  # Recent runs
  secretseed history

  # One run in full
  secretseed history 3f2a9c

  # Only failed runs, as JSON
  secretseed history --status failed --format json

  # Forget runs older than 90 days
  secretseed history --prune 2160h`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := openHistory(cmd.Context(), historyDir, historyDB)
			if err != nil {
				return fmt.Errorf("failed to open history: %w", err)
			}
			defer closeStore()
			out := cmd.OutOrStdout()

			if pruneOlder > 0 {
				removed, err := store.Cleanup(pruneOlder)
				if err != nil {
					return fmt.Errorf("failed to prune history: %w", err)
				}
				_, _ = fmt.Fprintf(out, "Removed %d run(s) older than %s\n", removed, pruneOlder)
				return nil
			}

			if len(args) > 0 {
				run, err := store.Get(args[0])
				if err != nil {
					return fmt.Errorf("failed to get run: %w", err)
				}
				switch historyFormat {
				case "json":
					return writeJSON(out, run)
				case "yaml":
					return writeYAML(out, run)
				default:
					outputRunDetail(out, run)
					return nil
				}
			}

			runs, err := store.List(0)
			if err != nil {
				return fmt.Errorf("failed to list history: %w", err)
			}
			runs = filterRuns(runs, historyStatus, historyLimit)

			switch historyFormat {
			case "json":
				return writeJSON(out, runs)
			case "yaml":
				return writeYAML(out, runs)
			default:
				outputHistoryTable(out, runs)
				return nil
			}
		},
	}

	cmd.Flags().StringVar(&historyDir, "history-dir", "", "Directory for run history (default: $XDG_DATA_HOME/secretseed/history)")
	cmd.Flags().StringVar(&historyDB, "history-db", "", "Read run history from this SQLite database")
	cmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of runs to show")
	cmd.Flags().StringVar(&historyStatus, "status", "", "Filter by status: succeeded, failed, rolled_back")
	cmd.Flags().StringVar(&historyFormat, "format", "table", "Output format: table, json, yaml")
	cmd.Flags().DurationVar(&pruneOlder, "prune", 0, "Delete runs older than this duration instead of listing")

	return cmd
}

func filterRuns(runs []history.Run, status string, limit int) []history.Run {
	var filtered []history.Run
	for _, run := range runs {
		if status != "" && !strings.EqualFold(run.Status, status) {
			continue
		}
		filtered = append(filtered, run)
		if limit > 0 && len(filtered) == limit {
			break
		}
	}
	return filtered
}

func outputHistoryTable(out io.Writer, runs []history.Run) {
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(out, "No publish runs recorded")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "RUN\tTIMESTAMP\tSINK\tSUFFIX\tSTATUS\tCREATED\tDURATION\tERROR")
	_, _ = fmt.Fprintln(w, "---\t---------\t----\t------\t------\t-------\t--------\t-----")

	for _, run := range runs {
		errorMsg := "-"
		if run.Error != "" {
			errorMsg = truncate(run.Error, 50)
		}
		suffix := run.Suffix
		if suffix == "" {
			suffix = "-"
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			shortID(run.ID),
			run.Timestamp.Local().Format("2006-01-02 15:04:05"),
			run.Sink,
			suffix,
			formatStatus(run.Status),
			len(run.Published),
			formatDuration(run.Duration),
			errorMsg,
		)
	}
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\nShowing %d run(s)\n", len(runs))
}

func outputRunDetail(out io.Writer, run *history.Run) {
	_, _ = fmt.Fprintf(out, "Run:       %s\n", run.ID)
	_, _ = fmt.Fprintf(out, "Timestamp: %s\n", run.Timestamp.Local().Format(time.RFC3339))
	_, _ = fmt.Fprintf(out, "Status:    %s\n", formatStatus(run.Status))
	_, _ = fmt.Fprintf(out, "Sink:      %s\n", run.Sink)
	_, _ = fmt.Fprintf(out, "Suffix:    %s\n", run.Suffix)
	if run.NamePrefix != "" {
		_, _ = fmt.Fprintf(out, "Prefix:    %s\n", run.NamePrefix)
	}
	if run.User != "" {
		_, _ = fmt.Fprintf(out, "User:      %s\n", run.User)
	}
	if run.ConfigPath != "" {
		_, _ = fmt.Fprintf(out, "Config:    %s\n", run.ConfigPath)
	}
	_, _ = fmt.Fprintf(out, "Duration:  %s\n", formatDuration(run.Duration))
	if run.Error != "" {
		_, _ = fmt.Fprintf(out, "Error:     %s\n", run.Error)
	}

	if len(run.Outputs) > 0 {
		names := make([]string, 0, len(run.Outputs))
		for name := range run.Outputs {
			names = append(names, name)
		}
		sort.Strings(names)

		_, _ = fmt.Fprintf(out, "\nOutputs:\n")
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, name := range names {
			_, _ = fmt.Fprintf(w, "  %s\t%s\n", name, run.Outputs[name])
		}
		_ = w.Flush()
	}

	if len(run.RolledBack) > 0 {
		_, _ = fmt.Fprintf(out, "\nRolled back:\n")
		for _, id := range run.RolledBack {
			_, _ = fmt.Fprintf(out, "  %s\n", id)
		}
	}
}

// truncate shortens s to at most n runes, marking the cut with "..."
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatStatus(status string) string {
	switch status {
	case history.StatusSucceeded:
		return "✓ succeeded"
	case history.StatusFailed:
		return "✗ failed"
	case history.StatusRolledBack:
		return "↺ rolled back"
	default:
		return status
	}
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "-"
	}

	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	} else if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}

func writeYAML(w io.Writer, v interface{}) error {
	encoder := yaml.NewEncoder(w)
	defer func() { _ = encoder.Close() }()
	encoder.SetIndent(2)
	return encoder.Encode(v)
}
