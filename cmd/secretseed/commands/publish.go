package commands

import (
	"context"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/systmms/secretseed/internal/config"
	"github.com/systmms/secretseed/internal/extract"
	"github.com/systmms/secretseed/internal/history"
	"github.com/systmms/secretseed/internal/logging"
	"github.com/systmms/secretseed/internal/metrics"
	"github.com/systmms/secretseed/internal/publish"
)

func NewPublishCommand(cfg *config.Config) *cobra.Command {
	var (
		verify      bool
		outputJSON  bool
		metricsFile string
		historyDir  string
		historyDB   string
		noHistory   bool
	)
	v := config.NewSettings()

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish every new secret and print name → identifier",
		Long: `Publish extracts each structured-file and credentials-file value, then
creates one new resource per value in the selected sink. Every run draws a
fresh random suffix, so running twice creates two sets of resources.

All values are extracted before anything is published. If a publish fails,
resources created earlier in the same run are deleted again.`,
		Example: `  # Publish to Secrets Manager
  secretseed publish

  # Publish to Parameter Store with a prefix, checking each value afterwards
  secretseed publish --parameter-store --name-prefix app- --verify

  # Machine readable output and a node_exporter textfile
  secretseed publish --json --metrics-file /var/lib/node_exporter/secretseed.prom`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cfg, v); err != nil {
				return err
			}
			def := cfg.Definition
			logger := cfg.Logger
			ctx := cmd.Context()

			s, err := newSink(ctx, def, logger)
			if err != nil {
				return fmt.Errorf("failed to create %s sink: %w", def.SinkKind(), err)
			}

			m := metrics.New()
			publisher := publish.New(s,
				extract.New(extract.WithBaseDir(cfg.BaseDir()), extract.WithLogger(logger)),
				publish.WithLogger(logger),
				publish.WithMetrics(m),
				publish.WithVerify(verify),
			)

			result, runErr := publisher.Run(ctx, def.Secrets)

			if metricsFile != "" {
				if err := m.WriteTextfile(metricsFile); err != nil {
					logger.Warn("%v", err)
				}
			}

			if !noHistory {
				recordRun(cmd.Context(), logger, historyDir, historyDB, cfg, result, runErr)
			}

			if runErr != nil {
				if len(result.RolledBack) > 0 {
					logger.Warn("Rolled back %d resource(s) created by this run", len(result.RolledBack))
				}
				return runErr
			}

			if outputJSON {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			outputPublishTable(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&verify, "verify", false, "Read every published value back and compare it")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output in JSON format")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")
	cmd.Flags().StringVar(&historyDir, "history-dir", "", "Directory for run history (default: $XDG_DATA_HOME/secretseed/history)")
	cmd.Flags().StringVar(&historyDB, "history-db", "", "Record run history in this SQLite database instead of JSON files")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "Do not record this run")
	addNamingFlags(cmd, v)
	addAWSFlags(cmd, v)

	return cmd
}

// recordRun saves the run to history; failures only warn
func recordRun(ctx context.Context, logger *logging.Logger, dir, dbPath string, cfg *config.Config, result *publish.Result, runErr error) {
	store, closeStore, err := openHistory(ctx, dir, dbPath)
	if err != nil {
		logger.Warn("Failed to open run history: %v", err)
		return
	}
	defer closeStore()

	run := &history.Run{
		ID:            result.RunID,
		Timestamp:     result.StartedAt,
		Sink:          result.Sink,
		Suffix:        result.Suffix,
		NamePrefix:    cfg.Definition.NamePrefix,
		Status:        history.StatusSucceeded,
		Duration:      result.Duration,
		User:          currentUser(),
		ConfigPath:    cfg.Path,
		Outputs:       result.Outputs,
		Published:     result.Published,
		PassedThrough: result.PassedThrough,
		RolledBack:    result.RolledBack,
	}
	if runErr != nil {
		run.Status = history.StatusFailed
		run.Error = runErr.Error()
		if len(result.RolledBack) > 0 {
			run.Status = history.StatusRolledBack
		}
	}

	if err := store.Save(run); err != nil {
		logger.Warn("Failed to record run history: %v", err)
		return
	}
	logger.Debug("Recorded run %s", run.ID)
}

// outputPublishTable prints the name → identifier map
func outputPublishTable(out io.Writer, result *publish.Result) {
	names := make([]string, 0, len(result.Outputs))
	for name := range result.Outputs {
		names = append(names, name)
	}
	sort.Strings(names)

	published := make(map[string]bool, len(result.Published))
	for _, name := range result.Published {
		published[name] = true
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "NAME\tACTION\tIDENTIFIER\n")
	_, _ = fmt.Fprintf(w, "----\t------\t----------\n")
	for _, name := range names {
		action := "existing"
		if published[name] {
			action = "created"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", name, action, result.Outputs[name])
	}
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\n✓ Published %d new secret(s) to %s (suffix %s)", len(result.Published), result.Sink, result.Suffix)
	if result.Verified {
		_, _ = fmt.Fprintf(out, ", all verified")
	}
	_, _ = fmt.Fprintf(out, "\n")
}

