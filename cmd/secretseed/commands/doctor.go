package commands

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/systmms/secretseed/internal/config"
	dserrors "github.com/systmms/secretseed/internal/errors"
	"github.com/systmms/secretseed/internal/extract"
	"github.com/systmms/secretseed/internal/identity"
	"github.com/systmms/secretseed/internal/location"
)

func NewDoctorCommand(cfg *config.Config) *cobra.Command {
	var (
		verbose bool
		skipAWS bool
	)
	v := config.NewSettings()

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, secret sources and AWS access",
		Long: `Verify that a publish run would succeed up to the first AWS write.

This command checks:
- Configuration file validity
- That every location classifies to exactly one kind
- That every new value can be read from its file
- Which AWS account and principal the credentials resolve to

Nothing is published.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if err := loadConfig(cfg, v); err != nil {
				displayChecks(out, []CheckResult{failedCheck("config", err)}, verbose)
				return err
			}
			def := cfg.Definition

			results := []CheckResult{{
				Name:    "config",
				Status:  "healthy",
				Message: fmt.Sprintf("%s (%d secrets, sink %s)", cfg.Path, len(def.Secrets), def.SinkKind()),
			}}

			locs, err := location.ClassifyAll(def.Secrets)
			if err != nil {
				results = append(results, failedCheck("classify", err))
			} else {
				results = append(results, CheckResult{
					Name:    "classify",
					Status:  "healthy",
					Message: fmt.Sprintf("%d locations classified", len(locs)),
				})
				results = append(results, checkSources(cfg, locs)...)
			}

			if !skipAWS {
				results = append(results, checkIdentity(cmd, def))
			}

			displayChecks(out, results, verbose)

			healthy := 0
			for _, result := range results {
				if result.Status == "healthy" {
					healthy++
				}
			}
			_, _ = fmt.Fprintf(out, "\nSummary: %d/%d checks passed\n", healthy, len(results))
			if healthy < len(results) {
				return fmt.Errorf("some checks failed")
			}

			cfg.Logger.Info("✓ Ready to publish")
			return nil
		},
	}

	cmd.Flags().BoolVar(&verbose, "verbose", false, "Show suggestions for failed checks")
	cmd.Flags().BoolVar(&skipAWS, "skip-aws", false, "Do not contact AWS")
	addAWSFlags(cmd, v)

	return cmd
}

// CheckResult is the outcome of one doctor check
type CheckResult struct {
	Name        string
	Status      string // healthy, error
	Message     string
	Suggestions []string
}

func failedCheck(name string, err error) CheckResult {
	result := CheckResult{Name: name, Status: "error", Message: err.Error()}

	var userErr dserrors.UserError
	if errors.As(dserrors.SimplifyError(err), &userErr) && userErr.Suggestion != "" {
		result.Suggestions = append(result.Suggestions, userErr.Suggestion)
	}
	var cfgErr dserrors.ConfigError
	if errors.As(err, &cfgErr) && cfgErr.Suggestion != "" {
		result.Suggestions = append(result.Suggestions, cfgErr.Suggestion)
	}
	return result
}

// checkSources reads every new value once and discards it
func checkSources(cfg *config.Config, locs []location.Location) []CheckResult {
	ex := extract.New(extract.WithBaseDir(cfg.BaseDir()), extract.WithLogger(cfg.Logger))

	var results []CheckResult
	for _, loc := range locs {
		if !loc.IsNew() {
			continue
		}
		if _, err := ex.Extract(loc); err != nil {
			results = append(results, failedCheck("source "+loc.Name, err))
			continue
		}
		results = append(results, CheckResult{
			Name:    "source " + loc.Name,
			Status:  "healthy",
			Message: fmt.Sprintf("%s value readable from %s", loc.Kind, loc.Path),
		})
	}
	return results
}

func checkIdentity(cmd *cobra.Command, def *config.Definition) CheckResult {
	ctx := cmd.Context()

	client, region, err := newIdentityClient(ctx, def)
	if err != nil {
		return failedCheck("aws identity", err)
	}
	caller, err := identity.Resolve(ctx, client, region)
	if err != nil {
		return failedCheck("aws identity", err)
	}
	if region == "" {
		region = "(no region)"
	}
	return CheckResult{
		Name:    "aws identity",
		Status:  "healthy",
		Message: fmt.Sprintf("%s in account %s, %s", caller.ARN, caller.Account, region),
	}
}

// displayChecks shows check results in a formatted table
func displayChecks(out io.Writer, results []CheckResult, verbose bool) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(w, "CHECK\tSTATUS\tMESSAGE\n")
	_, _ = fmt.Fprintf(w, "-----\t------\t-------\n")

	for _, result := range results {
		status := result.Status
		switch result.Status {
		case "healthy":
			status = "✓ " + status
		case "error":
			status = "✗ " + status
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", result.Name, status, result.Message)
	}
	_ = w.Flush()

	if !verbose {
		return
	}
	for _, result := range results {
		if result.Status == "error" && len(result.Suggestions) > 0 {
			_, _ = fmt.Fprintf(out, "\n%s suggestions:\n", result.Name)
			for _, suggestion := range result.Suggestions {
				_, _ = fmt.Fprintf(out, "  • %s\n", suggestion)
			}
		}
	}
}
