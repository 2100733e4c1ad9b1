package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/systmms/secretseed/internal/config"
	"github.com/systmms/secretseed/internal/publish"
)

func NewPlanCommand(cfg *config.Config) *cobra.Command {
	var outputJSON bool
	v := config.NewSettings()

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show how each secret location is classified (no values read)",
		Long: `Plan classifies every entry in the secrets map and shows the resource
name a publish run would create for it. No files are read and AWS is not
contacted. The random suffix is shown as <suffix>.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cfg, v); err != nil {
				return err
			}

			plan, err := publish.BuildPlan(cfg.Definition.Secrets, namingSink(cfg.Definition))
			if err != nil {
				return fmt.Errorf("failed to plan: %w", err)
			}

			if outputJSON {
				return writeJSON(cmd.OutOrStdout(), plan)
			}
			outputPlanTable(cmd.OutOrStdout(), plan)
			return nil
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output in JSON format")
	addNamingFlags(cmd, v)

	return cmd
}

// outputPlanTable outputs the plan as a formatted table
func outputPlanTable(out io.Writer, plan *publish.Plan) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(w, "NAME\tKIND\tFILE\tKEY\tTARGET\n")
	_, _ = fmt.Fprintf(w, "----\t----\t----\t---\t------\n")

	for _, entry := range plan.Entries {
		file, key := entry.Path, entry.Key
		if file == "" {
			file = "-"
		}
		if key == "" {
			key = "-"
		}
		if entry.Profile != "" {
			key = fmt.Sprintf("[%s] %s", entry.Profile, key)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			entry.Name,
			entry.Kind,
			file,
			key,
			entry.Target,
		)
	}
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\nSummary:\n")
	_, _ = fmt.Fprintf(out, "  Total secrets: %d\n", len(plan.Entries))
	_, _ = fmt.Fprintf(out, "  Existing references: %d\n", plan.Counts["existing"])
	_, _ = fmt.Fprintf(out, "  New resources (%s): %d\n", plan.Sink, plan.NewCount())

	_, _ = fmt.Fprintf(out, "\nNext steps:\n")
	_, _ = fmt.Fprintf(out, "  • Run 'secretseed doctor' to check AWS access\n")
	_, _ = fmt.Fprintf(out, "  • Run 'secretseed publish' to create the resources\n")
}
