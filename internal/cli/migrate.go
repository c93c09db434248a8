package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kittipats/sheetsync/internal/domain"
	"github.com/kittipats/sheetsync/internal/migrate"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate every entity from the sheet store into the record database",
	Long: `Copy the full entity set from the sheet store into the record
database, in dependency order, remapping sheet ids to database ids as
it goes.

The migration is an idempotent upsert: existing records are matched by
their unique key and converged toward the latest sheet values, never
duplicated, so re-running after a partial failure is the designed
recovery path. Foreign keys that fail to resolve are written as null;
indicator and report rows whose project cannot be resolved are skipped
entirely.`,
	RunE: runMigrate,
}

var (
	migrateDryRun          bool
	migrateReportPath      string
	migrateRandomUsernames bool
)

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "Validate and report without writing")
	migrateCmd.Flags().StringVar(&migrateReportPath, "report", "", "Write JSON report to path")
	migrateCmd.Flags().BoolVar(&migrateRandomUsernames, "allow-random-usernames", false,
		"Fabricate usernames for user rows lacking any stable identifier (breaks idempotent re-runs for those rows)")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	env, err := openRunEnv(cmd)
	if err != nil {
		return exitError(1, err)
	}
	defer env.close()

	ctx := cmd.Context()
	if !migrateDryRun {
		env.audit.LogRunStarted(ctx, "migrate")
	}

	runner := &migrate.Runner{
		Rows:                 env.rows,
		Records:              env.records,
		DryRun:               migrateDryRun,
		AllowRandomUsernames: migrateRandomUsernames,
	}
	report, err := runner.Run(ctx)
	if err != nil {
		return exitError(1, err)
	}

	if !migrateDryRun {
		summary := make(map[string]any, len(report.Entities))
		for entity, counts := range report.Entities {
			summary[entity] = map[string]any{
				"created": counts.Created,
				"updated": counts.Updated,
				"skipped": counts.Skipped,
				"failed":  counts.Failed,
			}
		}
		env.audit.LogRunFinished(ctx, "migrate", summary)
	}

	if migrateReportPath != "" {
		if err := writeReport(cmd, migrateReportPath, report); err != nil {
			return exitError(1, err)
		}
	}

	printMigrateSummary(cmd, report)
	return nil
}

func printMigrateSummary(cmd *cobra.Command, report *migrate.Report) {
	out := cmd.OutOrStdout()
	if report.DryRun {
		fmt.Fprintln(out, "Mode: dry-run")
	}
	for _, entity := range domain.MigrationOrder {
		counts, ok := report.Entities[string(entity)]
		if !ok {
			continue
		}
		fmt.Fprintf(out, "%s: %d seen, %d created, %d updated, %d skipped, %d failed\n",
			entity, counts.Seen, counts.Created, counts.Updated, counts.Skipped, counts.Failed)
	}
	if len(report.Diffs) > 0 {
		fmt.Fprintf(out, "Field changes recorded: %d\n", len(report.Diffs))
	}
	for _, warning := range report.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", warning)
	}
}
