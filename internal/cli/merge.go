package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/kittipats/sheetsync/internal/merge"
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge duplicate department rows",
	Long: `Merge department rows whose names differ only by whitespace, case,
or abbreviation periods.

Within each duplicate group the row with the most referencing projects
and users survives (ties broken by name); every project agency and user
department reference is rewritten to the survivor, and the losing rows
are deleted only after their references are gone. Use --dry-run to see
the survivor decisions without writing.`,
	RunE: runMerge,
}

var (
	mergeDryRun     bool
	mergeReportPath string
)

func init() {
	rootCmd.AddCommand(mergeCmd)

	mergeCmd.Flags().BoolVar(&mergeDryRun, "dry-run", false, "Compute the report without writing")
	mergeCmd.Flags().StringVar(&mergeReportPath, "report", "", "Write JSON report to path")
}

func runMerge(cmd *cobra.Command, args []string) error {
	env, err := openRunEnv(cmd)
	if err != nil {
		return exitError(1, err)
	}
	defer env.close()

	ctx := cmd.Context()
	if !mergeDryRun {
		env.audit.LogRunStarted(ctx, "merge")
	}

	runner := &merge.Runner{
		Rows:    env.rows,
		Records: env.records,
		Audit:   env.audit,
		DryRun:  mergeDryRun,
	}
	report, err := runner.Run(ctx)
	if err != nil {
		return exitError(1, err)
	}

	if !mergeDryRun {
		env.audit.LogRunFinished(ctx, "merge", map[string]any{
			"groups_merged":   report.GroupsMerged,
			"victims_deleted": report.VictimsDeleted,
			"failed":          report.Failed,
		})
	}

	if mergeReportPath != "" {
		if err := writeReport(cmd, mergeReportPath, report); err != nil {
			return exitError(1, err)
		}
	}

	printMergeSummary(cmd, report)
	return nil
}

func printMergeSummary(cmd *cobra.Command, report *merge.Report) {
	out := cmd.OutOrStdout()
	if report.DryRun {
		fmt.Fprintln(out, "Mode: dry-run")
	}
	fmt.Fprintf(out, "Duplicate groups: %d found, %d merged\n", report.GroupsFound, report.GroupsMerged)
	fmt.Fprintf(out, "Departments deleted: %d\n", report.VictimsDeleted)

	entities := make([]string, 0, len(report.Updated))
	for entity := range report.Updated {
		entities = append(entities, entity)
	}
	sort.Strings(entities)
	for _, entity := range entities {
		fmt.Fprintf(out, "%s updated: %d\n", entity, report.Updated[entity])
	}

	if report.Failed > 0 {
		fmt.Fprintf(out, "Failed rows: %d\n", report.Failed)
	}
	for _, warning := range report.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", warning)
	}
}
