package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sheetsync",
	Short: "Batch reconciliation between the sheet registry and the record database",
	Long: `sheetsync is the batch companion to the project registry. It merges
near-duplicate department rows in the sheet store, rewriting every
reference to the surviving row, and migrates the full entity set from
the sheet store into the record database with idempotent upserts.

Both operations are safe to re-run: partial failures leave every
completed write in place and the next run converges the remainder.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to record database file (overrides SHEETSYNC_DB_PATH)")
	rootCmd.PersistentFlags().String("rows-dir", "", "Path to sheet directory (overrides SHEETSYNC_ROWS_DIR)")
	rootCmd.PersistentFlags().String("as", "", "Actor name recorded on audit events")
}
