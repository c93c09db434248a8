package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kittipats/sheetsync/internal/audit"
	"github.com/kittipats/sheetsync/internal/config"
	"github.com/kittipats/sheetsync/internal/db"
	"github.com/kittipats/sheetsync/internal/recordstore"
	"github.com/kittipats/sheetsync/internal/rowstore"
)

// runEnv bundles the store handles one batch command operates on. Each
// command opens its own handles; nothing is shared through package
// state.
type runEnv struct {
	cfg     *config.Config
	rows    rowstore.Store
	records recordstore.Store
	audit   *audit.Logger
	db      *db.DB
}

func (e *runEnv) close() {
	if e.db != nil {
		e.db.Close()
	}
}

func openRunEnv(cmd *cobra.Command) (*runEnv, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	rowsDir := cmd.Flag("rows-dir").Value.String()
	if rowsDir == "" {
		rowsDir = cfg.RowsDir
	}
	if rowsDir == "" {
		return nil, fmt.Errorf("sheet directory not specified (use --rows-dir or set SHEETSYNC_ROWS_DIR)")
	}

	dbPath := cmd.Flag("db").Value.String()
	if dbPath == "" {
		dbPath = cfg.DBPath
	}
	if dbPath == "" {
		return nil, fmt.Errorf("record database path not specified (use --db or set SHEETSYNC_DB_PATH)")
	}

	rows, err := rowstore.NewCSVStore(rowsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open row store: %w", err)
	}

	database, err := db.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open record database: %w", err)
	}
	if err := database.Migrate(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to migrate record database: %w", err)
	}

	records := recordstore.NewSQLite(database)

	actor := cmd.Flag("as").Value.String()
	if actor == "" {
		actor = cfg.GetActorID()
	}
	if actor == "" {
		actor = "sheetsync"
	}

	return &runEnv{
		cfg:     cfg,
		rows:    rows,
		records: records,
		audit:   audit.NewLogger(audit.NewRecordSink(records), actor, cmd.ErrOrStderr()),
		db:      database,
	}, nil
}

// writeReport serializes a run report to path as indented JSON.
func writeReport(cmd *cobra.Command, path string, report any) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", path)
	return nil
}

func exitError(code int, err error) error {
	// For now, just return the error. We'll enhance this with proper exit codes later
	return err
}
