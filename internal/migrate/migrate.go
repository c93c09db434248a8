// Package migrate copies the full entity set from the row store into the
// record store. Entities are walked in strict dependency order, each
// pass building an identifier map from row-store ids to record-store
// ids so later passes can remap foreign keys. Writes are idempotent
// upserts keyed on each entity's unique key: re-running after a partial
// failure creates no duplicates and converges existing records toward
// the latest source values.
package migrate

import (
	"context"
	"errors"
	"fmt"

	"github.com/kittipats/sheetsync/internal/domain"
	"github.com/kittipats/sheetsync/internal/recordstore"
	"github.com/kittipats/sheetsync/internal/rowstore"
)

// IDMap translates row-store ids to record-store ids for one entity
// type. It is built during that entity's pass and read-only afterwards.
type IDMap map[string]string

// Runner drives one migration run.
type Runner struct {
	Rows    rowstore.Store
	Records recordstore.Store
	DryRun  bool

	// AllowRandomUsernames restores the legacy behavior of fabricating a
	// username for user rows carrying no stable identifier. Rows written
	// this way cannot be matched by a later run and will be re-created,
	// so the default is to reject such rows instead.
	AllowRandomUsernames bool
}

// EntityCounts is the per-entity outcome. Created and Updated count rows
// actually written (or, in dry-run mode, rows that would be).
type EntityCounts struct {
	Seen    int `json:"seen"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Failure identifies one row that could not be written.
type Failure struct {
	Entity string `json:"entity"`
	Row    string `json:"row"`
	Err    string `json:"error"`
}

// FieldDiff records how an update-on-exists changed a long text field.
type FieldDiff struct {
	Entity string `json:"entity"`
	Key    string `json:"key"`
	Field  string `json:"field"`
	Diff   string `json:"diff"`
}

// Report is the run summary.
type Report struct {
	DryRun   bool                     `json:"dry_run"`
	Entities map[string]*EntityCounts `json:"entities"`
	Warnings []string                 `json:"warnings,omitempty"`
	Failures []Failure                `json:"failures,omitempty"`
	Diffs    []FieldDiff              `json:"diffs,omitempty"`
}

func (r *Report) counts(entity domain.Entity) *EntityCounts {
	c, ok := r.Entities[string(entity)]
	if !ok {
		c = &EntityCounts{}
		r.Entities[string(entity)] = c
	}
	return c
}

func (r *Report) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Run executes the migration. A missing sheet is a precondition failure
// and aborts the run immediately; everything else recovers per row.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{DryRun: r.DryRun, Entities: make(map[string]*EntityCounts)}
	maps := make(map[domain.Entity]IDMap)

	for _, entity := range domain.MigrationOrder {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		rows, err := r.Rows.List(ctx, entity)
		if errors.Is(err, rowstore.ErrNoSheet) {
			return report, fmt.Errorf("source is missing the %s sheet: %w", entity, err)
		}
		if err != nil {
			return report, fmt.Errorf("failed to load %s: %w", entity, err)
		}

		maps[entity] = make(IDMap, len(rows))
		if err := r.migrateEntity(ctx, entity, rows, maps, report); err != nil {
			return report, err
		}
	}

	return report, nil
}

func (r *Runner) migrateEntity(ctx context.Context, entity domain.Entity, rows []rowstore.Row, maps map[domain.Entity]IDMap, report *Report) error {
	switch entity {
	case domain.EntityDepartment:
		return r.migrateDepartments(ctx, rows, maps[entity], report)
	case domain.EntityUser:
		return r.migrateUsers(ctx, rows, maps, report)
	case domain.EntityCategory:
		return r.migrateNamed(ctx, entity, rows, maps[entity], nil, report)
	case domain.EntityStrategicPlan:
		return r.migrateNamed(ctx, entity, rows, maps[entity], nil, report)
	case domain.EntityStrategicGoal:
		return r.migrateNamed(ctx, entity, rows, maps[entity], map[string]fkSource{
			"plan_id": {field: domain.FieldPlanID, idmap: maps[domain.EntityStrategicPlan]},
		}, report)
	case domain.EntityStrategicIndicator:
		return r.migrateNamed(ctx, entity, rows, maps[entity], map[string]fkSource{
			"goal_id": {field: domain.FieldGoalID, idmap: maps[domain.EntityStrategicGoal]},
		}, report)
	case domain.EntityProject:
		return r.migrateProjects(ctx, rows, maps, report)
	case domain.EntityProjectIndicator:
		return r.migrateProjectIndicators(ctx, rows, maps, report)
	case domain.EntityReport:
		return r.migrateReports(ctx, rows, maps, report)
	case domain.EntityAuditLog:
		return r.migrateAuditLogs(ctx, rows, report)
	default:
		return fmt.Errorf("no migration pass for entity %s", entity)
	}
}
