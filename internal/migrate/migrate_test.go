package migrate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kittipats/sheetsync/internal/domain"
	"github.com/kittipats/sheetsync/internal/recordstore"
	"github.com/kittipats/sheetsync/internal/rowstore"
	"github.com/kittipats/sheetsync/internal/testutil"
)

// seedSource builds a small but fully-linked source dataset spanning
// every entity type.
func seedSource() *rowstore.MemStore {
	store := rowstore.NewMemStore()
	for _, entity := range domain.MigrationOrder {
		store.CreateSheet(entity)
	}

	store.Seed(domain.EntityDepartment, map[string]string{
		domain.FieldID: "d1", domain.FieldName: "สำนักปลัด", domain.FieldOrgType: "local",
	})
	store.Seed(domain.EntityUser, map[string]string{
		domain.FieldID: "u1", domain.FieldName: "Somchai", domain.FieldDepartmentID: "d1",
	})
	store.Seed(domain.EntityCategory, map[string]string{
		domain.FieldID: "c1", domain.FieldName: "Infrastructure",
	})
	store.Seed(domain.EntityStrategicPlan, map[string]string{
		domain.FieldID: "sp1", domain.FieldName: "Plan 2570",
	})
	store.Seed(domain.EntityStrategicGoal, map[string]string{
		domain.FieldID: "sg1", domain.FieldName: "Goal 1", domain.FieldPlanID: "sp1",
	})
	store.Seed(domain.EntityStrategicIndicator, map[string]string{
		domain.FieldID: "si1", domain.FieldName: "Indicator 1", domain.FieldGoalID: "sg1",
	})
	store.Seed(domain.EntityProject, map[string]string{
		domain.FieldID: "p1", domain.FieldName: "Road Repair", domain.FieldAgency: "สำนักปลัด",
		domain.FieldCategoryID: "c1", domain.FieldPlanID: "sp1", domain.FieldGoalID: "sg1",
		domain.FieldDescription: "Resurface the main road",
	})
	store.Seed(domain.EntityProjectIndicator, map[string]string{
		domain.FieldID: "pi1", domain.FieldName: "km resurfaced", domain.FieldProjectID: "p1",
		domain.FieldTarget: "5", domain.FieldUnit: "km",
	})
	store.Seed(domain.EntityReport, map[string]string{
		domain.FieldID: "r1", domain.FieldProjectID: "p1",
		domain.FieldReportedAt: "2026-01-15", domain.FieldDetail: "2 km done",
	})
	store.Seed(domain.EntityAuditLog, map[string]string{
		domain.FieldOccurredAt: "2026-01-01T00:00:00Z", domain.FieldActor: "admin",
		domain.FieldAction: "project.created", domain.FieldActionTarget: "p1",
	})
	return store
}

func run(t *testing.T, rows rowstore.Store, records recordstore.Store) *Report {
	t.Helper()
	runner := &Runner{Rows: rows, Records: records}
	report, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return report
}

func TestMigrateCreatesEverything(t *testing.T) {
	rows := seedSource()
	records := testutil.TempRecordStore(t)
	ctx := context.Background()

	report := run(t, rows, records)

	for _, entity := range domain.MigrationOrder {
		counts := report.Entities[string(entity)]
		if counts == nil || counts.Created != 1 {
			t.Errorf("%s: expected 1 created, got %+v", entity, counts)
		}
		if counts != nil && counts.Failed != 0 {
			t.Errorf("%s: unexpected failures: %+v", entity, counts)
		}
	}

	// Foreign keys land as target-store ids, not source ids.
	dept, err := records.FindByUniqueKey(ctx, domain.EntityDepartment, "สำนักปลัด")
	if err != nil || dept == nil {
		t.Fatalf("department not migrated: %v", err)
	}
	user, _ := records.FindByUniqueKey(ctx, domain.EntityUser, "u1")
	if user == nil || user.Get("department_id") != dept.ID {
		t.Errorf("user department_id not remapped to %s", dept.ID)
	}

	project, _ := records.FindByUniqueKey(ctx, domain.EntityProject, "Road Repair")
	if project == nil {
		t.Fatal("project not migrated")
	}
	if project.Get("agency") != "สำนักปลัด" {
		t.Errorf("project agency name not preserved, got %q", project.Get("agency"))
	}
	if project.Get("department_id") != dept.ID {
		t.Errorf("project department not resolved from agency name")
	}

	plan, _ := records.FindByUniqueKey(ctx, domain.EntityStrategicPlan, "Plan 2570")
	goal, _ := records.FindByUniqueKey(ctx, domain.EntityStrategicGoal, "Goal 1")
	if goal == nil || plan == nil || goal.Get("plan_id") != plan.ID {
		t.Error("strategic goal plan_id not remapped")
	}
	if project.Get("plan_id") != plan.ID || project.Get("goal_id") != goal.ID {
		t.Error("project plan/goal ids not remapped")
	}

	indicator, _ := records.FindByUniqueKey(ctx, domain.EntityProjectIndicator, project.ID+"/km resurfaced")
	if indicator == nil || indicator.Get("project_id") != project.ID {
		t.Error("project indicator not keyed to the migrated project")
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	rows := seedSource()
	records := testutil.TempRecordStore(t)
	ctx := context.Background()

	run(t, rows, records)

	before := make(map[domain.Entity]int)
	for _, entity := range domain.MigrationOrder {
		count, err := records.Count(ctx, entity)
		if err != nil {
			t.Fatalf("Count failed: %v", err)
		}
		before[entity] = count
	}

	second := run(t, rows, records)

	for _, entity := range domain.MigrationOrder {
		count, _ := records.Count(ctx, entity)
		if count != before[entity] {
			t.Errorf("%s: count changed on re-run: %d -> %d", entity, before[entity], count)
		}
		counts := second.Entities[string(entity)]
		if counts.Created != 0 {
			t.Errorf("%s: re-run created %d records", entity, counts.Created)
		}
	}
}

func TestMigrateAuditLogRerunCountsSkipped(t *testing.T) {
	rows := seedSource()
	records := testutil.TempRecordStore(t)
	ctx := context.Background()

	run(t, rows, records)
	second := run(t, rows, records)

	counts := second.Entities[string(domain.EntityAuditLog)]
	if counts.Updated != 0 {
		t.Errorf("append-only audit rows must not count as updated, got %d", counts.Updated)
	}
	if counts.Skipped != 1 || counts.Created != 0 {
		t.Errorf("expected the existing audit row to count as skipped, got %+v", counts)
	}

	count, err := records.Count(ctx, domain.EntityAuditLog)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 audit record after re-run, got %d", count)
	}
}

func TestMigrateDanglingFKWrittenNull(t *testing.T) {
	rows := seedSource()
	rows.Seed(domain.EntityProject, map[string]string{
		domain.FieldID: "p2", domain.FieldName: "Bridge", domain.FieldCategoryID: "c999",
	})
	records := testutil.TempRecordStore(t)

	report := run(t, rows, records)

	project, _ := records.FindByUniqueKey(context.Background(), domain.EntityProject, "Bridge")
	if project == nil {
		t.Fatal("project not migrated")
	}
	if project.Fields["category_id"] != nil {
		t.Errorf("dangling categoryId must be written null, got %v", project.Fields["category_id"])
	}

	found := false
	for _, w := range report.Warnings {
		if strings.Contains(w, "c999") {
			found = true
		}
	}
	if !found {
		t.Error("expected a warning for the unresolved category reference")
	}
}

func TestMigrateOrphanDependentsSkipped(t *testing.T) {
	rows := seedSource()
	rows.Seed(domain.EntityProjectIndicator, map[string]string{
		domain.FieldID: "pi2", domain.FieldName: "orphan", domain.FieldProjectID: "p999",
	})
	rows.Seed(domain.EntityReport, map[string]string{
		domain.FieldID: "r2", domain.FieldProjectID: "p999", domain.FieldReportedAt: "2026-02-01",
	})
	records := testutil.TempRecordStore(t)
	ctx := context.Background()

	report := run(t, rows, records)

	if got := report.Entities[string(domain.EntityProjectIndicator)].Skipped; got != 1 {
		t.Errorf("expected 1 skipped indicator, got %d", got)
	}
	if got := report.Entities[string(domain.EntityReport)].Skipped; got != 1 {
		t.Errorf("expected 1 skipped report, got %d", got)
	}

	count, _ := records.Count(ctx, domain.EntityReport)
	if count != 1 {
		t.Errorf("orphan report must not be written at all, got %d reports", count)
	}
	count, _ = records.Count(ctx, domain.EntityProjectIndicator)
	if count != 1 {
		t.Errorf("orphan indicator must not be written at all, got %d indicators", count)
	}
}

func TestMigrateUserWithoutIdentifier(t *testing.T) {
	rows := seedSource()
	rows.Seed(domain.EntityUser, map[string]string{domain.FieldName: "Anon"})
	records := testutil.TempRecordStore(t)
	ctx := context.Background()

	report := run(t, rows, records)
	if got := report.Entities[string(domain.EntityUser)].Skipped; got != 1 {
		t.Errorf("expected identifier-less user to be skipped, got %d skipped", got)
	}
	count, _ := records.Count(ctx, domain.EntityUser)
	if count != 1 {
		t.Errorf("expected 1 migrated user, got %d", count)
	}
}

func TestMigrateRandomUsernameFallback(t *testing.T) {
	rows := seedSource()
	rows.Seed(domain.EntityUser, map[string]string{domain.FieldName: "Anon"})
	records := testutil.TempRecordStore(t)
	ctx := context.Background()

	runner := &Runner{Rows: rows, Records: records, AllowRandomUsernames: true}
	report, err := runner.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := report.Entities[string(domain.EntityUser)].Created; got != 2 {
		t.Errorf("expected 2 users created with fallback enabled, got %d", got)
	}
	warned := false
	for _, w := range report.Warnings {
		if strings.Contains(w, "idempotent") {
			warned = true
		}
	}
	if !warned {
		t.Error("expected a warning that the fabricated username breaks re-runs")
	}
}

func TestMigrateUserIdentifierPriority(t *testing.T) {
	rows := seedSource()
	rows.Seed(domain.EntityUser, map[string]string{
		domain.FieldLineID: "line-7", domain.FieldEmail: "x@example.com",
	})
	records := testutil.TempRecordStore(t)
	ctx := context.Background()

	run(t, rows, records)

	user, _ := records.FindByUniqueKey(ctx, domain.EntityUser, "line-7")
	if user == nil {
		t.Fatal("expected line id to be used as username before email")
	}
}

func TestMigrateMissingSheetIsFatal(t *testing.T) {
	records := testutil.TempRecordStore(t)

	// Every sheet except projects exists.
	broken := rowstore.NewMemStore()
	for _, entity := range domain.MigrationOrder {
		if entity == domain.EntityProject {
			continue
		}
		broken.CreateSheet(entity)
	}

	runner := &Runner{Rows: broken, Records: records}
	if _, err := runner.Run(context.Background()); !errors.Is(err, rowstore.ErrNoSheet) {
		t.Fatalf("expected ErrNoSheet, got %v", err)
	}
}

func TestMigrateConvergesAndRecordsDiffs(t *testing.T) {
	rows := seedSource()
	records := testutil.TempRecordStore(t)
	ctx := context.Background()

	run(t, rows, records)

	// Source changed between runs; the second run converges the target.
	for _, row := range rows.Rows(domain.EntityProject) {
		row.Assign(map[string]string{domain.FieldDescription: "Resurface and widen the main road"})
	}

	report := run(t, rows, records)

	project, _ := records.FindByUniqueKey(ctx, domain.EntityProject, "Road Repair")
	if got := project.Get("description"); got != "Resurface and widen the main road" {
		t.Errorf("expected description to converge, got %q", got)
	}

	if len(report.Diffs) == 0 {
		t.Fatal("expected a recorded field diff")
	}
	diff := report.Diffs[0]
	if diff.Field != "description" || !strings.Contains(diff.Diff, "widen") {
		t.Errorf("unexpected diff: %+v", diff)
	}
}

func TestMigrateDryRunWritesNothing(t *testing.T) {
	rows := seedSource()
	records := testutil.TempRecordStore(t)
	ctx := context.Background()

	runner := &Runner{Rows: rows, Records: records, DryRun: true}
	report, err := runner.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for _, entity := range domain.MigrationOrder {
		if counts := report.Entities[string(entity)]; counts.Created != 1 {
			t.Errorf("%s: dry-run should report 1 would-create, got %+v", entity, counts)
		}
		count, _ := records.Count(ctx, entity)
		if count != 0 {
			t.Errorf("%s: dry-run wrote %d records", entity, count)
		}
	}
}
