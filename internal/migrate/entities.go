package migrate

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/kittipats/sheetsync/internal/batch"
	"github.com/kittipats/sheetsync/internal/domain"
	"github.com/kittipats/sheetsync/internal/rowstore"
)

// dryRunID stands in for a record id the run would have created, so
// dependent passes can still validate their foreign keys in dry-run
// mode.
const dryRunID = "dry-run"

// fkSource names a row-store field holding a source id and the
// identifier map that translates it.
type fkSource struct {
	field string
	idmap IDMap
}

// resolveFK translates a source foreign key to a target id. An empty
// reference stays null silently; a non-empty one that fails to resolve
// is written as null and logged, never as a dangling source id.
func resolveFK(src fkSource, row rowstore.Row, entity domain.Entity, rowID string, report *Report) any {
	sourceID := row.Get(src.field)
	if sourceID == "" {
		return nil
	}
	if target, ok := src.idmap[sourceID]; ok {
		return target
	}
	report.warnf("%s %s: %s %q does not resolve, writing null", entity, rowID, src.field, sourceID)
	return nil
}

// runPass drives one entity's rows through fn, accumulating per-row
// failures without stopping.
func (r *Runner) runPass(entity domain.Entity, rows []rowstore.Row, report *Report, fn func(row rowstore.Row) error) {
	result := batch.Run(rows, func(row rowstore.Row) string {
		return rowIdentity(entity, row)
	}, fn)

	counts := report.counts(entity)
	counts.Failed += result.Failed
	for _, itemErr := range result.Errors {
		report.Failures = append(report.Failures, Failure{
			Entity: string(entity),
			Row:    itemErr.Item,
			Err:    itemErr.Error.Error(),
		})
	}
}

// upsertOne is the shared write path: look the unique key up, record the
// id mapping, and create or converge the record. diffFields names long
// text columns whose changes are captured as unified diffs.
func (r *Runner) upsertOne(ctx context.Context, entity domain.Entity, sourceID, key string, fields map[string]any, idmap IDMap, diffFields []string, report *Report) error {
	counts := report.counts(entity)

	existing, err := r.Records.FindByUniqueKey(ctx, entity, key)
	if err != nil {
		return err
	}

	if existing != nil {
		if sourceID != "" && idmap != nil {
			idmap[sourceID] = existing.ID
		}
		for _, field := range diffFields {
			newVal, _ := fields[field].(string)
			r.captureDiff(entity, key, field, existing.Get(field), newVal, report)
		}
		if !r.DryRun {
			if _, err := r.Records.Upsert(ctx, entity, key, fields); err != nil {
				return err
			}
		}
		counts.Updated++
		return nil
	}

	if r.DryRun {
		if sourceID != "" && idmap != nil {
			idmap[sourceID] = dryRunID
		}
		counts.Created++
		return nil
	}

	created, err := r.Records.Upsert(ctx, entity, key, fields)
	if err != nil {
		return err
	}
	if sourceID != "" && idmap != nil {
		idmap[sourceID] = created.ID
	}
	counts.Created++
	return nil
}

func (r *Runner) captureDiff(entity domain.Entity, key, field, oldVal, newVal string, report *Report) {
	if oldVal == "" || newVal == "" || oldVal == newVal {
		return
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(oldVal),
		B:        difflib.SplitLines(newVal),
		FromFile: "current",
		ToFile:   "incoming",
		Context:  3,
	}
	if text, err := difflib.GetUnifiedDiffString(diff); err == nil {
		report.Diffs = append(report.Diffs, FieldDiff{
			Entity: string(entity),
			Key:    key,
			Field:  field,
			Diff:   text,
		})
	}
}

func (r *Runner) migrateDepartments(ctx context.Context, rows []rowstore.Row, idmap IDMap, report *Report) error {
	counts := report.counts(domain.EntityDepartment)
	r.runPass(domain.EntityDepartment, rows, report, func(row rowstore.Row) error {
		counts.Seen++
		name := row.Get(domain.FieldName)
		if name == "" {
			counts.Skipped++
			report.warnf("departments: row %s has no name, skipping", rowIdentity(domain.EntityDepartment, row))
			return nil
		}
		fields := map[string]any{
			"name":              name,
			"organization_type": nullable(row.Get(domain.FieldOrgType)),
		}
		return r.upsertOne(ctx, domain.EntityDepartment, row.Get(domain.FieldID), name, fields, idmap, nil, report)
	})
	return nil
}

func (r *Runner) migrateUsers(ctx context.Context, rows []rowstore.Row, maps map[domain.Entity]IDMap, report *Report) error {
	counts := report.counts(domain.EntityUser)
	idmap := maps[domain.EntityUser]
	deptFK := fkSource{field: domain.FieldDepartmentID, idmap: maps[domain.EntityDepartment]}

	r.runPass(domain.EntityUser, rows, report, func(row rowstore.Row) error {
		counts.Seen++
		rowID := rowIdentity(domain.EntityUser, row)

		username := firstNonEmpty(
			row.Get(domain.FieldID),
			row.Get(domain.FieldLineID),
			row.Get(domain.FieldEmail),
		)
		if username == "" {
			if !r.AllowRandomUsernames {
				counts.Skipped++
				report.warnf("users: row %s has no stable identifier, skipping (use --allow-random-usernames to fabricate one)", rowID)
				return nil
			}
			username = "user-" + uuid.NewString()[:8]
			report.warnf("users: row %s has no stable identifier, fabricated username %q; this row will not survive idempotent re-runs", rowID, username)
		}

		fields := map[string]any{
			"username":      username,
			"name":          nullable(row.Get(domain.FieldName)),
			"email":         nullable(row.Get(domain.FieldEmail)),
			"line_id":       nullable(row.Get(domain.FieldLineID)),
			"department_id": resolveFK(deptFK, row, domain.EntityUser, rowID, report),
		}
		return r.upsertOne(ctx, domain.EntityUser, row.Get(domain.FieldID), username, fields, idmap, nil, report)
	})
	return nil
}

// migrateNamed covers the entities whose unique key is their display
// name and whose only migration work is optional foreign-key remapping.
func (r *Runner) migrateNamed(ctx context.Context, entity domain.Entity, rows []rowstore.Row, idmap IDMap, fks map[string]fkSource, report *Report) error {
	counts := report.counts(entity)
	r.runPass(entity, rows, report, func(row rowstore.Row) error {
		counts.Seen++
		name := row.Get(domain.FieldName)
		if name == "" {
			counts.Skipped++
			report.warnf("%s: row %s has no name, skipping", entity, rowIdentity(entity, row))
			return nil
		}
		fields := map[string]any{"name": name}
		for column, src := range fks {
			fields[column] = resolveFK(src, row, entity, name, report)
		}
		return r.upsertOne(ctx, entity, row.Get(domain.FieldID), name, fields, idmap, nil, report)
	})
	return nil
}

func (r *Runner) migrateProjects(ctx context.Context, rows []rowstore.Row, maps map[domain.Entity]IDMap, report *Report) error {
	counts := report.counts(domain.EntityProject)
	idmap := maps[domain.EntityProject]
	categoryFK := fkSource{field: domain.FieldCategoryID, idmap: maps[domain.EntityCategory]}
	planFK := fkSource{field: domain.FieldPlanID, idmap: maps[domain.EntityStrategicPlan]}
	goalFK := fkSource{field: domain.FieldGoalID, idmap: maps[domain.EntityStrategicGoal]}

	r.runPass(domain.EntityProject, rows, report, func(row rowstore.Row) error {
		counts.Seen++
		rowID := rowIdentity(domain.EntityProject, row)
		name := row.Get(domain.FieldName)
		if name == "" {
			counts.Skipped++
			report.warnf("projects: row %s has no name, skipping", rowID)
			return nil
		}

		// The source references a department two ways at once: by agency
		// name on projects, by id on users. The name is kept verbatim
		// and additionally resolved to the migrated department when one
		// matches.
		agency := row.Get(domain.FieldAgency)
		var departmentID any
		if agency != "" {
			dept, err := r.Records.FindByUniqueKey(ctx, domain.EntityDepartment, agency)
			if err != nil {
				return err
			}
			if dept != nil {
				departmentID = dept.ID
			} else if !r.DryRun {
				report.warnf("projects %s: agency %q matches no migrated department", rowID, agency)
			}
		}

		fields := map[string]any{
			"name":          name,
			"agency":        nullable(agency),
			"department_id": departmentID,
			"category_id":   resolveFK(categoryFK, row, domain.EntityProject, rowID, report),
			"plan_id":       resolveFK(planFK, row, domain.EntityProject, rowID, report),
			"goal_id":       resolveFK(goalFK, row, domain.EntityProject, rowID, report),
			"budget":        nullable(row.Get(domain.FieldBudget)),
			"fiscal_year":   nullable(row.Get(domain.FieldFiscalYear)),
			"description":   nullable(row.Get(domain.FieldDescription)),
		}
		return r.upsertOne(ctx, domain.EntityProject, row.Get(domain.FieldID), name, fields, idmap, []string{"description"}, report)
	})
	return nil
}

func (r *Runner) migrateProjectIndicators(ctx context.Context, rows []rowstore.Row, maps map[domain.Entity]IDMap, report *Report) error {
	counts := report.counts(domain.EntityProjectIndicator)
	idmap := maps[domain.EntityProjectIndicator]
	projects := maps[domain.EntityProject]

	r.runPass(domain.EntityProjectIndicator, rows, report, func(row rowstore.Row) error {
		counts.Seen++
		rowID := rowIdentity(domain.EntityProjectIndicator, row)
		name := row.Get(domain.FieldName)
		if name == "" {
			counts.Skipped++
			report.warnf("project_indicators: row %s has no name, skipping", rowID)
			return nil
		}

		// An indicator without its project is meaningless; unresolved
		// rows are skipped entirely, never written with a null project.
		projectID, ok := projects[row.Get(domain.FieldProjectID)]
		if !ok {
			counts.Skipped++
			report.warnf("project_indicators: row %s references unmigrated project %q, skipping", rowID, row.Get(domain.FieldProjectID))
			return nil
		}

		key := projectID + "/" + name
		fields := map[string]any{
			"name":       name,
			"project_id": projectID,
			"target":     nullable(row.Get(domain.FieldTarget)),
			"unit":       nullable(row.Get(domain.FieldUnit)),
		}
		return r.upsertOne(ctx, domain.EntityProjectIndicator, row.Get(domain.FieldID), key, fields, idmap, nil, report)
	})
	return nil
}

func (r *Runner) migrateReports(ctx context.Context, rows []rowstore.Row, maps map[domain.Entity]IDMap, report *Report) error {
	counts := report.counts(domain.EntityReport)
	idmap := maps[domain.EntityReport]
	projects := maps[domain.EntityProject]

	r.runPass(domain.EntityReport, rows, report, func(row rowstore.Row) error {
		counts.Seen++
		rowID := rowIdentity(domain.EntityReport, row)

		projectID, ok := projects[row.Get(domain.FieldProjectID)]
		if !ok {
			counts.Skipped++
			report.warnf("reports: row %s references unmigrated project %q, skipping", rowID, row.Get(domain.FieldProjectID))
			return nil
		}

		suffix := firstNonEmpty(row.Get(domain.FieldReportedAt), row.Get(domain.FieldID))
		if suffix == "" {
			counts.Skipped++
			report.warnf("reports: row %s has neither a report date nor an id, skipping", rowID)
			return nil
		}

		key := projectID + "/" + suffix
		fields := map[string]any{
			"project_id":  projectID,
			"reported_at": nullable(row.Get(domain.FieldReportedAt)),
			"detail":      nullable(row.Get(domain.FieldDetail)),
			"progress":    nullable(row.Get(domain.FieldProgress)),
		}
		return r.upsertOne(ctx, domain.EntityReport, row.Get(domain.FieldID), key, fields, idmap, []string{"detail"}, report)
	})
	return nil
}

func (r *Runner) migrateAuditLogs(ctx context.Context, rows []rowstore.Row, report *Report) error {
	counts := report.counts(domain.EntityAuditLog)
	r.runPass(domain.EntityAuditLog, rows, report, func(row rowstore.Row) error {
		counts.Seen++
		occurredAt := row.Get(domain.FieldOccurredAt)
		action := row.Get(domain.FieldAction)
		if occurredAt == "" && action == "" {
			counts.Skipped++
			report.warnf("audit_logs: row %s has neither timestamp nor action, skipping", rowIdentity(domain.EntityAuditLog, row))
			return nil
		}

		key := strings.Join([]string{
			occurredAt,
			row.Get(domain.FieldActor),
			action,
			row.Get(domain.FieldActionTarget),
		}, "|")

		// Audit records are append-only: an existing key means the row is
		// already there and nothing will be written, so it counts as
		// skipped, not updated.
		existing, err := r.Records.FindByUniqueKey(ctx, domain.EntityAuditLog, key)
		if err != nil {
			return err
		}
		if existing != nil {
			counts.Skipped++
			return nil
		}

		fields := map[string]any{
			"occurred_at": nullable(occurredAt),
			"actor":       nullable(row.Get(domain.FieldActor)),
			"action":      nullable(action),
			"target":      nullable(row.Get(domain.FieldActionTarget)),
			"details":     nullable(row.Get(domain.FieldActionDetails)),
		}
		return r.upsertOne(ctx, domain.EntityAuditLog, "", key, fields, nil, nil, report)
	})
	return nil
}

func rowIdentity(entity domain.Entity, row rowstore.Row) string {
	if id := row.Get(domain.FieldID); id != "" {
		return id
	}
	if name := row.Get(domain.FieldName); name != "" {
		return name
	}
	return string(entity) + "/unidentified"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}
