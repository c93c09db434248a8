// Package merge deduplicates department rows that differ only by
// whitespace, case, or abbreviation periods. One run loads a single
// snapshot, counts usage, groups duplicates, and then per group picks a
// survivor, rewrites every dependent reference, and deletes the losing
// rows. The run is idempotent: a second run over merged data finds no
// qualifying groups and writes nothing.
package merge

import (
	"context"
	"errors"
	"fmt"

	"github.com/kittipats/sheetsync/internal/audit"
	"github.com/kittipats/sheetsync/internal/domain"
	"github.com/kittipats/sheetsync/internal/recordstore"
	"github.com/kittipats/sheetsync/internal/rowstore"
)

// Runner drives one merge run. Records is optional; when set, a deleted
// victim's department record is removed from the record store as well,
// best-effort.
type Runner struct {
	Rows    rowstore.Store
	Records recordstore.Store
	Audit   *audit.Logger
	DryRun  bool
}

// Report is the run summary. Every count is rows actually written, not
// attempted.
type Report struct {
	DryRun         bool           `json:"dry_run"`
	GroupsFound    int            `json:"groups_found"`
	GroupsMerged   int            `json:"groups_merged"`
	VictimsDeleted int            `json:"victims_deleted"`
	Updated        map[string]int `json:"updated"`
	Failed         int            `json:"failed"`
	Failures       []Failure      `json:"failures,omitempty"`
	Warnings       []string       `json:"warnings,omitempty"`
	Groups         []GroupOutcome `json:"groups,omitempty"`
}

// Failure identifies one row that could not be persisted.
type Failure struct {
	Entity string `json:"entity"`
	Row    string `json:"row"`
	Err    string `json:"error"`
}

// GroupOutcome records the survivor decision for one duplicate group.
type GroupOutcome struct {
	Key      string   `json:"key"`
	Survivor string   `json:"survivor"`
	Victims  []string `json:"victims"`
	Merged   bool     `json:"merged"`
}

// Run executes the merge. It returns an error only for precondition
// failures (a required sheet missing entirely, a dead store); per-row
// failures are accumulated in the report instead.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	departments, err := r.load(ctx, domain.EntityDepartment)
	if err != nil {
		return nil, err
	}
	projects, err := r.load(ctx, domain.EntityProject)
	if err != nil {
		return nil, err
	}
	users, err := r.load(ctx, domain.EntityUser)
	if err != nil {
		return nil, err
	}

	// Counts and groups come from this one snapshot. Re-fetching per
	// group would see rows rewritten by earlier groups and skew later
	// selections within the same run.
	usage := CountUsage(departments, projects, users)
	groups := GroupDuplicates(departments)

	report := &Report{
		DryRun:      r.DryRun,
		GroupsFound: len(groups),
		Updated:     make(map[string]int),
	}

	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		survivor, victims := SelectSurvivor(group, usage)

		outcome := GroupOutcome{Key: group.Key, Survivor: survivor.Name}
		for _, v := range victims {
			outcome.Victims = append(outcome.Victims, v.Name)
		}

		failed, err := rewriteReferences(ctx, r.Rows, survivor, victims, r.DryRun, report)
		if err != nil {
			return report, err
		}
		report.Failed += failed
		if failed > 0 {
			// Victims stay until every reference is rewritten; the next
			// run picks the group up again.
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("group %s: %d rewrite failures, victims kept", group.Key, failed))
			report.Groups = append(report.Groups, outcome)
			continue
		}

		deleted, allDeleted := r.deleteVictims(ctx, victims, report)
		report.VictimsDeleted += deleted

		outcome.Merged = allDeleted
		report.Groups = append(report.Groups, outcome)
		if !outcome.Merged {
			continue
		}
		report.GroupsMerged++

		if !r.DryRun {
			r.Audit.LogGroupMerged(ctx, survivor.Name, outcome.Victims)
		}
	}

	return report, nil
}

func (r *Runner) load(ctx context.Context, entity domain.Entity) ([]rowstore.Row, error) {
	rows, err := r.Rows.List(ctx, entity)
	if errors.Is(err, rowstore.ErrNoSheet) {
		return nil, fmt.Errorf("merge requires the %s sheet: %w", entity, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", entity, err)
	}
	return rows, nil
}

// deleteVictims removes victim rows, strictly after the group's rewrites
// have all succeeded. A failed delete leaves the victim in place for the
// next run. After a successful row delete the victim's record-store
// department is removed too, best-effort.
func (r *Runner) deleteVictims(ctx context.Context, victims []Member, report *Report) (int, bool) {
	if r.DryRun {
		return 0, true
	}

	deleted := 0
	allDeleted := true
	for _, victim := range victims {
		if err := victim.Row.Delete(ctx); err != nil {
			allDeleted = false
			report.Failed++
			report.Failures = append(report.Failures, Failure{
				Entity: string(domain.EntityDepartment),
				Row:    rowIdentity(domain.EntityDepartment, victim.Row),
				Err:    err.Error(),
			})
			continue
		}
		deleted++
		r.deleteVictimRecord(ctx, victim, report)
	}
	return deleted, allDeleted
}

func (r *Runner) deleteVictimRecord(ctx context.Context, victim Member, report *Report) {
	if r.Records == nil {
		return
	}
	record, err := r.Records.FindByUniqueKey(ctx, domain.EntityDepartment, victim.Name)
	if err != nil || record == nil {
		if err != nil {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("record lookup for victim %q failed: %v", victim.Name, err))
		}
		return
	}
	if err := r.Records.Delete(ctx, domain.EntityDepartment, record.ID); err != nil {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("record delete for victim %q failed: %v", victim.Name, err))
	}
}
