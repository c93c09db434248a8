package merge

import (
	"context"
	"fmt"

	"github.com/kittipats/sheetsync/internal/batch"
	"github.com/kittipats/sheetsync/internal/domain"
	"github.com/kittipats/sheetsync/internal/rowstore"
)

// rewriteReferences repoints every dependent row referencing a victim at
// the survivor, following the DepartmentRefs table: name-style fields
// get the survivor's name, id-style fields the survivor's id. Each row
// is saved individually and immediately; a failed save is recorded and
// the loop continues, because unrewritten rows are recoverable by
// re-running whereas a deleted victim with live references is not.
// Returns the number of rows that failed to persist.
func rewriteReferences(ctx context.Context, rows rowstore.Store, survivor Member, victims []Member, dryRun bool, report *Report) (int, error) {
	victimNames := make(map[string]bool, len(victims))
	victimIDs := make(map[string]bool, len(victims))
	for _, v := range victims {
		if v.Name != "" {
			victimNames[v.Name] = true
		}
		if v.ID != "" {
			victimIDs[v.ID] = true
		}
	}

	failed := 0
	for _, ref := range domain.DepartmentRefs {
		dependents, err := rows.List(ctx, ref.Entity)
		if err != nil {
			return failed, fmt.Errorf("failed to list %s for rewrite: %w", ref.Entity, err)
		}

		var matched []rowstore.Row
		for _, row := range dependents {
			value := row.Get(ref.Field)
			switch ref.Style {
			case domain.MatchByName:
				if victimNames[value] {
					matched = append(matched, row)
				}
			case domain.MatchByID:
				if victimIDs[value] {
					matched = append(matched, row)
				}
			}
		}

		if dryRun {
			report.Updated[string(ref.Entity)] += len(matched)
			continue
		}

		replacement := survivor.Name
		if ref.Style == domain.MatchByID {
			replacement = survivor.ID
		}

		result := batch.Run(matched, func(row rowstore.Row) string {
			return rowIdentity(ref.Entity, row)
		}, func(row rowstore.Row) error {
			row.Assign(map[string]string{ref.Field: replacement})
			return row.Save(ctx)
		})

		report.Updated[string(ref.Entity)] += result.Succeeded
		failed += result.Failed
		for _, itemErr := range result.Errors {
			report.Failures = append(report.Failures, Failure{
				Entity: string(ref.Entity),
				Row:    itemErr.Item,
				Err:    itemErr.Error.Error(),
			})
		}
	}

	return failed, nil
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
