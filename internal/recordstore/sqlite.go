package recordstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kittipats/sheetsync/internal/db"
	"github.com/kittipats/sheetsync/internal/domain"
)

// tableSpec describes one target table: its unique key column and the
// writable columns the adapter manages. Append-only tables never update
// an existing record on upsert.
type tableSpec struct {
	unique     string
	columns    []string
	appendOnly bool
}

var tables = map[domain.Entity]tableSpec{
	domain.EntityDepartment: {
		unique:  "name",
		columns: []string{"name", "organization_type"},
	},
	domain.EntityUser: {
		unique:  "username",
		columns: []string{"username", "name", "email", "line_id", "department_id"},
	},
	domain.EntityCategory: {
		unique:  "name",
		columns: []string{"name"},
	},
	domain.EntityStrategicPlan: {
		unique:  "name",
		columns: []string{"name"},
	},
	domain.EntityStrategicGoal: {
		unique:  "name",
		columns: []string{"name", "plan_id"},
	},
	domain.EntityStrategicIndicator: {
		unique:  "name",
		columns: []string{"name", "goal_id"},
	},
	domain.EntityProject: {
		unique: "name",
		columns: []string{
			"name", "agency", "department_id", "category_id", "plan_id",
			"goal_id", "budget", "fiscal_year", "description",
		},
	},
	domain.EntityProjectIndicator: {
		unique:  "dedup_key",
		columns: []string{"dedup_key", "name", "project_id", "target", "unit"},
	},
	domain.EntityReport: {
		unique:  "dedup_key",
		columns: []string{"dedup_key", "project_id", "reported_at", "detail", "progress"},
	},
	domain.EntityAuditLog: {
		unique:     "dedup_key",
		columns:    []string{"dedup_key", "occurred_at", "actor", "action", "target", "details"},
		appendOnly: true,
	},
}

// SQLite implements Store over the record-store database.
type SQLite struct {
	db *db.DB
}

// NewSQLite returns a Store backed by the given database handle.
func NewSQLite(database *db.DB) *SQLite {
	return &SQLite{db: database}
}

func spec(entity domain.Entity) (tableSpec, error) {
	ts, ok := tables[entity]
	if !ok {
		return tableSpec{}, fmt.Errorf("no record table for entity %s", entity)
	}
	return ts, nil
}

// FindByID implements Store.
func (s *SQLite) FindByID(ctx context.Context, entity domain.Entity, id string) (*Record, error) {
	ts, err := spec(entity)
	if err != nil {
		return nil, err
	}
	return s.findWhere(ctx, entity, ts, "id = ?", id)
}

// FindByUniqueKey implements Store.
func (s *SQLite) FindByUniqueKey(ctx context.Context, entity domain.Entity, key string) (*Record, error) {
	ts, err := spec(entity)
	if err != nil {
		return nil, err
	}
	return s.findWhere(ctx, entity, ts, ts.unique+" = ?", key)
}

func (s *SQLite) findWhere(ctx context.Context, entity domain.Entity, ts tableSpec, where string, arg any) (*Record, error) {
	query := fmt.Sprintf("SELECT id, %s FROM %s WHERE %s",
		strings.Join(ts.columns, ", "), entity, where)

	var id int64
	scanned := make([]sql.NullString, len(ts.columns))
	dest := make([]any, 0, len(ts.columns)+1)
	dest = append(dest, &id)
	for i := range scanned {
		dest = append(dest, &scanned[i])
	}

	err := s.db.QueryRowContext(ctx, query, arg).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s: %w", entity, err)
	}

	record := &Record{ID: strconv.FormatInt(id, 10), Fields: make(map[string]any, len(ts.columns))}
	for i, col := range ts.columns {
		if scanned[i].Valid {
			record.Fields[col] = scanned[i].String
		} else {
			record.Fields[col] = nil
		}
	}
	return record, nil
}

// Upsert implements Store.
func (s *SQLite) Upsert(ctx context.Context, entity domain.Entity, key string, fields map[string]any) (*Record, error) {
	ts, err := spec(entity)
	if err != nil {
		return nil, err
	}

	existing, err := s.FindByUniqueKey(ctx, entity, key)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		if ts.appendOnly {
			return existing, nil
		}
		if err := s.update(ctx, entity, ts, existing.ID, fields); err != nil {
			return nil, err
		}
		return s.FindByID(ctx, entity, existing.ID)
	}

	if err := s.insert(ctx, entity, ts, key, fields); err != nil {
		return nil, err
	}
	return s.FindByUniqueKey(ctx, entity, key)
}

func (s *SQLite) insert(ctx context.Context, entity domain.Entity, ts tableSpec, key string, fields map[string]any) error {
	columns := make([]string, 0, len(ts.columns))
	args := make([]any, 0, len(ts.columns))
	for _, col := range ts.columns {
		if col == ts.unique {
			columns = append(columns, col)
			args = append(args, key)
			continue
		}
		if value, ok := fields[col]; ok {
			columns = append(columns, col)
			args = append(args, value)
		}
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		entity, strings.Join(columns, ", "), placeholders)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert %s %q: %w", entity, key, err)
	}
	return nil
}

func (s *SQLite) update(ctx context.Context, entity domain.Entity, ts tableSpec, id string, fields map[string]any) error {
	assignments := make([]string, 0, len(ts.columns)+1)
	args := make([]any, 0, len(ts.columns)+1)
	for _, col := range ts.columns {
		if col == ts.unique {
			continue
		}
		if value, ok := fields[col]; ok {
			assignments = append(assignments, col+" = ?")
			args = append(args, value)
		}
	}
	if len(assignments) == 0 {
		return nil
	}
	assignments = append(assignments, "updated_at = strftime('%Y-%m-%dT%H:%M:%SZ','now')")
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", entity, strings.Join(assignments, ", "))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update %s %s: %w", entity, id, err)
	}
	return nil
}

// Delete implements Store.
func (s *SQLite) Delete(ctx context.Context, entity domain.Entity, id string) error {
	if _, err := spec(entity); err != nil {
		return err
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", entity)
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", entity, id, err)
	}
	return nil
}

// Count implements Store.
func (s *SQLite) Count(ctx context.Context, entity domain.Entity) (int, error) {
	if _, err := spec(entity); err != nil {
		return 0, err
	}
	var count int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", entity)
	if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", entity, err)
	}
	return count, nil
}
