package rowstore

import (
	"context"
	"fmt"

	"github.com/kittipats/sheetsync/internal/domain"
)

// MemStore is an in-memory Store for tests. Sheets must be created
// explicitly so tests can exercise the missing-sheet precondition.
type MemStore struct {
	sheets map[domain.Entity][]*MemRow
}

// MemRow is one in-memory row. SaveErr and DeleteErr, when set, are
// returned by the next Save/Delete call so tests can exercise per-row
// persistence failures.
type MemRow struct {
	store     *MemStore
	entity    domain.Entity
	fields    map[string]string
	deleted   bool
	SaveErr   error
	DeleteErr error
}

// NewMemStore returns an empty store with no sheets.
func NewMemStore() *MemStore {
	return &MemStore{sheets: make(map[domain.Entity][]*MemRow)}
}

// CreateSheet creates an empty sheet for the entity.
func (s *MemStore) CreateSheet(entity domain.Entity) {
	if _, ok := s.sheets[entity]; !ok {
		s.sheets[entity] = nil
	}
}

// Seed creates the entity's sheet if needed and appends a row, returning
// it for further test setup.
func (s *MemStore) Seed(entity domain.Entity, fields map[string]string) *MemRow {
	copied := make(map[string]string, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	row := &MemRow{store: s, entity: entity, fields: copied}
	s.sheets[entity] = append(s.sheets[entity], row)
	return row
}

// List implements Store.
func (s *MemStore) List(ctx context.Context, entity domain.Entity) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stored, ok := s.sheets[entity]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSheet, entity)
	}
	rows := make([]Row, 0, len(stored))
	for _, row := range stored {
		if !row.deleted {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// Append implements Store.
func (s *MemStore) Append(ctx context.Context, entity domain.Entity, fields map[string]string) (Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Seed(entity, fields), nil
}

// Rows returns the live rows of a sheet for test assertions.
func (s *MemStore) Rows(entity domain.Entity) []*MemRow {
	var live []*MemRow
	for _, row := range s.sheets[entity] {
		if !row.deleted {
			live = append(live, row)
		}
	}
	return live
}

// Get implements Row.
func (r *MemRow) Get(field string) string {
	return r.fields[field]
}

// Assign implements Row.
func (r *MemRow) Assign(fields map[string]string) {
	for k, v := range fields {
		r.fields[k] = v
	}
}

// Save implements Row.
func (r *MemRow) Save(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.SaveErr != nil {
		err := r.SaveErr
		r.SaveErr = nil
		return err
	}
	return nil
}

// Delete implements Row.
func (r *MemRow) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.DeleteErr != nil {
		err := r.DeleteErr
		r.DeleteErr = nil
		return err
	}
	r.deleted = true
	return nil
}

// Deleted reports whether the row has been deleted.
func (r *MemRow) Deleted() bool {
	return r.deleted
}
