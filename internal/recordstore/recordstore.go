// Package recordstore abstracts the relational target store. Records are
// schema-typed and identified by a store-assigned id plus one unique key
// column per entity; the adapter never exposes SQL to its callers.
package recordstore

import (
	"context"

	"github.com/kittipats/sheetsync/internal/domain"
)

// Record is one row of the target store. ID is the store-assigned
// identifier, unrelated to any row-store id. Fields holds column values
// keyed by column name; absent and NULL columns are nil.
type Record struct {
	ID     string
	Fields map[string]any
}

// Get returns a field as a string, or "" when absent or NULL.
func (r *Record) Get(field string) string {
	if r == nil {
		return ""
	}
	if v, ok := r.Fields[field]; ok && v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Store is the record-store handle passed into every component. Lookups
// return (nil, nil) when no record matches.
type Store interface {
	FindByID(ctx context.Context, entity domain.Entity, id string) (*Record, error)
	FindByUniqueKey(ctx context.Context, entity domain.Entity, key string) (*Record, error)
	// Upsert creates the record when the unique key is absent and
	// converges the given fields onto the existing record otherwise.
	Upsert(ctx context.Context, entity domain.Entity, key string, fields map[string]any) (*Record, error)
	Delete(ctx context.Context, entity domain.Entity, id string) error
	Count(ctx context.Context, entity domain.Entity) (int, error)
}
