// Package rowstore abstracts the spreadsheet-like source store: entities
// live on per-entity sheets as header-keyed rows of strings. Every call
// that touches the backing store is a blocking external operation and
// takes a context.
package rowstore

import (
	"context"
	"errors"

	"github.com/kittipats/sheetsync/internal/domain"
)

// ErrNoSheet is returned by List when the entity has no sheet at all, as
// opposed to a sheet that exists but holds no rows. Batch runs treat a
// missing sheet as a fatal precondition failure.
var ErrNoSheet = errors.New("no sheet for entity")

// Store is the row-store handle passed into every component. There is no
// package-level connection; a merge run and a migration run each carry
// their own handle.
type Store interface {
	// List returns every row on the entity's sheet, in sheet order.
	List(ctx context.Context, entity domain.Entity) ([]Row, error)
	// Append adds a row to the entity's sheet, creating the sheet when
	// absent, and returns the live row.
	Append(ctx context.Context, entity domain.Entity, fields map[string]string) (Row, error)
}

// Row is one live sheet row. Assign stages field changes locally; Save
// persists the staged state. Reads after Assign observe the staged
// values.
type Row interface {
	Get(field string) string
	Assign(fields map[string]string)
	Save(ctx context.Context) error
	Delete(ctx context.Context) error
}
