package rowstore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kittipats/sheetsync/internal/domain"
)

// CSVStore is a Store backed by a directory of <entity>.csv files, each
// with a header row. It stands in for the hosted spreadsheet in
// development and tests; the sheet is loaded once per run and every Save
// or Delete writes the file back, mirroring the per-row writes the
// hosted API performs.
type CSVStore struct {
	dir    string
	sheets map[domain.Entity]*csvSheet
}

type csvSheet struct {
	store  *CSVStore
	entity domain.Entity
	header []string
	rows   []*CSVRow
}

// CSVRow is one row of a CSVStore sheet.
type CSVRow struct {
	sheet   *csvSheet
	fields  map[string]string
	deleted bool
}

// NewCSVStore opens a row store rooted at dir. The directory must exist;
// sheets are loaded lazily on first List.
func NewCSVStore(dir string) (*CSVStore, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open row store directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("row store path %s is not a directory", dir)
	}
	return &CSVStore{dir: dir, sheets: make(map[domain.Entity]*csvSheet)}, nil
}

func (s *CSVStore) path(entity domain.Entity) string {
	return filepath.Join(s.dir, string(entity)+".csv")
}

func (s *CSVStore) load(entity domain.Entity) (*csvSheet, error) {
	if sheet, ok := s.sheets[entity]; ok {
		return sheet, nil
	}

	f, err := os.Open(s.path(entity))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNoSheet, entity)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open sheet %s: %w", entity, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", entity, err)
	}
	// The file exists but carries no header: a malformed sheet, not a
	// missing one. Callers treat ErrNoSheet as "nothing to do here", which
	// would misdirect an operator at a file that is present but broken.
	if len(records) == 0 {
		return nil, fmt.Errorf("sheet %s is malformed: no header row", entity)
	}

	sheet := &csvSheet{store: s, entity: entity, header: records[0]}
	for _, record := range records[1:] {
		fields := make(map[string]string, len(sheet.header))
		for i, name := range sheet.header {
			if i < len(record) {
				fields[name] = record[i]
			}
		}
		sheet.rows = append(sheet.rows, &CSVRow{sheet: sheet, fields: fields})
	}

	s.sheets[entity] = sheet
	return sheet, nil
}

// List implements Store.
func (s *CSVStore) List(ctx context.Context, entity domain.Entity) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sheet, err := s.load(entity)
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(sheet.rows))
	for _, row := range sheet.rows {
		if !row.deleted {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// Append implements Store. Appending to a missing sheet creates it with
// a header derived from the given fields.
func (s *CSVStore) Append(ctx context.Context, entity domain.Entity, fields map[string]string) (Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sheet, err := s.load(entity)
	if errors.Is(err, ErrNoSheet) {
		sheet = &csvSheet{store: s, entity: entity}
		for name := range fields {
			sheet.header = append(sheet.header, name)
		}
		sortHeader(sheet.header)
		s.sheets[entity] = sheet
	} else if err != nil {
		return nil, err
	}

	row := &CSVRow{sheet: sheet, fields: make(map[string]string, len(fields))}
	row.Assign(fields)
	sheet.rows = append(sheet.rows, row)
	if err := sheet.flush(); err != nil {
		return nil, err
	}
	return row, nil
}

// Get implements Row.
func (r *CSVRow) Get(field string) string {
	return r.fields[field]
}

// Assign implements Row. Fields absent from the sheet header extend it.
func (r *CSVRow) Assign(fields map[string]string) {
	for name, value := range fields {
		if !r.sheet.hasColumn(name) {
			r.sheet.header = append(r.sheet.header, name)
		}
		r.fields[name] = value
	}
}

// Save implements Row.
func (r *CSVRow) Save(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.deleted {
		return fmt.Errorf("cannot save deleted row on sheet %s", r.sheet.entity)
	}
	return r.sheet.flush()
}

// Delete implements Row.
func (r *CSVRow) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.deleted = true
	return r.sheet.flush()
}

func (s *csvSheet) hasColumn(name string) bool {
	for _, col := range s.header {
		if col == name {
			return true
		}
	}
	return false
}

func (s *csvSheet) flush() error {
	path := s.store.path(s.entity)
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to write sheet %s: %w", s.entity, err)
	}

	writer := csv.NewWriter(f)
	records := [][]string{s.header}
	for _, row := range s.rows {
		if row.deleted {
			continue
		}
		record := make([]string, len(s.header))
		for i, name := range s.header {
			record[i] = row.fields[name]
		}
		records = append(records, record)
	}
	if err := writer.WriteAll(records); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write sheet %s: %w", s.entity, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write sheet %s: %w", s.entity, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace sheet %s: %w", s.entity, err)
	}
	return nil
}

func sortHeader(header []string) {
	// Stable order for newly created sheets: id and name first, the rest
	// alphabetical.
	rank := func(name string) int {
		switch name {
		case domain.FieldID:
			return 0
		case domain.FieldName:
			return 1
		default:
			return 2
		}
	}
	for i := 1; i < len(header); i++ {
		for j := i; j > 0; j-- {
			a, b := header[j-1], header[j]
			if rank(a) > rank(b) || (rank(a) == rank(b) && a > b) {
				header[j-1], header[j] = b, a
			} else {
				break
			}
		}
	}
}
