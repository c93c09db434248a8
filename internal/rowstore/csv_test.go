package rowstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kittipats/sheetsync/internal/domain"
)

func writeSheet(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write sheet: %v", err)
	}
}

func openCSV(t *testing.T, dir string) *CSVStore {
	t.Helper()
	store, err := NewCSVStore(dir)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	return store
}

func TestCSVListReadsHeaderKeyedRows(t *testing.T) {
	dir := t.TempDir()
	writeSheet(t, dir, "departments.csv", "id,name,organizationType\nd1,สำนักปลัด,local\nd2,กองคลัง,\n")

	store := openCSV(t, dir)
	rows, err := store.List(context.Background(), domain.EntityDepartment)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if got := rows[0].Get("name"); got != "สำนักปลัด" {
		t.Errorf("expected name %q, got %q", "สำนักปลัด", got)
	}
	if got := rows[1].Get("organizationType"); got != "" {
		t.Errorf("expected empty organizationType, got %q", got)
	}
}

func TestCSVMissingSheet(t *testing.T) {
	store := openCSV(t, t.TempDir())
	_, err := store.List(context.Background(), domain.EntityProject)
	if !errors.Is(err, ErrNoSheet) {
		t.Fatalf("expected ErrNoSheet, got %v", err)
	}
}

func TestCSVEmptySheetIsNotMissing(t *testing.T) {
	dir := t.TempDir()
	writeSheet(t, dir, "projects.csv", "id,name,agency\n")

	store := openCSV(t, dir)
	rows, err := store.List(context.Background(), domain.EntityProject)
	if err != nil {
		t.Fatalf("expected empty sheet to list cleanly, got %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected 0 rows, got %d", len(rows))
	}
}

func TestCSVHeaderlessSheetIsMalformed(t *testing.T) {
	dir := t.TempDir()
	writeSheet(t, dir, "projects.csv", "")

	store := openCSV(t, dir)
	_, err := store.List(context.Background(), domain.EntityProject)
	if err == nil {
		t.Fatal("expected an error for a headerless sheet file")
	}
	if errors.Is(err, ErrNoSheet) {
		t.Fatalf("a present but headerless file must not read as missing, got %v", err)
	}
}

func TestCSVSavePersists(t *testing.T) {
	dir := t.TempDir()
	writeSheet(t, dir, "projects.csv", "id,name,agency\np1,Road Repair,สำนักปลัด\n")
	ctx := context.Background()

	store := openCSV(t, dir)
	rows, err := store.List(ctx, domain.EntityProject)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	rows[0].Assign(map[string]string{"agency": "สำนักปลัด."})
	if err := rows[0].Save(ctx); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Reload through a fresh store to prove the write reached disk.
	reloaded, err := openCSV(t, dir).List(ctx, domain.EntityProject)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if got := reloaded[0].Get("agency"); got != "สำนักปลัด." {
		t.Errorf("expected persisted agency %q, got %q", "สำนักปลัด.", got)
	}
}

func TestCSVDeleteRemovesRow(t *testing.T) {
	dir := t.TempDir()
	writeSheet(t, dir, "departments.csv", "id,name\nd1,A\nd2,B\n")
	ctx := context.Background()

	store := openCSV(t, dir)
	rows, _ := store.List(ctx, domain.EntityDepartment)
	if err := rows[0].Delete(ctx); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	remaining, _ := store.List(ctx, domain.EntityDepartment)
	if len(remaining) != 1 || remaining[0].Get("name") != "B" {
		t.Fatalf("expected only row B to remain, got %d rows", len(remaining))
	}

	reloaded, _ := openCSV(t, dir).List(ctx, domain.EntityDepartment)
	if len(reloaded) != 1 {
		t.Fatalf("expected delete to persist, got %d rows", len(reloaded))
	}
}

func TestCSVAppendCreatesSheet(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store := openCSV(t, dir)
	_, err := store.Append(ctx, domain.EntityCategory, map[string]string{"id": "c1", "name": "Infrastructure"})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	rows, err := openCSV(t, dir).List(ctx, domain.EntityCategory)
	if err != nil {
		t.Fatalf("expected created sheet to list, got %v", err)
	}
	if len(rows) != 1 || rows[0].Get("name") != "Infrastructure" {
		t.Fatalf("unexpected appended row")
	}
}

func TestCSVContextCancellation(t *testing.T) {
	dir := t.TempDir()
	writeSheet(t, dir, "users.csv", "id,name\nu1,X\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := openCSV(t, dir)
	if _, err := store.List(ctx, domain.EntityUser); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
