package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMeasureUsage(t *testing.T) {
	root := t.TempDir()
	dbFile := filepath.Join(root, "vector_db", "collections.db")
	dataDir := filepath.Join(root, "data")
	for path, content := range map[string]string{
		dbFile:                                  "0123456789",
		dbFile + "-wal":                         "wal",
		filepath.Join(dataDir, "paper.pdf"):     "%PDF-",
		filepath.Join(dataDir, "notes.txt"):     "ab",
		filepath.Join(dataDir, "old", "x.pdf"):  "ignored",
		filepath.Join(root, "vector_db", "tmp"): "ignored",
	} {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := MeasureUsage(dbFile, dataDir)
	if err != nil {
		t.Fatal(err)
	}
	want := Usage{DatabaseBytes: 13, DocumentsBytes: 7, DocumentFiles: 2}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if got.Total() != 20 {
		t.Errorf("Total() = %d, want 20", got.Total())
	}
}

func TestMeasureUsage_missingPaths(t *testing.T) {
	root := t.TempDir()
	got, err := MeasureUsage(filepath.Join(root, "none.db"), filepath.Join(root, "nodata"))
	if err != nil {
		t.Fatal(err)
	}
	if got != (Usage{}) {
		t.Errorf("got %+v, want zero usage", got)
	}

	got, err = MeasureUsage("", "")
	if err != nil || got != (Usage{}) {
		t.Errorf("empty paths: got %+v, %v", got, err)
	}
}

func TestMeasureUsage_liveDatabase(t *testing.T) {
	dbFile := filepath.Join(t.TempDir(), "collections.db")
	store, err := NewSQLiteStorage(dbFile)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	got, err := MeasureUsage(dbFile, "")
	if err != nil {
		t.Fatal(err)
	}
	if got.DatabaseBytes == 0 {
		t.Error("expected a non-empty database after schema creation")
	}
}
