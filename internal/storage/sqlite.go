package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/researchpilot/internal/models"
)

// SQLiteStorage implements Storage on a single SQLite file.
type SQLiteStorage struct {
	db *sqlx.DB
}

var _ Storage = (*SQLiteStorage)(nil)

type recordRow struct {
	ID        string    `db:"id"`
	Source    string    `db:"source"`
	Text      string    `db:"text"`
	Metadata  string    `db:"metadata"`
	Embedding []byte    `db:"embedding"`
	CreatedAt time.Time `db:"created_at"`
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sqlx.Connect("sqlite3", dbPath+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sqlx.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY,
		dimension INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS records (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		text TEXT NOT NULL,
		metadata TEXT,
		embedding BLOB NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (collection, id),
		FOREIGN KEY (collection) REFERENCES collections(name) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_records_source ON records(collection, source);
	`
	_, err := db.Exec(schema)
	return err
}

// EnsureCollection creates the collection with dimension if it does not exist and
// returns the dimension it was created with.
func (s *SQLiteStorage) EnsureCollection(ctx context.Context, name string, dimension int) (int, error) {
	var stored int
	err := s.db.GetContext(ctx, &stored, `SELECT dimension FROM collections WHERE name = ?`, name)
	if err == nil {
		return stored, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO collections (name, dimension, created_at) VALUES (?, ?, ?)`,
		name, dimension, time.Now(),
	); err != nil {
		return 0, fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	return dimension, nil
}

// DeleteCollection removes the collection and all of its records.
func (s *SQLiteStorage) DeleteCollection(ctx context.Context, name string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE collection = ?`, name); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return tx.Commit()
}

// UpsertRecords writes records in one transaction, replacing rows with the same id.
func (s *SQLiteStorage) UpsertRecords(ctx context.Context, collection string, records []*models.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := upsertTx(ctx, tx, collection, records); err != nil {
		return err
	}
	return tx.Commit()
}

// ReplaceSources deletes every record ingested from sources and writes records in
// the same transaction. Nothing changes unless both steps succeed. It returns the
// ids that were deleted.
func (s *SQLiteStorage) ReplaceSources(ctx context.Context, collection string, sources []string, records []*models.IndexRecord) ([]string, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var removed []string
	for _, source := range sources {
		ids, err := deleteSourceTx(ctx, tx, collection, source)
		if err != nil {
			return nil, err
		}
		removed = append(removed, ids...)
	}
	if err := upsertTx(ctx, tx, collection, records); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return removed, nil
}

func upsertTx(ctx context.Context, tx *sqlx.Tx, collection string, records []*models.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}
	stmt, err := tx.PreparexContext(ctx,
		`INSERT INTO records (collection, id, source, text, metadata, embedding, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(collection, id) DO UPDATE SET
		   source = excluded.source,
		   text = excluded.text,
		   metadata = excluded.metadata,
		   embedding = excluded.embedding,
		   created_at = excluded.created_at`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, rec := range records {
		metadataJSON, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata for %s: %w", rec.ID, err)
		}
		createdAt := rec.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		source, _ := rec.Metadata[models.MetaFilePath].(string)
		if _, err := stmt.ExecContext(ctx,
			collection, rec.ID, source, rec.Text, string(metadataJSON),
			float32SliceToBytes(rec.Embedding), createdAt,
		); err != nil {
			return fmt.Errorf("failed to upsert record %s: %w", rec.ID, err)
		}
	}
	return nil
}

// LoadRecords returns every record of the collection in insertion order.
func (s *SQLiteStorage) LoadRecords(ctx context.Context, collection string) ([]*models.IndexRecord, error) {
	var rows []recordRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT id, source, text, metadata, embedding, created_at
		 FROM records WHERE collection = ? ORDER BY rowid`, collection,
	); err != nil {
		return nil, err
	}

	records := make([]*models.IndexRecord, 0, len(rows))
	for _, row := range rows {
		vec, err := bytesToFloat32Slice(row.Embedding)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", row.ID, err)
		}
		rec := &models.IndexRecord{
			ID:        row.ID,
			Embedding: vec,
			Text:      row.Text,
			CreatedAt: row.CreatedAt,
		}
		if row.Metadata != "" {
			if err := json.Unmarshal([]byte(row.Metadata), &rec.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata for %s: %w", row.ID, err)
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// DeleteRecordsBySource removes the records ingested from source and returns their ids.
func (s *SQLiteStorage) DeleteRecordsBySource(ctx context.Context, collection, source string) ([]string, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	ids, err := deleteSourceTx(ctx, tx, collection, source)
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	return ids, tx.Commit()
}

func deleteSourceTx(ctx context.Context, tx *sqlx.Tx, collection, source string) ([]string, error) {
	var ids []string
	if err := tx.SelectContext(ctx, &ids,
		`SELECT id FROM records WHERE collection = ? AND source = ?`, collection, source,
	); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM records WHERE collection = ? AND source = ?`, collection, source,
	); err != nil {
		return nil, err
	}
	return ids, nil
}

// CountRecords returns the number of records in the collection.
func (s *SQLiteStorage) CountRecords(ctx context.Context, collection string) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM records WHERE collection = ?`, collection)
	return n, err
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
