package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hray3182/tildy/internal/models"
)

// SQLiteStore is a RecordStore in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serialises writers and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS records (
			id TEXT NOT NULL,
			table_name TEXT NOT NULL,
			fields TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			last_modified INTEGER NOT NULL,
			PRIMARY KEY (table_name, id)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_records_table_created ON records(table_name, created_at)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Create(ctx context.Context, table, id string, fields map[string]any) (models.Record, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return models.Record{}, fmt.Errorf("failed to encode fields: %w", err)
	}
	id = newID(id)
	now := time.Now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records (id, table_name, fields, created_at, last_modified)
		VALUES (?, ?, ?, ?, ?)
	`, id, table, string(data), now.UnixNano(), now.UnixNano())
	if err != nil {
		return models.Record{}, fmt.Errorf("failed to insert %s record: %w", table, err)
	}
	return s.Get(ctx, table, id)
}

func (s *SQLiteStore) Get(ctx context.Context, table, id string) (models.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, table_name, fields, created_at, last_modified
		FROM records
		WHERE table_name = ? AND id = ?
	`, table, id)
	rec, err := scanSQLiteRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Record{}, ErrNotFound
	}
	return rec, err
}

func (s *SQLiteStore) Update(ctx context.Context, table, id string, fields map[string]any) (models.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Record{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT fields FROM records WHERE table_name = ? AND id = ?`, table, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Record{}, ErrNotFound
	}
	if err != nil {
		return models.Record{}, fmt.Errorf("failed to read %s record: %w", table, err)
	}

	var existing map[string]any
	if err := json.Unmarshal([]byte(raw), &existing); err != nil {
		return models.Record{}, fmt.Errorf("failed to decode %s record: %w", table, err)
	}
	data, err := json.Marshal(mergeFields(existing, fields))
	if err != nil {
		return models.Record{}, fmt.Errorf("failed to encode fields: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE records SET fields = ?, last_modified = ?
		WHERE table_name = ? AND id = ?
	`, string(data), time.Now().UnixNano(), table, id)
	if err != nil {
		return models.Record{}, fmt.Errorf("failed to update %s record: %w", table, err)
	}
	if err := tx.Commit(); err != nil {
		return models.Record{}, fmt.Errorf("failed to commit: %w", err)
	}
	return s.Get(ctx, table, id)
}

func (s *SQLiteStore) Delete(ctx context.Context, table, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE table_name = ? AND id = ?`, table, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s record: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, table string) ([]models.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, table_name, fields, created_at, last_modified
		FROM records
		WHERE table_name = ?
		ORDER BY created_at ASC, id ASC
	`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s records: %w", table, err)
	}
	defer rows.Close()

	var records []models.Record
	for rows.Next() {
		rec, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRecord(row scanner) (models.Record, error) {
	var rec models.Record
	var raw string
	var created, modified int64
	if err := row.Scan(&rec.ID, &rec.Table, &raw, &created, &modified); err != nil {
		return models.Record{}, err
	}
	if err := json.Unmarshal([]byte(raw), &rec.Fields); err != nil {
		return models.Record{}, fmt.Errorf("failed to decode %s record: %w", rec.Table, err)
	}
	rec.CreatedAt = time.Unix(0, created)
	rec.LastModified = time.Unix(0, modified)
	return rec, nil
}
