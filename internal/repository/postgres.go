package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/hray3182/tildy/internal/database"
	"github.com/hray3182/tildy/internal/models"
)

// PostgresStore is a RecordStore backed by the records table.
type PostgresStore struct {
	db *database.DB
}

func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, table, id string, fields map[string]any) (models.Record, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return models.Record{}, fmt.Errorf("failed to encode fields: %w", err)
	}
	row := s.db.Pool.QueryRow(ctx,
		`INSERT INTO records (id, table_name, fields)
		 VALUES ($1, $2, $3::jsonb)
		 RETURNING id, table_name, fields, created_at, last_modified`,
		newID(id), table, string(data),
	)
	return scanPgRecord(row)
}

func (s *PostgresStore) Get(ctx context.Context, table, id string) (models.Record, error) {
	row := s.db.Pool.QueryRow(ctx,
		`SELECT id, table_name, fields, created_at, last_modified
		 FROM records WHERE table_name = $1 AND id = $2`,
		table, id,
	)
	return scanPgRecord(row)
}

func (s *PostgresStore) Update(ctx context.Context, table, id string, fields map[string]any) (models.Record, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return models.Record{}, fmt.Errorf("failed to encode fields: %w", err)
	}
	row := s.db.Pool.QueryRow(ctx,
		`UPDATE records SET fields = fields || $3::jsonb, last_modified = NOW()
		 WHERE table_name = $1 AND id = $2
		 RETURNING id, table_name, fields, created_at, last_modified`,
		table, id, string(data),
	)
	return scanPgRecord(row)
}

func (s *PostgresStore) Delete(ctx context.Context, table, id string) error {
	tag, err := s.db.Pool.Exec(ctx,
		`DELETE FROM records WHERE table_name = $1 AND id = $2`,
		table, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, table string) ([]models.Record, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT id, table_name, fields, created_at, last_modified
		 FROM records WHERE table_name = $1 ORDER BY created_at ASC, id ASC`,
		table,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.Record
	for rows.Next() {
		rec, err := scanPgRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanPgRecord(row pgx.Row) (models.Record, error) {
	var rec models.Record
	var raw []byte
	err := row.Scan(&rec.ID, &rec.Table, &raw, &rec.CreatedAt, &rec.LastModified)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Record{}, ErrNotFound
	}
	if err != nil {
		return models.Record{}, err
	}
	if err := json.Unmarshal(raw, &rec.Fields); err != nil {
		return models.Record{}, fmt.Errorf("failed to decode %s record: %w", rec.Table, err)
	}
	return rec, nil
}
