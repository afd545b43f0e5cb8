// Package repository persists bot state in an external record store.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hray3182/tildy/internal/models"
)

var ErrNotFound = errors.New("record not found")

// RecordStore is a table-of-records store. Fields are JSON-compatible values.
type RecordStore interface {
	// Create inserts a record. An empty id is replaced by a generated one.
	Create(ctx context.Context, table, id string, fields map[string]any) (models.Record, error)
	Get(ctx context.Context, table, id string) (models.Record, error)
	// Update merges fields into an existing record.
	Update(ctx context.Context, table, id string, fields map[string]any) (models.Record, error)
	Delete(ctx context.Context, table, id string) error
	// List returns every record of table, oldest first.
	List(ctx context.Context, table string) ([]models.Record, error)
	Close() error
}

// Ping checks that the store's backing database is reachable. Stores without
// a connection are always reachable.
func Ping(ctx context.Context, store RecordStore) error {
	if p, ok := store.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

func newID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

// encodeFields turns a JSON-tagged struct into record fields.
func encodeFields(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode fields: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to encode fields: %w", err)
	}
	return fields, nil
}

// decodeFields fills a JSON-tagged struct from record fields.
func decodeFields(fields map[string]any, v any) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to decode fields: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode fields: %w", err)
	}
	return nil
}

func mergeFields(dst, src map[string]any) map[string]any {
	out := make(map[string]any, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		out[k] = v
	}
	return out
}
