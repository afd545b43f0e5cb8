package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hray3182/tildy/internal/models"
)

// MemoryStore keeps records in process memory. State is lost on restart.
type MemoryStore struct {
	mu     sync.Mutex
	tables map[string]map[string]models.Record
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tables: make(map[string]map[string]models.Record),
		now:    time.Now,
	}
}

func (s *MemoryStore) Create(ctx context.Context, table, id string, fields map[string]any) (models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields, err := encodeFields(fields)
	if err != nil {
		return models.Record{}, err
	}
	id = newID(id)
	rows := s.tables[table]
	if rows == nil {
		rows = make(map[string]models.Record)
		s.tables[table] = rows
	}
	if _, ok := rows[id]; ok {
		return models.Record{}, fmt.Errorf("record %s/%s already exists", table, id)
	}
	now := s.now()
	rec := models.Record{ID: id, Table: table, Fields: mergeFields(nil, fields), CreatedAt: now, LastModified: now}
	rows[id] = rec
	return copyRecord(rec), nil
}

func (s *MemoryStore) Get(ctx context.Context, table, id string) (models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.tables[table][id]
	if !ok {
		return models.Record{}, ErrNotFound
	}
	return copyRecord(rec), nil
}

func (s *MemoryStore) Update(ctx context.Context, table, id string, fields map[string]any) (models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.tables[table][id]
	if !ok {
		return models.Record{}, ErrNotFound
	}
	fields, err := encodeFields(fields)
	if err != nil {
		return models.Record{}, err
	}
	rec.Fields = mergeFields(rec.Fields, fields)
	rec.LastModified = s.now()
	s.tables[table][id] = rec
	return copyRecord(rec), nil
}

func (s *MemoryStore) Delete(ctx context.Context, table, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[table][id]; !ok {
		return ErrNotFound
	}
	delete(s.tables[table], id)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, table string) ([]models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]models.Record, 0, len(s.tables[table]))
	for _, rec := range s.tables[table] {
		records = append(records, copyRecord(rec))
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})
	return records, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func copyRecord(rec models.Record) models.Record {
	rec.Fields = mergeFields(nil, rec.Fields)
	return rec
}
