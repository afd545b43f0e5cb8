package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/hray3182/tildy/internal/models"
)

const MealRemindersTable = "MealReminders"

// FiringRepository keeps the meal reminder firing log in the record store.
type FiringRepository struct {
	store RecordStore
}

func NewFiringRepository(store RecordStore) *FiringRepository {
	return &FiringRepository{store: store}
}

type firingRecord struct {
	Target    string `json:"target"`
	Hour      int    `json:"hour"`
	LocalDate string `json:"local_date"`
}

func firingID(target string, hour int) string {
	return fmt.Sprintf("%s|%02d", target, hour)
}

func (r *FiringRepository) LoadFired(ctx context.Context) (models.FiredLog, error) {
	records, err := r.store.List(ctx, MealRemindersTable)
	if err != nil {
		return nil, err
	}
	fired := make(models.FiredLog)
	for _, rec := range records {
		var f firingRecord
		if err := decodeFields(rec.Fields, &f); err != nil {
			return nil, err
		}
		fired.Mark(f.Target, f.Hour, f.LocalDate)
	}
	return fired, nil
}

func (r *FiringRepository) RecordFired(ctx context.Context, target string, hour int, localDate string) error {
	fields, err := encodeFields(firingRecord{Target: target, Hour: hour, LocalDate: localDate})
	if err != nil {
		return err
	}
	id := firingID(target, hour)
	_, err = r.store.Update(ctx, MealRemindersTable, id, fields)
	if errors.Is(err, ErrNotFound) {
		_, err = r.store.Create(ctx, MealRemindersTable, id, fields)
	}
	return err
}
