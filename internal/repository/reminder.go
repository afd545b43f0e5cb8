package repository

import (
	"context"
	"sort"

	"github.com/hray3182/tildy/internal/models"
)

const RemindersTable = "Reminders"

type ReminderRepository struct {
	store RecordStore
}

func NewReminderRepository(store RecordStore) *ReminderRepository {
	return &ReminderRepository{store: store}
}

func (r *ReminderRepository) Create(ctx context.Context, reminder *models.Reminder) error {
	fields, err := encodeFields(reminder)
	if err != nil {
		return err
	}
	delete(fields, "id")
	rec, err := r.store.Create(ctx, RemindersTable, "", fields)
	if err != nil {
		return err
	}
	reminder.ID = rec.ID
	reminder.CreatedAt = rec.CreatedAt
	return nil
}

// List returns every stored reminder ordered by due date.
func (r *ReminderRepository) List(ctx context.Context) ([]*models.Reminder, error) {
	records, err := r.store.List(ctx, RemindersTable)
	if err != nil {
		return nil, err
	}
	reminders := make([]*models.Reminder, 0, len(records))
	for _, rec := range records {
		reminder, err := reminderFromRecord(rec)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, reminder)
	}
	sort.SliceStable(reminders, func(i, j int) bool {
		return reminders[i].Date.Before(reminders[j].Date)
	})
	return reminders, nil
}

// FindDuplicate returns an existing reminder for the same time and text.
func (r *ReminderRepository) FindDuplicate(ctx context.Context, reminder *models.Reminder) (*models.Reminder, error) {
	reminders, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, existing := range reminders {
		if existing.SameAs(reminder) {
			return existing, nil
		}
	}
	return nil, nil
}

func (r *ReminderRepository) SetApproved(ctx context.Context, id string) error {
	_, err := r.store.Update(ctx, RemindersTable, id, map[string]any{"approved": true})
	return err
}

func (r *ReminderRepository) SetAdvanceSent(ctx context.Context, id string) error {
	_, err := r.store.Update(ctx, RemindersTable, id, map[string]any{"advance_sent": true})
	return err
}

func (r *ReminderRepository) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, RemindersTable, id)
}

func reminderFromRecord(rec models.Record) (*models.Reminder, error) {
	reminder := &models.Reminder{}
	if err := decodeFields(rec.Fields, reminder); err != nil {
		return nil, err
	}
	reminder.ID = rec.ID
	reminder.CreatedAt = rec.CreatedAt
	return reminder, nil
}
