package repository

import (
	"context"
	"errors"

	"github.com/hray3182/tildy/internal/models"
)

const ApprovalsTable = "PendingApprovals"

// ApprovalRepository persists pending approvals so expiry survives restarts.
type ApprovalRepository struct {
	store RecordStore
}

func NewApprovalRepository(store RecordStore) *ApprovalRepository {
	return &ApprovalRepository{store: store}
}

func (r *ApprovalRepository) Save(ctx context.Context, p models.PendingApproval) error {
	fields, err := encodeFields(p)
	if err != nil {
		return err
	}
	if _, err := r.store.Update(ctx, ApprovalsTable, p.ID, fields); err == nil {
		return nil
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	_, err = r.store.Create(ctx, ApprovalsTable, p.ID, fields)
	return err
}

func (r *ApprovalRepository) Delete(ctx context.Context, id string) error {
	err := r.store.Delete(ctx, ApprovalsTable, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// ListPending returns stored entries that are still awaiting a decision.
func (r *ApprovalRepository) ListPending(ctx context.Context) ([]models.PendingApproval, error) {
	records, err := r.store.List(ctx, ApprovalsTable)
	if err != nil {
		return nil, err
	}
	var pending []models.PendingApproval
	for _, rec := range records {
		var p models.PendingApproval
		if err := decodeFields(rec.Fields, &p); err != nil {
			return nil, err
		}
		p.ID = rec.ID
		if p.Status == models.StatusPending {
			pending = append(pending, p)
		}
	}
	return pending, nil
}
