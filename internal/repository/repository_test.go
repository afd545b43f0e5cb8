package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hray3182/tildy/internal/models"
)

func stores(t *testing.T) map[string]RecordStore {
	t.Helper()
	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "records.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })
	return map[string]RecordStore{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestRecordStoreContract(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			rec, err := store.Create(ctx, "Things", "", map[string]any{"name": "toast", "count": 1})
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			if rec.ID == "" {
				t.Fatal("Create should assign an id")
			}
			if rec.LastModified.IsZero() {
				t.Error("LastModified should be set")
			}

			got, err := store.Get(ctx, "Things", rec.ID)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.Fields["name"] != "toast" {
				t.Errorf("fields = %v", got.Fields)
			}

			time.Sleep(2 * time.Millisecond)
			updated, err := store.Update(ctx, "Things", rec.ID, map[string]any{"count": 2})
			if err != nil {
				t.Fatalf("Update: %v", err)
			}
			if updated.Fields["name"] != "toast" || updated.Fields["count"] != float64(2) {
				t.Errorf("merged fields = %v", updated.Fields)
			}
			if !updated.LastModified.After(rec.LastModified) {
				t.Error("Update should advance LastModified")
			}

			if _, err := store.Create(ctx, "Things", "fixed-id", map[string]any{"name": "jam"}); err != nil {
				t.Fatalf("Create with id: %v", err)
			}
			if _, err := store.Create(ctx, "Other", "fixed-id", nil); err != nil {
				t.Fatalf("same id in another table: %v", err)
			}

			list, err := store.List(ctx, "Things")
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(list) != 2 || list[0].ID != rec.ID {
				t.Errorf("List = %+v", list)
			}

			if err := store.Delete(ctx, "Things", rec.ID); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if err := store.Delete(ctx, "Things", rec.ID); !errors.Is(err, ErrNotFound) {
				t.Errorf("second Delete err = %v, want ErrNotFound", err)
			}
			if _, err := store.Get(ctx, "Things", rec.ID); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get after delete err = %v", err)
			}
			if _, err := store.Update(ctx, "Things", "missing", nil); !errors.Is(err, ErrNotFound) {
				t.Errorf("Update missing err = %v", err)
			}
		})
	}
}

func TestReminderRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewReminderRepository(NewMemoryStore())

	due := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	later := &models.Reminder{Date: due.Add(time.Hour), Notes: "stand up", ChannelID: "-1001"}
	sooner := &models.Reminder{Date: due, Notes: "coffee 🕰", ChannelID: "-1001", Advance: true}
	for _, r := range []*models.Reminder{later, sooner} {
		if err := repo.Create(ctx, r); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Notes != "coffee 🕰" {
		t.Fatalf("List = %+v", list)
	}
	if !list[0].Date.Equal(due) || !list[0].Advance {
		t.Errorf("round trip lost data: %+v", list[0])
	}

	dup, err := repo.FindDuplicate(ctx, &models.Reminder{Date: due.Add(time.Hour), Notes: " Stand up "})
	if err != nil {
		t.Fatal(err)
	}
	if dup == nil || dup.ID != later.ID {
		t.Errorf("FindDuplicate = %+v", dup)
	}

	if err := repo.SetApproved(ctx, sooner.ID); err != nil {
		t.Fatal(err)
	}
	if err := repo.SetAdvanceSent(ctx, sooner.ID); err != nil {
		t.Fatal(err)
	}
	list, err = repo.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := list[0]; got.ID != sooner.ID || !got.Approved || !got.AdvanceSent {
		t.Errorf("flags not saved: %+v", got)
	}

	if err := repo.Delete(ctx, sooner.ID); err != nil {
		t.Fatal(err)
	}
	list, err = repo.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != later.ID {
		t.Errorf("List after delete = %+v", list)
	}
}

func TestApprovalRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewApprovalRepository(NewMemoryStore())
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	p := models.PendingApproval{
		ID:        models.ApprovalID("-1001", "42"),
		ChannelID: "-1001",
		MessageID: "42",
		AuthorID:  "7",
		CreatedAt: now,
		Deadline:  now.Add(24 * time.Hour),
		Status:    models.StatusPending,
	}
	if err := repo.Save(ctx, p); err != nil {
		t.Fatal(err)
	}
	other := p
	other.ID = models.ApprovalID("-1001", "43")
	other.MessageID = "43"
	if err := repo.Save(ctx, other); err != nil {
		t.Fatal(err)
	}
	other.Status = models.StatusApproved
	if err := repo.Save(ctx, other); err != nil {
		t.Fatal(err)
	}

	pending, err := repo.ListPending(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ID != p.ID || !pending[0].Deadline.Equal(p.Deadline) {
		t.Fatalf("pending = %+v", pending)
	}

	if err := repo.Delete(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	if err := repo.Delete(ctx, p.ID); err != nil {
		t.Errorf("deleting a missing entry should be a no-op, got %v", err)
	}
}

func TestFiringRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewFiringRepository(NewMemoryStore())

	if err := repo.RecordFired(ctx, "g:c", 8, "2026-05-01"); err != nil {
		t.Fatal(err)
	}
	if err := repo.RecordFired(ctx, "g:c", 8, "2026-05-02"); err != nil {
		t.Fatal(err)
	}
	if err := repo.RecordFired(ctx, "g:c", 13, "2026-05-01"); err != nil {
		t.Fatal(err)
	}

	fired, err := repo.LoadFired(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !fired.Fired("g:c", 8, "2026-05-02") || fired.Fired("g:c", 8, "2026-05-01") {
		t.Errorf("hour 8 = %q", fired["g:c"][8])
	}
	if !fired.Fired("g:c", 13, "2026-05-01") {
		t.Error("hour 13 missing")
	}
}

func TestParseFiredKey(t *testing.T) {
	target, hour, ok := parseFiredKey(firedKey("-1001:-1002", 8))
	if !ok || target != "-1001:-1002" || hour != 8 {
		t.Errorf("parse = %q %d %v", target, hour, ok)
	}
	if _, _, ok := parseFiredKey("other:key"); ok {
		t.Error("foreign key should not parse")
	}
}

func TestPing(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		if err := Ping(ctx, store); err != nil {
			t.Errorf("%s: Ping = %v", name, err)
		}
	}

	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "closed.db"))
	if err != nil {
		t.Fatal(err)
	}
	sqlite.Close()
	if err := Ping(ctx, sqlite); err == nil {
		t.Error("Ping on a closed store should fail")
	}
}
