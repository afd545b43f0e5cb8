package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hray3182/tildy/internal/models"
)

type countingSweeper struct {
	calls atomic.Int32
}

func (c *countingSweeper) Sweep(ctx context.Context, now time.Time) int {
	c.calls.Add(1)
	return 0
}

func TestStartRunsInitialCheckAndListsJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	now := time.Date(2026, 6, 1, 8, 0, 10, 0, time.UTC)
	sender := &fakeSender{}
	meals := NewMealScheduler(MealOptions{
		Targets:  []models.GuildReminderTarget{{GuildID: "g", ChannelID: "c", Location: time.UTC, Hours: []int{8}}},
		Fallback: "eat",
		Grace:    time.Minute,
		Sender:   sender,
	})
	store := newMemoryReminders()
	reminders := NewReminderRunner(ReminderOptions{Store: store, Sender: sender})
	sweeper := &countingSweeper{}

	s := New(Options{
		Meals:     meals,
		Reminders: reminders,
		Sweeper:   sweeper,
		Interval:  time.Hour,
		Now:       func() time.Time { return now },
	})
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}

	if len(sender.messages()) != 1 {
		t.Fatalf("initial check sent %d meal reminders", len(sender.messages()))
	}
	if sweeper.calls.Load() != 1 {
		t.Fatalf("sweeper calls = %d", sweeper.calls.Load())
	}

	jobs := s.Jobs()
	if len(jobs) != 3 {
		t.Fatalf("jobs = %+v", jobs)
	}
	names := map[string]bool{}
	for _, j := range jobs {
		names[j.Name] = true
	}
	for _, want := range []string{"Meal reminders", "Reminders", "Expire unapproved entries"} {
		if !names[want] {
			t.Errorf("missing job %q", want)
		}
	}
}

func TestNotifyTicksReminders(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	sender := &fakeSender{}
	store := newMemoryReminders()
	s := New(Options{
		Reminders: NewReminderRunner(ReminderOptions{Store: store, Sender: sender, MissedGrace: time.Minute}),
		Interval:  time.Hour,
		Now:       func() time.Time { return now },
	})
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}

	store.mu.Lock()
	store.reminders["r1"] = &models.Reminder{ID: "r1", Date: now, Notes: "tea", ChannelID: "c"}
	store.mu.Unlock()
	s.Notify()
	s.Notify()

	deadline := time.Now().Add(2 * time.Second)
	for len(sender.messages()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if len(sender.messages()) != 1 {
		t.Fatalf("notify sent %d reminders", len(sender.messages()))
	}
}
