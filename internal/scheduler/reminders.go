package scheduler

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hray3182/tildy/internal/chat"
	"github.com/hray3182/tildy/internal/metrics"
	"github.com/hray3182/tildy/internal/models"
)

// ReminderStore is the subset of the reminder repository the runner needs.
type ReminderStore interface {
	List(ctx context.Context) ([]*models.Reminder, error)
	SetAdvanceSent(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type ReminderOptions struct {
	Store          ReminderStore
	Sender         chat.Sender
	DefaultChannel string
	Location       *time.Location
	Advance        time.Duration
	// MissedGrace bounds how late a reminder may still be sent.
	MissedGrace     time.Duration
	RequireApproval bool
	Logger          *log.Logger
	Metrics         metrics.Recorder
}

// ReminderRunner sends one-off reminders when they fall due.
type ReminderRunner struct {
	mu   sync.Mutex
	opts ReminderOptions
}

func NewReminderRunner(opts ReminderOptions) *ReminderRunner {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}
	return &ReminderRunner{opts: opts}
}

// Pending lists reminders that will still fire.
func (r *ReminderRunner) Pending(ctx context.Context) ([]*models.Reminder, error) {
	reminders, err := r.opts.Store.List(ctx)
	if err != nil {
		return nil, err
	}
	var pending []*models.Reminder
	for _, rem := range reminders {
		if r.opts.RequireApproval && !rem.Approved {
			continue
		}
		pending = append(pending, rem)
	}
	return pending, nil
}

// Tick sends advance warnings and due reminders, and drops reminders missed
// by more than the grace period. It returns the number of messages sent.
func (r *ReminderRunner) Tick(ctx context.Context, now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	reminders, err := r.Pending(ctx)
	if err != nil {
		r.opts.Logger.Error("failed to list reminders", "err", err)
		return 0
	}

	sent := 0
	for _, rem := range reminders {
		logger := r.opts.Logger.With("reminder", rem.ID)
		switch {
		case !now.Before(rem.Date):
			if now.Sub(rem.Date) > r.opts.MissedGrace {
				logger.Warn("dropping missed reminder", "due", rem.Date)
			} else if r.send(ctx, rem, fmt.Sprintf("Reminder: %s now (%s)!", strings.TrimSpace(rem.Notes), r.when(rem.Date))) {
				sent++
			} else {
				continue
			}
			if err := r.opts.Store.Delete(ctx, rem.ID); err != nil {
				logger.Warn("failed to delete sent reminder", "err", err)
			}
		case rem.Advance && !rem.AdvanceSent && !now.Before(rem.Date.Add(-r.opts.Advance)):
			minutes := int(r.opts.Advance.Minutes())
			if !r.send(ctx, rem, fmt.Sprintf("Reminder: %s in %d minutes!", strings.TrimSpace(rem.Notes), minutes)) {
				continue
			}
			sent++
			if err := r.opts.Store.SetAdvanceSent(ctx, rem.ID); err != nil {
				logger.Warn("failed to mark advance reminder sent", "err", err)
			}
		}
	}
	return sent
}

func (r *ReminderRunner) when(t time.Time) string {
	return t.In(r.opts.Location).Format("Mon 15:04 MST")
}

func (r *ReminderRunner) send(ctx context.Context, rem *models.Reminder, text string) bool {
	channel := rem.ChannelID
	if channel == "" {
		channel = r.opts.DefaultChannel
	}
	if channel == "" {
		r.opts.Logger.Warn("no channel for reminder", "reminder", rem.ID)
		return false
	}
	if _, err := r.opts.Sender.SendMessage(ctx, channel, text); err != nil {
		r.opts.Metrics.RecordChatFailure("send")
		r.opts.Logger.Error("failed to send reminder", "reminder", rem.ID, "err", err)
		return false
	}
	r.opts.Metrics.RecordReminderSent("one_off")
	r.opts.Logger.Info("sent reminder", "reminder", rem.ID, "channel", channel)
	return true
}
