// Package approval tracks entries that must be approved by reaction before a
// deadline, deleting them when the deadline passes.
package approval

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hray3182/tildy/internal/chat"
	"github.com/hray3182/tildy/internal/metrics"
	"github.com/hray3182/tildy/internal/models"
	"github.com/hray3182/tildy/internal/repository"
)

// MessageDeleter removes expired messages from the chat.
type MessageDeleter interface {
	DeleteMessage(ctx context.Context, ref chat.MessageRef) error
}

// RecordDeleter removes records linked to expired entries.
type RecordDeleter interface {
	Delete(ctx context.Context, table, id string) error
}

// Store persists entries across restarts.
type Store interface {
	Save(ctx context.Context, p models.PendingApproval) error
	Delete(ctx context.Context, id string) error
	ListPending(ctx context.Context) ([]models.PendingApproval, error)
}

// Policy decides who may approve.
type Policy struct {
	Glyph string
	// Approvers may approve any entry. When empty, any human may approve.
	Approvers        []string
	AuthorCanApprove bool
	BotID            string
}

type Options struct {
	Chat    MessageDeleter
	Records RecordDeleter
	Store   Store
	Policy  Policy
	TTL     time.Duration
	Now     func() time.Time
	Logger  *log.Logger
	Metrics metrics.Recorder
	// OnApproved runs after an entry is approved, outside any lock.
	OnApproved func(ctx context.Context, p models.PendingApproval)
}

type entry struct {
	mu sync.Mutex
	p  models.PendingApproval
}

type Tracker struct {
	mu      sync.Mutex
	entries map[string]*entry
	sweepMu sync.Mutex

	opts      Options
	approvers map[string]bool
}

func New(opts Options) *Tracker {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	approvers := make(map[string]bool, len(opts.Policy.Approvers))
	for _, id := range opts.Policy.Approvers {
		approvers[id] = true
	}
	return &Tracker{
		entries:   make(map[string]*entry),
		opts:      opts,
		approvers: approvers,
	}
}

// Watch starts tracking p. The deadline defaults to CreatedAt plus the TTL.
// Watching an id twice is a no-op and returns false.
func (t *Tracker) Watch(ctx context.Context, p models.PendingApproval) bool {
	if p.ID == "" {
		p.ID = models.ApprovalID(p.ChannelID, p.MessageID)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = t.opts.Now()
	}
	if p.Deadline.IsZero() {
		p.Deadline = p.CreatedAt.Add(t.opts.TTL)
	}
	p.Status = models.StatusPending

	e := &entry{p: p}
	// Held until the row is saved so a concurrent sweep cannot forget it first.
	e.mu.Lock()
	defer e.mu.Unlock()
	if !t.insert(e) {
		return false
	}
	if t.opts.Store != nil {
		if err := t.opts.Store.Save(ctx, p); err != nil {
			t.opts.Logger.Warn("failed to persist pending approval", "id", p.ID, "err", err)
		}
	}
	t.opts.Logger.Debug("watching for approval", "id", p.ID, "deadline", p.Deadline)
	return true
}

func (t *Tracker) insert(e *entry) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries[e.p.ID]; ok {
		return false
	}
	t.entries[e.p.ID] = e
	return true
}

func (t *Tracker) lookup(id string) *entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries[id]
}

func (t *Tracker) remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, id)
}

// Load restores persisted pending entries, e.g. after a restart.
func (t *Tracker) Load(ctx context.Context) (int, error) {
	if t.opts.Store == nil {
		return 0, nil
	}
	pending, err := t.opts.Store.ListPending(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range pending {
		if t.insert(&entry{p: p}) {
			n++
		}
	}
	return n, nil
}

// Pending returns the number of tracked entries.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Status returns the tracked status of id.
func (t *Tracker) Status(id string) (models.ApprovalStatus, bool) {
	e := t.lookup(id)
	if e == nil {
		return "", false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.p.Status, true
}

func (t *Tracker) authorized(p models.PendingApproval, user chat.User) bool {
	if user.IsBot || user.ID == t.opts.Policy.BotID {
		return false
	}
	if t.opts.Policy.AuthorCanApprove && user.ID == p.AuthorID {
		return true
	}
	if len(t.approvers) == 0 {
		return true
	}
	return t.approvers[user.ID]
}

// OnReaction approves the entry for the reacted message when the glyph and
// reactor qualify and the entry is still pending before its deadline. An
// entry already past its deadline is expired on the spot. It reports whether
// the entry was approved.
func (t *Tracker) OnReaction(ctx context.Context, r chat.Reaction) bool {
	if r.Glyph != t.opts.Policy.Glyph {
		return false
	}
	id := models.ApprovalID(r.Message.ChannelID, r.Message.MessageID)
	e := t.lookup(id)
	if e == nil {
		return false
	}

	e.mu.Lock()
	now := t.opts.Now()
	if e.p.Due(now) {
		err := e.p.Expire(now)
		p := e.p
		e.mu.Unlock()
		if err == nil {
			t.remove(id)
			t.expire(ctx, p)
		}
		t.opts.Logger.Debug("approval after deadline ignored", "id", id)
		return false
	}
	if !t.authorized(e.p, r.User) {
		e.mu.Unlock()
		t.opts.Logger.Debug("ignoring approval from unauthorised user", "id", id, "user", r.User.ID)
		return false
	}
	if err := e.p.Approve(now); err != nil {
		e.mu.Unlock()
		t.opts.Logger.Debug("late approval ignored", "id", id, "err", err)
		return false
	}
	approved := e.p
	e.mu.Unlock()

	t.remove(id)
	t.forget(ctx, id)
	t.opts.Metrics.RecordApproval(string(models.StatusApproved))
	t.opts.Logger.Info("entry approved", "id", id, "by", r.User.ID)
	if t.opts.OnApproved != nil {
		t.opts.OnApproved(ctx, approved)
	}
	return true
}

// Cancel stops tracking a pending entry whose message went away.
func (t *Tracker) Cancel(ctx context.Context, id string) bool {
	e := t.lookup(id)
	if e == nil {
		return false
	}
	e.mu.Lock()
	err := e.p.Cancel(t.opts.Now())
	e.mu.Unlock()
	if err != nil {
		return false
	}
	t.remove(id)
	t.forget(ctx, id)
	t.opts.Metrics.RecordApproval(string(models.StatusCancelled))
	return true
}

// Sweep expires every pending entry whose deadline is at or before now,
// deleting its message and linked record. Deletes are attempted once; a
// target that is already gone counts as cancelled. It returns the number of
// entries expired.
func (t *Tracker) Sweep(ctx context.Context, now time.Time) int {
	t.sweepMu.Lock()
	defer t.sweepMu.Unlock()

	t.mu.Lock()
	candidates := make([]*entry, 0, len(t.entries))
	for _, e := range t.entries {
		candidates = append(candidates, e)
	}
	t.mu.Unlock()

	expired := 0
	for _, e := range candidates {
		e.mu.Lock()
		if !e.p.Due(now) {
			e.mu.Unlock()
			continue
		}
		if err := e.p.Expire(now); err != nil {
			e.mu.Unlock()
			continue
		}
		p := e.p
		e.mu.Unlock()

		t.remove(p.ID)
		expired++
		t.expire(ctx, p)
	}
	return expired
}

func (t *Tracker) expire(ctx context.Context, p models.PendingApproval) {
	logger := t.opts.Logger.With("id", p.ID)
	status := models.StatusExpired

	if p.MessageID != "" && t.opts.Chat != nil {
		err := t.opts.Chat.DeleteMessage(ctx, chat.MessageRef{ChannelID: p.ChannelID, MessageID: p.MessageID})
		switch {
		case errors.Is(err, chat.ErrMessageNotFound):
			status = models.StatusCancelled
			logger.Info("expired message already deleted")
		case err != nil:
			t.opts.Metrics.RecordChatFailure("delete")
			logger.Warn("failed to delete expired message", "err", err)
		}
	}

	if p.RecordID != "" && t.opts.Records != nil {
		err := t.opts.Records.Delete(ctx, p.RecordTable, p.RecordID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			status = models.StatusCancelled
			logger.Info("expired record already deleted", "table", p.RecordTable)
		case err != nil:
			logger.Warn("failed to delete expired record", "table", p.RecordTable, "err", err)
		}
	}

	t.forget(ctx, p.ID)
	t.opts.Metrics.RecordApproval(string(status))
	logger.Info("unapproved entry expired", "created", p.CreatedAt, "status", status)
}

func (t *Tracker) forget(ctx context.Context, id string) {
	if t.opts.Store == nil {
		return
	}
	if err := t.opts.Store.Delete(ctx, id); err != nil {
		t.opts.Logger.Warn("failed to remove persisted approval", "id", id, "err", err)
	}
}
