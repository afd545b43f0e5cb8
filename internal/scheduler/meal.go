package scheduler

import (
	"context"
	"io"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hray3182/tildy/internal/chat"
	"github.com/hray3182/tildy/internal/metrics"
	"github.com/hray3182/tildy/internal/models"
)

// Picker returns an index in [0, n).
type Picker func(n int) int

func RandomPicker(n int) int {
	return rand.IntN(n)
}

// Action is one reminder message to post.
type Action struct {
	Target    models.GuildReminderTarget
	Hours     []int
	LocalDate string
	Meal      string
	Text      string
}

// Plan returns the reminders due at now. It does not modify fired.
//
// An hour is due when the target's local wall clock is in that hour (or in the
// first hour after it, when a DST gap skipped it) and it has not fired on the
// current local date. Several hours due at once for the same target collapse
// into one action.
func Plan(now time.Time, targets []models.GuildReminderTarget, windows []models.MealWindow,
	fired models.FiredLog, fallback string, pick Picker) []Action {
	var actions []Action
	for _, target := range targets {
		local := now.In(target.Location)
		date := local.Format(time.DateOnly)

		var due []int
		for _, h := range target.Hours {
			if slices.Contains(due, h) || !target.DueHour(now, h) || fired.Fired(target.Key(), h, date) {
				continue
			}
			due = append(due, h)
		}
		if len(due) == 0 {
			continue
		}

		action := Action{Target: target, Hours: due, LocalDate: date, Text: fallback}
		if w, ok := models.FindWindow(windows, local); ok && len(w.Texts) > 0 {
			action.Meal = w.Name
			action.Text = w.Texts[pick(len(w.Texts))]
		}
		actions = append(actions, action)
	}
	return actions
}

// FiringLog persists which hours have fired.
type FiringLog interface {
	LoadFired(ctx context.Context) (models.FiredLog, error)
	RecordFired(ctx context.Context, target string, hour int, localDate string) error
}

// Watcher hands posted reminders to the approval tracker.
type Watcher interface {
	Watch(ctx context.Context, p models.PendingApproval) bool
	Cancel(ctx context.Context, id string) bool
}

type MealOptions struct {
	Targets  []models.GuildReminderTarget
	Windows  []models.MealWindow
	Fallback string
	// PreviousToKeep older reminder messages are kept per target; 0 keeps all.
	PreviousToKeep  int
	RequireApproval bool
	// Grace is how late into an hour a restart may still fire it.
	Grace     time.Duration
	Sender    chat.Sender
	Log       FiringLog
	Approvals Watcher
	BotID     string
	Pick      Picker
	Logger    *log.Logger
	Metrics   metrics.Recorder
}

// MealScheduler posts meal reminders. Ticks are serialised.
type MealScheduler struct {
	mu    sync.Mutex
	opts  MealOptions
	fired models.FiredLog
	sent  map[string][]chat.MessageRef
}

func NewMealScheduler(opts MealOptions) *MealScheduler {
	if opts.Pick == nil {
		opts.Pick = RandomPicker
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}
	return &MealScheduler{
		opts:  opts,
		fired: make(models.FiredLog),
		sent:  make(map[string][]chat.MessageRef),
	}
}

// Restore loads the persisted firing log and treats the current hour as
// already fired when startup is past the grace period into it, so a restart
// never fires retroactively.
func (s *MealScheduler) Restore(ctx context.Context, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opts.Log != nil {
		fired, err := s.opts.Log.LoadFired(ctx)
		if err != nil {
			return err
		}
		for key, hours := range fired {
			for h, date := range hours {
				s.fired.Mark(key, h, date)
			}
		}
	}

	for _, target := range s.opts.Targets {
		if target.SinceHourStart(now) <= s.opts.Grace {
			continue
		}
		date := target.LocalDate(now)
		for _, h := range target.Hours {
			if target.DueHour(now, h) && !s.fired.Fired(target.Key(), h, date) {
				s.fired.Mark(target.Key(), h, date)
				s.opts.Logger.Info("skipping meal reminder missed while offline", "guild", target.GuildID, "hour", h)
			}
		}
	}
	return nil
}

// Tick posts every reminder due at now and returns what it posted. Hours are
// marked fired before sending, so a failed send is not retried.
func (s *MealScheduler) Tick(ctx context.Context, now time.Time) []Action {
	s.mu.Lock()
	defer s.mu.Unlock()

	actions := Plan(now, s.opts.Targets, s.opts.Windows, s.fired, s.opts.Fallback, s.opts.Pick)
	for _, action := range actions {
		key := action.Target.Key()
		for _, h := range action.Hours {
			s.fired.Mark(key, h, action.LocalDate)
			if s.opts.Log != nil {
				if err := s.opts.Log.RecordFired(ctx, key, h, action.LocalDate); err != nil {
					s.opts.Logger.Warn("failed to persist meal reminder firing", "target", key, "hour", h, "err", err)
				}
			}
		}
		s.post(ctx, now, action)
	}
	return actions
}

func (s *MealScheduler) post(ctx context.Context, now time.Time, action Action) {
	target := action.Target
	logger := s.opts.Logger.With("guild", target.GuildID, "channel", target.ChannelID)

	ref, err := s.opts.Sender.SendMessage(ctx, target.ChannelID, action.Text)
	if err != nil {
		s.opts.Metrics.RecordChatFailure("send")
		logger.Error("failed to send meal reminder", "err", err)
		return
	}
	s.opts.Metrics.RecordReminderSent("meal")
	logger.Info("sent meal reminder", "meal", action.Meal, "hours", action.Hours, "date", action.LocalDate)

	if s.opts.RequireApproval && s.opts.Approvals != nil {
		s.opts.Approvals.Watch(ctx, models.PendingApproval{
			ChannelID: ref.ChannelID,
			MessageID: ref.MessageID,
			AuthorID:  s.opts.BotID,
			CreatedAt: now,
		})
	}
	s.prune(ctx, target.Key(), ref)
}

// prune deletes reminder messages older than the most recent PreviousToKeep.
func (s *MealScheduler) prune(ctx context.Context, key string, latest chat.MessageRef) {
	sent := append(s.sent[key], latest)
	if s.opts.PreviousToKeep <= 0 {
		s.sent[key] = sent
		return
	}
	keep := s.opts.PreviousToKeep + 1
	if len(sent) <= keep {
		s.sent[key] = sent
		return
	}
	stale := sent[:len(sent)-keep]
	s.sent[key] = slices.Clone(sent[len(sent)-keep:])
	for _, ref := range stale {
		if s.opts.Approvals != nil {
			s.opts.Approvals.Cancel(ctx, models.ApprovalID(ref.ChannelID, ref.MessageID))
		}
		if err := s.opts.Sender.DeleteMessage(ctx, ref); err != nil {
			s.opts.Logger.Warn("failed to delete previous meal reminder", "message", ref.String(), "err", err)
		}
	}
}
