package scheduler

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"

	"github.com/hray3182/tildy/internal/logger"
)

// Sweeper expires unapproved entries.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) int
}

type Options struct {
	Meals     *MealScheduler
	Reminders *ReminderRunner
	Sweeper   Sweeper
	Interval  time.Duration
	Now       func() time.Time
	Logger    *log.Logger
}

// JobInfo describes a scheduled job for listings.
type JobInfo struct {
	Name string
	Next time.Time
}

// Scheduler drives the meal reminders, one-off reminders and approval expiry
// from a cron runner.
type Scheduler struct {
	opts     Options
	cron     *cron.Cron
	notifyCh chan struct{}

	mu   sync.Mutex
	jobs map[cron.EntryID]string
}

func New(opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	cl := logger.CronLogger{L: opts.Logger}
	return &Scheduler{
		opts: opts,
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		notifyCh: make(chan struct{}, 1),
		jobs:     make(map[cron.EntryID]string),
	}
}

// Notify triggers an immediate reminder check. Non-blocking if a check is already pending.
func (s *Scheduler) Notify() {
	select {
	case s.notifyCh <- struct{}{}:
	default:
		// Channel already has a pending notification, skip
	}
}

func (s *Scheduler) add(ctx context.Context, name string, run func(ctx context.Context, now time.Time)) error {
	spec := fmt.Sprintf("@every %s", s.opts.Interval)
	id, err := s.cron.AddFunc(spec, func() {
		run(ctx, s.opts.Now())
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	s.mu.Lock()
	s.jobs[id] = name
	s.mu.Unlock()
	return nil
}

// Start restores meal state, runs a first check and schedules the jobs. It
// returns once the jobs are running; they stop when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	now := s.opts.Now()
	if s.opts.Meals != nil {
		if err := s.opts.Meals.Restore(ctx, now); err != nil {
			return fmt.Errorf("failed to restore meal reminders: %w", err)
		}
		if err := s.add(ctx, "Meal reminders", func(ctx context.Context, now time.Time) {
			s.opts.Meals.Tick(ctx, now)
		}); err != nil {
			return err
		}
	}
	if s.opts.Reminders != nil {
		if err := s.add(ctx, "Reminders", func(ctx context.Context, now time.Time) {
			s.opts.Reminders.Tick(ctx, now)
		}); err != nil {
			return err
		}
	}
	if s.opts.Sweeper != nil {
		if err := s.add(ctx, "Expire unapproved entries", func(ctx context.Context, now time.Time) {
			if n := s.opts.Sweeper.Sweep(ctx, now); n > 0 {
				s.opts.Logger.Info("expired unapproved entries", "count", n)
			}
		}); err != nil {
			return err
		}
	}

	s.check(ctx, now)
	s.cron.Start()
	s.opts.Logger.Info("scheduler started", "interval", s.opts.Interval)

	go func() {
		for {
			select {
			case <-ctx.Done():
				s.Stop()
				s.opts.Logger.Info("scheduler stopped")
				return
			case <-s.notifyCh:
				s.opts.Logger.Debug("scheduler triggered by notification")
				if s.opts.Reminders != nil {
					s.opts.Reminders.Tick(ctx, s.opts.Now())
				}
			}
		}
	}()
	return nil
}

// Stop halts the cron runner and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) check(ctx context.Context, now time.Time) {
	if s.opts.Meals != nil {
		s.opts.Meals.Tick(ctx, now)
	}
	if s.opts.Reminders != nil {
		s.opts.Reminders.Tick(ctx, now)
	}
	if s.opts.Sweeper != nil {
		s.opts.Sweeper.Sweep(ctx, now)
	}
}

// Jobs lists scheduled jobs by next run time.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	var jobs []JobInfo
	for _, e := range s.cron.Entries() {
		jobs = append(jobs, JobInfo{Name: s.jobs[e.ID], Next: e.Next})
	}
	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].Next.Equal(jobs[j].Next) {
			return jobs[i].Next.Before(jobs[j].Next)
		}
		return jobs[i].Name < jobs[j].Name
	})
	return jobs
}
