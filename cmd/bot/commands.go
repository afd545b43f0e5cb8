package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hray3182/tildy/internal/ai"
	"github.com/hray3182/tildy/internal/approval"
	"github.com/hray3182/tildy/internal/bot"
	"github.com/hray3182/tildy/internal/bot/handlers"
	"github.com/hray3182/tildy/internal/chat/telegram"
	"github.com/hray3182/tildy/internal/config"
	"github.com/hray3182/tildy/internal/database"
	"github.com/hray3182/tildy/internal/logger"
	"github.com/hray3182/tildy/internal/metrics"
	"github.com/hray3182/tildy/internal/models"
	"github.com/hray3182/tildy/internal/repository"
	"github.com/hray3182/tildy/internal/scheduler"
	"github.com/hray3182/tildy/internal/triggers"

	_ "time/tzdata"
)

func setup(c *Context) (*config.Config, *log.Logger, error) {
	cfg, err := config.Load(c.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	if c.Debug {
		cfg.Log.Debug = true
	}
	l, err := logger.New(logger.Config{Debug: cfg.Log.Debug, Dir: cfg.Log.Dir})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, l, nil
}

type CheckConfigCmd struct{}

func (cmd *CheckConfigCmd) Run(c *Context) error {
	cfg, err := config.Load(c.ConfigPath)
	if err != nil {
		return err
	}
	windows, _ := cfg.MealWindows()
	targets, _ := cfg.ReminderTargets()
	fmt.Printf("config ok: %d meal windows, %d reminder targets, storage %s\n",
		len(windows), len(targets), cfg.Storage.Driver)
	return nil
}

type MigrateCmd struct{}

func (cmd *MigrateCmd) Run(c *Context) error {
	cfg, l, err := setup(c)
	if err != nil {
		return err
	}
	ctx := context.Background()

	if cfg.Storage.Driver != "postgres" {
		store, err := repository.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN, l)
		if err != nil {
			return err
		}
		l.Info("record store ready", "driver", cfg.Storage.Driver)
		return store.Close()
	}

	db, err := database.New(ctx, cfg.Storage.DSN)
	if err != nil {
		return err
	}
	defer db.Close()
	applied, err := db.Migrate(ctx, l)
	if err != nil {
		return err
	}
	l.Info("database migrations completed", "applied", len(applied))
	return nil
}

type RunCmd struct{}

func (cmd *RunCmd) Run(c *Context) error {
	cfg, l, err := setup(c)
	if err != nil {
		return err
	}
	if cfg.TelegramToken == "" {
		return &config.ConfigError{Field: "TELEGRAM_TOKEN", Message: "is required"}
	}
	interval, err := cfg.TickInterval()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := repository.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN, l)
	if err != nil {
		return fmt.Errorf("failed to open record store: %w", err)
	}
	defer store.Close()
	l.Info("connected to record store", "driver", cfg.Storage.Driver)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewCollector(reg)

	var firing scheduler.FiringLog = repository.NewFiringRepository(store)
	if cfg.Storage.RedisURL != "" {
		ttl, err := cfg.FiredLogTTL()
		if err != nil {
			return err
		}
		redisLog, err := repository.NewRedisFiringLog(ctx, cfg.Storage.RedisURL, ttl)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisLog.Close()
		firing = redisLog
		l.Info("using redis firing log")
	}

	source, err := telegram.New(telegram.Options{
		Token:   cfg.TelegramToken,
		Logger:  l.WithPrefix("telegram"),
		Metrics: rec,
	})
	if err != nil {
		return err
	}
	self := source.Self()

	reminders := repository.NewReminderRepository(store)
	var sched *scheduler.Scheduler

	tracker := approval.New(approval.Options{
		Chat:    source,
		Records: store,
		Store:   repository.NewApprovalRepository(store),
		Policy: approval.Policy{
			Glyph:            cfg.Reactions.Approval,
			Approvers:        cfg.Approvals.Approvers,
			AuthorCanApprove: cfg.Approvals.AuthorCanApprove,
			BotID:            self.ID,
		},
		TTL:     cfg.ApprovalTTL(),
		Logger:  l.WithPrefix("approval"),
		Metrics: rec,
		OnApproved: func(ctx context.Context, p models.PendingApproval) {
			if p.RecordTable != repository.RemindersTable || p.RecordID == "" {
				return
			}
			if err := reminders.SetApproved(ctx, p.RecordID); err != nil {
				l.Warn("failed to mark reminder approved", "reminder", p.RecordID, "err", err)
				return
			}
			sched.Notify()
		},
	})
	restored, err := tracker.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore pending approvals: %w", err)
	}
	l.Info("restored pending approvals", "count", restored)

	windows, err := cfg.MealWindows()
	if err != nil {
		return err
	}
	targets, err := cfg.ReminderTargets()
	if err != nil {
		return err
	}
	meals := scheduler.NewMealScheduler(scheduler.MealOptions{
		Targets:         targets,
		Windows:         windows,
		Fallback:        cfg.Meals.ReminderText,
		PreviousToKeep:  cfg.Meals.PreviousToKeep,
		RequireApproval: cfg.Meals.RequireApproval,
		Grace:           2 * interval,
		Sender:          source,
		Log:             firing,
		Approvals:       tracker,
		BotID:           self.ID,
		Logger:          l.WithPrefix("meals"),
		Metrics:         rec,
	})
	runner := scheduler.NewReminderRunner(scheduler.ReminderOptions{
		Store:           reminders,
		Sender:          source,
		DefaultChannel:  cfg.Reminders.Channel,
		Location:        cfg.ReminderLocation(),
		Advance:         time.Duration(cfg.Reminders.AdvanceMinutes) * time.Minute,
		MissedGrace:     max(5*time.Minute, 2*interval),
		RequireApproval: cfg.Reminders.RequireApproval,
		Logger:          l.WithPrefix("reminders"),
		Metrics:         rec,
	})
	sched = scheduler.New(scheduler.Options{
		Meals:     meals,
		Reminders: runner,
		Sweeper:   tracker,
		Interval:  interval,
		Logger:    l.WithPrefix("scheduler"),
	})

	id := triggers.Identity{Mention: "@" + self.Name, Name: cfg.Bot.Name}
	plain, err := triggers.Compile(cfg.Triggers, id)
	if err != nil {
		return err
	}
	at, err := triggers.Compile(cfg.AtTriggers, id)
	if err != nil {
		return err
	}
	patterns, err := triggers.CompileSearch(cfg.PatternSets(), id)
	if err != nil {
		return err
	}

	var parser handlers.TimestampParser
	if cfg.AIAPIKey != "" {
		parser = ai.New(cfg.AIAPIKey, cfg.AIBaseURL, cfg.AIModel)
		l.Info("AI timestamp parsing enabled", "model", cfg.AIModel)
	}

	dispatcher, err := handlers.New(handlers.Options{
		Config:          cfg,
		Triggers:        plain,
		AtTriggers:      at,
		Patterns:        patterns,
		Chat:            source,
		Self:            self,
		Reminders:       reminders,
		Pending:         runner,
		Schedule:        sched,
		Approvals:       tracker,
		Parser:          parser,
		OnReminderAdded: sched.Notify,
		Logger:          l.WithPrefix("dispatch"),
		Metrics:         rec,
	})
	if err != nil {
		return err
	}

	if cfg.HTTP.Addr != "" {
		srv := &http.Server{
			Addr: cfg.HTTP.Addr,
			Handler: metrics.NewRouter(reg, func(ctx context.Context) error {
				return repository.Ping(ctx, store)
			}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			l.Info("serving metrics", "addr", cfg.HTTP.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				l.Error("metrics server failed", "err", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	l.Info("starting bot", "account", self.Name)
	err = bot.New(source, dispatcher, tracker, l.WithPrefix("bot")).Start(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("bot stopped: %w", err)
	}
	l.Info("shutting down")
	return nil
}
