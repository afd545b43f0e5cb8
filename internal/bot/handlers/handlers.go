package handlers

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hray3182/tildy/internal/chat"
	"github.com/hray3182/tildy/internal/config"
	"github.com/hray3182/tildy/internal/metrics"
	"github.com/hray3182/tildy/internal/models"
	"github.com/hray3182/tildy/internal/scheduler"
	"github.com/hray3182/tildy/internal/triggers"
)

const skynetReply = "Skynet prevention engaged. Something went wrong with that request and it has been logged."

// Result is what a trigger handler asks the dispatcher to do.
type Result struct {
	Outcome models.Outcome
	Reply   string
	// Announce posts Reply to the channel instead of replying to the message.
	Announce bool
	// OnSent runs with the posted reply.
	OnSent func(ctx context.Context, ref chat.MessageRef)
}

// HandlerFunc handles one matched trigger.
type HandlerFunc func(ctx context.Context, msg *chat.Message, m triggers.Match) (Result, error)

type ReminderStore interface {
	Create(ctx context.Context, reminder *models.Reminder) error
	FindDuplicate(ctx context.Context, reminder *models.Reminder) (*models.Reminder, error)
}

type PendingReminders interface {
	Pending(ctx context.Context) ([]*models.Reminder, error)
}

type Schedule interface {
	Jobs() []scheduler.JobInfo
}

type Approvals interface {
	Watch(ctx context.Context, p models.PendingApproval) bool
}

type TimestampParser interface {
	ParseTimestamp(ctx context.Context, text string, now time.Time, loc *time.Location) (time.Time, error)
}

type Options struct {
	Config     *config.Config
	Triggers   *triggers.Registry
	AtTriggers *triggers.Registry
	// Patterns holds the pattern reaction triggers, compiled with CompileSearch.
	Patterns *triggers.Registry
	Chat       chat.Sender
	Self       chat.User

	Reminders ReminderStore
	Pending   PendingReminders
	Schedule  Schedule
	Approvals Approvals
	// Parser resolves timestamps the fixed layouts cannot. Optional.
	Parser TimestampParser
	// OnReminderAdded runs after a reminder is stored.
	OnReminderAdded func()

	Now     func() time.Time
	Pick    func(n int) int
	Logger  *log.Logger
	Metrics metrics.Recorder
}

type route struct {
	name   string
	handle HandlerFunc
}

// Dispatcher routes chat messages to trigger handlers and reacts with the
// outcome. It is safe for concurrent use.
type Dispatcher struct {
	opts      Options
	routes    []route
	mention   string
	include   map[string]bool
	exclude   map[string]bool
	windows   []models.MealWindow
	targets   []models.GuildReminderTarget
	locations []*time.Location
}

func New(opts Options) (*Dispatcher, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Pick == nil {
		opts.Pick = rand.IntN
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}

	windows, err := opts.Config.MealWindows()
	if err != nil {
		return nil, err
	}
	targets, err := opts.Config.ReminderTargets()
	if err != nil {
		return nil, err
	}

	d := &Dispatcher{
		opts:      opts,
		include:   toSet(opts.Config.Channels.Include),
		exclude:   toSet(opts.Config.Channels.Exclude),
		windows:   windows,
		targets:   targets,
		locations: opts.Config.Locations(),
	}
	if opts.Self.Name != "" {
		d.mention = "@" + opts.Self.Name
	}
	d.routes = []route{
		{config.TriggerMealTime, d.mealTime},
		{config.TriggerTimezones, d.timezones},
		{config.TriggerJobSchedule, d.jobSchedule},
		{config.TriggerYell, d.yell},
		{config.TriggerAddReminder, d.addReminder},
		{config.TriggerReminderExplain, d.reminderExplain},
		{config.TriggerRemoveReactions, d.removeReactions},
	}
	return d, nil
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}

func (d *Dispatcher) allowed(channelID string) bool {
	if len(d.include) > 0 && !d.include[channelID] {
		return false
	}
	return !d.exclude[channelID]
}

// stripMention removes a leading mention of the bot.
func (d *Dispatcher) stripMention(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if d.mention == "" || len(text) < len(d.mention) || !strings.EqualFold(text[:len(d.mention)], d.mention) {
		return text, false
	}
	return strings.TrimSpace(text[len(d.mention):]), true
}

// Handle dispatches one message and returns the outcome it reacted with.
func (d *Dispatcher) Handle(ctx context.Context, msg *chat.Message) models.Outcome {
	if msg.Author.ID == d.opts.Self.ID {
		return models.NoMatch
	}
	if !msg.Private && !d.allowed(msg.Ref.ChannelID) {
		return models.NoMatch
	}

	text, at := d.stripMention(msg.Text)
	reg := d.opts.Triggers
	if at {
		reg = d.opts.AtTriggers
	}
	if reg != nil {
		for _, r := range d.routes {
			if m, ok := reg.Find(text, r.name); ok {
				return d.run(ctx, msg, r, m)
			}
		}
	}

	if d.reactToPattern(ctx, msg) {
		return models.Success
	}

	if msg.Private && d.opts.Config.ShouldReply {
		res := Result{Outcome: models.Unknown, Reply: d.helpText()}
		d.apply(ctx, msg, "help", res)
		d.opts.Metrics.RecordDispatch("help", res.Outcome.String())
		return res.Outcome
	}
	return models.NoMatch
}

func (d *Dispatcher) run(ctx context.Context, msg *chat.Message, r route, m triggers.Match) models.Outcome {
	logger := d.opts.Logger.With("trigger", r.name, "message", msg.Ref.String())
	logger.Debug("trigger matched", "author", msg.Author.Name)

	start := time.Now()
	res, err := d.call(ctx, msg, r, m)
	d.opts.Metrics.RecordHandlerLatency(r.name, time.Since(start))
	if err != nil {
		logger.Error("trigger handler failed", "err", err)
		res = Result{Outcome: models.Error}
		if d.opts.Config.ShouldReply {
			res.Reply = skynetReply
		}
	}

	d.apply(ctx, msg, r.name, res)
	d.opts.Metrics.RecordDispatch(r.name, res.Outcome.String())
	return res.Outcome
}

func (d *Dispatcher) call(ctx context.Context, msg *chat.Message, r route, m triggers.Match) (res Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic in %s handler: %v", r.name, p)
		}
	}()
	return r.handle(ctx, msg, m)
}

// apply reacts once and replies at most once.
func (d *Dispatcher) apply(ctx context.Context, msg *chat.Message, name string, res Result) {
	logger := d.opts.Logger.With("trigger", name, "message", msg.Ref.String())

	if glyph, ok := d.opts.Config.Reactions.Glyph(res.Outcome); ok {
		if err := d.opts.Chat.AddReaction(ctx, msg.Ref, glyph); err != nil {
			logger.Warn("failed to react", "glyph", glyph, "err", err)
		}
	}
	if res.Reply == "" {
		return
	}

	var (
		ref chat.MessageRef
		err error
	)
	if res.Announce {
		ref, err = d.opts.Chat.SendMessage(ctx, msg.Ref.ChannelID, res.Reply)
	} else {
		ref, err = d.opts.Chat.Reply(ctx, msg.Ref, res.Reply)
	}
	if err != nil {
		logger.Error("failed to reply", "err", err)
		return
	}
	if res.OnSent != nil {
		res.OnSent(ctx, ref)
	}
}

// zoneFor is the zone of the guild the message came from, or the meal default.
func (d *Dispatcher) zoneFor(msg *chat.Message) *time.Location {
	for _, t := range d.targets {
		if t.GuildID == msg.GuildID {
			return t.Location
		}
	}
	if loc, err := time.LoadLocation(d.opts.Config.Meals.Timezone); err == nil {
		return loc
	}
	return time.UTC
}

func (d *Dispatcher) displayName() string {
	if d.mention != "" {
		return d.mention
	}
	return d.opts.Config.Bot.Name
}

func (d *Dispatcher) helpText() string {
	name := d.displayName()
	return fmt.Sprintf(`You can DM me the following commands:
`+"`!meal`"+`: Show which meals are due around the world
`+"`!times`"+`: Show the time in every configured zone
`+"`!schedule`"+`: Show the current schedule of reminders
`+"`!bottoyellat<name>. <message>`"+`: Get %s to yell at someone.
%s: Get %s to remind you. Include '%s' in `+"`message`"+` to also receive a reminder %d minutes prior.`,
		name, d.reminderSyntax(), name, models.AdvanceMarker, d.opts.Config.Reminders.AdvanceMinutes)
}
