package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hray3182/tildy/internal/chat"
	"github.com/hray3182/tildy/internal/models"
	"github.com/hray3182/tildy/internal/repository"
	"github.com/hray3182/tildy/internal/triggers"
)

var errUnparsedTime = errors.New("unrecognised time")

// Layouts tried before falling back to the AI parser, in order.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 3:04pm",
	"02/01/2006 15:04",
	"2 Jan 2006 15:04",
	"Jan 2 2006 15:04",
}

// Time-only layouts resolve to today in the reminder's zone.
var clockLayouts = []string{
	"15:04",
	"15:04:05",
	"3:04pm",
	"3pm",
}

// parseTimestamp reads the fixed layouts in loc.
func parseTimestamp(s string, now time.Time, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	lower := strings.ToLower(s)
	local := now.In(loc)
	for _, layout := range clockLayouts {
		if t, err := time.ParseInLocation(layout, lower, loc); err == nil {
			return time.Date(local.Year(), local.Month(), local.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", errUnparsedTime, s)
}

func (d *Dispatcher) resolveTimestamp(ctx context.Context, s string, now time.Time, loc *time.Location) (time.Time, error) {
	t, err := parseTimestamp(s, now, loc)
	if err == nil || d.opts.Parser == nil {
		return t, err
	}
	d.opts.Logger.Debug("falling back to AI timestamp parsing", "timestamp", s)
	return d.opts.Parser.ParseTimestamp(ctx, s, now, loc)
}

func (d *Dispatcher) reminderSyntax() string {
	return fmt.Sprintf("`%s !reminder <datetime>. <message>`", d.displayName())
}

func (d *Dispatcher) reminderLocation(msg *chat.Message) *time.Location {
	for _, t := range d.targets {
		if t.GuildID == msg.GuildID {
			return t.Location
		}
	}
	return d.opts.Config.ReminderLocation()
}

// reminderExplain replies with the syntax for adding a reminder.
func (d *Dispatcher) reminderExplain(ctx context.Context, msg *chat.Message, m triggers.Match) (Result, error) {
	return Result{
		Outcome: models.Unknown,
		Reply:   "Syntax for setting a reminder is: " + d.reminderSyntax(),
	}, nil
}

// addReminder stores a one-off reminder. When approval is required the
// confirmation reply is watched and the reminder only fires once approved.
func (d *Dispatcher) addReminder(ctx context.Context, msg *chat.Message, m triggers.Match) (Result, error) {
	if d.opts.Reminders == nil {
		return Result{Outcome: models.Unknown}, nil
	}
	now := d.opts.Now()
	loc := d.reminderLocation(msg)

	date, err := d.resolveTimestamp(ctx, m.Group("timestamp"), now, loc)
	if err != nil {
		d.opts.Logger.Warn("failed to process reminder time", "timestamp", m.Group("timestamp"), "err", err)
		return Result{Outcome: models.Rejected, Reply: "I'm sorry, I was unable to process this time 😢."}, nil
	}
	nearNow := now.Add(time.Minute)
	if date.Before(nearNow) {
		return Result{
			Outcome: models.Rejected,
			Reply: fmt.Sprintf("Reminder date parsed as %s but it is now %s.\nI'm sorry, time travel is difficult 😢.",
				date.In(loc).Format("Mon 15:04:05"), nearNow.In(loc).Format("Mon 15:04:05")),
		}, nil
	}

	text := m.Group("text")
	advance := strings.Contains(text, models.AdvanceMarker)
	notes := strings.TrimSpace(strings.ReplaceAll(text, models.AdvanceMarker, ""))
	if notes == "" {
		return Result{Outcome: models.Rejected, Reply: "What should I remind you about? " + d.reminderSyntax()}, nil
	}

	channel := d.opts.Config.Reminders.Channel
	if channel == "" {
		channel = msg.Ref.ChannelID
	}
	reminder := &models.Reminder{
		Date:        date,
		Notes:       notes,
		ChannelID:   channel,
		RequestedBy: msg.Author.ID,
		SourceID:    msg.Ref.String(),
		Advance:     advance,
		Approved:    !d.opts.Config.Reminders.RequireApproval,
	}

	existing, err := d.opts.Reminders.FindDuplicate(ctx, reminder)
	if err != nil {
		return Result{}, fmt.Errorf("failed to check for duplicate reminder: %w", err)
	}
	if existing != nil {
		return Result{
			Outcome: models.Repeat,
			Reply:   fmt.Sprintf("I already have that reminder. Reference `%s`", existing.ID),
		}, nil
	}

	if err := d.opts.Reminders.Create(ctx, reminder); err != nil {
		return Result{}, fmt.Errorf("failed to create reminder: %w", err)
	}
	d.opts.Logger.Info("created reminder", "reminder", reminder.ID, "date", reminder.Date, "advance", advance)
	if d.opts.OnReminderAdded != nil {
		d.opts.OnReminderAdded()
	}

	var advanceText string
	if advance {
		advanceText = fmt.Sprintf(" with %d minute reminder", d.opts.Config.Reminders.AdvanceMinutes)
	}
	res := Result{
		Outcome: models.Success,
		Reply: fmt.Sprintf("Added reminder '%s' at %s%s. Reference `%s`",
			notes, date.In(loc).Format("Mon 15:04:05"), advanceText, reminder.ID),
	}
	if d.opts.Config.Reminders.RequireApproval && d.opts.Approvals != nil {
		res.Reply += fmt.Sprintf("\nReact with %s to confirm.", d.opts.Config.Reactions.Approval)
		res.OnSent = func(ctx context.Context, ref chat.MessageRef) {
			d.opts.Approvals.Watch(ctx, models.PendingApproval{
				ChannelID:   ref.ChannelID,
				MessageID:   ref.MessageID,
				RecordTable: repository.RemindersTable,
				RecordID:    reminder.ID,
				AuthorID:    msg.Author.ID,
				CreatedAt:   now,
			})
		}
	}
	return res, nil
}
