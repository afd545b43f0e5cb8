package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/hray3182/tildy/internal/chat"
	"github.com/hray3182/tildy/internal/models"
	"github.com/hray3182/tildy/internal/rrule"
	"github.com/hray3182/tildy/internal/triggers"
)

const scheduleLayout = "Mon 15:04:05 MST"

// upcomingMeals is how many future meal reminders are listed per guild.
const upcomingMeals = 3

// jobSchedule lists the scheduler's jobs, the next meal reminders per guild
// and the pending one-off reminders.
func (d *Dispatcher) jobSchedule(ctx context.Context, msg *chat.Message, m triggers.Match) (Result, error) {
	now := d.opts.Now()
	var sb strings.Builder

	sb.WriteString("Regular jobs:\n")
	if d.opts.Schedule != nil {
		for _, job := range d.opts.Schedule.Jobs() {
			fmt.Fprintf(&sb, "- `%s` next running at %s\n", job.Name, job.Next.In(now.Location()).Format(scheduleLayout))
		}
	}

	for _, t := range d.targets {
		next, err := rrule.NextMealTimes(t.Hours, t.Location, now, upcomingMeals)
		if err != nil {
			return Result{}, err
		}
		if len(next) == 0 {
			continue
		}
		rule := rrule.HumanReadable(rrule.DailyAt(t.Hours).String())
		times := make([]string, len(next))
		for i, at := range next {
			times[i] = at.Format("Mon 15:04 MST")
		}
		fmt.Fprintf(&sb, "- Meal reminders for %s (%s, %s): %s\n", t.GuildID, rule, t.Location, strings.Join(times, ", "))
	}

	if d.opts.Pending != nil {
		reminders, err := d.opts.Pending.Pending(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("failed to list reminders: %w", err)
		}
		if len(reminders) > 0 {
			sb.WriteString("Reminder jobs:\n")
			for _, r := range reminders {
				fmt.Fprintf(&sb, "- `%s` running at %s. Ref `%s`\n", r.Notes, r.Date.In(now.Location()).Format(scheduleLayout), r.ID)
			}
		}
	}

	fmt.Fprintf(&sb, "%s time is %s", d.opts.Config.Bot.Name, now.Format("15:04:05 MST"))
	return Result{Outcome: models.Success, Reply: sb.String()}, nil
}
