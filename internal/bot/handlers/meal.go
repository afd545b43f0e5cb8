package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/hray3182/tildy/internal/chat"
	"github.com/hray3182/tildy/internal/models"
	"github.com/hray3182/tildy/internal/triggers"
)

// zones are the configured display zones, or the message's guild zone when
// none are configured.
func (d *Dispatcher) zones(msg *chat.Message) []*time.Location {
	if len(d.locations) > 0 {
		return d.locations
	}
	return []*time.Location{d.zoneFor(msg)}
}

type mealGroup struct {
	name  string
	zones []string
	text  string
}

// mealTime replies with the meals currently due, one line per meal listing
// the zones it is due in.
func (d *Dispatcher) mealTime(ctx context.Context, msg *chat.Message, m triggers.Match) (Result, error) {
	now := d.opts.Now()

	var groups []*mealGroup
	byName := make(map[string]*mealGroup)
	for _, loc := range d.zones(msg) {
		w, ok := models.FindWindow(d.windows, now.In(loc))
		if !ok || len(w.Texts) == 0 {
			continue
		}
		g, ok := byName[w.Name]
		if !ok {
			g = &mealGroup{name: w.Name, text: w.Texts[d.opts.Pick(len(w.Texts))]}
			byName[w.Name] = g
			groups = append(groups, g)
		}
		g.zones = append(g.zones, loc.String())
	}

	lines := []string{d.opts.Config.Meals.ReminderText}
	for _, g := range groups {
		lines = append(lines, strings.Join(g.zones, " & ")+", "+g.text)
	}
	return Result{Outcome: models.Success, Reply: strings.Join(lines, "\n")}, nil
}

// timezones replies with the local time in each zone.
func (d *Dispatcher) timezones(ctx context.Context, msg *chat.Message, m triggers.Match) (Result, error) {
	now := d.opts.Now()

	var lines []string
	for _, loc := range d.zones(msg) {
		lines = append(lines, now.In(loc).Format("MST (-0700): Mon 15:04:05"))
	}
	return Result{Outcome: models.Success, Reply: strings.Join(lines, "\n")}, nil
}
