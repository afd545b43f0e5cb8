package models

import (
	"fmt"
	"time"
)

// GuildReminderTarget is where and when meal reminders are posted for one guild.
type GuildReminderTarget struct {
	GuildID   string
	ChannelID string
	Location  *time.Location
	Hours     []int
}

// Key identifies the target in the firing log.
func (g GuildReminderTarget) Key() string {
	return g.GuildID + ":" + g.ChannelID
}

// LocalDate is the calendar date of t in the target's zone.
func (g GuildReminderTarget) LocalDate(t time.Time) string {
	return t.In(g.Location).Format(time.DateOnly)
}

// DueHour reports whether configured hour h should fire at the local time of t.
// An hour skipped by a DST gap is due during the first hour after the gap.
func (g GuildReminderTarget) DueHour(t time.Time, h int) bool {
	local := t.In(g.Location)
	if local.Hour() == h {
		return true
	}
	if g.hourExists(local, h) {
		return false
	}
	for next := h + 1; next < 24; next++ {
		if g.hourExists(local, next) {
			return local.Hour() == next
		}
	}
	return false
}

func (g GuildReminderTarget) hourExists(local time.Time, h int) bool {
	y, m, d := local.Date()
	return time.Date(y, m, d, h, 0, 0, 0, g.Location).Hour() == h
}

// SinceHourStart is how far t is into its local wall-clock hour.
func (g GuildReminderTarget) SinceHourStart(t time.Time) time.Duration {
	local := t.In(g.Location)
	return time.Duration(local.Minute())*time.Minute +
		time.Duration(local.Second())*time.Second +
		time.Duration(local.Nanosecond())
}

func (g GuildReminderTarget) Validate() error {
	if g.ChannelID == "" {
		return fmt.Errorf("guild %s: no channel", g.GuildID)
	}
	if g.Location == nil {
		return fmt.Errorf("guild %s: no timezone", g.GuildID)
	}
	for _, h := range g.Hours {
		if h < 0 || h > 23 {
			return fmt.Errorf("guild %s: hour %d out of range", g.GuildID, h)
		}
	}
	return nil
}

// FiredLog records, per target key and configured hour, the local calendar
// date on which that hour last fired.
type FiredLog map[string]map[int]string

func (f FiredLog) Fired(key string, hour int, localDate string) bool {
	return f[key][hour] == localDate
}

func (f FiredLog) Mark(key string, hour int, localDate string) {
	if f[key] == nil {
		f[key] = make(map[int]string)
	}
	f[key][hour] = localDate
}
