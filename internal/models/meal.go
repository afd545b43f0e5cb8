package models

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"time"
)

// TimeOfDay is a wall-clock time measured in seconds since local midnight.
type TimeOfDay int

var timeOfDayPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::(\d{2}))?(Z|[+-]\d{2}:?\d{2})?$`)

// ParseTimeOfDay accepts HH:MM or HH:MM:SS with an optional Z or ±HH:MM suffix.
// The suffix is validated but windows are always matched on local wall-clock time.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	m := timeOfDayPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	sec := 0
	if m[3] != "" {
		sec, _ = strconv.Atoi(m[3])
	}
	if h > 23 || min > 59 || sec > 59 {
		return 0, fmt.Errorf("time of day %q out of range", s)
	}
	if off := m[4]; off != "" && off != "Z" {
		oh, _ := strconv.Atoi(off[1:3])
		if oh > 14 {
			return 0, fmt.Errorf("offset in %q out of range", s)
		}
	}
	return TimeOfDay(h*3600 + min*60 + sec), nil
}

// ClockOf returns the wall-clock time of t in its own location.
func ClockOf(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return TimeOfDay(h*3600 + m*60 + s)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/3600, int(t)%3600/60)
}

var ErrEmptyWindow = errors.New("meal window start equals end")

// MealWindow is a named local time-of-day range with candidate reminder texts.
// A window whose end is before its start wraps past midnight.
type MealWindow struct {
	Name  string
	Start TimeOfDay
	End   TimeOfDay
	Texts []string
}

func NewMealWindow(name, start, end string, texts []string) (MealWindow, error) {
	s, err := ParseTimeOfDay(start)
	if err != nil {
		return MealWindow{}, err
	}
	e, err := ParseTimeOfDay(end)
	if err != nil {
		return MealWindow{}, err
	}
	if s == e {
		return MealWindow{}, fmt.Errorf("%s: %w", name, ErrEmptyWindow)
	}
	return MealWindow{Name: name, Start: s, End: e, Texts: texts}, nil
}

func (w MealWindow) Contains(t TimeOfDay) bool {
	if w.Start < w.End {
		return t >= w.Start && t < w.End
	}
	return t >= w.Start || t < w.End
}

// SortWindows orders windows by start time, then name, so overlapping
// windows resolve deterministically.
func SortWindows(windows []MealWindow) {
	sort.SliceStable(windows, func(i, j int) bool {
		if windows[i].Start != windows[j].Start {
			return windows[i].Start < windows[j].Start
		}
		return windows[i].Name < windows[j].Name
	})
}

// FindWindow returns the first window in order that brackets the wall-clock time of t.
func FindWindow(windows []MealWindow, t time.Time) (MealWindow, bool) {
	clock := ClockOf(t)
	for _, w := range windows {
		if w.Contains(clock) {
			return w, true
		}
	}
	return MealWindow{}, false
}
