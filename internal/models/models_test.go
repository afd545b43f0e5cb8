package models

import (
	"errors"
	"testing"
	"time"
	_ "time/tzdata"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{"06:00", 6 * 3600, false},
		{"7:30", 7*3600 + 30*60, false},
		{"10:00:15", 10*3600 + 15, false},
		{"06:00Z", 6 * 3600, false},
		{"06:00+01:00", 6 * 3600, false},
		{"23:59-0500", 23*3600 + 59*60, false},
		{"24:00", 0, true},
		{"06:60", 0, true},
		{"noon", 0, true},
		{"06:00+15:00", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseTimeOfDay(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTimeOfDay(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseTimeOfDay(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestMealWindowContains(t *testing.T) {
	breakfast, err := NewMealWindow("breakfast", "06:00", "10:00", nil)
	if err != nil {
		t.Fatal(err)
	}
	late, err := NewMealWindow("midnight_snack", "23:00", "01:00", nil)
	if err != nil {
		t.Fatal(err)
	}

	tod := func(s string) TimeOfDay {
		v, err := ParseTimeOfDay(s)
		if err != nil {
			t.Fatal(err)
		}
		return v
	}

	if !breakfast.Contains(tod("07:30")) {
		t.Error("07:30 should be breakfast")
	}
	if breakfast.Contains(tod("10:00")) {
		t.Error("end is exclusive")
	}
	if breakfast.Contains(tod("11:00")) {
		t.Error("11:00 should not be breakfast")
	}
	if !late.Contains(tod("23:30")) || !late.Contains(tod("00:30")) {
		t.Error("wrapping window should contain both sides of midnight")
	}
	if late.Contains(tod("12:00")) {
		t.Error("wrapping window should not contain midday")
	}
}

func TestNewMealWindowRejectsEmpty(t *testing.T) {
	_, err := NewMealWindow("never", "08:00", "08:00", nil)
	if !errors.Is(err, ErrEmptyWindow) {
		t.Fatalf("err = %v, want ErrEmptyWindow", err)
	}
}

func TestFindWindowOrder(t *testing.T) {
	a, _ := NewMealWindow("lunch", "11:00", "14:00", nil)
	b, _ := NewMealWindow("brunch", "10:00", "12:00", nil)
	c, _ := NewMealWindow("elevenses", "11:00", "11:30", nil)
	windows := []MealWindow{a, b, c}
	SortWindows(windows)

	at := time.Date(2026, 1, 5, 11, 15, 0, 0, time.UTC)
	w, ok := FindWindow(windows, at)
	if !ok || w.Name != "brunch" {
		t.Fatalf("got %q, want brunch", w.Name)
	}

	at = time.Date(2026, 1, 5, 12, 30, 0, 0, time.UTC)
	w, ok = FindWindow(windows, at)
	if !ok || w.Name != "lunch" {
		t.Fatalf("got %q, want lunch", w.Name)
	}

	at = time.Date(2026, 1, 5, 20, 0, 0, 0, time.UTC)
	if _, ok := FindWindow(windows, at); ok {
		t.Fatal("no window should match 20:00")
	}
}

func TestDueHourAcrossDST(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}
	g := GuildReminderTarget{GuildID: "g", ChannelID: "c", Location: ny}

	// 2026-03-08 02:00 does not exist in New York; 03:00 EDT is 07:00Z.
	at := time.Date(2026, 3, 8, 7, 5, 0, 0, time.UTC)
	if !g.DueHour(at, 2) {
		t.Error("hour 2 should be due at 03:05 EDT on the spring-forward day")
	}
	if !g.DueHour(at, 3) {
		t.Error("hour 3 should be due at 03:05 EDT")
	}
	// 01:30 EST, before the gap.
	if g.DueHour(time.Date(2026, 3, 8, 6, 30, 0, 0, time.UTC), 2) {
		t.Error("hour 2 should not be due before the gap")
	}
	// On an ordinary day hour 2 is only due at 02:xx.
	if g.DueHour(time.Date(2026, 3, 9, 7, 5, 0, 0, time.UTC), 2) {
		t.Error("hour 2 should not be due at 03:05 on a normal day")
	}
}

func TestApprovalTransitions(t *testing.T) {
	now := time.Now()
	p := PendingApproval{ID: "c/1", Status: StatusPending, Deadline: now.Add(time.Hour)}
	if p.Due(now) {
		t.Fatal("not due before deadline")
	}
	if !p.Due(now.Add(time.Hour)) {
		t.Fatal("due at deadline")
	}
	if err := p.Expire(now); err != nil {
		t.Fatal(err)
	}
	if err := p.Approve(now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("approve after expire: err = %v", err)
	}
	if p.Status != StatusExpired {
		t.Fatalf("status = %s", p.Status)
	}
}

func TestReactionVocabularyGlyph(t *testing.T) {
	v := DefaultReactions()
	if _, ok := v.Glyph(NoMatch); ok {
		t.Error("NoMatch should have no glyph")
	}
	if g, ok := v.Glyph(Error); !ok || g != v.Error {
		t.Errorf("Error glyph = %q", g)
	}
	v.Repeat = ""
	if _, ok := v.Glyph(Repeat); ok {
		t.Error("empty glyph should report false")
	}
}
