package rrule

import (
	"testing"
	"time"
	_ "time/tzdata"
)

func TestDailyAtString(t *testing.T) {
	got := DailyAt([]int{18, 8, 13, 8}).String()
	want := "FREQ=DAILY;BYHOUR=8,13,18;BYMINUTE=0"
	if got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestHumanReadable(t *testing.T) {
	tests := []struct {
		rule string
		want string
	}{
		{"FREQ=DAILY;BYHOUR=8,13,18;BYMINUTE=0", "every day at 08:00, 13:00, 18:00"},
		{"RRULE:FREQ=HOURLY;INTERVAL=2", "every 2 hours"},
		{"FREQ=DAILY;BYHOUR=7;BYMINUTE=30;COUNT=3", "every day at 07:30, 3 times"},
		{"", "once"},
	}
	for _, tt := range tests {
		if got := HumanReadable(tt.rule); got != tt.want {
			t.Errorf("HumanReadable(%q) = %q, want %q", tt.rule, got, tt.want)
		}
	}
}

func TestNextMealTimes(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatal(err)
	}
	// 10:30 JST
	after := time.Date(2026, 6, 1, 1, 30, 0, 0, time.UTC)
	got, err := NextMealTimes([]int{8, 13, 20}, tokyo, after, 4)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"2026-06-01 13:00 JST",
		"2026-06-01 20:00 JST",
		"2026-06-02 08:00 JST",
		"2026-06-02 13:00 JST",
	}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if s := got[i].Format("2006-01-02 15:04 MST"); s != want[i] {
			t.Errorf("[%d] = %s, want %s", i, s, want[i])
		}
	}
}

func TestNextMealTimesEmpty(t *testing.T) {
	got, err := NextMealTimes(nil, time.UTC, time.Now(), 3)
	if err != nil || got != nil {
		t.Fatalf("got %v, %v", got, err)
	}
}

func TestNextOccurrences(t *testing.T) {
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	rule, err := (&RRuleBuilder{Freq: FreqDaily, Count: 3}).Build(start)
	if err != nil {
		t.Fatal(err)
	}
	got := NextOccurrences(rule, start, 5)
	if len(got) != 2 || !got[0].Equal(start.AddDate(0, 0, 1)) {
		t.Fatalf("got %v", got)
	}
	if got := NextOccurrences(rule, start, 1); len(got) != 1 {
		t.Fatalf("count not honoured: %v", got)
	}
}
