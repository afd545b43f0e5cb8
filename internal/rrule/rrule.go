package rrule

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// NextOccurrences returns up to count occurrences of rule strictly after the
// given time.
func NextOccurrences(rule *rrule.RRule, after time.Time, count int) []time.Time {
	var results []time.Time
	next := rule.After(after, false)
	for !next.IsZero() && len(results) < count {
		results = append(results, next)
		next = rule.After(next, false)
	}
	return results
}

// RRuleBuilder creates an RRULE string from components.
type RRuleBuilder struct {
	Freq     rrule.Frequency
	Interval int
	ByHour   []int
	ByMinute []int
	Count    int
}

const FreqDaily = rrule.DAILY

// DailyAt is a rule firing every day on the hour at each of hours.
func DailyAt(hours []int) *RRuleBuilder {
	hs := slices.Clone(hours)
	slices.Sort(hs)
	return &RRuleBuilder{Freq: FreqDaily, ByHour: slices.Compact(hs), ByMinute: []int{0}}
}

func (b *RRuleBuilder) Build(dtstart time.Time) (*rrule.RRule, error) {
	opt := rrule.ROption{
		Freq:     b.Freq,
		Interval: b.Interval,
		Dtstart:  dtstart,
		Byhour:   b.ByHour,
		Byminute: b.ByMinute,
		Count:    b.Count,
	}
	if len(b.ByMinute) > 0 {
		opt.Bysecond = []int{0}
	}
	return rrule.NewRRule(opt)
}

func (b *RRuleBuilder) String() string {
	var parts []string

	freqMap := map[rrule.Frequency]string{
		rrule.HOURLY: "HOURLY",
		rrule.DAILY:  "DAILY",
	}
	parts = append(parts, fmt.Sprintf("FREQ=%s", freqMap[b.Freq]))

	if b.Interval > 1 {
		parts = append(parts, fmt.Sprintf("INTERVAL=%d", b.Interval))
	}
	if len(b.ByHour) > 0 {
		parts = append(parts, "BYHOUR="+joinInts(b.ByHour))
	}
	if len(b.ByMinute) > 0 {
		parts = append(parts, "BYMINUTE="+joinInts(b.ByMinute))
	}
	if b.Count > 0 {
		parts = append(parts, fmt.Sprintf("COUNT=%d", b.Count))
	}
	return strings.Join(parts, ";")
}

func joinInts(vals []int) string {
	s := make([]string, len(vals))
	for i, v := range vals {
		s[i] = strconv.Itoa(v)
	}
	return strings.Join(s, ",")
}

// NextMealTimes lists the next count reminder times for hours in loc after
// the given instant. Times are in loc.
func NextMealTimes(hours []int, loc *time.Location, after time.Time, count int) ([]time.Time, error) {
	if len(hours) == 0 || count <= 0 {
		return nil, nil
	}
	local := after.In(loc)
	dtstart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	rule, err := DailyAt(hours).Build(dtstart)
	if err != nil {
		return nil, fmt.Errorf("failed to build meal rule: %w", err)
	}

	results := NextOccurrences(rule, after, count)
	for i := range results {
		results[i] = results[i].In(loc)
	}
	return results, nil
}

// HumanReadable returns a short English description of the RRULE.
func HumanReadable(ruleStr string) string {
	ruleStr = strings.TrimPrefix(ruleStr, "RRULE:")

	info := make(map[string]string)
	for _, p := range strings.Split(ruleStr, ";") {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) == 2 {
			info[kv[0]] = kv[1]
		}
	}

	var result strings.Builder

	unit := map[string]string{"HOURLY": "hour", "DAILY": "day"}[info["FREQ"]]
	if unit == "" {
		return "once"
	}
	if interval := info["INTERVAL"]; interval == "" || interval == "1" {
		result.WriteString("every " + unit)
	} else {
		result.WriteString(fmt.Sprintf("every %s %ss", interval, unit))
	}

	if byHour := info["BYHOUR"]; byHour != "" {
		minute, _ := strconv.Atoi(info["BYMINUTE"])
		var clocks []string
		for _, h := range strings.Split(byHour, ",") {
			hour, err := strconv.Atoi(h)
			if err != nil {
				continue
			}
			clocks = append(clocks, fmt.Sprintf("%02d:%02d", hour, minute))
		}
		result.WriteString(" at " + strings.Join(clocks, ", "))
	}

	if count := info["COUNT"]; count != "" {
		result.WriteString(fmt.Sprintf(", %s times", count))
	}
	return result.String()
}
