package triggers

import (
	"errors"
	"sync"
	"testing"

	"github.com/hray3182/tildy/internal/config"
)

func defaultRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := Compile(config.Default().Triggers, Identity{Mention: "@tildy_bot", Name: "Tildy"})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return reg
}

func TestMealTimeScenarios(t *testing.T) {
	reg := defaultRegistry(t)
	tests := []struct {
		text string
		want bool
	}{
		{"!meal", true},
		{"!mealtime", true},
		{"!mealtimes", true},
		{"!MEAL", true},
		{"  !Meals  ", true},
		{"I ate a meal", false},
		{"what about !meal", false},
		{"!meal please", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := reg.Match(tt.text, config.TriggerMealTime); got != tt.want {
			t.Errorf("Match(%q, meal_time) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestPrefixMatch(t *testing.T) {
	reg := defaultRegistry(t)
	if !reg.Match("!times for everyone", config.TriggerTimezones) {
		t.Error("!times should match as a prefix")
	}
	if !reg.Match("!time", config.TriggerTimezones) {
		t.Error("!time should match")
	}
	if reg.Match("show !times", config.TriggerTimezones) {
		t.Error("mid-sentence trigger should not match")
	}
}

func TestPlaceholders(t *testing.T) {
	reg := defaultRegistry(t)
	for _, text := range []string{"Not now, Tildy", "not now @tildy_bot!", "(Wrong party, tildy.)"} {
		if !reg.Match(text, config.TriggerRemoveReactions) {
			t.Errorf("%q should match remove_reactions", text)
		}
	}
	if reg.Match("Not now, Botto", config.TriggerRemoveReactions) {
		t.Error("another bot's name should not match")
	}
}

func TestFindGroups(t *testing.T) {
	reg := defaultRegistry(t)
	m, ok := reg.Find("!bottoyellatBob. go to bed", config.TriggerYell)
	if !ok {
		t.Fatal("yell should match")
	}
	if m.Group("person") != "Bob" || m.Group("text") != "go to bed" {
		t.Errorf("groups = %v", m.Groups)
	}

	m, ok = reg.Find("!bottoyellat", config.TriggerYell)
	if !ok {
		t.Fatal("yell without args should match")
	}
	if m.Group("person") != "" || m.Group("text") != "" {
		t.Errorf("groups = %v", m.Groups)
	}
}

func TestFirstPatternWins(t *testing.T) {
	reg, err := Compile(map[string][]string{
		"greet": {`hello (?P<who>\w+)`, `hello (?P<whom>.*)`},
	}, Identity{})
	if err != nil {
		t.Fatal(err)
	}
	m, ok := reg.Find("hello world", "greet")
	if !ok || m.Group("who") != "world" {
		t.Fatalf("m = %+v", m)
	}
	if _, ok := m.Groups["whom"]; ok {
		t.Error("second pattern should not have been used")
	}
}

func TestEmptyAndUnknownSets(t *testing.T) {
	reg, err := Compile(map[string][]string{"empty": nil}, Identity{})
	if err != nil {
		t.Fatal(err)
	}
	if reg.Match("anything", "empty") {
		t.Error("empty set must never match")
	}
	if reg.Match("anything", "missing") {
		t.Error("unknown set must never match")
	}
	if !reg.Has("empty") || reg.Has("missing") {
		t.Error("Has reports wrong membership")
	}
}

func TestCompileInvalidPattern(t *testing.T) {
	_, err := Compile(map[string][]string{"bad": {"("}}, Identity{})
	var cfgErr *config.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("err = %v, want *ConfigError", err)
	}
	if cfgErr.Field != "triggers.bad[0]" {
		t.Errorf("field = %q", cfgErr.Field)
	}
}

func TestConcurrentMatch(t *testing.T) {
	reg := defaultRegistry(t)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if !reg.Match("!meal", config.TriggerMealTime) {
					t.Error("lost a match under concurrency")
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestCompileSearchMatchesAnywhere(t *testing.T) {
	cfg := config.Default()
	reg, err := CompileSearch(cfg.PatternSets(), Identity{Mention: "@tildy_bot", Name: "Tildy"})
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		text string
		set  string
		want bool
	}{
		{"ok everyone, gives Tildy a hug", "hug", true},
		{"I love you @tildy_bot", "love", true},
		{"time to PARTY", "party", true},
		{"the third-party api", "party", false},
		{"good bot", "good bot", true},
		{"not a good bot at all", "good bot", false},
		{"who wants hot dogs", "hotdog", true},
	}
	for _, tt := range tests {
		if got := reg.Match(tt.text, tt.set); got != tt.want {
			t.Errorf("Match(%q, %q) = %v, want %v", tt.text, tt.set, got, tt.want)
		}
	}

	_, err = CompileSearch(map[string][]string{"bad": {"("}}, Identity{})
	var cfgErr *config.ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Field != "pattern_reactions.bad[0]" {
		t.Fatalf("err = %v", err)
	}
}
