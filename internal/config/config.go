package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hray3182/tildy/internal/chat/telegram"
	"github.com/hray3182/tildy/internal/models"
)

// ConfigError is a fatal problem with the loaded configuration.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Message)
}

// Trigger set names the dispatcher routes on.
const (
	TriggerMealTime        = "meal_time"
	TriggerTimezones       = "timezones"
	TriggerJobSchedule     = "job_schedule"
	TriggerYell            = "yell"
	TriggerReminderExplain = "reminder_explain"
	TriggerRemoveReactions = "remove_reactions"
	TriggerAddReminder     = "add_reminder"
)

// RequiredTriggers must be defined in triggers (possibly empty).
var RequiredTriggers = []string{TriggerMealTime, TriggerTimezones, TriggerJobSchedule}

type Config struct {
	Bot                        BotConfig                 `yaml:"bot"`
	Channels                   ChannelsConfig            `yaml:"channels"`
	Reactions                  models.ReactionVocabulary `yaml:"reactions"`
	Triggers                   map[string][]string       `yaml:"triggers"`
	AtTriggers                 map[string][]string       `yaml:"at_triggers"`
	PatternReactions           []PatternReaction         `yaml:"pattern_reactions"`
	Timezones                  []string                  `yaml:"timezones"`
	Meals                      MealsConfig               `yaml:"meals"`
	ShouldReply                bool                      `yaml:"should_reply"`
	DeleteUnapprovedAfterHours int                       `yaml:"delete_unapproved_after_hours"`
	Approvals                  ApprovalsConfig           `yaml:"approvals"`
	Reminders                  RemindersConfig           `yaml:"reminders"`
	Storage                    StorageConfig             `yaml:"storage"`
	HTTP                       HTTPConfig                `yaml:"http"`
	Log                        LogConfig                 `yaml:"log"`
	Scheduler                  SchedulerConfig           `yaml:"scheduler"`

	TelegramToken string `yaml:"-"`
	AIAPIKey      string `yaml:"-"`
	AIBaseURL     string `yaml:"-"`
	AIModel       string `yaml:"-"`
}

type BotConfig struct {
	Name string `yaml:"name"`
}

type ChannelsConfig struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

// PatternReaction reacts with one of Reactions to any message that Trigger
// matches anywhere in its text.
type PatternReaction struct {
	Name          string   `yaml:"name"`
	Trigger       string   `yaml:"trigger"`
	Reactions     []string `yaml:"reactions"`
	ExcludeGuilds []string `yaml:"exclude_guilds"`
}

type MealTimeConfig struct {
	Start string   `yaml:"start"`
	End   string   `yaml:"end"`
	Text  []string `yaml:"text"`
}

type GuildConfig struct {
	ID                string `yaml:"id"`
	Channel           string `yaml:"channel"`
	Timezone          string `yaml:"timezone"`
	AutoReminderHours []int  `yaml:"auto_reminder_hours"`
}

type MealsConfig struct {
	AutoReminderHours []int                     `yaml:"auto_reminder_hours"`
	Timezone          string                    `yaml:"timezone"`
	Guilds            []GuildConfig             `yaml:"guilds"`
	Times             map[string]MealTimeConfig `yaml:"times"`
	ReminderText      string                    `yaml:"reminder_text"`
	PreviousToKeep    int                       `yaml:"previous_to_keep"`
	RequireApproval   bool                      `yaml:"require_approval"`
}

type ApprovalsConfig struct {
	Approvers        []string `yaml:"approvers"`
	AuthorCanApprove bool     `yaml:"author_can_approve"`
}

type RemindersConfig struct {
	Channel         string `yaml:"channel"`
	Timezone        string `yaml:"timezone"`
	AdvanceMinutes  int    `yaml:"advance_minutes"`
	RequireApproval bool   `yaml:"require_approval"`
}

type StorageConfig struct {
	// Driver is postgres, sqlite or memory.
	Driver      string `yaml:"driver"`
	DSN         string `yaml:"dsn"`
	RedisURL    string `yaml:"redis_url"`
	FiredLogTTL string `yaml:"fired_log_ttl"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Debug bool   `yaml:"debug"`
	Dir   string `yaml:"dir"`
}

type SchedulerConfig struct {
	TickInterval string `yaml:"tick_interval"`
}

// Default returns the configuration used for keys absent from the file.
func Default() *Config {
	return &Config{
		Bot:       BotConfig{Name: "Tildy"},
		Reactions: models.DefaultReactions(),
		Triggers: map[string][]string{
			TriggerMealTime:        {`!meal(?:time)?s?$`},
			TriggerTimezones:       {`!times?`},
			TriggerJobSchedule:     {`!schedule`},
			TriggerYell:            {`!bottoyellat(?P<person>[^.]*)(?:\.(?P<text>.*))?`},
			TriggerReminderExplain: {`!remind(?:er)? (?P<timestamp>[^.]*)\.(?P<text>.*)`},
			TriggerRemoveReactions: {
				`\(?Not now,?\s+(?:{bot_name}|{bot_id})[.!]?\)?$`,
				`\(?Wrong party,?\s+(?:{bot_name}|{bot_id})[.!]?\)?$`,
			},
		},
		AtTriggers: map[string][]string{
			TriggerAddReminder: {`!remind(?:er)? (?P<timestamp>[^.]*)\.(?P<text>.*)`},
		},
		PatternReactions: DefaultPatternReactions(),
		Meals:            MealsConfig{
			AutoReminderHours: []int{8, 13, 18, 20, 1},
			Timezone:          "UTC",
			ReminderText:      "Have you eaten?",
			PreviousToKeep:    2,
		},
		ShouldReply:                true,
		DeleteUnapprovedAfterHours: 24,
		Approvals:                  ApprovalsConfig{AuthorCanApprove: true},
		Reminders:                  RemindersConfig{AdvanceMinutes: 15, Timezone: "UTC"},
		Storage:                    StorageConfig{Driver: "sqlite", DSN: "data/tildy.db", FiredLogTTL: "48h"},
		HTTP:                       HTTPConfig{Addr: ":9090"},
		Log:                        LogConfig{Dir: "logs"},
		Scheduler:                  SchedulerConfig{TickInterval: "1m"},
	}
}

// DefaultPatternReactions are the built-in chatter reactions, limited to
// glyphs Telegram accepts.
func DefaultPatternReactions() []PatternReaction {
	return []PatternReaction{
		{Name: "sorry", Trigger: `sorry,?\s+(?:{bot_id}|{bot_name})`, Reactions: []string{"❤", "🥰", "🤗"}},
		{Name: "love", Trigger: `(?:i )?love(?: you,?)? (?:{bot_id}|{bot_name})`, Reactions: []string{"❤", "🥰", "😍", "💘", "😘"}},
		{Name: "hug", Trigger: `hugs? (?:{bot_id}|{bot_name})|gives (?:{bot_id}|{bot_name}) a?\s?hugs?`, Reactions: []string{"🤗"}},
		{Name: "goodnight", Trigger: `good\s?night\s+(?:{bot_id}|{bot_name})`, Reactions: []string{"😴"}},
		{Name: "complaint", Trigger: `(?:{bot_name}.?\s+come\.?\s+on|come\.?\s+on\s+{bot_name})`, Reactions: []string{"🤷"}},
		{Name: "good bot", Trigger: `^\s*good\s*bot\s*$`, Reactions: []string{"😇"}},
		{Name: "party", Trigger: `(?:^|\s)part(?:a*y|ies)`, Reactions: []string{"🎉", "🍾", "💯"}},
		{Name: "off-topic", Trigger: `off(?: +|-)topic`, Reactions: []string{"🤣", "🤪"}},
		{Name: "outage", Trigger: `outage`, Reactions: []string{"🤯"}},
		{Name: "hotdog", Trigger: `hot\s?dogs?`, Reactions: []string{"🌭"}},
		{Name: "banana", Trigger: `bananas?`, Reactions: []string{"🍌"}},
		{Name: "strawberry", Trigger: `strawberr(?:y|ies)`, Reactions: []string{"🍓"}},
	}
}

// PatternSets returns the pattern reaction triggers keyed by name, ready for
// compilation.
func (c *Config) PatternSets() map[string][]string {
	sets := make(map[string][]string, len(c.PatternReactions))
	for _, p := range c.PatternReactions {
		sets[p.Name] = []string{p.Trigger}
	}
	return sets
}

// Load reads .env (optional), the YAML file at path (optional when it does not
// exist), applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// .env file is optional in production
	}

	cfg := Default()
	if path == "" {
		path = getEnvOrDefault("TILDY_CONFIG", "config.yaml")
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, &ConfigError{Field: path, Message: err.Error()}
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	c.AIAPIKey = os.Getenv("AI_API_KEY")
	c.AIBaseURL = getEnvOrDefault("AI_BASE_URL", "https://openrouter.ai/api/v1")
	c.AIModel = getEnvOrDefault("AI_MODEL", "openai/gpt-4o-mini")
	if uri := os.Getenv("DATABASE_URI"); uri != "" {
		c.Storage.Driver = "postgres"
		c.Storage.DSN = uri
	}
	if url := os.Getenv("REDIS_URL"); url != "" {
		c.Storage.RedisURL = url
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Validate checks everything that would otherwise fail at runtime.
func (c *Config) Validate() error {
	for _, name := range RequiredTriggers {
		if _, ok := c.Triggers[name]; !ok {
			return &ConfigError{Field: "triggers." + name, Message: "trigger set is not defined"}
		}
	}
	if err := validatePatterns("triggers", c.Triggers); err != nil {
		return err
	}
	if err := validatePatterns("at_triggers", c.AtTriggers); err != nil {
		return err
	}
	for _, zone := range c.Timezones {
		if _, err := time.LoadLocation(zone); err != nil {
			return &ConfigError{Field: "timezones", Message: fmt.Sprintf("unknown zone %q", zone)}
		}
	}
	if _, err := c.MealWindows(); err != nil {
		return err
	}
	if _, err := c.ReminderTargets(); err != nil {
		return err
	}
	if _, err := time.LoadLocation(c.Reminders.Timezone); err != nil {
		return &ConfigError{Field: "reminders.timezone", Message: fmt.Sprintf("unknown zone %q", c.Reminders.Timezone)}
	}
	if c.DeleteUnapprovedAfterHours <= 0 {
		return &ConfigError{Field: "delete_unapproved_after_hours", Message: "must be positive"}
	}
	if c.Meals.PreviousToKeep < 0 {
		return &ConfigError{Field: "meals.previous_to_keep", Message: "must not be negative"}
	}
	if c.Reminders.AdvanceMinutes < 0 {
		return &ConfigError{Field: "reminders.advance_minutes", Message: "must not be negative"}
	}
	if c.Reactions.Approval == "" {
		return &ConfigError{Field: "reactions.approval", Message: "approval glyph is required"}
	}
	if err := c.validateReactions(); err != nil {
		return err
	}
	if err := c.validatePatternReactions(); err != nil {
		return err
	}
	switch c.Storage.Driver {
	case "postgres", "sqlite", "memory":
	default:
		return &ConfigError{Field: "storage.driver", Message: fmt.Sprintf("unsupported driver %q", c.Storage.Driver)}
	}
	if _, err := c.TickInterval(); err != nil {
		return err
	}
	if _, err := c.FiredLogTTL(); err != nil {
		return err
	}
	return nil
}

// validateReactions rejects outcome glyphs the chat platform cannot set.
func (c *Config) validateReactions() error {
	glyphs := []struct{ field, glyph string }{
		{"reactions.success", c.Reactions.Success},
		{"reactions.repeat", c.Reactions.Repeat},
		{"reactions.unknown", c.Reactions.Unknown},
		{"reactions.reject", c.Reactions.Rejected},
		{"reactions.skynet", c.Reactions.Error},
		{"reactions.approval", c.Reactions.Approval},
	}
	for _, g := range glyphs {
		if g.glyph != "" && !telegram.ValidReaction(g.glyph) {
			return &ConfigError{Field: g.field, Message: fmt.Sprintf("%q is not an allowed reaction", g.glyph)}
		}
	}
	return nil
}

func (c *Config) validatePatternReactions() error {
	seen := make(map[string]bool, len(c.PatternReactions))
	for i, p := range c.PatternReactions {
		field := fmt.Sprintf("pattern_reactions[%d]", i)
		if p.Name == "" {
			return &ConfigError{Field: field + ".name", Message: "name is required"}
		}
		if seen[p.Name] {
			return &ConfigError{Field: field + ".name", Message: fmt.Sprintf("duplicate pattern %q", p.Name)}
		}
		seen[p.Name] = true
		if p.Trigger == "" {
			return &ConfigError{Field: field + ".trigger", Message: "trigger is required"}
		}
		if len(p.Reactions) == 0 {
			return &ConfigError{Field: field + ".reactions", Message: "at least one reaction is required"}
		}
		for _, glyph := range p.Reactions {
			if !telegram.ValidReaction(glyph) {
				return &ConfigError{Field: field + ".reactions", Message: fmt.Sprintf("%q is not an allowed reaction", glyph)}
			}
		}
	}
	return validatePatterns("pattern_reactions", c.PatternSets())
}

// validatePatterns compiles every pattern with placeholder identities so
// malformed expressions fail at load time.
func validatePatterns(section string, sets map[string][]string) error {
	r := strings.NewReplacer("{bot_id}", "@bot", "{bot_name}", "bot")
	names := make([]string, 0, len(sets))
	for name := range sets {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for i, p := range sets[name] {
			if _, err := regexp.Compile(r.Replace(p)); err != nil {
				return &ConfigError{Field: fmt.Sprintf("%s.%s[%d]", section, name, i), Message: err.Error()}
			}
		}
	}
	return nil
}

// MealWindows returns the configured windows ordered by start time, then name.
func (c *Config) MealWindows() ([]models.MealWindow, error) {
	windows := make([]models.MealWindow, 0, len(c.Meals.Times))
	for name, t := range c.Meals.Times {
		w, err := models.NewMealWindow(name, t.Start, t.End, t.Text)
		if err != nil {
			return nil, &ConfigError{Field: "meals.times." + name, Message: err.Error()}
		}
		windows = append(windows, w)
	}
	models.SortWindows(windows)
	return windows, nil
}

// ReminderTargets resolves per-guild zones and hours against the meal defaults.
func (c *Config) ReminderTargets() ([]models.GuildReminderTarget, error) {
	var targets []models.GuildReminderTarget
	seen := make(map[string]bool)
	for i, g := range c.Meals.Guilds {
		field := fmt.Sprintf("meals.guilds[%d]", i)
		if g.ID == "" {
			return nil, &ConfigError{Field: field + ".id", Message: "guild id is required"}
		}
		if seen[g.ID] {
			return nil, &ConfigError{Field: field + ".id", Message: fmt.Sprintf("duplicate guild %s", g.ID)}
		}
		seen[g.ID] = true

		zone := g.Timezone
		if zone == "" {
			zone = c.Meals.Timezone
		}
		loc, err := time.LoadLocation(zone)
		if err != nil {
			return nil, &ConfigError{Field: field + ".timezone", Message: fmt.Sprintf("unknown zone %q", zone)}
		}
		channel := g.Channel
		if channel == "" {
			channel = g.ID
		}
		hours := g.AutoReminderHours
		if hours == nil {
			hours = c.Meals.AutoReminderHours
		}
		t := models.GuildReminderTarget{GuildID: g.ID, ChannelID: channel, Location: loc, Hours: hours}
		if err := t.Validate(); err != nil {
			return nil, &ConfigError{Field: field, Message: err.Error()}
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// Locations returns the zones listed under timezones.
func (c *Config) Locations() []*time.Location {
	locs := make([]*time.Location, 0, len(c.Timezones))
	for _, zone := range c.Timezones {
		if loc, err := time.LoadLocation(zone); err == nil {
			locs = append(locs, loc)
		}
	}
	return locs
}

func (c *Config) ReminderLocation() *time.Location {
	loc, err := time.LoadLocation(c.Reminders.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) TickInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.Scheduler.TickInterval)
	if err != nil || d <= 0 {
		return 0, &ConfigError{Field: "scheduler.tick_interval", Message: fmt.Sprintf("invalid duration %q", c.Scheduler.TickInterval)}
	}
	return d, nil
}

func (c *Config) FiredLogTTL() (time.Duration, error) {
	d, err := time.ParseDuration(c.Storage.FiredLogTTL)
	if err != nil || d <= 0 {
		return 0, &ConfigError{Field: "storage.fired_log_ttl", Message: fmt.Sprintf("invalid duration %q", c.Storage.FiredLogTTL)}
	}
	return d, nil
}

func (c *Config) ApprovalTTL() time.Duration {
	return time.Duration(c.DeleteUnapprovedAfterHours) * time.Hour
}
