// Package triggers compiles the configured trigger sets and matches chat
// messages against them.
package triggers

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hray3182/tildy/internal/config"
)

// Identity is what {bot_id} and {bot_name} expand to.
type Identity struct {
	// Mention is how the bot is addressed on the platform, e.g. "@tildy_bot".
	Mention string
	Name    string
}

// Match is a successful pattern match with its named groups.
type Match struct {
	Set     string
	Pattern string
	Groups  map[string]string
}

// Group returns a trimmed named group, or "" if it did not participate.
func (m Match) Group(name string) string {
	return strings.TrimSpace(m.Groups[name])
}

// Registry holds named, ordered pattern sets. It is immutable after Compile
// and safe for concurrent use.
type Registry struct {
	sets map[string][]*regexp.Regexp
}

// Compile builds a registry. Every pattern is anchored to the start of the
// message and matched case-insensitively; a pattern ending in $ therefore
// only matches the whole trimmed message.
func Compile(sets map[string][]string, id Identity) (*Registry, error) {
	return compile("triggers", "^", sets, id)
}

// CompileSearch builds a registry whose patterns may match anywhere in the
// message, as pattern reactions do.
func CompileSearch(sets map[string][]string, id Identity) (*Registry, error) {
	return compile("pattern_reactions", "", sets, id)
}

func compile(section, anchor string, sets map[string][]string, id Identity) (*Registry, error) {
	r := strings.NewReplacer(
		"{bot_id}", regexp.QuoteMeta(id.Mention),
		"{bot_name}", regexp.QuoteMeta(id.Name),
	)
	reg := &Registry{sets: make(map[string][]*regexp.Regexp, len(sets))}
	for name, patterns := range sets {
		compiled := make([]*regexp.Regexp, 0, len(patterns))
		for i, p := range patterns {
			re, err := regexp.Compile("(?i)" + anchor + "(?:" + r.Replace(p) + ")")
			if err != nil {
				return nil, &config.ConfigError{
					Field:   fmt.Sprintf("%s.%s[%d]", section, name, i),
					Message: err.Error(),
				}
			}
			compiled = append(compiled, re)
		}
		reg.sets[name] = compiled
	}
	return reg, nil
}

// Has reports whether a set with this name was configured.
func (r *Registry) Has(set string) bool {
	_, ok := r.sets[set]
	return ok
}

// Match reports whether any pattern of set matches text. Unknown sets and
// empty sets never match.
func (r *Registry) Match(text, set string) bool {
	_, ok := r.Find(text, set)
	return ok
}

// Find returns the first matching pattern of set, in configured order.
func (r *Registry) Find(text, set string) (Match, bool) {
	text = strings.TrimSpace(text)
	for _, re := range r.sets[set] {
		sub := re.FindStringSubmatch(text)
		if sub == nil {
			continue
		}
		m := Match{Set: set, Pattern: re.String(), Groups: make(map[string]string)}
		for i, name := range re.SubexpNames() {
			if name != "" && i < len(sub) {
				m.Groups[name] = sub[i]
			}
		}
		return m, true
	}
	return Match{}, false
}
