package models

// Outcome is the result of dispatching one message to a trigger handler.
type Outcome int

const (
	NoMatch Outcome = iota
	Success
	Repeat
	Unknown
	Rejected
	Error
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Repeat:
		return "repeat"
	case Unknown:
		return "unknown"
	case Rejected:
		return "rejected"
	case Error:
		return "error"
	default:
		return "no_match"
	}
}

// ReactionVocabulary maps outcomes to the glyph the bot reacts with.
type ReactionVocabulary struct {
	Success  string `yaml:"success"`
	Repeat   string `yaml:"repeat"`
	Unknown  string `yaml:"unknown"`
	Rejected string `yaml:"reject"`
	Error    string `yaml:"skynet"`
	Approval string `yaml:"approval"`
}

// DefaultReactions uses glyphs Telegram accepts as message reactions.
func DefaultReactions() ReactionVocabulary {
	return ReactionVocabulary{
		Success:  "✍",
		Repeat:   "👌",
		Unknown:  "🤔",
		Rejected: "🙈",
		Error:    "👾",
		Approval: "👍",
	}
}

// Glyph returns the reaction for an outcome. NoMatch has no reaction.
func (v ReactionVocabulary) Glyph(o Outcome) (string, bool) {
	var g string
	switch o {
	case Success:
		g = v.Success
	case Repeat:
		g = v.Repeat
	case Unknown:
		g = v.Unknown
	case Rejected:
		g = v.Rejected
	case Error:
		g = v.Error
	default:
		return "", false
	}
	return g, g != ""
}
