package telegram

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/hray3182/tildy/internal/chat"
)

type update struct {
	UpdateID        int               `json:"update_id"`
	Message         *tgbotapi.Message `json:"message"`
	MessageReaction *messageReaction  `json:"message_reaction"`
}

type messageReaction struct {
	Chat        tgbotapi.Chat  `json:"chat"`
	MessageID   int            `json:"message_id"`
	User        *tgbotapi.User `json:"user"`
	Date        int            `json:"date"`
	OldReaction []reactionType `json:"old_reaction"`
	NewReaction []reactionType `json:"new_reaction"`
}

type reactionType struct {
	Type  string `json:"type"`
	Emoji string `json:"emoji,omitempty"`
}

func decodeUpdates(raw json.RawMessage) ([]update, error) {
	var updates []update
	if err := json.Unmarshal(raw, &updates); err != nil {
		return nil, fmt.Errorf("failed to decode updates: %w", err)
	}
	return updates, nil
}

func (u update) events() []chat.Event {
	var events []chat.Event
	if m := toMessage(u.Message); m != nil {
		events = append(events, m)
	}
	if u.MessageReaction != nil {
		for _, r := range u.MessageReaction.added() {
			events = append(events, r)
		}
	}
	return events
}

func toUser(u *tgbotapi.User) chat.User {
	name := u.UserName
	if name == "" {
		name = u.FirstName
	}
	return chat.User{ID: strconv.FormatInt(u.ID, 10), Name: name, IsBot: u.IsBot}
}

func toMessage(m *tgbotapi.Message) *chat.Message {
	if m == nil || m.Chat == nil {
		return nil
	}
	channel := strconv.FormatInt(m.Chat.ID, 10)
	msg := &chat.Message{
		Ref:       chat.MessageRef{ChannelID: channel, MessageID: strconv.Itoa(m.MessageID)},
		Private:   m.Chat.IsPrivate(),
		Text:      m.Text,
		Timestamp: time.Unix(int64(m.Date), 0).UTC(),
	}
	if !msg.Private {
		msg.GuildID = channel
	}
	if msg.Text == "" {
		msg.Text = m.Caption
	}
	if m.From != nil {
		msg.Author = toUser(m.From)
	}
	if m.ReplyToMessage != nil {
		if m.ReplyToMessage.Chat == nil {
			m.ReplyToMessage.Chat = m.Chat
		}
		msg.ReplyTo = toMessage(m.ReplyToMessage)
	}
	return msg
}

// added returns one reaction per emoji present in the new set but not the old.
func (r *messageReaction) added() []*chat.Reaction {
	if r.User == nil {
		return nil
	}
	ref := chat.MessageRef{
		ChannelID: strconv.FormatInt(r.Chat.ID, 10),
		MessageID: strconv.Itoa(r.MessageID),
	}
	user := toUser(r.User)

	var out []*chat.Reaction
	for _, nr := range r.NewReaction {
		if nr.Type != "emoji" || slices.Contains(r.OldReaction, nr) {
			continue
		}
		out = append(out, &chat.Reaction{Message: ref, User: user, Glyph: nr.Emoji})
	}
	return out
}
