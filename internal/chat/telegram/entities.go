package telegram

import (
	"regexp"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// markupRe matches **bold** and `code` spans. Underscore and single-star
// italics are left alone since user and bot names contain underscores.
var markupRe = regexp.MustCompile("\\*\\*(.+?)\\*\\*|`([^`]+?)`")

// utf16Len is the length of s in UTF-16 code units, which is what Telegram
// entity offsets count.
func utf16Len(s string) int {
	n := 0
	for _, b := range []byte(s) {
		if b&0xc0 == 0x80 {
			continue
		}
		if b >= 0xf0 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// formatText strips markup from text and returns the plain text with the
// entities Telegram needs to render it.
func formatText(text string) (string, []tgbotapi.MessageEntity) {
	matches := markupRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text, nil
	}

	var (
		out      []byte
		entities []tgbotapi.MessageEntity
		last     int
	)
	for _, m := range matches {
		out = append(out, text[last:m[0]]...)
		kind, inner := "code", ""
		if m[2] != -1 {
			kind, inner = "bold", text[m[2]:m[3]]
		} else {
			inner = text[m[4]:m[5]]
		}
		entities = append(entities, tgbotapi.MessageEntity{
			Type:   kind,
			Offset: utf16Len(string(out)),
			Length: utf16Len(inner),
		})
		out = append(out, inner...)
		last = m[1]
	}
	out = append(out, text[last:]...)
	return string(out), entities
}

func newMessage(chatID int64, text string) tgbotapi.MessageConfig {
	plain, entities := formatText(text)
	msg := tgbotapi.NewMessage(chatID, plain)
	msg.Entities = entities
	return msg
}
