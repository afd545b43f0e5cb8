package handlers

import (
	"context"
	"strings"

	"github.com/hray3182/tildy/internal/chat"
	"github.com/hray3182/tildy/internal/models"
	"github.com/hray3182/tildy/internal/triggers"
)

// yell posts "PERSON, TEXT" to the channel.
func (d *Dispatcher) yell(ctx context.Context, msg *chat.Message, m triggers.Match) (Result, error) {
	person := m.Group("person")
	if person == "" {
		person = "lovely person"
	}
	text := m.Group("text")
	if text == "" {
		text = "YOU SHOULD BE SLEEPING"
	}
	return Result{
		Outcome:  models.Success,
		Reply:    strings.ToUpper(person) + ", " + strings.ToUpper(text),
		Announce: true,
	}, nil
}

// removeReactions clears the bot's reactions from the message being replied to.
func (d *Dispatcher) removeReactions(ctx context.Context, msg *chat.Message, m triggers.Match) (Result, error) {
	if msg.ReplyTo == nil {
		return Result{Outcome: models.Unknown}, nil
	}
	if msg.ReplyTo.Author.ID == msg.Author.ID {
		return Result{Outcome: models.Rejected}, nil
	}
	if err := d.opts.Chat.ClearReactions(ctx, msg.ReplyTo.Ref); err != nil {
		return Result{}, err
	}
	return Result{Outcome: models.Success}, nil
}
