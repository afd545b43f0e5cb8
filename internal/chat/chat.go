// Package chat defines the platform-neutral chat surface the bot runs on.
package chat

import (
	"context"
	"errors"
	"time"
)

// ErrMessageNotFound is returned when the target message no longer exists.
var ErrMessageNotFound = errors.New("message not found")

type User struct {
	ID    string
	Name  string
	IsBot bool
}

// MessageRef identifies a message on the platform.
type MessageRef struct {
	ChannelID string
	MessageID string
}

func (r MessageRef) String() string {
	return r.ChannelID + "/" + r.MessageID
}

type Message struct {
	Ref       MessageRef
	Author    User
	GuildID   string
	Private   bool
	Text      string
	Timestamp time.Time
	ReplyTo   *Message
}

type Reaction struct {
	Message MessageRef
	User    User
	Glyph   string
}

// Event is either a *Message or a *Reaction.
type Event interface {
	event()
}

func (*Message) event()  {}
func (*Reaction) event() {}

// Sender is the outbound half of a chat source.
type Sender interface {
	SendMessage(ctx context.Context, channelID, text string) (MessageRef, error)
	Reply(ctx context.Context, to MessageRef, text string) (MessageRef, error)
	AddReaction(ctx context.Context, ref MessageRef, glyph string) error
	ClearReactions(ctx context.Context, ref MessageRef) error
	DeleteMessage(ctx context.Context, ref MessageRef) error
}

// Source is a connected chat platform.
type Source interface {
	Sender
	// Run delivers events until ctx is cancelled.
	Run(ctx context.Context) error
	Events() <-chan Event
	Self() User
}
