package models

import (
	"strings"
	"time"
)

// AdvanceMarker in a reminder's notes asks for an extra warning before it fires.
const AdvanceMarker = "🕰"

// Reminder is a one-off reminder requested in chat.
type Reminder struct {
	ID          string    `json:"id"`
	Date        time.Time `json:"date"`
	Notes       string    `json:"notes"`
	ChannelID   string    `json:"channel_id"`
	RequestedBy string    `json:"requested_by"`
	SourceID    string    `json:"source_message_id"`
	Advance     bool      `json:"advance"`
	AdvanceSent bool      `json:"advance_sent"`
	Approved    bool      `json:"approved"`
	CreatedAt   time.Time `json:"created_at"`
}

// SameAs reports whether two reminders are for the same time and text.
func (r *Reminder) SameAs(other *Reminder) bool {
	return r.Date.Equal(other.Date) && strings.EqualFold(strings.TrimSpace(r.Notes), strings.TrimSpace(other.Notes))
}

// Record is a row in the external record store.
type Record struct {
	ID           string
	Table        string
	Fields       map[string]any
	CreatedAt    time.Time
	LastModified time.Time
}
