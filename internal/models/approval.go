package models

import (
	"errors"
	"fmt"
	"time"
)

type ApprovalStatus string

const (
	StatusPending   ApprovalStatus = "pending"
	StatusApproved  ApprovalStatus = "approved"
	StatusExpired   ApprovalStatus = "expired"
	StatusCancelled ApprovalStatus = "cancelled"
)

var ErrInvalidTransition = errors.New("invalid approval transition")

// PendingApproval is a bot-posted or user-submitted entry that is deleted
// unless someone authorised reacts with the approval glyph before Deadline.
type PendingApproval struct {
	ID          string         `json:"id"`
	ChannelID   string         `json:"channel_id"`
	MessageID   string         `json:"message_id"`
	RecordTable string         `json:"record_table,omitempty"`
	RecordID    string         `json:"record_id,omitempty"`
	AuthorID    string         `json:"author_id"`
	CreatedAt   time.Time      `json:"created_at"`
	Deadline    time.Time      `json:"deadline"`
	Status      ApprovalStatus `json:"status"`
	ResolvedAt  *time.Time     `json:"resolved_at,omitempty"`
}

// ApprovalID is the entry id for a message: approvals are keyed by the message they watch.
func ApprovalID(channelID, messageID string) string {
	return channelID + "/" + messageID
}

func (p *PendingApproval) Due(now time.Time) bool {
	return p.Status == StatusPending && !now.Before(p.Deadline)
}

func (p *PendingApproval) Approve(now time.Time) error {
	return p.transition(StatusApproved, now)
}

func (p *PendingApproval) Expire(now time.Time) error {
	return p.transition(StatusExpired, now)
}

func (p *PendingApproval) Cancel(now time.Time) error {
	return p.transition(StatusCancelled, now)
}

func (p *PendingApproval) transition(to ApprovalStatus, now time.Time) error {
	if p.Status != StatusPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, to)
	}
	p.Status = to
	p.ResolvedAt = &now
	return nil
}
