package scheduler

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/hray3182/tildy/internal/chat"
	"github.com/hray3182/tildy/internal/models"
)

type sentMessage struct {
	Ref  chat.MessageRef
	Text string
}

type fakeSender struct {
	mu      sync.Mutex
	nextID  int
	sent    []sentMessage
	deleted []chat.MessageRef
	sendErr error
}

func (f *fakeSender) SendMessage(ctx context.Context, channelID, text string) (chat.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return chat.MessageRef{}, f.sendErr
	}
	f.nextID++
	ref := chat.MessageRef{ChannelID: channelID, MessageID: strconv.Itoa(f.nextID)}
	f.sent = append(f.sent, sentMessage{Ref: ref, Text: text})
	return ref, nil
}

func (f *fakeSender) Reply(ctx context.Context, to chat.MessageRef, text string) (chat.MessageRef, error) {
	return f.SendMessage(ctx, to.ChannelID, text)
}

func (f *fakeSender) AddReaction(ctx context.Context, ref chat.MessageRef, glyph string) error {
	return nil
}

func (f *fakeSender) ClearReactions(ctx context.Context, ref chat.MessageRef) error {
	return nil
}

func (f *fakeSender) DeleteMessage(ctx context.Context, ref chat.MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ref)
	return nil
}

func (f *fakeSender) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

type fakeWatcher struct {
	mu        sync.Mutex
	watched   []models.PendingApproval
	cancelled []string
}

func (f *fakeWatcher) Watch(ctx context.Context, p models.PendingApproval) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watched = append(f.watched, p)
	return true
}

func (f *fakeWatcher) Cancel(ctx context.Context, id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, id)
	return true
}

type memoryFiringLog struct {
	mu    sync.Mutex
	fired models.FiredLog
}

func (m *memoryFiringLog) LoadFired(ctx context.Context) (models.FiredLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(models.FiredLog)
	for k, hours := range m.fired {
		for h, d := range hours {
			out.Mark(k, h, d)
		}
	}
	return out, nil
}

func (m *memoryFiringLog) RecordFired(ctx context.Context, target string, hour int, localDate string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fired == nil {
		m.fired = make(models.FiredLog)
	}
	m.fired.Mark(target, hour, localDate)
	return nil
}

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatal(err)
	}
	return loc
}

func firstPicker(int) int { return 0 }
