package bot

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hray3182/tildy/internal/chat"
	"github.com/hray3182/tildy/internal/models"
)

// seenTTL is how long a delivered message id is remembered for deduplication.
const seenTTL = 10 * time.Minute

type Dispatcher interface {
	Handle(ctx context.Context, msg *chat.Message) models.Outcome
}

type ReactionHandler interface {
	OnReaction(ctx context.Context, r chat.Reaction) bool
}

type Bot struct {
	source     chat.Source
	dispatcher Dispatcher
	reactions  ReactionHandler
	logger     *log.Logger
	now        func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time
	wg   sync.WaitGroup
}

func New(source chat.Source, dispatcher Dispatcher, reactions ReactionHandler, logger *log.Logger) *Bot {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Bot{
		source:     source,
		dispatcher: dispatcher,
		reactions:  reactions,
		logger:     logger,
		now:        time.Now,
		seen:       make(map[string]time.Time),
	}
}

// Start runs the chat source and handles each event in its own goroutine
// until ctx is cancelled or the source stops. In-flight handlers are waited for.
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("authorized on account", "account", b.source.Self().Name)

	errCh := make(chan error, 1)
	go func() {
		errCh <- b.source.Run(ctx)
	}()

	events := b.source.Events()
	for {
		select {
		case <-ctx.Done():
			b.wg.Wait()
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				b.wg.Wait()
				return <-errCh
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.handleEvent(ctx, ev)
			}()
		}
	}
}

func (b *Bot) handleEvent(ctx context.Context, ev chat.Event) {
	switch e := ev.(type) {
	case *chat.Message:
		if !b.firstDelivery(e.Ref) {
			b.logger.Debug("ignoring redelivered message", "message", e.Ref.String())
			return
		}
		outcome := b.dispatcher.Handle(ctx, e)
		if outcome != models.NoMatch {
			b.logger.Info("handled message", "message", e.Ref.String(), "author", e.Author.Name, "outcome", outcome)
		}
	case *chat.Reaction:
		if b.reactions != nil && b.reactions.OnReaction(ctx, *e) {
			b.logger.Info("reaction approved entry", "message", e.Message.String(), "user", e.User.Name)
		}
	}
}

// firstDelivery records ref and reports whether it was new.
func (b *Bot) firstDelivery(ref chat.MessageRef) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	key := ref.String()
	if at, ok := b.seen[key]; ok && now.Sub(at) < seenTTL {
		return false
	}
	b.seen[key] = now
	for k, at := range b.seen {
		if now.Sub(at) >= seenTTL {
			delete(b.seen, k)
		}
	}
	return true
}
