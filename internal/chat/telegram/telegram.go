// Package telegram connects the bot to the Telegram Bot API.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jpillora/backoff"
	"golang.org/x/time/rate"

	"github.com/hray3182/tildy/internal/chat"
	"github.com/hray3182/tildy/internal/metrics"
	"github.com/hray3182/tildy/internal/retry"
)

const defaultPollTimeout = 50

type Options struct {
	Token string
	// Endpoint is the Bot API URL format; defaults to tgbotapi.APIEndpoint.
	Endpoint    string
	HTTPClient  *http.Client
	PollTimeout int
	Rate        rate.Limit
	Burst       int
	Retry       retry.Policy
	Logger      *log.Logger
	Metrics     metrics.Recorder
}

// Client implements chat.Source on top of the Bot API. The library's update
// channel drops message_reaction updates, so polling is done by hand.
type Client struct {
	api     *tgbotapi.BotAPI
	opts    Options
	limiter *rate.Limiter
	events  chan chat.Event
	self    chat.User
}

func New(opts Options) (*Client, error) {
	if opts.Endpoint == "" {
		opts.Endpoint = tgbotapi.APIEndpoint
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = defaultPollTimeout
	}
	if opts.Rate <= 0 {
		opts.Rate = 25
	}
	if opts.Burst <= 0 {
		opts.Burst = 5
	}
	if opts.Retry.Attempts == 0 {
		opts.Retry = retry.DefaultPolicy()
	}
	if opts.Retry.Retryable == nil {
		opts.Retry.Retryable = retryable
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}

	api, err := tgbotapi.NewBotAPIWithClient(opts.Token, opts.Endpoint, opts.HTTPClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &Client{
		api:     api,
		opts:    opts,
		limiter: rate.NewLimiter(opts.Rate, opts.Burst),
		events:  make(chan chat.Event, 64),
		self: chat.User{
			ID:    strconv.FormatInt(api.Self.ID, 10),
			Name:  api.Self.UserName,
			IsBot: true,
		},
	}, nil
}

func (c *Client) Self() chat.User {
	return c.self
}

func (c *Client) Events() <-chan chat.Event {
	return c.events
}

// Run long-polls for updates until ctx is cancelled, then closes Events.
// It must be called once.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.events)
	c.opts.Logger.Info("authorized", "account", c.self.Name)

	offset := 0
	b := &backoff.Backoff{Min: time.Second, Max: time.Minute, Factor: 2, Jitter: true}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		updates, err := c.getUpdates(offset)
		if err != nil {
			wait := b.Duration()
			c.opts.Metrics.RecordChatFailure("poll")
			c.opts.Logger.Warn("failed to get updates", "err", err, "retry_in", wait)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}
		b.Reset()

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			for _, ev := range u.events() {
				select {
				case c.events <- ev:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}

func (c *Client) getUpdates(offset int) ([]update, error) {
	resp, err := c.api.MakeRequest("getUpdates", tgbotapi.Params{
		"offset":          strconv.Itoa(offset),
		"timeout":         strconv.Itoa(c.opts.PollTimeout),
		"allowed_updates": `["message","message_reaction"]`,
	})
	if err != nil {
		return nil, err
	}
	return decodeUpdates(resp.Result)
}

func (c *Client) SendMessage(ctx context.Context, channelID, text string) (chat.MessageRef, error) {
	chatID, err := parseChatID(channelID)
	if err != nil {
		return chat.MessageRef{}, err
	}
	return c.send(ctx, newMessage(chatID, text))
}

func (c *Client) Reply(ctx context.Context, to chat.MessageRef, text string) (chat.MessageRef, error) {
	chatID, msgID, err := parseRef(to)
	if err != nil {
		return chat.MessageRef{}, err
	}
	msg := newMessage(chatID, text)
	msg.ReplyToMessageID = msgID
	return c.send(ctx, msg)
}

func (c *Client) send(ctx context.Context, msg tgbotapi.MessageConfig) (chat.MessageRef, error) {
	var sent tgbotapi.Message
	err := c.call(ctx, "send", func() error {
		var err error
		sent, err = c.api.Send(msg)
		return err
	})
	if err != nil {
		return chat.MessageRef{}, err
	}
	return chat.MessageRef{
		ChannelID: strconv.FormatInt(msg.ChatID, 10),
		MessageID: strconv.Itoa(sent.MessageID),
	}, nil
}

func (c *Client) AddReaction(ctx context.Context, ref chat.MessageRef, glyph string) error {
	reaction, err := json.Marshal([]reactionType{{Type: "emoji", Emoji: glyph}})
	if err != nil {
		return err
	}
	return c.setReaction(ctx, "react", ref, string(reaction))
}

// ClearReactions removes the bot's own reactions; the Bot API cannot remove
// other users' reactions.
func (c *Client) ClearReactions(ctx context.Context, ref chat.MessageRef) error {
	return c.setReaction(ctx, "unreact", ref, "[]")
}

func (c *Client) setReaction(ctx context.Context, op string, ref chat.MessageRef, reaction string) error {
	if _, _, err := parseRef(ref); err != nil {
		return err
	}
	return c.call(ctx, op, func() error {
		_, err := c.api.MakeRequest("setMessageReaction", tgbotapi.Params{
			"chat_id":    ref.ChannelID,
			"message_id": ref.MessageID,
			"reaction":   reaction,
		})
		return err
	})
}

func (c *Client) DeleteMessage(ctx context.Context, ref chat.MessageRef) error {
	chatID, msgID, err := parseRef(ref)
	if err != nil {
		return err
	}
	return c.call(ctx, "delete", func() error {
		_, err := c.api.Request(tgbotapi.NewDeleteMessage(chatID, msgID))
		return err
	})
}

func (c *Client) call(ctx context.Context, op string, fn func() error) error {
	err := retry.Do(ctx, "telegram "+op, c.opts.Retry, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		return wrapError(fn())
	})
	if err != nil && !errors.Is(err, chat.ErrMessageNotFound) {
		c.opts.Metrics.RecordChatFailure(op)
	}
	return err
}

// apiError exposes the Bot API's retry_after hint to retry.Do.
type apiError struct {
	err *tgbotapi.Error
}

func (e *apiError) Error() string {
	return e.err.Error()
}

func (e *apiError) Unwrap() error {
	return e.err
}

func (e *apiError) RetryAfter() time.Duration {
	return time.Duration(e.err.RetryAfter) * time.Second
}

func wrapError(err error) error {
	if err == nil {
		return nil
	}
	var tgErr *tgbotapi.Error
	if !errors.As(err, &tgErr) {
		return err
	}
	if tgErr.Code == http.StatusBadRequest && strings.Contains(strings.ToLower(tgErr.Message), "not found") {
		return fmt.Errorf("%w: %s", chat.ErrMessageNotFound, tgErr.Message)
	}
	return &apiError{err: tgErr}
}

// retryable treats rate limits, server errors and transport failures as transient.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, chat.ErrMessageNotFound) {
		return false
	}
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return apiErr.err.Code == http.StatusTooManyRequests || apiErr.err.Code >= http.StatusInternalServerError
	}
	return true
}

func parseChatID(channelID string) (int64, error) {
	id, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chat id %q: %w", channelID, err)
	}
	return id, nil
}

func parseRef(ref chat.MessageRef) (int64, int, error) {
	chatID, err := parseChatID(ref.ChannelID)
	if err != nil {
		return 0, 0, err
	}
	msgID, err := strconv.Atoi(ref.MessageID)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid message id %q: %w", ref.MessageID, err)
	}
	return chatID, msgID, nil
}
