package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
)

// ErrNoTimestamp is returned when the model finds no date or time in the text.
var ErrNoTimestamp = errors.New("no timestamp found")

type Client struct {
	client *openai.Client
	model  string
}

func New(apiKey, baseURL, model string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

// Timestamp is the structured answer the model returns.
type Timestamp struct {
	Found  bool   `json:"found"`
	Local  string `json:"local"`
	Reason string `json:"reason"`
}

const localLayout = "2006-01-02 15:04"

const systemPromptTemplate = `You convert a reminder time written by a chat user into a wall-clock timestamp.

Current time: %s
Time zone: %s

Rules:
1. Resolve relative expressions ("tomorrow", "next monday", "in 3 hours") against the current time.
2. Answer in the given time zone, formatted as YYYY-MM-DD HH:MM in "local".
3. If a date is given without a time, use 09:00.
4. If the text contains no date or time at all, set found = false and explain briefly in "reason".`

func systemPrompt(now time.Time, loc *time.Location) string {
	local := now.In(loc)
	return fmt.Sprintf(systemPromptTemplate, local.Format("2006-01-02 15:04 (Monday)"), loc.String())
}

// JSON Schema for structured output
var timestampSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"found": {
			"type": "boolean",
			"description": "Whether the text contains a date or time"
		},
		"local": {
			"type": "string",
			"description": "The resolved wall-clock time, formatted YYYY-MM-DD HH:MM"
		},
		"reason": {
			"type": "string",
			"description": "Why no time could be found"
		}
	},
	"required": ["found", "local", "reason"],
	"additionalProperties": false
}`)

// ParseTimestamp asks the model to resolve a free-form time expression into
// an instant in loc.
func (c *Client) ParseTimestamp(ctx context.Context, text string, now time.Time, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt(now, loc),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: text,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "timestamp",
				Schema: timestampSchema,
				Strict: true,
			},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to call AI API: %w", err)
	}

	if len(resp.Choices) == 0 {
		return time.Time{}, fmt.Errorf("no response from AI")
	}

	return decodeTimestamp(resp.Choices[0].Message.Content, loc)
}

func decodeTimestamp(content string, loc *time.Location) (time.Time, error) {
	var ts Timestamp
	if err := json.Unmarshal([]byte(content), &ts); err != nil {
		return time.Time{}, fmt.Errorf("failed to parse AI response: %w", err)
	}
	if !ts.Found {
		if ts.Reason != "" {
			return time.Time{}, fmt.Errorf("%w: %s", ErrNoTimestamp, ts.Reason)
		}
		return time.Time{}, ErrNoTimestamp
	}
	t, err := time.ParseInLocation(localLayout, ts.Local, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse AI timestamp %q: %w", ts.Local, err)
	}
	return t, nil
}
