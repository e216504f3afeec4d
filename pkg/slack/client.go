// Package slack wraps the Slack Web API client used by the agent.
package slack

import (
	"context"
	"fmt"

	slackapi "github.com/slack-go/slack"

	"github.com/synapsehq/synapse/pkg/types"
)

// Message is a Slack message as returned by the Web API.
type Message = slackapi.Message

// api is the slice of the Slack Web API the client depends on. Narrow so
// tests can fake it.
type api interface {
	GetConversationRepliesContext(ctx context.Context, params *slackapi.GetConversationRepliesParameters) ([]slackapi.Message, bool, string, error)
	GetConversationHistoryContext(ctx context.Context, params *slackapi.GetConversationHistoryParameters) (*slackapi.GetConversationHistoryResponse, error)
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Client talks to the Slack Web API on behalf of the agent.
type Client struct {
	api api
}

// Config holds Slack client settings.
type Config struct {
	BotToken string
}

// New creates a Slack client from cfg.
func New(cfg Config) (*Client, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("slack bot token not set")
	}
	return &Client{api: slackapi.New(cfg.BotToken)}, nil
}

// GetThreadMessages fetches the replies of a thread, oldest first. The
// parent message is included as the first element. Only the first page
// is fetched.
func (c *Client) GetThreadMessages(ctx context.Context, channel, threadTS string) ([]Message, error) {
	msgs, _, _, err := c.api.GetConversationRepliesContext(ctx, &slackapi.GetConversationRepliesParameters{
		ChannelID: channel,
		Timestamp: threadTS,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching thread messages: %w", err)
	}
	return msgs, nil
}

// GetChannelHistory fetches the most recent messages in a channel.
func (c *Client) GetChannelHistory(ctx context.Context, channel string, limit int) ([]Message, error) {
	resp, err := c.api.GetConversationHistoryContext(ctx, &slackapi.GetConversationHistoryParameters{
		ChannelID: channel,
		Limit:     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching channel history: %w", err)
	}
	return resp.Messages, nil
}

// PostMessage posts text to a channel. A non-empty threadTS posts the
// message as a threaded reply.
func (c *Client) PostMessage(ctx context.Context, channel, text, threadTS string) (*types.PostedMessage, error) {
	opts := []slackapi.MsgOption{slackapi.MsgOptionText(text, false)}
	if threadTS != "" {
		opts = append(opts, slackapi.MsgOptionTS(threadTS))
	}
	ch, ts, err := c.api.PostMessageContext(ctx, channel, opts...)
	if err != nil {
		return nil, fmt.Errorf("posting message: %w", err)
	}
	return &types.PostedMessage{Channel: ch, TS: ts}, nil
}
