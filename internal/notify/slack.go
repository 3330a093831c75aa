package notify

import (
	"context"
	"fmt"

	slacklib "github.com/slack-go/slack"
)

// SlackAPI abstracts the subset of the Slack client used by SlackPusher.
// This allows testing without real HTTP calls.
type SlackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slacklib.MsgOption) (string, string, error)
}

// SlackPusher mirrors notifications into a single Slack channel.
type SlackPusher struct {
	api     SlackAPI
	channel string
}

// Compile-time interface check.
var _ Pusher = (*SlackPusher)(nil) //nolint:gochecknoglobals // compile-time check

// NewSlackPusher creates a SlackPusher for the given channel.
func NewSlackPusher(api SlackAPI, channel string) *SlackPusher {
	return &SlackPusher{api: api, channel: channel}
}

// NewSlackPusherFromToken builds the pusher on the real Slack client.
func NewSlackPusherFromToken(botToken, channel string) *SlackPusher {
	return NewSlackPusher(slacklib.New(botToken), channel)
}

// Push posts the text to the configured channel.
func (p *SlackPusher) Push(ctx context.Context, text string) error {
	_, _, err := p.api.PostMessageContext(ctx, p.channel, slacklib.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("notify.SlackPusher.Push: %w", err)
	}

	return nil
}
