package notify

import (
	"context"
	"fmt"

	slacklib "github.com/slack-go/slack"
)

// SlackAPI abstracts the subset of the Slack client used by SlackSender.
type SlackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slacklib.MsgOption) (string, string, error)
}

// SlackSender posts escalations to one Slack channel.
type SlackSender struct {
	api     SlackAPI
	channel string
}

func NewSlackSender(api SlackAPI, channel string) *SlackSender {
	return &SlackSender{api: api, channel: channel}
}

// NewSlack creates a SlackSender backed by the Slack web API.
func NewSlack(botToken, channel string) *SlackSender {
	return NewSlackSender(slacklib.New(botToken), channel)
}

func (s *SlackSender) Send(ctx context.Context, text string) error {
	_, _, err := s.api.PostMessageContext(ctx, s.channel, slacklib.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("notify.SlackSender.Send: %w", err)
	}
	return nil
}
