package notification

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// webhookPoster matches slack.PostWebhookContext so tests can capture posts.
type webhookPoster func(ctx context.Context, url string, msg *slack.WebhookMessage) error

// SlackSink posts staff alerts to an incoming webhook.
type SlackSink struct {
	url     string
	channel string
	post    webhookPoster
}

func NewSlackSink(webhookURL, channel string) *SlackSink {
	return &SlackSink{url: webhookURL, channel: channel, post: slack.PostWebhookContext}
}

func (s *SlackSink) Send(ctx context.Context, msg Message) error {
	text := fmt.Sprintf("*%s* claim %s: %s", msg.Event, claimLabel(msg), msg.Subject)
	blocks := []slack.Block{
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil),
	}
	if msg.Body != "" {
		blocks = append(blocks, slack.NewContextBlock("", slack.NewTextBlockObject(slack.PlainTextType, msg.Body, false, false)))
	}
	wm := &slack.WebhookMessage{
		Channel: s.channel,
		Text:    text,
		Blocks:  &slack.Blocks{BlockSet: blocks},
	}
	if err := s.post(ctx, s.url, wm); err != nil {
		return fmt.Errorf("notification: slack webhook: %w", err)
	}
	return nil
}

func claimLabel(msg Message) string {
	if msg.ClaimNo != "" {
		return msg.ClaimNo
	}
	return msg.ClaimID
}
