package notify

import (
	"context"
	"fmt"
	"log/slog"

	goslack "github.com/slack-go/slack"
)

// SlackPush delivers push notifications as Slack messages. It is the
// push channel's concrete implementation; a tenant with no Slack bot
// token configured gets a no-op provider.
type SlackPush struct {
	client  *goslack.Client
	channel string
	logger  *slog.Logger
}

// NewSlackPush creates a SlackPush provider. If botToken is empty the
// provider is disabled and Send logs and returns nil rather than erroring.
func NewSlackPush(botToken, channel string, logger *slog.Logger) *SlackPush {
	var client *goslack.Client
	if botToken != "" {
		client = goslack.New(botToken)
	}
	return &SlackPush{client: client, channel: channel, logger: logger}
}

// Channel implements Provider.
func (s *SlackPush) Channel() Channel { return ChannelPush }

// IsEnabled reports whether a bot token and channel were configured.
func (s *SlackPush) IsEnabled() bool {
	return s.client != nil && s.channel != ""
}

// Send implements Provider.
func (s *SlackPush) Send(ctx context.Context, msg Message) error {
	if !s.IsEnabled() {
		s.logger.Debug("slack push disabled, skipping", "subject", msg.Subject)
		return nil
	}

	text := fmt.Sprintf("[%s] %s\n%s", msg.Urgency, msg.Subject, msg.Body)
	_, _, err := s.client.PostMessageContext(ctx, s.channel, goslack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("posting to slack: %w", err)
	}
	return nil
}
