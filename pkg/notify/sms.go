package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioSMS delivers SMS messages via the Twilio REST API. The teacher
// codebase only handled inbound Twilio webhooks; outbound send is new
// here, using the same SDK family.
type TwilioSMS struct {
	client *twilio.RestClient
	from   string
	logger *slog.Logger
}

// NewTwilioSMS creates a TwilioSMS provider. If accountSID or authToken
// is empty the provider is disabled and Send logs and returns nil.
func NewTwilioSMS(accountSID, authToken, from string, logger *slog.Logger) *TwilioSMS {
	var client *twilio.RestClient
	if accountSID != "" && authToken != "" {
		client = twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		})
	}
	return &TwilioSMS{client: client, from: from, logger: logger}
}

// Channel implements Provider.
func (t *TwilioSMS) Channel() Channel { return ChannelSMS }

// IsEnabled reports whether Twilio credentials were configured.
func (t *TwilioSMS) IsEnabled() bool { return t.client != nil && t.from != "" }

// Send implements Provider.
func (t *TwilioSMS) Send(ctx context.Context, msg Message) error {
	if !t.IsEnabled() {
		t.logger.Debug("twilio sms disabled, skipping", "subject", msg.Subject)
		return nil
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetTo(msg.Recipient)
	params.SetFrom(t.from)
	params.SetBody(fmt.Sprintf("[%s] %s: %s", msg.Urgency, msg.Subject, msg.Body))

	if _, err := t.client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("sending SMS via twilio: %w", err)
	}
	return nil
}
