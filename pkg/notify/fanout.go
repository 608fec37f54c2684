package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/devicefabric/fabric/internal/db"
)

// urgencyForLevel maps an escalation level to the urgency prefix carried
// on every outbound message.
func urgencyForLevel(level int) string {
	switch {
	case level >= 4:
		return "critical"
	case level >= 2:
		return "high"
	default:
		return "normal"
	}
}

// Fanout implements escalation.Notifier against a provider Registry, a
// per-recipient RateLimiter, and the notification_log / emergency_contacts
// tables.
type Fanout struct {
	q        *db.Queries
	registry *Registry
	limiter  *RateLimiter
	logger   *slog.Logger
}

// NewFanout creates a Fanout notifier.
func NewFanout(q *db.Queries, registry *Registry, limiter *RateLimiter, logger *slog.Logger) *Fanout {
	return &Fanout{q: q, registry: registry, limiter: limiter, logger: logger}
}

// NotifyTenantUsers pushes a single message to the tenant's shared push
// channel. A delivery failure is written to the notification log and
// also returned; both callers log it and go on to the emergency-contact
// fan-out.
func (f *Fanout) NotifyTenantUsers(ctx context.Context, tenantID string, alert db.Alert, level int) error {
	provider, err := f.registry.Get(ChannelPush)
	if err != nil {
		f.logger.Debug("no push provider registered, skipping tenant user notify", "tenant_id", tenantID)
		return nil
	}

	msg := Message{
		Recipient: tenantID,
		Subject:   fmt.Sprintf("Alert escalated to level %d", level),
		Body:      alertBody(alert),
		Urgency:   urgencyForLevel(level),
	}

	sendErr := provider.Send(ctx, msg)
	f.logNotification(ctx, alert.ID, tenantID, string(ChannelPush), level, sendErr)
	if sendErr != nil {
		return fmt.Errorf("notifying tenant users: %w", sendErr)
	}
	return nil
}

// NotifyEmergencyContacts notifies every enabled emergency contact
// eligible at this level that has not already been notified, respecting
// the per-recipient rate limit on SMS and email. A single contact's
// failure never stops the remaining contacts.
func (f *Fanout) NotifyEmergencyContacts(ctx context.Context, tenantID string, alert db.Alert, level int, alreadyNotified []string) ([]string, bool, error) {
	tid, err := uuid.Parse(tenantID)
	if err != nil {
		return nil, false, fmt.Errorf("parsing tenant id: %w", err)
	}

	contacts, err := f.q.ListEmergencyContacts(ctx, tid, level)
	if err != nil {
		return nil, false, fmt.Errorf("listing emergency contacts: %w", err)
	}

	notified := make(map[string]struct{}, len(alreadyNotified))
	for _, id := range alreadyNotified {
		notified[id] = struct{}{}
	}

	dndOverridden := false
	if prefs, err := f.q.ListTenantPreferences(ctx, tid); err == nil {
		for _, p := range prefs {
			if p.CriticalOverrideDND {
				dndOverridden = true
				break
			}
		}
	}

	var newlyNotified []string
	for _, c := range contacts {
		idStr := c.ID.String()
		if _, seen := notified[idStr]; seen {
			continue
		}

		ch := Channel(c.Channel)
		provider, err := f.registry.Get(ch)
		if err != nil {
			f.logger.Warn("no provider for emergency contact channel", "channel", c.Channel, "contact_id", idStr)
			continue
		}

		if !f.limiter.Allow(ch, c.Address) {
			f.logger.Warn("rate limit exceeded for emergency contact", "channel", c.Channel, "contact_id", idStr)
			continue
		}

		msg := Message{
			Recipient: c.Address,
			Subject:   fmt.Sprintf("Emergency alert, level %d", level),
			Body:      alertBody(alert),
			Urgency:   urgencyForLevel(level),
		}

		sendErr := provider.Send(ctx, msg)
		f.logNotification(ctx, alert.ID, c.Address, c.Channel, level, sendErr)
		if sendErr != nil {
			f.logger.Error("notifying emergency contact", "error", sendErr, "contact_id", idStr)
			continue
		}

		newlyNotified = append(newlyNotified, idStr)
	}

	return newlyNotified, dndOverridden, nil
}

func (f *Fanout) logNotification(ctx context.Context, alertID uuid.UUID, recipient, channel string, level int, sendErr error) {
	var errMsg *string
	if sendErr != nil {
		s := sendErr.Error()
		errMsg = &s
	}

	if err := f.q.InsertNotificationLog(ctx, db.InsertNotificationLogParams{
		ID:        uuid.New(),
		AlertID:   alertID,
		Recipient: recipient,
		Channel:   channel,
		Level:     level,
		SentAt:    time.Now(),
		Error:     errMsg,
	}); err != nil {
		f.logger.Error("writing notification log", "error", err, "alert_id", alertID)
	}
}

func alertBody(alert db.Alert) string {
	label := "unclassified"
	if alert.ClassificationLabel != nil {
		label = *alert.ClassificationLabel
	}
	return fmt.Sprintf("device %s, severity %s, classification %s", alert.DeviceID, alert.Severity, label)
}
