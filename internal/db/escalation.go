package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// GetEscalationState returns the escalation row for an alert, if any.
func (q *Queries) GetEscalationState(ctx context.Context, alertID uuid.UUID) (EscalationState, error) {
	row := q.db.QueryRow(ctx, `
		SELECT alert_id, current_level, last_notification_at, next_notification_at,
			notification_count, contacts_notified, dnd_overridden, preset, updated_at
		FROM alert_escalation_state WHERE alert_id = $1
	`, alertID)
	return scanEscalationState(row)
}

type UpsertEscalationStateParams struct {
	AlertID            uuid.UUID
	CurrentLevel       int
	LastNotificationAt *time.Time
	NextNotificationAt time.Time
	NotificationCount  int
	ContactsNotified   json.RawMessage
	DNDOverridden      bool
	Preset             string
}

// UpsertEscalationState creates or advances the escalation row for an
// alert.
func (q *Queries) UpsertEscalationState(ctx context.Context, arg UpsertEscalationStateParams) error {
	contacts := arg.ContactsNotified
	if contacts == nil {
		contacts = json.RawMessage("[]")
	}
	_, err := q.db.Exec(ctx, `
		INSERT INTO alert_escalation_state
			(alert_id, current_level, last_notification_at, next_notification_at,
			 notification_count, contacts_notified, dnd_overridden, preset, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (alert_id) DO UPDATE SET
			current_level = $2,
			last_notification_at = $3,
			next_notification_at = $4,
			notification_count = $5,
			contacts_notified = $6,
			dnd_overridden = $7,
			preset = $8,
			updated_at = now()
	`, arg.AlertID, arg.CurrentLevel, arg.LastNotificationAt, arg.NextNotificationAt,
		arg.NotificationCount, contacts, arg.DNDOverridden, arg.Preset)
	return err
}

// DeleteEscalationState drops the escalation row for a resolved alert.
func (q *Queries) DeleteEscalationState(ctx context.Context, alertID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM alert_escalation_state WHERE alert_id = $1`, alertID)
	return err
}

// ListAlertsNeedingEscalation returns active alerts whose escalation
// state is due for a tick, oldest due first, capped at limit so one tick
// cannot starve the rest of the tenant's alerts.
func (q *Queries) ListAlertsNeedingEscalation(ctx context.Context, limit int) ([]AlertWithEscalation, error) {
	rows, err := q.db.Query(ctx, `
		SELECT a.id, a.device_id, a.tenant_id, a.severity, a.status, a.triggered_at, a.resolved_at,
			a.resolved_by, a.sensor_data, a.classification_label, a.classification_confidence, a.created_at,
			e.alert_id, e.current_level, e.last_notification_at, e.next_notification_at,
			e.notification_count, e.contacts_notified, e.dnd_overridden, e.preset, e.updated_at
		FROM alerts a
		JOIN alert_escalation_state e ON e.alert_id = a.id
		WHERE a.status IN ('new', 'acknowledged') AND e.next_notification_at <= now()
		ORDER BY e.next_notification_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AlertWithEscalation
	for rows.Next() {
		var aw AlertWithEscalation
		var es EscalationState
		if err := rows.Scan(
			&aw.ID, &aw.DeviceID, &aw.TenantID, &aw.Severity, &aw.Status, &aw.TriggeredAt, &aw.ResolvedAt,
			&aw.ResolvedBy, &aw.SensorData, &aw.ClassificationLabel, &aw.ClassificationConfidence, &aw.CreatedAt,
			&es.AlertID, &es.CurrentLevel, &es.LastNotificationAt, &es.NextNotificationAt,
			&es.NotificationCount, &es.ContactsNotified, &es.DNDOverridden, &es.Preset, &es.UpdatedAt,
		); err != nil {
			return nil, err
		}
		aw.EscalationState = &es
		out = append(out, aw)
	}
	return out, rows.Err()
}

func scanEscalationState(row rowScanner) (EscalationState, error) {
	var e EscalationState
	err := row.Scan(
		&e.AlertID, &e.CurrentLevel, &e.LastNotificationAt, &e.NextNotificationAt,
		&e.NotificationCount, &e.ContactsNotified, &e.DNDOverridden, &e.Preset, &e.UpdatedAt,
	)
	return e, err
}
