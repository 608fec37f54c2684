package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ListTenantPreferences returns a tenant's notification preferences
// ordered by creation, so the escalation engine can treat the first row
// as the default when no per-level override exists.
func (q *Queries) ListTenantPreferences(ctx context.Context, tenantID uuid.UUID) ([]NotificationPreference, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, tenant_id, user_id, preset, custom_levels, critical_override_dnd, created_at
		FROM notification_preferences WHERE tenant_id = $1 ORDER BY created_at ASC
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []NotificationPreference
	for rows.Next() {
		var p NotificationPreference
		if err := rows.Scan(&p.ID, &p.TenantID, &p.UserID, &p.Preset, &p.CustomLevels, &p.CriticalOverrideDND, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListEmergencyContacts returns a tenant's enabled emergency contacts
// eligible at or below the given escalation level.
func (q *Queries) ListEmergencyContacts(ctx context.Context, tenantID uuid.UUID, level int) ([]EmergencyContact, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, tenant_id, name, channel, address, escalation_level, enabled, created_at
		FROM emergency_contacts
		WHERE tenant_id = $1 AND enabled = true AND escalation_level <= $2
		ORDER BY escalation_level ASC
	`, tenantID, level)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EmergencyContact
	for rows.Next() {
		var c EmergencyContact
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name, &c.Channel, &c.Address, &c.EscalationLevel, &c.Enabled, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type InsertNotificationLogParams struct {
	ID        uuid.UUID
	AlertID   uuid.UUID
	Recipient string
	Channel   string
	Level     int
	SentAt    time.Time
	Error     *string
}

// InsertNotificationLog records a delivery attempt, success or failure.
func (q *Queries) InsertNotificationLog(ctx context.Context, arg InsertNotificationLogParams) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO notification_log (id, alert_id, recipient, channel, level, sent_at, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, arg.ID, arg.AlertID, arg.Recipient, arg.Channel, arg.Level, arg.SentAt, arg.Error)
	return err
}

type InsertClassificationParams struct {
	ID                 uuid.UUID
	DeviceID           uuid.UUID
	TenantID           uuid.UUID
	ImageHash          string
	Label              string
	Confidence         float64
	Predictions        json.RawMessage
	ModelVersion       *string
	InferenceLatencyMs *int
}

// InsertClassification records the result of a motion-classification
// inference call.
func (q *Queries) InsertClassification(ctx context.Context, arg InsertClassificationParams) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO image_classifications
			(id, device_id, tenant_id, image_hash, label, confidence, predictions, model_version, inference_latency_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, arg.ID, arg.DeviceID, arg.TenantID, arg.ImageHash, arg.Label, arg.Confidence,
		arg.Predictions, arg.ModelVersion, arg.InferenceLatencyMs)
	return err
}
