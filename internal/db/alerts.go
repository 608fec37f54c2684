package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// GetActiveAlertForDevice returns the non-terminal alert for a device, if
// any (invariant I5 guarantees at most one).
func (q *Queries) GetActiveAlertForDevice(ctx context.Context, deviceID uuid.UUID) (Alert, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, device_id, tenant_id, severity, status, triggered_at, resolved_at, resolved_by,
			sensor_data, classification_label, classification_confidence, created_at
		FROM alerts WHERE device_id = $1 AND status IN ('new', 'acknowledged')
	`, deviceID)
	return scanAlert(row)
}

type CreateAlertParams struct {
	ID          uuid.UUID
	DeviceID    uuid.UUID
	TenantID    uuid.UUID
	Severity    string
	TriggeredAt time.Time
	SensorData  json.RawMessage
}

// CreateAlert inserts a new alert in status "new". A concurrent insert
// violating alerts_device_active_idx surfaces as a unique_violation the
// caller maps to "trigger suppressed".
func (q *Queries) CreateAlert(ctx context.Context, arg CreateAlertParams) (Alert, error) {
	sensorData := arg.SensorData
	if sensorData == nil {
		sensorData = json.RawMessage("{}")
	}
	row := q.db.QueryRow(ctx, `
		INSERT INTO alerts (id, device_id, tenant_id, severity, status, triggered_at, sensor_data)
		VALUES ($1, $2, $3, $4, 'new', $5, $6)
		RETURNING id, device_id, tenant_id, severity, status, triggered_at, resolved_at, resolved_by,
			sensor_data, classification_label, classification_confidence, created_at
	`, arg.ID, arg.DeviceID, arg.TenantID, arg.Severity, arg.TriggeredAt, sensorData)
	return scanAlert(row)
}

// ApplyClassification attaches a motion classification result to an
// alert once the blocking classification call returns.
func (q *Queries) ApplyClassification(ctx context.Context, alertID uuid.UUID, label string, confidence float64) error {
	_, err := q.db.Exec(ctx, `
		UPDATE alerts SET classification_label = $2, classification_confidence = $3 WHERE id = $1
	`, alertID, label, confidence)
	return err
}

// ResolveAlert moves an alert to status "resolved", idempotently: a
// second resolve on an already-resolved alert affects zero rows.
func (q *Queries) ResolveAlert(ctx context.Context, alertID uuid.UUID, resolvedBy string, at time.Time) (bool, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE alerts SET status = 'resolved', resolved_at = $2, resolved_by = $3
		WHERE id = $1 AND status IN ('new', 'acknowledged')
	`, alertID, at, resolvedBy)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ResolveActiveAlertForDevice resolves whatever active alert a device
// has, used when an operator or the device itself resolves the alert.
func (q *Queries) ResolveActiveAlertForDevice(ctx context.Context, deviceID uuid.UUID, resolvedBy string, at time.Time) (bool, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE alerts SET status = 'resolved', resolved_at = $2, resolved_by = $3
		WHERE device_id = $1 AND status IN ('new', 'acknowledged')
	`, deviceID, at, resolvedBy)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// AcknowledgeAlert moves an alert from "new" to "acknowledged".
func (q *Queries) AcknowledgeAlert(ctx context.Context, alertID uuid.UUID) (bool, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE alerts SET status = 'acknowledged' WHERE id = $1 AND status = 'new'
	`, alertID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// GetAlert returns an alert by id.
func (q *Queries) GetAlert(ctx context.Context, alertID uuid.UUID) (Alert, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, device_id, tenant_id, severity, status, triggered_at, resolved_at, resolved_by,
			sensor_data, classification_label, classification_confidence, created_at
		FROM alerts WHERE id = $1
	`, alertID)
	return scanAlert(row)
}

func scanAlert(row rowScanner) (Alert, error) {
	var a Alert
	err := row.Scan(
		&a.ID, &a.DeviceID, &a.TenantID, &a.Severity, &a.Status, &a.TriggeredAt, &a.ResolvedAt, &a.ResolvedBy,
		&a.SensorData, &a.ClassificationLabel, &a.ClassificationConfidence, &a.CreatedAt,
	)
	return a, err
}
