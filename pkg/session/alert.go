package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/devicefabric/fabric/internal/db"
	"github.com/devicefabric/fabric/internal/events"
	"github.com/devicefabric/fabric/internal/telemetry"
	"github.com/devicefabric/fabric/pkg/classify"
	"github.com/devicefabric/fabric/pkg/escalation"
)

// pgUniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// ErrAlertSuppressed is returned by CreateFromTrigger when invariant I5
// already has an active alert for the device; the caller should log and
// drop the message, not retry.
var ErrAlertSuppressed = errors.New("alert suppressed: device already has an active alert")

// CreateFromTrigger applies the single-active invariant (I5) and, if no
// active alert exists for the device, inserts a new one. It returns
// ErrAlertSuppressed (not a hard error) when a trigger is suppressed.
func (s *Store) CreateFromTrigger(ctx context.Context, deviceID, tenantID uuid.UUID, trig AlertTrigger) (Alert, error) {
	_, err := s.q.GetActiveAlertForDevice(ctx, deviceID)
	if err == nil {
		telemetry.AlertsSuppressedTotal.Inc()
		return Alert{}, ErrAlertSuppressed
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Alert{}, fmt.Errorf("checking active alert: %w", err)
	}

	sensorData := trig.SensorData
	if sensorData == nil {
		sensorData = json.RawMessage("{}")
	}

	row, err := s.q.CreateAlert(ctx, db.CreateAlertParams{
		ID:          uuid.New(),
		DeviceID:    deviceID,
		TenantID:    tenantID,
		Severity:    normalizeSeverity(trig.Severity),
		TriggeredAt: time.Now(),
		SensorData:  sensorData,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			// Lost the race against a concurrent insert for the same device.
			telemetry.AlertsSuppressedTotal.Inc()
			return Alert{}, ErrAlertSuppressed
		}
		return Alert{}, fmt.Errorf("creating alert: %w", err)
	}

	alert := alertFromRow(row)
	s.afterCreate(alert)
	return alert, nil
}

// Synthesize creates an alert that was not observed directly but is
// inferred from a reconnecting device's self-reported trigger state
// (state reconciliation on reconnect).
func (s *Store) Synthesize(ctx context.Context, deviceID, tenantID uuid.UUID, triggeredAt time.Time) (Alert, error) {
	_, err := s.q.GetActiveAlertForDevice(ctx, deviceID)
	if err == nil {
		return Alert{}, ErrAlertSuppressed
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Alert{}, fmt.Errorf("checking active alert: %w", err)
	}

	row, err := s.q.CreateAlert(ctx, db.CreateAlertParams{
		ID:          uuid.New(),
		DeviceID:    deviceID,
		TenantID:    tenantID,
		Severity:    "high",
		TriggeredAt: triggeredAt,
		SensorData:  json.RawMessage(`{"synced_from_device":true}`),
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return Alert{}, ErrAlertSuppressed
		}
		return Alert{}, fmt.Errorf("creating synthesized alert: %w", err)
	}

	alert := alertFromRow(row)
	s.afterCreate(alert)
	return alert, nil
}

// afterCreate records the creation metric, publishes the dashboard event,
// and fans the immediate notifications out.
func (s *Store) afterCreate(alert Alert) {
	telemetry.AlertsCreatedTotal.WithLabelValues(alert.Severity).Inc()
	s.bus.Publish(events.Event{
		Timestamp: time.Now(),
		Kind:      events.KindAlertCreated,
		TenantID:  alert.TenantID,
		AlertID:   &alert.ID,
		Data:      map[string]any{"device_id": alert.DeviceID.String(), "severity": alert.Severity},
	})
	s.notifyImmediate(alert)
}

// notifyImmediate pushes to tenant users and level-1 emergency contacts
// right away, ahead of and independent from the escalation engine's
// later, level-gated re-notify ticks, then seeds the alert's escalation
// state at level 1 so the engine picks up from there instead of
// re-notifying a level it already covered. Runs detached from the
// caller's context so a slow provider never blocks alert creation.
func (s *Store) notifyImmediate(alert Alert) {
	if s.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		row := db.Alert{
			ID:                  alert.ID,
			DeviceID:            alert.DeviceID,
			TenantID:            alert.TenantID,
			Severity:            alert.Severity,
			Status:              alert.Status,
			TriggeredAt:         alert.TriggeredAt,
			SensorData:          alert.SensorData,
			ClassificationLabel: alert.ClassificationLabel,
		}
		tenantID := alert.TenantID.String()

		if err := s.notifier.NotifyTenantUsers(ctx, tenantID, row, 1); err != nil {
			s.logger.Error("immediate tenant user notify failed", "alert_id", alert.ID, "error", err)
		}

		notified, _, err := s.notifier.NotifyEmergencyContacts(ctx, tenantID, row, 1, nil)
		if err != nil {
			s.logger.Error("immediate emergency contact notify failed", "alert_id", alert.ID, "error", err)
		}

		now := time.Now()
		contactsJSON, _ := json.Marshal(notified)
		if err := s.q.UpsertEscalationState(ctx, db.UpsertEscalationStateParams{
			AlertID:            alert.ID,
			CurrentLevel:       1,
			LastNotificationAt: &now,
			NextNotificationAt: escalation.NextNotificationAt(1, now),
			NotificationCount:  1,
			ContactsNotified:   contactsJSON,
			Preset:             string(escalation.PresetNormal),
		}); err != nil {
			s.logger.Error("seeding escalation state after immediate notify", "alert_id", alert.ID, "error", err)
		}
	}()
}

func alertFromRow(row db.Alert) Alert {
	return Alert{
		ID:                  row.ID,
		DeviceID:            row.DeviceID,
		TenantID:            row.TenantID,
		Severity:            row.Severity,
		Status:              row.Status,
		TriggeredAt:         row.TriggeredAt,
		SensorData:          row.SensorData,
		ClassificationLabel: row.ClassificationLabel,
	}
}

// ApplyClassification records every classification result unconditionally
// (device, tenant, image hash, label, confidence, predictions, model
// version, inference latency), then, if the label is "rodent" with
// confidence over 0.5, also feeds the result into alert creation (subject
// to I5).
func (s *Store) ApplyClassification(ctx context.Context, deviceID, tenantID uuid.UUID, imageHash string, result classify.Result) (*Alert, error) {
	predictions := result.Predictions
	if predictions == nil {
		predictions = json.RawMessage("null")
	}
	var modelVersion *string
	if result.ModelVersion != "" {
		modelVersion = &result.ModelVersion
	}
	var latencyMs *int
	if result.InferenceLatencyMs > 0 {
		latencyMs = &result.InferenceLatencyMs
	}
	if err := s.q.InsertClassification(ctx, db.InsertClassificationParams{
		ID:                 uuid.New(),
		DeviceID:           deviceID,
		TenantID:           tenantID,
		ImageHash:          imageHash,
		Label:              result.Label,
		Confidence:         result.Confidence,
		Predictions:        predictions,
		ModelVersion:       modelVersion,
		InferenceLatencyMs: latencyMs,
	}); err != nil {
		return nil, fmt.Errorf("recording classification: %w", err)
	}

	if result.Label != "rodent" || result.Confidence <= 0.5 {
		return nil, nil
	}

	payload, _ := json.Marshal(map[string]any{"classification_label": result.Label, "classification_confidence": result.Confidence})
	alert, err := s.CreateFromTrigger(ctx, deviceID, tenantID, AlertTrigger{
		Severity:   "medium",
		SensorData: payload,
	})
	if err != nil {
		if errors.Is(err, ErrAlertSuppressed) {
			return nil, nil
		}
		return nil, err
	}

	if err := s.q.ApplyClassification(ctx, alert.ID, result.Label, result.Confidence); err != nil {
		return nil, fmt.Errorf("attaching classification to alert: %w", err)
	}
	alert.ClassificationLabel = &result.Label
	return &alert, nil
}
