package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/devicefabric/fabric/internal/events"
)

// ResolveByOperator resolves a device's active alert following an
// operator-initiated action. The caller is responsible for publishing
// the alert_reset command on the device's cmd topic; this only updates
// the database and is idempotent (a second call on an already-resolved
// alert is a no-op, not an error).
func (s *Store) ResolveByOperator(ctx context.Context, deviceID uuid.UUID, operator string) error {
	return s.resolveDevice(ctx, deviceID, operator)
}

// ResolveFromDevice resolves a device's active alert on receipt of the
// device's alert_cleared acknowledgment. Idempotent for the same reason
// as ResolveByOperator: the two directions can race, and neither should
// error when it loses.
func (s *Store) ResolveFromDevice(ctx context.Context, deviceID uuid.UUID) error {
	return s.resolveDevice(ctx, deviceID, "device")
}

func (s *Store) resolveDevice(ctx context.Context, deviceID uuid.UUID, resolvedBy string) error {
	alert, err := s.q.GetActiveAlertForDevice(ctx, deviceID)
	if err != nil {
		// No active alert: the other direction already resolved it.
		return nil
	}

	ok, err := s.q.ResolveActiveAlertForDevice(ctx, deviceID, resolvedBy, time.Now())
	if err != nil {
		return fmt.Errorf("resolving alert: %w", err)
	}
	if !ok {
		return nil
	}

	if err := s.q.DeleteEscalationState(ctx, alert.ID); err != nil {
		return fmt.Errorf("clearing escalation state: %w", err)
	}

	s.bus.Publish(events.Event{
		Timestamp: time.Now(),
		Kind:      events.KindAlertResolved,
		TenantID:  alert.TenantID,
		AlertID:   &alert.ID,
		Data:      map[string]any{"device_id": deviceID.String(), "resolved_by": resolvedBy},
	})
	return nil
}

// Acknowledge moves an alert from new to acknowledged and clears its
// escalation state, stopping further escalation ticks.
func (s *Store) Acknowledge(ctx context.Context, alertID uuid.UUID) error {
	if _, err := s.q.AcknowledgeAlert(ctx, alertID); err != nil {
		return fmt.Errorf("acknowledging alert: %w", err)
	}
	return s.q.DeleteEscalationState(ctx, alertID)
}
