package registry

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/devicefabric/fabric/internal/telemetry"
)

// RotateCredential generates a new broker password for a device, asks
// the broker to accept it immediately, then waits for the device to ack
// over MQTT. On ack the new credential is persisted; on timeout the
// broker is rolled back to the previous password and nothing is written
// to the database, so the device stays reachable either way.
func (s *Store) RotateCredential(ctx context.Context, deviceID uuid.UUID) error {
	device, err := s.q.GetDeviceByID(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("loading device for rotation: %w", err)
	}

	newPassword, err := generatePassword()
	if err != nil {
		return err
	}

	if err := s.authority.UpsertCredential(ctx, device.MAC, newPassword); err != nil {
		return fmt.Errorf("updating broker credential for rotation: %w", err)
	}

	if err := s.authority.ForceReload(); err != nil {
		return fmt.Errorf("forcing broker reload for rotation: %w", err)
	}

	acked, err := s.fabric.RequestRotation(ctx, device.TenantID.String(), device.MAC, newPassword, rotationAckTimeout)
	if err != nil {
		return fmt.Errorf("requesting rotation ack: %w", err)
	}

	if !acked {
		telemetry.RotationsTimedOutTotal.Inc()
		s.logger.Warn("credential rotation timed out, rolling back broker password", "device_id", deviceID, "mac", device.MAC)
		if device.PasswordPlain != nil {
			if err := s.authority.UpsertCredential(ctx, device.MAC, *device.PasswordPlain); err != nil {
				s.logger.Error("rolling back broker credential after rotation timeout failed", "device_id", deviceID, "error", err)
			}
		}
		return nil
	}

	newHash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := s.q.UpdateDeviceCredential(ctx, deviceID, newHash, newPassword); err != nil {
		return fmt.Errorf("persisting rotated credential: %w", err)
	}

	s.logAudit(device.MAC, "rotate", nil)
	return nil
}
