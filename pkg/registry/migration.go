package registry

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// MigrateTenant moves a device to a new owning tenant without touching
// its claim state or MQTT credentials (the username is the MAC, which
// is tenant-independent). The device is told its new topic prefix via
// an update_tenant command; no revoke is issued.
func (s *Store) MigrateTenant(ctx context.Context, deviceID, newTenantID uuid.UUID) error {
	device, err := s.q.GetDeviceByID(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("loading device for migration: %w", err)
	}
	oldTenantID := device.TenantID

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning migration transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	qtx := s.q.WithTx(tx)
	if err := qtx.UpdateDeviceTenant(ctx, deviceID, newTenantID); err != nil {
		return fmt.Errorf("rewriting device tenant: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing migration: %w", err)
	}

	if err := s.fabric.PublishCommand(ctx, oldTenantID.String(), device.MAC, "update_tenant", map[string]any{
		"tenant_id": newTenantID.String(),
	}); err != nil {
		s.logger.Error("publishing update_tenant command failed", "device_id", deviceID, "error", err)
	}

	s.logAudit(device.MAC, "migrate", map[string]any{"old_tenant_id": oldTenantID, "new_tenant_id": newTenantID})
	return nil
}
