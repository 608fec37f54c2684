package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type CreateDeviceParams struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	MAC           string
	DisplayName   string
	PasswordHash  string
	PasswordPlain string
}

// CreateDevice inserts a new claimed device row. Callers must first
// delete any soft-deleted row for the same MAC (see DeleteUnclaimedByMAC)
// to satisfy invariant I1.
func (q *Queries) CreateDevice(ctx context.Context, arg CreateDeviceParams) (Device, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO devices (id, tenant_id, mac, display_name, password_hash, password_plain)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, tenant_id, mac, display_name, firmware_version, filesystem_version,
			last_seen_at, online, unclaimed_at, claim_epoch, password_hash, password_plain,
			created_at, updated_at
	`, arg.ID, arg.TenantID, arg.MAC, arg.DisplayName, arg.PasswordHash, arg.PasswordPlain)
	return scanDevice(row)
}

// GetActiveDeviceByMAC returns the claimed device row for mac, if any.
func (q *Queries) GetActiveDeviceByMAC(ctx context.Context, mac string) (Device, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, tenant_id, mac, display_name, firmware_version, filesystem_version,
			last_seen_at, online, unclaimed_at, claim_epoch, password_hash, password_plain,
			created_at, updated_at
		FROM devices WHERE mac = $1 AND unclaimed_at IS NULL
	`, mac)
	return scanDevice(row)
}

// GetLatestDeviceByMAC returns the most recently created device row for
// mac regardless of claim state, used by the claim-status endpoint to
// tell a claimed device (200) from a revoked one (410).
func (q *Queries) GetLatestDeviceByMAC(ctx context.Context, mac string) (Device, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, tenant_id, mac, display_name, firmware_version, filesystem_version,
			last_seen_at, online, unclaimed_at, claim_epoch, password_hash, password_plain,
			created_at, updated_at
		FROM devices WHERE mac = $1 ORDER BY created_at DESC LIMIT 1
	`, mac)
	return scanDevice(row)
}

// GetDeviceByID returns a device by its id.
func (q *Queries) GetDeviceByID(ctx context.Context, id uuid.UUID) (Device, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, tenant_id, mac, display_name, firmware_version, filesystem_version,
			last_seen_at, online, unclaimed_at, claim_epoch, password_hash, password_plain,
			created_at, updated_at
		FROM devices WHERE id = $1
	`, id)
	return scanDevice(row)
}

// DeleteUnclaimedByMAC removes any soft-deleted row for mac, clearing the
// way for a fresh claim to resurrect the identity under a new row.
func (q *Queries) DeleteUnclaimedByMAC(ctx context.Context, mac string) error {
	_, err := q.db.Exec(ctx, `DELETE FROM devices WHERE mac = $1 AND unclaimed_at IS NOT NULL`, mac)
	return err
}

// UpdateDeviceTenant rewrites the owning tenant of a device (migration).
func (q *Queries) UpdateDeviceTenant(ctx context.Context, deviceID, tenantID uuid.UUID) error {
	tag, err := q.db.Exec(ctx, `UPDATE devices SET tenant_id = $2, updated_at = now() WHERE id = $1`, deviceID, tenantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("device %s not found", deviceID)
	}
	return nil
}

// UpdateDeviceCredential persists the result of a successfully acked
// credential rotation.
func (q *Queries) UpdateDeviceCredential(ctx context.Context, deviceID uuid.UUID, passwordHash, passwordPlain string) error {
	_, err := q.db.Exec(ctx, `
		UPDATE devices SET password_hash = $2, password_plain = $3, updated_at = now() WHERE id = $1
	`, deviceID, passwordHash, passwordPlain)
	return err
}

// SetDeviceUnclaimed soft-deletes a device (revocation).
func (q *Queries) SetDeviceUnclaimed(ctx context.Context, deviceID uuid.UUID, at time.Time) error {
	_, err := q.db.Exec(ctx, `UPDATE devices SET unclaimed_at = $2, updated_at = now() WHERE id = $1`, deviceID, at)
	return err
}

type UpdateHeartbeatParams struct {
	DeviceID          uuid.UUID
	Online            bool
	LastSeenAt        time.Time
	FirmwareVersion   *string
	FilesystemVersion *string
}

// UpdateHeartbeat applies the fields a status message reports.
func (q *Queries) UpdateHeartbeat(ctx context.Context, arg UpdateHeartbeatParams) error {
	_, err := q.db.Exec(ctx, `
		UPDATE devices SET
			online = $2,
			last_seen_at = $3,
			firmware_version = COALESCE($4, firmware_version),
			filesystem_version = COALESCE($5, filesystem_version),
			updated_at = now()
		WHERE id = $1
	`, arg.DeviceID, arg.Online, arg.LastSeenAt, arg.FirmwareVersion, arg.FilesystemVersion)
	return err
}

// MarkOffline flips a device's online flag to false (heartbeat expiry).
func (q *Queries) MarkOffline(ctx context.Context, deviceID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `UPDATE devices SET online = false, updated_at = now() WHERE id = $1`, deviceID)
	return err
}

// ListClaimedDevices returns every device eligible for broker
// reconciliation (unclaimed_at IS NULL).
func (q *Queries) ListClaimedDevices(ctx context.Context) ([]Device, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, tenant_id, mac, display_name, firmware_version, filesystem_version,
			last_seen_at, online, unclaimed_at, claim_epoch, password_hash, password_plain,
			created_at, updated_at
		FROM devices WHERE unclaimed_at IS NULL
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Device
	for rows.Next() {
		d, err := scanDeviceRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// PurgeUnclaimedBefore deletes soft-deleted device rows older than before.
func (q *Queries) PurgeUnclaimedBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM devices WHERE unclaimed_at IS NOT NULL AND unclaimed_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (Device, error) {
	var d Device
	err := row.Scan(
		&d.ID, &d.TenantID, &d.MAC, &d.DisplayName, &d.FirmwareVersion, &d.FilesystemVersion,
		&d.LastSeenAt, &d.Online, &d.UnclaimedAt, &d.ClaimEpoch, &d.PasswordHash, &d.PasswordPlain,
		&d.CreatedAt, &d.UpdatedAt,
	)
	return d, err
}

func scanDeviceRows(row rowScanner) (Device, error) {
	return scanDevice(row)
}
