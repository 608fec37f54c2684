package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/devicefabric/fabric/internal/db"
)

// ErrClaimCodeInvalid covers an unknown, expired, or already-used claim code.
var ErrClaimCodeInvalid = errors.New("claim code invalid or expired")

// ErrClaimingWindowClosed means no open claiming window exists for the MAC.
var ErrClaimingWindowClosed = errors.New("claiming window missing or expired")

// Credentials is what a device receives on a successful claim: the
// broker connection details plus its assigned identity.
type Credentials struct {
	DeviceID      uuid.UUID
	TenantID      uuid.UUID
	MQTTClientID  string
	MQTTUsername  string
	MQTTPassword  string
	MQTTBrokerURL string
	DeviceName    string
}

// OpenClaimingWindow creates or refreshes the claiming window for a MAC,
// returning its expiry.
func (s *Store) OpenClaimingWindow(ctx context.Context, mac string, tenantHint *uuid.UUID) (time.Time, error) {
	expiresAt := time.Now().Add(claimingWindowTTL)
	if err := s.q.UpsertClaimingWindow(ctx, mac, tenantHint, expiresAt); err != nil {
		return time.Time{}, fmt.Errorf("opening claiming window: %w", err)
	}
	return expiresAt, nil
}

// DeviceInfo is what the device reports about itself at claim time.
type DeviceInfo struct {
	MAC               string
	HardwareVersion   string
	FirmwareVersion   string
	FilesystemVersion string
}

// Claim completes enrollment: validates the claim code and claiming
// window, assigns a fresh broker credential, and returns everything the
// device needs to connect.
func (s *Store) Claim(ctx context.Context, claimCode string, info DeviceInfo) (Credentials, error) {
	code, err := s.q.GetActiveClaimCode(ctx, claimCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Credentials{}, ErrClaimCodeInvalid
		}
		return Credentials{}, fmt.Errorf("looking up claim code: %w", err)
	}

	window, err := s.q.GetClaimingWindow(ctx, info.MAC)
	if err != nil || window.ExpiresAt.Before(time.Now()) {
		return Credentials{}, ErrClaimingWindowClosed
	}

	password, err := generatePassword()
	if err != nil {
		return Credentials{}, err
	}
	passwordHash, err := hashPassword(password)
	if err != nil {
		return Credentials{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Credentials{}, fmt.Errorf("beginning claim transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	qtx := s.q.WithTx(tx)

	// A soft-deleted row for this MAC is cleared so a fresh claim can
	// resurrect the identity under a new row, satisfying I1.
	if err := qtx.DeleteUnclaimedByMAC(ctx, info.MAC); err != nil {
		return Credentials{}, fmt.Errorf("clearing soft-deleted device: %w", err)
	}

	device, err := qtx.CreateDevice(ctx, db.CreateDeviceParams{
		ID:            uuid.New(),
		TenantID:      code.TenantID,
		MAC:           info.MAC,
		DisplayName:   code.TargetDeviceName,
		PasswordHash:  passwordHash,
		PasswordPlain: password,
	})
	if err != nil {
		return Credentials{}, fmt.Errorf("creating device row: %w", err)
	}

	if err := qtx.MarkClaimCodeClaimed(ctx, code.ID); err != nil {
		return Credentials{}, fmt.Errorf("marking claim code claimed: %w", err)
	}

	if err := qtx.DeleteClaimingWindow(ctx, info.MAC); err != nil {
		return Credentials{}, fmt.Errorf("closing claiming window: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Credentials{}, fmt.Errorf("committing claim: %w", err)
	}

	if err := s.authority.UpsertCredential(ctx, info.MAC, password); err != nil {
		s.logger.Error("broker credential upsert failed after claim, relying on reconciliation", "mac", info.MAC, "error", err)
	}

	if err := s.fabric.ClearRetainedRevoke(ctx, code.TenantID, info.MAC); err != nil {
		s.logger.Warn("clearing retained revoke after claim failed", "mac", info.MAC, "error", err)
	}

	s.logAudit(info.MAC, "claim", map[string]any{"tenant_id": code.TenantID, "device_id": device.ID})

	return Credentials{
		DeviceID:      device.ID,
		TenantID:      device.TenantID,
		MQTTClientID:  info.MAC,
		MQTTUsername:  info.MAC,
		MQTTPassword:  password,
		MQTTBrokerURL: s.brokerURL,
		DeviceName:    device.DisplayName,
	}, nil
}

// CheckClaim is the narrow polling bridge a device uses between
// OpenClaimingWindow and an operator completing Claim: once a claimed
// device row exists for the MAC, its credentials are handed back so the
// device can stop AP-mode and attach to MQTT without holding a
// long-lived HTTP session open.
func (s *Store) CheckClaim(ctx context.Context, mac string) (claimed bool, creds Credentials, err error) {
	d, err := s.q.GetActiveDeviceByMAC(ctx, mac)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, Credentials{}, nil
	}
	if err != nil {
		return false, Credentials{}, fmt.Errorf("checking claim status: %w", err)
	}

	password := ""
	if d.PasswordPlain != nil {
		password = *d.PasswordPlain
	}

	return true, Credentials{
		DeviceID:      d.ID,
		TenantID:      d.TenantID,
		MQTTClientID:  d.MAC,
		MQTTUsername:  d.MAC,
		MQTTPassword:  password,
		MQTTBrokerURL: s.brokerURL,
		DeviceName:    d.DisplayName,
	}, nil
}
