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

// VerifyReason names why VerifyRevocation rejected a presented token.
type VerifyReason string

const (
	ReasonInvalidToken   VerifyReason = "invalid_token"
	ReasonTokenExpired   VerifyReason = "token_expired"
	ReasonDeviceMismatch VerifyReason = "device_mismatch"
	ReasonMissingParams  VerifyReason = "missing_params"
)

// Revoke soft-deletes a device and hands it a one-shot token it must
// present later to confirm it has discarded its identity locally. The
// server never unclaims a device purely because an MQTT message says
// so; VerifyRevocation is the only path that consumes the token.
func (s *Store) Revoke(ctx context.Context, deviceID uuid.UUID) error {
	device, err := s.q.GetDeviceByID(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("loading device for revocation: %w", err)
	}

	token, err := generateRevocationToken()
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning revocation transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	qtx := s.q.WithTx(tx)

	if err := qtx.CreateRevocationToken(ctx, db.CreateRevocationTokenParams{
		Token:     token,
		DeviceID:  deviceID,
		MAC:       device.MAC,
		ExpiresAt: time.Now().Add(revocationTokenTTL),
	}); err != nil {
		return fmt.Errorf("creating revocation token: %w", err)
	}

	if err := qtx.SetDeviceUnclaimed(ctx, deviceID, time.Now()); err != nil {
		return fmt.Errorf("soft-deleting device: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing revocation: %w", err)
	}

	if err := s.fabric.PublishRevoke(ctx, device.TenantID.String(), device.MAC, token); err != nil {
		s.logger.Error("publishing revoke message failed", "device_id", deviceID, "error", err)
	}

	if err := s.authority.DeleteCredential(ctx, device.MAC); err != nil {
		s.logger.Error("deleting broker credential after revocation failed, relying on reconciliation", "device_id", deviceID, "error", err)
	}

	s.logAudit(device.MAC, "revoke", map[string]any{"device_id": deviceID})
	return nil
}

// VerifyRevocation checks a device-presented revocation token. A valid,
// unexpired, unconsumed token bound to the presenting MAC is marked
// consumed and reports success; any other outcome leaves the device
// claimed.
func (s *Store) VerifyRevocation(ctx context.Context, mac, token string) (bool, VerifyReason) {
	if mac == "" || token == "" {
		return false, ReasonMissingParams
	}

	rec, err := s.q.GetRevocationToken(ctx, token)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ReasonInvalidToken
	}
	if err != nil {
		s.logger.Error("looking up revocation token failed", "error", err)
		return false, ReasonInvalidToken
	}

	if rec.MAC != mac {
		return false, ReasonDeviceMismatch
	}
	if rec.Consumed {
		return false, ReasonInvalidToken
	}
	if rec.ExpiresAt.Before(time.Now()) {
		return false, ReasonTokenExpired
	}

	consumed, err := s.q.ConsumeRevocationToken(ctx, token)
	if err != nil {
		s.logger.Error("consuming revocation token failed", "error", err)
		return false, ReasonInvalidToken
	}
	if !consumed {
		// Lost a race against a concurrent presentation of the same token.
		return false, ReasonInvalidToken
	}

	return true, ""
}
