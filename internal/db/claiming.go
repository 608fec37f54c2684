package db

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UpsertClaimingWindow opens (or extends) the two-window enrollment
// period for mac.
func (q *Queries) UpsertClaimingWindow(ctx context.Context, mac string, tenantHint *uuid.UUID, expiresAt time.Time) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO device_claiming_queue (mac, tenant_hint, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (mac) DO UPDATE SET tenant_hint = $2, expires_at = $3
	`, mac, tenantHint, expiresAt)
	return err
}

// GetClaimingWindow returns the open claiming window for mac, if any.
func (q *Queries) GetClaimingWindow(ctx context.Context, mac string) (ClaimingWindow, error) {
	row := q.db.QueryRow(ctx, `
		SELECT mac, tenant_hint, expires_at, created_at FROM device_claiming_queue WHERE mac = $1
	`, mac)
	var w ClaimingWindow
	err := row.Scan(&w.MAC, &w.TenantHint, &w.ExpiresAt, &w.CreatedAt)
	return w, err
}

// DeleteClaimingWindow closes the claiming window for mac, successful
// claim or not.
func (q *Queries) DeleteClaimingWindow(ctx context.Context, mac string) error {
	_, err := q.db.Exec(ctx, `DELETE FROM device_claiming_queue WHERE mac = $1`, mac)
	return err
}

// GetActiveClaimCode looks up an unexpired, unclaimed claim code.
func (q *Queries) GetActiveClaimCode(ctx context.Context, code string) (ClaimCode, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, code, tenant_id, target_device_name, status, expires_at, created_at, claimed_at
		FROM claim_codes WHERE code = $1 AND status = 'active' AND expires_at > now()
	`, code)
	var c ClaimCode
	err := row.Scan(&c.ID, &c.Code, &c.TenantID, &c.TargetDeviceName, &c.Status, &c.ExpiresAt, &c.CreatedAt, &c.ClaimedAt)
	return c, err
}

// MarkClaimCodeClaimed consumes a claim code so it cannot be reused.
func (q *Queries) MarkClaimCodeClaimed(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, `
		UPDATE claim_codes SET status = 'claimed', claimed_at = now() WHERE id = $1
	`, id)
	return err
}

type CreateRevocationTokenParams struct {
	Token     string
	DeviceID  uuid.UUID
	MAC       string
	ExpiresAt time.Time
}

// CreateRevocationToken records a single-use revocation token.
func (q *Queries) CreateRevocationToken(ctx context.Context, arg CreateRevocationTokenParams) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO revocation_tokens (token, device_id, mac, expires_at)
		VALUES ($1, $2, $3, $4)
	`, arg.Token, arg.DeviceID, arg.MAC, arg.ExpiresAt)
	return err
}

// GetRevocationToken returns a revocation token row by its token value.
func (q *Queries) GetRevocationToken(ctx context.Context, token string) (RevocationToken, error) {
	row := q.db.QueryRow(ctx, `
		SELECT token, device_id, mac, expires_at, consumed, created_at
		FROM revocation_tokens WHERE token = $1
	`, token)
	var t RevocationToken
	err := row.Scan(&t.Token, &t.DeviceID, &t.MAC, &t.ExpiresAt, &t.Consumed, &t.CreatedAt)
	return t, err
}

// ConsumeRevocationToken marks a token consumed, guarded so a replayed
// token never succeeds twice.
func (q *Queries) ConsumeRevocationToken(ctx context.Context, token string) (bool, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE revocation_tokens SET consumed = true
		WHERE token = $1 AND consumed = false AND expires_at > now()
	`, token)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

type InsertClaimAuditParams struct {
	ID        uuid.UUID
	DeviceMAC string
	Source    string
	Detail    []byte
}

// InsertClaimAudit records a claim/unclaim/revocation lifecycle event.
func (q *Queries) InsertClaimAudit(ctx context.Context, arg InsertClaimAuditParams) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO device_claim_audit (id, device_mac, source, detail)
		VALUES ($1, $2, $3, $4)
	`, arg.ID, arg.DeviceMAC, arg.Source, arg.Detail)
	return err
}

// HasClaimHistory reports whether a MAC ever appeared in the claim
// audit log. The audit log outlives the device row it describes (it is
// never purged), so this is how claim-status tells "never existed"
// apart from "existed once, now purged" after the device row is gone.
func (q *Queries) HasClaimHistory(ctx context.Context, mac string) (bool, error) {
	row := q.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM device_claim_audit WHERE device_mac = $1)`, mac)
	var exists bool
	err := row.Scan(&exists)
	return exists, err
}
