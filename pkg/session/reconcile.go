package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ReconcileOnReconnect repairs fleet state after a server restart or a
// brief partition: if a status message reports triggered=true but no
// active alert exists for the device, one is synthesized.
func (s *Store) ReconcileOnReconnect(ctx context.Context, deviceID, tenantID uuid.UUID, report StatusReport) {
	if !report.Triggered {
		return
	}

	_, err := s.q.GetActiveAlertForDevice(ctx, deviceID)
	if err == nil {
		return // already tracked
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		s.logger.Error("reconciliation: checking active alert", "device_id", deviceID, "error", err)
		return
	}

	triggeredAt := time.Now()
	if report.ReportedAt != nil {
		triggeredAt = *report.ReportedAt
	}

	if _, err := s.Synthesize(ctx, deviceID, tenantID, triggeredAt); err != nil && !errors.Is(err, ErrAlertSuppressed) {
		s.logger.Error("reconciliation: synthesizing alert", "device_id", deviceID, "error", err)
	}
}
