package brokerauth

import (
	"context"
	"log/slog"
	"time"

	"github.com/devicefabric/fabric/internal/db"
	"github.com/devicefabric/fabric/internal/telemetry"
)

// Reconciler periodically diffs the broker's credential set against
// every claimed device and repairs drift. This is the safety net that
// makes the Authority's debounced, best-effort writes eventually
// consistent even after a failed write or a missed event.
type Reconciler struct {
	authority *Authority
	q         *db.Queries
	logger    *slog.Logger
	interval  time.Duration
}

// NewReconciler creates a Reconciler. interval defaults to 5 minutes.
func NewReconciler(authority *Authority, q *db.Queries, interval time.Duration, logger *slog.Logger) *Reconciler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Reconciler{authority: authority, q: q, interval: interval, logger: logger}
}

// Run blocks, reconciling on every tick, until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.reconcileOnce(ctx); err != nil {
				r.logger.Error("broker reconciliation pass failed", "error", err)
			}
		}
	}
}

func (r *Reconciler) reconcileOnce(ctx context.Context) error {
	devices, err := r.q.ListClaimedDevices(ctx)
	if err != nil {
		return err
	}

	wanted := make(map[string]db.Device, len(devices))
	for _, d := range devices {
		wanted[d.MAC] = d
	}

	onBroker, err := r.authority.store.Usernames()
	if err != nil {
		return err
	}
	present := make(map[string]struct{}, len(onBroker))
	for _, u := range onBroker {
		present[u] = struct{}{}
	}

	diffs := 0
	for mac, dev := range wanted {
		if _, ok := present[mac]; ok {
			continue
		}
		if dev.PasswordPlain == nil {
			r.logger.Warn("claimed device missing plaintext broker password, cannot reconcile", "mac", mac)
			continue
		}
		if err := r.authority.UpsertCredential(ctx, mac, *dev.PasswordPlain); err != nil {
			r.logger.Error("reconciliation upsert failed", "mac", mac, "error", err)
			continue
		}
		telemetry.BrokerReconciliationDiffsTotal.WithLabelValues("upsert").Inc()
		diffs++
	}

	for username := range present {
		if _, ok := wanted[username]; ok {
			continue
		}
		if err := r.authority.DeleteCredential(ctx, username); err != nil {
			r.logger.Error("reconciliation delete failed", "username", username, "error", err)
			continue
		}
		telemetry.BrokerReconciliationDiffsTotal.WithLabelValues("delete").Inc()
		diffs++
	}

	if diffs > 0 {
		r.logger.Info("broker reconciliation applied diffs", "diffs", diffs)
	}
	return nil
}
