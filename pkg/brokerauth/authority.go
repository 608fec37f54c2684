package brokerauth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// writeRetryMax bounds the exponential backoff applied to a single
// credential write before it is given up on and left to the next
// reconciliation pass.
const writeRetryMax = 30 * time.Second

// Authority is the Broker Authority: it owns the single external
// credential store and coalesces reload signals so a batch of
// credential writes triggers one reload, not one per device.
type Authority struct {
	store  CredentialStore
	logger *slog.Logger

	debounce time.Duration

	mu        sync.Mutex
	timer     *time.Timer
	reloadErr error
}

// NewAuthority creates a Broker Authority over the given store.
func NewAuthority(store CredentialStore, debounce time.Duration, logger *slog.Logger) *Authority {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &Authority{store: store, debounce: debounce, logger: logger}
}

// UpsertCredential idempotently writes a credential and schedules a
// debounced reload. The write itself retries with bounded exponential
// backoff; if it still fails the error is logged and surfaced, but the
// caller's transaction is never rolled back — the database remains the
// source of truth and reconciliation will retry.
func (a *Authority) UpsertCredential(ctx context.Context, username, passwordPlain string) error {
	op := func() (struct{}, error) {
		return struct{}{}, a.store.Upsert(username, passwordPlain)
	}
	if _, err := backoff.Retry(ctx, op, backoff.WithMaxElapsedTime(writeRetryMax)); err != nil {
		a.logger.Error("upserting broker credential failed after retries", "username", username, "error", err)
		return err
	}
	a.scheduleReload()
	return nil
}

// DeleteCredential idempotently removes a credential and schedules a
// debounced reload.
func (a *Authority) DeleteCredential(ctx context.Context, username string) error {
	op := func() (struct{}, error) {
		return struct{}{}, a.store.Delete(username)
	}
	if _, err := backoff.Retry(ctx, op, backoff.WithMaxElapsedTime(writeRetryMax)); err != nil {
		a.logger.Error("deleting broker credential failed after retries", "username", username, "error", err)
		return err
	}
	a.scheduleReload()
	return nil
}

// ForceReload reloads the broker immediately, bypassing the debounce
// window. Used by credential rotation so the broker accepts the new
// password before the device is asked to switch to it.
func (a *Authority) ForceReload() error {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.mu.Unlock()
	return a.reload()
}

// scheduleReload coalesces calls arriving within the debounce window
// into a single reload.
func (a *Authority) scheduleReload() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.debounce, func() {
		if err := a.reload(); err != nil {
			a.logger.Error("broker reload failed, credential store may be stale until next reconciliation", "error", err)
		}
	})
}

func (a *Authority) reload() error {
	err := a.store.Reload()
	a.mu.Lock()
	a.reloadErr = err
	a.mu.Unlock()
	if err != nil {
		return err
	}
	a.logger.Debug("broker credential store reloaded")
	return nil
}

// LastReloadError reports the most recent reload failure, if any, for
// the observability surface mentioned in spec.md's degraded-state note.
func (a *Authority) LastReloadError() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reloadErr
}
