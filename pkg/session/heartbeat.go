package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/devicefabric/fabric/internal/db"
	"github.com/devicefabric/fabric/internal/events"
	"github.com/devicefabric/fabric/internal/telemetry"
)

// OfflineFunc is called when a device's heartbeat timer expires.
type OfflineFunc func(ctx context.Context, deviceID uuid.UUID)

// HeartbeatMap is the in-memory liveness tracker keyed by device ID. Each
// entry carries a timer that, left unreset, marks the device offline
// after HeartbeatTimeout.
type HeartbeatMap struct {
	logger  *slog.Logger
	offline OfflineFunc
	timeout time.Duration

	mu     sync.Mutex
	timers map[uuid.UUID]*time.Timer
}

// NewHeartbeatMap creates a HeartbeatMap. offline is invoked (in its own
// goroutine) whenever a device's timer fires without being reset.
func NewHeartbeatMap(logger *slog.Logger, offline OfflineFunc) *HeartbeatMap {
	return &HeartbeatMap{
		logger:  logger,
		offline: offline,
		timeout: HeartbeatTimeout,
		timers:  make(map[uuid.UUID]*time.Timer),
	}
}

// Beat resets the timer for deviceID, creating one if this is the first
// heartbeat seen for the device since process start.
func (h *HeartbeatMap) Beat(deviceID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if t, ok := h.timers[deviceID]; ok {
		t.Stop()
	}
	h.timers[deviceID] = time.AfterFunc(h.timeout, func() {
		h.fire(deviceID)
	})
}

// Forget stops tracking a device (unclaim/revocation).
func (h *HeartbeatMap) Forget(deviceID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if t, ok := h.timers[deviceID]; ok {
		t.Stop()
		delete(h.timers, deviceID)
	}
}

// TrackedCount returns the number of devices with a live timer.
func (h *HeartbeatMap) TrackedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.timers)
}

func (h *HeartbeatMap) fire(deviceID uuid.UUID) {
	h.mu.Lock()
	delete(h.timers, deviceID)
	h.mu.Unlock()

	h.logger.Info("device heartbeat expired, marking offline", "device_id", deviceID)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	h.offline(ctx, deviceID)
}

// Notifier performs the immediate tenant-user push and emergency-contact
// fan-out owed the moment an alert is created, ahead of and independent
// from the escalation engine's later, level-gated re-notify ticks.
// Implemented by pkg/notify.
type Notifier interface {
	NotifyTenantUsers(ctx context.Context, tenantID string, alert db.Alert, level int) error
	NotifyEmergencyContacts(ctx context.Context, tenantID string, alert db.Alert, level int, alreadyNotified []string) (newlyNotified []string, dndOverridden bool, err error)
}

// Store wires the heartbeat map to the database and event bus so
// liveness transitions are durable and observable.
type Store struct {
	q        *db.Queries
	logger   *slog.Logger
	bus      *events.Bus
	notifier Notifier
	hb       *HeartbeatMap
}

// NewStore creates a Store backed by the given database connection. A nil
// notifier disables the immediate alert-creation fan-out; the escalation
// engine still runs its own delayed ticks independently.
func NewStore(dbtx db.DBTX, logger *slog.Logger, bus *events.Bus, notifier Notifier) *Store {
	s := &Store{q: db.New(dbtx), logger: logger, bus: bus, notifier: notifier}
	s.hb = NewHeartbeatMap(logger, s.markOffline)
	return s
}

// Heartbeats exposes the underlying liveness tracker, e.g. for
// telemetry.DevicesOnlineGauge updates.
func (s *Store) Heartbeats() *HeartbeatMap { return s.hb }

func (s *Store) markOffline(ctx context.Context, deviceID uuid.UUID) {
	if err := s.q.MarkOffline(ctx, deviceID); err != nil {
		s.logger.Error("marking device offline", "device_id", deviceID, "error", err)
		return
	}
	telemetry.DevicesOnlineGauge.Set(float64(s.hb.TrackedCount()))
	s.bus.Publish(events.Event{
		Timestamp: time.Now(),
		Kind:      events.KindDeviceOnline,
		Data:      map[string]any{"device_id": deviceID.String(), "online": false},
	})
}

// ApplyStatus updates a device row from a status message and resets its
// heartbeat timer when the device reports itself online.
func (s *Store) ApplyStatus(ctx context.Context, deviceID uuid.UUID, report StatusReport) error {
	lastSeen := time.Now()
	if report.ReportedAt != nil {
		lastSeen = *report.ReportedAt
	}

	var fw, fs *string
	if report.FirmwareVersion != "" {
		fw = &report.FirmwareVersion
	}
	if report.FilesystemVersion != "" {
		fs = &report.FilesystemVersion
	}

	if err := s.q.UpdateHeartbeat(ctx, db.UpdateHeartbeatParams{
		DeviceID:          deviceID,
		Online:            report.Online,
		LastSeenAt:        lastSeen,
		FirmwareVersion:   fw,
		FilesystemVersion: fs,
	}); err != nil {
		return err
	}

	if report.Online {
		s.hb.Beat(deviceID)
		telemetry.DevicesOnlineGauge.Set(float64(s.hb.TrackedCount()))
	}

	return nil
}
