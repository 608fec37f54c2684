package escalation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/devicefabric/fabric/internal/db"
	"github.com/devicefabric/fabric/internal/telemetry"
)

// DeviceCommander publishes device-bound escalation signals. Implemented
// by pkg/fabric.
type DeviceCommander interface {
	PublishEscalation(ctx context.Context, tenantID, deviceID string, signal DeviceSignal) error
}

// Notifier performs the fan-out deliveries for a single escalation tick.
// Implemented by pkg/notify.
type Notifier interface {
	NotifyTenantUsers(ctx context.Context, tenantID string, alert db.Alert, level int) error
	NotifyEmergencyContacts(ctx context.Context, tenantID string, alert db.Alert, level int, alreadyNotified []string) (newlyNotified []string, dndOverridden bool, err error)
}

// Engine is the background worker that advances alerts through their
// escalation levels and notifies contacts.
type Engine struct {
	pool      *pgxpool.Pool
	rdb       *redis.Client
	logger    *slog.Logger
	commander DeviceCommander
	notifier  Notifier
	interval  time.Duration
	batchSize int
}

// Config tunes the engine loop.
type Config struct {
	TickInterval time.Duration
	BatchLimit   int
}

// NewEngine creates a new escalation engine.
func NewEngine(pool *pgxpool.Pool, rdb *redis.Client, logger *slog.Logger, commander DeviceCommander, notifier Notifier, cfg Config) *Engine {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Minute
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 100
	}
	return &Engine{
		pool:      pool,
		rdb:       rdb,
		logger:    logger,
		commander: commander,
		notifier:  notifier,
		interval:  cfg.TickInterval,
		batchSize: cfg.BatchLimit,
	}
}

// Run starts the escalation engine loop. It blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("escalation engine started", "interval", e.interval)

	pubsub := e.rdb.Subscribe(ctx, "devicefabric:alert:ack")
	defer pubsub.Close()
	ackCh := pubsub.Channel()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("escalation engine stopped")
			return nil
		case msg := <-ackCh:
			// Acks stop escalation immediately; the next tick also would
			// have skipped this alert since the ack handler deletes its
			// escalation-state row. Logged for observability only.
			e.logger.Debug("received ack event", "alert_id", msg.Payload)
		case <-ticker.C:
			if err := e.tick(ctx); err != nil {
				e.logger.Error("escalation tick failed", "error", err)
			}
		}
	}
}

// tick processes one batch of alerts due for escalation.
func (e *Engine) tick(ctx context.Context) error {
	q := db.New(e.pool)

	alerts, err := q.ListAlertsNeedingEscalation(ctx, e.batchSize)
	if err != nil {
		return fmt.Errorf("listing alerts needing escalation: %w", err)
	}

	for _, a := range alerts {
		if err := e.processAlert(ctx, q, a); err != nil {
			e.logger.Error("processing alert escalation", "alert_id", a.ID, "error", err)
		}
	}
	return nil
}

// processAlert evaluates and, if due, advances one alert's escalation
// state, notifies, and signals the device.
func (e *Engine) processAlert(ctx context.Context, q *db.Queries, aw db.AlertWithEscalation) error {
	state := aw.EscalationState
	preset := Preset(state.Preset)
	elapsed := time.Since(aw.TriggeredAt)

	var customLevels json.RawMessage
	if prefs, err := q.ListTenantPreferences(ctx, aw.TenantID); err == nil && len(prefs) > 0 {
		// First user's preferences govern timing (Open Question resolution).
		preset = Preset(prefs[0].Preset)
		customLevels = prefs[0].CustomLevels
	}

	newLevel := CurrentLevel(preset, customLevels, elapsed)
	advanced := newLevel > state.CurrentLevel
	dueAgain := !state.NextNotificationAt.After(time.Now())

	if !advanced && !dueAgain {
		return nil
	}

	var alreadyNotified []string
	_ = json.Unmarshal(state.ContactsNotified, &alreadyNotified)

	if err := e.notifier.NotifyTenantUsers(ctx, aw.TenantID.String(), aw.Alert, newLevel); err != nil {
		e.logger.Error("notifying tenant users", "alert_id", aw.ID, "error", err)
	}

	dndOverridden := state.DNDOverridden
	if newLevel >= 4 {
		newlyNotified, dnd, err := e.notifier.NotifyEmergencyContacts(ctx, aw.TenantID.String(), aw.Alert, newLevel, alreadyNotified)
		if err != nil {
			e.logger.Error("notifying emergency contacts", "alert_id", aw.ID, "error", err)
		} else {
			alreadyNotified = append(alreadyNotified, newlyNotified...)
			dndOverridden = dndOverridden || dnd
		}
	}

	if err := e.commander.PublishEscalation(ctx, aw.TenantID.String(), aw.DeviceID.String(), SignalForLevel(newLevel)); err != nil {
		e.logger.Error("publishing device escalation signal", "alert_id", aw.ID, "error", err)
	}

	now := time.Now()
	contactsJSON, _ := json.Marshal(alreadyNotified)
	if err := q.UpsertEscalationState(ctx, db.UpsertEscalationStateParams{
		AlertID:            aw.ID,
		CurrentLevel:       newLevel,
		LastNotificationAt: &now,
		NextNotificationAt: NextNotificationAt(newLevel, now),
		NotificationCount:  state.NotificationCount + 1,
		ContactsNotified:   contactsJSON,
		DNDOverridden:      dndOverridden,
		Preset:             string(preset),
	}); err != nil {
		return fmt.Errorf("persisting escalation state: %w", err)
	}

	telemetry.AlertsEscalatedTotal.WithLabelValues(strconv.Itoa(newLevel)).Inc()
	e.logger.Info("escalated alert", "alert_id", aw.ID, "level", newLevel, "elapsed_minutes", int(elapsed.Minutes()))
	return nil
}

// PublishAck publishes an alert acknowledgment event on the channel the
// engine subscribes to. The engine only logs the event; escalation stops
// because acknowledgment deletes the alert's escalation-state row.
func PublishAck(ctx context.Context, rdb *redis.Client, alertID string) {
	rdb.Publish(ctx, "devicefabric:alert:ack", alertID)
}
